package book

import (
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// stopCause says why a matching pass ended.
type stopCause uint8

const (
	// stopSatisfied: the taker's remainder fell below the minimum resting
	// size, so there is nothing left worth matching or resting.
	stopSatisfied stopCause = iota
	// stopNoLiquidity: no opposite order crosses the taker's price.
	stopNoLiquidity
	// stopBudget: a further match was possible but the step budget ran out.
	stopBudget
)

// runMatching drives a taker through the opposite side of the book and then
// settles its fate according to its terms and why matching stopped.
func (b *Book) runMatching(o *Order, budget uint32) {
	cause := b.matchLoop(o, budget)
	switch cause {
	case stopSatisfied:
		// Fully filled, or left with dust too small to rest. Any counter
		// still reserved (dust, or flooring residue) goes back.
		b.release(o)
		o.Status = StatusDone
		o.Reason = ReasonNone
	case stopBudget:
		if o.Terms == TermsGTCWithGasTopup {
			// Paused, not resting: the reservation stays locked so the
			// client can resume with a fresh budget.
			o.Status = StatusNeedsGas
			logger.Debug("order paused on step budget",
				zap.String("pair", b.pair),
				zap.String("order_id", o.ID))
			return
		}
		b.release(o)
		o.Status = StatusDone
		o.Reason = ReasonTooManyMatches
	case stopNoLiquidity:
		if o.Terms == TermsImmediateOrCancel {
			b.release(o)
			o.Status = StatusDone
			o.Reason = ReasonUnmatched
			return
		}
		b.enterBook(o)
	}
}

// matchLoop trades the taker against the best crossing maker until the
// taker is satisfied, liquidity runs dry, or the budget is spent. The
// budget check comes after probing for a match so that running out of steps
// is only reported when it actually blocked one.
func (b *Book) matchLoop(o *Order, budget uint32) stopCause {
	for {
		if o.Remaining().LessThan(b.cfg.BaseMinRemainingSize) {
			return stopSatisfied
		}
		best, ok := b.bestOpposite(o)
		if !ok {
			return stopNoLiquidity
		}
		if budget == 0 {
			return stopBudget
		}
		b.trade(o, best)
		budget--
	}
}

// bestOpposite finds the best-priced opposite level the taker crosses.
func (b *Book) bestOpposite(o *Order) (PackedPrice, bool) {
	from, through := o.Price.oppositeRange()
	p, ok := b.index.NextOccupied(uint16(from), uint16(through))
	return PackedPrice(p), ok
}

// trade executes one match between the taker and the oldest maker at the
// given level, settling at the maker's price. Counter amounts floor at
// every step, so residues accumulate in reservations and are refunded when
// an order closes, never minted.
func (b *Book) trade(taker *Order, price PackedPrice) {
	maker := b.levels[price].head
	makerRem := maker.Remaining()
	tradeBase := decimal.Min(taker.Remaining(), makerRem)
	tradeCntr := b.codec.CntrAmount(tradeBase, price)

	if taker.Price.Side() == Buy {
		// Taker pays counter at its own (worse or equal) price and gets the
		// difference back right away: price improvement is the taker's.
		chargedCntr := b.codec.CntrAmount(tradeBase, taker.Price)
		taker.Reserved = taker.Reserved.Sub(chargedCntr)
		if improvement := chargedCntr.Sub(tradeCntr); improvement.IsPositive() {
			b.ledger.account(taker.Client).credit(BalanceCntr, improvement)
		}
		maker.Reserved = maker.Reserved.Sub(tradeBase)
		b.ledger.account(maker.Client).credit(BalanceCntr, tradeCntr)
		b.payTaker(taker, BalanceBase, tradeBase, tradeCntr)
	} else {
		taker.Reserved = taker.Reserved.Sub(tradeBase)
		maker.Reserved = maker.Reserved.Sub(tradeCntr)
		b.ledger.account(maker.Client).credit(BalanceBase, tradeBase)
		b.payTaker(taker, BalanceCntr, tradeCntr, tradeCntr)
	}

	taker.ExecutedBase = taker.ExecutedBase.Add(tradeBase)
	taker.ExecutedCntr = taker.ExecutedCntr.Add(tradeCntr)
	maker.ExecutedBase = maker.ExecutedBase.Add(tradeBase)
	maker.ExecutedCntr = maker.ExecutedCntr.Add(tradeCntr)

	if maker.Remaining().LessThan(b.cfg.BaseMinRemainingSize) {
		// The maker is done even if a dust remainder survives: the dust is
		// refunded, not traded, and the reported depth covers it.
		b.removeFromLevel(maker, makerRem)
		b.release(maker)
		maker.Status = StatusDone
		maker.Reason = ReasonNone
		b.emitMarketOrder(MarketOrderCompleteFill, maker.ID, price, makerRem, tradeBase)
	} else {
		b.levels[price].depthBase = b.levels[price].depthBase.Sub(tradeBase)
		b.emitMarketOrder(MarketOrderPartialFill, maker.ID, price, tradeBase, tradeBase)
	}
}

// payTaker credits the taker's side of a trade net of fees. When the taker
// holds enough reward tokens the fee is taken there at the discounted rate
// and the traded asset arrives whole; otherwise the book keeps its cut of
// the received asset itself.
func (b *Book) payTaker(taker *Order, bt BalanceType, amount, tradeCntr decimal.Decimal) {
	acct := b.ledger.account(taker.Client)
	feeRwrd := quoFloor(tradeCntr, b.cfg.FeeDivisor).Mul(decimal.NewFromInt(b.cfg.RwrdRate))
	if feeRwrd.IsPositive() && acct.rwrd.GreaterThanOrEqual(feeRwrd) {
		if err := acct.debit(BalanceRwrd, feeRwrd); err == nil {
			acct.credit(bt, amount)
			taker.FeesRwrd = taker.FeesRwrd.Add(feeRwrd)
			return
		}
	}
	fee := quoFloor(amount, b.cfg.FeeDivisor)
	acct.credit(bt, amount.Sub(fee))
	taker.FeesBaseOrCntr = taker.FeesBaseOrCntr.Add(fee)
}

// quoFloor divides truncating toward zero; amounts are never negative here.
func quoFloor(a decimal.Decimal, divisor int64) decimal.Decimal {
	q, _ := a.QuoRem(decimal.NewFromInt(divisor), 0)
	return q
}
