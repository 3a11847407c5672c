package book

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExactMatch(t *testing.T) {
	f := newFixture(t)
	f.fundCntr("alice", "0.5")
	f.fundBase("bob", "1")

	f.create("alice", "101", f.buy("0.5"), "1", TermsGTCNoGasTopup, 10)
	f.create("bob", "201", f.sell("0.5"), "1", TermsGTCNoGasTopup, 10)

	f.assertState("101", StatusDone, ReasonNone, "1", "0.5")
	f.assertState("201", StatusDone, ReasonNone, "1", "0.5")

	// Maker receives in full; the taker pays 0.05% of what it receives.
	f.assertBalance("alice", "1", "0")
	f.assertBalance("bob", "0", "0.49975")

	o, err := f.book.Order("201")
	require.NoError(t, err)
	assert.True(t, amt("0.00025").Equal(o.FeesBaseOrCntr), "taker fee: got %s", o.FeesBaseOrCntr)

	events := f.pub.MarketOrders()
	require.Len(t, events, 2)
	assert.Equal(t, MarketOrderAdd, events[0].Type)
	assert.Equal(t, MarketOrderCompleteFill, events[1].Type)
	assert.Equal(t, "101", events[1].OrderID)
	assert.True(t, amt("1").Equal(events[1].DepthBase))
	assert.True(t, amt("1").Equal(events[1].TradeBase))
}

func TestBuyTakerPaysBaseFee(t *testing.T) {
	f := newFixture(t)
	f.fundBase("bob", "1")
	f.fundCntr("alice", "0.5")

	f.create("bob", "201", f.sell("0.5"), "1", TermsGTCNoGasTopup, 10)
	f.create("alice", "101", f.buy("0.5"), "1", TermsGTCNoGasTopup, 10)

	// This time the buy is the taker, so the fee comes out of the base.
	f.assertBalance("alice", "0.9995", "0")
	f.assertBalance("bob", "0", "0.5")
}

func TestRwrdFeeDiscount(t *testing.T) {
	f := newFixture(t)
	f.fundCntr("alice", "0.5")
	f.fundBase("bob", "1")
	f.fundRwrd("bob", "0.25")

	f.create("alice", "101", f.buy("0.5"), "1", TermsGTCNoGasTopup, 10)
	f.create("bob", "201", f.sell("0.5"), "1", TermsGTCNoGasTopup, 10)

	// Fee taken in reward tokens at the discounted rate: the cntr arrives whole.
	f.assertBalance("bob", "0", "0.5")
	bal := f.book.ClientBalances("bob")
	assert.True(t, bal.BookRwrd.IsZero(), "rwrd: got %s", bal.BookRwrd)

	o, err := f.book.Order("201")
	require.NoError(t, err)
	assert.True(t, amt("0.25").Equal(o.FeesRwrd))
	assert.True(t, o.FeesBaseOrCntr.IsZero())
}

func TestRwrdBalanceTooSmallFallsBack(t *testing.T) {
	f := newFixture(t)
	f.fundCntr("alice", "0.5")
	f.fundBase("bob", "1")
	f.fundRwrd("bob", "0.1")

	f.create("alice", "101", f.buy("0.5"), "1", TermsGTCNoGasTopup, 10)
	f.create("bob", "201", f.sell("0.5"), "1", TermsGTCNoGasTopup, 10)

	f.assertBalance("bob", "0", "0.49975")
	bal := f.book.ClientBalances("bob")
	assert.True(t, amt("0.1").Equal(bal.BookRwrd))
}

func TestPartialFillWithPriceImprovement(t *testing.T) {
	f := newFixture(t)
	f.fundBase("bob", "1")
	f.fundCntr("alice", "1")

	f.create("bob", "201", f.sell("0.4"), "1", TermsGTCNoGasTopup, 10)
	f.create("alice", "101", f.buy("0.5"), "2", TermsGTCNoGasTopup, 10)

	// The trade settles at the maker's 0.4; the taker reserved at 0.5 and
	// gets the 0.1 improvement back while 0.5 stays locked for the rest.
	f.assertState("201", StatusDone, ReasonNone, "1", "0.4")
	f.assertState("101", StatusOpen, ReasonNone, "1", "0.4")
	f.assertBalance("alice", "0.9995", "0.1")
	f.assertBalance("bob", "0", "0.4")

	entry, ok := f.book.WalkBook(MaxBuyPrice)
	require.True(t, ok)
	assert.Equal(t, f.buy("0.5"), entry.Price)
	assert.True(t, amt("1").Equal(entry.DepthBase))

	// Cancelling the rest releases exactly the remaining lock.
	require.NoError(t, f.book.CancelOrder("alice", "101"))
	f.assertBalance("alice", "0.9995", "0.6")
}

func TestBestExecutionAcrossLevels(t *testing.T) {
	f := newFixture(t)
	f.fundBase("bob", "3")
	f.fundCntr("alice", "1.8")

	f.create("bob", "201", f.sell("0.6"), "1", TermsGTCNoGasTopup, 10)
	f.create("bob", "202", f.sell("0.4"), "1", TermsGTCNoGasTopup, 10)
	f.create("bob", "203", f.sell("0.5"), "1", TermsGTCNoGasTopup, 10)

	f.create("alice", "101", f.buy("0.6"), "3", TermsGTCNoGasTopup, 10)

	f.assertState("101", StatusDone, ReasonNone, "3", "1.5")
	fills := []string{}
	for _, ev := range f.pub.MarketOrders() {
		if ev.Type == MarketOrderCompleteFill {
			fills = append(fills, ev.OrderID)
		}
	}
	assert.Equal(t, []string{"202", "203", "201"}, fills)

	// Charged at 0.6 per unit, refunded down to each maker's price.
	f.assertBalance("alice", "2.9985", "0.3")
}

func TestTimePriorityWithinLevel(t *testing.T) {
	f := newFixture(t)
	f.fundBase("bob", "1")
	f.fundBase("carol", "1")
	f.fundCntr("alice", "0.5")

	f.create("bob", "201", f.sell("0.5"), "1", TermsGTCNoGasTopup, 10)
	f.create("carol", "301", f.sell("0.5"), "1", TermsGTCNoGasTopup, 10)

	f.create("alice", "101", f.buy("0.5"), "1", TermsGTCNoGasTopup, 10)

	f.assertState("201", StatusDone, ReasonNone, "1", "0.5")
	f.assertState("301", StatusOpen, ReasonNone, "0", "0")
}

func TestMakerDustRemoved(t *testing.T) {
	f := newFixture(t)
	f.fundBase("bob", "1.005")
	f.fundCntr("alice", "0.5")

	f.create("bob", "201", f.sell("0.5"), "1.005", TermsGTCNoGasTopup, 10)
	f.create("alice", "101", f.buy("0.5"), "1", TermsGTCNoGasTopup, 10)

	// The maker's 0.005 remainder is below the minimum resting size: the
	// order completes with only the traded amount executed and the dust
	// goes back to the maker's balance.
	f.assertState("201", StatusDone, ReasonNone, "1", "0.5")
	f.assertBalance("bob", "0.005", "0.5")

	_, ok := f.book.WalkBook(MinSellPrice)
	assert.False(t, ok)

	var fill MarketOrderEvent
	for _, ev := range f.pub.MarketOrders() {
		if ev.Type == MarketOrderCompleteFill {
			fill = ev
		}
	}
	assert.Equal(t, "201", fill.OrderID)
	assert.True(t, amt("1.005").Equal(fill.DepthBase), "depth: got %s", fill.DepthBase)
	assert.True(t, amt("1").Equal(fill.TradeBase))
}

func TestTakerDustStopsMatching(t *testing.T) {
	f := newFixture(t)
	f.fundCntr("alice", "0.3")
	f.fundBase("bob", "0.4001")

	f.create("alice", "101", f.buy("0.5"), "0.2", TermsGTCNoGasTopup, 10)
	f.create("alice", "102", f.buy("0.5"), "0.2", TermsGTCNoGasTopup, 10)
	f.create("alice", "103", f.buy("0.5"), "0.2", TermsGTCNoGasTopup, 10)

	f.create("bob", "201", f.sell("0.5"), "0.4001", TermsGTCNoGasTopup, 10)

	// Two fills leave 0.0001, too small to keep matching or to rest: the
	// order completes normally and the third maker is untouched.
	f.assertState("201", StatusDone, ReasonNone, "0.4", "0.2")
	f.assertState("103", StatusOpen, ReasonNone, "0", "0")
	f.assertBalance("bob", "0.0001", "0.1999")
}

func TestTakerDustBeatsBudgetExhaustion(t *testing.T) {
	f := newFixture(t)
	f.fundCntr("alice", "0.3")
	f.fundBase("bob", "0.4001")

	f.create("alice", "101", f.buy("0.5"), "0.2", TermsGTCNoGasTopup, 10)
	f.create("alice", "102", f.buy("0.5"), "0.2", TermsGTCNoGasTopup, 10)
	f.create("alice", "103", f.buy("0.5"), "0.2", TermsGTCNoGasTopup, 10)

	// Budget runs out exactly when the remainder turns to dust; the dust
	// outcome wins and the order is simply done.
	f.create("bob", "201", f.sell("0.5"), "0.4001", TermsGTCWithGasTopup, 2)
	f.assertState("201", StatusDone, ReasonNone, "0.4", "0.2")
}

func TestNeedsGasAndContinue(t *testing.T) {
	f := newFixture(t)
	f.fundCntr("alice", "0.3")
	f.fundBase("bob", "0.6")

	f.create("alice", "101", f.buy("0.5"), "0.2", TermsGTCNoGasTopup, 10)
	f.create("alice", "102", f.buy("0.5"), "0.2", TermsGTCNoGasTopup, 10)
	f.create("alice", "103", f.buy("0.5"), "0.2", TermsGTCNoGasTopup, 10)

	f.create("bob", "201", f.sell("0.5"), "0.6", TermsGTCWithGasTopup, 2)
	f.assertState("201", StatusNeedsGas, ReasonNone, "0.4", "0.2")
	// Still locked: nothing came back yet for the unmatched 0.2.
	f.assertBalance("bob", "0", "0.1999")

	require.NoError(t, f.book.ContinueOrder("bob", "201", 5))
	f.assertState("201", StatusDone, ReasonNone, "0.6", "0.3")
	f.assertBalance("bob", "0", "0.29985")
}

func TestCancelNeedsGasOrder(t *testing.T) {
	f := newFixture(t)
	f.fundCntr("alice", "0.3")
	f.fundBase("bob", "0.6")

	f.create("alice", "101", f.buy("0.5"), "0.2", TermsGTCNoGasTopup, 10)
	f.create("alice", "102", f.buy("0.5"), "0.2", TermsGTCNoGasTopup, 10)
	f.create("alice", "103", f.buy("0.5"), "0.2", TermsGTCNoGasTopup, 10)

	f.create("bob", "201", f.sell("0.5"), "0.6", TermsGTCWithGasTopup, 1)
	f.assertState("201", StatusNeedsGas, ReasonNone, "0.2", "0.1")

	require.NoError(t, f.book.CancelOrder("bob", "201"))
	f.assertState("201", StatusDone, ReasonClientCancel, "0.2", "0.1")
	f.assertBalance("bob", "0.4", "0.09995")
}

func TestBudgetExhaustionNoTopup(t *testing.T) {
	f := newFixture(t)
	f.fundCntr("alice", "0.3")
	f.fundBase("bob", "0.6")

	f.create("alice", "101", f.buy("0.5"), "0.2", TermsGTCNoGasTopup, 10)
	f.create("alice", "102", f.buy("0.5"), "0.2", TermsGTCNoGasTopup, 10)
	f.create("alice", "103", f.buy("0.5"), "0.2", TermsGTCNoGasTopup, 10)

	f.create("bob", "201", f.sell("0.5"), "0.6", TermsGTCNoGasTopup, 2)
	f.assertState("201", StatusDone, ReasonTooManyMatches, "0.4", "0.2")
	f.assertBalance("bob", "0.2", "0.1999")
	f.assertState("103", StatusOpen, ReasonNone, "0", "0")
}

func TestBudgetNotReportedWhenNothingLeft(t *testing.T) {
	f := newFixture(t)
	f.fundCntr("alice", "0.2")
	f.fundBase("bob", "0.4")

	f.create("alice", "101", f.buy("0.5"), "0.2", TermsGTCNoGasTopup, 10)
	f.create("alice", "102", f.buy("0.5"), "0.2", TermsGTCNoGasTopup, 10)

	// Exactly enough budget for the fills that exist: no complaint.
	f.create("bob", "201", f.sell("0.5"), "0.4", TermsGTCNoGasTopup, 2)
	f.assertState("201", StatusDone, ReasonNone, "0.4", "0.2")
}

func TestZeroBudgetRestsWithoutMatching(t *testing.T) {
	f := newFixture(t)
	f.fundCntr("alice", "0.1")
	f.fundBase("bob", "1")

	f.create("alice", "101", f.buy("0.5"), "0.2", TermsGTCNoGasTopup, 10)

	// Crossing liquidity exists but the budget blocks it immediately. The
	// terminal order holds no reservation, so the full 0.5 comes back.
	f.create("bob", "201", f.sell("0.5"), "0.5", TermsGTCNoGasTopup, 0)
	f.assertState("201", StatusDone, ReasonTooManyMatches, "0", "0")
	f.assertBalance("bob", "1", "0")

	f.create("bob", "202", f.sell("0.5"), "0.5", TermsGTCWithGasTopup, 0)
	f.assertState("202", StatusNeedsGas, ReasonNone, "0", "0")
}

func TestImmediateOrCancelUnmatched(t *testing.T) {
	f := newFixture(t)
	f.fundBase("bob", "1")

	f.create("bob", "201", f.sell("0.5"), "1", TermsImmediateOrCancel, 10)
	f.assertState("201", StatusDone, ReasonUnmatched, "0", "0")
	f.assertBalance("bob", "1", "0")

	_, ok := f.book.WalkBook(MinSellPrice)
	assert.False(t, ok)
}

func TestImmediateOrCancelPartial(t *testing.T) {
	f := newFixture(t)
	f.fundCntr("alice", "0.1")
	f.fundBase("bob", "0.6")

	f.create("alice", "101", f.buy("0.5"), "0.2", TermsGTCNoGasTopup, 10)

	f.create("bob", "201", f.sell("0.5"), "0.6", TermsImmediateOrCancel, 10)
	f.assertState("201", StatusDone, ReasonUnmatched, "0.2", "0.1")
	f.assertBalance("bob", "0.4", "0.09995")
}

func TestImmediateOrCancelBudget(t *testing.T) {
	f := newFixture(t)
	f.fundCntr("alice", "0.3")
	f.fundBase("bob", "0.6")

	f.create("alice", "101", f.buy("0.5"), "0.2", TermsGTCNoGasTopup, 10)
	f.create("alice", "102", f.buy("0.5"), "0.2", TermsGTCNoGasTopup, 10)
	f.create("alice", "103", f.buy("0.5"), "0.2", TermsGTCNoGasTopup, 10)

	f.create("bob", "201", f.sell("0.5"), "0.6", TermsImmediateOrCancel, 2)
	f.assertState("201", StatusDone, ReasonTooManyMatches, "0.4", "0.2")
	f.assertBalance("bob", "0.2", "0.1999")
}

func TestMakerOnlyRests(t *testing.T) {
	f := newFixture(t)
	f.fundCntr("alice", "0.5")
	f.fundBase("bob", "1")

	f.create("bob", "201", f.sell("0.6"), "1", TermsGTCNoGasTopup, 10)
	f.create("alice", "101", f.buy("0.5"), "1", TermsMakerOnly, 0)
	f.assertState("101", StatusOpen, ReasonNone, "0", "0")

	entry, ok := f.book.WalkBook(MaxBuyPrice)
	require.True(t, ok)
	assert.Equal(t, f.buy("0.5"), entry.Price)
}

func TestMakerOnlyWouldTake(t *testing.T) {
	f := newFixture(t)
	f.fundCntr("alice", "0.5")
	f.fundBase("bob", "1")

	f.create("bob", "201", f.sell("0.5"), "1", TermsGTCNoGasTopup, 10)
	f.create("alice", "101", f.buy("0.5"), "1", TermsMakerOnly, 0)

	f.assertState("101", StatusRejected, ReasonWouldTake, "0", "0")
	f.assertBalance("alice", "0", "0.5")
	f.assertState("201", StatusOpen, ReasonNone, "0", "0")
}

func TestSelfMatchAllowed(t *testing.T) {
	f := newFixture(t)
	f.fundCntr("alice", "0.5")
	f.fundBase("alice", "1")

	f.create("alice", "101", f.buy("0.5"), "1", TermsGTCNoGasTopup, 10)
	f.create("alice", "102", f.sell("0.5"), "1", TermsGTCNoGasTopup, 10)

	f.assertState("101", StatusDone, ReasonNone, "1", "0.5")
	f.assertState("102", StatusDone, ReasonNone, "1", "0.5")
	// Round trip against yourself costs exactly the taker fee.
	f.assertBalance("alice", "1", "0.49975")
}

func TestCntrConservation(t *testing.T) {
	f := newFixture(t)
	f.fundCntr("alice", "2")
	f.fundCntr("carol", "1")
	f.fundBase("bob", "5")

	f.create("alice", "101", f.buy("0.5"), "2", TermsGTCNoGasTopup, 10)
	f.create("carol", "301", f.buy("0.4"), "2", TermsGTCNoGasTopup, 10)
	f.create("bob", "201", f.sell("0.4"), "3", TermsGTCNoGasTopup, 10)
	f.create("bob", "202", f.sell("0.4"), "1.5", TermsImmediateOrCancel, 10)
	require.NoError(t, f.book.CancelOrder("carol", "301"))

	// Every cntr unit deposited is either in a balance, locked behind an
	// open order, or collected as fees.
	total := amt("0")
	for _, client := range []string{"alice", "bob", "carol"} {
		total = total.Add(f.book.ClientBalances(client).BookCntr)
	}
	for _, id := range []string{"101", "201", "202", "301"} {
		o, err := f.book.Order(id)
		require.NoError(t, err)
		if !o.Terminal() && o.Price.Side() == Buy {
			total = total.Add(o.Reserved)
		}
		if o.Price.Side() == Sell {
			total = total.Add(o.FeesBaseOrCntr)
		}
	}
	assert.True(t, amt("3").Equal(total), "cntr total: got %s", total)
}
