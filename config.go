package book

import "github.com/shopspring/decimal"

// Config carries the per-book admission and fee policy. All amounts are
// integers in the smallest unit of their asset.
//
// The dust thresholds are policy, not physics: they exist so the book never
// holds or matches a quantity too small to be worth a matching step. The
// defaults reproduce the canonical 18-decimal book.
type Config struct {
	// MinPriceExponent anchors the representable price window; see PriceCodec.
	MinPriceExponent int

	// BaseMinInitialSize is the smallest order size accepted at creation.
	BaseMinInitialSize decimal.Decimal
	// BaseMinRemainingSize is the dust threshold: no resting order may have
	// less than this unfilled, and a taker below it stops matching.
	BaseMinRemainingSize decimal.Decimal
	// BaseMaxSize is the overflow guard on order size.
	BaseMaxSize decimal.Decimal

	// CntrMinInitialSize / CntrMaxSize bound the counter-asset notional of a
	// new order at its own price.
	CntrMinInitialSize decimal.Decimal
	CntrMaxSize        decimal.Decimal

	// FeeDivisor sets the taker fee: fee = received / FeeDivisor, floored.
	FeeDivisor int64
	// RwrdRate is the counter-to-reward conversion used when the taker pays
	// the fee in reward tokens: rwrdFee = (tradeCntr / FeeDivisor) * RwrdRate.
	RwrdRate int64
}

// DefaultConfig returns the policy of the canonical book: 18-decimal base
// and counter assets, 0.1 minimum order, 0.01 dust threshold, 0.05% taker
// fee, reward token at 1000 per counter unit.
func DefaultConfig() Config {
	return Config{
		MinPriceExponent:     -5,
		BaseMinInitialSize:   decimal.New(1, 17),
		BaseMinRemainingSize: decimal.New(1, 16),
		BaseMaxSize:          decimal.New(1, 36),
		CntrMinInitialSize:   decimal.New(1, 16),
		CntrMaxSize:          decimal.New(1, 36),
		FeeDivisor:           2000,
		RwrdRate:             1000,
	}
}
