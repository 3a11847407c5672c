package book

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Side of an order or price.
type Side int8

const (
	Buy  Side = 1
	Sell Side = 2
)

func (s Side) String() string {
	switch s {
	case Buy:
		return "Buy"
	case Sell:
		return "Sell"
	}
	return "Invalid"
}

// PackedPrice is the compact price representation used across the engine.
// It is both a value and an index: prices are packed so that within each
// side lower packed values are economically better, which lets the matching
// loop and the book walker scan a single ascending range.
//
// A price is (side, mantissa, exponent) with mantissa in [100, 999] and
// exponent covering twelve consecutive powers of ten starting at the
// configured minimum. That gives 10800 prices per side:
//
//	buy:  1 (highest buy) .. 10800 (lowest buy)
//	sell: 10801 (lowest sell) .. 21600 (highest sell)
//
// Zero is reserved as the invalid price.
type PackedPrice uint16

const (
	InvalidPrice PackedPrice = 0
	MaxBuyPrice  PackedPrice = 1
	MinBuyPrice  PackedPrice = 10800
	MinSellPrice PackedPrice = 10801
	MaxSellPrice PackedPrice = 21600

	// PriceDomain is the size of the packed price space including the
	// reserved zero slot; index implementations are allocated over it.
	PriceDomain = int(MaxSellPrice) + 1

	mantissaMin   = 100
	mantissaCount = 900
	exponentCount = 12
	pricesPerSide = mantissaCount * exponentCount
)

// Side reports which side of the book a packed price belongs to.
// It returns 0 for the reserved/out-of-range values.
func (p PackedPrice) Side() Side {
	switch {
	case p >= MaxBuyPrice && p <= MinBuyPrice:
		return Buy
	case p >= MinSellPrice && p <= MaxSellPrice:
		return Sell
	}
	return 0
}

// priceIndex maps a valid packed price to its economic index: 0 for the
// cheapest representable price up to pricesPerSide-1 for the dearest,
// regardless of side.
func (p PackedPrice) priceIndex() int {
	if p.Side() == Buy {
		return int(MinBuyPrice - p)
	}
	return int(p - MinSellPrice)
}

// sideEnd returns the last packed price of p's side, the bound used when
// walking the book level by level.
func (p PackedPrice) sideEnd() PackedPrice {
	if p.Side() == Buy {
		return MinBuyPrice
	}
	return MaxSellPrice
}

// oppositeRange returns the ascending packed range of opposite-side prices
// acceptable to a taker at price p. The start of the range is the opposite
// side's best price; the bound is the worst price that still crosses p.
func (p PackedPrice) oppositeRange() (from, through PackedPrice) {
	idx := p.priceIndex()
	if p.Side() == Buy {
		// Sells priced at or below the buy limit.
		return MinSellPrice, MinSellPrice + PackedPrice(idx)
	}
	// Buys priced at or above the sell limit.
	return MaxBuyPrice, MinBuyPrice - PackedPrice(idx)
}

// PriceCodec converts between packed prices, decimal price values and the
// counter-asset notional of a trade. The only knob is the minimum exponent,
// which anchors the representable price window for a given pair's decimals.
type PriceCodec struct {
	minExponent int
}

// NewPriceCodec returns a codec whose lowest representable price is
// 0.100 * 10^minExponent.
func NewPriceCodec(minExponent int) *PriceCodec {
	return &PriceCodec{minExponent: minExponent}
}

// Encode packs a side and decimal price value. The value must be exactly
// representable as mantissa [100, 999] times a power of ten inside the
// codec's exponent window.
func (c *PriceCodec) Encode(side Side, value decimal.Decimal) (PackedPrice, error) {
	if side != Buy && side != Sell {
		return InvalidPrice, ErrInvalidPrice
	}
	if !value.IsPositive() {
		return InvalidPrice, ErrInvalidPrice
	}
	for exp := c.minExponent; exp < c.minExponent+exponentCount; exp++ {
		// value == mantissa * 10^(exp-3) for some integer mantissa?
		m := value.Mul(decimal.New(1, int32(3-exp)))
		if !m.IsInteger() {
			continue
		}
		mi := m.IntPart()
		if mi < mantissaMin || mi >= mantissaMin+mantissaCount {
			continue
		}
		idx := mantissaCount*(exp-c.minExponent) + int(mi-mantissaMin)
		if side == Buy {
			return MinBuyPrice - PackedPrice(idx), nil
		}
		return MinSellPrice + PackedPrice(idx), nil
	}
	return InvalidPrice, ErrInvalidPrice
}

// Decode is the exact inverse of Encode for every valid packed price.
func (c *PriceCodec) Decode(p PackedPrice) (Side, decimal.Decimal, error) {
	side := p.Side()
	if side == 0 {
		return 0, decimal.Zero, ErrInvalidPrice
	}
	idx := p.priceIndex()
	mantissa := int64(mantissaMin + idx%mantissaCount)
	exp := c.minExponent + idx/mantissaCount
	return side, decimal.New(mantissa, int32(exp-3)), nil
}

// CntrAmount converts a base-asset quantity to its counter-asset notional at
// the given packed price, rounding down to the smallest counter unit. The
// floor is deliberate: every conversion in the engine rounds in the book's
// favour so that reserved funds always cover settled trades.
func (c *PriceCodec) CntrAmount(base decimal.Decimal, p PackedPrice) decimal.Decimal {
	idx := p.priceIndex()
	mantissa := int64(mantissaMin + idx%mantissaCount)
	exp := c.minExponent + idx/mantissaCount
	return base.Mul(decimal.New(mantissa, int32(exp-3))).Floor()
}

// Format renders a packed price as e.g. "Buy @ 0.5".
func (c *PriceCodec) Format(p PackedPrice) string {
	side, value, err := c.Decode(p)
	if err != nil {
		return "Invalid"
	}
	return fmt.Sprintf("%s @ %s", side, value)
}

// Parse reads the "Buy @ 0.5" form produced by Format. Trailing zeros in
// the value are accepted ("Buy @ 0.500" packs the same).
func (c *PriceCodec) Parse(s string) (PackedPrice, error) {
	sideStr, valueStr, found := strings.Cut(s, "@")
	if !found {
		return InvalidPrice, ErrInvalidPrice
	}
	var side Side
	switch strings.TrimSpace(sideStr) {
	case "Buy":
		side = Buy
	case "Sell":
		side = Sell
	default:
		return InvalidPrice, ErrInvalidPrice
	}
	value, err := decimal.NewFromString(strings.TrimSpace(valueStr))
	if err != nil {
		return InvalidPrice, ErrInvalidPrice
	}
	return c.Encode(side, value)
}
