package book

import "github.com/shopspring/decimal"

// Terms controls what an order may do beyond plain matching.
type Terms uint8

const (
	// TermsGTCNoGasTopup rests after matching but must fully resolve within
	// one call: if the step budget runs out mid-match the order is closed
	// rather than paused.
	TermsGTCNoGasTopup Terms = iota
	// TermsGTCWithGasTopup may pause (NeedsGas) when the budget runs out and
	// be resumed later with ContinueOrder.
	TermsGTCWithGasTopup
	// TermsImmediateOrCancel never rests; any unmatched remainder is refunded.
	TermsImmediateOrCancel
	// TermsMakerOnly is rejected outright if it would match immediately.
	// It requires a zero step budget.
	TermsMakerOnly
)

func (t Terms) String() string {
	switch t {
	case TermsGTCNoGasTopup:
		return "GTCNoGasTopup"
	case TermsGTCWithGasTopup:
		return "GTCWithGasTopup"
	case TermsImmediateOrCancel:
		return "ImmediateOrCancel"
	case TermsMakerOnly:
		return "MakerOnly"
	}
	return "Unknown"
}

// Status is the order lifecycle state. Done and Rejected are terminal:
// once reached, the executed amounts and fees are frozen.
type Status uint8

const (
	StatusUnknown Status = iota
	StatusRejected
	StatusOpen
	StatusNeedsGas
	StatusDone
)

func (s Status) String() string {
	switch s {
	case StatusRejected:
		return "Rejected"
	case StatusOpen:
		return "Open"
	case StatusNeedsGas:
		return "NeedsGas"
	case StatusDone:
		return "Done"
	}
	return "Unknown"
}

// Reason explains a terminal status so clients never have to parse error text.
type Reason uint8

const (
	ReasonNone Reason = iota
	ReasonInvalidPrice
	ReasonInvalidSize
	ReasonInvalidTerms
	ReasonInsufficientFunds
	ReasonWouldTake
	ReasonUnmatched
	ReasonTooManyMatches
	ReasonClientCancel
)

func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "None"
	case ReasonInvalidPrice:
		return "InvalidPrice"
	case ReasonInvalidSize:
		return "InvalidSize"
	case ReasonInvalidTerms:
		return "InvalidTerms"
	case ReasonInsufficientFunds:
		return "InsufficientFunds"
	case ReasonWouldTake:
		return "WouldTake"
	case ReasonUnmatched:
		return "Unmatched"
	case ReasonTooManyMatches:
		return "TooManyMatches"
	case ReasonClientCancel:
		return "ClientCancel"
	}
	return "Unknown"
}

// Order is the per-order record kept for the life of the book. Identity and
// terms are immutable after creation; executed amounts and fees only grow.
// This is also the serializable state used for snapshots.
type Order struct {
	ID       string          `json:"id"`
	Client   string          `json:"client"`
	Price    PackedPrice     `json:"price"`
	SizeBase decimal.Decimal `json:"size_base"`
	Terms    Terms           `json:"terms"`
	Seq      uint64          `json:"seq"` // creation sequence, fixes FIFO priority across restores

	Status Status `json:"status"`
	Reason Reason `json:"reason"`

	ExecutedBase   decimal.Decimal `json:"executed_base"`
	ExecutedCntr   decimal.Decimal `json:"executed_cntr"`
	FeesBaseOrCntr decimal.Decimal `json:"fees_base_or_cntr"`
	FeesRwrd       decimal.Decimal `json:"fees_rwrd"`

	// Reserved is the balance still locked for this order: counter for a
	// buy, base for a sell. It is released on fill, cancel or rejection,
	// never left dangling between calls.
	Reserved decimal.Decimal `json:"reserved"`

	// Intrusive FIFO pointers within a price level (ignored by JSON).
	next *Order
	prev *Order
}

// Remaining returns the unfilled base quantity.
func (o *Order) Remaining() decimal.Decimal {
	return o.SizeBase.Sub(o.ExecutedBase)
}

// Terminal reports whether the order can no longer change.
func (o *Order) Terminal() bool {
	return o.Status == StatusDone || o.Status == StatusRejected
}

// OrderState is the compact view returned by Book.OrderState.
type OrderState struct {
	Status       Status          `json:"status"`
	Reason       Reason          `json:"reason"`
	ExecutedBase decimal.Decimal `json:"executed_base"`
	ExecutedCntr decimal.Decimal `json:"executed_cntr"`
}
