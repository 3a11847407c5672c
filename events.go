package book

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// ClientOrderEventType tags order lifecycle events.
type ClientOrderEventType uint8

const (
	ClientOrderCreate ClientOrderEventType = iota
	ClientOrderContinue
	ClientOrderCancel
)

func (t ClientOrderEventType) String() string {
	switch t {
	case ClientOrderCreate:
		return "create"
	case ClientOrderContinue:
		return "continue"
	case ClientOrderCancel:
		return "cancel"
	}
	return "unknown"
}

// MarketOrderEventType tags book-visible depth changes.
type MarketOrderEventType uint8

const (
	MarketOrderAdd MarketOrderEventType = iota
	MarketOrderRemove
	MarketOrderCompleteFill
	MarketOrderPartialFill
)

func (t MarketOrderEventType) String() string {
	switch t {
	case MarketOrderAdd:
		return "add"
	case MarketOrderRemove:
		return "remove"
	case MarketOrderCompleteFill:
		return "complete_fill"
	case MarketOrderPartialFill:
		return "partial_fill"
	}
	return "unknown"
}

// ClientPaymentEventType tags balance movements between a client and the book.
type ClientPaymentEventType uint8

const (
	ClientPaymentDeposit ClientPaymentEventType = iota
	ClientPaymentWithdraw
	ClientPaymentTransferFrom
	ClientPaymentTransfer
)

func (t ClientPaymentEventType) String() string {
	switch t {
	case ClientPaymentDeposit:
		return "deposit"
	case ClientPaymentWithdraw:
		return "withdraw"
	case ClientPaymentTransferFrom:
		return "transfer_from"
	case ClientPaymentTransfer:
		return "transfer"
	}
	return "unknown"
}

// BalanceType identifies which of the three per-client balances moved.
type BalanceType uint8

const (
	BalanceBase BalanceType = iota
	BalanceCntr
	BalanceRwrd
)

func (b BalanceType) String() string {
	switch b {
	case BalanceBase:
		return "base"
	case BalanceCntr:
		return "cntr"
	case BalanceRwrd:
		return "rwrd"
	}
	return "unknown"
}

// ClientOrderEvent records a create/continue/cancel request together with the
// match budget the client paid for.
type ClientOrderEvent struct {
	SequenceID uint64               `json:"seq_id"`
	Pair       string               `json:"pair"`
	Type       ClientOrderEventType `json:"type"`
	Client     string               `json:"client"`
	OrderID    string               `json:"order_id"`
	MaxMatches uint32               `json:"max_matches"`
	CreatedAt  time.Time            `json:"created_at"`
}

// MarketOrderEvent records every change to book-visible depth, including
// zero-trade removals. DepthBase is the depth delta taken out of (or added
// to) the level; TradeBase is how much of it actually traded, so a complete
// fill forced by dust prevention shows DepthBase > TradeBase.
type MarketOrderEvent struct {
	SequenceID uint64               `json:"seq_id"`
	Pair       string               `json:"pair"`
	Type       MarketOrderEventType `json:"type"`
	OrderID    string               `json:"order_id"`
	Price      PackedPrice          `json:"price"`
	DepthBase  decimal.Decimal      `json:"depth_base"`
	TradeBase  decimal.Decimal      `json:"trade_base"`
	CreatedAt  time.Time            `json:"created_at"`
}

// ClientPaymentEvent records deposits, withdrawals and token pulls/pushes.
type ClientPaymentEvent struct {
	SequenceID uint64                 `json:"seq_id"`
	Pair       string                 `json:"pair"`
	Type       ClientPaymentEventType `json:"type"`
	Client     string                 `json:"client"`
	Balance    BalanceType            `json:"balance"`
	Delta      decimal.Decimal        `json:"delta"`
	CreatedAt  time.Time              `json:"created_at"`
}

// Publisher receives every event the book emits. Calls happen synchronously
// inside the book's serialized call path, so implementations must either be
// fast or hand off to their own queue.
type Publisher interface {
	PublishClientOrder(ev ClientOrderEvent)
	PublishMarketOrder(ev MarketOrderEvent)
	PublishClientPayment(ev ClientPaymentEvent)
}

// MemoryPublisher stores events in memory, useful for testing and for
// rebuilding views in-process.
type MemoryPublisher struct {
	mu           sync.RWMutex
	clientOrders []ClientOrderEvent
	marketOrders []MarketOrderEvent
	payments     []ClientPaymentEvent
}

// NewMemoryPublisher creates a new MemoryPublisher.
func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{}
}

func (m *MemoryPublisher) PublishClientOrder(ev ClientOrderEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clientOrders = append(m.clientOrders, ev)
}

func (m *MemoryPublisher) PublishMarketOrder(ev MarketOrderEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.marketOrders = append(m.marketOrders, ev)
}

func (m *MemoryPublisher) PublishClientPayment(ev ClientPaymentEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payments = append(m.payments, ev)
}

// ClientOrders returns a copy of the captured order lifecycle events.
func (m *MemoryPublisher) ClientOrders() []ClientOrderEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ClientOrderEvent, len(m.clientOrders))
	copy(out, m.clientOrders)
	return out
}

// MarketOrders returns a copy of the captured depth events.
func (m *MemoryPublisher) MarketOrders() []MarketOrderEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]MarketOrderEvent, len(m.marketOrders))
	copy(out, m.marketOrders)
	return out
}

// Payments returns a copy of the captured payment events.
func (m *MemoryPublisher) Payments() []ClientPaymentEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ClientPaymentEvent, len(m.payments))
	copy(out, m.payments)
	return out
}

// NopPublisher discards all events, useful for benchmarking.
type NopPublisher struct{}

func (NopPublisher) PublishClientOrder(ClientOrderEvent)     {}
func (NopPublisher) PublishMarketOrder(MarketOrderEvent)     {}
func (NopPublisher) PublishClientPayment(ClientPaymentEvent) {}
