package book

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/openorder/book/structure"
)

// level is one occupied price: a FIFO queue of resting orders (insertion
// order = time priority) plus the aggregates the book walker reports.
// A level exists only while it has orders.
type level struct {
	head      *Order
	tail      *Order
	depthBase decimal.Decimal
	count     int64
}

// Book is a single base/counter pair's limit order book: order store,
// balance ledger, price-level index and matching engine behind one mutex.
//
// Every public call is applied atomically and in full before the next is
// observed. A call either completes (possibly leaving an order paused in
// NeedsGas) or fails with no effect; there is no interleaving within a book.
type Book struct {
	mu   sync.Mutex
	pair string
	addr string

	cfg   Config
	codec *PriceCodec

	index  structure.Index
	levels map[PackedPrice]*level
	orders map[string]*Order
	ledger *ledger

	baseToken Token
	rwrdToken Token
	publisher Publisher

	eventSeq uint64
	orderSeq uint64
}

// Option configures a Book at construction time.
type Option func(*Book)

// WithConfig replaces the default admission and fee policy.
func WithConfig(cfg Config) Option {
	return func(b *Book) { b.cfg = cfg }
}

// WithPublisher sets the event publisher. Defaults to NopPublisher.
func WithPublisher(p Publisher) Option {
	return func(b *Book) {
		if p != nil {
			b.publisher = p
		}
	}
}

// WithIndex replaces the price-level index implementation. Defaults to the
// two-level bitmap.
func WithIndex(idx structure.Index) Option {
	return func(b *Book) {
		if idx != nil {
			b.index = idx
		}
	}
}

// WithTokens sets the base and reward token collaborators. Defaults to
// empty in-memory tokens.
func WithTokens(base, rwrd Token) Option {
	return func(b *Book) {
		if base != nil {
			b.baseToken = base
		}
		if rwrd != nil {
			b.rwrdToken = rwrd
		}
	}
}

// WithAddress sets the address the book pulls approved token funds to.
func WithAddress(addr string) Option {
	return func(b *Book) { b.addr = addr }
}

// NewBook creates an empty book for one pair.
func NewBook(pair string, opts ...Option) *Book {
	b := &Book{
		pair:      pair,
		addr:      "book:" + pair,
		cfg:       DefaultConfig(),
		index:     structure.NewBitmap(PriceDomain),
		levels:    make(map[PackedPrice]*level),
		orders:    make(map[string]*Order),
		ledger:    newLedger(),
		baseToken: NewMemoryToken(),
		rwrdToken: NewMemoryToken(),
		publisher: NopPublisher{},
	}
	for _, opt := range opts {
		opt(b)
	}
	b.codec = NewPriceCodec(b.cfg.MinPriceExponent)
	return b
}

// Pair returns the book's market pair.
func (b *Book) Pair() string { return b.pair }

// Codec returns the book's price codec.
func (b *Book) Codec() *PriceCodec { return b.codec }

// Address returns the address the book receives token pulls at.
func (b *Book) Address() string { return b.addr }

// CreateOrder admits a new order and matches it as far as its terms and the
// maxMatches step budget allow. An empty or already-used id fails the whole
// call; every client-input problem after that is recorded on the order as a
// Rejected status with no balance effect, and the call still succeeds.
func (b *Book) CreateOrder(client, id string, price PackedPrice, sizeBase decimal.Decimal, terms Terms, maxMatches uint32) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if id == "" {
		return ErrInvalidOrderID
	}
	if _, exists := b.orders[id]; exists {
		return ErrDuplicateOrderID
	}

	b.orderSeq++
	o := &Order{
		ID:       id,
		Client:   client,
		Price:    price,
		SizeBase: sizeBase,
		Terms:    terms,
		Seq:      b.orderSeq,
		Status:   StatusOpen,
	}
	b.orders[id] = o
	b.emitClientOrder(ClientOrderCreate, client, id, maxMatches)

	if reason := b.validate(o, maxMatches); reason != ReasonNone {
		o.Status = StatusRejected
		o.Reason = reason
		logger.Debug("order rejected",
			zap.String("pair", b.pair),
			zap.String("order_id", id),
			zap.String("reason", reason.String()))
		return nil
	}
	if err := b.reserve(o); err != nil {
		o.Status = StatusRejected
		o.Reason = ReasonInsufficientFunds
		return nil
	}

	if terms == TermsMakerOnly {
		// Checked before any trade, so rejection is side-effect free.
		if _, ok := b.bestOpposite(o); ok {
			b.release(o)
			o.Status = StatusRejected
			o.Reason = ReasonWouldTake
			return nil
		}
		b.enterBook(o)
		return nil
	}

	b.runMatching(o, maxMatches)
	return nil
}

// CancelOrder removes an order's unfilled remainder from the book and
// releases its reserved balance. Only the owner may cancel; cancelling an
// order that already reached a terminal state is a no-op.
func (b *Book) CancelOrder(client, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	o, ok := b.orders[id]
	if !ok {
		return ErrOrderNotFound
	}
	if o.Client != client {
		return ErrNotOwner
	}
	if o.Terminal() {
		return nil
	}

	b.emitClientOrder(ClientOrderCancel, client, id, 0)
	if o.Status == StatusOpen {
		rem := o.Remaining()
		b.removeFromLevel(o, rem)
		b.emitMarketOrder(MarketOrderRemove, o.ID, o.Price, rem, decimal.Zero)
	}
	// NeedsGas orders are paused mid-take and never resting, so the index
	// holds nothing for them; releasing the reservation is enough.
	b.release(o)
	o.Status = StatusDone
	o.Reason = ReasonClientCancel
	return nil
}

// ContinueOrder resumes a NeedsGas order with a fresh step budget. Only the
// owner may continue; continuing an order not paused is a no-op.
func (b *Book) ContinueOrder(client, id string, maxMatches uint32) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	o, ok := b.orders[id]
	if !ok {
		return ErrOrderNotFound
	}
	if o.Client != client {
		return ErrNotOwner
	}
	if o.Status != StatusNeedsGas {
		return nil
	}

	b.emitClientOrder(ClientOrderContinue, client, id, maxMatches)
	o.Status = StatusOpen
	b.runMatching(o, maxMatches)
	return nil
}

// Order returns a copy of the full order record.
func (b *Book) Order(id string) (Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	o, ok := b.orders[id]
	if !ok {
		return Order{}, ErrOrderNotFound
	}
	cp := *o
	cp.next, cp.prev = nil, nil
	return cp, nil
}

// OrderState returns the compact execution view of an order.
func (b *Book) OrderState(id string) (OrderState, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	o, ok := b.orders[id]
	if !ok {
		return OrderState{}, ErrOrderNotFound
	}
	return OrderState{
		Status:       o.Status,
		Reason:       o.Reason,
		ExecutedBase: o.ExecutedBase,
		ExecutedCntr: o.ExecutedCntr,
	}, nil
}

// BookEntry is one occupied price level as reported by WalkBook.
type BookEntry struct {
	Price      PackedPrice     `json:"price"`
	DepthBase  decimal.Decimal `json:"depth_base"`
	OrderCount int64           `json:"order_count"`
}

// WalkBook returns the nearest occupied level at or after `from` within
// from's side (walking from best to worst), or ok=false once the side is
// exhausted. Clients page the whole book by passing the last price plus one.
func (b *Book) WalkBook(from PackedPrice) (BookEntry, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if from.Side() == 0 {
		return BookEntry{}, false
	}
	p, ok := b.index.NextOccupied(uint16(from), uint16(from.sideEnd()))
	if !ok {
		return BookEntry{}, false
	}
	lvl := b.levels[PackedPrice(p)]
	return BookEntry{
		Price:      PackedPrice(p),
		DepthBase:  lvl.depthBase,
		OrderCount: lvl.count,
	}, true
}

// ClientBalances reports a client's book balances together with the
// approved and external figures read from the token collaborators.
func (b *Book) ClientBalances(client string) ClientBalances {
	b.mu.Lock()
	defer b.mu.Unlock()

	acct := b.ledger.account(client)
	return ClientBalances{
		BookBase:     acct.base,
		BookCntr:     acct.cntr,
		BookRwrd:     acct.rwrd,
		ApprovedBase: b.baseToken.Allowance(client, b.addr),
		ApprovedRwrd: b.rwrdToken.Allowance(client, b.addr),
		OwnBase:      b.baseToken.BalanceOf(client),
		OwnRwrd:      b.rwrdToken.BalanceOf(client),
	}
}

// DepositCntr credits native counter funds sent in by the client.
func (b *Book) DepositCntr(client string, amount decimal.Decimal) error {
	if !amount.IsPositive() || !amount.IsInteger() {
		return ErrInvalidParam
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	b.ledger.account(client).credit(BalanceCntr, amount)
	b.emitPayment(ClientPaymentDeposit, client, BalanceCntr, amount)
	return nil
}

// WithdrawCntr debits native counter funds back to the client. Withdrawing
// more than the book balance fails the whole call.
func (b *Book) WithdrawCntr(client string, amount decimal.Decimal) error {
	if !amount.IsPositive() || !amount.IsInteger() {
		return ErrInvalidParam
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.ledger.account(client).debit(BalanceCntr, amount); err != nil {
		return err
	}
	b.emitPayment(ClientPaymentWithdraw, client, BalanceCntr, amount.Neg())
	return nil
}

// TransferFromBase pulls the client's full approved base-token allowance
// into their book balance.
func (b *Book) TransferFromBase(client string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.transferFrom(client, b.baseToken, BalanceBase)
}

// TransferBase pushes base tokens from the client's book balance back to
// their own token balance.
func (b *Book) TransferBase(client string, amount decimal.Decimal) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.transfer(client, b.baseToken, BalanceBase, amount)
}

// TransferFromRwrd pulls the client's full approved reward-token allowance
// into their book balance.
func (b *Book) TransferFromRwrd(client string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.transferFrom(client, b.rwrdToken, BalanceRwrd)
}

// TransferRwrd pushes reward tokens from the client's book balance back to
// their own token balance.
func (b *Book) TransferRwrd(client string, amount decimal.Decimal) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.transfer(client, b.rwrdToken, BalanceRwrd, amount)
}

func (b *Book) transferFrom(client string, token Token, bt BalanceType) error {
	amount := token.Allowance(client, b.addr)
	if !amount.IsPositive() {
		return ErrInsufficientApproval
	}
	if err := token.TransferFrom(client, b.addr, amount); err != nil {
		return err
	}
	b.ledger.account(client).credit(bt, amount)
	b.emitPayment(ClientPaymentTransferFrom, client, bt, amount)
	return nil
}

func (b *Book) transfer(client string, token Token, bt BalanceType, amount decimal.Decimal) error {
	if !amount.IsPositive() || !amount.IsInteger() {
		return ErrInvalidParam
	}
	if err := b.ledger.account(client).debit(bt, amount); err != nil {
		return err
	}
	if err := token.Transfer(client, amount); err != nil {
		b.ledger.account(client).credit(bt, amount)
		return err
	}
	b.emitPayment(ClientPaymentTransfer, client, bt, amount.Neg())
	return nil
}

// validate checks client input at admission. Failures here are Rejected
// reasons, never hard errors: they cost the caller nothing but the check.
func (b *Book) validate(o *Order, maxMatches uint32) Reason {
	if o.Price.Side() == 0 {
		return ReasonInvalidPrice
	}
	if !o.SizeBase.IsInteger() || !o.SizeBase.IsPositive() {
		return ReasonInvalidSize
	}
	if o.SizeBase.LessThan(b.cfg.BaseMinInitialSize) || o.SizeBase.GreaterThan(b.cfg.BaseMaxSize) {
		return ReasonInvalidSize
	}
	sizeCntr := b.codec.CntrAmount(o.SizeBase, o.Price)
	if sizeCntr.LessThan(b.cfg.CntrMinInitialSize) || sizeCntr.GreaterThan(b.cfg.CntrMaxSize) {
		return ReasonInvalidSize
	}
	if o.Terms > TermsMakerOnly {
		return ReasonInvalidTerms
	}
	if o.Terms == TermsMakerOnly && maxMatches != 0 {
		// A maker-only order must never match, so a non-zero budget is a
		// contradiction the client should hear about.
		return ReasonInvalidTerms
	}
	return ReasonNone
}

// reserve locks the order's working capital: counter at the order's own
// price for a buy, base for a sell.
func (b *Book) reserve(o *Order) error {
	acct := b.ledger.account(o.Client)
	if o.Price.Side() == Buy {
		amount := b.codec.CntrAmount(o.SizeBase, o.Price)
		if err := acct.debit(BalanceCntr, amount); err != nil {
			return err
		}
		o.Reserved = amount
		return nil
	}
	if err := acct.debit(BalanceBase, o.SizeBase); err != nil {
		return err
	}
	o.Reserved = o.SizeBase
	return nil
}

// release returns whatever is still reserved for the order.
func (b *Book) release(o *Order) {
	if o.Reserved.IsZero() {
		return
	}
	acct := b.ledger.account(o.Client)
	if o.Price.Side() == Buy {
		acct.credit(BalanceCntr, o.Reserved)
	} else {
		acct.credit(BalanceBase, o.Reserved)
	}
	o.Reserved = decimal.Zero
}

// enterBook rests the order's remainder at its price level.
func (b *Book) enterBook(o *Order) {
	rem := o.Remaining()
	lvl, ok := b.levels[o.Price]
	if !ok {
		lvl = &level{}
		b.levels[o.Price] = lvl
		b.index.Set(uint16(o.Price))
	}
	o.prev = lvl.tail
	o.next = nil
	if lvl.tail != nil {
		lvl.tail.next = o
	} else {
		lvl.head = o
	}
	lvl.tail = o
	lvl.depthBase = lvl.depthBase.Add(rem)
	lvl.count++
	o.Status = StatusOpen
	b.emitMarketOrder(MarketOrderAdd, o.ID, o.Price, rem, decimal.Zero)
}

// removeFromLevel unlinks the order from its level, destroying the level
// (and clearing its occupancy bit) when it empties.
func (b *Book) removeFromLevel(o *Order, depthDelta decimal.Decimal) {
	lvl := b.levels[o.Price]
	if o.prev != nil {
		o.prev.next = o.next
	} else {
		lvl.head = o.next
	}
	if o.next != nil {
		o.next.prev = o.prev
	} else {
		lvl.tail = o.prev
	}
	o.next, o.prev = nil, nil
	lvl.depthBase = lvl.depthBase.Sub(depthDelta)
	lvl.count--
	if lvl.count == 0 {
		delete(b.levels, o.Price)
		b.index.Clear(uint16(o.Price))
	}
}

func (b *Book) nextSeq() uint64 {
	b.eventSeq++
	return b.eventSeq
}

func (b *Book) emitClientOrder(typ ClientOrderEventType, client, orderID string, maxMatches uint32) {
	b.publisher.PublishClientOrder(ClientOrderEvent{
		SequenceID: b.nextSeq(),
		Pair:       b.pair,
		Type:       typ,
		Client:     client,
		OrderID:    orderID,
		MaxMatches: maxMatches,
		CreatedAt:  time.Now().UTC(),
	})
}

func (b *Book) emitMarketOrder(typ MarketOrderEventType, orderID string, price PackedPrice, depthBase, tradeBase decimal.Decimal) {
	b.publisher.PublishMarketOrder(MarketOrderEvent{
		SequenceID: b.nextSeq(),
		Pair:       b.pair,
		Type:       typ,
		OrderID:    orderID,
		Price:      price,
		DepthBase:  depthBase,
		TradeBase:  tradeBase,
		CreatedAt:  time.Now().UTC(),
	})
}

func (b *Book) emitPayment(typ ClientPaymentEventType, client string, bt BalanceType, delta decimal.Decimal) {
	b.publisher.PublishClientPayment(ClientPaymentEvent{
		SequenceID: b.nextSeq(),
		Pair:       b.pair,
		Type:       typ,
		Client:     client,
		Balance:    bt,
		Delta:      delta,
		CreatedAt:  time.Now().UTC(),
	})
}
