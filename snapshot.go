package book

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Snapshot is the full durable state of one book: every order record ever
// admitted plus all book balances, in a form RestoreBook can rebuild the
// live structures from.
type Snapshot struct {
	Pair      string                     `json:"pair"`
	CreatedAt time.Time                  `json:"created_at"`
	OrderSeq  uint64                     `json:"order_seq"`
	EventSeq  uint64                     `json:"event_seq"`
	Orders    []Order                    `json:"orders"`
	Balances  map[string]AccountBalances `json:"balances"`
}

// AccountBalances is one client's book balances inside a snapshot.
type AccountBalances struct {
	Base decimal.Decimal `json:"base"`
	Cntr decimal.Decimal `json:"cntr"`
	Rwrd decimal.Decimal `json:"rwrd"`
}

// Snapshot captures the book's current state. Orders come out in admission
// order so a restore replays time priority exactly.
func (b *Book) Snapshot() *Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	snap := &Snapshot{
		Pair:      b.pair,
		CreatedAt: time.Now().UTC(),
		OrderSeq:  b.orderSeq,
		EventSeq:  b.eventSeq,
		Orders:    make([]Order, 0, len(b.orders)),
		Balances:  make(map[string]AccountBalances, len(b.ledger.accounts)),
	}
	for _, o := range b.orders {
		cp := *o
		cp.next, cp.prev = nil, nil
		snap.Orders = append(snap.Orders, cp)
	}
	sort.Slice(snap.Orders, func(i, j int) bool {
		return snap.Orders[i].Seq < snap.Orders[j].Seq
	})
	for client, acct := range b.ledger.accounts {
		snap.Balances[client] = AccountBalances{
			Base: acct.base,
			Cntr: acct.cntr,
			Rwrd: acct.rwrd,
		}
	}
	return snap
}

// RestoreBook rebuilds a live book from a snapshot. Open orders re-enter
// the book in their original admission order, so FIFO priority at every
// level is preserved. The same construction options used for the original
// book (config, tokens, publisher) should be passed again.
func RestoreBook(snap *Snapshot, opts ...Option) *Book {
	b := NewBook(snap.Pair, opts...)
	b.orderSeq = snap.OrderSeq
	b.eventSeq = snap.EventSeq

	for client, bal := range snap.Balances {
		acct := b.ledger.account(client)
		acct.base = bal.Base
		acct.cntr = bal.Cntr
		acct.rwrd = bal.Rwrd
	}
	for i := range snap.Orders {
		o := snap.Orders[i]
		o.next, o.prev = nil, nil
		restored := &o
		b.orders[o.ID] = restored
		if o.Status == StatusOpen {
			b.restingEnter(restored)
		}
	}
	return b
}

// restingEnter relinks a restored open order at its level without emitting
// an Add event: the restore is not new market activity.
func (b *Book) restingEnter(o *Order) {
	lvl, ok := b.levels[o.Price]
	if !ok {
		lvl = &level{}
		b.levels[o.Price] = lvl
		b.index.Set(uint16(o.Price))
	}
	o.prev = lvl.tail
	if lvl.tail != nil {
		lvl.tail.next = o
	} else {
		lvl.head = o
	}
	lvl.tail = o
	lvl.depthBase = lvl.depthBase.Add(o.Remaining())
	lvl.count++
}
