package book

import (
	"sync"

	"github.com/igrmk/treemap/v2"
)

// AggregatedBook is a depth-only mirror of one book, rebuilt from the
// market order event stream. Downstream consumers (UIs, market data feeds)
// keep one per pair and feed it every MarketOrderEvent in sequence order.
type AggregatedBook struct {
	mu      sync.RWMutex
	pair    string
	lastSeq uint64
	buy     *treemap.TreeMap[PackedPrice, BookEntry]
	sell    *treemap.TreeMap[PackedPrice, BookEntry]
}

// NewAggregatedBook creates an empty aggregated book for one pair. Packed
// prices sort best-first within a side, so plain ascending order walks each
// tree from best to worst.
func NewAggregatedBook(pair string) *AggregatedBook {
	less := func(a, b PackedPrice) bool { return a < b }
	return &AggregatedBook{
		pair: pair,
		buy:  treemap.NewWithKeyCompare[PackedPrice, BookEntry](less),
		sell: treemap.NewWithKeyCompare[PackedPrice, BookEntry](less),
	}
}

// Pair returns the pair this view mirrors.
func (ab *AggregatedBook) Pair() string { return ab.pair }

// SequenceID returns the sequence of the last applied event.
func (ab *AggregatedBook) SequenceID() uint64 {
	ab.mu.RLock()
	defer ab.mu.RUnlock()
	return ab.lastSeq
}

// Apply folds one market order event into the view. Events for other pairs
// and stale or replayed sequences are ignored. Book sequence numbers are
// shared with non-market events, so gaps are normal; only going backwards
// is not.
func (ab *AggregatedBook) Apply(ev MarketOrderEvent) {
	if ev.Pair != ab.pair {
		return
	}
	ab.mu.Lock()
	defer ab.mu.Unlock()
	if ev.SequenceID <= ab.lastSeq {
		return
	}
	ab.lastSeq = ev.SequenceID

	side := ab.sideTree(ev.Price)
	if side == nil {
		return
	}
	entry := BookEntry{Price: ev.Price}
	if cur, found := side.Get(ev.Price); found {
		entry = cur
	}

	switch ev.Type {
	case MarketOrderAdd:
		entry.DepthBase = entry.DepthBase.Add(ev.DepthBase)
		entry.OrderCount++
	case MarketOrderRemove, MarketOrderCompleteFill:
		entry.DepthBase = entry.DepthBase.Sub(ev.DepthBase)
		entry.OrderCount--
	case MarketOrderPartialFill:
		entry.DepthBase = entry.DepthBase.Sub(ev.DepthBase)
	}

	if entry.OrderCount <= 0 {
		side.Del(ev.Price)
		return
	}
	side.Set(ev.Price, entry)
}

// Depth returns the aggregated entry at a price, if occupied.
func (ab *AggregatedBook) Depth(price PackedPrice) (BookEntry, bool) {
	ab.mu.RLock()
	defer ab.mu.RUnlock()
	side := ab.sideTree(price)
	if side == nil {
		return BookEntry{}, false
	}
	return side.Get(price)
}

// Best returns the best occupied level on a side.
func (ab *AggregatedBook) Best(side Side) (BookEntry, bool) {
	ab.mu.RLock()
	defer ab.mu.RUnlock()
	tree := ab.tree(side)
	if tree == nil || tree.Len() == 0 {
		return BookEntry{}, false
	}
	it := tree.Iterator()
	return it.Value(), true
}

// Levels returns up to limit levels of a side, best first. A non-positive
// limit returns the whole side.
func (ab *AggregatedBook) Levels(side Side, limit int) []BookEntry {
	ab.mu.RLock()
	defer ab.mu.RUnlock()
	tree := ab.tree(side)
	if tree == nil {
		return nil
	}
	entries := make([]BookEntry, 0, tree.Len())
	for it := tree.Iterator(); it.Valid(); it.Next() {
		if limit > 0 && len(entries) == limit {
			break
		}
		entries = append(entries, it.Value())
	}
	return entries
}

func (ab *AggregatedBook) sideTree(price PackedPrice) *treemap.TreeMap[PackedPrice, BookEntry] {
	return ab.tree(price.Side())
}

func (ab *AggregatedBook) tree(side Side) *treemap.TreeMap[PackedPrice, BookEntry] {
	switch side {
	case Buy:
		return ab.buy
	case Sell:
		return ab.sell
	default:
		return nil
	}
}
