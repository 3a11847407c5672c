// Package structure provides the price-occupancy indexes backing the order
// book: a two-level bitmap tuned for bounded worst-case probes, and a
// skiplist-based ordered map kept as a cross-check implementation.
package structure

// Index tracks which packed prices currently have resting depth. Prices are
// dense small integers; within a side, lower is better, so the matching loop
// only ever asks for the next occupied price in ascending order.
type Index interface {
	// Set marks a price occupied.
	Set(p uint16)
	// Clear marks a price empty.
	Clear(p uint16)
	// IsSet reports whether a price is occupied.
	IsSet(p uint16) bool
	// NextOccupied returns the lowest occupied price in [from, through],
	// or ok=false if the range holds none.
	NextOccupied(from, through uint16) (uint16, bool)
}
