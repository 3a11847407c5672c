package structure

import "github.com/huandu/skiplist"

// SkipIndex is an ordered-map occupancy index with the same contract as
// Bitmap. Lookups are O(log n) in the number of occupied levels rather than
// O(1), which is fine outside a metered execution environment; it exists as
// the independently-derived implementation the bitmap is cross-checked
// against.
type SkipIndex struct {
	list *skiplist.SkipList
}

// NewSkipIndex creates an empty SkipIndex.
func NewSkipIndex() *SkipIndex {
	return &SkipIndex{
		list: skiplist.New(skiplist.GreaterThanFunc(func(lhs, rhs any) int {
			a, _ := lhs.(uint16)
			b, _ := rhs.(uint16)
			if a < b {
				return -1
			} else if a > b {
				return 1
			}
			return 0
		})),
	}
}

// Set marks price p occupied.
func (s *SkipIndex) Set(p uint16) {
	s.list.Set(p, struct{}{})
}

// Clear marks price p empty.
func (s *SkipIndex) Clear(p uint16) {
	s.list.Remove(p)
}

// IsSet reports whether price p is occupied.
func (s *SkipIndex) IsSet(p uint16) bool {
	return s.list.Get(p) != nil
}

// NextOccupied returns the lowest occupied price in [from, through].
func (s *SkipIndex) NextOccupied(from, through uint16) (uint16, bool) {
	el := s.list.Find(from)
	if el == nil {
		return 0, false
	}
	p, _ := el.Key().(uint16)
	if p > through {
		return 0, false
	}
	return p, true
}
