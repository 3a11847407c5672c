package structure

import "math/bits"

const wordBits = 64

// Bitmap is a two-level occupancy bitmap over a fixed price domain: one bit
// per price grouped into 64-bit words, plus one summary bit per word that is
// set iff the word is non-zero. A directional scan first drains the current
// word, then hops empty words via the summary, so the number of probes per
// matching step is bounded by the domain size in words, not by how sparse
// the book is.
type Bitmap struct {
	words   []uint64
	summary []uint64
	size    int
}

// NewBitmap creates an empty bitmap over prices [0, size).
func NewBitmap(size int) *Bitmap {
	nw := (size + wordBits - 1) / wordBits
	ns := (nw + wordBits - 1) / wordBits
	return &Bitmap{
		words:   make([]uint64, nw),
		summary: make([]uint64, ns),
		size:    size,
	}
}

// Set marks price p occupied.
func (b *Bitmap) Set(p uint16) {
	w := int(p) / wordBits
	if b.words[w] == 0 {
		b.summary[w/wordBits] |= 1 << (w % wordBits)
	}
	b.words[w] |= 1 << (int(p) % wordBits)
}

// Clear marks price p empty.
func (b *Bitmap) Clear(p uint16) {
	w := int(p) / wordBits
	b.words[w] &^= 1 << (int(p) % wordBits)
	if b.words[w] == 0 {
		b.summary[w/wordBits] &^= 1 << (w % wordBits)
	}
}

// IsSet reports whether price p is occupied.
func (b *Bitmap) IsSet(p uint16) bool {
	return b.words[int(p)/wordBits]&(1<<(int(p)%wordBits)) != 0
}

// NextOccupied returns the lowest occupied price in [from, through].
func (b *Bitmap) NextOccupied(from, through uint16) (uint16, bool) {
	if from > through || int(from) >= b.size {
		return 0, false
	}
	w := int(from) / wordBits
	word := b.words[w] &^ ((1 << (int(from) % wordBits)) - 1)
	for {
		if word != 0 {
			p := w*wordBits + bits.TrailingZeros64(word)
			if p > int(through) {
				return 0, false
			}
			return uint16(p), true
		}
		nw, ok := b.nextWord(w + 1)
		if !ok || nw*wordBits > int(through) {
			return 0, false
		}
		w = nw
		word = b.words[w]
	}
}

// nextWord finds the first non-empty word at or after index w via the
// summary level.
func (b *Bitmap) nextWord(w int) (int, bool) {
	if w >= len(b.words) {
		return 0, false
	}
	s := w / wordBits
	sum := b.summary[s] &^ ((1 << (w % wordBits)) - 1)
	for {
		if sum != 0 {
			return s*wordBits + bits.TrailingZeros64(sum), true
		}
		s++
		if s >= len(b.summary) {
			return 0, false
		}
		sum = b.summary[s]
	}
}
