package book

import (
	"sync"
)

// Engine hosts one Book per market pair and creates books on first use.
type Engine struct {
	books sync.Map
	opts  func(pair string) []Option
}

// NewEngine creates an engine. The optional opts factory supplies per-pair
// construction options (config, publisher, tokens) for books the engine
// creates lazily.
func NewEngine(opts func(pair string) []Option) *Engine {
	return &Engine{opts: opts}
}

// Book returns the book for a pair, creating it if needed.
func (e *Engine) Book(pair string) *Book {
	if v, found := e.books.Load(pair); found {
		return v.(*Book)
	}
	var extra []Option
	if e.opts != nil {
		extra = e.opts(pair)
	}
	v, _ := e.books.LoadOrStore(pair, NewBook(pair, extra...))
	return v.(*Book)
}

// Lookup returns the book for a pair without creating it.
func (e *Engine) Lookup(pair string) (*Book, bool) {
	v, found := e.books.Load(pair)
	if !found {
		return nil, false
	}
	return v.(*Book), true
}

// Restore registers a book rebuilt from a snapshot, replacing any existing
// book for the pair.
func (e *Engine) Restore(b *Book) {
	e.books.Store(b.Pair(), b)
}

// Range calls fn for every live book until fn returns false.
func (e *Engine) Range(fn func(b *Book) bool) {
	e.books.Range(func(_, v any) bool {
		return fn(v.(*Book))
	})
}
