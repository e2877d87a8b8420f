// Package idgen provides the process-wide generator for internal catalog
// identifiers.
package idgen

import "sync/atomic"

// Generator produces unique, strictly increasing identifiers. It is safe for
// unsynchronized concurrent use and makes no memory-ordering promises beyond
// the uniqueness and ordering of the returned values. The counter itself is
// not durable; durability of an identifier follows from the catalog
// persisting it alongside the owning entity.
type Generator struct {
	last atomic.Int64
}

// New creates a generator starting at zero.
func New() *Generator {
	return &Generator{}
}

// Next returns a value strictly greater than every previously returned value.
// Values are monotonic but not necessarily gap-free.
func (g *Generator) Next() int64 {
	return g.last.Add(1)
}

// Seed advances the generator so that every subsequent Next call returns a
// value greater than n. Seeding backwards is a no-op.
func (g *Generator) Seed(n int64) {
	for {
		cur := g.last.Load()
		if cur >= n {
			return
		}
		if g.last.CompareAndSwap(cur, n) {
			return
		}
	}
}

// Current returns the most recently issued value, or the seed if nothing has
// been issued yet.
func (g *Generator) Current() int64 {
	return g.last.Load()
}
