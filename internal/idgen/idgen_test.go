package idgen

import (
	"sort"
	"sync"
	"testing"
)

func TestNextIsStrictlyIncreasing(t *testing.T) {
	g := New()

	prev := g.Next()
	for i := 0; i < 1000; i++ {
		cur := g.Next()
		if cur <= prev {
			t.Fatalf("Next() = %d after %d, want strictly increasing", cur, prev)
		}
		prev = cur
	}
}

func TestSeed(t *testing.T) {
	g := New()
	g.Seed(42)

	if got := g.Next(); got != 43 {
		t.Errorf("Next() after Seed(42) = %d, want 43", got)
	}

	// Seeding backwards must not rewind.
	g.Seed(10)
	if got := g.Next(); got != 44 {
		t.Errorf("Next() after backwards seed = %d, want 44", got)
	}
}

func TestConcurrentNextYieldsDistinctValues(t *testing.T) {
	const (
		goroutines = 16
		perWorker  = 1000
	)

	g := New()
	results := make([][]int64, goroutines)

	var wg sync.WaitGroup
	for w := 0; w < goroutines; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			ids := make([]int64, 0, perWorker)
			for i := 0; i < perWorker; i++ {
				ids = append(ids, g.Next())
			}
			results[w] = ids
		}(w)
	}
	wg.Wait()

	// Per-worker sequences must be strictly increasing.
	var all []int64
	for w, ids := range results {
		for i := 1; i < len(ids); i++ {
			if ids[i] <= ids[i-1] {
				t.Fatalf("worker %d: value %d not greater than previous %d", w, ids[i], ids[i-1])
			}
		}
		all = append(all, ids...)
	}

	// Globally, every value must be distinct.
	sort.Slice(all, func(i, j int) bool { return all[i] < all[j] })
	for i := 1; i < len(all); i++ {
		if all[i] == all[i-1] {
			t.Fatalf("duplicate identifier issued: %d", all[i])
		}
	}
	if len(all) != goroutines*perWorker {
		t.Fatalf("expected %d identifiers, got %d", goroutines*perWorker, len(all))
	}
}
