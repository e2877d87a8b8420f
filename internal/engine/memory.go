package engine

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryEngine implements Engine with an in-process map.
// This is primarily used for testing and development. Fault injection hooks
// let tests exercise partial multi-key failures at the catalog level.
type MemoryEngine struct {
	mu     sync.RWMutex
	data   map[string][]byte
	closed bool

	putFailures    int
	putErr         error
	deleteOK       int
	deleteFailures int
	deleteErr      error
}

// NewMemoryEngine creates an empty in-memory engine.
func NewMemoryEngine() *MemoryEngine {
	return &MemoryEngine{
		data: make(map[string][]byte),
	}
}

// Get returns the value stored under key.
func (e *MemoryEngine) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.closed {
		return nil, ErrClosed
	}
	value, ok := e.data[key]
	if !ok {
		return nil, ErrKeyNotFound
	}
	cp := make([]byte, len(value))
	copy(cp, value)
	return cp, nil
}

// Put stores value under key.
func (e *MemoryEngine) Put(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}
	if e.putFailures > 0 {
		e.putFailures--
		return e.putErr
	}
	cp := make([]byte, len(value))
	copy(cp, value)
	e.data[key] = cp
	return nil
}

// Delete removes the value stored under key. Absent keys are ignored.
func (e *MemoryEngine) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}
	if e.deleteOK > 0 {
		e.deleteOK--
	} else if e.deleteFailures > 0 {
		e.deleteFailures--
		return e.deleteErr
	}
	delete(e.data, key)
	return nil
}

// Scan returns entries under prefix in ascending key order.
func (e *MemoryEngine) Scan(ctx context.Context, prefix string) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.closed {
		return nil, ErrClosed
	}

	var entries []Entry
	for key, value := range e.data {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		cp := make([]byte, len(value))
		copy(cp, value)
		entries = append(entries, Entry{Key: key, Value: cp})
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
	return entries, nil
}

// Close marks the engine closed; further calls fail with ErrClosed.
func (e *MemoryEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

// Len returns the number of stored keys.
func (e *MemoryEngine) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.data)
}

// FailPuts makes the next n Put calls fail with err.
func (e *MemoryEngine) FailPuts(n int, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.putFailures = n
	e.putErr = err
}

// FailDeletes lets the next after Delete calls succeed, then fails the
// following n with err. Used to interrupt multi-key cascades midway.
func (e *MemoryEngine) FailDeletes(after, n int, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.deleteOK = after
	e.deleteFailures = n
	e.deleteErr = err
}
