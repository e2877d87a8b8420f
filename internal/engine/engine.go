// Package engine provides the durable key-value contract the catalog
// persists its metadata through.
package engine

import (
	"context"
	"errors"
)

// Common errors for engine operations.
var (
	ErrKeyNotFound = errors.New("key not found")
	ErrClosed      = errors.New("engine is closed")
)

// Entry is a single key-value pair returned by Scan.
type Entry struct {
	Key   string
	Value []byte
}

// Engine abstracts the durable key-value substrate the catalog persists its
// metadata into. Single-key Put and Delete are individually durable once
// acknowledged; the engine makes no atomicity promise across keys.
// Implementations include SQLite (default), S3 (remote), and an in-memory
// engine for testing.
type Engine interface {
	// Get returns the value stored under key, or ErrKeyNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put durably stores value under key, replacing any existing value.
	Put(ctx context.Context, key string, value []byte) error

	// Delete removes the value stored under key. Deleting an absent key
	// is not an error.
	Delete(ctx context.Context, key string) error

	// Scan returns every entry whose key starts with prefix, in ascending
	// key order.
	Scan(ctx context.Context, prefix string) ([]Entry, error)

	// Close releases the engine's resources.
	Close() error
}
