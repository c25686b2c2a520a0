// Package kv provides a small key-value store interface used as the durable
// record substrate for the vector index.
//
// The package includes a BadgerDB-backed implementation for production use and
// an in-memory implementation for testing. Keys are flat strings; callers that
// need namespacing join segments with ':' and list by prefix.
package kv

import (
	"context"
	"errors"
	"iter"
)

// Sentinel errors.
var (
	// ErrNotFound is returned when a key does not exist in the store.
	ErrNotFound = errors.New("kv: not found")
)

// Entry is a key-value pair yielded by List.
type Entry struct {
	Key   string
	Value []byte
}

// Store is the interface for a key-value store.
//
// All implementations must be safe for concurrent use.
type Store interface {
	// Get retrieves the value for a key. Returns ErrNotFound if not present.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a key-value pair. Overwrites any existing value.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes a key. No error if the key does not exist.
	Delete(ctx context.Context, key string) error

	// List iterates over all entries whose key starts with the given prefix,
	// in lexicographic key order.
	List(ctx context.Context, prefix string) iter.Seq2[Entry, error]

	// Count returns the number of keys starting with the given prefix.
	Count(ctx context.Context, prefix string) (int, error)

	// Close releases any resources held by the store.
	Close() error
}
