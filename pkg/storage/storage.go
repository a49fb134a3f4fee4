// Package storage defines the persistent key/value store that backs the
// response cache.
//
// Three backends implement [Store]:
//
//   - [memory]: process-local map, used in tests and ephemeral deployments
//   - [file]: one file per key under a directory
//   - [postgres]: a single table in PostgreSQL via pgx
//
// Every backend may enforce a byte quota. A write that would exceed it fails
// with [ErrQuotaExceeded] and leaves the previous value in place, so callers
// can shed data and retry.
package storage

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by Get for a key that does not exist.
	ErrNotFound = errors.New("storage: key not found")

	// ErrQuotaExceeded is returned by Set when storing the value would push
	// the store over its configured byte quota.
	ErrQuotaExceeded = errors.New("storage: quota exceeded")
)

// Store is a byte-oriented key/value store. Implementations must be safe for
// concurrent use.
type Store interface {
	// Get returns the value stored under key, or [ErrNotFound].
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Keys returns every key that starts with prefix, in lexical order.
	Keys(ctx context.Context, prefix string) ([]string, error)

	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}
