// Package memory provides a process-local [storage.Store].
package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/MrWong99/lectern/pkg/storage"
)

var _ storage.Store = (*Store)(nil)

// Store keeps values in a map. The zero value is not usable; call [New].
type Store struct {
	mu       sync.RWMutex
	data     map[string][]byte
	size     int
	maxBytes int
}

// Option configures a [Store].
type Option func(*Store)

// WithMaxBytes caps the total size of stored values. Zero means unlimited.
func WithMaxBytes(n int) Option {
	return func(s *Store) { s.maxBytes = n }
}

// New creates an empty Store.
func New(opts ...Option) *Store {
	s := &Store{data: make(map[string][]byte)}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Get implements [storage.Store].
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	if !ok {
		return nil, fmt.Errorf("memory store: get %q: %w", key, storage.ErrNotFound)
	}
	return slices.Clone(v), nil
}

// Set implements [storage.Store].
func (s *Store) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	newSize := s.size - len(s.data[key]) + len(value)
	if s.maxBytes > 0 && newSize > s.maxBytes {
		return fmt.Errorf("memory store: set %q (%d bytes): %w", key, len(value), storage.ErrQuotaExceeded)
	}
	s.data[key] = slices.Clone(value)
	s.size = newSize
	return nil
}

// Delete implements [storage.Store].
func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.size -= len(s.data[key])
	delete(s.data, key)
	return nil
}

// Keys implements [storage.Store].
func (s *Store) Keys(_ context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var keys []string
	for k := range s.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	return keys, nil
}

// Size returns the total number of stored value bytes.
func (s *Store) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.size
}

// Ping implements [storage.Store]. It always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// Close implements [storage.Store].
func (s *Store) Close() error { return nil }
