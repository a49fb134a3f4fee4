// Package file provides a [storage.Store] that keeps one file per key in a
// directory. Writes go to a temporary file that is renamed into place, so a
// crash never leaves a half-written value behind.
package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/MrWong99/lectern/pkg/storage"
)

var _ storage.Store = (*Store)(nil)

const tmpPrefix = ".tmp-"

// Store is a directory-backed key/value store.
type Store struct {
	dir      string
	maxBytes int

	mu    sync.Mutex
	sizes map[string]int
	total int
}

// Option configures a [Store].
type Option func(*Store)

// WithMaxBytes caps the total size of stored values. Zero means unlimited.
func WithMaxBytes(n int) Option {
	return func(s *Store) { s.maxBytes = n }
}

// Open creates dir if needed and indexes the values already stored there.
func Open(dir string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("file store: create dir: %w", err)
	}
	s := &Store{dir: dir, sizes: make(map[string]int)}
	for _, o := range opts {
		o(s)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("file store: read dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), tmpPrefix) {
			continue
		}
		key, err := url.PathUnescape(e.Name())
		if err != nil {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("file store: stat %q: %w", e.Name(), err)
		}
		s.sizes[key] = int(info.Size())
		s.total += int(info.Size())
	}
	return s, nil
}

func (s *Store) path(key string) string {
	return filepath.Join(s.dir, url.PathEscape(key))
}

// Get implements [storage.Store].
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	b, err := os.ReadFile(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("file store: get %q: %w", key, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("file store: get %q: %w", key, err)
	}
	return b, nil
}

// Set implements [storage.Store].
func (s *Store) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	newTotal := s.total - s.sizes[key] + len(value)
	if s.maxBytes > 0 && newTotal > s.maxBytes {
		return fmt.Errorf("file store: set %q (%d bytes): %w", key, len(value), storage.ErrQuotaExceeded)
	}

	tmp, err := os.CreateTemp(s.dir, tmpPrefix+"*")
	if err != nil {
		return fmt.Errorf("file store: set %q: %w", key, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		return fmt.Errorf("file store: set %q: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("file store: set %q: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), s.path(key)); err != nil {
		return fmt.Errorf("file store: set %q: %w", key, err)
	}

	s.sizes[key] = len(value)
	s.total = newTotal
	return nil
}

// Delete implements [storage.Store].
func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("file store: delete %q: %w", key, err)
	}
	s.total -= s.sizes[key]
	delete(s.sizes, key)
	return nil
}

// Keys implements [storage.Store].
func (s *Store) Keys(_ context.Context, prefix string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var keys []string
	for k := range s.sizes {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	return keys, nil
}

// Ping checks that the directory is still accessible.
func (s *Store) Ping(context.Context) error {
	if _, err := os.Stat(s.dir); err != nil {
		return fmt.Errorf("file store: ping: %w", err)
	}
	return nil
}

// Close implements [storage.Store]. It is a no-op.
func (s *Store) Close() error { return nil }
