// Package respcache keeps generated content (search results, lecture scripts,
// images) across restarts.
//
// The cache holds entries in memory and persists the whole set as one JSON
// snapshot under a single [storage.Store] key. It is bounded by entry count:
// once Capacity is exceeded the oldest EvictBatch entries are dropped. When
// the backend rejects a snapshot (typically [storage.ErrQuotaExceeded]) the
// oldest half is dropped and the write retried once; if that also fails the
// cache is cleared. Persistence errors are logged and never surface to
// callers, so a broken backend degrades to an in-memory cache.
package respcache

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/MrWong99/lectern/internal/observe"
	"github.com/MrWong99/lectern/pkg/storage"
)

const (
	// DefaultCapacity is the entry count above which eviction starts.
	DefaultCapacity = 50

	// DefaultEvictBatch is the number of oldest entries dropped per eviction.
	DefaultEvictBatch = 10
)

// Entry is one cached value with its insertion time.
type Entry struct {
	Value     json.RawMessage `json:"value"`
	Timestamp time.Time       `json:"timestamp"`
}

// KeyedEntry pairs an [Entry] with its key, as returned by [Cache.Scan].
type KeyedEntry struct {
	Key string
	Entry
}

// Config configures a [Cache].
type Config struct {
	// Namespace prefixes the storage key ("<namespace>_cache_v1") and labels
	// eviction metrics.
	Namespace string

	// Capacity defaults to [DefaultCapacity].
	Capacity int

	// EvictBatch defaults to [DefaultEvictBatch].
	EvictBatch int

	// Metrics defaults to [observe.DefaultMetrics].
	Metrics *observe.Metrics

	// Now defaults to [time.Now].
	Now func() time.Time
}

// Cache is a persistent, size-bounded response cache. It is safe for
// concurrent use.
type Cache struct {
	store storage.Store
	cfg   Config

	mu      sync.Mutex
	entries map[string]Entry
}

// New creates an empty cache over store. Call [Cache.Load] to restore a
// previously persisted snapshot.
func New(store storage.Store, cfg Config) *Cache {
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultCapacity
	}
	if cfg.EvictBatch <= 0 {
		cfg.EvictBatch = DefaultEvictBatch
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Cache{store: store, cfg: cfg, entries: make(map[string]Entry)}
}

// StorageKey returns the backend key holding the snapshot.
func (c *Cache) StorageKey() string {
	return c.cfg.Namespace + "_cache_v1"
}

// Load replaces the in-memory state with the persisted snapshot. A missing
// snapshot yields an empty cache. A corrupt snapshot is logged and also yields
// an empty cache. Only backend read failures are returned.
func (c *Cache) Load(ctx context.Context) error {
	data, err := c.store.Get(ctx, c.StorageKey())
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]Entry)

	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("respcache: load: %w", err)
	}

	var entries map[string]Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		slog.Warn("respcache: discarding corrupt snapshot", "key", c.StorageKey(), "err", err)
		return nil
	}
	if entries != nil {
		c.entries = entries
	}
	slog.Debug("respcache: loaded snapshot", "key", c.StorageKey(), "entries", len(c.entries))
	return nil
}

// Get decodes the value under key into v and reports whether it was found.
// A value that no longer decodes into v is treated as a miss.
func (c *Cache) Get(key string, v any) bool {
	c.mu.Lock()
	e, ok := c.entries[key]
	c.mu.Unlock()
	if !ok {
		return false
	}
	if err := json.Unmarshal(e.Value, v); err != nil {
		slog.Warn("respcache: undecodable entry", "key", key, "err", err)
		return false
	}
	return true
}

// Has reports whether key is cached.
func (c *Cache) Has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	return ok
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Put stores v under key with the current time, evicts if over capacity and
// persists the snapshot. Re-putting a key re-stamps it as newest.
func (c *Cache) Put(ctx context.Context, key string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		slog.Error("respcache: encode value", "key", key, "err", err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = Entry{Value: raw, Timestamp: c.cfg.Now()}
	if len(c.entries) > c.cfg.Capacity {
		c.evictOldest(ctx, c.cfg.EvictBatch, "capacity")
	}

	err = c.persist(ctx)
	if err == nil {
		return
	}
	slog.Warn("respcache: persist failed, dropping oldest half", "key", c.StorageKey(), "entries", len(c.entries), "err", err)
	c.evictOldest(ctx, (len(c.entries)+1)/2, "quota")

	err = c.persist(ctx)
	if err == nil {
		return
	}
	slog.Error("respcache: persist retry failed, clearing cache", "key", c.StorageKey(), "err", err)
	c.cfg.Metrics.RecordCacheEviction(ctx, c.cfg.Namespace, "reset", len(c.entries))
	c.entries = make(map[string]Entry)
	if err := c.store.Delete(ctx, c.StorageKey()); err != nil {
		slog.Error("respcache: delete snapshot", "key", c.StorageKey(), "err", err)
	}
}

// Scan returns every entry whose key starts with prefix, newest first.
func (c *Cache) Scan(prefix string) []KeyedEntry {
	c.mu.Lock()
	var out []KeyedEntry
	for k, e := range c.entries {
		if strings.HasPrefix(k, prefix) {
			out = append(out, KeyedEntry{Key: k, Entry: e})
		}
	}
	c.mu.Unlock()

	slices.SortFunc(out, func(a, b KeyedEntry) int {
		if d := b.Timestamp.Compare(a.Timestamp); d != 0 {
			return d
		}
		return cmp.Compare(a.Key, b.Key)
	})
	return out
}

// evictOldest drops the n oldest entries. c.mu must be held.
func (c *Cache) evictOldest(ctx context.Context, n int, reason string) {
	if n <= 0 {
		return
	}
	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b string) int {
		if d := c.entries[a].Timestamp.Compare(c.entries[b].Timestamp); d != 0 {
			return d
		}
		return cmp.Compare(a, b)
	})
	n = min(n, len(keys))
	for _, k := range keys[:n] {
		delete(c.entries, k)
	}
	c.cfg.Metrics.RecordCacheEviction(ctx, c.cfg.Namespace, reason, n)
	slog.Debug("respcache: evicted entries", "reason", reason, "count", n)
}

// persist writes the snapshot. c.mu must be held.
func (c *Cache) persist(ctx context.Context) error {
	data, err := json.Marshal(c.entries)
	if err != nil {
		return fmt.Errorf("respcache: encode snapshot: %w", err)
	}
	if err := c.store.Set(ctx, c.StorageKey(), data); err != nil {
		return fmt.Errorf("respcache: persist: %w", err)
	}
	return nil
}
