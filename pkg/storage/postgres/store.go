// Package postgres provides a PostgreSQL-backed [storage.Store].
//
// Values live in a single lectern_kv table created by [Migrate]. The byte
// quota, when set, is enforced inside the write transaction against the sum
// of all stored values.
//
// Usage:
//
//	store, err := postgres.NewStore(ctx, dsn, postgres.WithMaxBytes(5<<20))
//	if err != nil { … }
//	defer store.Close()
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/lectern/pkg/storage"
)

var _ storage.Store = (*Store)(nil)

// Store is a [storage.Store] over a [pgxpool.Pool]. All operations are safe
// for concurrent use.
type Store struct {
	pool     *pgxpool.Pool
	maxBytes int64
}

// Option configures a [Store].
type Option func(*Store)

// WithMaxBytes caps the total size of stored values. Zero means unlimited.
func WithMaxBytes(n int64) Option {
	return func(s *Store) { s.maxBytes = n }
}

// NewStore connects to the database at dsn, verifies the connection and runs
// [Migrate].
func NewStore(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres store: parse dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres store: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: ping: %w", err)
	}

	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: migrate: %w", err)
	}

	s := &Store{pool: pool}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Get implements [storage.Store].
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.pool.QueryRow(ctx, `SELECT value FROM lectern_kv WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("postgres store: get %q: %w", key, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres store: get %q: %w", key, err)
	}
	return value, nil
}

// Set implements [storage.Store].
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if s.maxBytes > 0 {
			// Serialise writers so concurrent Sets cannot jointly overshoot.
			if _, err := tx.Exec(ctx, `LOCK TABLE lectern_kv IN SHARE ROW EXCLUSIVE MODE`); err != nil {
				return fmt.Errorf("postgres store: set %q: lock: %w", key, err)
			}
			var others int64
			err := tx.QueryRow(ctx,
				`SELECT COALESCE(SUM(octet_length(value)), 0) FROM lectern_kv WHERE key <> $1`, key,
			).Scan(&others)
			if err != nil {
				return fmt.Errorf("postgres store: set %q: size: %w", key, err)
			}
			if others+int64(len(value)) > s.maxBytes {
				return fmt.Errorf("postgres store: set %q (%d bytes): %w", key, len(value), storage.ErrQuotaExceeded)
			}
		}

		_, err := tx.Exec(ctx, `
			INSERT INTO lectern_kv (key, value, updated_at)
			VALUES ($1, $2, now())
			ON CONFLICT (key) DO UPDATE
			SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
			key, value,
		)
		if err != nil {
			return fmt.Errorf("postgres store: set %q: %w", key, err)
		}
		return nil
	})
}

// Delete implements [storage.Store].
func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM lectern_kv WHERE key = $1`, key); err != nil {
		return fmt.Errorf("postgres store: delete %q: %w", key, err)
	}
	return nil
}

// Keys implements [storage.Store].
func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT key FROM lectern_kv WHERE starts_with(key, $1) ORDER BY key COLLATE "C"`, prefix)
	if err != nil {
		return nil, fmt.Errorf("postgres store: keys: %w", err)
	}
	keys, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("postgres store: keys: %w", err)
	}
	return keys, nil
}

// Ping implements [storage.Store].
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres store: ping: %w", err)
	}
	return nil
}

// Close releases all pooled connections.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
