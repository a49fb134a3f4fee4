package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const ddlKV = `
CREATE TABLE IF NOT EXISTS lectern_kv (
    key         TEXT         PRIMARY KEY,
    value       BYTEA        NOT NULL,
    updated_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_lectern_kv_updated_at
    ON lectern_kv (updated_at);
`

// Migrate creates the key/value table if it does not exist. It is idempotent
// and safe to call on every start.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, ddlKV); err != nil {
		return fmt.Errorf("postgres migrate: %w", err)
	}
	return nil
}
