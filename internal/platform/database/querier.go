package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier abstracts pgx query methods so callers can work with both
// pool connections and transactions.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const schema = `
CREATE TABLE IF NOT EXISTS scan_events (
	id          UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	session_id  TEXT NOT NULL DEFAULT '',
	direction   TEXT NOT NULL,
	valid       BOOLEAN NOT NULL,
	results     JSONB NOT NULL DEFAULT '[]',
	duration_ms BIGINT NOT NULL DEFAULT 0,
	source      TEXT NOT NULL DEFAULT 'api',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS scan_events_created_at_idx ON scan_events (created_at DESC);
CREATE INDEX IF NOT EXISTS scan_events_session_idx ON scan_events (session_id);
`

// EnsureSchema creates the scan_events table and its indexes if missing.
func EnsureSchema(ctx context.Context, db Querier) error {
	if _, err := db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}
