// Package postgres implements usage.Store on PostgreSQL through a pgx
// connection pool.
//
//	store, err := postgres.NewStore(ctx, dsn)
//	if err != nil { … }
//	defer store.Close()
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const ddlActivities = `
CREATE TABLE IF NOT EXISTS usage_activities (
    id          BIGSERIAL    PRIMARY KEY,
    user_email  TEXT         NOT NULL,
    kind        TEXT         NOT NULL,
    at          TIMESTAMPTZ  NOT NULL DEFAULT now(),
    elapsed_ns  BIGINT       NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_usage_activities_user
    ON usage_activities (user_email);

CREATE INDEX IF NOT EXISTS idx_usage_activities_at
    ON usage_activities (at);
`

const ddlLogs = `
CREATE TABLE IF NOT EXISTS usage_logs (
    id          TEXT         PRIMARY KEY,
    ts          TIMESTAMPTZ  NOT NULL,
    level       TEXT         NOT NULL,
    message     TEXT         NOT NULL,
    user_email  TEXT         NOT NULL DEFAULT '',
    source      TEXT         NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_usage_logs_ts
    ON usage_logs (ts DESC, id DESC);
`

// Migrate creates the usage tables. It is idempotent.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range []string{ddlActivities, ddlLogs} {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres migrate: %w", err)
		}
	}
	return nil
}
