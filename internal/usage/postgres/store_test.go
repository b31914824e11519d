package postgres_test

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/elektron/internal/usage"
	"github.com/MrWong99/elektron/internal/usage/postgres"
	"github.com/MrWong99/elektron/internal/usage/usagetest"
)

// testDSN skips the test unless ELEKTRON_TEST_POSTGRES_DSN is set.
func testDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("ELEKTRON_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("ELEKTRON_TEST_POSTGRES_DSN not set, skipping PostgreSQL integration tests")
	}
	return dsn
}

// newTestStore returns a store on a freshly dropped schema. The suite's
// subtests share one database, so they must not run in parallel.
func newTestStore(t *testing.T, maxLogs int) usage.Store {
	t.Helper()
	dsn := testDSN(t)
	ctx := context.Background()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	for _, stmt := range []string{
		"DROP TABLE IF EXISTS usage_logs",
		"DROP TABLE IF EXISTS usage_activities",
	} {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			t.Fatalf("drop %q: %v", stmt, err)
		}
	}
	pool.Close()

	store, err := postgres.NewStore(ctx, dsn, postgres.WithMaxLogs(maxLogs))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStore(t *testing.T) {
	testDSN(t)
	usagetest.Run(t, newTestStore)
}

func TestNewStore_BadDSN(t *testing.T) {
	t.Parallel()

	if _, err := postgres.NewStore(context.Background(), "://not a dsn"); err == nil {
		t.Fatal("expected error for malformed DSN")
	}
}
