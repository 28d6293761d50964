// Package testutil holds the Postgres helpers shared by the calendar's
// integration tests. Every helper skips the calling test when
// TEST_DATABASE_URL is unset, so `go test ./...` stays green without a
// database.
package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/pkordes/fleet-calendar/migrations"
)

// EnvDatabaseURL names the variable that opts a run into integration tests.
const EnvDatabaseURL = "TEST_DATABASE_URL"

// DatabaseURL returns the test database DSN or skips t.
func DatabaseURL(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv(EnvDatabaseURL)
	if dsn == "" {
		t.Skip(EnvDatabaseURL + " not set; skipping integration test")
	}
	return dsn
}

// NewPool returns a pinged pool on the test database, closed when t ends.
// Writes through it are committed, which the change-feed tests rely on:
// NOTIFY is only delivered on commit.
func NewPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	pool, err := openPool(context.Background(), DatabaseURL(t))
	if err != nil {
		t.Fatalf("testutil.NewPool: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

// NewTx begins a transaction that is rolled back when t ends. Ride and
// segment rows written through it never reach other tests.
func NewTx(t *testing.T) pgx.Tx {
	t.Helper()
	tx, err := NewPool(t).Begin(context.Background())
	if err != nil {
		t.Fatalf("testutil.NewTx: begin: %v", err)
	}
	// Registered after the pool's cleanup, so it runs first.
	t.Cleanup(func() { _ = tx.Rollback(context.Background()) })
	return tx
}

// NewSQLDB wraps a test pool in a *sql.DB for goose, the same way the API
// binary runs its migrations.
func NewSQLDB(t *testing.T) *sql.DB {
	t.Helper()
	db := stdlib.OpenDBFromPool(NewPool(t))
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// MigrateForMain brings the test database up to the latest schema, including
// the rides/segments notify triggers. Call it from TestMain before m.Run. It
// does nothing when TEST_DATABASE_URL is unset and panics on failure, since
// TestMain has no *testing.T to fail.
func MigrateForMain() {
	dsn := os.Getenv(EnvDatabaseURL)
	if dsn == "" {
		return
	}
	ctx := context.Background()
	pool, err := openPool(ctx, dsn)
	if err != nil {
		panic("testutil.MigrateForMain: " + err.Error())
	}
	defer pool.Close()

	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()
	if _, err := migrations.Up(ctx, db); err != nil {
		panic("testutil.MigrateForMain: " + err.Error())
	}
}

func openPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return pool, nil
}
