// Package pgtest starts a throwaway PostgreSQL container with the carepoint
// schema applied. Only integration tests (build tag "integration") use it.
package pgtest

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/BradenHooton/carepoint/internal/database"
)

// TestDB manages the container and the migrated pool.
type TestDB struct {
	Container  testcontainers.Container
	ConnString string
	DB         *database.DB
}

// Start creates the container, runs migrations, and registers teardown on t.
func Start(t *testing.T) *TestDB {
	t.Helper()
	ctx := context.Background()

	tdb, err := setup(ctx)
	if err != nil {
		t.Fatalf("postgres test container: %v", err)
	}
	t.Cleanup(func() {
		if err := tdb.Teardown(context.Background()); err != nil {
			t.Logf("teardown: %v", err)
		}
	})
	return tdb
}

func setup(ctx context.Context) (*TestDB, error) {
	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:16-alpine"),
		postgres.WithDatabase("carepoint"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get connection string: %w", err)
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Goose needs a database/sql handle
	goose.SetLogger(log.New(io.Discard, "", 0))
	sqlDB := stdlib.OpenDB(*pool.Config().ConnConfig)
	err = database.RunMigrations(ctx, sqlDB)
	sqlDB.Close()
	if err != nil {
		pool.Close()
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &TestDB{
		Container:  container,
		ConnString: connStr,
		DB:         database.New(pool, "test", logger),
	}, nil
}

// Teardown closes the pool and stops the container.
func (tdb *TestDB) Teardown(ctx context.Context) error {
	if tdb.DB != nil {
		tdb.DB.Close()
	}
	if tdb.Container != nil {
		return tdb.Container.Terminate(ctx)
	}
	return nil
}

// Truncate empties every application table between tests.
func (tdb *TestDB) Truncate(t *testing.T) {
	t.Helper()
	for _, table := range []string{"appointments", "contacts", "reviews", "admins"} {
		if _, err := tdb.DB.Pool.Exec(context.Background(), fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table)); err != nil {
			t.Fatalf("truncate %s: %v", table, err)
		}
	}
}
