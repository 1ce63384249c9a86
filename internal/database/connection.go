package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/BradenHooton/carepoint/internal/config"
	"github.com/jackc/pgx/v5/pgxpool"
)

type DB struct {
	Pool   *pgxpool.Pool
	logger *slog.Logger
	name   string
}

// New wraps an existing pool.
func New(pool *pgxpool.Pool, name string, logger *slog.Logger) *DB {
	return &DB{Pool: pool, logger: logger, name: name}
}

func NewConnection(cfg *config.DatabaseConfig, logger *slog.Logger) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	poolConfig.MaxConns = cfg.MaxConns
	poolConfig.MinConns = cfg.MinConns
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	poolConfig.HealthCheckPeriod = cfg.HealthCheckPeriod

	return connect(poolConfig, "core", logger)
}

// NewConnectionFromURL opens a pool for a dataset configured by connection URL.
func NewConnectionFromURL(url, name string, logger *slog.Logger) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("unable to parse %s database url: %w", name, err)
	}
	return connect(poolConfig, name, logger)
}

func connect(poolConfig *pgxpool.Config, name string, logger *slog.Logger) (*DB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create %s connection pool: %w", name, err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping %s database: %w", name, err)
	}

	logger.Info("database connection established",
		slog.String("dataset", name),
		slog.Int("max_conns", int(poolConfig.MaxConns)),
		slog.Int("min_conns", int(poolConfig.MinConns)),
	)

	return &DB{Pool: pool, logger: logger, name: name}, nil
}

func (db *DB) Close() {
	db.logger.Info("closing database connection pool", slog.String("dataset", db.name))
	db.Pool.Close()
}

func (db *DB) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := db.Pool.Ping(ctx); err != nil {
		return fmt.Errorf("%s database health check failed: %w", db.name, err)
	}
	return nil
}
