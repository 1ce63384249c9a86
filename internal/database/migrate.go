package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/BradenHooton/carepoint/migrations"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// Migrate applies the embedded goose migrations through the pool's connection config.
func (db *DB) Migrate(ctx context.Context) error {
	sqlDB := stdlib.OpenDB(*db.Pool.Config().ConnConfig)
	defer sqlDB.Close()

	if err := RunMigrations(ctx, sqlDB); err != nil {
		return fmt.Errorf("%s: %w", db.name, err)
	}
	db.logger.Info("migrations applied", "dataset", db.name)
	return nil
}

func RunMigrations(ctx context.Context, sqlDB *sql.DB) error {
	if err := setupGoose(); err != nil {
		return err
	}
	if err := goose.UpContext(ctx, sqlDB, "."); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}

// MigrationVersion returns the newest applied migration version.
func MigrationVersion(ctx context.Context, sqlDB *sql.DB) (int64, error) {
	if err := setupGoose(); err != nil {
		return 0, err
	}
	version, err := goose.GetDBVersionContext(ctx, sqlDB)
	if err != nil {
		return 0, fmt.Errorf("read migration version: %w", err)
	}
	return version, nil
}

func setupGoose() error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	return nil
}
