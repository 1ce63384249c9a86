package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/BradenHooton/carepoint/internal/config"
	"github.com/BradenHooton/carepoint/internal/database"
	pkglogger "github.com/BradenHooton/carepoint/pkg/logger"
	_ "github.com/lib/pq"
)

// migrate applies the embedded schema to the core dataset and, when
// CONTENT_DB_URL is set, to the content dataset.
//
//	migrate [-version]
func main() {
	versionOnly := flag.Bool("version", false, "print the applied migration version and exit")
	timeout := flag.Duration("timeout", 2*time.Minute, "overall migration timeout")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	logger := pkglogger.New(os.Stdout, cfg.Server.LogLevel, cfg.Server.Env)

	datasets := map[string]string{"core": cfg.Database.DSN()}
	if cfg.Content.URL != "" {
		datasets["content"] = cfg.Content.URL
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	failed := false
	for name, dsn := range datasets {
		if err := run(ctx, name, dsn, *versionOnly, logger); err != nil {
			logger.Error("migration failed", slog.String("dataset", name), slog.Any("error", err))
			failed = true
		}
	}
	if failed {
		os.Exit(1)
	}
}

func run(ctx context.Context, name, dsn string, versionOnly bool, logger *slog.Logger) error {
	sqlDB, err := sql.Open("postgres", dsn)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	defer sqlDB.Close()

	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}

	if !versionOnly {
		if err := database.RunMigrations(ctx, sqlDB); err != nil {
			return err
		}
	}

	version, err := database.MigrationVersion(ctx, sqlDB)
	if err != nil {
		return err
	}
	logger.Info("schema version", slog.String("dataset", name), slog.Int64("version", version))
	return nil
}
