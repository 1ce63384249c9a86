package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BradenHooton/carepoint/internal/config"
	"github.com/BradenHooton/carepoint/internal/notify"
	"github.com/BradenHooton/carepoint/internal/observability"
	pkglogger "github.com/BradenHooton/carepoint/pkg/logger"
)

// notifier consumes notification messages from NATS and delivers them
// through the configured mail provider. Run it when the API uses
// NOTIFY_TRANSPORT=nats.
func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stderr, nil)).Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger := pkglogger.New(os.Stdout, cfg.Server.LogLevel, cfg.Server.Env)
	slog.SetDefault(logger)

	if err := observability.InitSentry(cfg.Sentry.DSN, cfg.Server.Env); err != nil {
		logger.Warn("sentry disabled", slog.Any("error", err))
	}
	defer observability.FlushSentry()

	setupCtx, setupCancel := context.WithTimeout(context.Background(), 10*time.Second)
	queue, err := notify.NewDeliveryQueue(setupCtx, cfg, logger, func(ctx context.Context, msg notify.Message, err error) {
		observability.CaptureError(ctx, err, map[string]string{
			"notification_id":   msg.ID,
			"notification_kind": string(msg.Kind),
		})
	})
	setupCancel()
	if err != nil {
		logger.Error("failed to initialize delivery", slog.Any("error", err))
		os.Exit(1)
	}

	conn, err := notify.ConnectNATS(cfg.Notify.NATSURL, "carepoint-notifier", logger)
	if err != nil {
		logger.Error("failed to connect to NATS", slog.Any("error", err))
		os.Exit(1)
	}
	defer conn.Close()

	consumer := notify.NewNATSConsumer(conn, cfg.Notify.Subject, queue, logger)
	if err := consumer.Start(); err != nil {
		logger.Error("failed to start consumer", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("notifier running",
		slog.String("mailer", cfg.Mail.Provider),
		slog.Int("workers", cfg.Notify.Workers))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	if err := consumer.Stop(); err != nil {
		logger.Error("failed to drain subscription", slog.Any("error", err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := queue.Close(ctx); err != nil {
		logger.Error("pending notifications not delivered", slog.Any("error", err))
	}

	logger.Info("notifier stopped")
}
