package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/BradenHooton/carepoint/internal/config"
)

// NewDeliveryQueue wires renderer, mailer, deliverer and worker pool from
// configuration. The API uses it for the memory transport and the notifier
// process uses it behind the NATS consumer.
func NewDeliveryQueue(ctx context.Context, cfg *config.Config, logger *slog.Logger, onFailure FailureReporter) (*Queue, error) {
	renderer, err := NewRenderer(cfg.Hospital.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to build email templates: %w", err)
	}

	mailer, err := NewMailer(ctx, &cfg.Mail, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s mailer: %w", cfg.Mail.Provider, err)
	}

	opts := []DelivererOption{
		WithBackoff(cfg.Notify.RetryBackoff),
		WithSendTimeout(cfg.Notify.SendTimeout),
	}
	if onFailure != nil {
		opts = append(opts, WithFailureReporter(onFailure))
	}
	deliverer := NewDeliverer(renderer, mailer, cfg.Notify.MaxRetries, logger, opts...)

	return NewQueue(deliverer, cfg.Notify.Workers, cfg.Notify.QueueSize, logger), nil
}
