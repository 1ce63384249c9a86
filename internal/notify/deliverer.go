package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	pkglogger "github.com/BradenHooton/carepoint/pkg/logger"
)

// FailureReporter receives messages that could not be delivered after all retries.
type FailureReporter func(ctx context.Context, msg Message, err error)

// Deliverer renders a message and sends it, retrying transient mailer errors
// with exponential backoff.
type Deliverer struct {
	renderer   *Renderer
	mailer     Mailer
	maxRetries int
	baseDelay  time.Duration
	timeout    time.Duration
	logger     *slog.Logger
	onFailure  FailureReporter
	sleep      func(context.Context, time.Duration) error
}

type DelivererOption func(*Deliverer)

func WithFailureReporter(fn FailureReporter) DelivererOption {
	return func(d *Deliverer) { d.onFailure = fn }
}

func WithBackoff(base time.Duration) DelivererOption {
	return func(d *Deliverer) { d.baseDelay = base }
}

func WithSendTimeout(timeout time.Duration) DelivererOption {
	return func(d *Deliverer) { d.timeout = timeout }
}

func NewDeliverer(renderer *Renderer, mailer Mailer, maxRetries int, logger *slog.Logger, opts ...DelivererOption) *Deliverer {
	if maxRetries < 0 {
		maxRetries = 0
	}
	d := &Deliverer{
		renderer:   renderer,
		mailer:     mailer,
		maxRetries: maxRetries,
		baseDelay:  500 * time.Millisecond,
		timeout:    15 * time.Second,
		logger:     logger,
		sleep:      sleepContext,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Deliver sends msg. Rendering errors are permanent and are not retried.
func (d *Deliverer) Deliver(ctx context.Context, msg Message) error {
	email, err := d.renderer.Render(msg)
	if err != nil {
		d.fail(ctx, msg, err)
		return err
	}

	var lastErr error
	for attempt := 0; attempt <= d.maxRetries; attempt++ {
		if attempt > 0 {
			if err := d.sleep(ctx, d.baseDelay<<(attempt-1)); err != nil {
				lastErr = errors.Join(lastErr, err)
				break
			}
		}

		sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
		lastErr = d.mailer.Send(sendCtx, email)
		cancel()

		if lastErr == nil {
			d.logger.Info("notification sent",
				slog.String("id", msg.ID),
				slog.String("kind", string(msg.Kind)),
				slog.String("to", pkglogger.SanitizedEmail(msg.To)),
				slog.Int("attempt", attempt+1),
			)
			return nil
		}

		d.logger.Warn("notification send failed",
			slog.String("id", msg.ID),
			slog.String("kind", string(msg.Kind)),
			slog.Int("attempt", attempt+1),
			slog.Any("error", lastErr),
		)
	}

	err = fmt.Errorf("deliver %s after %d attempts: %w", msg.Kind, d.maxRetries+1, lastErr)
	d.fail(ctx, msg, err)
	return err
}

func (d *Deliverer) fail(ctx context.Context, msg Message, err error) {
	d.logger.Error("notification dropped",
		slog.String("id", msg.ID),
		slog.String("kind", string(msg.Kind)),
		slog.String("to", pkglogger.SanitizedEmail(msg.To)),
		slog.Any("error", err),
	)
	if d.onFailure != nil {
		d.onFailure(ctx, msg, err)
	}
}
