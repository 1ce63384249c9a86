package background

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// ResetTokenCleaner clears password-reset tokens whose expiry has passed.
type ResetTokenCleaner interface {
	ClearExpiredResets(ctx context.Context, now time.Time) (int64, error)
}

// CleanupManager periodically removes expired password-reset tokens
type CleanupManager struct {
	resets   ResetTokenCleaner
	logger   *slog.Logger
	interval time.Duration
	now      func() time.Time
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewCleanupManager creates a new cleanup manager
func NewCleanupManager(resets ResetTokenCleaner, logger *slog.Logger, interval time.Duration) *CleanupManager {
	return &CleanupManager{
		resets:   resets,
		logger:   logger,
		interval: interval,
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}
}

// Start runs the cleanup once and then on every tick until Stop or ctx is done.
func (cm *CleanupManager) Start(ctx context.Context) {
	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	cm.runCleanup(ctx)

	for {
		select {
		case <-ticker.C:
			cm.runCleanup(ctx)
		case <-cm.stopCh:
			cm.logger.Info("cleanup manager stopped")
			return
		case <-ctx.Done():
			cm.logger.Info("cleanup manager context cancelled")
			return
		}
	}
}

func (cm *CleanupManager) runCleanup(ctx context.Context) {
	cleanupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	cleared, err := cm.resets.ClearExpiredResets(cleanupCtx, cm.now())
	if err != nil {
		cm.logger.Error("failed to clear expired reset tokens", slog.Any("error", err))
		return
	}

	if cleared > 0 {
		cm.logger.Info("expired reset tokens cleared", slog.Int64("rows", cleared))
	}
}

// Stop signals the cleanup manager to stop. It is safe to call more than once.
func (cm *CleanupManager) Stop() {
	cm.stopOnce.Do(func() { close(cm.stopCh) })
}
