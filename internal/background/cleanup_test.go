package background

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type MockResetCleaner struct {
	calls                  atomic.Int32
	ClearExpiredResetsFunc func(ctx context.Context, now time.Time) (int64, error)
}

func (m *MockResetCleaner) ClearExpiredResets(ctx context.Context, now time.Time) (int64, error) {
	m.calls.Add(1)
	if m.ClearExpiredResetsFunc == nil {
		return 0, nil
	}
	return m.ClearExpiredResetsFunc(ctx, now)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCleanupManager_RunsImmediatelyAndOnTick(t *testing.T) {
	fixed := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	var seen atomic.Int64
	repo := &MockResetCleaner{
		ClearExpiredResetsFunc: func(ctx context.Context, now time.Time) (int64, error) {
			seen.Store(now.Unix())
			return 2, nil
		},
	}
	cm := NewCleanupManager(repo, discardLogger(), 10*time.Millisecond)
	cm.now = func() time.Time { return fixed }

	done := make(chan struct{})
	go func() {
		cm.Start(context.Background())
		close(done)
	}()

	require.Eventually(t, func() bool { return repo.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
	cm.Stop()
	cm.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cleanup manager did not stop")
	}
	assert.Equal(t, fixed.Unix(), seen.Load())
}

func TestCleanupManager_ErrorsDoNotStopTheLoop(t *testing.T) {
	repo := &MockResetCleaner{
		ClearExpiredResetsFunc: func(ctx context.Context, now time.Time) (int64, error) {
			return 0, errors.New("connection reset")
		},
	}
	cm := NewCleanupManager(repo, discardLogger(), 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		cm.Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return repo.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done
}
