package notify

import (
	"context"
	"log/slog"
	"sync"
)

// Queue is the in-process Dispatcher: a bounded buffer drained by a fixed
// worker pool. Enqueue fails fast with ErrQueueFull instead of blocking.
type Queue struct {
	messages  chan Message
	deliverer *Deliverer
	logger    *slog.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

func NewQueue(deliverer *Deliverer, workers, size int, logger *slog.Logger) *Queue {
	if workers < 1 {
		workers = 1
	}
	if size < 1 {
		size = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		messages:  make(chan Message, size),
		deliverer: deliverer,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
	}

	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.work()
	}
	return q
}

// Enqueue never blocks. Delivery runs detached from the caller's context.
func (q *Queue) Enqueue(_ context.Context, msg Message) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.messages <- msg:
		return nil
	default:
		return ErrQueueFull
	}
}

func (q *Queue) work() {
	defer q.wg.Done()
	for msg := range q.messages {
		_ = q.deliverer.Deliver(q.ctx, msg)
	}
}

// Close stops accepting messages and waits for the backlog to drain. If ctx
// expires first, in-flight retries are cancelled.
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.messages)
	}
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.cancel()
		return nil
	case <-ctx.Done():
		q.cancel()
		<-done
		q.logger.Warn("notification queue closed before backlog drained")
		return ctx.Err()
	}
}
