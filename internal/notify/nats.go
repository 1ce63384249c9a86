package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

const (
	DefaultSubject = "notify.send"
	consumerQueue  = "notifier"
)

// NATSPublisher is the Dispatcher used when delivery runs in a separate
// notifier process.
type NATSPublisher struct {
	conn    *nats.Conn
	subject string
	logger  *slog.Logger
}

func ConnectNATS(url, name string, logger *slog.Logger) (*nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", slog.Any("error", err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", slog.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return conn, nil
}

func NewNATSPublisher(conn *nats.Conn, subject string, logger *slog.Logger) *NATSPublisher {
	if subject == "" {
		subject = DefaultSubject
	}
	return &NATSPublisher{conn: conn, subject: subject, logger: logger}
}

func (p *NATSPublisher) Enqueue(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	p.logger.DebugContext(ctx, "publishing notification",
		slog.String("subject", p.subject),
		slog.String("id", msg.ID),
		slog.String("kind", string(msg.Kind)),
	)
	if err := p.conn.Publish(p.subject, payload); err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}
	return nil
}

// NATSConsumer queue-subscribes to the notification subject so several
// notifier replicas share the load. Each message is handed to a Queue.
type NATSConsumer struct {
	conn    *nats.Conn
	subject string
	queue   *Queue
	logger  *slog.Logger
	sub     *nats.Subscription
}

func NewNATSConsumer(conn *nats.Conn, subject string, queue *Queue, logger *slog.Logger) *NATSConsumer {
	if subject == "" {
		subject = DefaultSubject
	}
	return &NATSConsumer{conn: conn, subject: subject, queue: queue, logger: logger}
}

func (c *NATSConsumer) Start() error {
	sub, err := c.conn.QueueSubscribe(c.subject, consumerQueue, c.handle)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", c.subject, err)
	}
	c.sub = sub
	c.logger.Info("notification consumer started", slog.String("subject", c.subject))
	return nil
}

func (c *NATSConsumer) handle(m *nats.Msg) {
	var msg Message
	if err := json.Unmarshal(m.Data, &msg); err != nil {
		c.logger.Error("discarding malformed notification", slog.Any("error", err))
		return
	}

	if err := c.queue.Enqueue(context.Background(), msg); err != nil {
		c.logger.Error("failed to queue notification",
			slog.String("id", msg.ID),
			slog.String("kind", string(msg.Kind)),
			slog.Any("error", err),
		)
	}
}

// Stop drains the subscription so buffered messages reach the queue.
func (c *NATSConsumer) Stop() error {
	if c.sub == nil {
		return nil
	}
	return c.sub.Drain()
}
