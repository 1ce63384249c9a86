// Package notify delivers transactional email outside the request path.
// Producers call Dispatcher.Enqueue; delivery, retries and failure reporting
// happen on background workers or on a NATS consumer.
package notify

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

type Kind string

const (
	KindAppointmentConfirmation Kind = "appointment.confirmation"
	KindAppointmentAlert        Kind = "appointment.alert"
	KindAppointmentStatus       Kind = "appointment.status"
	KindContactReceipt          Kind = "contact.receipt"
	KindContactAlert            Kind = "contact.alert"
	KindReviewAlert             Kind = "review.alert"
	KindPasswordReset           Kind = "admin.password_reset"
)

var (
	ErrQueueFull   = errors.New("notification queue is full")
	ErrQueueClosed = errors.New("notification queue is closed")
	ErrUnknownKind = errors.New("unknown notification kind")
	ErrNoRecipient = errors.New("notification has no recipient")
)

// Message is a request to send one templated email. Data feeds the template.
type Message struct {
	ID        string            `json:"id"`
	Kind      Kind              `json:"kind"`
	To        string            `json:"to"`
	Data      map[string]string `json:"data"`
	CreatedAt time.Time         `json:"created_at"`
}

func NewMessage(kind Kind, to string, data map[string]string) Message {
	return Message{
		ID:        uuid.New().String(),
		Kind:      kind,
		To:        to,
		Data:      data,
		CreatedAt: time.Now().UTC(),
	}
}

// Dispatcher accepts messages for asynchronous delivery. Enqueue never waits
// on a mail provider.
type Dispatcher interface {
	Enqueue(ctx context.Context, msg Message) error
}

// Email is a rendered message ready for a Mailer.
type Email struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// Mailer sends one rendered email.
type Mailer interface {
	Send(ctx context.Context, email Email) error
}
