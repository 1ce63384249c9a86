package logger

import (
	"context"
	"log/slog"
	"time"
)

// AuditEvent represents a security audit event
type AuditEvent struct {
	EventType     string
	AccountID     string
	Identifier    string
	IPAddress     string
	UserAgent     string
	Success       bool
	FailureReason string
	Metadata      map[string]string
}

// AuditLogger writes security and back-office events to the audit stream.
type AuditLogger struct {
	logger *slog.Logger
}

func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	return &AuditLogger{
		logger: logger.With(slog.String("stream", "audit")),
	}
}

// LogAuthAttempt logs login outcomes. Identifiers that look like emails are masked.
func (al *AuditLogger) LogAuthAttempt(ctx context.Context, event AuditEvent) {
	attrs := []slog.Attr{
		slog.String("audit_type", "auth"),
		slog.String("event_type", event.EventType),
		slog.Bool("success", event.Success),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}

	if event.AccountID != "" {
		attrs = append(attrs, slog.String("account_id", event.AccountID))
	}
	if event.Identifier != "" {
		attrs = append(attrs, slog.String("identifier", SanitizedIdentifier(event.Identifier)))
	}
	if event.IPAddress != "" {
		attrs = append(attrs, slog.String("ip_address", event.IPAddress))
	}
	if event.UserAgent != "" {
		attrs = append(attrs, slog.String("user_agent", event.UserAgent))
	}
	if event.FailureReason != "" {
		attrs = append(attrs, slog.String("failure_reason", event.FailureReason))
	}
	for key, val := range event.Metadata {
		attrs = append(attrs, slog.String(key, val))
	}

	level := slog.LevelInfo
	if !event.Success {
		level = slog.LevelWarn
	}
	al.logger.LogAttrs(ctx, level, "audit", attrs...)
}

// LogLockout records an account entering the locked state.
func (al *AuditLogger) LogLockout(ctx context.Context, accountID, ipAddress string, until time.Time) {
	al.logger.LogAttrs(ctx, slog.LevelWarn, "audit",
		slog.String("audit_type", "auth"),
		slog.String("event_type", "account_locked"),
		slog.String("account_id", accountID),
		slog.String("ip_address", ipAddress),
		slog.Time("locked_until", until.UTC()),
	)
}

func (al *AuditLogger) LogPasswordChange(ctx context.Context, accountID, ipAddress string, success bool) {
	attrs := []slog.Attr{
		slog.String("audit_type", "password"),
		slog.String("event_type", "password_change"),
		slog.Bool("success", success),
		slog.String("account_id", accountID),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}

	if ipAddress != "" {
		attrs = append(attrs, slog.String("ip_address", ipAddress))
	}

	level := slog.LevelInfo
	if !success {
		level = slog.LevelWarn
	}
	al.logger.LogAttrs(ctx, level, "audit", attrs...)
}

// LogAccountAction logs actions one account performs on another or on a record.
func (al *AuditLogger) LogAccountAction(ctx context.Context, eventType, actorID, targetID string, metadata map[string]string) {
	attrs := []slog.Attr{
		slog.String("audit_type", "account"),
		slog.String("event_type", eventType),
		slog.String("actor_id", actorID),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}

	if targetID != "" {
		attrs = append(attrs, slog.String("target_id", targetID))
	}

	for key, val := range metadata {
		attrs = append(attrs, slog.String(key, val))
	}

	al.logger.LogAttrs(ctx, slog.LevelInfo, "audit", attrs...)
}
