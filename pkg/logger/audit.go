package logger

import (
	"context"
	"log/slog"
	"time"
)

// Audit event types
const (
	EventRegister           = "register"
	EventLogin              = "login"
	EventVerificationSent   = "verification_sent"
	EventEmailVerified      = "email_verified"
	EventResetRequested     = "password_reset_requested"
	EventPasswordReset      = "password_reset"
	EventWorkspaceMemberAdd = "workspace_member_added"
)

// AuditEvent represents a security audit event
type AuditEvent struct {
	EventType     string
	UserID        string
	Email         string
	IPAddress     string
	Success       bool
	FailureReason string
	Metadata      map[string]string
}

// AuditLogger writes audit records through slog
type AuditLogger struct {
	logger *slog.Logger
	now    func() time.Time
}

// NewAuditLogger creates a new audit logger
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	return &AuditLogger{
		logger: logger,
		now:    time.Now,
	}
}

// Log records event. Failures are logged at warn level.
func (al *AuditLogger) Log(ctx context.Context, event AuditEvent) {
	if al == nil || al.logger == nil {
		return
	}

	attrs := []slog.Attr{
		slog.String("audit_type", "account"),
		slog.String("event_type", event.EventType),
		slog.Bool("success", event.Success),
		slog.String("timestamp", al.now().UTC().Format(time.RFC3339)),
	}

	if event.UserID != "" {
		attrs = append(attrs, slog.String("user_id", event.UserID))
	}
	if event.Email != "" {
		attrs = append(attrs, slog.String("email", SanitizedEmail(event.Email)))
	}
	if event.IPAddress != "" {
		attrs = append(attrs, slog.String("ip_address", event.IPAddress))
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

// Succeeded logs a successful event for a user
func (al *AuditLogger) Succeeded(ctx context.Context, eventType, userID, email string) {
	al.Log(ctx, AuditEvent{EventType: eventType, UserID: userID, Email: email, Success: true})
}

// Failed logs a failed event with its reason
func (al *AuditLogger) Failed(ctx context.Context, eventType, email, reason string) {
	al.Log(ctx, AuditEvent{EventType: eventType, Email: email, FailureReason: reason})
}
