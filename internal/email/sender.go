// Package email delivers transactional mail for the account flows.
package email

import (
	"context"
	"errors"
	"log/slog"

	"github.com/BradenHooton/projectgrid/pkg/logger"
)

// ErrThrottled is returned when a recipient exceeded the resend limit
var ErrThrottled = errors.New("email send limit reached for recipient")

// Message is a single outbound email
type Message struct {
	To       string
	Subject  string
	HTMLBody string
	TextBody string
}

// Sender delivers a message. A nil error means the provider accepted it.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// LogSender writes messages to the log instead of delivering them (development)
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return errors.New("recipient is required")
	}
	s.logger.InfoContext(ctx, "email not delivered (log provider)",
		slog.String("to", logger.SanitizedEmail(msg.To)),
		slog.String("subject", msg.Subject),
		slog.String("body", msg.TextBody),
	)
	return nil
}

// SenderFunc adapts a function to Sender
type SenderFunc func(ctx context.Context, msg Message) error

func (f SenderFunc) Send(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}
