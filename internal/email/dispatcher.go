package email

import (
	"context"
	"log/slog"
	"time"

	"github.com/BradenHooton/projectgrid/internal/observability/metrics"
	"github.com/BradenHooton/projectgrid/pkg/logger"
)

// Dispatcher bounds every send with a timeout and records the outcome
type Dispatcher struct {
	sender  Sender
	timeout time.Duration
	logger  *slog.Logger
}

func NewDispatcher(sender Sender, timeout time.Duration, logger *slog.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{sender: sender, timeout: timeout, logger: logger}
}

func (d *Dispatcher) Send(ctx context.Context, msg Message) error {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	start := time.Now()
	err := d.sender.Send(ctx, msg)
	metrics.EmailsSentTotal.WithLabelValues(metrics.Result(err)).Inc()

	if err != nil {
		d.logger.WarnContext(ctx, "email dispatch failed",
			slog.String("to", logger.SanitizedEmail(msg.To)),
			slog.String("subject", msg.Subject),
			slog.Duration("elapsed", time.Since(start)),
			slog.Any("error", err))
		return err
	}

	d.logger.DebugContext(ctx, "email dispatched",
		slog.String("to", logger.SanitizedEmail(msg.To)),
		slog.Duration("elapsed", time.Since(start)))
	return nil
}
