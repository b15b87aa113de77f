package background

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/BradenHooton/projectgrid/internal/observability/metrics"
)

// ExpiredTokenStore removes verification tokens whose expiry has passed
type ExpiredTokenStore interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// CleanupManager periodically removes expired verification tokens
type CleanupManager struct {
	tokens   ExpiredTokenStore
	logger   *slog.Logger
	interval time.Duration
	now      func() time.Time
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewCleanupManager creates a new cleanup manager
func NewCleanupManager(tokens ExpiredTokenStore, logger *slog.Logger, interval time.Duration) *CleanupManager {
	if interval <= 0 {
		interval = time.Hour
	}
	return &CleanupManager{
		tokens:   tokens,
		logger:   logger,
		interval: interval,
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}
}

// Start runs the cleanup once, then on every tick until Stop or ctx is done
func (cm *CleanupManager) Start(ctx context.Context) {
	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	cm.RunOnce(ctx)

	for {
		select {
		case <-ticker.C:
			cm.RunOnce(ctx)
		case <-cm.stopCh:
			cm.logger.Info("cleanup manager stopped")
			return
		case <-ctx.Done():
			cm.logger.Info("cleanup manager context cancelled")
			return
		}
	}
}

// RunOnce deletes expired tokens and returns how many rows went away
func (cm *CleanupManager) RunOnce(ctx context.Context) int64 {
	cleanupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	rowsDeleted, err := cm.tokens.DeleteExpired(cleanupCtx, cm.now().UTC())
	if err != nil {
		cm.logger.Error("failed to cleanup expired verification tokens", slog.Any("error", err))
		return 0
	}

	if rowsDeleted > 0 {
		metrics.ExpiredTokensDeletedTotal.Add(float64(rowsDeleted))
		cm.logger.Info("expired verification token cleanup completed", slog.Int64("rows_deleted", rowsDeleted))
	}
	return rowsDeleted
}

// Stop signals the cleanup manager to stop. Safe to call more than once.
func (cm *CleanupManager) Stop() {
	cm.stopOnce.Do(func() { close(cm.stopCh) })
}
