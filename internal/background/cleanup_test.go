package background

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/BradenHooton/projectgrid/internal/observability/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTokenStore struct {
	mu      sync.Mutex
	deleted int64
	err     error
	calls   []time.Time
}

func (f *fakeTokenStore) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, now)
	return f.deleted, f.err
}

func (f *fakeTokenStore) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunOnce_DeletesAndCounts(t *testing.T) {
	store := &fakeTokenStore{deleted: 3}
	cm := NewCleanupManager(store, quietLogger(), time.Minute)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cm.now = func() time.Time { return fixed }

	before := testutil.ToFloat64(metrics.ExpiredTokensDeletedTotal)
	n := cm.RunOnce(context.Background())

	assert.Equal(t, int64(3), n)
	require.Len(t, store.calls, 1)
	assert.True(t, store.calls[0].Equal(fixed))
	assert.Equal(t, before+3, testutil.ToFloat64(metrics.ExpiredTokensDeletedTotal))
}

func TestRunOnce_StoreError(t *testing.T) {
	store := &fakeTokenStore{err: errors.New("connection refused")}
	cm := NewCleanupManager(store, quietLogger(), time.Minute)

	before := testutil.ToFloat64(metrics.ExpiredTokensDeletedTotal)
	assert.Equal(t, int64(0), cm.RunOnce(context.Background()))
	assert.Equal(t, before, testutil.ToFloat64(metrics.ExpiredTokensDeletedTotal))
}

func TestStart_RunsImmediatelyAndStops(t *testing.T) {
	store := &fakeTokenStore{}
	cm := NewCleanupManager(store, quietLogger(), time.Hour)

	done := make(chan struct{})
	go func() {
		cm.Start(context.Background())
		close(done)
	}()

	require.Eventually(t, func() bool { return store.callCount() == 1 }, time.Second, 10*time.Millisecond)
	cm.Stop()
	cm.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cleanup manager did not stop")
	}
}

func TestStart_ContextCancel(t *testing.T) {
	store := &fakeTokenStore{}
	cm := NewCleanupManager(store, quietLogger(), 0)
	assert.Equal(t, time.Hour, cm.interval)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		cm.Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return store.callCount() == 1 }, time.Second, 10*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cleanup manager ignored context cancellation")
	}
}
