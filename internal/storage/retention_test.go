package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riskpilot/riskpilot/internal/config"
	"github.com/riskpilot/riskpilot/internal/events"
	"github.com/riskpilot/riskpilot/internal/logging"
)

func newRetentionStore(t *testing.T) Storage {
	t.Helper()
	store, err := NewStorage(context.Background(), &Config{Path: filepath.Join(t.TempDir(), "riskpilot.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func seed(t *testing.T, store Storage, runID string, severity events.EventSeverity, age time.Duration, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		e := events.NewEvent(events.EventTypeThinkingStep, runID, severity, fmt.Sprintf("step %d", i), nil)
		e.Timestamp = time.Now().Add(-age).Add(time.Duration(i) * time.Millisecond)
		require.NoError(t, store.StoreEvent(context.Background(), e))
	}
}

func TestRunEventCleanup(t *testing.T) {
	ctx := context.Background()
	store := newRetentionStore(t)

	day := 24 * time.Hour
	seed(t, store, "old", events.SeverityInfo, 40*day, 5)
	seed(t, store, "old", events.SeverityCritical, 40*day, 1)
	seed(t, store, "busy", events.SeverityInfo, time.Hour, 25)

	cfg := config.DefaultEventRetentionConfig()
	cfg.PerRunLimitEvents = 20
	cfg.CleanupBatchSize = 100
	cfg.CleanupVacuum = true

	res, err := RunEventCleanup(ctx, store, cfg, logging.Discard())
	require.NoError(t, err)
	assert.Equal(t, 5, res.TimeBased)
	assert.Equal(t, 5, res.PerRun)
	assert.Equal(t, 0, res.GlobalLimit)
	assert.True(t, res.VacuumRan)
	assert.Equal(t, 21, res.Remaining)

	recorded, err := store.GetEvents(ctx, events.EventFilter{Type: events.EventTypeEventCleanupCompleted, Limit: 5})
	require.NoError(t, err)
	require.Len(t, recorded, 1)
	data, err := recorded[0].GetEventCleanupCompletedData()
	require.NoError(t, err)
	assert.True(t, data.Success)
	assert.Equal(t, 10, data.EventsDeleted)
	assert.Equal(t, 5, data.PerRunDeleted)
}

func TestRunEventCleanupNothingToDo(t *testing.T) {
	store := newRetentionStore(t)
	seed(t, store, "r1", events.SeverityInfo, time.Minute, 3)

	res, err := RunEventCleanup(context.Background(), store, config.DefaultEventRetentionConfig(), logging.Discard())
	require.NoError(t, err)
	assert.Zero(t, res.Total())
	assert.False(t, res.VacuumRan)
	assert.Equal(t, 3, res.Remaining)
}

func TestEventCleanupLoopStopsOnCancel(t *testing.T) {
	store := newRetentionStore(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		EventCleanupLoop(ctx, store, config.DefaultEventRetentionConfig(), logging.Discard())
		close(done)
	}()

	require.Eventually(t, func() bool {
		recorded, err := store.GetEvents(context.Background(), events.EventFilter{Type: events.EventTypeEventCleanupCompleted, Limit: 1})
		return err == nil && len(recorded) == 1
	}, 5*time.Second, 10*time.Millisecond, "initial cleanup should run immediately")

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("cleanup loop did not stop after cancel")
	}
}

func TestEventCleanupLoopDisabled(t *testing.T) {
	store := newRetentionStore(t)
	cfg := config.DefaultEventRetentionConfig()
	cfg.CleanupEnabled = false

	// Returns without blocking
	EventCleanupLoop(context.Background(), store, cfg, logging.Discard())

	cfg = config.DefaultEventRetentionConfig()
	cfg.RetentionDays = 0
	EventCleanupLoop(context.Background(), store, cfg, logging.Discard())

	counts, err := store.GetEventCounts(context.Background())
	require.NoError(t, err)
	assert.Zero(t, counts.TotalEvents)
}
