package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/riskpilot/riskpilot/internal/config"
	"github.com/riskpilot/riskpilot/internal/events"
)

// RetentionResult summarizes one cleanup cycle
type RetentionResult struct {
	TimeBased   int
	PerRun      int
	GlobalLimit int
	VacuumRan   bool
	Remaining   int
}

// Total is the number of events deleted
func (r RetentionResult) Total() int {
	return r.TimeBased + r.PerRun + r.GlobalLimit
}

// RunEventCleanup executes one retention cycle: age, per-run cap, global
// cap, then an optional VACUUM. The outcome is recorded as an
// event_cleanup_completed event, including partial results on failure.
func RunEventCleanup(ctx context.Context, store Storage, cfg config.EventRetentionConfig, logger *slog.Logger) (RetentionResult, error) {
	if logger == nil {
		logger = slog.Default()
	}
	start := time.Now()
	var res RetentionResult

	record := func(cleanupErr error) {
		data := events.EventCleanupCompletedData{
			EventsDeleted:      res.Total(),
			TimeBasedDeleted:   res.TimeBased,
			PerRunDeleted:      res.PerRun,
			GlobalLimitDeleted: res.GlobalLimit,
			ProcessingTimeMs:   time.Since(start).Milliseconds(),
			VacuumRan:          res.VacuumRan,
			EventsRemaining:    res.Remaining,
			Success:            cleanupErr == nil,
		}
		if cleanupErr != nil {
			data.Error = cleanupErr.Error()
		}
		event, err := events.NewEventCleanupCompletedEvent(data)
		if err != nil {
			logger.Warn("failed to build cleanup event", "error", err)
			return
		}
		if err := store.StoreEvent(ctx, event); err != nil {
			logger.Warn("failed to store cleanup event", "error", err)
		}
	}

	deleted, err := store.CleanupEventsByAge(ctx, cfg.RetentionDays, cfg.RetentionCriticalDays, cfg.CleanupBatchSize)
	if err != nil {
		err = fmt.Errorf("time-based cleanup failed: %w", err)
		record(err)
		return res, err
	}
	res.TimeBased = deleted

	deleted, err = store.CleanupEventsByRunLimit(ctx, cfg.PerRunLimitEvents, cfg.CleanupBatchSize)
	if err != nil {
		err = fmt.Errorf("per-run limit cleanup failed: %w", err)
		record(err)
		return res, err
	}
	res.PerRun = deleted

	deleted, err = store.CleanupEventsByGlobalLimit(ctx, cfg.GlobalTrigger(), cfg.CleanupBatchSize)
	if err != nil {
		err = fmt.Errorf("global limit cleanup failed: %w", err)
		record(err)
		return res, err
	}
	res.GlobalLimit = deleted

	if cfg.CleanupVacuum && res.Total() > 0 {
		if err := store.VacuumDatabase(ctx); err != nil {
			logger.Warn("VACUUM failed", "error", err)
		} else {
			res.VacuumRan = true
		}
	}

	if counts, err := store.GetEventCounts(ctx); err != nil {
		logger.Warn("failed to count events", "error", err)
	} else {
		res.Remaining = counts.TotalEvents
	}

	record(nil)
	if res.Total() > 0 || res.VacuumRan {
		logger.Info("event cleanup",
			"deleted", res.Total(),
			"time_based", res.TimeBased,
			"per_run", res.PerRun,
			"global_limit", res.GlobalLimit,
			"vacuum", res.VacuumRan,
			"remaining", res.Remaining,
			"duration", time.Since(start))
	}
	return res, nil
}

// EventCleanupLoop runs RunEventCleanup immediately and then every
// cfg.Interval() until ctx is done. An invalid or disabled configuration
// returns at once.
func EventCleanupLoop(ctx context.Context, store Storage, cfg config.EventRetentionConfig, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("event cleanup disabled: invalid configuration", "error", err)
		return
	}
	if !cfg.CleanupEnabled {
		logger.Info("event cleanup disabled via configuration")
		return
	}

	logger.Info("event cleanup started",
		"interval", cfg.Interval(),
		"retention_days", cfg.RetentionDays,
		"per_run_limit", cfg.PerRunLimitEvents,
		"global_limit", cfg.GlobalLimitEvents)

	if _, err := RunEventCleanup(ctx, store, cfg, logger); err != nil && ctx.Err() == nil {
		logger.Warn("initial event cleanup failed", "error", err)
	}

	ticker := time.NewTicker(cfg.Interval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := RunEventCleanup(ctx, store, cfg, logger); err != nil && ctx.Err() == nil {
				logger.Warn("event cleanup failed", "error", err)
			}
		}
	}
}
