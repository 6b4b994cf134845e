package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// EventCounts holds event count statistics for monitoring
type EventCounts struct {
	TotalEvents      int
	EventsByRun      map[string]int
	EventsBySeverity map[string]int
	EventsByType     map[string]int
}

// CleanupEventsByAge deletes events older than the retention period.
// Info and warning events go after retentionDays, error and critical
// events (including approval decisions) after criticalRetentionDays.
func (s *SQLiteStorage) CleanupEventsByAge(ctx context.Context, retentionDays, criticalRetentionDays, batchSize int) (int, error) {
	if retentionDays < 0 || criticalRetentionDays < 0 {
		return 0, fmt.Errorf("retention days cannot be negative")
	}
	if batchSize < 1 {
		return 0, fmt.Errorf("batch size must be at least 1")
	}

	now := time.Now().UTC()
	totalDeleted := 0

	deleted, err := s.deleteOldEventsBatch(ctx, now.AddDate(0, 0, -retentionDays), []string{"info", "warning"}, batchSize)
	totalDeleted += deleted
	if err != nil {
		return totalDeleted, fmt.Errorf("failed to delete old regular events: %w", err)
	}

	deleted, err = s.deleteOldEventsBatch(ctx, now.AddDate(0, 0, -criticalRetentionDays), []string{"error", "critical"}, batchSize)
	totalDeleted += deleted
	if err != nil {
		return totalDeleted, fmt.Errorf("failed to delete old critical events: %w", err)
	}

	return totalDeleted, nil
}

func (s *SQLiteStorage) deleteOldEventsBatch(ctx context.Context, cutoff time.Time, severities []string, batchSize int) (int, error) {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(severities)), ", ")
	query := fmt.Sprintf(`
		DELETE FROM events
		WHERE id IN (
			SELECT id FROM events
			WHERE timestamp < ?
			AND severity IN (%s)
			ORDER BY timestamp ASC
			LIMIT ?
		)
	`, placeholders)

	args := []interface{}{cutoff}
	for _, sev := range severities {
		args = append(args, sev)
	}
	args = append(args, batchSize)

	totalDeleted := 0
	for {
		if err := ctx.Err(); err != nil {
			return totalDeleted, err
		}

		n, err := s.execDelete(ctx, query, args...)
		totalDeleted += n
		if err != nil {
			return totalDeleted, err
		}
		if n < batchSize {
			return totalDeleted, nil
		}
	}
}

// CleanupEventsByRunLimit caps the events kept per run. For each run over
// perRunLimit the oldest info and warning events are deleted; error and
// critical events are exempt. A limit of 0 means unlimited.
func (s *SQLiteStorage) CleanupEventsByRunLimit(ctx context.Context, perRunLimit, batchSize int) (int, error) {
	if perRunLimit < 0 {
		return 0, fmt.Errorf("per-run limit cannot be negative")
	}
	if perRunLimit == 0 {
		return 0, nil
	}
	if batchSize < 1 {
		return 0, fmt.Errorf("batch size must be at least 1")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, COUNT(*) AS event_count
		FROM events
		WHERE run_id != ''
		GROUP BY run_id
		HAVING event_count > ?
	`, perRunLimit)
	if err != nil {
		return 0, fmt.Errorf("failed to query run event counts: %w", err)
	}

	type runCount struct {
		runID string
		count int
	}
	var over []runCount
	for rows.Next() {
		var rc runCount
		if err := rows.Scan(&rc.runID, &rc.count); err != nil {
			_ = rows.Close()
			return 0, fmt.Errorf("failed to scan run count: %w", err)
		}
		over = append(over, rc)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return 0, fmt.Errorf("error iterating run counts: %w", err)
	}
	_ = rows.Close()

	totalDeleted := 0
	for _, rc := range over {
		if err := ctx.Err(); err != nil {
			return totalDeleted, err
		}
		deleted, err := s.deleteOldestNonCritical(ctx, rc.runID, rc.count-perRunLimit, batchSize)
		totalDeleted += deleted
		if err != nil {
			return totalDeleted, fmt.Errorf("failed to delete events for run %s: %w", rc.runID, err)
		}
	}
	return totalDeleted, nil
}

// CleanupEventsByGlobalLimit deletes the oldest non-critical events once
// the table holds more than globalLimit rows.
func (s *SQLiteStorage) CleanupEventsByGlobalLimit(ctx context.Context, globalLimit, batchSize int) (int, error) {
	if globalLimit < 1 {
		return 0, fmt.Errorf("global limit must be at least 1")
	}
	if batchSize < 1 {
		return 0, fmt.Errorf("batch size must be at least 1")
	}

	var currentCount int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM events").Scan(&currentCount); err != nil {
		return 0, fmt.Errorf("failed to get event count: %w", err)
	}
	if currentCount <= globalLimit {
		return 0, nil
	}

	return s.deleteOldestNonCritical(ctx, "", currentCount-globalLimit, batchSize)
}

// deleteOldestNonCritical removes up to count info/warning events, oldest
// first. An empty runID spans every run.
func (s *SQLiteStorage) deleteOldestNonCritical(ctx context.Context, runID string, count, batchSize int) (int, error) {
	query := `
		DELETE FROM events
		WHERE id IN (
			SELECT id FROM events
			WHERE severity NOT IN ('error', 'critical')
			AND (? = '' OR run_id = ?)
			ORDER BY timestamp ASC
			LIMIT ?
		)
	`

	totalDeleted := 0
	remaining := count
	for remaining > 0 {
		if err := ctx.Err(); err != nil {
			return totalDeleted, err
		}

		limit := batchSize
		if remaining < batchSize {
			limit = remaining
		}

		n, err := s.execDelete(ctx, query, runID, runID, limit)
		totalDeleted += n
		remaining -= n
		if err != nil {
			return totalDeleted, err
		}
		// Fewer than requested: only critical events are left
		if n < limit {
			break
		}
	}
	return totalDeleted, nil
}

func (s *SQLiteStorage) execDelete(ctx context.Context, query string, args ...interface{}) (int, error) {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to execute delete: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(n), nil
}

// GetEventCounts returns event count statistics for monitoring
func (s *SQLiteStorage) GetEventCounts(ctx context.Context) (*EventCounts, error) {
	counts := &EventCounts{
		EventsByRun:      make(map[string]int),
		EventsBySeverity: make(map[string]int),
		EventsByType:     make(map[string]int),
	}

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM events").Scan(&counts.TotalEvents); err != nil {
		return nil, fmt.Errorf("failed to get total event count: %w", err)
	}

	groups := []struct {
		column string
		into   map[string]int
	}{
		{"run_id", counts.EventsByRun},
		{"severity", counts.EventsBySeverity},
		{"type", counts.EventsByType},
	}
	for _, g := range groups {
		if err := s.countBy(ctx, g.column, g.into); err != nil {
			return nil, err
		}
	}
	return counts, nil
}

// countBy fills into with COUNT(*) grouped by a fixed column name
func (s *SQLiteStorage) countBy(ctx context.Context, column string, into map[string]int) error {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`SELECT %s, COUNT(*) FROM events GROUP BY %s`, column, column))
	if err != nil {
		return fmt.Errorf("failed to query events by %s: %w", column, err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var key string
		var count int
		if err := rows.Scan(&key, &count); err != nil {
			return fmt.Errorf("failed to scan %s count: %w", column, err)
		}
		into[key] = count
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating %s counts: %w", column, err)
	}
	return nil
}

// VacuumDatabase runs VACUUM to reclaim disk space. It locks the database
// while it runs.
func (s *SQLiteStorage) VacuumDatabase(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "VACUUM"); err != nil {
		return fmt.Errorf("failed to vacuum database: %w", err)
	}
	return nil
}
