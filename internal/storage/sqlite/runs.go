package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/riskpilot/riskpilot/internal/types"
)

const runColumns = `id, text, intent, strategy, outcome, response, iterations, steps,
	approval_id, error, started_at, completed_at`

// RecordRun saves or replaces the summary of a turn
func (s *SQLiteStorage) RecordRun(ctx context.Context, run *types.RunRecord) error {
	if run == nil {
		return fmt.Errorf("run is required")
	}
	if err := run.Validate(); err != nil {
		return fmt.Errorf("invalid run: %w", err)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (`+runColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			outcome = excluded.outcome,
			response = excluded.response,
			iterations = excluded.iterations,
			steps = excluded.steps,
			approval_id = excluded.approval_id,
			error = excluded.error,
			completed_at = excluded.completed_at
	`,
		run.ID, run.Text, run.Intent, run.Strategy, run.Outcome, run.Response, run.Iterations,
		run.Steps, run.ApprovalID, run.Error, run.StartedAt.UTC(), run.CompletedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record run %s: %w", run.ID, err)
	}
	return nil
}

// GetRun loads a run summary, or nil when the id is unknown
func (s *SQLiteStorage) GetRun(ctx context.Context, id string) (*types.RunRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run %s: %w", id, err)
	}
	return run, nil
}

// ListRuns returns the most recent runs first
func (s *SQLiteStorage) ListRuns(ctx context.Context, limit int) ([]*types.RunRecord, error) {
	if limit < 1 {
		return nil, fmt.Errorf("limit must be at least 1")
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+runColumns+`
		FROM runs
		ORDER BY started_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []*types.RunRecord
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		result = append(result, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating run rows: %w", err)
	}
	return result, nil
}

func scanRun(row rowScanner) (*types.RunRecord, error) {
	var run types.RunRecord
	err := row.Scan(
		&run.ID, &run.Text, &run.Intent, &run.Strategy, &run.Outcome, &run.Response,
		&run.Iterations, &run.Steps, &run.ApprovalID, &run.Error, &run.StartedAt, &run.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &run, nil
}
