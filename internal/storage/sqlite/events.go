package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/riskpilot/riskpilot/internal/events"
)

const eventColumns = `id, type, timestamp, run_id, approval_id, actor, severity, message, data`

// StoreEvent appends an event to the audit trail
func (s *SQLiteStorage) StoreEvent(ctx context.Context, event *events.Event) error {
	if event == nil {
		return fmt.Errorf("event is required")
	}
	if event.ID == "" {
		return fmt.Errorf("event id is required")
	}

	data := event.Data
	if data == nil {
		data = map[string]interface{}{}
	}
	dataJSON, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	timestamp := event.Timestamp
	if timestamp.IsZero() {
		timestamp = time.Now()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO events (`+eventColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		event.ID,
		event.Type,
		timestamp.UTC(),
		event.RunID,
		event.ApprovalID,
		event.Actor,
		event.Severity,
		event.Message,
		string(dataJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to store event (type=%s, run=%s): %w", event.Type, event.RunID, err)
	}
	return nil
}

// GetEvents retrieves events matching the filter, most recent first
func (s *SQLiteStorage) GetEvents(ctx context.Context, filter events.EventFilter) ([]*events.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE 1=1`
	args := []interface{}{}

	if filter.RunID != "" {
		query += " AND run_id = ?"
		args = append(args, filter.RunID)
	}
	if filter.ApprovalID != "" {
		query += " AND approval_id = ?"
		args = append(args, filter.ApprovalID)
	}
	if filter.Type != "" {
		query += " AND type = ?"
		args = append(args, filter.Type)
	}
	if filter.Severity != "" {
		query += " AND severity = ?"
		args = append(args, filter.Severity)
	}
	if !filter.AfterTime.IsZero() {
		query += " AND timestamp > ?"
		args = append(args, filter.AfterTime.UTC())
	}
	if !filter.BeforeTime.IsZero() {
		query += " AND timestamp < ?"
		args = append(args, filter.BeforeTime.UTC())
	}

	query += " ORDER BY timestamp DESC, rowid DESC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanEvents(rows)
}

// GetEventsByRun returns a run's events in the order they happened
func (s *SQLiteStorage) GetEventsByRun(ctx context.Context, runID string) ([]*events.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+eventColumns+`
		FROM events
		WHERE run_id = ?
		ORDER BY timestamp ASC, rowid ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query events by run: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanEvents(rows)
}

// GetRecentEvents retrieves the most recent events up to limit
func (s *SQLiteStorage) GetRecentEvents(ctx context.Context, limit int) ([]*events.Event, error) {
	if limit < 1 {
		return nil, fmt.Errorf("limit must be at least 1")
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+eventColumns+`
		FROM events
		ORDER BY timestamp DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]*events.Event, error) {
	var result []*events.Event

	for rows.Next() {
		var event events.Event
		var dataJSON string

		err := rows.Scan(
			&event.ID,
			&event.Type,
			&event.Timestamp,
			&event.RunID,
			&event.ApprovalID,
			&event.Actor,
			&event.Severity,
			&event.Message,
			&dataJSON,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}

		event.Data = make(map[string]interface{})
		if dataJSON != "" && dataJSON != "{}" {
			if err := json.Unmarshal([]byte(dataJSON), &event.Data); err != nil {
				return nil, fmt.Errorf("failed to unmarshal event data: %w", err)
			}
		}

		result = append(result, &event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating event rows: %w", err)
	}
	return result, nil
}
