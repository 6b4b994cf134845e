package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/riskpilot/riskpilot/internal/types"
)

const approvalColumns = `id, run_id, created_at, user_text, intent, hedge_type, proposed,
	max_allowed, recommendation, audit, trace, status, reviewed_by, reviewed_at, reason`

// CreateApproval persists a suspended turn
func (s *SQLiteStorage) CreateApproval(ctx context.Context, p *types.PendingApproval) error {
	if p == nil {
		return fmt.Errorf("approval is required")
	}
	if p.Status == "" {
		p.Status = types.ApprovalPending
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	if err := p.Validate(); err != nil {
		return fmt.Errorf("invalid approval: %w", err)
	}

	auditJSON, err := json.Marshal(p.Audit)
	if err != nil {
		return fmt.Errorf("failed to marshal audit: %w", err)
	}
	trace := p.Trace
	if trace == nil {
		trace = []types.ThinkingStep{}
	}
	traceJSON, err := json.Marshal(trace)
	if err != nil {
		return fmt.Errorf("failed to marshal trace: %w", err)
	}

	var reviewedAt interface{}
	if p.ReviewedAt != nil {
		reviewedAt = p.ReviewedAt.UTC()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO approvals (`+approvalColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		p.ID, p.RunID, p.CreatedAt.UTC(), p.UserText, p.Intent, p.HedgeType, p.Proposed,
		p.MaxAllowed, p.Recommendation, string(auditJSON), string(traceJSON), p.Status,
		p.ReviewedBy, reviewedAt, p.Reason,
	)
	if err != nil {
		return fmt.Errorf("failed to create approval %s: %w", p.ID, err)
	}
	return nil
}

// GetApproval loads one approval. Unknown ids return types.ErrApprovalNotFound.
func (s *SQLiteStorage) GetApproval(ctx context.Context, id string) (*types.PendingApproval, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+approvalColumns+` FROM approvals WHERE id = ?`, id)
	p, err := scanApproval(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", types.ErrApprovalNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get approval %s: %w", id, err)
	}
	return p, nil
}

// ListApprovals returns approvals oldest first. An empty status lists all.
func (s *SQLiteStorage) ListApprovals(ctx context.Context, status types.ApprovalStatus) ([]*types.PendingApproval, error) {
	query := `SELECT ` + approvalColumns + ` FROM approvals`
	args := []interface{}{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at ASC, rowid ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list approvals: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []*types.PendingApproval
	for rows.Next() {
		p, err := scanApproval(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan approval: %w", err)
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating approval rows: %w", err)
	}
	return result, nil
}

// ResolveApproval moves a pending approval to approved or rejected. The
// status check and the update are a single statement, so of two concurrent
// resolutions exactly one succeeds; the other gets
// types.ErrApprovalNotPending.
func (s *SQLiteStorage) ResolveApproval(ctx context.Context, id string, status types.ApprovalStatus, reviewer, reason string, at time.Time) (*types.PendingApproval, error) {
	if !status.IsTerminal() {
		return nil, fmt.Errorf("invalid resolution status: %s", status)
	}
	if reviewer == "" {
		return nil, fmt.Errorf("reviewer is required")
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE approvals
		SET status = ?, reviewed_by = ?, reviewed_at = ?, reason = ?
		WHERE id = ? AND status = ?
	`, status, reviewer, at.UTC(), reason, id, types.ApprovalPending)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve approval %s: %w", id, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}

	p, err := s.GetApproval(ctx, id)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return p, fmt.Errorf("%w: %s is %s", types.ErrApprovalNotPending, id, p.Status)
	}
	return p, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanApproval(row rowScanner) (*types.PendingApproval, error) {
	var p types.PendingApproval
	var auditJSON, traceJSON string
	var reviewedAt sql.NullTime

	err := row.Scan(
		&p.ID, &p.RunID, &p.CreatedAt, &p.UserText, &p.Intent, &p.HedgeType, &p.Proposed,
		&p.MaxAllowed, &p.Recommendation, &auditJSON, &traceJSON, &p.Status,
		&p.ReviewedBy, &reviewedAt, &p.Reason,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(auditJSON), &p.Audit); err != nil {
		return nil, fmt.Errorf("failed to unmarshal audit: %w", err)
	}
	if err := json.Unmarshal([]byte(traceJSON), &p.Trace); err != nil {
		return nil, fmt.Errorf("failed to unmarshal trace: %w", err)
	}
	if reviewedAt.Valid {
		t := reviewedAt.Time
		p.ReviewedAt = &t
	}
	return &p, nil
}
