package types

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrApprovalNotFound is returned for an approval id that was never created
	ErrApprovalNotFound = errors.New("approval not found")

	// ErrApprovalNotPending is returned when resolving an approval twice
	ErrApprovalNotPending = errors.New("approval is not pending")
)

// ApprovalStatus tracks the lifecycle of a pending approval
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

// IsValid checks if the approval status value is valid
func (s ApprovalStatus) IsValid() bool {
	switch s {
	case ApprovalPending, ApprovalApproved, ApprovalRejected:
		return true
	}
	return false
}

// IsTerminal reports whether the approval has been resolved
func (s ApprovalStatus) IsTerminal() bool {
	return s == ApprovalApproved || s == ApprovalRejected
}

// Decision is a reviewer's answer to a pending approval
type Decision string

const (
	DecisionApproved Decision = "APPROVED"
	DecisionRejected Decision = "REJECTED"
)

// ParseDecision accepts the spellings reviewers actually type
func ParseDecision(s string) (Decision, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "approved", "approve", "yes", "y":
		return DecisionApproved, nil
	case "rejected", "reject", "no", "n":
		return DecisionRejected, nil
	}
	return "", fmt.Errorf("invalid decision %q (expected approved or rejected)", s)
}

// Status maps the decision onto the approval status it produces
func (d Decision) Status() ApprovalStatus {
	if d == DecisionApproved {
		return ApprovalApproved
	}
	return ApprovalRejected
}

// PendingApproval is the externalized state of a turn suspended for sign-off.
// It is consumed exactly once by an approve or reject.
type PendingApproval struct {
	ID             string         `json:"id"`
	RunID          string         `json:"run_id"`
	CreatedAt      time.Time      `json:"created_at"`
	UserText       string         `json:"user_text"`
	Intent         Intent         `json:"intent"`
	HedgeType      HedgeType      `json:"hedge_type"`
	Proposed       float64        `json:"proposed"`
	MaxAllowed     float64        `json:"max_allowed"`
	Recommendation float64        `json:"recommendation"`
	Audit          AuditResult    `json:"audit"`
	Trace          []ThinkingStep `json:"trace"`
	Status         ApprovalStatus `json:"status"`
	ReviewedBy     string         `json:"reviewed_by,omitempty"`
	ReviewedAt     *time.Time     `json:"reviewed_at,omitempty"`
	Reason         string         `json:"reason,omitempty"`
}

// Validate checks if the pending approval has valid field values
func (p *PendingApproval) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("id is required")
	}
	if !p.Intent.IsAuditable() {
		return fmt.Errorf("only hedge adjustments can await approval (got %s)", p.Intent)
	}
	if !p.Status.IsValid() {
		return fmt.Errorf("invalid status: %s", p.Status)
	}
	if p.Recommendation > p.MaxAllowed {
		return fmt.Errorf("recommendation %.4f exceeds max allowed %.4f", p.Recommendation, p.MaxAllowed)
	}
	return nil
}
