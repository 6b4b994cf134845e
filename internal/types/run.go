package types

import (
	"fmt"
	"time"
)

// RunRecord is the persisted summary of one copilot turn. The step-by-step
// trace lives in the event log under the same run id.
type RunRecord struct {
	ID          string    `json:"id"`
	Text        string    `json:"text"`
	Intent      Intent    `json:"intent"`
	Strategy    string    `json:"strategy,omitempty"`
	Outcome     string    `json:"outcome"`
	Response    string    `json:"response"`
	Iterations  int       `json:"iterations"`
	Steps       int       `json:"steps"`
	ApprovalID  string    `json:"approval_id,omitempty"`
	Error       string    `json:"error,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
}

// Validate checks if the run record has valid field values
func (r *RunRecord) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("id is required")
	}
	if !r.Intent.IsValid() {
		return fmt.Errorf("invalid intent: %s", r.Intent)
	}
	if r.CompletedAt.Before(r.StartedAt) {
		return fmt.Errorf("completed_at cannot be before started_at")
	}
	return nil
}

// Duration is how long the turn took
func (r *RunRecord) Duration() time.Duration {
	return r.CompletedAt.Sub(r.StartedAt)
}
