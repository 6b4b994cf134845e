package events

import (
	"context"
	"time"
)

// EventType represents the type of event recorded on the audit trail.
type EventType string

const (
	// Turn lifecycle
	// EventTypeTurnStarted indicates a user request entered the refinement loop
	EventTypeTurnStarted EventType = "turn_started"
	// EventTypeThinkingStep records one node execution of the loop
	EventTypeThinkingStep EventType = "thinking_step"
	// EventTypeTurnCompleted indicates the loop reached DONE or SUSPENDED
	EventTypeTurnCompleted EventType = "turn_completed"

	// Approval gate
	// EventTypeApprovalRequested indicates a failed audit was escalated for sign-off
	EventTypeApprovalRequested EventType = "approval_requested"
	// EventTypeApprovalResolved indicates a reviewer approved or rejected
	EventTypeApprovalResolved EventType = "approval_resolved"

	// Infrastructure
	// EventTypeSnapshotReloaded indicates the risk snapshot file was reloaded
	EventTypeSnapshotReloaded EventType = "snapshot_reloaded"
	// EventTypeBudgetAlert indicates the model token budget crossed a threshold
	EventTypeBudgetAlert EventType = "budget_alert"
	// EventTypeEventCleanupCompleted indicates an event retention cycle completed
	EventTypeEventCleanupCompleted EventType = "event_cleanup_completed"
)

// EventSeverity represents the severity level of an event.
// Error and critical events are retained longer.
type EventSeverity string

const (
	SeverityInfo     EventSeverity = "info"
	SeverityWarning  EventSeverity = "warning"
	SeverityError    EventSeverity = "error"
	SeverityCritical EventSeverity = "critical"
)

// Event is one append-only entry of the audit trail.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	// RunID groups the events of one turn
	RunID string `json:"run_id,omitempty"`
	// ApprovalID links approval events to their pending approval
	ApprovalID string                 `json:"approval_id,omitempty"`
	Actor      string                 `json:"actor,omitempty"`
	Severity   EventSeverity          `json:"severity"`
	Message    string                 `json:"message"`
	Data       map[string]interface{} `json:"data"`
}

// ThinkingStepData is the payload of a thinking_step event.
type ThinkingStepData struct {
	// Seq is the step's position in the run's trace, starting at 1
	Seq    int                    `json:"seq"`
	Stage  string                 `json:"stage"`
	Status string                 `json:"status"`
	Detail string                 `json:"detail,omitempty"`
	Tool   string                 `json:"tool,omitempty"`
	Params map[string]interface{} `json:"params,omitempty"`
	Result map[string]interface{} `json:"result,omitempty"`
}

// TurnCompletedData is the payload of a turn_completed event.
type TurnCompletedData struct {
	Intent     string `json:"intent"`
	Strategy   string `json:"strategy,omitempty"`
	Outcome    string `json:"outcome"`
	Steps      int    `json:"steps"`
	Iterations int    `json:"iterations"`
	DurationMs int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

// ApprovalRequestedData is the payload of an approval_requested event.
type ApprovalRequestedData struct {
	HedgeType      string  `json:"hedge_type"`
	Proposed       float64 `json:"proposed"`
	MaxAllowed     float64 `json:"max_allowed"`
	Recommendation float64 `json:"recommendation"`
	Policy         string  `json:"policy"`
}

// ApprovalResolvedData is the payload of an approval_resolved event.
type ApprovalResolvedData struct {
	Decision string `json:"decision"`
	Reviewer string `json:"reviewer"`
	Reason   string `json:"reason,omitempty"`
	// FinalRatio is the ratio in force after the decision
	FinalRatio float64 `json:"final_ratio"`
	// Auto is true when resolved by RISKPILOT_AUTO_APPROVE
	Auto bool `json:"auto,omitempty"`
}

// SnapshotReloadedData is the payload of a snapshot_reloaded event.
type SnapshotReloadedData struct {
	Path  string    `json:"path"`
	AsOf  time.Time `json:"as_of,omitempty"`
	Error string    `json:"error,omitempty"`
}

// EventCleanupCompletedData is the payload of an event_cleanup_completed event.
type EventCleanupCompletedData struct {
	EventsDeleted      int    `json:"events_deleted"`
	TimeBasedDeleted   int    `json:"time_based_deleted"`
	PerRunDeleted      int    `json:"per_run_deleted"`
	GlobalLimitDeleted int    `json:"global_limit_deleted"`
	ProcessingTimeMs   int64  `json:"processing_time_ms"`
	VacuumRan          bool   `json:"vacuum_ran"`
	EventsRemaining    int    `json:"events_remaining"`
	Success            bool   `json:"success"`
	Error              string `json:"error,omitempty"`
}

// EventStore defines the interface for storing and retrieving events.
type EventStore interface {
	StoreEvent(ctx context.Context, event *Event) error
	GetEvents(ctx context.Context, filter EventFilter) ([]*Event, error)
	GetEventsByRun(ctx context.Context, runID string) ([]*Event, error)
	GetRecentEvents(ctx context.Context, limit int) ([]*Event, error)
}

// EventFilter defines criteria for filtering events.
type EventFilter struct {
	RunID      string
	ApprovalID string
	Type       EventType
	Severity   EventSeverity
	AfterTime  time.Time
	BeforeTime time.Time
	Limit      int
}

// IsCritical reports whether the event falls under extended retention
func (s EventSeverity) IsCritical() bool {
	return s == SeverityError || s == SeverityCritical
}
