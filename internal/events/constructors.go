package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/riskpilot/riskpilot/internal/types"
)

// NewEvent creates an Event with free-form data.
func NewEvent(eventType EventType, runID string, severity EventSeverity, message string, data map[string]interface{}) *Event {
	if data == nil {
		data = make(map[string]interface{})
	}
	return &Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now(),
		RunID:     runID,
		Severity:  severity,
		Message:   message,
		Data:      data,
	}
}

// NewTurnStartedEvent records the user text that opened a run.
func NewTurnStartedEvent(runID, actor, text string) *Event {
	event := NewEvent(EventTypeTurnStarted, runID, SeverityInfo, "Turn started", map[string]interface{}{"text": text})
	event.Actor = actor
	return event
}

// NewStepEvent converts the seq-th thinking step of a run into an event.
// The step's own timestamp is kept so the stored trace replays in order.
func NewStepEvent(runID string, seq int, step types.ThinkingStep) (*Event, error) {
	event := &Event{
		ID:        uuid.New().String(),
		Type:      EventTypeThinkingStep,
		Timestamp: step.Timestamp,
		RunID:     runID,
		Severity:  SeverityForStep(step.Status),
		Message:   step.Message,
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	data := ThinkingStepData{
		Seq:    seq,
		Stage:  string(step.Stage),
		Status: string(step.Status),
		Detail: step.Detail,
	}
	if step.Tool != nil {
		data.Tool = step.Tool.Name
		data.Params = step.Tool.Params
		data.Result = step.Tool.Result
	}
	if err := event.SetThinkingStepData(data); err != nil {
		return nil, err
	}
	return event, nil
}

// NewTurnCompletedEvent records how a run ended.
func NewTurnCompletedEvent(runID string, severity EventSeverity, message string, data TurnCompletedData) (*Event, error) {
	event := NewEvent(EventTypeTurnCompleted, runID, severity, message, nil)
	if err := event.SetTurnCompletedData(data); err != nil {
		return nil, err
	}
	return event, nil
}

// NewApprovalRequestedEvent records an escalation to a human.
func NewApprovalRequestedEvent(runID, approvalID, message string, data ApprovalRequestedData) (*Event, error) {
	event := NewEvent(EventTypeApprovalRequested, runID, SeverityWarning, message, nil)
	event.ApprovalID = approvalID
	if err := event.SetApprovalRequestedData(data); err != nil {
		return nil, err
	}
	return event, nil
}

// NewApprovalResolvedEvent records a reviewer decision. Decisions are
// critical so that retention keeps them with the error history.
func NewApprovalResolvedEvent(runID, approvalID, message string, data ApprovalResolvedData) (*Event, error) {
	event := NewEvent(EventTypeApprovalResolved, runID, SeverityCritical, message, nil)
	event.ApprovalID = approvalID
	event.Actor = data.Reviewer
	if err := event.SetApprovalResolvedData(data); err != nil {
		return nil, err
	}
	return event, nil
}

// NewSnapshotReloadedEvent records a snapshot reload attempt.
func NewSnapshotReloadedEvent(data SnapshotReloadedData) (*Event, error) {
	severity, message := SeverityInfo, "Risk snapshot reloaded"
	if data.Error != "" {
		severity, message = SeverityError, "Risk snapshot reload failed"
	}
	event := NewEvent(EventTypeSnapshotReloaded, "", severity, message, nil)
	if err := event.SetSnapshotReloadedData(data); err != nil {
		return nil, err
	}
	return event, nil
}

// NewEventCleanupCompletedEvent records a retention cycle.
func NewEventCleanupCompletedEvent(data EventCleanupCompletedData) (*Event, error) {
	severity := SeverityInfo
	if !data.Success {
		severity = SeverityError
	}
	event := NewEvent(EventTypeEventCleanupCompleted, "", severity, "Event cleanup completed", nil)
	if err := event.SetEventCleanupCompletedData(data); err != nil {
		return nil, err
	}
	return event, nil
}

// SeverityForStep maps a step outcome to an event severity
func SeverityForStep(status types.StepStatus) EventSeverity {
	switch status {
	case types.StepError:
		return SeverityError
	case types.StepWarning, types.StepPending:
		return SeverityWarning
	}
	return SeverityInfo
}
