package types

import (
	"fmt"
	"time"
)

// AuditStatus is the verdict of a compliance audit
type AuditStatus string

const (
	AuditPass AuditStatus = "PASS"
	AuditFail AuditStatus = "FAIL"
)

// AuditResult is the outcome of checking a hedge proposal against its limit.
// Recommendation is set if and only if Status is FAIL.
type AuditResult struct {
	Status         AuditStatus `json:"status"`
	HedgeType      HedgeType   `json:"hedge_type"`
	Proposed       float64     `json:"proposed"`
	MaxAllowed     float64     `json:"max_allowed"`
	Recommendation *float64    `json:"recommendation,omitempty"`
}

// Passed reports whether the proposal is within its limit
func (a AuditResult) Passed() bool {
	return a.Status == AuditPass
}

// Validate checks the recommendation invariant
func (a AuditResult) Validate() error {
	switch a.Status {
	case AuditPass:
		if a.Recommendation != nil {
			return fmt.Errorf("passing audit must not carry a recommendation")
		}
	case AuditFail:
		if a.Recommendation == nil {
			return fmt.Errorf("failing audit must carry a recommendation")
		}
		if *a.Recommendation > a.MaxAllowed {
			return fmt.Errorf("recommendation %.4f exceeds max allowed %.4f", *a.Recommendation, a.MaxAllowed)
		}
	default:
		return fmt.Errorf("invalid audit status: %s", a.Status)
	}
	return nil
}

// StepStatus is the outcome marker of a thinking step
type StepStatus string

const (
	StepRunning StepStatus = "running"
	StepSuccess StepStatus = "success"
	StepWarning StepStatus = "warning"
	StepError   StepStatus = "error"
	StepPending StepStatus = "pending"
)

// IsValid checks if the step status value is valid
func (s StepStatus) IsValid() bool {
	switch s {
	case StepRunning, StepSuccess, StepWarning, StepError, StepPending:
		return true
	}
	return false
}

// Stage names the loop node that produced a step
type Stage string

const (
	StageAnalyze   Stage = "ANALYZE"
	StageCalculate Stage = "CALCULATE"
	StageAudit     Stage = "AUDIT"
	StageRefine    Stage = "REFINE"
	StageRespond   Stage = "RESPOND"
	StageApproval  Stage = "APPROVAL"
)

// ToolCall records which tool a step invoked, with what, and what came back
type ToolCall struct {
	Name   string                 `json:"name"`
	Params map[string]interface{} `json:"params,omitempty"`
	Result map[string]interface{} `json:"result,omitempty"`
}

// ThinkingStep is one append-only entry of a run's audit trail.
// Steps are for observability; nothing branches on them.
type ThinkingStep struct {
	Stage     Stage      `json:"stage"`
	Status    StepStatus `json:"status"`
	Message   string     `json:"message"`
	Detail    string     `json:"detail,omitempty"`
	Tool      *ToolCall  `json:"tool,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

// NewStep creates a step stamped with the current time
func NewStep(stage Stage, status StepStatus, message string) ThinkingStep {
	return ThinkingStep{
		Stage:     stage,
		Status:    status,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// WithDetail returns a copy of the step with detail text
func (s ThinkingStep) WithDetail(format string, args ...interface{}) ThinkingStep {
	s.Detail = fmt.Sprintf(format, args...)
	return s
}

// WithTool returns a copy of the step with tool metadata
func (s ThinkingStep) WithTool(name string, params, result map[string]interface{}) ThinkingStep {
	s.Tool = &ToolCall{Name: name, Params: params, Result: result}
	return s
}
