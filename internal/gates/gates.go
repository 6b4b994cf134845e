// Package gates wraps the refinement loop with the human approval gate and
// persists every turn to the audit trail.
package gates

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/riskpilot/riskpilot/internal/events"
	"github.com/riskpilot/riskpilot/internal/loop"
	"github.com/riskpilot/riskpilot/internal/respond"
	"github.com/riskpilot/riskpilot/internal/storage"
	"github.com/riskpilot/riskpilot/internal/types"
)

// EnvAutoApprove resolves every escalation immediately as APPROVED by "auto"
const EnvAutoApprove = "RISKPILOT_AUTO_APPROVE"

// AutoReviewer is the reviewer recorded for auto-approved escalations
const AutoReviewer = "auto"

var (
	ErrApprovalNotFound   = types.ErrApprovalNotFound
	ErrApprovalNotPending = types.ErrApprovalNotPending
)

// TurnRunner executes one turn of the refinement loop
type TurnRunner interface {
	Run(ctx context.Context, req loop.Request) (*loop.Result, error)
}

// Config holds approval gate configuration
type Config struct {
	Loop  TurnRunner
	Store storage.Storage
	// Auditor re-checks the recommendation before an approval is applied
	Auditor loop.Auditor

	// Policy defaults to governed
	Policy ApprovalPolicy

	// AutoApprove defaults to RISKPILOT_AUTO_APPROVE=true
	AutoApprove *bool

	Logger *slog.Logger
	Now    func() time.Time // Optional, for tests
}

// Gate runs turns and resolves the approvals they leave behind. It keeps
// no per-turn state; suspended turns live in the store.
type Gate struct {
	loop        TurnRunner
	store       storage.Storage
	auditor     loop.Auditor
	policy      ApprovalPolicy
	autoApprove bool
	logger      *slog.Logger
	now         func() time.Time
}

// New creates an approval gate
func New(cfg *Config) (*Gate, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.Loop == nil {
		return nil, fmt.Errorf("loop is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("storage is required")
	}
	if cfg.Auditor == nil {
		return nil, fmt.Errorf("auditor is required")
	}

	policy := cfg.Policy
	if policy == "" {
		policy = DefaultPolicy
	}
	if !policy.IsValid() {
		return nil, fmt.Errorf("invalid approval policy: %s", policy)
	}

	g := &Gate{
		loop:        cfg.Loop,
		store:       cfg.Store,
		auditor:     cfg.Auditor,
		policy:      policy,
		autoApprove: os.Getenv(EnvAutoApprove) == "true",
		logger:      cfg.Logger,
		now:         cfg.Now,
	}
	if cfg.AutoApprove != nil {
		g.autoApprove = *cfg.AutoApprove
	}
	if g.logger == nil {
		g.logger = slog.Default()
	}
	if g.now == nil {
		g.now = time.Now
	}
	return g, nil
}

// Policy returns the gate's approval policy
func (g *Gate) Policy() ApprovalPolicy {
	return g.policy
}

// Request is one user turn through the gate
type Request struct {
	Text    string
	Context *types.RiskContext
	// Actor is recorded on the turn_started event
	Actor string
	// OnStep, if set, sees every step as it happens
	OnStep func(types.ThinkingStep)
}

// Result is what a caller shows the user
type Result struct {
	RunID    string
	Response string
	Trace    []types.ThinkingStep

	// RequiresApproval is true when Pending awaits a reviewer
	RequiresApproval bool
	Pending          *types.PendingApproval

	// Turn is the loop outcome; nil for Resolve results
	Turn *loop.Result
}

// Run executes a turn. Failed hedge audits under the governed policy are
// suspended as a PendingApproval instead of refined. The error is non-nil
// only for cancellation or when a suspended turn cannot be persisted.
func (g *Gate) Run(ctx context.Context, req Request) (*Result, error) {
	runID := uuid.New().String()
	started := g.now()

	actor := req.Actor
	if actor == "" {
		actor = "user"
	}
	g.emit(ctx, events.NewTurnStartedEvent(runID, actor, req.Text))

	seq := 0
	turn, err := g.loop.Run(ctx, loop.Request{
		Text:       req.Text,
		Context:    req.Context,
		Escalation: g.policy,
		OnStep: func(step types.ThinkingStep) {
			seq++
			g.emitStep(ctx, runID, seq, step)
			if req.OnStep != nil {
				req.OnStep(step)
			}
		},
	})
	if err != nil {
		g.emitCompleted(ctx, runID, events.SeverityError, "Turn canceled", events.TurnCompletedData{
			Outcome: "canceled", Steps: seq, Error: err.Error(),
			DurationMs: g.now().Sub(started).Milliseconds(),
		})
		return nil, err
	}

	result := &Result{
		RunID:    runID,
		Response: turn.Response,
		Trace:    turn.Trace,
		Turn:     turn,
	}

	if turn.Suspended {
		p, err := g.RequestApproval(ctx, runID, req.Text, turn)
		if err != nil {
			return nil, err
		}
		result.Pending = p
		result.RequiresApproval = true
		result.Response = respond.ApprovalRequest(p)
	}

	g.recordRun(ctx, runID, req.Text, started, result)

	if result.RequiresApproval && g.autoApprove {
		resolved, err := g.resolve(ctx, result.Pending.ID, types.DecisionApproved, AutoReviewer, "auto-approved via "+EnvAutoApprove, true)
		if err != nil {
			return nil, fmt.Errorf("failed to auto-approve %s: %w", result.Pending.ID, err)
		}
		result.Pending = resolved.Pending
		result.RequiresApproval = false
		result.Response = resolved.Response
		result.Trace = resolved.Trace
	}
	return result, nil
}

// recordRun stores the run summary and its turn_completed event. Storage
// failures are logged; the user still gets the response.
func (g *Gate) recordRun(ctx context.Context, runID, text string, started time.Time, result *Result) {
	turn := result.Turn
	completed := g.now()

	run := &types.RunRecord{
		ID:          runID,
		Text:        text,
		Intent:      turn.Intent,
		Strategy:    turn.Strategy,
		Outcome:     string(turn.Outcome),
		Response:    result.Response,
		Iterations:  turn.Iterations,
		Steps:       len(turn.Trace),
		StartedAt:   started,
		CompletedAt: completed,
	}
	if !run.Intent.IsValid() {
		run.Intent = types.IntentGeneralQuery
	}
	if result.Pending != nil {
		run.ApprovalID = result.Pending.ID
	}
	if turn.Err != nil {
		run.Error = turn.Err.Error()
	}
	if err := g.store.RecordRun(ctx, run); err != nil {
		g.logger.Warn("failed to record run", "run_id", runID, "error", err)
	}

	severity := events.SeverityInfo
	switch {
	case turn.Outcome == loop.OutcomeError:
		severity = events.SeverityError
	case turn.Outcome == loop.OutcomeExhausted, turn.Suspended:
		severity = events.SeverityWarning
	}
	g.emitCompleted(ctx, runID, severity, fmt.Sprintf("Turn %s", turn.Outcome), events.TurnCompletedData{
		Intent:     string(turn.Intent),
		Strategy:   turn.Strategy,
		Outcome:    string(turn.Outcome),
		Steps:      len(turn.Trace),
		Iterations: turn.Iterations,
		DurationMs: completed.Sub(started).Milliseconds(),
		Error:      run.Error,
	})
}

func (g *Gate) emitStep(ctx context.Context, runID string, seq int, step types.ThinkingStep) {
	event, err := events.NewStepEvent(runID, seq, step)
	if err != nil {
		g.logger.Warn("failed to build step event", "run_id", runID, "seq", seq, "error", err)
		return
	}
	g.emit(ctx, event)
}

func (g *Gate) emitCompleted(ctx context.Context, runID string, severity events.EventSeverity, message string, data events.TurnCompletedData) {
	event, err := events.NewTurnCompletedEvent(runID, severity, message, data)
	if err != nil {
		g.logger.Warn("failed to build turn_completed event", "run_id", runID, "error", err)
		return
	}
	g.emit(ctx, event)
}

// emit stores an event. The audit trail is best effort for informational
// events; approvals themselves are persisted by CreateApproval and
// ResolveApproval, whose errors are returned.
func (g *Gate) emit(ctx context.Context, event *events.Event) {
	if err := g.store.StoreEvent(ctx, event); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		g.logger.Warn("failed to store event", "type", event.Type, "run_id", event.RunID, "error", err)
	}
}
