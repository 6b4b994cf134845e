package gates

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/riskpilot/riskpilot/internal/events"
	"github.com/riskpilot/riskpilot/internal/loop"
	"github.com/riskpilot/riskpilot/internal/respond"
	"github.com/riskpilot/riskpilot/internal/riskctx"
	"github.com/riskpilot/riskpilot/internal/types"
)

// RequestApproval externalizes a suspended turn as a PendingApproval and
// persists it. The failed audit's recommendation becomes the suggested
// resolution.
func (g *Gate) RequestApproval(ctx context.Context, runID, text string, turn *loop.Result) (*types.PendingApproval, error) {
	if turn == nil || !turn.Suspended {
		return nil, fmt.Errorf("turn is not suspended")
	}
	audit := turn.FinalAudit
	if audit == nil || audit.Passed() || audit.Recommendation == nil {
		return nil, fmt.Errorf("suspended turn has no failed audit")
	}

	p := &types.PendingApproval{
		ID:             uuid.New().String(),
		RunID:          runID,
		CreatedAt:      g.now(),
		UserText:       text,
		Intent:         turn.Intent,
		HedgeType:      audit.HedgeType,
		Proposed:       audit.Proposed,
		MaxAllowed:     audit.MaxAllowed,
		Recommendation: *audit.Recommendation,
		Audit:          *audit,
		Trace:          turn.Trace,
		Status:         types.ApprovalPending,
	}
	if err := g.store.CreateApproval(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to persist pending approval: %w", err)
	}

	event, err := events.NewApprovalRequestedEvent(runID, p.ID,
		fmt.Sprintf("%s hedge %s exceeds %s limit; awaiting approval",
			p.HedgeType, riskctx.FormatRatio(p.Proposed), riskctx.FormatRatio(p.MaxAllowed)),
		events.ApprovalRequestedData{
			HedgeType:      string(p.HedgeType),
			Proposed:       p.Proposed,
			MaxAllowed:     p.MaxAllowed,
			Recommendation: p.Recommendation,
			Policy:         string(g.policy),
		})
	if err == nil {
		g.emit(ctx, event)
	}

	g.logger.Info("approval requested",
		"approval_id", p.ID,
		"run_id", runID,
		"hedge_type", p.HedgeType,
		"proposed", p.Proposed,
		"recommendation", p.Recommendation)
	return p, nil
}

// Resolve consumes a pending approval exactly once. APPROVED applies the
// recommendation after re-auditing it; REJECTED leaves the configuration
// unchanged. A second resolution returns ErrApprovalNotPending and an
// unknown id ErrApprovalNotFound.
func (g *Gate) Resolve(ctx context.Context, id string, decision types.Decision, reviewer, reason string) (*Result, error) {
	if reviewer == "" {
		return nil, fmt.Errorf("reviewer is required")
	}
	return g.resolve(ctx, id, decision, reviewer, reason, false)
}

func (g *Gate) resolve(ctx context.Context, id string, decision types.Decision, reviewer, reason string, auto bool) (*Result, error) {
	if decision != types.DecisionApproved && decision != types.DecisionRejected {
		return nil, fmt.Errorf("invalid decision: %q", decision)
	}

	p, err := g.store.GetApproval(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Status != types.ApprovalPending {
		return nil, fmt.Errorf("%w: %s is %s", ErrApprovalNotPending, id, p.Status)
	}

	var step types.ThinkingStep
	finalRatio := p.Proposed
	if decision == types.DecisionApproved {
		check := g.auditor.Audit(types.HedgeProposal{Ratio: p.Recommendation, HedgeType: p.HedgeType})
		if !check.Passed() {
			return nil, fmt.Errorf("recommendation %s no longer passes the %s limit %s",
				riskctx.FormatRatio(p.Recommendation), p.HedgeType, riskctx.FormatRatio(check.MaxAllowed))
		}
		finalRatio = p.Recommendation
		step = types.NewStep(types.StageApproval, types.StepSuccess,
			fmt.Sprintf("Approved by %s: %s hedge %s → %s", reviewer, p.HedgeType,
				riskctx.FormatRatio(p.Proposed), riskctx.FormatRatio(p.Recommendation)))
	} else {
		step = types.NewStep(types.StageApproval, types.StepWarning,
			fmt.Sprintf("Rejected by %s: %s hedge stays unchanged", reviewer, p.HedgeType))
	}
	if reason != "" {
		step = step.WithDetail("%s", reason)
	}
	step = step.WithTool("approval",
		map[string]interface{}{"approval_id": id, "decision": string(decision), "reviewer": reviewer},
		map[string]interface{}{"final_ratio": finalRatio, "status": string(decision.Status())})

	// The store re-checks pending in the UPDATE itself, so a concurrent
	// resolution loses here even after passing the check above.
	p, err = g.store.ResolveApproval(ctx, id, decision.Status(), reviewer, reason, g.now())
	if err != nil {
		return nil, err
	}

	response := respond.Rejected(p)
	if decision == types.DecisionApproved {
		response = respond.Approved(p)
	}

	trace := append(append([]types.ThinkingStep{}, p.Trace...), step)
	g.emitStep(ctx, p.RunID, len(trace), step)

	resolved, err := events.NewApprovalResolvedEvent(p.RunID, p.ID, step.Message, events.ApprovalResolvedData{
		Decision:   string(decision),
		Reviewer:   reviewer,
		Reason:     reason,
		FinalRatio: finalRatio,
		Auto:       auto,
	})
	if err == nil {
		g.emit(ctx, resolved)
	}

	g.updateRun(ctx, p, decision, response, len(trace))

	g.logger.Info("approval resolved",
		"approval_id", p.ID,
		"run_id", p.RunID,
		"decision", decision,
		"reviewer", reviewer,
		"auto", auto)

	return &Result{
		RunID:    p.RunID,
		Response: response,
		Trace:    trace,
		Pending:  p,
	}, nil
}

// updateRun folds the decision into the suspended run's summary
func (g *Gate) updateRun(ctx context.Context, p *types.PendingApproval, decision types.Decision, response string, steps int) {
	run, err := g.store.GetRun(ctx, p.RunID)
	if err != nil || run == nil {
		if err != nil {
			g.logger.Warn("failed to load run for approval", "run_id", p.RunID, "error", err)
		}
		return
	}
	run.Outcome = string(decision.Status())
	run.Response = response
	run.Steps = steps
	run.CompletedAt = g.now()
	if run.CompletedAt.Before(run.StartedAt) {
		run.CompletedAt = run.StartedAt
	}
	if err := g.store.RecordRun(ctx, run); err != nil {
		g.logger.Warn("failed to update run after approval", "run_id", p.RunID, "error", err)
	}
}

// Pending lists approvals awaiting a reviewer, oldest first
func (g *Gate) Pending(ctx context.Context) ([]*types.PendingApproval, error) {
	return g.store.ListApprovals(ctx, types.ApprovalPending)
}

// Get loads one approval in any state
func (g *Gate) Get(ctx context.Context, id string) (*types.PendingApproval, error) {
	return g.store.GetApproval(ctx, id)
}
