package loop

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/riskpilot/riskpilot/internal/types"
)

func pass() *types.AuditResult {
	return &types.AuditResult{Status: types.AuditPass, Proposed: 0.7, MaxAllowed: 0.8}
}

func fail() *types.AuditResult {
	rec := 0.76
	return &types.AuditResult{Status: types.AuditFail, Proposed: 0.85, MaxAllowed: 0.8, Recommendation: &rec}
}

func TestTransition(t *testing.T) {
	hedge := types.HedgeProposal{Ratio: 0.85, HedgeType: types.HedgeDuration}
	base := LoopState{MaxIterations: 3, StepBudget: 10, Steps: 1}

	tests := []struct {
		name      string
		from      State
		mutate    func(ls *LoopState)
		want      State
		exhausted bool
	}{
		{"hedge analyzed", StateAnalyze, func(ls *LoopState) { ls.Intent = types.IntentHedgeAdjustment }, StateCalculate, false},
		{"stress analyzed", StateAnalyze, func(ls *LoopState) { ls.Intent = types.IntentStressTest }, StateCalculate, false},
		{"limit analyzed", StateAnalyze, func(ls *LoopState) { ls.Intent = types.IntentLimitQuery }, StateCalculate, false},
		{"general analyzed", StateAnalyze, func(ls *LoopState) { ls.Intent = types.IntentGeneralQuery }, StateRespond, false},
		{"hedge calculated", StateCalculate, func(ls *LoopState) {
			ls.Intent = types.IntentHedgeAdjustment
			ls.Proposal = hedge
		}, StateAudit, false},
		{"stress calculated", StateCalculate, func(ls *LoopState) {
			ls.Intent = types.IntentStressTest
			ls.Proposal = types.StressProposal{}
		}, StateRespond, false},
		{"calculation failed", StateCalculate, func(ls *LoopState) {
			ls.Intent = types.IntentHedgeAdjustment
			ls.Err = &types.MissingContextError{}
		}, StateRespond, false},
		{"audit passed", StateAudit, func(ls *LoopState) { ls.Audit = pass() }, StateRespond, false},
		{"audit failed", StateAudit, func(ls *LoopState) { ls.Audit = fail() }, StateRefine, false},
		{"audit failed, escalated", StateAudit, func(ls *LoopState) {
			ls.Audit = fail()
			ls.Escalate = true
		}, StateSuspended, false},
		{"audit failed at max iterations", StateAudit, func(ls *LoopState) {
			ls.Audit = fail()
			ls.Iteration = 3
		}, StateRespond, true},
		{"refine always re-audits", StateRefine, nil, StateAudit, false},
		{"respond finishes", StateRespond, nil, StateDone, false},
		{"done is terminal", StateDone, nil, StateDone, false},
		{"suspended is terminal", StateSuspended, nil, StateSuspended, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ls := base
			if tt.mutate != nil {
				tt.mutate(&ls)
			}
			got, out := Transition(tt.from, ls)
			if got != tt.want {
				t.Errorf("Transition(%s) = %s, want %s", tt.from, got, tt.want)
			}
			if out.Exhausted != tt.exhausted {
				t.Errorf("Exhausted = %v, want %v", out.Exhausted, tt.exhausted)
			}
			if out.BudgetExhausted {
				t.Error("table transitions must not consume the budget flag")
			}
		})
	}
}

func TestTransitionReservesLastStepForRespond(t *testing.T) {
	ls := LoopState{MaxIterations: 50, StepBudget: 10, Steps: 9, Audit: fail(), Iteration: 4}

	got, out := Transition(StateAudit, ls)
	if got != StateRespond {
		t.Fatalf("expected RESPOND with one step left, got %s", got)
	}
	if !out.BudgetExhausted || !out.Exhausted {
		t.Errorf("expected both exhaustion flags, got budget=%v exhausted=%v", out.BudgetExhausted, out.Exhausted)
	}

	// The caller's value is untouched
	if ls.BudgetExhausted || ls.Exhausted {
		t.Error("Transition must not modify its input")
	}

	// Suspension needs no further node, so the budget does not block it
	ls.Escalate = true
	if got, _ := Transition(StateAudit, ls); got != StateSuspended {
		t.Errorf("expected SUSPENDED, got %s", got)
	}
}

func TestStateStage(t *testing.T) {
	if StateRefine.Stage() != types.StageRefine {
		t.Errorf("unexpected stage %s", StateRefine.Stage())
	}
	if StateSuspended.Stage() != types.StageApproval {
		t.Errorf("unexpected stage %s", StateSuspended.Stage())
	}
	if !StateDone.IsTerminal() || StateAudit.IsTerminal() {
		t.Error("terminal states misclassified")
	}
}

func TestInMemoryMetricsCollector(t *testing.T) {
	m := NewInMemoryMetricsCollector()

	m.RecordStep(types.StageAudit, types.StepWarning, 2*time.Millisecond)
	m.RecordStep(types.StageAudit, types.StepSuccess, 3*time.Millisecond)
	m.RecordStep(types.StageRespond, types.StepError, time.Millisecond)

	m.RecordRunComplete(&RunMetrics{Intent: types.IntentHedgeAdjustment, Outcome: OutcomeRefined, Steps: 6, Iterations: 1, Strategy: "keyword_fallback"})
	m.RecordRunComplete(&RunMetrics{Intent: types.IntentHedgeAdjustment, Outcome: OutcomePassed, Steps: 4})
	m.RecordRunComplete(&RunMetrics{Intent: types.IntentStressTest, Outcome: OutcomeUnaudited, Steps: 3})
	m.RecordRunComplete(&RunMetrics{Intent: types.IntentHedgeAdjustment, Outcome: OutcomeExhausted, Steps: 10, Iterations: 3, BudgetExhausted: true})
	m.RecordRunComplete(nil)

	agg := m.GetAggregateMetrics()
	if agg.TotalRuns != 4 {
		t.Fatalf("expected 4 runs, got %d", agg.TotalRuns)
	}
	if agg.ByOutcome[OutcomeRefined] != 1 || agg.ByOutcome[OutcomeExhausted] != 1 {
		t.Errorf("unexpected outcome counts: %v", agg.ByOutcome)
	}
	if agg.FallbackExtractions != 1 || agg.BudgetExhaustedRuns != 1 {
		t.Errorf("fallback=%d budget=%d", agg.FallbackExtractions, agg.BudgetExhaustedRuns)
	}
	if agg.MeanIterations != 1.0 {
		t.Errorf("expected mean iterations 1.0, got %f", agg.MeanIterations)
	}
	if agg.MeanSteps != 5.75 {
		t.Errorf("expected mean steps 5.75, got %f", agg.MeanSteps)
	}
	if agg.P50Steps != 6 || agg.P95Steps != 10 {
		t.Errorf("p50=%d p95=%d", agg.P50Steps, agg.P95Steps)
	}
	if agg.StepErrors != 1 {
		t.Errorf("expected 1 step error, got %d", agg.StepErrors)
	}
	if agg.StageDuration[types.StageAudit] != 5*time.Millisecond {
		t.Errorf("unexpected audit duration %v", agg.StageDuration[types.StageAudit])
	}
	hedge := agg.ByIntent[types.IntentHedgeAdjustment]
	if hedge == nil || hedge.Count != 3 {
		t.Fatalf("expected 3 hedge runs, got %+v", hedge)
	}
	if math.Abs(hedge.MeanSteps-20.0/3) > 1e-9 {
		t.Errorf("unexpected hedge mean steps %f", hedge.MeanSteps)
	}
}

func TestEmptyMetrics(t *testing.T) {
	agg := NewInMemoryMetricsCollector().GetAggregateMetrics()
	if agg.TotalRuns != 0 || agg.ByOutcome == nil || agg.ByIntent == nil {
		t.Errorf("unexpected empty aggregate: %+v", agg)
	}
}

func TestErrStepBudgetExhaustedWraps(t *testing.T) {
	l := &RefinementLoop{}
	r := l.result(&LoopState{BudgetExhausted: true, Steps: 10}, StateDone)
	if !errors.Is(r.Err, ErrStepBudgetExhausted) {
		t.Errorf("expected ErrStepBudgetExhausted, got %v", r.Err)
	}
}
