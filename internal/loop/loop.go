package loop

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/riskpilot/riskpilot/internal/calc"
	"github.com/riskpilot/riskpilot/internal/extract"
	"github.com/riskpilot/riskpilot/internal/respond"
	"github.com/riskpilot/riskpilot/internal/riskctx"
	"github.com/riskpilot/riskpilot/internal/types"
)

// Calculator computes a proposal for an intent
type Calculator interface {
	Calculate(intent types.Intent, params types.Parameters, rc *types.RiskContext) (types.Proposal, error)
}

// Auditor checks a hedge proposal against its limit
type Auditor interface {
	Audit(p types.HedgeProposal) types.AuditResult
}

// Synthesizer writes the reply for a finished turn
type Synthesizer interface {
	Synthesize(ctx context.Context, in respond.Input) respond.Reply
}

// EscalationPolicy decides, after a failed audit, whether the turn must wait
// for a human instead of refining on its own
type EscalationPolicy interface {
	RequiresApproval(ls *LoopState) bool
}

// EscalationFunc adapts a function to EscalationPolicy
type EscalationFunc func(ls *LoopState) bool

// RequiresApproval implements EscalationPolicy
func (f EscalationFunc) RequiresApproval(ls *LoopState) bool { return f(ls) }

// Config holds refinement loop configuration
type Config struct {
	Extractor   extract.Extractor
	Calculator  Calculator
	Auditor     Auditor
	Synthesizer Synthesizer

	MaxIterations int // Default: 3
	StepBudget    int // Default: 10

	Metrics MetricsCollector // Optional
	Logger  *slog.Logger     // Optional
}

// RefinementLoop runs turns. It is built once, holds no per-turn state and
// is safe for concurrent use.
type RefinementLoop struct {
	extractor     extract.Extractor
	calculator    Calculator
	auditor       Auditor
	synthesizer   Synthesizer
	maxIterations int
	stepBudget    int
	metrics       MetricsCollector
	logger        *slog.Logger
}

// New creates a refinement loop
func New(cfg *Config) (*RefinementLoop, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.Extractor == nil {
		return nil, fmt.Errorf("extractor is required")
	}
	if cfg.Calculator == nil {
		return nil, fmt.Errorf("calculator is required")
	}
	if cfg.Auditor == nil {
		return nil, fmt.Errorf("auditor is required")
	}
	if cfg.Synthesizer == nil {
		return nil, fmt.Errorf("synthesizer is required")
	}

	l := &RefinementLoop{
		extractor:     cfg.Extractor,
		calculator:    cfg.Calculator,
		auditor:       cfg.Auditor,
		synthesizer:   cfg.Synthesizer,
		maxIterations: cfg.MaxIterations,
		stepBudget:    cfg.StepBudget,
		metrics:       cfg.Metrics,
		logger:        cfg.Logger,
	}
	if l.maxIterations == 0 {
		l.maxIterations = DefaultMaxIterations
	}
	if l.stepBudget == 0 {
		l.stepBudget = DefaultStepBudget
	}
	if l.maxIterations < 0 {
		return nil, fmt.Errorf("max_iterations cannot be negative: %d", l.maxIterations)
	}
	if l.stepBudget < 2 {
		return nil, fmt.Errorf("step_budget must be at least 2 (got %d)", l.stepBudget)
	}
	if l.logger == nil {
		l.logger = slog.Default()
	}
	return l, nil
}

// Request is one user turn
type Request struct {
	Text    string
	Context *types.RiskContext

	// Escalation is consulted after every failed audit. Nil refines automatically.
	Escalation EscalationPolicy

	// OnStep, if set, sees every step as it is appended
	OnStep func(types.ThinkingStep)
}

// Result is the outcome of a turn
type Result struct {
	Response string
	Intent   types.Intent
	Params   types.Parameters
	Strategy string
	Proposal types.Proposal

	FirstAudit *types.AuditResult
	FinalAudit *types.AuditResult
	Iterations int
	Exhausted  bool

	// Suspended turns have no Response; the approval gate writes one
	Suspended bool
	Outcome   Outcome
	Trace     []types.ThinkingStep

	// Err is the fatal-for-turn error already explained in Response, or
	// ErrStepBudgetExhausted when the budget ended the turn
	Err error
}

// Run executes one turn. The returned error is non-nil only when ctx is
// canceled; every other failure is reported in the Result.
func (l *RefinementLoop) Run(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	ls := LoopState{
		Text:          req.Text,
		Context:       req.Context,
		MaxIterations: l.maxIterations,
		StepBudget:    l.stepBudget,
	}

	state := StateAnalyze
	for !state.IsTerminal() {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("turn canceled after %d steps: %w", ls.Steps, err)
		}

		stepStart := time.Now()
		step := l.execute(ctx, state, &ls, req.Escalation)
		ls.Steps++
		ls.Trace = append(ls.Trace, step)
		if req.OnStep != nil {
			req.OnStep(step)
		}
		if l.metrics != nil {
			l.metrics.RecordStep(step.Stage, step.Status, time.Since(stepStart))
		}

		state, ls = Transition(state, ls)
	}

	result := l.result(&ls, state)
	l.logger.Debug("turn finished",
		"intent", result.Intent,
		"outcome", result.Outcome,
		"steps", ls.Steps,
		"iterations", ls.Iteration,
		"duration", time.Since(start))
	if l.metrics != nil {
		l.metrics.RecordRunComplete(&RunMetrics{
			Intent:          result.Intent,
			Strategy:        result.Strategy,
			Outcome:         result.Outcome,
			Steps:           ls.Steps,
			Iterations:      ls.Iteration,
			BudgetExhausted: ls.BudgetExhausted,
			Duration:        time.Since(start),
		})
	}
	return result, nil
}

func (l *RefinementLoop) execute(ctx context.Context, s State, ls *LoopState, policy EscalationPolicy) types.ThinkingStep {
	switch s {
	case StateAnalyze:
		return l.analyze(ctx, ls)
	case StateCalculate:
		return l.calculate(ls)
	case StateAudit:
		return l.audit(ls, policy)
	case StateRefine:
		return l.refine(ls)
	case StateRespond:
		return l.respond(ctx, ls)
	}
	return types.NewStep(s.Stage(), types.StepError, fmt.Sprintf("no node for state %s", s))
}

func (l *RefinementLoop) analyze(ctx context.Context, ls *LoopState) types.ThinkingStep {
	ext := l.extractor.Extract(ctx, ls.Text, ls.Context)
	ls.Intent = ext.Intent
	ls.Params = ext.Params
	ls.Tool = ext.Tool
	ls.Strategy = string(ext.Strategy)
	if !ls.Intent.IsValid() {
		ls.Intent = types.IntentGeneralQuery
	}
	return ext.Step
}

func (l *RefinementLoop) calculate(ls *LoopState) types.ThinkingStep {
	params := ls.Params.Map(ls.Intent)
	proposal, err := l.calculator.Calculate(ls.Intent, ls.Params, ls.Context)
	if err != nil {
		ls.Err = err
		return types.NewStep(types.StageCalculate, types.StepError, "Calculation failed").
			WithDetail("%v", err).
			WithTool(ls.Tool, params, nil)
	}
	ls.Proposal = proposal
	return types.NewStep(types.StageCalculate, types.StepSuccess, "Calculated "+calc.Describe(proposal)).
		WithTool(ls.Tool, params, calc.ResultMap(proposal))
}

func (l *RefinementLoop) audit(ls *LoopState, policy EscalationPolicy) types.ThinkingStep {
	p, _ := ls.HedgeProposal()
	result := l.auditor.Audit(p)
	ls.Audit = &result
	if ls.FirstAudit == nil {
		first := result
		ls.FirstAudit = &first
	}
	ls.Escalate = !result.Passed() && policy != nil && policy.RequiresApproval(ls)

	toolResult := map[string]interface{}{
		"status":      string(result.Status),
		"max_allowed": result.MaxAllowed,
	}
	if result.Recommendation != nil {
		toolResult["recommendation"] = *result.Recommendation
	}
	params := map[string]interface{}{"ratio": p.Ratio, "hedge_type": string(p.HedgeType)}

	if result.Passed() {
		return types.NewStep(types.StageAudit, types.StepSuccess,
			fmt.Sprintf("Compliance PASS: %s %s hedge within %s limit",
				riskctx.FormatRatio(result.Proposed), result.HedgeType, riskctx.FormatRatio(result.MaxAllowed))).
			WithTool("compliance_audit", params, toolResult)
	}

	step := types.NewStep(types.StageAudit, types.StepWarning,
		fmt.Sprintf("Compliance FAIL: %s %s hedge exceeds %s limit",
			riskctx.FormatRatio(result.Proposed), result.HedgeType, riskctx.FormatRatio(result.MaxAllowed))).
		WithDetail("recommendation %s", riskctx.FormatRatio(*result.Recommendation)).
		WithTool("compliance_audit", params, toolResult)
	if ls.Escalate {
		step.Status = types.StepPending
		step.Detail += "; escalated for approval"
	}
	return step
}

func (l *RefinementLoop) refine(ls *LoopState) types.ThinkingStep {
	p, _ := ls.HedgeProposal()
	before := p.Ratio
	after := before
	if ls.Audit != nil && ls.Audit.Recommendation != nil {
		after = *ls.Audit.Recommendation
	}
	ls.Iteration++
	ls.Proposal = p.WithRatio(after)

	return types.NewStep(types.StageRefine, types.StepSuccess,
		fmt.Sprintf("Refined %s hedge ratio %s → %s (iteration %d/%d)",
			p.HedgeType, riskctx.FormatRatio(before), riskctx.FormatRatio(after), ls.Iteration, ls.MaxIterations)).
		WithTool("refine_hedge",
			map[string]interface{}{"ratio": before, "hedge_type": string(p.HedgeType)},
			map[string]interface{}{"ratio": after, "iteration": ls.Iteration})
}

func (l *RefinementLoop) respond(ctx context.Context, ls *LoopState) types.ThinkingStep {
	in := respond.Input{
		Text:       ls.Text,
		Intent:     ls.Intent,
		Proposal:   ls.Proposal,
		Context:    ls.Context,
		First:      ls.FirstAudit,
		Final:      ls.Audit,
		Iterations: ls.Iteration,
		Exhausted:  ls.Exhausted,
		Trace:      ls.Trace,
		Err:        ls.Err,
	}
	reply := l.synthesizer.Synthesize(ctx, in)
	ls.Response = reply.Text

	step := types.NewStep(types.StageRespond, reply.Status, "Response generated")
	if reply.Status == types.StepError {
		step.Message = "Response degraded"
	}
	if reply.Detail != "" {
		step = step.WithDetail("%s", reply.Detail)
	}
	return step
}

func (l *RefinementLoop) result(ls *LoopState, final State) *Result {
	r := &Result{
		Response:   ls.Response,
		Intent:     ls.Intent,
		Params:     ls.Params,
		Strategy:   ls.Strategy,
		Proposal:   ls.Proposal,
		FirstAudit: ls.FirstAudit,
		FinalAudit: ls.Audit,
		Iterations: ls.Iteration,
		Exhausted:  ls.Exhausted,
		Suspended:  final == StateSuspended,
		Trace:      ls.Trace,
		Err:        ls.Err,
	}
	if r.Err == nil && ls.BudgetExhausted {
		r.Err = fmt.Errorf("%w after %d steps", ErrStepBudgetExhausted, ls.Steps)
	}

	switch {
	case r.Suspended:
		r.Outcome = OutcomeSuspended
	case ls.Err != nil:
		r.Outcome = OutcomeError
	case ls.FirstAudit == nil:
		r.Outcome = OutcomeUnaudited
	case ls.FirstAudit.Passed():
		r.Outcome = OutcomePassed
	case ls.Audit != nil && ls.Audit.Passed():
		r.Outcome = OutcomeRefined
	default:
		r.Outcome = OutcomeExhausted
	}
	return r
}
