// Package loop drives one copilot turn through the refinement state machine:
//
//	ANALYZE → CALCULATE → AUDIT ⇄ REFINE → RESPOND → DONE
//
// Each node execution appends exactly one ThinkingStep to the trace. Which
// node runs next is decided by Transition, a pure function of the current
// state and the turn's LoopState, so the control flow can be tested without
// any collaborator.
//
// A turn can also stop in SUSPENDED when the escalation policy decides a
// failed audit needs human sign-off. The loop then returns without
// responding and the approval gate takes over.
package loop

import (
	"errors"

	"github.com/riskpilot/riskpilot/internal/types"
)

// State is a node of the refinement state machine
type State string

const (
	StateAnalyze   State = "ANALYZE"
	StateCalculate State = "CALCULATE"
	StateAudit     State = "AUDIT"
	StateRefine    State = "REFINE"
	StateRespond   State = "RESPOND"
	StateDone      State = "DONE"
	StateSuspended State = "SUSPENDED"
)

const (
	// DefaultMaxIterations bounds REFINE passes per turn
	DefaultMaxIterations = 3

	// DefaultStepBudget bounds node executions per turn, RESPOND included
	DefaultStepBudget = 10
)

// ErrStepBudgetExhausted is reported on a Result whose turn hit the step budget
var ErrStepBudgetExhausted = errors.New("step budget exhausted")

// IsTerminal reports whether the loop stops in this state
func (s State) IsTerminal() bool {
	return s == StateDone || s == StateSuspended
}

// Stage maps a node onto the trace stage it records
func (s State) Stage() types.Stage {
	switch s {
	case StateAnalyze:
		return types.StageAnalyze
	case StateCalculate:
		return types.StageCalculate
	case StateAudit:
		return types.StageAudit
	case StateRefine:
		return types.StageRefine
	case StateRespond:
		return types.StageRespond
	case StateSuspended:
		return types.StageApproval
	}
	return types.Stage(s)
}

// LoopState is everything one turn has accumulated. Nodes write to it;
// Transition only reads it (and sets the exhaustion flags).
type LoopState struct {
	Text    string
	Context *types.RiskContext

	Intent   types.Intent
	Params   types.Parameters
	Tool     string
	Strategy string
	Proposal types.Proposal

	// FirstAudit is the verdict on the proposal as extracted, Audit the latest
	FirstAudit *types.AuditResult
	Audit      *types.AuditResult

	Iteration     int
	MaxIterations int
	Steps         int
	StepBudget    int

	// Escalate is set by AUDIT when the policy wants a human to decide
	Escalate bool
	// Exhausted means REFINE ran out of iterations without a PASS
	Exhausted bool
	// BudgetExhausted means the step budget cut the turn short
	BudgetExhausted bool

	Err      error
	Response string
	Trace    []types.ThinkingStep
}

// HedgeProposal returns the current hedge proposal, if the turn has one
func (ls *LoopState) HedgeProposal() (types.HedgeProposal, bool) {
	p, ok := ls.Proposal.(types.HedgeProposal)
	return p, ok
}

// OriginalRatio is the ratio the user asked for, before any refinement
func (ls *LoopState) OriginalRatio() float64 {
	if ls.FirstAudit != nil {
		return ls.FirstAudit.Proposed
	}
	if p, ok := ls.HedgeProposal(); ok {
		return p.Ratio
	}
	return ls.Params.Ratio
}

// remaining is the number of node executions still allowed
func (ls LoopState) remaining() int {
	return ls.StepBudget - ls.Steps
}
