package loop

// Transition picks the node that runs after s. It is pure: the returned
// LoopState differs from ls only in the Exhausted and BudgetExhausted flags.
//
// The step budget overrides the table. Once a single execution is left it
// is reserved for RESPOND so that every turn ends with a reply.
func Transition(s State, ls LoopState) (State, LoopState) {
	next := route(s, &ls)
	if next == StateRespond || next.IsTerminal() {
		return next, ls
	}
	if ls.remaining() <= 1 {
		ls.BudgetExhausted = true
		if ls.Audit != nil && !ls.Audit.Passed() {
			ls.Exhausted = true
		}
		return StateRespond, ls
	}
	return next, ls
}

func route(s State, ls *LoopState) State {
	switch s {
	case StateDone, StateSuspended:
		return s

	case StateRespond:
		return StateDone

	case StateAnalyze:
		if ls.Err != nil || !ls.Intent.RequiresComputation() {
			return StateRespond
		}
		return StateCalculate

	case StateCalculate:
		if ls.Err != nil || !ls.Intent.IsAuditable() {
			return StateRespond
		}
		if _, ok := ls.HedgeProposal(); !ok {
			return StateRespond
		}
		return StateAudit

	case StateAudit:
		switch {
		case ls.Audit == nil || ls.Audit.Passed():
			return StateRespond
		case ls.Escalate:
			return StateSuspended
		case ls.Iteration < ls.MaxIterations:
			return StateRefine
		}
		ls.Exhausted = true
		return StateRespond

	case StateRefine:
		return StateAudit
	}

	return StateRespond
}
