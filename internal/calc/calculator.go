// Package calc turns an extracted intent into a concrete proposal.
// Everything here is pure: no I/O, no compliance awareness.
package calc

import (
	"fmt"

	"github.com/riskpilot/riskpilot/internal/compliance"
	"github.com/riskpilot/riskpilot/internal/riskctx"
	"github.com/riskpilot/riskpilot/internal/types"
)

// Calculator computes proposals against a snapshot
type Calculator struct {
	global compliance.GlobalLimits
}

// New creates a calculator. Global limits feed the read-only limit views.
func New(global compliance.GlobalLimits) *Calculator {
	return &Calculator{global: global}
}

// Calculate produces the proposal for an intent. A structurally unusable
// snapshot yields *types.MissingContextError.
func (c *Calculator) Calculate(intent types.Intent, params types.Parameters, rc *types.RiskContext) (types.Proposal, error) {
	if intent == types.IntentGeneralQuery {
		return types.GeneralProposal{}, nil
	}
	if err := riskctx.Validate(rc); err != nil {
		return nil, err
	}

	switch intent {
	case types.IntentHedgeAdjustment:
		return types.HedgeProposal{
			Ratio:     clamp(params.Ratio, 0, 1),
			HedgeType: types.ParseHedgeType(string(params.HedgeType)),
		}, nil

	case types.IntentStressTest:
		shocks := Shocks{
			RateShockBP:    params.RateShockBP,
			EquityShock:    params.EquityShock,
			InflationShock: params.InflationShock,
		}.Clamp()
		return types.StressProposal{
			RateShockBP:    shocks.RateShockBP,
			EquityShock:    shocks.EquityShock,
			InflationShock: shocks.InflationShock,
			Scenario:       params.Scenario,
			Result:         Stress(rc, shocks),
		}, nil

	case types.IntentLimitQuery:
		view := params.View
		if view == "" {
			view = types.ViewLimits
		}
		return types.LimitProposal{
			View:       view,
			Summary:    riskctx.Summarize(rc.Limits),
			Global:     compliance.CheckGlobal(rc, c.global),
			Metrics:    rc.Metrics(),
			Allocation: riskctx.Deviations(rc.Allocation),
		}, nil
	}

	return nil, fmt.Errorf("no calculation defined for intent %q", intent)
}

// Describe is a one-line summary of a proposal for the audit trail
func Describe(p types.Proposal) string {
	switch v := p.(type) {
	case types.HedgeProposal:
		return fmt.Sprintf("%s hedge ratio %s", v.HedgeType, riskctx.FormatPct(v.Ratio, 1))
	case types.StressProposal:
		r := v.Result
		return fmt.Sprintf("funded status %s → %s (%s), surplus Δ %s",
			riskctx.FormatPct(r.BaseFundedStatus, 1),
			riskctx.FormatPct(r.StressedFundedStatus, 1),
			riskctx.FormatSignedPct(r.FundedStatusDelta, 1),
			riskctx.FormatMillions(r.SurplusDelta))
	case types.LimitProposal:
		s := v.Summary
		return fmt.Sprintf("%d breach(es), %d warning(s), %d ok; overall %s", s.Breaches, s.Warnings, s.OK, s.Overall)
	case types.GeneralProposal:
		return "no computation required"
	}
	return fmt.Sprintf("%T", p)
}

// ResultMap flattens a proposal into tool-result metadata
func ResultMap(p types.Proposal) map[string]interface{} {
	switch v := p.(type) {
	case types.HedgeProposal:
		return map[string]interface{}{"ratio": v.Ratio, "hedge_type": string(v.HedgeType)}
	case types.StressProposal:
		r := v.Result
		return map[string]interface{}{
			"base_funded_status":     r.BaseFundedStatus,
			"stressed_funded_status": r.StressedFundedStatus,
			"funded_status_delta":    r.FundedStatusDelta,
			"stressed_surplus":       r.StressedSurplus,
			"surplus_delta":          r.SurplusDelta,
		}
	case types.LimitProposal:
		violations := len(compliance.Violations(v.Global))
		return map[string]interface{}{
			"breaches":          v.Summary.Breaches,
			"warnings":          v.Summary.Warnings,
			"ok":                v.Summary.OK,
			"overall":           string(v.Summary.Overall),
			"global_violations": violations,
		}
	}
	return nil
}
