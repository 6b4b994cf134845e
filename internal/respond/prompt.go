package respond

import (
	"fmt"
	"strings"

	"github.com/riskpilot/riskpilot/internal/calc"
	"github.com/riskpilot/riskpilot/internal/compliance"
	"github.com/riskpilot/riskpilot/internal/riskctx"
	"github.com/riskpilot/riskpilot/internal/types"
)

// SystemPrompt embeds the snapshot and limit tables the model must ground
// its answer in.
func SystemPrompt(rc *types.RiskContext, hedgeLimits []compliance.LimitEntry, global compliance.GlobalLimits, maxWords int) string {
	var b strings.Builder

	b.WriteString(`You are a risk advisor for a large defined benefit pension fund.

You are part of an audited system:
- Every hedging suggestion is checked against compliance limits before it reaches the user
- If a suggestion exceeds a limit, the system replaces it with a compliant alternative
- Always acknowledge when the system has corrected the initial proposal
- Never recommend a hedge ratio above its limit

`)

	if rc != nil {
		b.WriteString("=== PORTFOLIO SNAPSHOT ===\n")
		fmt.Fprintf(&b, "- Funded Status: %s (Target: %s)\n",
			riskctx.FormatPct(rc.FundedStatus, 1), riskctx.FormatPct(riskctx.FundedStatusTarget, 0))
		fmt.Fprintf(&b, "- Total Assets: %s | Liabilities: %s\n",
			riskctx.FormatBillions(rc.TotalAssets), riskctx.FormatBillions(rc.TotalLiabilities))
		fmt.Fprintf(&b, "- Surplus: %s\n", riskctx.FormatBillions(rc.Surplus))
		fmt.Fprintf(&b, "- Duration Gap: %.1f years (Asset: %.1f | Liability: %.1f)\n",
			rc.DurationGap(), rc.AssetDuration, rc.LiabilityDuration)
		fmt.Fprintf(&b, "- FX Exposure: %s (Limit: %s)\n",
			riskctx.FormatPct(rc.FXExposurePct, 1), riskctx.FormatRatio(global.MaxFXExposure))
		b.WriteString("\n")
	}

	b.WriteString("=== COMPLIANCE LIMITS ===\n")
	for _, l := range hedgeLimits {
		fmt.Fprintf(&b, "- Max %s hedge ratio: %s\n", l.HedgeType, riskctx.FormatRatio(l.MaxRatio))
	}
	fmt.Fprintf(&b, "- Max FX exposure: %s\n", riskctx.FormatRatio(global.MaxFXExposure))
	fmt.Fprintf(&b, "- Min equity exposure: %s\n", riskctx.FormatRatio(global.MinEquityExposure))
	fmt.Fprintf(&b, "- Single issuer limit: %s\n", riskctx.FormatRatio(global.MaxSingleIssuer))

	if rc != nil && len(rc.Allocation) > 0 {
		b.WriteString("\n=== ASSET ALLOCATION ===\n")
		b.WriteString("asset_class | current | target | range\n")
		for _, row := range rc.Allocation {
			fmt.Fprintf(&b, "%s | %s | %s | %s-%s\n", row.AssetClass,
				riskctx.FormatPct(row.CurrentWeight, 1), riskctx.FormatPct(row.PolicyTarget, 1),
				riskctx.FormatPct(row.RangeMin, 0), riskctx.FormatPct(row.RangeMax, 0))
		}
	}
	if rc != nil && len(rc.Limits) > 0 {
		b.WriteString("\n=== LIMIT STATUS ===\n")
		b.WriteString("label | current | range | status\n")
		for _, row := range rc.Limits {
			fmt.Fprintf(&b, "%s | %s | %s-%s | %s\n", row.Label,
				riskctx.FormatPct(row.CurrentWeight, 1),
				riskctx.FormatPct(row.RangeMin, 0), riskctx.FormatPct(row.RangeMax, 0), row.Status)
		}
	}

	fmt.Fprintf(&b, `
=== RESPONSE GUIDELINES ===
1. If the audit failed and the proposal was refined, explain what happened
2. Always mention compliance status when discussing hedging
3. Be concise (under %d words) and use professional terminology
4. Respond in the same language as the user's query
`, maxWords)

	return b.String()
}

// ExecutionContext renders what the loop did, for the user message
func ExecutionContext(in Input) string {
	var b strings.Builder
	fmt.Fprintf(&b, "User intent: %s\n", in.Intent)
	if in.Proposal != nil {
		fmt.Fprintf(&b, "Calculation: %s\n", calc.Describe(in.Proposal))
	}
	if in.First != nil {
		fmt.Fprintf(&b, "Initial audit: %s (proposed %s, max %s)\n",
			in.First.Status, riskctx.FormatRatio(in.First.Proposed), riskctx.FormatRatio(in.First.MaxAllowed))
	}
	if in.Final != nil && in.Iterations > 0 {
		fmt.Fprintf(&b, "Refined %d time(s) to %s; final audit: %s\n",
			in.Iterations, riskctx.FormatRatio(in.Final.Proposed), in.Final.Status)
	}
	if len(in.Trace) > 0 {
		b.WriteString("Execution trace:\n")
		for _, s := range in.Trace {
			fmt.Fprintf(&b, "- [%s] %s: %s\n", s.Stage, s.Status, s.Message)
		}
	}
	return b.String()
}
