package repl

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/riskpilot/riskpilot/internal/compliance"
	"github.com/riskpilot/riskpilot/internal/events"
	"github.com/riskpilot/riskpilot/internal/riskctx"
	"github.com/riskpilot/riskpilot/internal/types"
)

var (
	cyan   = color.New(color.FgCyan, color.Bold).SprintFunc()
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	gray   = color.New(color.FgHiBlack).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

func statusIcon(status types.StepStatus) string {
	switch status {
	case types.StepSuccess:
		return green("✓")
	case types.StepWarning:
		return yellow("⚠")
	case types.StepError:
		return red("✗")
	case types.StepPending:
		return yellow("⏸")
	}
	return gray("…")
}

func limitStatus(s types.LimitStatus) string {
	switch s {
	case types.LimitBreach:
		return red(string(s))
	case types.LimitWarning:
		return yellow(string(s))
	}
	return green(string(s))
}

// PrintStep writes one thinking step as a single line plus optional detail
func PrintStep(w io.Writer, step types.ThinkingStep) {
	fmt.Fprintf(w, "  %s %-9s %s\n", statusIcon(step.Status), bold(string(step.Stage)), step.Message)
	if step.Detail != "" {
		fmt.Fprintf(w, "              %s\n", gray(step.Detail))
	}
}

// PrintTrace writes every step of a run
func PrintTrace(w io.Writer, trace []types.ThinkingStep) {
	for _, step := range trace {
		PrintStep(w, step)
	}
}

// PrintApproval writes one pending or resolved approval
func PrintApproval(w io.Writer, p *types.PendingApproval) {
	fmt.Fprintf(w, "%s %s  %s\n", cyan("Approval"), p.ID, gray(p.CreatedAt.Local().Format("2006-01-02 15:04:05")))
	fmt.Fprintf(w, "  %s %q\n", bold("Request:"), p.UserText)
	fmt.Fprintf(w, "  %s %s hedge %s exceeds max %s\n", bold("Proposal:"),
		p.HedgeType, red(riskctx.FormatRatio(p.Proposed)), riskctx.FormatRatio(p.MaxAllowed))
	fmt.Fprintf(w, "  %s %s\n", bold("Recommended:"), green(riskctx.FormatRatio(p.Recommendation)))
	switch p.Status {
	case types.ApprovalPending:
		fmt.Fprintf(w, "  %s %s\n", bold("Status:"), yellow(string(p.Status)))
	default:
		fmt.Fprintf(w, "  %s %s by %s\n", bold("Status:"), p.Status, p.ReviewedBy)
		if p.Reason != "" {
			fmt.Fprintf(w, "  %s %s\n", bold("Reason:"), p.Reason)
		}
	}
}

// PrintApprovals writes a list of approvals, or a note when there are none
func PrintApprovals(w io.Writer, list []*types.PendingApproval) {
	if len(list) == 0 {
		fmt.Fprintf(w, "%s\n", green("No pending approvals"))
		return
	}
	for i, p := range list {
		if i > 0 {
			fmt.Fprintln(w)
		}
		PrintApproval(w, p)
	}
}

// PrintLimits writes the limit monitoring table and the hedge limit table
func PrintLimits(w io.Writer, rc *types.RiskContext, hedge []compliance.LimitEntry) {
	summary := riskctx.Summarize(rc.Limits)
	fmt.Fprintf(w, "%s  overall %s (%d breach, %d warning, %d ok)\n",
		cyan("Limit Monitor"), limitStatus(summary.Overall), summary.Breaches, summary.Warnings, summary.OK)
	fmt.Fprintf(w, "  %-24s %9s %9s %17s  %s\n", "", "Current", "Target", "Range", "Status")
	for _, row := range summary.Rows {
		target := ""
		if row.PolicyTarget != 0 {
			target = riskctx.FormatPct(row.PolicyTarget, 1)
		}
		rng := fmt.Sprintf("%s-%s", riskctx.FormatPct(row.RangeMin, 1), riskctx.FormatPct(row.RangeMax, 1))
		fmt.Fprintf(w, "  %-24s %9s %9s %17s  %s\n",
			row.Label, riskctx.FormatPct(row.CurrentWeight, 1), target, rng, limitStatus(row.Status))
	}

	if len(hedge) > 0 {
		fmt.Fprintf(w, "\n%s\n", cyan("Hedge Limits"))
		for _, e := range hedge {
			fmt.Fprintf(w, "  %-24s max %s\n", e.HedgeType, riskctx.FormatRatio(e.MaxRatio))
		}
	}
}

// PrintContext writes the headline metrics and allocation of a snapshot
func PrintContext(w io.Writer, rc *types.RiskContext) {
	m := rc.Metrics()
	fmt.Fprintf(w, "%s  as of %s\n", cyan("Risk Context"), rc.AsOf.Format("2006-01-02"))
	fmt.Fprintf(w, "  %-20s %s\n", "Funded status", riskctx.FormatPct(m.FundedStatus, 1))
	fmt.Fprintf(w, "  %-20s %s\n", "Total assets", riskctx.FormatBillions(m.TotalAssets))
	fmt.Fprintf(w, "  %-20s %s\n", "Total liabilities", riskctx.FormatBillions(m.TotalLiabilities))
	fmt.Fprintf(w, "  %-20s %s\n", "Surplus", riskctx.FormatBillions(m.Surplus))
	fmt.Fprintf(w, "  %-20s %.1f / %.1f years (gap %.1f)\n", "Duration A/L",
		m.AssetDuration, m.LiabilityDuration, m.DurationGap)
	fmt.Fprintf(w, "  %-20s %s\n", "FX exposure", riskctx.FormatPct(m.FXExposurePct, 1))

	fmt.Fprintf(w, "\n%s\n", cyan("Allocation"))
	for _, d := range riskctx.Deviations(rc.Allocation) {
		dev := riskctx.FormatSignedPct(d.Deviation, 1)
		if !d.InRange {
			dev = red(dev)
		}
		fmt.Fprintf(w, "  %-24s %7s  target %7s  %s\n", d.AssetClass,
			riskctx.FormatPct(d.CurrentWeight, 1), riskctx.FormatPct(d.PolicyTarget, 1), dev)
	}
}

// PrintStress writes the outcome of a stress scenario
func PrintStress(w io.Writer, name string, r types.StressResult) {
	delta := riskctx.FormatSignedPct(r.FundedStatusDelta, 1)
	if r.FundedStatusDelta < 0 {
		delta = red(delta)
	} else {
		delta = green(delta)
	}
	fmt.Fprintf(w, "  %-16s funded %s → %s (%s)  surplus %s\n", bold(name),
		riskctx.FormatPct(r.BaseFundedStatus, 1), riskctx.FormatPct(r.StressedFundedStatus, 1),
		delta, riskctx.FormatBillions(r.StressedSurplus))
}

// PrintEvents writes audit events oldest first
func PrintEvents(w io.Writer, list []*events.Event) {
	if len(list) == 0 {
		fmt.Fprintf(w, "%s\n", gray("No activity recorded"))
		return
	}
	for _, e := range list {
		sev := string(e.Severity)
		switch e.Severity {
		case events.SeverityError, events.SeverityCritical:
			sev = red(sev)
		case events.SeverityWarning:
			sev = yellow(sev)
		}
		run := e.RunID
		if len(run) > 8 {
			run = run[:8]
		}
		fmt.Fprintf(w, "%s  %-8s %-22s %-8s %s\n", gray(e.Timestamp.Local().Format("01-02 15:04:05")),
			run, e.Type, sev, strings.TrimSpace(e.Message))
	}
}
