package riskctx

import (
	"github.com/riskpilot/riskpilot/internal/types"
)

const (
	// WarnFraction of a range maximum at which a limit row turns amber
	WarnFraction = 0.90

	// Funded status policy band
	FundedStatusTarget = 1.11
	FundedStatusMin    = 1.00
	FundedStatusMax    = 1.50
	FundedStatusWarn   = 1.05

	LabelFXExposure   = "FX Net Exposure"
	LabelFundedStatus = "Funded Status"
)

// ClassifyLimit applies the traffic-light rule to one weight.
// Outside [min, max] is a breach; above 90% of a positive max is a warning.
func ClassifyLimit(current, rangeMin, rangeMax float64) types.LimitStatus {
	if current > rangeMax || current < rangeMin {
		return types.LimitBreach
	}
	if rangeMax > 0 && current > rangeMax*WarnFraction {
		return types.LimitWarning
	}
	return types.LimitOK
}

// classifyFundedStatus is lower-bound sensitive: a fund drifting toward
// underfunding warns, one drifting toward the cap does not.
func classifyFundedStatus(funded float64) types.LimitStatus {
	if funded < FundedStatusMin || funded > FundedStatusMax {
		return types.LimitBreach
	}
	if funded < FundedStatusWarn {
		return types.LimitWarning
	}
	return types.LimitOK
}

// BuildLimitRows derives the limit monitoring table from the allocation table
// plus the FX exposure and funded status rows.
func BuildLimitRows(allocation []types.AllocationRow, fxExposure, maxFX, fundedStatus float64) []types.LimitRow {
	rows := make([]types.LimitRow, 0, len(allocation)+2)
	for _, a := range allocation {
		rows = append(rows, types.LimitRow{
			Label:         a.AssetClass,
			CurrentWeight: a.CurrentWeight,
			PolicyTarget:  a.PolicyTarget,
			RangeMin:      a.RangeMin,
			RangeMax:      a.RangeMax,
			Status:        ClassifyLimit(a.CurrentWeight, a.RangeMin, a.RangeMax),
		})
	}

	rows = append(rows, types.LimitRow{
		Label:         LabelFXExposure,
		CurrentWeight: fxExposure,
		RangeMin:      0,
		RangeMax:      maxFX,
		Status:        ClassifyLimit(fxExposure, 0, maxFX),
	})

	rows = append(rows, types.LimitRow{
		Label:         LabelFundedStatus,
		CurrentWeight: fundedStatus,
		PolicyTarget:  FundedStatusTarget,
		RangeMin:      FundedStatusMin,
		RangeMax:      FundedStatusMax,
		Status:        classifyFundedStatus(fundedStatus),
	})

	return rows
}

// Summarize counts the rows by status. The overall status is the worst row.
func Summarize(rows []types.LimitRow) types.LimitSummary {
	summary := types.LimitSummary{
		Overall: types.LimitOK,
		Rows:    make([]types.LimitRow, len(rows)),
	}
	copy(summary.Rows, rows)

	for _, row := range rows {
		switch row.Status {
		case types.LimitBreach:
			summary.Breaches++
		case types.LimitWarning:
			summary.Warnings++
		default:
			summary.OK++
		}
	}

	switch {
	case summary.Breaches > 0:
		summary.Overall = types.LimitBreach
	case summary.Warnings > 0:
		summary.Overall = types.LimitWarning
	}
	return summary
}

// Deviations compares each asset class against its policy target
func Deviations(allocation []types.AllocationRow) []types.AllocationDeviation {
	out := make([]types.AllocationDeviation, 0, len(allocation))
	for _, a := range allocation {
		out = append(out, types.AllocationDeviation{
			AssetClass:    a.AssetClass,
			CurrentWeight: a.CurrentWeight,
			PolicyTarget:  a.PolicyTarget,
			Deviation:     a.Deviation(),
			InRange:       a.InRange(),
		})
	}
	return out
}
