package types

import (
	"fmt"
	"strings"
)

// Intent classifies what a user turn is asking the copilot to do
type Intent string

const (
	IntentHedgeAdjustment Intent = "HEDGE_ADJUSTMENT"
	IntentStressTest      Intent = "STRESS_TEST"
	IntentLimitQuery      Intent = "LIMIT_QUERY"
	IntentGeneralQuery    Intent = "GENERAL_QUERY"
)

// IsValid checks if the intent value is valid
func (i Intent) IsValid() bool {
	switch i {
	case IntentHedgeAdjustment, IntentStressTest, IntentLimitQuery, IntentGeneralQuery:
		return true
	}
	return false
}

// RequiresComputation reports whether the intent goes through the calculator.
// General questions are answered directly from the snapshot.
func (i Intent) RequiresComputation() bool {
	switch i {
	case IntentHedgeAdjustment, IntentStressTest, IntentLimitQuery:
		return true
	}
	return false
}

// IsAuditable reports whether proposals for this intent are compliance-checked.
// Only hedge adjustments change the portfolio; everything else is read-only.
func (i Intent) IsAuditable() bool {
	return i == IntentHedgeAdjustment
}

// HedgeType identifies which exposure a hedge ratio applies to
type HedgeType string

const (
	HedgeDuration HedgeType = "duration"
	HedgeFX       HedgeType = "fx"
	HedgeEquity   HedgeType = "equity"
)

// IsValid checks if the hedge type value is valid
func (h HedgeType) IsValid() bool {
	switch h {
	case HedgeDuration, HedgeFX, HedgeEquity:
		return true
	}
	return false
}

// ParseHedgeType normalizes free-form hedge type names. Unknown values map to
// the duration hedge, which is the fund's primary hedging program.
func ParseHedgeType(s string) HedgeType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fx", "currency", "foreign_exchange":
		return HedgeFX
	case "equity", "equities":
		return HedgeEquity
	default:
		return HedgeDuration
	}
}

// QueryView selects which read-only table a limit query returns
type QueryView string

const (
	ViewLimits     QueryView = "limits"
	ViewMetrics    QueryView = "metrics"
	ViewAllocation QueryView = "allocation"
)

// Parameters are the structured arguments extracted from a user request.
// Which fields are meaningful depends on the intent.
type Parameters struct {
	Ratio          float64   `json:"ratio,omitempty"`
	HedgeType      HedgeType `json:"hedge_type,omitempty"`
	RateShockBP    float64   `json:"rate_shock_bp,omitempty"`
	EquityShock    float64   `json:"equity_shock,omitempty"`
	InflationShock float64   `json:"inflation_shock,omitempty"`
	Scenario       string    `json:"scenario,omitempty"`
	View           QueryView `json:"view,omitempty"`
}

// Map renders the parameters relevant to the given intent, for tool metadata
func (p Parameters) Map(intent Intent) map[string]interface{} {
	switch intent {
	case IntentHedgeAdjustment:
		return map[string]interface{}{
			"ratio":      p.Ratio,
			"hedge_type": string(p.HedgeType),
		}
	case IntentStressTest:
		m := map[string]interface{}{
			"rate_shock_bp":   p.RateShockBP,
			"equity_shock":    p.EquityShock,
			"inflation_shock": p.InflationShock,
		}
		if p.Scenario != "" {
			m["scenario"] = p.Scenario
		}
		return m
	case IntentLimitQuery:
		return map[string]interface{}{"view": string(p.View)}
	}
	return map[string]interface{}{}
}

// Proposal is the calculator's output for one intent.
// The set of implementations is closed: HedgeProposal, StressProposal,
// LimitProposal and GeneralProposal.
type Proposal interface {
	Intent() Intent
	isProposal()
}

// HedgeProposal is a candidate hedge ratio awaiting compliance audit
type HedgeProposal struct {
	Ratio     float64   `json:"ratio"`
	HedgeType HedgeType `json:"hedge_type"`
}

func (HedgeProposal) Intent() Intent { return IntentHedgeAdjustment }
func (HedgeProposal) isProposal()    {}

// WithRatio returns a copy of the proposal carrying a substituted ratio
func (p HedgeProposal) WithRatio(ratio float64) HedgeProposal {
	p.Ratio = ratio
	return p
}

// StressProposal carries the shocks of a stress scenario and its resolved result.
// Stress tests are informational and never audited.
type StressProposal struct {
	RateShockBP    float64      `json:"rate_shock_bp"`
	EquityShock    float64      `json:"equity_shock"`
	InflationShock float64      `json:"inflation_shock"`
	Scenario       string       `json:"scenario,omitempty"`
	Result         StressResult `json:"result"`
}

func (StressProposal) Intent() Intent { return IntentStressTest }
func (StressProposal) isProposal()    {}

// StressResult is the outcome of applying a shock to the snapshot
type StressResult struct {
	BaseFundedStatus     float64 `json:"base_funded_status"`
	StressedFundedStatus float64 `json:"stressed_funded_status"`
	FundedStatusDelta    float64 `json:"funded_status_delta"`
	StressedAssets       float64 `json:"stressed_assets"`
	StressedLiabilities  float64 `json:"stressed_liabilities"`
	StressedSurplus      float64 `json:"stressed_surplus"`
	SurplusDelta         float64 `json:"surplus_delta"`
	AssetRateImpact      float64 `json:"asset_rate_impact"`
	LiabilityRateImpact  float64 `json:"liability_rate_impact"`
	EquityImpact         float64 `json:"equity_impact"`
	InflationImpact      float64 `json:"inflation_impact"`
}

// LimitProposal is the read-only answer to a limit, metrics or allocation query
type LimitProposal struct {
	View       QueryView             `json:"view"`
	Summary    LimitSummary          `json:"summary"`
	Global     []GlobalLimitResult   `json:"global,omitempty"`
	Metrics    RiskMetrics           `json:"metrics"`
	Allocation []AllocationDeviation `json:"allocation,omitempty"`
}

func (LimitProposal) Intent() Intent { return IntentLimitQuery }
func (LimitProposal) isProposal()    {}

// GeneralProposal marks a turn answered without computation
type GeneralProposal struct{}

func (GeneralProposal) Intent() Intent { return IntentGeneralQuery }
func (GeneralProposal) isProposal()    {}

// RiskMetrics are the headline numbers derived from a snapshot
type RiskMetrics struct {
	FundedStatus      float64 `json:"funded_status"`
	Surplus           float64 `json:"surplus"`
	TotalAssets       float64 `json:"total_assets"`
	TotalLiabilities  float64 `json:"total_liabilities"`
	AssetDuration     float64 `json:"asset_duration"`
	LiabilityDuration float64 `json:"liability_duration"`
	DurationGap       float64 `json:"duration_gap"`
	FXExposurePct     float64 `json:"fx_exposure_pct"`
}

// AllocationDeviation is one asset class compared against its policy target
type AllocationDeviation struct {
	AssetClass    string  `json:"asset_class"`
	CurrentWeight float64 `json:"current_weight"`
	PolicyTarget  float64 `json:"policy_target"`
	Deviation     float64 `json:"deviation"`
	InRange       bool    `json:"in_range"`
}

// LimitSummary rolls up a limit status table
type LimitSummary struct {
	Breaches int         `json:"breaches"`
	Warnings int         `json:"warnings"`
	OK       int         `json:"ok"`
	Overall  LimitStatus `json:"overall"`
	Rows     []LimitRow  `json:"rows"`
}

// GlobalLimitResult is the outcome of checking one fund-wide limit
type GlobalLimitResult struct {
	Name    string  `json:"name"`
	Current float64 `json:"current"`
	Limit   float64 `json:"limit"`
	// Bound is "max" or "min"
	Bound  string `json:"bound"`
	Passed bool   `json:"passed"`
}

// String returns a one-line description of the check
func (g GlobalLimitResult) String() string {
	verdict := "OK"
	if !g.Passed {
		verdict = "VIOLATION"
	}
	return fmt.Sprintf("%s: %.1f%% (%s %.1f%%) %s", g.Name, g.Current*100, g.Bound, g.Limit*100, verdict)
}
