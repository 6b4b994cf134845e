package calc

import (
	"fmt"
	"sort"

	"github.com/riskpilot/riskpilot/internal/types"
)

// Fixed portfolio weight assumptions used by the stress model
const (
	EquityWeight      = 0.35
	FixedIncomeWeight = 0.40
	RealAssetWeight   = 0.25

	// Real assets pass through half of an inflation shock
	InflationPassThrough = 0.5
)

// Shock bounds. Requests outside them are clamped (deterministic input) or
// rejected (model input).
const (
	MaxRateShockBP    = 500.0
	MaxEquityShock    = 0.50
	MaxInflationShock = 0.10
)

// Shocks are the inputs of one stress scenario
type Shocks struct {
	RateShockBP    float64 `json:"rate_shock_bp"`
	EquityShock    float64 `json:"equity_shock"`
	InflationShock float64 `json:"inflation_shock"`
}

// Validate reports shocks outside the supported bounds
func (s Shocks) Validate() error {
	if s.RateShockBP < -MaxRateShockBP || s.RateShockBP > MaxRateShockBP {
		return fmt.Errorf("rate shock must be within ±%.0fbp (got %.0f)", MaxRateShockBP, s.RateShockBP)
	}
	if s.EquityShock < -MaxEquityShock || s.EquityShock > MaxEquityShock {
		return fmt.Errorf("equity shock must be within ±%.0f%% (got %.1f%%)", MaxEquityShock*100, s.EquityShock*100)
	}
	if s.InflationShock < -MaxInflationShock || s.InflationShock > MaxInflationShock {
		return fmt.Errorf("inflation shock must be within ±%.0f%% (got %.1f%%)", MaxInflationShock*100, s.InflationShock*100)
	}
	return nil
}

// Clamp pulls each shock into its supported bound
func (s Shocks) Clamp() Shocks {
	return Shocks{
		RateShockBP:    clamp(s.RateShockBP, -MaxRateShockBP, MaxRateShockBP),
		EquityShock:    clamp(s.EquityShock, -MaxEquityShock, MaxEquityShock),
		InflationShock: clamp(s.InflationShock, -MaxInflationShock, MaxInflationShock),
	}
}

// Scenario is a named preset stress test
type Scenario struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Shocks      Shocks `json:"shocks"`
}

var presets = map[string]Scenario{
	"rate_up_100": {
		Name:        "rate_up_100",
		Description: "Parallel rate rise of 100bp",
		Shocks:      Shocks{RateShockBP: 100},
	},
	"rate_down_100": {
		Name:        "rate_down_100",
		Description: "Parallel rate fall of 100bp",
		Shocks:      Shocks{RateShockBP: -100},
	},
	"equity_crash": {
		Name:        "equity_crash",
		Description: "Equity markets fall 20%",
		Shocks:      Shocks{EquityShock: -0.20},
	},
	"stagflation": {
		Name:        "stagflation",
		Description: "Rates +200bp, equities -15%, inflation +3%",
		Shocks:      Shocks{RateShockBP: 200, EquityShock: -0.15, InflationShock: 0.03},
	},
	"crisis_2008": {
		Name:        "crisis_2008",
		Description: "2008-style crisis: rates -150bp, equities -40%, inflation -1%",
		Shocks:      Shocks{RateShockBP: -150, EquityShock: -0.40, InflationShock: -0.01},
	},
}

// Preset looks up a named scenario
func Preset(name string) (Scenario, bool) {
	s, ok := presets[name]
	return s, ok
}

// Presets returns every named scenario, sorted by name
func Presets() []Scenario {
	out := make([]Scenario, 0, len(presets))
	for _, s := range presets {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Stress applies shocks to a snapshot. Assets carry the rate (through the
// fixed income sleeve), equity and inflation impacts; liabilities carry only
// the full-duration rate impact.
func Stress(rc *types.RiskContext, s Shocks) types.StressResult {
	rate := s.RateShockBP / 10000

	assetRate := -rc.AssetDuration * rate * FixedIncomeWeight
	liabRate := -rc.LiabilityDuration * rate
	equity := s.EquityShock * EquityWeight
	inflation := s.InflationShock * RealAssetWeight * InflationPassThrough

	stressedAssets := rc.TotalAssets * (1 + assetRate + equity + inflation)
	stressedLiabs := rc.TotalLiabilities * (1 + liabRate)

	var stressedFunded float64
	if stressedLiabs > 0 {
		stressedFunded = stressedAssets / stressedLiabs
	}

	baseFunded := rc.FundedStatus
	if baseFunded == 0 && rc.TotalLiabilities > 0 {
		baseFunded = rc.TotalAssets / rc.TotalLiabilities
	}
	baseSurplus := rc.TotalAssets - rc.TotalLiabilities
	stressedSurplus := stressedAssets - stressedLiabs

	return types.StressResult{
		BaseFundedStatus:     baseFunded,
		StressedFundedStatus: stressedFunded,
		FundedStatusDelta:    stressedFunded - baseFunded,
		StressedAssets:       stressedAssets,
		StressedLiabilities:  stressedLiabs,
		StressedSurplus:      stressedSurplus,
		SurplusDelta:         stressedSurplus - baseSurplus,
		AssetRateImpact:      assetRate,
		LiabilityRateImpact:  liabRate,
		EquityImpact:         equity,
		InflationImpact:      inflation,
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
