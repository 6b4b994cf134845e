package types

import (
	"fmt"
	"strings"
	"time"
)

// RiskContext is a point-in-time snapshot of the fund produced by the risk engine.
// Monetary values are in millions. The snapshot is read-only once built.
type RiskContext struct {
	AsOf              time.Time       `json:"as_of" yaml:"as_of"`
	TotalAssets       float64         `json:"total_assets" yaml:"total_assets"`
	TotalLiabilities  float64         `json:"total_liabilities" yaml:"total_liabilities"`
	FundedStatus      float64         `json:"funded_status" yaml:"funded_status"`
	Surplus           float64         `json:"surplus" yaml:"surplus"`
	AssetDuration     float64         `json:"asset_duration" yaml:"asset_duration"`
	LiabilityDuration float64         `json:"liability_duration" yaml:"liability_duration"`
	FXExposurePct     float64         `json:"fx_exposure_pct" yaml:"fx_exposure_pct"`
	TopIssuerWeight   float64         `json:"top_issuer_weight,omitempty" yaml:"top_issuer_weight,omitempty"`
	Allocation        []AllocationRow `json:"allocation" yaml:"allocation"`
	Limits            []LimitRow      `json:"limits" yaml:"limits"`
}

// DurationGap is asset duration minus liability duration, in years
func (rc *RiskContext) DurationGap() float64 {
	return rc.AssetDuration - rc.LiabilityDuration
}

// Metrics returns the headline numbers of the snapshot
func (rc *RiskContext) Metrics() RiskMetrics {
	return RiskMetrics{
		FundedStatus:      rc.FundedStatus,
		Surplus:           rc.Surplus,
		TotalAssets:       rc.TotalAssets,
		TotalLiabilities:  rc.TotalLiabilities,
		AssetDuration:     rc.AssetDuration,
		LiabilityDuration: rc.LiabilityDuration,
		DurationGap:       rc.DurationGap(),
		FXExposurePct:     rc.FXExposurePct,
	}
}

// AllocationWeight returns the summed current weight of every asset class whose
// name contains the given fragment (case-insensitive).
func (rc *RiskContext) AllocationWeight(fragment string) float64 {
	fragment = strings.ToLower(fragment)
	var total float64
	for _, row := range rc.Allocation {
		if strings.Contains(strings.ToLower(row.AssetClass), fragment) {
			total += row.CurrentWeight
		}
	}
	return total
}

// AllocationRow is one asset class against its policy target and allowed range
type AllocationRow struct {
	AssetClass    string  `json:"asset_class" yaml:"asset_class"`
	CurrentWeight float64 `json:"current_weight" yaml:"current_weight"`
	PolicyTarget  float64 `json:"policy_target" yaml:"policy_target"`
	RangeMin      float64 `json:"range_min" yaml:"range_min"`
	RangeMax      float64 `json:"range_max" yaml:"range_max"`
}

// Deviation is current weight minus policy target
func (r AllocationRow) Deviation() float64 {
	return r.CurrentWeight - r.PolicyTarget
}

// InRange reports whether the current weight sits inside the allowed range
func (r AllocationRow) InRange() bool {
	return r.CurrentWeight >= r.RangeMin && r.CurrentWeight <= r.RangeMax
}

// LimitStatus is the traffic-light classification of a limit row
type LimitStatus string

const (
	LimitBreach  LimitStatus = "BREACH"
	LimitWarning LimitStatus = "WARNING"
	LimitOK      LimitStatus = "OK"
)

// IsValid checks if the limit status value is valid
func (s LimitStatus) IsValid() bool {
	switch s {
	case LimitBreach, LimitWarning, LimitOK:
		return true
	}
	return false
}

// LimitRow is one line of the limit monitoring table
type LimitRow struct {
	Label         string      `json:"label" yaml:"label"`
	CurrentWeight float64     `json:"current_weight" yaml:"current_weight"`
	PolicyTarget  float64     `json:"policy_target,omitempty" yaml:"policy_target,omitempty"`
	RangeMin      float64     `json:"range_min" yaml:"range_min"`
	RangeMax      float64     `json:"range_max" yaml:"range_max"`
	Status        LimitStatus `json:"status" yaml:"status"`
}

// MissingContextError reports a snapshot that is structurally unusable.
// It is fatal for the turn: the context is wrong, not transiently unavailable.
type MissingContextError struct {
	Fields []string
}

func (e *MissingContextError) Error() string {
	if len(e.Fields) == 0 {
		return "risk context is missing"
	}
	return fmt.Sprintf("risk context is missing required fields: %s", strings.Join(e.Fields, ", "))
}
