// Package compliance checks proposed hedge ratios and fund-wide exposures
// against the fund's hard limits.
package compliance

import (
	"fmt"
	"sort"

	"github.com/riskpilot/riskpilot/internal/types"
	"github.com/shopspring/decimal"
)

// DefaultSafetyFactor places a recommendation 5% below the hard limit so that
// re-auditing it can never fail again.
const DefaultSafetyFactor = 0.95

// HedgeLimits maps a hedge type to its maximum hedge ratio
type HedgeLimits map[types.HedgeType]float64

// DefaultHedgeLimits returns the fund's documented per-hedge-type limits
func DefaultHedgeLimits() HedgeLimits {
	return HedgeLimits{
		types.HedgeDuration: 0.80,
		types.HedgeFX:       0.90,
		types.HedgeEquity:   0.50,
	}
}

// Config holds auditor configuration
type Config struct {
	HedgeLimits  HedgeLimits // Uses DefaultHedgeLimits() for any type left unset
	SafetyFactor float64     // Default: 0.95
}

// Auditor is a pure, stateless compliance check over a fixed limit table.
// It is safe for concurrent use.
type Auditor struct {
	limits HedgeLimits
	safety decimal.Decimal
}

// NewAuditor creates an auditor. The duration limit must be present because
// unknown hedge types fall back to it.
func NewAuditor(cfg *Config) (*Auditor, error) {
	limits := DefaultHedgeLimits()
	safety := DefaultSafetyFactor

	if cfg != nil {
		for ht, max := range cfg.HedgeLimits {
			limits[ht] = max
		}
		if cfg.SafetyFactor != 0 {
			safety = cfg.SafetyFactor
		}
	}

	for ht, max := range limits {
		if !ht.IsValid() {
			return nil, fmt.Errorf("unknown hedge type in limit table: %q", ht)
		}
		if max <= 0 || max > 1 {
			return nil, fmt.Errorf("hedge limit for %s must be in (0, 1] (got %.4f)", ht, max)
		}
	}
	if safety <= 0 || safety >= 1 {
		return nil, fmt.Errorf("safety_factor must be in (0, 1) (got %.4f)", safety)
	}

	return &Auditor{limits: limits, safety: decimal.NewFromFloat(safety)}, nil
}

// MaxFor returns the limit applied to a hedge type
func (a *Auditor) MaxFor(ht types.HedgeType) float64 {
	if max, ok := a.limits[ht]; ok {
		return max
	}
	return a.limits[types.HedgeDuration]
}

// Limits returns a copy of the limit table ordered by hedge type
func (a *Auditor) Limits() []LimitEntry {
	entries := make([]LimitEntry, 0, len(a.limits))
	for ht, max := range a.limits {
		entries = append(entries, LimitEntry{HedgeType: ht, MaxRatio: max})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].HedgeType < entries[j].HedgeType })
	return entries
}

// LimitEntry is one row of the hedge limit table
type LimitEntry struct {
	HedgeType types.HedgeType `json:"hedge_type"`
	MaxRatio  float64         `json:"max_ratio"`
}

// Audit checks a hedge proposal against its limit. The limit is inclusive: a
// ratio exactly at the maximum passes.
func (a *Auditor) Audit(p types.HedgeProposal) types.AuditResult {
	return a.AuditRatio(p.Ratio, p.HedgeType)
}

// AuditRatio is Audit for a bare ratio
func (a *Auditor) AuditRatio(ratio float64, ht types.HedgeType) types.AuditResult {
	if !ht.IsValid() {
		ht = types.HedgeDuration
	}
	max := a.MaxFor(ht)

	result := types.AuditResult{
		Status:     types.AuditPass,
		HedgeType:  ht,
		Proposed:   ratio,
		MaxAllowed: max,
	}
	if ratio <= max {
		return result
	}

	rec := a.Recommend(max)
	result.Status = types.AuditFail
	result.Recommendation = &rec
	return result
}

// Recommend returns the compliant ratio offered in place of a breach:
// max × safety factor, truncated to basis-point precision so that rounding
// can only move it further from the limit.
func (a *Auditor) Recommend(max float64) float64 {
	return decimal.NewFromFloat(max).Mul(a.safety).Truncate(4).InexactFloat64()
}
