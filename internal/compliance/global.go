package compliance

import (
	"fmt"

	"github.com/riskpilot/riskpilot/internal/types"
)

// GlobalLimits are fund-wide exposure bounds independent of any hedge program
type GlobalLimits struct {
	MaxFXExposure     float64 `json:"max_fx_exposure" mapstructure:"max_fx_exposure"`
	MinEquityExposure float64 `json:"min_equity_exposure" mapstructure:"min_equity_exposure"`
	MaxSingleIssuer   float64 `json:"max_single_issuer" mapstructure:"max_single_issuer"`
}

// DefaultGlobalLimits returns the fund's documented global limits
func DefaultGlobalLimits() GlobalLimits {
	return GlobalLimits{
		MaxFXExposure:     0.15,
		MinEquityExposure: 0.20,
		MaxSingleIssuer:   0.05,
	}
}

// Validate checks if the limits are usable ratios
func (g GlobalLimits) Validate() error {
	for name, v := range map[string]float64{
		"max_fx_exposure":     g.MaxFXExposure,
		"min_equity_exposure": g.MinEquityExposure,
		"max_single_issuer":   g.MaxSingleIssuer,
	} {
		if v <= 0 || v > 1 {
			return fmt.Errorf("%s must be in (0, 1] (got %.4f)", name, v)
		}
	}
	return nil
}

// CheckGlobal evaluates the snapshot against the global limits. The issuer
// check is skipped when the snapshot does not report a top issuer weight.
func CheckGlobal(rc *types.RiskContext, limits GlobalLimits) []types.GlobalLimitResult {
	if rc == nil {
		return nil
	}

	results := []types.GlobalLimitResult{
		{
			Name:    "FX exposure",
			Current: rc.FXExposurePct,
			Limit:   limits.MaxFXExposure,
			Bound:   "max",
			Passed:  rc.FXExposurePct <= limits.MaxFXExposure,
		},
	}

	equity := rc.AllocationWeight("equit")
	results = append(results, types.GlobalLimitResult{
		Name:    "Equity exposure",
		Current: equity,
		Limit:   limits.MinEquityExposure,
		Bound:   "min",
		Passed:  equity >= limits.MinEquityExposure,
	})

	if rc.TopIssuerWeight > 0 {
		results = append(results, types.GlobalLimitResult{
			Name:    "Single issuer",
			Current: rc.TopIssuerWeight,
			Limit:   limits.MaxSingleIssuer,
			Bound:   "max",
			Passed:  rc.TopIssuerWeight <= limits.MaxSingleIssuer,
		})
	}
	return results
}

// Violations filters a global check down to the failed limits
func Violations(results []types.GlobalLimitResult) []types.GlobalLimitResult {
	var out []types.GlobalLimitResult
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}
