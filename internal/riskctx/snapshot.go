// Package riskctx loads, derives and serves the read-only fund snapshot that
// every copilot turn runs against.
package riskctx

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/riskpilot/riskpilot/internal/types"
	"gopkg.in/yaml.v3"
)

// DefaultMaxFXExposure is used for the FX limit row when the caller has no
// configured global limit.
const DefaultMaxFXExposure = 0.15

// Validate reports the fields a snapshot must carry before any calculation
// may run on it.
func Validate(rc *types.RiskContext) error {
	if rc == nil {
		return &types.MissingContextError{}
	}

	var missing []string
	if rc.TotalAssets <= 0 {
		missing = append(missing, "total_assets")
	}
	if rc.TotalLiabilities <= 0 {
		missing = append(missing, "total_liabilities")
	}
	if rc.AssetDuration < 0 {
		missing = append(missing, "asset_duration")
	}
	if rc.LiabilityDuration < 0 {
		missing = append(missing, "liability_duration")
	}
	if len(missing) > 0 {
		return &types.MissingContextError{Fields: missing}
	}
	return nil
}

// Normalize returns a copy of rc with derived fields filled in: funded status,
// surplus, and the limit table when the engine did not supply one.
func Normalize(rc *types.RiskContext, maxFX float64) *types.RiskContext {
	out := *rc
	out.Allocation = append([]types.AllocationRow(nil), rc.Allocation...)
	out.Limits = append([]types.LimitRow(nil), rc.Limits...)

	if out.FundedStatus == 0 && out.TotalLiabilities > 0 {
		out.FundedStatus = out.TotalAssets / out.TotalLiabilities
	}
	if out.Surplus == 0 && out.TotalAssets > 0 && out.TotalLiabilities > 0 {
		out.Surplus = out.TotalAssets - out.TotalLiabilities
	}
	if maxFX <= 0 {
		maxFX = DefaultMaxFXExposure
	}
	if len(out.Limits) == 0 {
		out.Limits = BuildLimitRows(out.Allocation, out.FXExposurePct, maxFX, out.FundedStatus)
	}
	for i := range out.Limits {
		if !out.Limits[i].Status.IsValid() {
			out.Limits[i].Status = ClassifyLimit(out.Limits[i].CurrentWeight, out.Limits[i].RangeMin, out.Limits[i].RangeMax)
		}
	}
	return &out
}

// Load reads a snapshot from a YAML or JSON file, derives the missing fields
// and validates the result.
func Load(path string, maxFX float64) (*types.RiskContext, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read risk context: %w", err)
	}

	var rc types.RiskContext
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(data, &rc)
	} else {
		err = yaml.Unmarshal(data, &rc)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse risk context %s: %w", path, err)
	}

	normalized := Normalize(&rc, maxFX)
	if err := Validate(normalized); err != nil {
		return nil, fmt.Errorf("invalid risk context %s: %w", path, err)
	}
	return normalized, nil
}

// Save writes a snapshot as YAML
func Save(path string, rc *types.RiskContext) error {
	data, err := yaml.Marshal(rc)
	if err != nil {
		return fmt.Errorf("failed to marshal risk context: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write risk context: %w", err)
	}
	return nil
}

// Sample returns the built-in demonstration snapshot: a fund of roughly
// 124bn against 110.8bn of liabilities with a long liability duration.
func Sample() *types.RiskContext {
	rc := &types.RiskContext{
		AsOf:              time.Date(2026, time.January, 30, 0, 0, 0, 0, time.UTC),
		TotalAssets:       124000,
		TotalLiabilities:  110800,
		AssetDuration:     4.4,
		LiabilityDuration: 12.9,
		FXExposurePct:     0.125,
		TopIssuerWeight:   0.032,
		Allocation: []types.AllocationRow{
			{AssetClass: "Fixed Income", CurrentWeight: 0.397, PolicyTarget: 0.42, RangeMin: 0.35, RangeMax: 0.50},
			{AssetClass: "Public Equities", CurrentWeight: 0.382, PolicyTarget: 0.38, RangeMin: 0.30, RangeMax: 0.45},
			{AssetClass: "Private Real Estate", CurrentWeight: 0.201, PolicyTarget: 0.18, RangeMin: 0.12, RangeMax: 0.22},
			{AssetClass: "Private Infrastructure", CurrentWeight: 0.071, PolicyTarget: 0.07, RangeMin: 0.03, RangeMax: 0.10},
			{AssetClass: "Private Credit", CurrentWeight: 0.069, PolicyTarget: 0.07, RangeMin: 0.03, RangeMax: 0.10},
			{AssetClass: "Cash & Funding", CurrentWeight: -0.12, PolicyTarget: -0.12, RangeMin: -0.20, RangeMax: 0.00},
		},
	}
	return Normalize(rc, DefaultMaxFXExposure)
}
