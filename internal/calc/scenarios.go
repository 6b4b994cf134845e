package calc

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/riskpilot/riskpilot/internal/types"
)

// ScenarioResult pairs a scenario with its stressed outcome
type ScenarioResult struct {
	Scenario Scenario           `json:"scenario"`
	Result   types.StressResult `json:"result"`
}

// RunScenarios stresses one snapshot under each scenario concurrently.
// Results keep the order of the input. Each scenario's shocks must be
// within bounds.
func RunScenarios(ctx context.Context, rc *types.RiskContext, scenarios []Scenario) ([]ScenarioResult, error) {
	if rc == nil {
		return nil, &types.MissingContextError{Fields: []string{"risk_context"}}
	}
	results := make([]ScenarioResult, len(scenarios))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, s := range scenarios {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := s.Shocks.Validate(); err != nil {
				return fmt.Errorf("scenario %s: %w", s.Name, err)
			}
			results[i] = ScenarioResult{Scenario: s, Result: Stress(rc, s.Shocks)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
