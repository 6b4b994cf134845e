package calc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riskpilot/riskpilot/internal/riskctx"
	"github.com/riskpilot/riskpilot/internal/types"
)

func TestRunScenariosKeepsOrder(t *testing.T) {
	rc := riskctx.Sample()
	presets := Presets()

	results, err := RunScenarios(context.Background(), rc, presets)
	require.NoError(t, err)
	require.Len(t, results, len(presets))
	for i, r := range results {
		assert.Equal(t, presets[i].Name, r.Scenario.Name)
		assert.Equal(t, Stress(rc, presets[i].Shocks), r.Result)
	}
}

func TestRunScenariosErrors(t *testing.T) {
	_, err := RunScenarios(context.Background(), nil, Presets())
	var missing *types.MissingContextError
	assert.ErrorAs(t, err, &missing)

	bad := []Scenario{{Name: "extreme", Shocks: Shocks{RateShockBP: 900}}}
	_, err = RunScenarios(context.Background(), riskctx.Sample(), bad)
	assert.ErrorContains(t, err, "scenario extreme")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = RunScenarios(ctx, riskctx.Sample(), Presets())
	assert.ErrorIs(t, err, context.Canceled)
}
