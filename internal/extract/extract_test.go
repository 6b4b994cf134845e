package extract

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riskpilot/riskpilot/internal/ai"
	"github.com/riskpilot/riskpilot/internal/types"
)

type fakeCompleter struct {
	calls        int
	lastReq      ai.Request
	completeFunc func(req ai.Request) (*ai.Response, error)
}

func (f *fakeCompleter) Complete(ctx context.Context, req ai.Request) (*ai.Response, error) {
	f.calls++
	f.lastReq = req
	return f.completeFunc(req)
}

func replying(text string) *fakeCompleter {
	return &fakeCompleter{completeFunc: func(ai.Request) (*ai.Response, error) {
		return &ai.Response{Text: text}, nil
	}}
}

func TestKeywordInterpret(t *testing.T) {
	k := NewKeyword()
	tests := []struct {
		name   string
		text   string
		intent types.Intent
		params types.Parameters
	}{
		{
			name:   "duration hedge with ratio",
			text:   "Increase the duration hedge ratio to 85%",
			intent: types.IntentHedgeAdjustment,
			params: types.Parameters{Ratio: 0.85, HedgeType: types.HedgeDuration},
		},
		{
			name:   "fx hedge",
			text:   "Can we hedge 95% of our FX exposure?",
			intent: types.IntentHedgeAdjustment,
			params: types.Parameters{Ratio: 0.95, HedgeType: types.HedgeFX},
		},
		{
			name:   "equity hedge without a number",
			text:   "adjust hedge on equities",
			intent: types.IntentHedgeAdjustment,
			params: types.Parameters{Ratio: DefaultRatio, HedgeType: types.HedgeEquity},
		},
		{
			name:   "hedge wins over stress",
			text:   "stress test what happens if we hedge 60%",
			intent: types.IntentHedgeAdjustment,
			params: types.Parameters{Ratio: 0.60, HedgeType: types.HedgeDuration},
		},
		{
			name:   "stress with explicit shocks",
			text:   "Run a stress test: rates up 100bp and equities down 15%",
			intent: types.IntentStressTest,
			params: types.Parameters{RateShockBP: 100, EquityShock: -0.15},
		},
		{
			name:   "falling rates make the shock negative",
			text:   "what if rates fall 50 bps",
			intent: types.IntentStressTest,
			params: types.Parameters{RateShockBP: -50, EquityShock: DefaultEquityShock},
		},
		{
			name:   "rate cut by",
			text:   "stress: rates cut by 25bp",
			intent: types.IntentStressTest,
			params: types.Parameters{RateShockBP: -25, EquityShock: DefaultEquityShock},
		},
		{
			name:   "falling equities keep rising rates positive",
			text:   "Run a stress test where equities drop 20% and rates rise 100bp",
			intent: types.IntentStressTest,
			params: types.Parameters{RateShockBP: 100, EquityShock: -0.20},
		},
		{
			name:   "equities down before rates up",
			text:   "stress: equities down 15% and rates up 100bp",
			intent: types.IntentStressTest,
			params: types.Parameters{RateShockBP: 100, EquityShock: -0.15},
		},
		{
			name:   "lower equities after the rate shock",
			text:   "scenario: rates rise 100bp with lower equities",
			intent: types.IntentStressTest,
			params: types.Parameters{RateShockBP: 100, EquityShock: DefaultEquityShock},
		},
		{
			name:   "explicit negative bp",
			text:   "stress rates -75bp",
			intent: types.IntentStressTest,
			params: types.Parameters{RateShockBP: -75, EquityShock: DefaultEquityShock},
		},
		{
			name:   "bp shock alone is a stress test",
			text:   "What happens if rates rise 100bp?",
			intent: types.IntentStressTest,
			params: types.Parameters{RateShockBP: 100, EquityShock: DefaultEquityShock},
		},
		{
			name:   "inflation shock",
			text:   "scenario with 200bp and inflation at 3%",
			intent: types.IntentStressTest,
			params: types.Parameters{RateShockBP: 200, EquityShock: DefaultEquityShock, InflationShock: 0.03},
		},
		{
			name:   "shocks are clamped",
			text:   "shock rates by 900bp with equity -80%",
			intent: types.IntentStressTest,
			params: types.Parameters{RateShockBP: 500, EquityShock: -0.5},
		},
		{
			name:   "named preset",
			text:   "Show me the stagflation case",
			intent: types.IntentStressTest,
			params: types.Parameters{RateShockBP: 200, EquityShock: -0.15, InflationShock: 0.03, Scenario: "stagflation"},
		},
		{
			name:   "2008 alias",
			text:   "replay 2008",
			intent: types.IntentStressTest,
			params: types.Parameters{RateShockBP: -150, EquityShock: -0.40, InflationShock: -0.01, Scenario: "crisis_2008"},
		},
		{
			name:   "limits",
			text:   "Any limit breaches today?",
			intent: types.IntentLimitQuery,
			params: types.Parameters{View: types.ViewLimits},
		},
		{
			name:   "allocation view",
			text:   "show the current allocation",
			intent: types.IntentLimitQuery,
			params: types.Parameters{View: types.ViewAllocation},
		},
		{
			name:   "metrics view",
			text:   "what's our duration gap",
			intent: types.IntentLimitQuery,
			params: types.Parameters{View: types.ViewMetrics},
		},
		{
			name:   "general",
			text:   "Explain what liability-driven investing means",
			intent: types.IntentGeneralQuery,
			params: types.Parameters{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			intent, params := k.Interpret(tt.text)
			assert.Equal(t, tt.intent, intent)
			assert.InDelta(t, tt.params.Ratio, params.Ratio, 1e-12)
			assert.Equal(t, tt.params.HedgeType, params.HedgeType)
			assert.InDelta(t, tt.params.RateShockBP, params.RateShockBP, 1e-12)
			assert.InDelta(t, tt.params.EquityShock, params.EquityShock, 1e-12)
			assert.InDelta(t, tt.params.InflationShock, params.InflationShock, 1e-12)
			assert.Equal(t, tt.params.Scenario, params.Scenario)
			assert.Equal(t, tt.params.View, params.View)
		})
	}
}

func TestKeywordExtractStep(t *testing.T) {
	ext := NewKeyword().Extract(context.Background(), "hedge 85%", nil)
	assert.Equal(t, StrategyKeyword, ext.Strategy)
	assert.Equal(t, ToolCheckHedge, ext.Tool)
	assert.Equal(t, types.StageAnalyze, ext.Step.Stage)
	assert.Equal(t, types.StepSuccess, ext.Step.Status)
	require.NotNil(t, ext.Step.Tool)
	assert.Equal(t, 0.85, ext.Step.Tool.Params["ratio"])
}

func TestModelExtract(t *testing.T) {
	tests := []struct {
		name   string
		reply  string
		intent types.Intent
		params types.Parameters
	}{
		{
			name:   "hedge",
			reply:  `{"selected_tool": "check_hedge_compliance", "tool_params": {"ratio": 0.85, "hedge_type": "duration"}, "reasoning": "hedge request"}`,
			intent: types.IntentHedgeAdjustment,
			params: types.Parameters{Ratio: 0.85, HedgeType: types.HedgeDuration},
		},
		{
			name:   "fenced with alias and numeric string",
			reply:  "```json\n{\"selected_tool\": \"check_hedge_compliance\", \"tool_params\": {\"hedge_ratio\": \"0.9\", \"hedge_type\": \"fx\"}}\n```",
			intent: types.IntentHedgeAdjustment,
			params: types.Parameters{Ratio: 0.9, HedgeType: types.HedgeFX},
		},
		{
			name:   "stress defaults fill missing shocks",
			reply:  `{"selected_tool": "run_stress_test", "tool_params": {"rate_shock_bp": 100}}`,
			intent: types.IntentStressTest,
			params: types.Parameters{RateShockBP: 100, EquityShock: DefaultEquityShock},
		},
		{
			name:   "stress preset by name",
			reply:  `{"selected_tool": "run_stress_test", "tool_params": {"scenario_name": "equity crash"}}`,
			intent: types.IntentStressTest,
			params: types.Parameters{EquityShock: -0.20, Scenario: "equity_crash"},
		},
		{
			name:   "metrics",
			reply:  `{"selected_tool": "get_risk_metrics", "tool_params": {}}`,
			intent: types.IntentLimitQuery,
			params: types.Parameters{View: types.ViewMetrics},
		},
		{
			name:   "general with null params",
			reply:  `{"selected_tool": "general_response", "tool_params": null}`,
			intent: types.IntentGeneralQuery,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := replying(tt.reply)
			m, err := NewModel(&ModelConfig{Client: client})
			require.NoError(t, err)

			ext := m.Extract(context.Background(), "anything", nil)
			assert.Equal(t, StrategyModel, ext.Strategy)
			assert.Equal(t, tt.intent, ext.Intent)
			assert.Equal(t, tt.params, ext.Params)
			assert.Equal(t, types.StepSuccess, ext.Step.Status)
			assert.Equal(t, "extraction", client.lastReq.Operation)
			assert.Zero(t, client.lastReq.Temperature)
		})
	}
}

func TestModelExtractFallsBack(t *testing.T) {
	tests := []struct {
		name   string
		client *fakeCompleter
		reason string
	}{
		{
			name: "model error",
			client: &fakeCompleter{completeFunc: func(ai.Request) (*ai.Response, error) {
				return nil, errors.New("503 service unavailable")
			}},
			reason: "model call failed",
		},
		{name: "prose", client: replying("I think you want a hedge check."), reason: "unparseable"},
		{name: "unknown tool", client: replying(`{"selected_tool": "sell_everything", "tool_params": {}}`), reason: "unknown tool"},
		{name: "ratio out of bounds", client: replying(`{"selected_tool": "check_hedge_compliance", "tool_params": {"ratio": 85}}`), reason: "invalid tool_params"},
		{name: "rate shock out of bounds", client: replying(`{"selected_tool": "run_stress_test", "tool_params": {"rate_shock_bp": 900}}`), reason: "invalid tool_params"},
		{name: "bad hedge type", client: replying(`{"selected_tool": "check_hedge_compliance", "tool_params": {"ratio": 0.5, "hedge_type": "gold"}}`), reason: "invalid tool_params"},
		{name: "unexpected param", client: replying(`{"selected_tool": "check_hedge_compliance", "tool_params": {"ratio": 0.5, "leverage": 3}}`), reason: "invalid tool_params"},
		{name: "params not an object", client: replying(`{"selected_tool": "run_stress_test", "tool_params": [100]}`), reason: "must be an object"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewModel(&ModelConfig{Client: tt.client})
			require.NoError(t, err)

			ext := m.Extract(context.Background(), "Increase the duration hedge to 85%", nil)
			assert.Equal(t, StrategyFallback, ext.Strategy)
			assert.Equal(t, types.IntentHedgeAdjustment, ext.Intent)
			assert.Equal(t, 0.85, ext.Params.Ratio)
			assert.Equal(t, types.StepWarning, ext.Step.Status)
			assert.True(t, strings.Contains(ext.Step.Detail, tt.reason), "detail %q should mention %q", ext.Step.Detail, tt.reason)
			require.NotNil(t, ext.Step.Tool, "fallback step keeps tool metadata")
		})
	}
}

func TestNewModelRequiresClient(t *testing.T) {
	_, err := NewModel(&ModelConfig{})
	assert.Error(t, err)
}

func TestSystemPromptListsTools(t *testing.T) {
	prompt := SystemPrompt()
	for _, tool := range Tools() {
		assert.Contains(t, prompt, tool.Name)
	}
	assert.Contains(t, prompt, "crisis_2008")
	assert.Contains(t, prompt, `"selected_tool"`)
}

func TestToolFor(t *testing.T) {
	assert.Equal(t, ToolCheckHedge, ToolFor(types.IntentHedgeAdjustment, ""))
	assert.Equal(t, ToolStressTest, ToolFor(types.IntentStressTest, ""))
	assert.Equal(t, ToolLimitStatus, ToolFor(types.IntentLimitQuery, ""))
	assert.Equal(t, ToolAssetAllocation, ToolFor(types.IntentLimitQuery, types.ViewAllocation))
	assert.Equal(t, ToolGeneral, ToolFor(types.IntentGeneralQuery, ""))
	assert.Len(t, Tools(), 6)
}
