package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/riskpilot/riskpilot/internal/ai"
	"github.com/riskpilot/riskpilot/internal/calc"
	"github.com/riskpilot/riskpilot/internal/types"
)

// ModelConfig configures the model-delegated extractor
type ModelConfig struct {
	Client   ai.Completer
	Fallback Extractor     // defaults to Keyword
	Timeout  time.Duration // defaults to 30s
	Logger   *slog.Logger
}

// Model asks a language model to select a tool. Its output is untrusted:
// it must parse, name a known tool and satisfy that tool's schema, or the
// fallback extractor answers instead.
type Model struct {
	client   ai.Completer
	fallback Extractor
	timeout  time.Duration
	logger   *slog.Logger
}

// NewModel creates a model-delegated extractor
func NewModel(cfg *ModelConfig) (*Model, error) {
	if cfg == nil || cfg.Client == nil {
		return nil, fmt.Errorf("model client is required")
	}
	m := &Model{
		client:   cfg.Client,
		fallback: cfg.Fallback,
		timeout:  cfg.Timeout,
		logger:   cfg.Logger,
	}
	if m.fallback == nil {
		m.fallback = NewKeyword()
	}
	if m.timeout == 0 {
		m.timeout = 30 * time.Second
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	return m, nil
}

type toolSelection struct {
	SelectedTool string          `json:"selected_tool"`
	ToolParams   json.RawMessage `json:"tool_params"`
	Reasoning    string          `json:"reasoning"`
}

// Extract implements Extractor
func (m *Model) Extract(ctx context.Context, text string, rc *types.RiskContext) Extraction {
	ext, reasoning, err := m.selectTool(ctx, text)
	if err != nil {
		m.logger.Warn("model tool selection failed, using keyword fallback", "error", err)
		fb := m.fallback.Extract(ctx, text, rc)
		fb.Strategy = StrategyFallback
		fb.Step.Status = types.StepWarning
		fb.Step.Message = fmt.Sprintf("Model tool selection failed, using keyword fallback: detected intent %s", fb.Intent)
		fb.Step.Detail = err.Error()
		return fb
	}

	ext.Step = types.NewStep(types.StageAnalyze, types.StepSuccess,
		fmt.Sprintf("Model selected tool %s (intent %s)", ext.Tool, ext.Intent)).
		WithDetail("%s", reasoning).
		WithTool(ext.Tool, ext.Params.Map(ext.Intent), nil)
	return ext
}

func (m *Model) selectTool(ctx context.Context, text string) (Extraction, string, error) {
	callCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	resp, err := m.client.Complete(callCtx, ai.Request{
		Operation:   "extraction",
		System:      SystemPrompt(),
		Prompt:      text,
		MaxTokens:   300,
		Temperature: 0,
	})
	if err != nil {
		return Extraction{}, "", fmt.Errorf("model call failed: %w", err)
	}

	parsed := ai.Parse[toolSelection](resp.Text, ai.ParseOptions{Context: "tool selection", LogErrors: true})
	if !parsed.Success {
		return Extraction{}, "", fmt.Errorf("unparseable model output: %s", parsed.Error)
	}
	sel := parsed.Data

	tool, ok := LookupTool(strings.TrimSpace(sel.SelectedTool))
	if !ok {
		return Extraction{}, "", fmt.Errorf("model selected unknown tool %q", sel.SelectedTool)
	}

	raw := strings.TrimSpace(string(sel.ToolParams))
	if raw == "" || raw == "null" {
		raw = "{}"
	}
	if !gjson.Valid(raw) || !gjson.Parse(raw).IsObject() {
		return Extraction{}, "", fmt.Errorf("tool_params for %s must be an object", tool.Name)
	}

	params := normalizeParams(gjson.Parse(raw))
	if err := tool.Validate(params); err != nil {
		return Extraction{}, "", fmt.Errorf("invalid tool_params for %s: %w", tool.Name, err)
	}

	return Extraction{
		Intent:   tool.Intent,
		Params:   toParameters(tool, gjson.Parse(raw)),
		Tool:     tool.Name,
		Strategy: StrategyModel,
	}, sel.Reasoning, nil
}

// normalizeParams decodes tool params with numeric strings coerced to
// numbers ("0.85" → 0.85) and known aliases folded to canonical keys.
func normalizeParams(obj gjson.Result) map[string]interface{} {
	out := make(map[string]interface{})
	obj.ForEach(func(key, value gjson.Result) bool {
		name := key.String()
		if canonical, ok := paramAliases[name]; ok {
			name = canonical
		}
		switch {
		case value.Type == gjson.String && isNumeric(value.Str):
			out[name] = value.Float()
		default:
			out[name] = value.Value()
		}
		return true
	})
	return out
}

var paramAliases = map[string]string{
	"hedge_ratio":     "ratio",
	"equity_shock":    "equity_shock_pct",
	"inflation_shock": "inflation_shock_pct",
	"scenario":        "scenario_name",
}

func isNumeric(s string) bool {
	r := gjson.Parse(strings.TrimSpace(s))
	return r.Type == gjson.Number
}

// lookup reads a param by canonical name or any alias
func lookup(obj gjson.Result, canonical string) gjson.Result {
	if v := obj.Get(canonical); v.Exists() {
		return v
	}
	for alias, c := range paramAliases {
		if c == canonical {
			if v := obj.Get(alias); v.Exists() {
				return v
			}
		}
	}
	return gjson.Result{}
}

// toParameters maps schema-valid params onto Parameters, filling defaults
func toParameters(tool *Tool, obj gjson.Result) types.Parameters {
	switch tool.Intent {
	case types.IntentHedgeAdjustment:
		p := types.Parameters{Ratio: DefaultRatio, HedgeType: types.HedgeDuration}
		if v := lookup(obj, "ratio"); v.Exists() {
			p.Ratio = v.Float()
		}
		if v := obj.Get("hedge_type"); v.Exists() {
			p.HedgeType = types.ParseHedgeType(v.String())
		}
		return p

	case types.IntentStressTest:
		shocks := calc.Shocks{
			RateShockBP:    DefaultRateShockBP,
			EquityShock:    DefaultEquityShock,
			InflationShock: DefaultInflationShock,
		}
		name := lookup(obj, "scenario_name").String()
		rate, equity, infl := lookup(obj, "rate_shock_bp"), lookup(obj, "equity_shock_pct"), lookup(obj, "inflation_shock_pct")

		if preset, ok := calc.Preset(strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), " ", "_"))); ok &&
			!rate.Exists() && !equity.Exists() && !infl.Exists() {
			shocks = preset.Shocks
			name = preset.Name
		}
		if rate.Exists() {
			shocks.RateShockBP = rate.Float()
		}
		if equity.Exists() {
			shocks.EquityShock = equity.Float()
		}
		if infl.Exists() {
			shocks.InflationShock = infl.Float()
		}
		return types.Parameters{
			RateShockBP:    shocks.RateShockBP,
			EquityShock:    shocks.EquityShock,
			InflationShock: shocks.InflationShock,
			Scenario:       name,
		}

	case types.IntentLimitQuery:
		return types.Parameters{View: tool.View}
	}
	return types.Parameters{}
}

// SystemPrompt is the tool-selection contract sent to the model
func SystemPrompt() string {
	var b strings.Builder
	b.WriteString("You are a tool selector for a pension fund risk system.\n\nAvailable tools:\n")
	for i, t := range Tools() {
		fmt.Fprintf(&b, "%d. %s - %s\n", i+1, t.Name, t.Description)
	}
	b.WriteString(`
Rules:
- If the user mentions hedge or hedging, use check_hedge_compliance
- If the user mentions stress, scenario, shock, crisis or what-if, use run_stress_test
- If the user mentions limit, breach, warning or compliance, use get_limit_status
- If the user mentions allocation or portfolio weights, use get_asset_allocation
- For questions about funded status, surplus or duration gap, use get_risk_metrics
- Otherwise use general_response

Parameters:
- check_hedge_compliance: {"ratio": decimal 0-1 (85% -> 0.85), "hedge_type": "duration"|"fx"|"equity"}
- run_stress_test: {"rate_shock_bp": integer basis points (-500..500), "equity_shock_pct": decimal (-0.5..0.5, a 15% fall -> -0.15), "inflation_shock_pct": decimal (-0.1..0.1), "scenario_name": preset name if one is named}
- other tools: {}

Preset scenarios: `)
	names := make([]string, 0, len(calc.Presets()))
	for _, s := range calc.Presets() {
		names = append(names, s.Name)
	}
	b.WriteString(strings.Join(names, ", "))
	b.WriteString(`

Respond ONLY with a JSON object, no other text:
{"selected_tool": "tool_name", "tool_params": {...}, "reasoning": "why this tool"}`)
	return b.String()
}
