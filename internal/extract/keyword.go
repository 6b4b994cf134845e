package extract

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/riskpilot/riskpilot/internal/calc"
	"github.com/riskpilot/riskpilot/internal/types"
)

// Defaults used when the text names an intent but not its numbers
const (
	DefaultRatio          = 0.70
	DefaultRateShockBP    = 100.0
	DefaultEquityShock    = -0.15
	DefaultInflationShock = 0.0
)

var (
	hedgeKeywords  = []string{"hedge", "hedging", "adjust hedge", "hedge ratio"}
	stressKeywords = []string{"stress", "scenario", "shock", "crisis", "what if", "what-if"}
	limitKeywords  = []string{"limit", "breach", "warning", "compliance"}

	allocationKeywords = []string{"allocation", "asset mix", "portfolio weights"}
	metricsKeywords    = []string{"risk metrics", "metrics", "duration gap"}

	pctRegex       = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*%`)
	bpRegex        = regexp.MustCompile(`(-?\d+(?:\.\d+)?)\s*bps?\b`)
	rateDownRegex  = regexp.MustCompile(`\brates?\s+(?:go\s+|move\s+)?(?:down|fall\w*|drop\w*|cut\w*|declin\w*|lower\w*)(?:\s+(?:by|of))?\s+(\d+(?:\.\d+)?)\s*bps?\b`)
	equityRegex    = regexp.MustCompile(`equit\w*.*?(-?\d+(?:\.\d+)?)\s*%`)
	inflationRegex = regexp.MustCompile(`inflation.*?(-?\d+(?:\.\d+)?)\s*%`)
	fxRegex        = regexp.MustCompile(`\b(fx|currency|currencies|foreign exchange)\b`)
)

// Keyword is the deterministic extractor. It is safe for concurrent use.
type Keyword struct{}

// NewKeyword creates a keyword extractor
func NewKeyword() *Keyword { return &Keyword{} }

// Extract implements Extractor
func (k *Keyword) Extract(_ context.Context, text string, _ *types.RiskContext) Extraction {
	intent, params := k.Interpret(text)
	tool := ToolFor(intent, params.View)

	step := types.NewStep(types.StageAnalyze, types.StepSuccess,
		fmt.Sprintf("Detected intent %s", intent)).
		WithDetail("keyword match, tool %s", tool).
		WithTool(tool, params.Map(intent), nil)

	return Extraction{
		Intent:   intent,
		Params:   params,
		Tool:     tool,
		Strategy: StrategyKeyword,
		Step:     step,
	}
}

// Interpret classifies text and pulls out its numbers. Values are clamped
// into their supported bounds.
func (k *Keyword) Interpret(text string) (types.Intent, types.Parameters) {
	lower := strings.ToLower(text)

	switch {
	case containsAny(lower, hedgeKeywords):
		return types.IntentHedgeAdjustment, types.Parameters{
			Ratio:     parseRatio(lower),
			HedgeType: parseHedgeType(lower),
		}

	case containsAny(lower, stressKeywords), findPreset(lower) != nil, bpRegex.MatchString(lower):
		return types.IntentStressTest, parseStress(lower)

	case containsAny(lower, limitKeywords):
		return types.IntentLimitQuery, types.Parameters{View: types.ViewLimits}

	case containsAny(lower, allocationKeywords):
		return types.IntentLimitQuery, types.Parameters{View: types.ViewAllocation}

	case containsAny(lower, metricsKeywords):
		return types.IntentLimitQuery, types.Parameters{View: types.ViewMetrics}
	}

	return types.IntentGeneralQuery, types.Parameters{}
}

func parseRatio(lower string) float64 {
	m := pctRegex.FindStringSubmatch(lower)
	if m == nil {
		return DefaultRatio
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return DefaultRatio
	}
	return clamp(v/100, 0, 1)
}

func parseHedgeType(lower string) types.HedgeType {
	switch {
	case fxRegex.MatchString(lower):
		return types.HedgeFX
	case strings.Contains(lower, "equity") || strings.Contains(lower, "equities"):
		return types.HedgeEquity
	}
	return types.HedgeDuration
}

func parseStress(lower string) types.Parameters {
	if preset := findPreset(lower); preset != nil {
		return types.Parameters{
			RateShockBP:    preset.Shocks.RateShockBP,
			EquityShock:    preset.Shocks.EquityShock,
			InflationShock: preset.Shocks.InflationShock,
			Scenario:       preset.Name,
		}
	}

	shocks := calc.Shocks{
		RateShockBP:    DefaultRateShockBP,
		EquityShock:    DefaultEquityShock,
		InflationShock: DefaultInflationShock,
	}

	// A direction word counts only when it follows "rates" and precedes the
	// number directly; otherwise the sign is the one written.
	if m := rateDownRegex.FindStringSubmatch(lower); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			shocks.RateShockBP = -math.Abs(v)
		}
	} else if m := bpRegex.FindStringSubmatch(lower); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			shocks.RateShockBP = v
		}
	}
	if m := equityRegex.FindStringSubmatch(lower); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			shocks.EquityShock = -math.Abs(v) / 100
		}
	}
	if m := inflationRegex.FindStringSubmatch(lower); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			shocks.InflationShock = v / 100
		}
	}

	shocks = shocks.Clamp()
	return types.Parameters{
		RateShockBP:    shocks.RateShockBP,
		EquityShock:    shocks.EquityShock,
		InflationShock: shocks.InflationShock,
	}
}

// findPreset matches a preset by its name, written with underscores or spaces
func findPreset(lower string) *calc.Scenario {
	for _, s := range calc.Presets() {
		if strings.Contains(lower, s.Name) || strings.Contains(lower, strings.ReplaceAll(s.Name, "_", " ")) {
			preset := s
			return &preset
		}
	}
	if strings.Contains(lower, "2008") {
		if s, ok := calc.Preset("crisis_2008"); ok {
			return &s
		}
	}
	return nil
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
