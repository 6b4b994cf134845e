package extract

import (
	"fmt"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/riskpilot/riskpilot/internal/calc"
	"github.com/riskpilot/riskpilot/internal/types"
)

// Tool names offered to the model
const (
	ToolCheckHedge      = "check_hedge_compliance"
	ToolStressTest      = "run_stress_test"
	ToolLimitStatus     = "get_limit_status"
	ToolRiskMetrics     = "get_risk_metrics"
	ToolAssetAllocation = "get_asset_allocation"
	ToolGeneral         = "general_response"
)

// Tool is one entry of the catalog the model selects from
type Tool struct {
	Name        string
	Description string
	Intent      types.Intent
	View        types.QueryView
	Schema      string

	compiled *jsonschema.Schema
}

var catalog = mustBuildCatalog([]Tool{
	{
		Name:        ToolCheckHedge,
		Description: "Check a proposed hedge ratio against compliance limits (exceeding a limit requires approval)",
		Intent:      types.IntentHedgeAdjustment,
		Schema: `{
			"type": "object",
			"properties": {
				"ratio": {"type": "number", "minimum": 0, "maximum": 1},
				"hedge_type": {"enum": ["duration", "fx", "equity"]}
			},
			"additionalProperties": false
		}`,
	},
	{
		Name:        ToolStressTest,
		Description: "Run a stress test with a rate shock in basis points, an equity shock and an inflation shock",
		Intent:      types.IntentStressTest,
		Schema: fmt.Sprintf(`{
			"type": "object",
			"properties": {
				"rate_shock_bp": {"type": "number", "minimum": %[1]g, "maximum": %[2]g},
				"equity_shock_pct": {"type": "number", "minimum": %[3]g, "maximum": %[4]g},
				"inflation_shock_pct": {"type": "number", "minimum": %[5]g, "maximum": %[6]g},
				"scenario_name": {"type": "string"}
			},
			"additionalProperties": false
		}`, -calc.MaxRateShockBP, calc.MaxRateShockBP,
			-calc.MaxEquityShock, calc.MaxEquityShock,
			-calc.MaxInflationShock, calc.MaxInflationShock),
	},
	{
		Name:        ToolLimitStatus,
		Description: "Query limit status (breaches, warnings, global limits)",
		Intent:      types.IntentLimitQuery,
		View:        types.ViewLimits,
		Schema:      emptySchema,
	},
	{
		Name:        ToolRiskMetrics,
		Description: "Get core risk metrics (funded status, surplus, duration gap)",
		Intent:      types.IntentLimitQuery,
		View:        types.ViewMetrics,
		Schema:      emptySchema,
	},
	{
		Name:        ToolAssetAllocation,
		Description: "Get asset allocation against policy targets",
		Intent:      types.IntentLimitQuery,
		View:        types.ViewAllocation,
		Schema:      emptySchema,
	},
	{
		Name:        ToolGeneral,
		Description: "Answer a general question that needs no computation",
		Intent:      types.IntentGeneralQuery,
		Schema:      emptySchema,
	},
})

// Tools accept no parameters but models sometimes send an empty or
// descriptive object anyway.
const emptySchema = `{"type": "object"}`

func mustBuildCatalog(tools []Tool) map[string]*Tool {
	out := make(map[string]*Tool, len(tools))
	for i := range tools {
		t := tools[i]
		compiler := jsonschema.NewCompiler()
		url := t.Name + ".json"
		if err := compiler.AddResource(url, strings.NewReader(t.Schema)); err != nil {
			panic(fmt.Sprintf("tool %s: invalid schema: %v", t.Name, err))
		}
		compiled, err := compiler.Compile(url)
		if err != nil {
			panic(fmt.Sprintf("tool %s: schema compile failed: %v", t.Name, err))
		}
		t.compiled = compiled
		out[t.Name] = &t
	}
	return out
}

// LookupTool returns a catalog entry by name
func LookupTool(name string) (*Tool, bool) {
	t, ok := catalog[name]
	return t, ok
}

// Tools returns the catalog sorted by name
func Tools() []Tool {
	out := make([]Tool, 0, len(catalog))
	for _, t := range catalog {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ToolFor maps an intent (and view for limit queries) back to its tool name
func ToolFor(intent types.Intent, view types.QueryView) string {
	switch intent {
	case types.IntentHedgeAdjustment:
		return ToolCheckHedge
	case types.IntentStressTest:
		return ToolStressTest
	case types.IntentLimitQuery:
		switch view {
		case types.ViewMetrics:
			return ToolRiskMetrics
		case types.ViewAllocation:
			return ToolAssetAllocation
		}
		return ToolLimitStatus
	}
	return ToolGeneral
}

// Validate checks decoded params against the tool's schema
func (t *Tool) Validate(params map[string]interface{}) error {
	return t.compiled.Validate(params)
}
