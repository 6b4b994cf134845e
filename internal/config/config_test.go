package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riskpilot/riskpilot/internal/compliance"
	"github.com/riskpilot/riskpilot/internal/types"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "riskpilot.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, Default().Loop, cfg.Loop)
	assert.Equal(t, 3, cfg.Loop.MaxIterations)
	assert.Equal(t, 10, cfg.Loop.StepBudget)
	assert.Equal(t, "governed", cfg.Loop.ApprovalPolicy)
	assert.InDelta(t, 0.95, cfg.Compliance.SafetyFactor, 1e-9)
	assert.InDelta(t, 0.90, cfg.Compliance.HedgeLimits["fx"], 1e-9)
	assert.Equal(t, compliance.DefaultGlobalLimits(), cfg.Compliance.Global)
	assert.Equal(t, ".riskpilot/riskpilot.db", cfg.Storage.Path)
	assert.Equal(t, 30*time.Second, cfg.AI.Timeout)
	assert.Equal(t, DefaultEventRetentionConfig(), cfg.Events)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
ai:
  provider: openai
  model: gpt-4o-mini
  timeout: 45s
loop:
  max_iterations: 2
  approval_policy: auto_refine
compliance:
  hedge_limits:
    fx: 0.85
  global:
    max_fx_exposure: 0.12
context:
  path: fund.yaml
  watch: true
log:
  format: json
events:
  retention_days: 7
  retention_critical_days: 30
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.AI.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.AI.Model)
	assert.Equal(t, 45*time.Second, cfg.AI.Timeout)
	assert.Equal(t, 2, cfg.Loop.MaxIterations)
	assert.Equal(t, 10, cfg.Loop.StepBudget, "unset keys keep defaults")
	assert.Equal(t, "auto_refine", cfg.Loop.ApprovalPolicy)
	assert.InDelta(t, 0.85, cfg.Compliance.HedgeLimits["fx"], 1e-9)
	assert.InDelta(t, 0.12, cfg.Compliance.Global.MaxFXExposure, 1e-9)
	assert.InDelta(t, 0.20, cfg.Compliance.Global.MinEquityExposure, 1e-9)
	assert.Equal(t, "fund.yaml", cfg.Context.Path)
	assert.True(t, cfg.Context.Watch)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 7, cfg.Events.RetentionDays)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "loop:\n  step_budget: 8\n")
	t.Setenv("RISKPILOT_LOOP_STEP_BUDGET", "12")
	t.Setenv("RISKPILOT_LOG_LEVEL", "debug")
	t.Setenv("RISKPILOT_AI_PROVIDER", "none")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 12, cfg.Loop.StepBudget)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.False(t, cfg.AI.Enabled())
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config")

	path := writeConfig(t, "compliance:\n  hedge_limits:\n    credit: 0.5\n")
	_, err = Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown hedge type")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"defaults", func(c *Config) {}, ""},
		{"provider", func(c *Config) { c.AI.Provider = "llama" }, "ai.provider"},
		{"timeout", func(c *Config) { c.AI.Timeout = 0 }, "ai.timeout"},
		{"max tokens", func(c *Config) { c.AI.MaxTokens = 0 }, "ai.max_tokens"},
		{"temperature", func(c *Config) { c.AI.Temperature = 3 }, "ai.temperature"},
		{"iterations", func(c *Config) { c.Loop.MaxIterations = -1 }, "loop.max_iterations"},
		{"step budget", func(c *Config) { c.Loop.StepBudget = 1 }, "loop.step_budget"},
		{"safety factor", func(c *Config) { c.Compliance.SafetyFactor = 1 }, "compliance.safety_factor"},
		{"global", func(c *Config) { c.Compliance.Global.MaxFXExposure = 0 }, "compliance.global"},
		{"storage", func(c *Config) { c.Storage.Path = "" }, "storage.path"},
		{"log level", func(c *Config) { c.Log.Level = "trace" }, "log.level"},
		{"log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"watch without path", func(c *Config) { c.Context.Watch = true }, "context.watch"},
		{"events", func(c *Config) { c.Events.RetentionDays = 0 }, "events"},
		{"cost", func(c *Config) { c.Cost.AlertThreshold = 2 }, "cost"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestAuditorConfig(t *testing.T) {
	c := ComplianceConfig{
		HedgeLimits:  map[string]float64{"FX": 0.7, "equity": 0.4},
		SafetyFactor: 0.9,
	}
	ac, err := c.AuditorConfig()
	require.NoError(t, err)
	assert.InDelta(t, 0.7, ac.HedgeLimits[types.HedgeFX], 1e-9)
	assert.InDelta(t, 0.4, ac.HedgeLimits[types.HedgeEquity], 1e-9)

	auditor, err := compliance.NewAuditor(ac)
	require.NoError(t, err)
	assert.InDelta(t, 0.80, auditor.MaxFor(types.HedgeDuration), 1e-9, "unset types keep their default")
}

func TestAPIKeyFromEnv(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant")
	t.Setenv("OPENAI_API_KEY", "")

	c := AIConfig{Provider: "anthropic"}
	assert.Equal(t, "sk-ant", c.APIKey())
	assert.True(t, c.Enabled())

	c.Provider = "openai"
	assert.False(t, c.Enabled())

	c.Provider = ProviderNone
	assert.Empty(t, c.APIKey())
}
