// Package config loads riskpilot configuration from an optional YAML file
// and RISKPILOT_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/riskpilot/riskpilot/internal/ai"
	"github.com/riskpilot/riskpilot/internal/compliance"
	"github.com/riskpilot/riskpilot/internal/cost"
	"github.com/riskpilot/riskpilot/internal/types"
)

// EnvPrefix is prepended to every key when read from the environment
// (loop.step_budget → RISKPILOT_LOOP_STEP_BUDGET)
const EnvPrefix = "RISKPILOT"

// ProviderNone runs the copilot without a language model: keyword
// extraction and templated responses.
const ProviderNone = "none"

// Config is the resolved configuration of a riskpilot process
type Config struct {
	AI         AIConfig             `mapstructure:"ai" yaml:"ai"`
	Loop       LoopConfig           `mapstructure:"loop" yaml:"loop"`
	Compliance ComplianceConfig     `mapstructure:"compliance" yaml:"compliance"`
	Storage    StorageConfig        `mapstructure:"storage" yaml:"storage"`
	Context    ContextConfig        `mapstructure:"context" yaml:"context"`
	Log        LogConfig            `mapstructure:"log" yaml:"log"`
	Server     ServerConfig         `mapstructure:"server" yaml:"server"`
	Cost       cost.Config          `mapstructure:"cost" yaml:"cost"`
	Events     EventRetentionConfig `mapstructure:"events" yaml:"events"`
}

// AIConfig selects and tunes the language model. API keys are never read
// from the config file.
type AIConfig struct {
	Provider          string         `mapstructure:"provider" yaml:"provider"`
	Model             string         `mapstructure:"model" yaml:"model"`
	BaseURL           string         `mapstructure:"base_url" yaml:"base_url"`
	Timeout           time.Duration  `mapstructure:"timeout" yaml:"timeout"`
	MaxTokens         int            `mapstructure:"max_tokens" yaml:"max_tokens"`
	Temperature       float64        `mapstructure:"temperature" yaml:"temperature"`
	RequestsPerSecond float64        `mapstructure:"requests_per_second" yaml:"requests_per_second"`
	Retry             ai.RetryConfig `mapstructure:"retry" yaml:"retry"`
}

// APIKey returns the key for the configured provider from the environment
func (c AIConfig) APIKey() string {
	switch c.Provider {
	case ai.ProviderAnthropic:
		return os.Getenv("ANTHROPIC_API_KEY")
	case ai.ProviderOpenAI:
		return os.Getenv("OPENAI_API_KEY")
	}
	return ""
}

// Enabled reports whether a model should be used at all
func (c AIConfig) Enabled() bool {
	return c.Provider != ProviderNone && c.APIKey() != ""
}

// LoopConfig bounds one turn of the refinement loop
type LoopConfig struct {
	MaxIterations  int    `mapstructure:"max_iterations" yaml:"max_iterations"`
	StepBudget     int    `mapstructure:"step_budget" yaml:"step_budget"`
	ApprovalPolicy string `mapstructure:"approval_policy" yaml:"approval_policy"`
}

// ComplianceConfig holds the hedge limit table and global limits
type ComplianceConfig struct {
	// HedgeLimits is keyed by hedge type: duration, fx, equity
	HedgeLimits  map[string]float64      `mapstructure:"hedge_limits" yaml:"hedge_limits"`
	SafetyFactor float64                 `mapstructure:"safety_factor" yaml:"safety_factor"`
	Global       compliance.GlobalLimits `mapstructure:"global" yaml:"global"`
}

// AuditorConfig converts the table for compliance.NewAuditor
func (c ComplianceConfig) AuditorConfig() (*compliance.Config, error) {
	limits := make(compliance.HedgeLimits, len(c.HedgeLimits))
	for name, max := range c.HedgeLimits {
		ht := types.HedgeType(strings.ToLower(name))
		if !ht.IsValid() {
			return nil, fmt.Errorf("unknown hedge type in compliance.hedge_limits: %q", name)
		}
		limits[ht] = max
	}
	return &compliance.Config{HedgeLimits: limits, SafetyFactor: c.SafetyFactor}, nil
}

type StorageConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// ContextConfig points at the risk snapshot. An empty path serves the
// built-in sample fund.
type ContextConfig struct {
	Path  string `mapstructure:"path" yaml:"path"`
	Watch bool   `mapstructure:"watch" yaml:"watch"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// Default returns the built-in configuration
func Default() *Config {
	limits := compliance.DefaultHedgeLimits()
	hedge := make(map[string]float64, len(limits))
	for ht, max := range limits {
		hedge[string(ht)] = max
	}

	return &Config{
		AI: AIConfig{
			Provider:          ai.ProviderAnthropic,
			Timeout:           30 * time.Second,
			MaxTokens:         400,
			Temperature:       0.2,
			RequestsPerSecond: 2,
			Retry:             ai.DefaultRetryConfig(),
		},
		Loop: LoopConfig{
			MaxIterations:  3,
			StepBudget:     10,
			ApprovalPolicy: "governed",
		},
		Compliance: ComplianceConfig{
			HedgeLimits:  hedge,
			SafetyFactor: compliance.DefaultSafetyFactor,
			Global:       compliance.DefaultGlobalLimits(),
		},
		Storage: StorageConfig{Path: ".riskpilot/riskpilot.db"},
		Log:     LogConfig{Level: "info", Format: "text"},
		Server:  ServerConfig{Addr: "127.0.0.1:8080"},
		Cost:    *cost.DefaultConfig(),
		Events:  DefaultEventRetentionConfig(),
	}
}

// Validate checks if the configuration has valid values. Approval policy
// names are checked by the gate.
func (c *Config) Validate() error {
	switch c.AI.Provider {
	case ai.ProviderAnthropic, ai.ProviderOpenAI, ProviderNone:
	default:
		return fmt.Errorf("ai.provider must be anthropic, openai or none (got %q)", c.AI.Provider)
	}
	if c.AI.Timeout <= 0 {
		return fmt.Errorf("ai.timeout must be positive (got %v)", c.AI.Timeout)
	}
	if c.AI.MaxTokens < 1 {
		return fmt.Errorf("ai.max_tokens must be at least 1 (got %d)", c.AI.MaxTokens)
	}
	if c.AI.Temperature < 0 || c.AI.Temperature > 2 {
		return fmt.Errorf("ai.temperature must be between 0 and 2 (got %.2f)", c.AI.Temperature)
	}
	if c.AI.RequestsPerSecond < 0 {
		return fmt.Errorf("ai.requests_per_second cannot be negative (got %.2f)", c.AI.RequestsPerSecond)
	}
	if err := c.AI.Retry.Validate(); err != nil {
		return fmt.Errorf("ai.retry: %w", err)
	}

	if c.Loop.MaxIterations < 0 {
		return fmt.Errorf("loop.max_iterations cannot be negative (got %d)", c.Loop.MaxIterations)
	}
	if c.Loop.StepBudget < 2 {
		return fmt.Errorf("loop.step_budget must be at least 2 (got %d)", c.Loop.StepBudget)
	}

	if _, err := c.Compliance.AuditorConfig(); err != nil {
		return err
	}
	if c.Compliance.SafetyFactor <= 0 || c.Compliance.SafetyFactor >= 1 {
		return fmt.Errorf("compliance.safety_factor must be in (0, 1) (got %.4f)", c.Compliance.SafetyFactor)
	}
	if err := c.Compliance.Global.Validate(); err != nil {
		return fmt.Errorf("compliance.global: %w", err)
	}

	if c.Storage.Path == "" {
		return errors.New("storage.path is required")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn or error (got %q)", c.Log.Level)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("log.format must be text or json (got %q)", c.Log.Format)
	}
	if c.Context.Watch && c.Context.Path == "" {
		return errors.New("context.watch requires context.path")
	}

	if err := c.Cost.Validate(); err != nil {
		return fmt.Errorf("cost: %w", err)
	}
	if err := c.Events.Validate(); err != nil {
		return fmt.Errorf("events: %w", err)
	}
	return nil
}

// Load reads path (optional; empty skips the file) over the defaults, then
// applies RISKPILOT_* environment overrides and validates the result.
func Load(path string) (*Config, error) {
	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newViper returns a viper instance seeded with every default so that
// AutomaticEnv can see each key during Unmarshal
func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	d := Default()
	defaults := map[string]interface{}{
		"ai.provider":                   d.AI.Provider,
		"ai.model":                      d.AI.Model,
		"ai.base_url":                   d.AI.BaseURL,
		"ai.timeout":                    d.AI.Timeout,
		"ai.max_tokens":                 d.AI.MaxTokens,
		"ai.temperature":                d.AI.Temperature,
		"ai.requests_per_second":        d.AI.RequestsPerSecond,
		"ai.retry.max_retries":          d.AI.Retry.MaxRetries,
		"ai.retry.initial_backoff":      d.AI.Retry.InitialBackoff,
		"ai.retry.max_backoff":          d.AI.Retry.MaxBackoff,
		"ai.retry.backoff_multiplier":   d.AI.Retry.BackoffMultiplier,
		"ai.retry.timeout":              d.AI.Retry.Timeout,
		"ai.retry.circuit_breaker":      d.AI.Retry.CircuitBreakerEnabled,
		"ai.retry.failure_threshold":    d.AI.Retry.FailureThreshold,
		"ai.retry.success_threshold":    d.AI.Retry.SuccessThreshold,
		"ai.retry.open_timeout":         d.AI.Retry.OpenTimeout,
		"ai.retry.max_concurrent_calls": d.AI.Retry.MaxConcurrentCalls,

		"loop.max_iterations":  d.Loop.MaxIterations,
		"loop.step_budget":     d.Loop.StepBudget,
		"loop.approval_policy": d.Loop.ApprovalPolicy,

		"compliance.hedge_limits":               d.Compliance.HedgeLimits,
		"compliance.safety_factor":              d.Compliance.SafetyFactor,
		"compliance.global.max_fx_exposure":     d.Compliance.Global.MaxFXExposure,
		"compliance.global.min_equity_exposure": d.Compliance.Global.MinEquityExposure,
		"compliance.global.max_single_issuer":   d.Compliance.Global.MaxSingleIssuer,

		"storage.path":  d.Storage.Path,
		"context.path":  d.Context.Path,
		"context.watch": d.Context.Watch,
		"log.level":     d.Log.Level,
		"log.format":    d.Log.Format,
		"server.addr":   d.Server.Addr,

		"cost.enabled":                  d.Cost.Enabled,
		"cost.max_tokens_per_hour":      d.Cost.MaxTokensPerHour,
		"cost.max_tokens_per_operation": d.Cost.MaxTokensPerOperation,
		"cost.max_cost_per_hour":        d.Cost.MaxCostPerHour,
		"cost.alert_threshold":          d.Cost.AlertThreshold,
		"cost.budget_reset_interval":    d.Cost.BudgetResetInterval,
		"cost.persist_state_path":       d.Cost.PersistStatePath,
		"cost.input_token_cost":         d.Cost.InputTokenCost,
		"cost.output_token_cost":        d.Cost.OutputTokenCost,

		"events.retention_days":          d.Events.RetentionDays,
		"events.retention_critical_days": d.Events.RetentionCriticalDays,
		"events.per_run_limit":           d.Events.PerRunLimitEvents,
		"events.global_limit":            d.Events.GlobalLimitEvents,
		"events.cleanup_interval_hours":  d.Events.CleanupIntervalHours,
		"events.cleanup_batch_size":      d.Events.CleanupBatchSize,
		"events.cleanup_enabled":         d.Events.CleanupEnabled,
		"events.cleanup_strategy":        d.Events.CleanupStrategy,
		"events.cleanup_vacuum":          d.Events.CleanupVacuum,
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	return v
}
