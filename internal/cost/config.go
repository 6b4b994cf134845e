package cost

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"
)

// Config holds model cost budgeting configuration
type Config struct {
	// MaxTokensPerHour is the input+output token cap per window. 0 = unlimited.
	MaxTokensPerHour int64 `json:"max_tokens_per_hour" mapstructure:"max_tokens_per_hour"`

	// MaxTokensPerOperation caps a single call site (extraction, synthesis)
	// within a window. 0 = unlimited.
	MaxTokensPerOperation int64 `json:"max_tokens_per_operation" mapstructure:"max_tokens_per_operation"`

	// MaxCostPerHour in USD. 0 = unlimited.
	MaxCostPerHour float64 `json:"max_cost_per_hour" mapstructure:"max_cost_per_hour"`

	AlertThreshold      float64       `json:"alert_threshold" mapstructure:"alert_threshold"`
	BudgetResetInterval time.Duration `json:"budget_reset_interval" mapstructure:"budget_reset_interval"`

	// PersistStatePath is where window state survives restarts; empty disables
	PersistStatePath string `json:"persist_state_path" mapstructure:"persist_state_path"`

	Enabled bool `json:"enabled" mapstructure:"enabled"`

	// USD per 1M tokens
	InputTokenCost  float64 `json:"input_token_cost" mapstructure:"input_token_cost"`
	OutputTokenCost float64 `json:"output_token_cost" mapstructure:"output_token_cost"`
}

// DefaultConfig returns default cost budgeting configuration. Prices are for
// the small default models.
func DefaultConfig() *Config {
	return &Config{
		Enabled:               true,
		MaxTokensPerHour:      200000,
		MaxTokensPerOperation: 150000,
		MaxCostPerHour:        0.50,
		AlertThreshold:        0.80,
		BudgetResetInterval:   time.Hour,
		PersistStatePath:      ".riskpilot/cost_state.json",
		InputTokenCost:        0.80,
		OutputTokenCost:       4.00,
	}
}

// LoadFromEnv applies RISKPILOT_COST_* overrides to the defaults. Invalid
// combinations fall back to defaults with a warning.
func LoadFromEnv() *Config {
	cfg := DefaultConfig()
	ApplyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		slog.Warn("invalid cost config from environment, using defaults", "error", err)
		return DefaultConfig()
	}
	return cfg
}

// ApplyEnv overlays RISKPILOT_COST_* variables onto cfg
func ApplyEnv(cfg *Config) {
	if val := os.Getenv("RISKPILOT_COST_ENABLED"); val != "" {
		cfg.Enabled = parseBool(val)
	}
	if val := os.Getenv("RISKPILOT_COST_MAX_TOKENS_PER_HOUR"); val != "" {
		if tokens, err := strconv.ParseInt(val, 10, 64); err == nil && tokens >= 0 {
			cfg.MaxTokensPerHour = tokens
		}
	}
	if val := os.Getenv("RISKPILOT_COST_MAX_TOKENS_PER_OPERATION"); val != "" {
		if tokens, err := strconv.ParseInt(val, 10, 64); err == nil && tokens >= 0 {
			cfg.MaxTokensPerOperation = tokens
		}
	}
	if val := os.Getenv("RISKPILOT_COST_MAX_COST_PER_HOUR"); val != "" {
		if c, err := strconv.ParseFloat(val, 64); err == nil && c >= 0 {
			cfg.MaxCostPerHour = c
		}
	}
	if val := os.Getenv("RISKPILOT_COST_ALERT_THRESHOLD"); val != "" {
		if threshold, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.AlertThreshold = threshold
		}
	}
	if val := os.Getenv("RISKPILOT_COST_BUDGET_RESET_INTERVAL"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.BudgetResetInterval = d
		}
	}
	if val, ok := os.LookupEnv("RISKPILOT_COST_PERSIST_STATE_PATH"); ok {
		cfg.PersistStatePath = val
	}
	if val := os.Getenv("RISKPILOT_COST_INPUT_TOKEN_COST"); val != "" {
		if c, err := strconv.ParseFloat(val, 64); err == nil && c >= 0 {
			cfg.InputTokenCost = c
		}
	}
	if val := os.Getenv("RISKPILOT_COST_OUTPUT_TOKEN_COST"); val != "" {
		if c, err := strconv.ParseFloat(val, 64); err == nil && c >= 0 {
			cfg.OutputTokenCost = c
		}
	}
}

// Validate checks that the configuration has safe and reasonable values
func (c *Config) Validate() error {
	if c.MaxTokensPerHour < 0 {
		return fmt.Errorf("max_tokens_per_hour must be non-negative, got %d", c.MaxTokensPerHour)
	}
	if c.MaxTokensPerOperation < 0 {
		return fmt.Errorf("max_tokens_per_operation must be non-negative, got %d", c.MaxTokensPerOperation)
	}
	if c.MaxCostPerHour < 0 {
		return fmt.Errorf("max_cost_per_hour must be non-negative, got %.2f", c.MaxCostPerHour)
	}
	if c.AlertThreshold <= 0 || c.AlertThreshold > 1.0 {
		return fmt.Errorf("alert_threshold must be between 0 and 1, got %.2f", c.AlertThreshold)
	}
	if c.BudgetResetInterval <= 0 {
		return fmt.Errorf("budget_reset_interval must be positive, got %v", c.BudgetResetInterval)
	}
	if c.InputTokenCost < 0 || c.OutputTokenCost < 0 {
		return fmt.Errorf("token costs must be non-negative, got input=%.2f output=%.2f", c.InputTokenCost, c.OutputTokenCost)
	}
	return nil
}

func parseBool(val string) bool {
	switch val {
	case "false", "0", "no", "off":
		return false
	default:
		return true
	}
}
