package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Cleanup strategies
const (
	StrategyOldestFirst       = "oldest_first"
	StrategyOldestNonCritical = "oldest_non_critical"
)

// EventRetentionConfig bounds the size of the audit trail. Step events
// accumulate on every turn, so a long-running serve process prunes them on
// a schedule.
type EventRetentionConfig struct {
	// Info and warning events older than this are deleted. Range: 1-365
	RetentionDays int `mapstructure:"retention_days" yaml:"retention_days"`

	// Error and critical events (approval resolutions, failed turns) are
	// kept longer. Must be >= RetentionDays. Range: 1-730
	RetentionCriticalDays int `mapstructure:"retention_critical_days" yaml:"retention_critical_days"`

	// Oldest non-critical events of a run are dropped past this count.
	// 0 = unlimited, otherwise 20-10000
	PerRunLimitEvents int `mapstructure:"per_run_limit" yaml:"per_run_limit"`

	// Safety cap on the whole table; cleanup starts at 95% of it.
	// Range: 1000-1000000
	GlobalLimitEvents int `mapstructure:"global_limit" yaml:"global_limit"`

	CleanupIntervalHours int    `mapstructure:"cleanup_interval_hours" yaml:"cleanup_interval_hours"` // 1-168
	CleanupBatchSize     int    `mapstructure:"cleanup_batch_size" yaml:"cleanup_batch_size"`         // 100-10000
	CleanupEnabled       bool   `mapstructure:"cleanup_enabled" yaml:"cleanup_enabled"`
	CleanupStrategy      string `mapstructure:"cleanup_strategy" yaml:"cleanup_strategy"`

	// VACUUM after a cleanup that deleted rows. Locks the database.
	CleanupVacuum bool `mapstructure:"cleanup_vacuum" yaml:"cleanup_vacuum"`
}

// DefaultEventRetentionConfig returns the default event retention configuration.
// A run rarely exceeds a dozen steps, so 200 events per run only bites on
// runaway loops.
func DefaultEventRetentionConfig() EventRetentionConfig {
	return EventRetentionConfig{
		RetentionDays:         30,
		RetentionCriticalDays: 90,
		PerRunLimitEvents:     200,
		GlobalLimitEvents:     100000,
		CleanupIntervalHours:  24,
		CleanupBatchSize:      1000,
		CleanupEnabled:        true,
		CleanupStrategy:       StrategyOldestNonCritical,
		CleanupVacuum:         false,
	}
}

// Interval returns the cleanup period
func (c EventRetentionConfig) Interval() time.Duration {
	return time.Duration(c.CleanupIntervalHours) * time.Hour
}

// GlobalTrigger is the event count at which global cleanup starts
func (c EventRetentionConfig) GlobalTrigger() int {
	return int(float64(c.GlobalLimitEvents) * 0.95)
}

// Validate checks if the configuration has valid values
func (c EventRetentionConfig) Validate() error {
	if c.RetentionDays < 1 || c.RetentionDays > 365 {
		return fmt.Errorf("retention_days must be between 1 and 365 (got %d)", c.RetentionDays)
	}
	if c.RetentionCriticalDays < 1 || c.RetentionCriticalDays > 730 {
		return fmt.Errorf("retention_critical_days must be between 1 and 730 (got %d)",
			c.RetentionCriticalDays)
	}
	if c.RetentionCriticalDays < c.RetentionDays {
		return fmt.Errorf("retention_critical_days (%d) must be >= retention_days (%d)",
			c.RetentionCriticalDays, c.RetentionDays)
	}

	switch {
	case c.PerRunLimitEvents < 0:
		return fmt.Errorf("per_run_limit cannot be negative (got %d)", c.PerRunLimitEvents)
	case c.PerRunLimitEvents > 0 && c.PerRunLimitEvents < 20:
		return fmt.Errorf("per_run_limit must be 0 (unlimited) or >= 20 (got %d)", c.PerRunLimitEvents)
	case c.PerRunLimitEvents > 10000:
		return fmt.Errorf("per_run_limit too large (got %d, max 10000)", c.PerRunLimitEvents)
	}

	if c.GlobalLimitEvents < 1000 || c.GlobalLimitEvents > 1000000 {
		return fmt.Errorf("global_limit must be between 1000 and 1000000 (got %d)", c.GlobalLimitEvents)
	}
	if c.CleanupIntervalHours < 1 || c.CleanupIntervalHours > 168 {
		return fmt.Errorf("cleanup_interval_hours must be between 1 and 168 (got %d)", c.CleanupIntervalHours)
	}
	if c.CleanupBatchSize < 100 || c.CleanupBatchSize > 10000 {
		return fmt.Errorf("cleanup_batch_size must be between 100 and 10000 (got %d)", c.CleanupBatchSize)
	}
	if c.CleanupStrategy != StrategyOldestFirst && c.CleanupStrategy != StrategyOldestNonCritical {
		return fmt.Errorf("cleanup_strategy must be %q or %q (got %q)",
			StrategyOldestFirst, StrategyOldestNonCritical, c.CleanupStrategy)
	}
	return nil
}

// String returns a human-readable representation of the config
func (c EventRetentionConfig) String() string {
	return fmt.Sprintf(
		"EventRetentionConfig{RetentionDays: %d, RetentionCriticalDays: %d, "+
			"PerRunLimit: %d, GlobalLimit: %d, CleanupInterval: %dh, "+
			"BatchSize: %d, Enabled: %t, Strategy: %s, Vacuum: %t}",
		c.RetentionDays, c.RetentionCriticalDays, c.PerRunLimitEvents,
		c.GlobalLimitEvents, c.CleanupIntervalHours, c.CleanupBatchSize,
		c.CleanupEnabled, c.CleanupStrategy, c.CleanupVacuum,
	)
}

// Environment variables read by EventRetentionConfigFromEnv
const (
	EnvEventRetentionDays         = "RISKPILOT_EVENT_RETENTION_DAYS"
	EnvEventRetentionCriticalDays = "RISKPILOT_EVENT_RETENTION_CRITICAL_DAYS"
	EnvEventPerRunLimit           = "RISKPILOT_EVENT_PER_RUN_LIMIT"
	EnvEventGlobalLimit           = "RISKPILOT_EVENT_GLOBAL_LIMIT"
	EnvEventCleanupIntervalHours  = "RISKPILOT_EVENT_CLEANUP_INTERVAL_HOURS"
	EnvEventCleanupBatchSize      = "RISKPILOT_EVENT_CLEANUP_BATCH_SIZE"
	EnvEventCleanupEnabled        = "RISKPILOT_EVENT_CLEANUP_ENABLED"
	EnvEventCleanupStrategy       = "RISKPILOT_EVENT_CLEANUP_STRATEGY"
	EnvEventCleanupVacuum         = "RISKPILOT_EVENT_CLEANUP_VACUUM"
)

// EventRetentionConfigFromEnv overlays RISKPILOT_EVENT_* variables onto the
// defaults. Unparseable values and invalid results are errors.
func EventRetentionConfigFromEnv() (EventRetentionConfig, error) {
	return ApplyEventRetentionEnv(DefaultEventRetentionConfig())
}

// ApplyEventRetentionEnv overlays RISKPILOT_EVENT_* variables onto cfg
func ApplyEventRetentionEnv(cfg EventRetentionConfig) (EventRetentionConfig, error) {
	ints := []struct {
		key  string
		dest *int
	}{
		{EnvEventRetentionDays, &cfg.RetentionDays},
		{EnvEventRetentionCriticalDays, &cfg.RetentionCriticalDays},
		{EnvEventPerRunLimit, &cfg.PerRunLimitEvents},
		{EnvEventGlobalLimit, &cfg.GlobalLimitEvents},
		{EnvEventCleanupIntervalHours, &cfg.CleanupIntervalHours},
		{EnvEventCleanupBatchSize, &cfg.CleanupBatchSize},
	}
	for _, v := range ints {
		if err := parseEnvInt(v.key, v.dest); err != nil {
			return cfg, err
		}
	}
	if err := parseEnvBool(EnvEventCleanupEnabled, &cfg.CleanupEnabled); err != nil {
		return cfg, err
	}
	if err := parseEnvBool(EnvEventCleanupVacuum, &cfg.CleanupVacuum); err != nil {
		return cfg, err
	}
	if v := os.Getenv(EnvEventCleanupStrategy); v != "" {
		cfg.CleanupStrategy = v
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid event retention configuration from environment: %w", err)
	}
	return cfg, nil
}

func parseEnvInt(key string, dest *int) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

func parseEnvBool(key string, dest *bool) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}
