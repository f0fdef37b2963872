package config

import (
	"github.com/spf13/viper"
)

// Engine defaults. Submission-time options fall back to these when unset.
const (
	DefaultMaxConcurrency   = 3
	DefaultTimeoutSeconds   = 60
	DefaultRetentionMinutes = 60
	DefaultEnvironment      = "development"
)

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	// Database defaults
	v.SetDefault("database.path", "promptpulse.db")

	// Evaluator defaults
	v.SetDefault("evaluator.base_url", "http://localhost:4000")
	v.SetDefault("evaluator.provider", "openai")
	v.SetDefault("evaluator.model", "gpt-4o-mini") // Cost-effective default
	v.SetDefault("evaluator.temperature", 0.2)     // Deterministic
	v.SetDefault("evaluator.max_tokens", 1000)
	v.SetDefault("evaluator.timeout_seconds", 120)
	v.SetDefault("evaluator.allow_private_hosts", true) // Local evaluator is the common dev setup

	// Engine defaults
	v.SetDefault("engine.max_concurrency", DefaultMaxConcurrency)
	v.SetDefault("engine.timeout_seconds", DefaultTimeoutSeconds)
	v.SetDefault("engine.retention_minutes", DefaultRetentionMinutes)
	v.SetDefault("engine.default_environment", DefaultEnvironment)
	v.SetDefault("engine.max_requests_per_min", 30)

	// Budget defaults
	v.SetDefault("budget.daily_usd", 3.0)
	v.SetDefault("budget.monthly_usd", 15.0)
	v.SetDefault("budget.cost_per_test_usd", 0.002)

	v.SetDefault("log_theme", "gruvbox")
}
