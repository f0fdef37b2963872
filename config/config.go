// Package config holds the typed PromptPulse configuration, loaded from a
// TOML file via viper with environment-variable overrides.
package config

// Config represents the core PromptPulse configuration
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Evaluator EvaluatorConfig `mapstructure:"evaluator"`
	Engine    EngineConfig    `mapstructure:"engine"`
	Budget    BudgetConfig    `mapstructure:"budget"`
	LogTheme  string          `mapstructure:"log_theme"`
}

// DatabaseConfig configures the SQLite database
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// EvaluatorConfig configures the external evaluation service
type EvaluatorConfig struct {
	BaseURL        string  `mapstructure:"base_url"`
	APIKey         string  `mapstructure:"api_key"`
	Provider       string  `mapstructure:"provider"`
	Model          string  `mapstructure:"model"`
	Temperature    float64 `mapstructure:"temperature"`
	MaxTokens      int     `mapstructure:"max_tokens"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
	// AllowPrivateHosts disables SSRF protection on the HTTP client.
	// Only meant for evaluators running on localhost during development.
	AllowPrivateHosts bool `mapstructure:"allow_private_hosts"`
}

// EngineConfig configures the test-execution engine
type EngineConfig struct {
	MaxConcurrency     int    `mapstructure:"max_concurrency"`      // concurrent sub-evaluations per job
	TimeoutSeconds     int    `mapstructure:"timeout_seconds"`      // default per-job wait
	RetentionMinutes   int    `mapstructure:"retention_minutes"`    // terminal jobs kept this long
	DefaultEnvironment string `mapstructure:"default_environment"`  // environment tag on results
	MaxRequestsPerMin  int    `mapstructure:"max_requests_per_min"` // evaluator call rate limit
}

// BudgetConfig configures evaluation spend limits.
// Zero means zero: a 0 budget blocks all paid evaluations.
type BudgetConfig struct {
	DailyUSD       float64 `mapstructure:"daily_usd"`
	MonthlyUSD     float64 `mapstructure:"monthly_usd"`
	CostPerTestUSD float64 `mapstructure:"cost_per_test_usd"` // estimate used at submission time
}
