package config

import "github.com/teranos/promptpulse/errors"

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	// Database path is optional - empty falls back to the default per defaults.go

	if c.Evaluator.BaseURL == "" {
		return errors.New("evaluator.base_url cannot be empty")
	}
	if c.Evaluator.Temperature < 0 || c.Evaluator.Temperature > 2 {
		return errors.Newf("evaluator.temperature must be in [0, 2], got %g", c.Evaluator.Temperature)
	}
	if c.Evaluator.MaxTokens <= 0 {
		return errors.Newf("evaluator.max_tokens must be > 0, got %d", c.Evaluator.MaxTokens)
	}
	if c.Evaluator.TimeoutSeconds <= 0 {
		return errors.Newf("evaluator.timeout_seconds must be > 0, got %d", c.Evaluator.TimeoutSeconds)
	}

	if c.Engine.MaxConcurrency < 1 || c.Engine.MaxConcurrency > 10 {
		return errors.Newf("engine.max_concurrency must be in [1, 10], got %d", c.Engine.MaxConcurrency)
	}
	if c.Engine.TimeoutSeconds < 10 || c.Engine.TimeoutSeconds > 300 {
		return errors.Newf("engine.timeout_seconds must be in [10, 300], got %d", c.Engine.TimeoutSeconds)
	}
	if c.Engine.RetentionMinutes <= 0 {
		return errors.Newf("engine.retention_minutes must be > 0, got %d", c.Engine.RetentionMinutes)
	}
	if c.Engine.MaxRequestsPerMin < 0 {
		return errors.Newf("engine.max_requests_per_min must be >= 0, got %d", c.Engine.MaxRequestsPerMin)
	}

	// Budget values: 0 = no budget (valid per "zero means zero"), negative = invalid
	if c.Budget.DailyUSD < 0 {
		return errors.Newf("budget.daily_usd must be >= 0, got %f", c.Budget.DailyUSD)
	}
	if c.Budget.MonthlyUSD < 0 {
		return errors.Newf("budget.monthly_usd must be >= 0, got %f", c.Budget.MonthlyUSD)
	}
	if c.Budget.CostPerTestUSD < 0 {
		return errors.Newf("budget.cost_per_test_usd must be >= 0, got %f", c.Budget.CostPerTestUSD)
	}

	return nil
}
