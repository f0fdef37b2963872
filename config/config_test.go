package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultConfig(t *testing.T) *Config {
	t.Helper()
	v := viper.New()
	SetDefaults(v)
	var cfg Config
	require.NoError(t, v.Unmarshal(&cfg))
	return &cfg
}

func TestDefaultsAreValid(t *testing.T) {
	cfg := defaultConfig(t)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "promptpulse.db", cfg.Database.Path)
	assert.Equal(t, DefaultMaxConcurrency, cfg.Engine.MaxConcurrency)
	assert.Equal(t, DefaultTimeoutSeconds, cfg.Engine.TimeoutSeconds)
	assert.Equal(t, DefaultEnvironment, cfg.Engine.DefaultEnvironment)
	assert.Equal(t, 3.0, cfg.Budget.DailyUSD)
}

func TestValidateRejectsOutOfRange(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"empty evaluator url", func(c *Config) { c.Evaluator.BaseURL = "" }},
		{"temperature above 2", func(c *Config) { c.Evaluator.Temperature = 2.5 }},
		{"negative temperature", func(c *Config) { c.Evaluator.Temperature = -0.1 }},
		{"zero max tokens", func(c *Config) { c.Evaluator.MaxTokens = 0 }},
		{"concurrency zero", func(c *Config) { c.Engine.MaxConcurrency = 0 }},
		{"concurrency above 10", func(c *Config) { c.Engine.MaxConcurrency = 11 }},
		{"timeout below 10s", func(c *Config) { c.Engine.TimeoutSeconds = 5 }},
		{"timeout above 300s", func(c *Config) { c.Engine.TimeoutSeconds = 301 }},
		{"negative daily budget", func(c *Config) { c.Budget.DailyUSD = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig(t)
			tt.modify(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestZeroBudgetIsValid(t *testing.T) {
	cfg := defaultConfig(t)
	cfg.Budget.DailyUSD = 0
	cfg.Budget.MonthlyUSD = 0
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[database]
path = "test.db"

[engine]
max_concurrency = 5
timeout_seconds = 30

[budget]
daily_usd = 1.5
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "test.db", cfg.Database.Path)
	assert.Equal(t, 5, cfg.Engine.MaxConcurrency)
	assert.Equal(t, 30, cfg.Engine.TimeoutSeconds)
	assert.Equal(t, 1.5, cfg.Budget.DailyUSD)
	// Unset keys fall back to defaults
	assert.Equal(t, "gpt-4o-mini", cfg.Evaluator.Model)
}

func TestLoadFromFileRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[engine]\nmax_concurrency = 99\n"), 0644))

	_, err := LoadFromFile(path)
	assert.Error(t, err)
}
