package commands

import (
	"strconv"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/teranos/promptpulse/config"
	"github.com/teranos/promptpulse/errors"
)

// ConfigCmd groups configuration subcommands.
var ConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Show and edit PromptPulse configuration",
	Long: `config — Show and edit PromptPulse configuration

Settings are persisted to the TOML config file. A numbered backup of the
previous file is kept on every write.

Examples:
  promptpulse config show
  promptpulse config set engine max_concurrency 5
  promptpulse config set budget daily_usd 2.50`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return errors.Wrap(err, "failed to load configuration")
		}

		pterm.DefaultSection.Printf("Configuration (%s)", config.ConfigFilePath())

		pterm.Printf("[database]\n")
		pterm.Printf("  path = %q\n\n", cfg.Database.Path)

		pterm.Printf("[evaluator]\n")
		pterm.Printf("  base_url = %q\n", cfg.Evaluator.BaseURL)
		pterm.Printf("  provider = %q\n", cfg.Evaluator.Provider)
		pterm.Printf("  model = %q\n", cfg.Evaluator.Model)
		pterm.Printf("  temperature = %g\n", cfg.Evaluator.Temperature)
		pterm.Printf("  max_tokens = %d\n", cfg.Evaluator.MaxTokens)
		pterm.Printf("  timeout_seconds = %d\n", cfg.Evaluator.TimeoutSeconds)
		pterm.Printf("  allow_private_hosts = %t\n\n", cfg.Evaluator.AllowPrivateHosts)

		pterm.Printf("[engine]\n")
		pterm.Printf("  max_concurrency = %d\n", cfg.Engine.MaxConcurrency)
		pterm.Printf("  timeout_seconds = %d\n", cfg.Engine.TimeoutSeconds)
		pterm.Printf("  retention_minutes = %d\n", cfg.Engine.RetentionMinutes)
		pterm.Printf("  default_environment = %q\n", cfg.Engine.DefaultEnvironment)
		pterm.Printf("  max_requests_per_min = %d\n\n", cfg.Engine.MaxRequestsPerMin)

		pterm.Printf("[budget]\n")
		pterm.Printf("  daily_usd = %g\n", cfg.Budget.DailyUSD)
		pterm.Printf("  monthly_usd = %g\n", cfg.Budget.MonthlyUSD)
		pterm.Printf("  cost_per_test_usd = %g\n", cfg.Budget.CostPerTestUSD)

		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <section> <key> <value>",
	Short: "Persist a configuration value",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		section, key, raw := args[0], args[1], args[2]

		if err := config.SetValue(section, key, coerceValue(raw)); err != nil {
			return errors.Wrapf(err, "failed to set %s.%s", section, key)
		}

		// Reload so an invalid combination fails loudly right away.
		if _, err := config.Reload(); err != nil {
			return errors.Wrap(err, "value saved but configuration no longer validates")
		}

		pterm.Success.Printf("Set %s.%s = %s\n", section, key, raw)
		return nil
	},
}

// coerceValue keeps TOML types sane: bools and numbers should not be
// persisted as quoted strings.
func coerceValue(raw string) interface{} {
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(raw); err == nil {
		return b
	}
	return raw
}

func init() {
	ConfigCmd.AddCommand(configShowCmd)
	ConfigCmd.AddCommand(configSetCmd)
}
