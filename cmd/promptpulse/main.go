package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/teranos/promptpulse/cmd/promptpulse/commands"
	"github.com/teranos/promptpulse/logger"
)

var rootCmd = &cobra.Command{
	Use:   "promptpulse",
	Short: "PromptPulse - versioned prompt management and test execution",
	Long: `PromptPulse manages versioned prompt templates and runs asynchronous
validation tests against them via an external evaluation service.

Available commands:
  prompt  - Inspect and manage prompts and their versions
  test    - Run test cases against a prompt's primary version
  job     - Inspect, read, and dismiss test-execution jobs
  config  - Show and edit configuration
  db      - Manage database operations

Examples:
  promptpulse prompt versions <prompt-id>    # List a prompt's versions
  promptpulse test run <prompt-id> --async   # Submit a test job
  promptpulse job status <prompt-id> <job-id>
  promptpulse config show`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		verbosity, _ := cmd.Flags().GetCount("verbose")
		if err := logger.InitializeWithLevel(false, logger.VerbosityToLevel(verbosity)); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (repeat for more detail: -v, -vv, -vvv)")

	rootCmd.AddCommand(commands.PromptCmd)
	rootCmd.AddCommand(commands.TestCmd)
	rootCmd.AddCommand(commands.JobCmd)
	rootCmd.AddCommand(commands.ConfigCmd)
	rootCmd.AddCommand(commands.DbCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	defer logger.Sync()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
