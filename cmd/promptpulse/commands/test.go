package commands

import (
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/promptpulse/eval"
	"github.com/teranos/promptpulse/pulse"
	"github.com/teranos/promptpulse/results"
)

// TestCmd groups test execution subcommands.
var TestCmd = &cobra.Command{
	Use:   "test",
	Short: "Run test cases against a prompt's primary version",
}

var testRunCmd = &cobra.Command{
	Use:   "run <prompt-id> [test-case-id...]",
	Short: "Submit a test run (all bound test cases when none are given)",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		async, _ := cmd.Flags().GetBool("async")
		save, _ := cmd.Flags().GetBool("save")
		environment, _ := cmd.Flags().GetString("environment")
		model, _ := cmd.Flags().GetString("model")
		concurrency, _ := cmd.Flags().GetInt("concurrency")
		timeoutSecs, _ := cmd.Flags().GetInt("timeout")

		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.Close()

		opts := pulse.Options{
			Environment:    environment,
			Model:          model,
			MaxConcurrency: concurrency,
			Timeout:        time.Duration(timeoutSecs) * time.Second,
			Async:          async,
			SaveResults:    save,
		}

		var spinner *pterm.SpinnerPrinter
		if !async {
			spinner, _ = pterm.DefaultSpinner.Start("Running evaluation...")
		}

		job, raw, err := app.service.SubmitTest(cmd.Context(), args[0], args[1:], opts)
		if spinner != nil {
			spinner.Stop()
		}
		if err != nil {
			return err
		}

		if async {
			pterm.Success.Printf("Job %s submitted (%d tests)\n", job.ID, job.Metadata.TotalTests)
			pterm.Info.Printf("Poll with: promptpulse job status %s %s\n", args[0], job.ID)
			return nil
		}

		renderReport(raw)
		return nil
	},
}

func renderReport(raw *eval.RawResult) {
	report := results.GenerateTestReport(raw)
	s := report.Summary

	pterm.DefaultSection.Println("Summary")
	pterm.Printf("  Tests: %d (%d passed, %d failed)\n", s.TotalTests, s.SuccessfulTests, s.FailedTests)
	pterm.Printf("  Success rate: %.0f%%  Average score: %.2f  Average latency: %.0fms\n",
		s.SuccessRate*100, s.AverageScore, s.AverageLatencyMs)
	pterm.Printf("  Tokens: %d  Cost: $%.4f\n", s.TotalTokensUsed, s.TotalCost)

	if len(report.Failures) > 0 {
		pterm.DefaultSection.Println("Failures")
		for _, f := range report.Failures {
			pterm.Error.Printf("  test %d: %s\n", f.TestIndex, truncate(f.Error, 96))
		}
	}

	if len(report.Recommendations) > 0 {
		pterm.DefaultSection.Println("Recommendations")
		for _, rec := range report.Recommendations {
			pterm.Warning.Printf("  %s\n", rec)
		}
	}
}

func init() {
	testRunCmd.Flags().Bool("async", false, "Return immediately with a job ID")
	testRunCmd.Flags().Bool("save", true, "Persist results and recompute metrics")
	testRunCmd.Flags().String("environment", "", "Environment tag on stored results")
	testRunCmd.Flags().String("model", "", "Override the configured evaluator model")
	testRunCmd.Flags().Int("concurrency", 0, "Concurrent sub-evaluations (1-10)")
	testRunCmd.Flags().Int("timeout", 0, "Per-job wait in seconds (10-300)")

	TestCmd.AddCommand(testRunCmd)
}
