package commands

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// JobCmd groups job inspection subcommands.
var JobCmd = &cobra.Command{
	Use:   "job",
	Short: "Inspect, read, and dismiss test-execution jobs",
}

var jobStatusCmd = &cobra.Command{
	Use:   "status <prompt-id> <job-id>",
	Short: "Show a job's current state and progress",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.Close()

		view, err := app.service.GetJobStatus(args[0], args[1])
		if err != nil {
			return err
		}
		job := view.Job

		pterm.DefaultSection.Printf("Job %s", job.ID)
		pterm.Printf("  Status: %s\n", job.Status)
		pterm.Printf("  Progress: %d/%d (%.0f%%)\n",
			job.Progress.Current, job.Progress.Total, job.Progress.Percentage())
		pterm.Printf("  Prompt: %s @ %s  Environment: %s\n",
			job.PromptID, job.Version, job.Metadata.Environment)
		if job.Metadata.FailedTests > 0 {
			pterm.Printf("  Failed tests: %d\n", job.Metadata.FailedTests)
		}
		if job.Error != "" {
			pterm.Error.Printf("  Error: %s\n", job.Error)
		}
		pterm.Printf("  System: cpu %.0f%%, mem %.1f/%.1fGB, %d jobs tracked\n",
			view.System.CPUPercent, view.System.MemoryUsedGB, view.System.MemoryTotalGB,
			view.System.JobsTracked)
		return nil
	},
}

var jobResultCmd = &cobra.Command{
	Use:   "result <prompt-id> <job-id>",
	Short: "Render a completed job's report",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.Close()

		raw, err := app.service.GetJobResult(args[0], args[1])
		if err != nil {
			return err
		}
		renderReport(raw)
		return nil
	},
}

var jobDismissCmd = &cobra.Command{
	Use:   "dismiss <prompt-id> <job-id>",
	Short: "Remove a finished job from the registry",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.Close()

		if err := app.service.DismissJob(args[0], args[1]); err != nil {
			return err
		}
		pterm.Success.Printf("Job %s dismissed\n", args[1])
		return nil
	},
}

var jobCleanupCmd = &cobra.Command{
	Use:   "cleanup <prompt-id> <job-id>",
	Short: "Remove a finished job if it is still tracked",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.Close()

		removed, err := app.service.CleanupJob(args[0], args[1])
		if err != nil {
			return err
		}
		if removed {
			pterm.Success.Printf("Job %s removed\n", args[1])
		} else {
			pterm.Info.Printf("Job %s was not tracked or is still running\n", args[1])
		}
		return nil
	},
}

func init() {
	JobCmd.AddCommand(jobStatusCmd)
	JobCmd.AddCommand(jobResultCmd)
	JobCmd.AddCommand(jobDismissCmd)
	JobCmd.AddCommand(jobCleanupCmd)
}
