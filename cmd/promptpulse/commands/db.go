package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/teranos/promptpulse/config"
	"github.com/teranos/promptpulse/db"
	"github.com/teranos/promptpulse/errors"
	"github.com/teranos/promptpulse/logger"
)

// DbCmd represents the db (database) command
var DbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the PromptPulse database",
	Long: `db — Manage PromptPulse database operations

Examples:
  promptpulse db migrate          # Apply pending schema migrations
  promptpulse db stats            # Show database statistics`,
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return errors.Wrap(err, "failed to load configuration")
		}

		log := logger.Named("db")
		database, err := db.Open(cfg.Database.Path, log)
		if err != nil {
			return errors.Wrap(err, "failed to open database")
		}
		defer database.Close()

		if err := db.Migrate(database, log); err != nil {
			return errors.Wrap(err, "migration failed")
		}
		fmt.Println("Database schema is up to date")
		return nil
	},
}

var dbStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show database statistics",
	RunE:  runDbStats,
}

func init() {
	DbCmd.AddCommand(dbMigrateCmd)
	DbCmd.AddCommand(dbStatsCmd)
}

func runDbStats(cmd *cobra.Command, args []string) error {
	app, err := newApp()
	if err != nil {
		return err
	}
	defer app.Close()

	var prompts, versions, testCases, results int
	row := app.db.QueryRow(`
		SELECT
			(SELECT COUNT(*) FROM prompts),
			(SELECT COUNT(*) FROM prompt_versions),
			(SELECT COUNT(*) FROM test_cases),
			(SELECT COUNT(*) FROM test_results)
	`)
	if err := row.Scan(&prompts, &versions, &testCases, &results); err != nil {
		return errors.Wrap(err, "failed to query database stats")
	}

	fmt.Printf("Database Statistics\n")
	fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")
	fmt.Printf("Database Path:   %s\n", app.cfg.Database.Path)
	fmt.Printf("Prompts:         %d\n", prompts)
	fmt.Printf("Versions:        %d\n", versions)
	fmt.Printf("Test Cases:      %d\n", testCases)
	fmt.Printf("Test Results:    %d\n", results)
	fmt.Println()

	var production int
	err = app.db.QueryRow(`SELECT COUNT(*) FROM prompts WHERE is_production = 1`).Scan(&production)
	if err == nil {
		fmt.Printf("Production-active prompts: %d\n", production)
	}

	return nil
}
