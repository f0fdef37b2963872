package commands

import (
	"fmt"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/promptpulse/prompt"
)

// PromptCmd groups prompt and version management subcommands.
var PromptCmd = &cobra.Command{
	Use:   "prompt",
	Short: "Inspect and manage prompts and their versions",
}

var promptListCmd = &cobra.Command{
	Use:   "list <agent-type> <operation>",
	Short: "List prompts sharing an (agentType, operation) group",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.Close()

		prompts, err := app.service.ListGroup(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		if len(prompts) == 0 {
			pterm.Info.Println("No prompts in this group")
			return nil
		}

		rows := pterm.TableData{{"ID", "Name", "Primary", "Production", "Updated"}}
		for _, p := range prompts {
			production := ""
			if p.IsProduction {
				production = "yes"
			}
			rows = append(rows, []string{
				p.ID, p.Name, p.PrimaryVersion, production,
				p.UpdatedAt.Format("2006-01-02 15:04"),
			})
		}
		return pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
	},
}

var promptVersionsCmd = &cobra.Command{
	Use:   "versions <prompt-id>",
	Short: "List a prompt's versions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.Close()

		p, err := app.service.GetPrompt(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		pterm.DefaultSection.Printf("%s (%s/%s)", p.Name, p.AgentType, p.Operation)
		rows := pterm.TableData{{"Version", "Primary", "Created", "Changelog"}}
		for _, v := range p.Versions {
			primary := ""
			if v.Version == p.PrimaryVersion {
				primary = "*"
			}
			rows = append(rows, []string{
				v.Version, primary,
				v.CreatedAt.Format("2006-01-02 15:04"),
				truncate(v.Changelog, 48),
			})
		}
		return pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
	},
}

var promptSaveCmd = &cobra.Command{
	Use:   "save <prompt-id> <version>",
	Short: "Create or save a version (modes: new, overwrite, draft)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, _ := cmd.Flags().GetString("mode")
		template, _ := cmd.Flags().GetString("template")
		changelog, _ := cmd.Flags().GetString("changelog")

		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.Close()

		updated, err := app.service.CreateOrSaveVersion(cmd.Context(), args[0], prompt.VersionSpec{
			Version:   args[1],
			Template:  template,
			Changelog: changelog,
			SaveMode:  prompt.SaveMode(mode),
		})
		if err != nil {
			return err
		}
		pterm.Success.Printf("Saved version %s (primary: %s)\n", args[1], updated.PrimaryVersion)
		return nil
	},
}

var promptDeleteCmd = &cobra.Command{
	Use:   "delete <prompt-id> <version>",
	Short: "Delete a version, reassigning the primary version if needed",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.Close()

		updated, err := app.service.DeleteVersion(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		pterm.Success.Printf("Deleted version %s (primary is now %s)\n", args[1], updated.PrimaryVersion)
		return nil
	},
}

var promptActivateCmd = &cobra.Command{
	Use:   "activate <prompt-id> [version]",
	Short: "Activate a version, or with --production the whole prompt",
	Long: `With a version argument, makes that version the prompt's primary
version. With --production, makes the prompt the production prompt of its
(agentType, operation) group, deactivating every sibling.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		production, _ := cmd.Flags().GetBool("production")

		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.Close()

		if production {
			res, err := app.service.ActivateProduction(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			pterm.Success.Printf("Prompt %s is now production\n", res.Activated)
			if len(res.DeactivatedSiblings) > 0 {
				pterm.Info.Printf("Deactivated: %s\n", strings.Join(res.DeactivatedSiblings, ", "))
			}
			return nil
		}

		if len(args) != 2 {
			return fmt.Errorf("a version argument is required unless --production is set")
		}
		if err := app.service.ActivateVersion(cmd.Context(), args[0], args[1]); err != nil {
			return err
		}
		pterm.Success.Printf("Version %s is now primary for %s\n", args[1], args[0])
		return nil
	},
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

func init() {
	promptSaveCmd.Flags().String("mode", string(prompt.SaveModeNew), "Save mode: new, overwrite, or draft")
	promptSaveCmd.Flags().String("template", "", "Template text")
	promptSaveCmd.Flags().String("changelog", "", "Changelog entry for this version")
	promptActivateCmd.Flags().Bool("production", false, "Activate the prompt for production instead of a version")

	PromptCmd.AddCommand(promptListCmd)
	PromptCmd.AddCommand(promptVersionsCmd)
	PromptCmd.AddCommand(promptSaveCmd)
	PromptCmd.AddCommand(promptDeleteCmd)
	PromptCmd.AddCommand(promptActivateCmd)
}
