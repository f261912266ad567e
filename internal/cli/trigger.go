// ABOUTME: Trigger command group for inspecting configured cron triggers
// ABOUTME: `trigger list` reads the same catalog file the scheduler loads at startup

package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ritualflow/engine/internal/schedule"
)

var triggersFile string

// triggerCmd is the parent command for trigger-related subcommands.
var triggerCmd = &cobra.Command{
	Use:   "trigger",
	Short: "Inspect configured cron triggers",
}

// triggerListCmd represents the `trigger list` command.
var triggerListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured cron triggers",
	Long: `List every trigger declared in --triggers-file: its cron schedule
and the workflow it fires.

Examples:
  ritual trigger list --triggers-file triggers.yaml
  ritual trigger list --triggers-file triggers.yaml --format json`,
	RunE: listTriggers,
}

func listTriggers(cmd *cobra.Command, args []string) error {
	if triggersFile == "" {
		return fmt.Errorf("--triggers-file is required")
	}

	triggers, err := schedule.LoadTriggersFile(triggersFile)
	if err != nil {
		return fmt.Errorf("loading triggers: %w", err)
	}

	if format == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(triggers)
	}

	if len(triggers) == 0 {
		fmt.Println("No triggers configured")
		return nil
	}

	fmt.Println("⏰ Configured Triggers")
	fmt.Println()
	for _, t := range triggers {
		fmt.Printf("  %-20s %-16s -> %s\n", t.Name, t.Cron, t.WorkflowRef)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(triggerCmd)
	triggerCmd.AddCommand(triggerListCmd)
	triggerListCmd.Flags().StringVar(&triggersFile, "triggers-file", "", "path to a trigger catalog file (YAML or JSON)")
}
