// ABOUTME: Versions command listing recorded content-hash workflow versions
// ABOUTME: Reads the same persistence store the orchestrator writes to on execute

package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// versionsCmd represents the versions command
var versionsCmd = &cobra.Command{
	Use:   "versions [workflow-name]",
	Short: "List recorded versions of a workflow",
	Long: `List every content-hash version recorded for a workflow, oldest
first. A new version is recorded each time the workflow's resolved
definition changes between executions.

Examples:
  ritual versions billing
  ritual versions billing --format json`,
	Args: cobra.ExactArgs(1),
	RunE: listVersions,
}

func listVersions(cmd *cobra.Command, args []string) error {
	name := args[0]

	e, err := buildEngine()
	if err != nil {
		return err
	}

	versions, err := e.store.ListVersions(name)
	if err != nil {
		return fmt.Errorf("listing versions for %q: %w", name, err)
	}

	if format == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(versions)
	}

	if len(versions) == 0 {
		fmt.Printf("No versions recorded for %q\n", name)
		return nil
	}

	fmt.Printf("Versions of %q:\n", name)
	for _, v := range versions {
		fmt.Printf("  %s  %s\n", v.Hash[:12], v.CreatedAt.Format("2006-01-02T15:04:05Z07:00"))
	}
	return nil
}

func init() {
	rootCmd.AddCommand(versionsCmd)
}
