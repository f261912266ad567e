// ABOUTME: List-tasks command for showing the registered TaskDefinition catalog
// ABOUTME: Helps users discover what HTTP-backed task types a deployment has configured

package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// listTasksCmd represents the list-tasks command
var listTasksCmd = &cobra.Command{
	Use:   "list-tasks",
	Short: "Show the registered task definition catalog",
	Long: `Display every TaskDefinition registered via --task-defs: its name,
the HTTP method/URL template its steps resolve to, and its timeout.

Unlike a fixed built-in task-type list, this engine's tasks are declared
data (name, request template, retry policy, circuit breaker) rather than
compiled Go types, so the catalog is only as large as what was loaded.

Examples:
  ritual list-tasks --task-defs catalog.yaml
  ritual list-tasks --task-defs catalog.yaml --format json`,
	RunE: listTasks,
}

func listTasks(cmd *cobra.Command, args []string) error {
	e, err := buildEngine()
	if err != nil {
		return err
	}

	defs, err := e.taskDefs.ListTaskDefinitions()
	if err != nil {
		return fmt.Errorf("listing task definitions: %w", err)
	}

	if len(defs) == 0 {
		fmt.Println("No task definitions registered (pass --task-defs to load a catalog)")
		return nil
	}

	fmt.Println("✨ Registered Task Definitions")
	fmt.Println()
	for _, def := range defs {
		fmt.Printf("  %-24s %-6s %s\n", def.Name, def.Request.Method, def.Request.URL)
		if def.Timeout > 0 {
			fmt.Printf("  %-24s timeout=%s\n", "", def.Timeout)
		}
	}
	fmt.Printf("\nTotal: %d task definitions\n", len(defs))

	return nil
}

func init() {
	rootCmd.AddCommand(listTasksCmd)
}
