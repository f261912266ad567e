// ABOUTME: Blast-radius command: what depends on a given task across the workflow corpus
// ABOUTME: Thin CLI wrapper around internal/blastradius's reverse-dependency BFS

package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ritualflow/engine/internal/blastradius"
)

var blastRadiusMaxDepth int

// blastRadiusCmd represents the blast-radius command
var blastRadiusCmd = &cobra.Command{
	Use:   "blast-radius [task-name]",
	Short: "Show every workflow that would be affected by changing a task",
	Long: `Walk the reverse-dependency graph from a task definition name across
every workflow --workflows-dir can see, reporting which workflows use it
directly and which reach it transitively through sub-workflow composition.

Examples:
  ritual blast-radius http-call
  ritual blast-radius http-call --max-depth 3 --format json`,
	Args: cobra.ExactArgs(1),
	RunE: runBlastRadius,
}

func runBlastRadius(cmd *cobra.Command, args []string) error {
	taskName := args[0]

	e, err := buildEngine()
	if err != nil {
		return err
	}

	result, err := blastradius.Analyze(e.provider, taskName, blastRadiusMaxDepth)
	if err != nil {
		return fmt.Errorf("analyzing blast radius for %q: %w", taskName, err)
	}

	if format == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	fmt.Printf("Blast radius of %q:\n", taskName)
	fmt.Printf("  Affected workflows: %d\n", result.Summary.AffectedWorkflows)
	fmt.Printf("  Affected tasks:     %d\n", result.Summary.AffectedTasks)
	if result.TruncatedAtDepth {
		fmt.Printf("  (truncated at max depth %d)\n", blastRadiusMaxDepth)
	}
	fmt.Println()
	for _, n := range result.Graph.Nodes {
		if n.IsSource {
			continue
		}
		fmt.Printf("  [%s] %-30s depth=%d\n", n.Kind, n.ID, n.Depth)
	}

	return nil
}

func init() {
	rootCmd.AddCommand(blastRadiusCmd)
	blastRadiusCmd.Flags().IntVar(&blastRadiusMaxDepth, "max-depth", 10, "maximum reverse-dependency depth to walk")
}
