// ABOUTME: Validate command for checking workflow syntax and dependencies
// ABOUTME: Provides workflow validation without execution

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ritualflow/engine/internal/graph"
)

// validateCmd represents the validate command
var validateCmd = &cobra.Command{
	Use:   "validate [workflow-name]",
	Short: "Validate a workflow's dependency graph",
	Long: `Resolve a registered workflow and check its task dependency graph
for cycles and missing references, without executing any tasks.

Examples:
  ritual validate billing
  ritual validate billing --workflows-dir s3://workflows/prod`,
	Args: cobra.ExactArgs(1),
	RunE: validateWorkflow,
}

func validateWorkflow(cmd *cobra.Command, args []string) error {
	name := args[0]
	logger := GetLogger()

	logger.Info().Str("workflow", name).Msg("Validating workflow")

	e, err := buildEngine()
	if err != nil {
		return err
	}

	wf, err := e.provider.GetWorkflow(name)
	if err != nil {
		fmt.Printf("❌ Failed to load workflow %q: %s\n", name, err)
		return fmt.Errorf("validation failed")
	}

	g, err := graph.Build(wf)
	if err != nil {
		fmt.Printf("❌ Dependency graph error: %s\n", err)
		return fmt.Errorf("validation failed")
	}

	roots := 0
	for _, n := range g.Nodes {
		if len(n.Dependencies) == 0 {
			roots++
		}
	}

	fmt.Printf("✅ Workflow %q is valid (%d tasks, %d ready to start)\n", wf.Metadata.Name, len(wf.Tasks), roots)
	return nil
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
