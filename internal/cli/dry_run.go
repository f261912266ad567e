// ABOUTME: Dry-run command for showing workflow execution plans
// ABOUTME: Allows users to preview what a workflow would do without executing it

package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ritualflow/engine/pkg/types"
)

var (
	dryRunFormat    string
	dryRunInputFile string
)

// dryRunCmd represents the dry-run command
var dryRunCmd = &cobra.Command{
	Use:   "dry-run [workflow-name]",
	Short: "Show execution plan without running tasks",
	Long: `Show what a workflow would do without actually executing any tasks.
This resolves the workflow, orders its tasks by dependency, and resolves
each step's templated inputs against the supplied input, without invoking
any task definition.

Examples:
  ritual dry-run billing
  ritual dry-run billing --format json
  ritual dry-run billing --input-file input.json`,
	Args: cobra.ExactArgs(1),
	RunE: dryRunWorkflow,
}

func dryRunWorkflow(cmd *cobra.Command, args []string) error {
	name := args[0]

	input, err := loadInputFile(dryRunInputFile)
	if err != nil {
		return fmt.Errorf("loading input file: %w", err)
	}

	e, err := buildEngine()
	if err != nil {
		return err
	}

	wf, err := e.provider.GetWorkflow(name)
	if err != nil {
		return fmt.Errorf("resolving workflow %q: %w", name, err)
	}

	plan, err := e.orchestrator.Plan(wf, input)
	if err != nil {
		return fmt.Errorf("planning workflow %q: %w", name, err)
	}

	switch dryRunFormat {
	case "json":
		return displayDryRunJSON(plan)
	case "text":
		return displayDryRunText(plan)
	default:
		return fmt.Errorf("unknown format: %s", dryRunFormat)
	}
}

// displayDryRunJSON displays an execution plan in JSON format
func displayDryRunJSON(plan *types.ExecutionPlan) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(plan)
}

// displayDryRunText displays an execution plan in human-readable format
func displayDryRunText(plan *types.ExecutionPlan) error {
	fmt.Printf("🔍 DRY RUN - No tasks will be executed\n\n")
	fmt.Printf("Workflow: %s\n", plan.WorkflowName)
	fmt.Printf("Tasks: %d\n\n", len(plan.Order))

	fmt.Printf("Execution Order:\n")
	for i, taskID := range plan.Order {
		fmt.Printf("  %d. %s\n", i+1, taskID)
		if inputs, ok := plan.ResolvedInputs[taskID]; ok && len(inputs) > 0 {
			for k, v := range inputs {
				fmt.Printf("       %s: %v\n", k, v)
			}
		}
	}

	return nil
}

func init() {
	rootCmd.AddCommand(dryRunCmd)

	dryRunCmd.Flags().StringVar(&dryRunFormat, "format", "text", "output format (text, json)")
	dryRunCmd.Flags().StringVar(&dryRunInputFile, "input-file", "", "path to a JSON file supplying the workflow input")
}
