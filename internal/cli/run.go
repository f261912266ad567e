// ABOUTME: Run command for executing workflows by name to completion
// ABOUTME: Implements the primary workflow execution functionality

package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ritualflow/engine/pkg/types"
)

var runInputFile string

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run [workflow-name]",
	Short: "Execute a workflow to completion",
	Long: `Execute a registered workflow by name, resolved from --workflows-dir,
and print its result once it finishes (or fails).

Examples:
  ritual run billing
  ritual run billing --input-file input.json`,
	Args: cobra.ExactArgs(1),
	RunE: runWorkflow,
}

func runWorkflow(cmd *cobra.Command, args []string) error {
	name := args[0]

	input, err := loadInputFile(runInputFile)
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

	rec, err := e.orchestrator.Execute(context.Background(), wf, input)
	if err != nil {
		return fmt.Errorf("executing workflow %q: %w", name, err)
	}

	tasks, err := e.store.ListTaskExecutions(rec.ID)
	if err != nil {
		return fmt.Errorf("loading task executions for %q: %w", rec.ID, err)
	}
	result := types.NewExecutionResult(rec, tasks)

	if err := displayExecutionResult(result); err != nil {
		return fmt.Errorf("displaying result: %w", err)
	}
	if !result.Success {
		os.Exit(1)
	}
	return nil
}

// loadInputFile reads and JSON-decodes path into a workflow input map, or
// returns an empty map when path is unset.
func loadInputFile(path string) (map[string]any, error) {
	if path == "" {
		return map[string]any{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var input map[string]any
	if err := json.Unmarshal(data, &input); err != nil {
		return nil, fmt.Errorf("parsing %q as JSON: %w", path, err)
	}
	return input, nil
}

// displayExecutionResult prints an ExecutionResult as text or JSON,
// depending on the global --format flag.
func displayExecutionResult(result *types.ExecutionResult) error {
	if format == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	statusIcon := "✅"
	if !result.Success {
		statusIcon = "❌"
	}
	fmt.Printf("\n%s Status: %s\n", statusIcon, result.Status)
	if result.Error != "" {
		fmt.Printf("   Error: %s\n", result.Error)
	}
	fmt.Printf("   Tasks: %d\n", len(result.TaskDetails))

	for _, t := range result.TaskDetails {
		icon := "✅"
		switch t.Status {
		case types.TaskFailed:
			icon = "❌"
		case types.TaskSkipped:
			icon = "⏭️"
		}
		fmt.Printf("  %s %s - %s\n", icon, t.TaskID, t.Status)
		if t.Error != "" {
			fmt.Printf("    Error: %s\n", t.Error)
		}
	}
	if len(result.Output) > 0 {
		fmt.Printf("\nOutput:\n")
		for k, v := range result.Output {
			fmt.Printf("  %s: %v\n", k, v)
		}
	}
	return nil
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVar(&runInputFile, "input-file", "", "path to a JSON file supplying the workflow input")
}
