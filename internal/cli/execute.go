// ABOUTME: Execute command: the engine-embed entry point, always JSON in/out
// ABOUTME: Unlike `run`, never prints human-facing text and exits 0 on task failure (caller inspects JSON)

package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ritualflow/engine/pkg/types"
)

var executeInputFile string

// executeCmd mirrors the embed contract's Execute(workflowRef, input,
// options) -> ExecutionResult directly: one JSON object on stdout, success
// or failure, and a process exit code that only ever reflects a wiring
// error (bad workflow name, malformed input) rather than a task failure.
// Callers embedding this engine distinguish outcomes by reading `success`
// in the JSON, not by process exit code.
var executeCmd = &cobra.Command{
	Use:   "execute [workflow-name]",
	Short: "Execute a workflow and print its ExecutionResult as JSON (engine-embed entry point)",
	Args:  cobra.ExactArgs(1),
	RunE:  executeWorkflow,
}

func executeWorkflow(cmd *cobra.Command, args []string) error {
	name := args[0]

	input, err := loadInputFile(executeInputFile)
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

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func init() {
	rootCmd.AddCommand(executeCmd)
	executeCmd.Flags().StringVar(&executeInputFile, "input-file", "", "path to a JSON file supplying the workflow input")
}
