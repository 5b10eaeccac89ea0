package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/valter-silva-au/taskflow/internal/core"
	"github.com/valter-silva-au/taskflow/pkg/models"
)

var currentCmd = &cobra.Command{
	Use:   "current",
	Short: "Show the active task",
	Long: `Show the active task with its workflow position and progress.
Reads the queue store first; falls back to the mirror file only when the
store is transiently unreadable.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Orchestrator == nil {
			return fmt.Errorf("orchestrator not initialized")
		}
		task, err := Orchestrator.GetCurrentTask()
		if err != nil {
			return err
		}
		if task == nil {
			fmt.Println("No active task. Use 'taskflow create' or 'taskflow activate'.")
			return nil
		}
		printTaskDetail(task)
		return nil
	},
}

func printTaskDetail(task *models.Task) {
	fmt.Printf("%s  %s\n", task.ID, task.Goal)
	fmt.Printf("  status:   %s\n", task.Status)
	fmt.Printf("  priority: %s\n", task.Priority)
	if len(task.Tags) > 0 {
		fmt.Printf("  tags:     %s\n", strings.Join(task.Tags, ", "))
	}
	if task.Workflow != nil {
		fmt.Printf("  stage:    %s (%d%%)\n", task.Workflow.CurrentState, core.Progress(task.Workflow.CurrentState))
		fmt.Printf("  entered:  %s\n", task.Workflow.StateEnteredAt.Local().Format("2006-01-02 15:04"))
		if next, ok := core.NextStage(task.Workflow.CurrentState); ok {
			fmt.Printf("  next:     %s\n", next)
		}
	}
	if task.EstimatedHours > 0 {
		fmt.Printf("  estimate: %.1fh\n", task.EstimatedHours)
	}
	if len(task.Requirements) > 0 {
		fmt.Println("  requirements:")
		for _, r := range task.Requirements {
			fmt.Printf("    - %s\n", r)
		}
	}
}

func init() {
	rootCmd.AddCommand(currentCmd)
}
