package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/valter-silva-au/taskflow/pkg/models"
)

var completeCmd = &cobra.Command{
	Use:   "complete [task-id]",
	Short: "Complete the active task",
	Long: `Mark the active task done and promote the best queued task in its
place (highest priority tier, oldest first). Only the active task can be
completed; the optional ID argument is a guard against completing the
wrong task.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Store == nil || Mirror == nil {
			return fmt.Errorf("store not initialized")
		}
		id := ""
		if len(args) == 1 {
			id = args[0]
		} else {
			active, err := Store.GetActiveTask()
			if err != nil {
				return err
			}
			if active == nil {
				return fmt.Errorf("no active task to complete")
			}
			id = active.ID
		}

		result, err := Store.CompleteTask(id)
		if err != nil {
			return err
		}
		if err := Mirror.Sync(); err != nil {
			return fmt.Errorf("syncing mirror: %w", err)
		}
		logInfo("task.completed", map[string]any{"task_id": result.Completed.ID})

		fmt.Printf("Completed %s", result.Completed.ID)
		if result.Completed.ActualHours > 0 {
			fmt.Printf(" (%.2fh actual)", result.Completed.ActualHours)
		}
		fmt.Println()
		if next := result.NextActive; next != nil {
			stage := models.Stage("")
			if next.Workflow != nil {
				stage = next.Workflow.CurrentState
			}
			fmt.Printf("Promoted %s [%s] %s\n", next.ID, stage, next.Goal)
		} else {
			fmt.Println("Queue is empty.")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(completeCmd)
}
