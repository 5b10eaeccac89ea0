package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var activateCmd = &cobra.Command{
	Use:   "activate <task-id>",
	Short: "Make a queued task the active one",
	Long: `Make the given queued task active, demoting the current active task
back to the queue with its workflow preserved. Archived tasks cannot be
activated. Activating the already-active task is a no-op.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Store == nil || Mirror == nil {
			return fmt.Errorf("store not initialized")
		}
		task, err := Store.ActivateTask(args[0])
		if err != nil {
			return err
		}
		if err := Mirror.Sync(); err != nil {
			return fmt.Errorf("syncing mirror: %w", err)
		}
		logInfo("task.activated", map[string]any{"task_id": task.ID})
		fmt.Printf("%s is now active", task.ID)
		if task.Workflow != nil {
			fmt.Printf(" at stage %s", task.Workflow.CurrentState)
		}
		fmt.Println()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(activateCmd)
}
