package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/valter-silva-au/taskflow/internal/core"
	"github.com/valter-silva-au/taskflow/pkg/models"
)

var advanceTo string

var advanceCmd = &cobra.Command{
	Use:   "advance [task-id]",
	Short: "Advance a task to its next workflow stage",
	Long: `Advance a task one stage forward. Without a task ID the active task
is advanced. Without --to the next stage in sequence is used; --to exists
only to make the intent explicit, it cannot skip stages.

Advancing is blocked while the current stage has incomplete required
checklist items.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Orchestrator == nil {
			return fmt.Errorf("orchestrator not initialized")
		}
		task, err := resolveTask(args)
		if err != nil {
			return err
		}
		if task.Workflow == nil {
			return fmt.Errorf("task %s has no workflow; activate it first", task.ID)
		}

		to := models.Stage(advanceTo)
		if advanceTo == "" {
			next, ok := core.NextStage(task.Workflow.CurrentState)
			if !ok {
				return fmt.Errorf("task %s is already at %s, the final stage", task.ID, task.Workflow.CurrentState)
			}
			to = next
		}

		updated, err := Orchestrator.UpdateState(task.ID, to)
		if err != nil {
			var incomplete *core.StateChecklistIncompleteError
			if errors.As(err, &incomplete) {
				fmt.Printf("Cannot leave %s: %d required item(s) incomplete:\n", incomplete.Stage, len(incomplete.Missing))
				for _, item := range incomplete.Missing {
					marker := " "
					if item.EvidenceRequired {
						marker = "E"
					}
					fmt.Printf("  [%s] %s  %s\n", marker, item.ID, item.Label)
				}
				fmt.Println("Complete them with 'taskflow check <item-id>'.")
			}
			return err
		}
		fmt.Printf("%s advanced to %s (%d%%)\n", updated.ID, updated.Workflow.CurrentState, core.Progress(updated.Workflow.CurrentState))
		return nil
	},
}

// resolveTask returns the task named by args[0], or the active task when no
// argument was given.
func resolveTask(args []string) (*models.Task, error) {
	if len(args) == 1 {
		return Store.GetTask(args[0])
	}
	task, err := Orchestrator.GetCurrentTask()
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, fmt.Errorf("no active task; pass a task ID")
	}
	return task, nil
}

func init() {
	advanceCmd.Flags().StringVar(&advanceTo, "to", "", "Target stage (must be the next stage in sequence)")
	rootCmd.AddCommand(advanceCmd)
}
