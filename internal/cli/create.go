package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/valter-silva-au/taskflow/internal/core"
	"github.com/valter-silva-au/taskflow/pkg/models"
)

var (
	createPriority     string
	createTags         []string
	createEstimate     float64
	createRequirements []string
	createForce        bool
)

var createCmd = &cobra.Command{
	Use:   "create <goal>",
	Short: "Create a new task",
	Long: `Create a new task from a goal description (10-500 characters).

The task becomes active if no task currently is, otherwise it is queued.
Priority is auto-detected from the goal text unless --priority is given.
With --force the task becomes active immediately, demoting the current
active task back to the queue with its workflow preserved.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Orchestrator == nil {
			return fmt.Errorf("orchestrator not initialized")
		}
		task, err := Orchestrator.CreateTask(args[0], core.TaskCreateOptions{
			Priority:       models.Priority(createPriority),
			Tags:           createTags,
			EstimatedHours: createEstimate,
			Requirements:   createRequirements,
			Force:          createForce,
		})
		if err != nil {
			return err
		}
		fmt.Printf("Created %s [%s] %s\n", task.ID, task.Status, task.Goal)
		if task.Status == models.StatusActive && task.Workflow != nil {
			fmt.Printf("Now active at stage %s.\n", task.Workflow.CurrentState)
		}
		return nil
	},
}

func init() {
	createCmd.Flags().StringVar(&createPriority, "priority", "", "Priority (critical, high, medium, low); auto-detected when omitted")
	createCmd.Flags().StringSliceVar(&createTags, "tag", nil, "Tag to attach (repeatable)")
	createCmd.Flags().Float64Var(&createEstimate, "estimate", 0, "Estimated hours")
	createCmd.Flags().StringSliceVar(&createRequirements, "require", nil, "Acceptance requirement (repeatable)")
	createCmd.Flags().BoolVar(&createForce, "force", false, "Make this task active, demoting the current one")
	rootCmd.AddCommand(createCmd)
}
