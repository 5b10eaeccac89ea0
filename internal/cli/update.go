package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/valter-silva-au/taskflow/internal/core"
	"github.com/valter-silva-au/taskflow/pkg/models"
)

var (
	updateGoal         string
	updatePriority     string
	updateTags         []string
	updateEstimate     float64
	updateRequirements []string
)

var updateCmd = &cobra.Command{
	Use:   "update <task-id>",
	Short: "Update a task's mutable fields",
	Long: `Update a task's goal, priority, tags, estimate, or requirements.
Only the flags given change; workflow state is never touched here, use
'taskflow advance' for that.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Orchestrator == nil {
			return fmt.Errorf("orchestrator not initialized")
		}
		var update core.TaskUpdate
		if cmd.Flags().Changed("goal") {
			update.Goal = &updateGoal
		}
		if cmd.Flags().Changed("priority") {
			p := models.Priority(updatePriority)
			update.Priority = &p
		}
		if cmd.Flags().Changed("tag") {
			update.Tags = updateTags
		}
		if cmd.Flags().Changed("estimate") {
			update.EstimatedHours = &updateEstimate
		}
		if cmd.Flags().Changed("require") {
			update.Requirements = updateRequirements
		}

		task, err := Orchestrator.UpdateTask(args[0], update)
		if err != nil {
			return err
		}
		fmt.Printf("Updated %s\n", task.ID)
		printTaskDetail(task)
		return nil
	},
}

func init() {
	updateCmd.Flags().StringVar(&updateGoal, "goal", "", "New goal text (10-500 characters)")
	updateCmd.Flags().StringVar(&updatePriority, "priority", "", "New priority (critical, high, medium, low)")
	updateCmd.Flags().StringSliceVar(&updateTags, "tag", nil, "Replace tags (repeatable)")
	updateCmd.Flags().Float64Var(&updateEstimate, "estimate", 0, "New estimated hours")
	updateCmd.Flags().StringSliceVar(&updateRequirements, "require", nil, "Replace acceptance requirements (repeatable)")
	rootCmd.AddCommand(updateCmd)
}
