package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/valter-silva-au/taskflow/internal/core"
	"github.com/valter-silva-au/taskflow/pkg/models"
)

var (
	listStatus   string
	listPriority string
	listTags     []string
	listArchived bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks, active first",
	Long: `List tasks sorted active-first, then by priority tier, then by
creation time. Archived tasks are hidden unless --archived is given.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Store == nil {
			return fmt.Errorf("store not initialized")
		}
		filter := core.TaskListFilter{Tags: listTags, IncludeArchived: listArchived}
		if listStatus != "" {
			filter.Statuses = []models.TaskStatus{models.TaskStatus(listStatus)}
		}
		if listPriority != "" {
			filter.Priorities = []models.Priority{models.Priority(listPriority)}
		}
		tasks, err := Store.ListTasks(filter)
		if err != nil {
			return fmt.Errorf("listing tasks: %w", err)
		}
		if len(tasks) == 0 {
			fmt.Println("No tasks found.")
			return nil
		}

		fmt.Printf("%-12s %-9s %-9s %-15s %-5s %s\n", "ID", "STATUS", "PRIORITY", "STAGE", "PROG", "GOAL")
		for _, t := range tasks {
			stage, progress := "-", ""
			if t.Workflow != nil {
				stage = string(t.Workflow.CurrentState)
				progress = fmt.Sprintf("%d%%", core.Progress(t.Workflow.CurrentState))
			}
			fmt.Printf("%-12s %-9s %-9s %-15s %-5s %s\n", t.ID, t.Status, t.Priority, stage, progress, truncate(t.Goal, 60))
		}
		return nil
	},
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

func init() {
	listCmd.Flags().StringVar(&listStatus, "status", "", "Filter by status (queued, active, done, archived)")
	listCmd.Flags().StringVar(&listPriority, "priority", "", "Filter by priority (critical, high, medium, low)")
	listCmd.Flags().StringSliceVar(&listTags, "tag", nil, "Filter by tag (repeatable, all must match)")
	listCmd.Flags().BoolVar(&listArchived, "archived", false, "Include archived tasks")
	rootCmd.AddCommand(listCmd)
}
