package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Archive old completed tasks",
	Long: `Archive done tasks whose completion is older than the configured
retention window (archive_after_days, default 30). Archived tasks stay in
the store but disappear from default listings.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Store == nil {
			return fmt.Errorf("store not initialized")
		}
		count, err := Store.ArchiveOldTasks()
		if err != nil {
			return err
		}
		if count > 0 {
			logInfo("task.archived", map[string]any{"count": count})
		}
		fmt.Printf("Archived %d task(s).\n", count)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(archiveCmd)
}
