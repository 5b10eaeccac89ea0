// Package cli contains the cobra commands consuming the taskflow
// orchestrator. The CLI layer owns no task data; it renders what the
// orchestrator and store return.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	appVersion = "dev"
	appCommit  = "none"
	appDate    = "unknown"
)

// SetVersionInfo sets the version information injected via ldflags.
func SetVersionInfo(version, commit, date string) {
	appVersion = version
	appCommit = commit
	appDate = date
}

var rootCmd = &cobra.Command{
	Use:   "taskflow",
	Short: "taskflow - sequential task queue with a gated six-stage workflow",
	Long: `taskflow tracks work as a queue of discrete tasks, each progressing
through a fixed six-stage workflow (planning, implementation, testing,
review, documentation, ready) with exactly one task active at a time.

Stage transitions are strictly forward-only and gated by per-stage
checklists whose required items may demand recorded evidence.`,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("taskflow %s\ncommit: %s\nbuilt:  %s\n", appVersion, appCommit, appDate)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
