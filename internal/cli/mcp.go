package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/valter-silva-au/taskflow/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the MCP server on stdio",
	Long: `Serve taskflow operations over the Model Context Protocol on
stdin/stdout, exposing create_task, get_current_task, update_task,
advance_stage, and list_tasks as tools.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Orchestrator == nil || Store == nil {
			return fmt.Errorf("orchestrator not initialized")
		}
		server := mcp.NewServer(Orchestrator, Store, appVersion)
		return server.Run(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
