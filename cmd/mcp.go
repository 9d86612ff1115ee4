package cmd

import (
	"github.com/audiolibrelab/voicediary/internal/mcp"

	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve diary tools over MCP stdio",
	Long: `Run a Model Context Protocol server on stdin/stdout exposing list_entries,
get_entry and generate_insight to agents. Logs go to stderr.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openService(cmd.Context())
		if err != nil {
			return err
		}
		defer svc.Close()

		return mcp.Serve(svc, version)
	},
}
