package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/trkhq/trk/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP stdio server for agent integration",
	Long: `Start an MCP (Model Context Protocol) server on stdio.

This lets agent clients query and mutate the issue collection
natively. Configure with:

  {
    "mcpServers": {
      "trk": { "command": "trk", "args": ["mcp"] }
    }
  }

Available tools: trk_list_issues, trk_create_issue, trk_update_issue,
trk_archive_issue, trk_delete_issue, trk_import_feedback`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := getCollection()
		if err != nil {
			return err
		}

		srv := mcp.NewServer(c, newAIClient())
		return srv.ServeStdio(context.Background())
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
