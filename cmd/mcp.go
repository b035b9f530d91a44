package cmd

import (
	"github.com/spf13/cobra"

	"github.com/joescharf/marie/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP stdio server",
	Long: `Start an MCP (Model Context Protocol) server on stdio.

Every marie command is exposed as a tool named marie_<command>, taking the
command's JSON arguments. Configure an MCP client with:

  {
    "mcpServers": {
      "marie": { "command": "marie", "args": ["mcp"] }
    }
  }

Logs go to stderr; stdout carries the protocol. The HTTP server also
serves MCP at /mcp.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		d, err := getDispatcher(ctx, true)
		if err != nil {
			return err
		}
		return mcp.NewServer(d, buildVersion, getLogger()).ServeStdio(ctx)
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
