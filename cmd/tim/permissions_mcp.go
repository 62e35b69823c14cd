package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tim-agents/tim/internal/mcpbridge"
)

var permissionsMCPCmd = &cobra.Command{
	Use:   "permissions-mcp <broker-socket-path>",
	Short: "Run the permissions-mcp stdio bridge in-process",
	Long: `permissions-mcp runs the same stdio MCP bridge as the standalone
cmd/permissions-mcp binary, for callers that prefer to exec this binary
with a subcommand rather than a separate executable.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()
		return mcpbridge.Serve(ctx, args[0])
	},
}

func init() {
	agentCmd.AddCommand(permissionsMCPCmd)
}
