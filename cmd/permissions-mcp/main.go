// Command permissions-mcp is the agent CLI's configured permission-prompt
// tool: it speaks MCP over stdin/stdout to the agent process and forwards
// every approval_prompt call onto a Permission Broker's Unix-domain
// socket, whose path is given as the single command-line argument.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/tim-agents/tim/internal/mcpbridge"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: permissions-mcp <broker-socket-path>")
		os.Exit(1)
	}
	socketPath := os.Args[1]

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := mcpbridge.Serve(ctx, socketPath); err != nil {
		fmt.Fprintf(os.Stderr, "permissions-mcp: %v\n", err)
		os.Exit(1)
	}
}
