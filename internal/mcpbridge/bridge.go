// Package mcpbridge implements the permissions-mcp stdio bridge: a
// tiny MCP server, speaking stdio to the agent CLI,
// that exposes the single `approval_prompt` tool and forwards every
// call verbatim onto a Permission Broker's Unix-domain socket,
// returning the broker's reply as the tool result.
package mcpbridge

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/tim-agents/tim/internal/tim"
)

// dialTimeout bounds how long the bridge waits to connect to the
// broker socket; the broker is expected to already be listening by the
// time the agent CLI starts (the Invocation starts it before spawning).
const dialTimeout = 5 * time.Second

// New builds the MCP server exposing approval_prompt, wired to dial
// socketPath for every call.
func New(socketPath string) *server.MCPServer {
	s := server.NewMCPServer("tim-permissions", "1.0.0", server.WithToolCapabilities(false))
	s.AddTool(
		mcp.NewTool("approval_prompt",
			mcp.WithDescription("Request permission to use a tool; forwarded to tim's Permission Broker. "+
				"Pass the tool's own input parameters as the \"input\" argument."),
			mcp.WithString("tool_name", mcp.Required(), mcp.Description("Name of the tool requesting permission")),
		),
		approvalHandler(socketPath),
	)
	return s
}

// Serve runs the bridge over stdio until ctx is cancelled or stdin
// closes.
func Serve(ctx context.Context, socketPath string) error {
	return server.NewStdioServer(New(socketPath)).Listen(ctx, os.Stdin, os.Stdout)
}

func approvalHandler(socketPath string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		toolName := req.GetString("tool_name", "")
		if toolName == "" {
			return mcp.NewToolResultError("tool_name is required"), nil
		}
		args := req.GetArguments()
		input, _ := args["input"].(map[string]any)

		resp, err := forward(ctx, socketPath, toolName, input)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("permission broker unreachable: %v", err)), nil
		}

		body, err := json.Marshal(resp)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("encode broker response: %v", err)), nil
		}
		return mcp.NewToolResultText(string(body)), nil
	}
}

// forward dials the broker socket, writes one newline-delimited
// permission request, and reads back the correlated response — the
// client side of the broker's per-connection protocol.
func forward(ctx context.Context, socketPath, toolName string, input map[string]any) (tim.PermissionResponse, error) {
	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "unix", socketPath)
	if err != nil {
		return tim.PermissionResponse{}, fmt.Errorf("mcpbridge: dial %s: %w", socketPath, err)
	}
	defer conn.Close()

	req := tim.PermissionRequest{
		Type:      "permission_request",
		RequestID: uuid.NewString(),
		ToolName:  toolName,
		Input:     input,
	}
	line, err := json.Marshal(req)
	if err != nil {
		return tim.PermissionResponse{}, fmt.Errorf("mcpbridge: encode request: %w", err)
	}
	line = append(line, '\n')
	if _, err := conn.Write(line); err != nil {
		return tim.PermissionResponse{}, fmt.Errorf("mcpbridge: write request: %w", err)
	}

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 4096), 1024*1024)
	for scanner.Scan() {
		var resp tim.PermissionResponse
		if err := json.Unmarshal(scanner.Bytes(), &resp); err != nil {
			continue // malformed line: skip, matching the broker's own framing tolerance
		}
		if resp.RequestID != req.RequestID {
			continue
		}
		return resp, nil
	}
	if err := scanner.Err(); err != nil {
		return tim.PermissionResponse{}, fmt.Errorf("mcpbridge: read response: %w", err)
	}
	return tim.PermissionResponse{}, fmt.Errorf("mcpbridge: broker closed connection without a matching reply")
}
