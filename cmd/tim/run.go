package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tim-agents/tim/internal/config"
	"github.com/tim-agents/tim/internal/invocation"
	"github.com/tim-agents/tim/internal/logging"
	"github.com/tim-agents/tim/internal/permission"
	"github.com/tim-agents/tim/internal/sharedstore"
	"github.com/tim-agents/tim/internal/tim"
)

var runFlags struct {
	contextText   string
	planID        string
	mode          string
	model         string
	inputSource   string
	allowAllTools bool
	allowedTools  []string
	disallowTools []string
	addDirs       []string
	tunnel        bool
	executor      string
	batchMode     bool
	simpleMode    bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Render the orchestration prompt, spawn the agent, and stream its output",
	Long: `run is the entire Agent Execution Core wired together: it renders
the orchestration prompt for --context, starts the Permission Broker
and (if requested) the tunnel forwarder, spawns the agent CLI pointed
at both, streams its formatted stdout to this process's stdout, and
exits with the agent's exit code.`,
	RunE: runAgentRun,
}

func init() {
	runCmd.Flags().StringVar(&runFlags.contextText, "context", "", "context text inserted into the orchestration prompt (required)")
	runCmd.Flags().StringVar(&runFlags.planID, "plan-id", "", "plan identifier inserted into the orchestration prompt")
	runCmd.Flags().StringVar(&runFlags.mode, "mode", "normal", "execution mode: normal, simple, tdd, review")
	runCmd.Flags().StringVar(&runFlags.model, "model", "", "model: haiku, sonnet, or opus (default: sonnet)")
	runCmd.Flags().StringVar(&runFlags.inputSource, "input-source", "single_prompt", "input source: single_prompt, terminal, tunnel, gui")
	runCmd.Flags().BoolVar(&runFlags.allowAllTools, "allow-all-tools", false, "skip the Permission Broker entirely (dangerous)")
	runCmd.Flags().StringSliceVar(&runFlags.allowedTools, "allowed-tools", nil, "tool names to seed the session allow-rule map with")
	runCmd.Flags().StringSliceVar(&runFlags.disallowTools, "disallowed-tools", nil, "tool names to always deny")
	runCmd.Flags().StringSliceVar(&runFlags.addDirs, "add-dir", nil, "extra directory the agent may access (repeatable)")
	runCmd.Flags().BoolVar(&runFlags.tunnel, "tunnel", false, "start the tunnel/output forwarder sidecar")
	runCmd.Flags().StringVar(&runFlags.executor, "subagent-executor", "", "subagent executor: dynamic, codex-cli, claude-code")
	runCmd.Flags().BoolVar(&runFlags.batchMode, "batch", false, "render the prompt's Batch Mode section")
	runCmd.Flags().BoolVar(&runFlags.simpleMode, "simple", false, "use the verifier workflow instead of tester+review (simple mode, or within tdd mode)")
	_ = runCmd.MarkFlagRequired("context")
	agentCmd.AddCommand(runCmd)
}

func runAgentRun(cmd *cobra.Command, args []string) error {
	logging.Configure(flagJSONLogs, flagLogLevel == "debug")
	logger := logging.Default()
	defer logger.Sync()

	rt, err := config.LoadRuntime()
	if err != nil {
		return fmt.Errorf("load runtime config: %w", err)
	}

	workdir := flagWorkdir
	if workdir == "" {
		if cwd, err := os.Getwd(); err == nil {
			workdir = cwd
		}
	}

	mode := tim.ExecutionMode(runFlags.mode)
	inputSource := tim.InputSourcePolicy(runFlags.inputSource)

	cfg := tim.InvocationConfig{
		WorkingDir:      workdir,
		Mode:            mode,
		Model:           runFlags.model,
		Capture:         tim.CaptureNone,
		InputSource:     inputSource,
		AllowAllTools:   runFlags.allowAllTools || rt.AllowAllTools,
		AllowedTools:    runFlags.allowedTools,
		DisallowedTools: runFlags.disallowTools,
		AddDirs:         runFlags.addDirs,
		InitialInactivity: rt.InitialInactivity,
		SteadyInactivity:  rt.SteadyInactivity,
		Options: tim.OrchestrationOptions{
			BatchMode:        runFlags.batchMode,
			SimpleMode:       runFlags.simpleMode,
			SubagentExecutor: tim.SubagentExecutor(runFlags.executor),
		},
	}

	sharedStorePath, err := config.SharedStorePath()
	if err != nil {
		logger.Warn("failed to resolve shared-permissions store path; Always-Allow rules will not persist across worktrees", zap.Error(err))
	}
	var sharedStore permission.RuleLister
	if sharedStorePath != "" {
		if store, err := sharedstore.Open(sharedStorePath); err != nil {
			logger.Warn("failed to open shared-permissions store", zap.Error(err))
		} else {
			defer store.Close()
			sharedStore = store
		}
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	opts := invocation.Options{
		Config:               cfg,
		WriteMCPConfig:       writeMCPConfig,
		SharedStore:          sharedStore,
		TunnelEnabled:        runFlags.tunnel,
		ContextText:          runFlags.contextText,
		PlanID:               runFlags.planID,
		Logger:               logger,
		PromptTimeout:        rt.PromptTimeout,
		PromptTimeoutDefault: rt.PromptTimeoutDefault,
		AutoApproveDeletions: rt.AutoApproveDeletions,
		OnMessages:           printMessages,
	}

	inv := invocation.New(opts)
	result, err := inv.Run(ctx)
	if err != nil {
		return err
	}
	if result.Err != nil {
		fmt.Fprintf(os.Stderr, "%s agent run failed: %v\n", color.RedString("✗"), result.Err)
	}
	if result.Failure != nil {
		fmt.Fprintf(os.Stderr, "%s %s\n", color.YellowString("FAILED:"), result.Failure.Summary)
	}
	os.Exit(result.ExitCode)
	return nil
}

func printMessages(batch []tim.FormattedMessage) {
	for _, msg := range batch {
		if msg.Rendered != "" {
			fmt.Println(msg.Rendered)
		}
	}
}

// mcpConfig mirrors the agent CLI's MCP config file contract:
// `{ "mcpServers": { "permissions": { "type":"stdio",
// "command": <permissions-mcp-binary>, "args": [ <socket-path> ] } } }`.
type mcpConfig struct {
	MCPServers map[string]mcpServerEntry `json:"mcpServers"`
}

type mcpServerEntry struct {
	Type    string   `json:"type"`
	Command string   `json:"command"`
	Args    []string `json:"args"`
}

// writeMCPConfig resolves the permissions-mcp binary (alongside this
// executable, falling back to PATH lookup) and writes the config JSON
// the agent CLI's --mcp-config flag points at.
func writeMCPConfig(tempDir, socketPath string) (string, error) {
	command, err := resolvePermissionsMCPBinary()
	if err != nil {
		return "", err
	}
	cfg := mcpConfig{MCPServers: map[string]mcpServerEntry{
		"permissions": {Type: "stdio", Command: command, Args: []string{socketPath}},
	}}
	data, err := json.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("encode mcp config: %w", err)
	}
	path := filepath.Join(tempDir, "mcp-config.json")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("write mcp config: %w", err)
	}
	return path, nil
}

func resolvePermissionsMCPBinary() (string, error) {
	self, err := os.Executable()
	if err == nil {
		sibling := filepath.Join(filepath.Dir(self), "permissions-mcp")
		if info, statErr := os.Stat(sibling); statErr == nil && !info.IsDir() {
			return sibling, nil
		}
	}
	if path, lookErr := exec.LookPath("permissions-mcp"); lookErr == nil {
		return path, nil
	}
	return "", fmt.Errorf("cannot locate permissions-mcp binary (tried alongside %s and $PATH)", strings.TrimSpace(self))
}
