package agentproc

import (
	"os"
	"os/exec"
	"strings"

	"github.com/tim-agents/tim/internal/tim"
)

// buildCommand composes the claude CLI invocation:
// streaming-JSON flags, the MCP config pointing at the Permission
// Broker, an allowlist or dangerous-skip flag, optional disallowlist,
// add-dir flags, a validated model flag, and — in review mode — a
// JSON-schema flag plus an explicit print argument.
func buildCommand(cfg Config, prompt string) *exec.Cmd {
	args := []string{"--print", "--verbose", "--output-format", "stream-json", "--input-format", "stream-json"}

	args = append(args, "--model", cfg.resolveModel())
	args = append(args, "--mcp-config", cfg.MCPConfigPath)
	args = append(args, "--permission-prompt-tool", permissionPromptTool)

	if cfg.AllowAllTools {
		args = append(args, "--dangerously-skip-permissions")
	} else if len(cfg.AllowedTools) > 0 {
		args = append(args, "--allowedTools", strings.Join(cfg.AllowedTools, ","))
	}
	if len(cfg.DisallowedTools) > 0 {
		args = append(args, "--disallowedTools", strings.Join(cfg.DisallowedTools, ","))
	}
	for _, dir := range cfg.AddDirs {
		args = append(args, "--add-dir", dir)
	}

	if cfg.Mode == tim.ModeReview {
		if cfg.ReviewSchemaPath != "" {
			args = append(args, "--output-schema", cfg.ReviewSchemaPath)
		}
		args = append(args, "--print", cfg.ReviewPrintArgument)
	}

	cmd := exec.Command("claude", args...)
	cmd.Dir = cfg.WorkingDir
	cmd.Env = buildEnv(cfg)
	return cmd
}

// buildEnv composes the child's environment: the parent's, plus the
// well-known variables the Driver contributes.
func buildEnv(cfg Config) []string {
	env := append([]string(nil), os.Environ()...)
	env = append(env, EnvNotifySuppress+"=1")
	env = append(env, EnvSessionPersist+"=")

	if cfg.ExecutorID != "" {
		env = append(env, EnvExecutorIdentity+"="+cfg.ExecutorID)
	}
	if cfg.TunnelSocketPath != "" {
		env = append(env, EnvTunnelSocket+"="+cfg.TunnelSocketPath)
	}
	if !cfg.PassAPIKey {
		env = filterEnv(env, "ANTHROPIC_API_KEY")
	}
	return env
}

func filterEnv(env []string, key string) []string {
	prefix := key + "="
	out := env[:0]
	for _, kv := range env {
		if strings.HasPrefix(kv, prefix) {
			continue
		}
		out = append(out, kv)
	}
	return out
}
