// Package agentproc implements the Subprocess Driver: it
// launches the agent CLI as a child process, streams its stdout line
// by line through a formatter callback, enforces the two-threshold
// inactivity policy, and resolves with the run's exit status.
package agentproc

import (
	"time"

	"github.com/tim-agents/tim/internal/tim"
)

// Well-known environment variable names for the child process.
// EnvPassAPIKey is not set or read by the Driver; ANTHROPIC_API_KEY is
// passed through only when Config.PassAPIKey is true.
const (
	EnvTunnelSocket     = "TIM_TUNNEL_SOCKET"
	EnvExecutorIdentity = "TIM_EXECUTOR_ID"
	EnvNotifySuppress   = "TIM_DISABLE_NOTIFICATIONS"
	EnvPassAPIKey       = "TIM_PASS_API_KEY"
	EnvSessionPersist   = "CLAUDE_CODE_SESSION_ID" // cleared: each Invocation is a fresh session
)

const permissionPromptTool = "mcp__permissions__approval_prompt"

var validModels = map[string]struct{}{"haiku": {}, "sonnet": {}, "opus": {}}

const defaultModel = "sonnet"

// Config configures one agent spawn.
type Config struct {
	WorkingDir string
	Mode       tim.ExecutionMode
	Model      string

	MCPConfigPath string
	AddDirs       []string

	AllowAllTools   bool
	AllowedTools    []string
	DisallowedTools []string

	TunnelSocketPath string
	ExecutorID       string
	PassAPIKey       bool

	InitialInactivity time.Duration
	SteadyInactivity  time.Duration

	// ReviewSchemaPath, when Mode == ModeReview, is passed as the
	// JSON-schema flag alongside an explicit --print argument.
	ReviewSchemaPath    string
	ReviewPrintArgument string
}

// resolveModel validates Model against haiku|sonnet|opus, falling back
// to the default when unrecognized or absent.
func (c Config) resolveModel() string {
	if _, ok := validModels[c.Model]; ok {
		return c.Model
	}
	return defaultModel
}

func (c Config) initialInactivity() time.Duration {
	if c.InitialInactivity > 0 {
		return c.InitialInactivity
	}
	return 2 * time.Minute
}

func (c Config) steadyInactivity() time.Duration {
	if c.SteadyInactivity > 0 {
		return c.SteadyInactivity
	}
	return 30 * time.Minute
}
