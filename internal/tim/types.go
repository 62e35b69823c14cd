// Package tim holds the data model shared across the Agent Execution
// Core's components: the shapes that cross package boundaries so that
// no two packages invent their own copy of the same wire or domain
// type.
package tim

import "time"

// ExecutionMode selects which orchestration-prompt variant an
// Invocation renders and which failure-fatality rules apply.
type ExecutionMode string

const (
	ModeNormal ExecutionMode = "normal"
	ModeSimple ExecutionMode = "simple"
	ModeTDD    ExecutionMode = "tdd"
	ModeReview ExecutionMode = "review"
)

// CapturePolicy controls how much of an agent's stdout an Invocation
// retains in its result.
type CapturePolicy string

const (
	CaptureNone       CapturePolicy = "none"
	CaptureAll        CapturePolicy = "all"
	CaptureResultOnly CapturePolicy = "result_only"
)

// InputSourcePolicy names which of the three mutually exclusive routes
// (see internal/inputrouter) may feed an Invocation's stdin.
type InputSourcePolicy string

const (
	InputSourceNone     InputSourcePolicy = "none"
	InputSourceTerminal InputSourcePolicy = "terminal"
	InputSourceTunnel   InputSourcePolicy = "tunnel"
	InputSourceGUI      InputSourcePolicy = "gui"
	// InputSourceSinglePrompt writes the initial prompt, closes stdin
	// immediately, and takes no further follow-up input.
	InputSourceSinglePrompt InputSourcePolicy = "single_prompt"
)

// SubagentExecutor names which CLI the orchestration prompt instructs
// subagents to run under. The zero value and ExecutorDynamic are
// equivalent: the rendered prompt omits the `-x` flag and inserts an
// Executor Selection guidance block instead.
type SubagentExecutor string

const (
	ExecutorDynamic    SubagentExecutor = "dynamic"
	ExecutorCodexCLI   SubagentExecutor = "codex-cli"
	ExecutorClaudeCode SubagentExecutor = "claude-code"
)

// OrchestrationOptions is the caller-supplied configuration record
// consumed by the Orchestration-Prompt Renderer. PlanFilePath and
// ReviewExecutor are carried on the record but no component reads them.
type OrchestrationOptions struct {
	BatchMode                  bool
	PlanFilePath                string
	ReviewExecutor               string
	SimpleMode                  bool
	SubagentExecutor            SubagentExecutor
	DynamicSubagentInstructions string
}

// EffectiveSubagentExecutor returns the resolved executor, treating an
// absent value as ExecutorDynamic.
func (o OrchestrationOptions) EffectiveSubagentExecutor() SubagentExecutor {
	if o.SubagentExecutor == "" {
		return ExecutorDynamic
	}
	return o.SubagentExecutor
}

// InvocationConfig is the complete set of parameters a caller supplies
// to start one agent run.
type InvocationConfig struct {
	WorkingDir        string
	Mode              ExecutionMode
	Model             string
	InitialInactivity time.Duration
	SteadyInactivity  time.Duration
	Capture           CapturePolicy
	InputSource       InputSourcePolicy
	Options           OrchestrationOptions

	// AllowAllTools, when set, makes the Driver pass the
	// dangerous-skip-permissions flag instead of an allowlist and
	// disables the Permission Broker entirely.
	AllowAllTools bool

	// AllowedTools seed the session rule map before the first
	// permission request arrives; both lists are also passed to the
	// agent CLI. DisallowedTools do not enter the rule map.
	AllowedTools    []string
	DisallowedTools []string

	// AddDirs are extra directories passed via one --add-dir flag per
	// entry.
	AddDirs []string
}

// InvocationResult is what a caller receives when the result future
// resolves.
type InvocationResult struct {
	ExitCode          int
	Success           bool
	KilledByInactivity bool
	Stdout            []string
	Failure           *FailureReport
	Err               error
}

// AllowRule is either a bare tool-name rule (all invocations of that
// tool approved) or, for Bash, one prefix in the tool's prefix list.
// The rule map's "Bash" entry is either the allow-all sentinel or an
// ordered list of distinct
// prefixes, never both.
type AllowRule struct {
	Tool   string
	Prefix string // only meaningful when Tool == "Bash"; "" means allow-all
}

// RuleLifetime names how long an AllowRule persists.
type RuleLifetime string

const (
	LifetimeSession           RuleLifetime = "session"
	LifetimeProjectPersistent RuleLifetime = "project_persistent"
	LifetimeDefault           RuleLifetime = "default"
)

// PermissionRequest is a decoded line from the Broker socket.
type PermissionRequest struct {
	Type      string `json:"type"`
	RequestID string `json:"requestId"`
	ToolName  string `json:"tool_name"`
	Input     map[string]any `json:"input"`
}

// AskUserQuestionOption is one selectable option within a question.
type AskUserQuestionOption struct {
	Label       string `json:"label"`
	Description string `json:"description"`
}

// AskUserQuestion is one question in an AskUserQuestion tool's input.
type AskUserQuestion struct {
	Question   string                  `json:"question"`
	Header     string                  `json:"header"`
	Options    []AskUserQuestionOption `json:"options"`
	MultiSelect bool                   `json:"multiSelect"`
}

// PermissionResponse is the reply written back on the same connection
// that carried the request.
type PermissionResponse struct {
	Type         string         `json:"type"`
	RequestID    string         `json:"requestId"`
	Approved     bool           `json:"approved"`
	UpdatedInput map[string]any `json:"updatedInput,omitempty"`
}

// NewDenial builds the canonical deny reply for a request.
func NewDenial(requestID string) PermissionResponse {
	return PermissionResponse{Type: "permission_response", RequestID: requestID, Approved: false}
}

// NewApproval builds the canonical allow reply for a request.
func NewApproval(requestID string) PermissionResponse {
	return PermissionResponse{Type: "permission_response", RequestID: requestID, Approved: true}
}

// FailureReport is produced when an assistant's raw text contains a
// line beginning "FAILED:".
type FailureReport struct {
	Summary           string
	SourceAgent       string
	Requirements      []string
	Problems          []string
	PossibleSolutions []string
}

// FormattedMessage is the product of rendering one stream-json line.
type FormattedMessage struct {
	Type          string
	Rendered      string
	RawText       string
	FilePaths     []string
	Failed        bool
	FailedSummary string
	SubEvents     []SubEvent
}

// SubEvent is one of the Formatter's structured sub-events: file_write,
// todo_update, llm_tool_use, agent_session_end, llm_status. The
// Formatter emits no command_result sub-event.
type SubEvent struct {
	Kind string
	Data map[string]any
}
