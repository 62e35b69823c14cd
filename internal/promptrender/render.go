// Package promptrender implements the Orchestration-Prompt Renderer:
// a pure function building the wrapping instructions the
// orchestrator agent reads. It performs no I/O and holds no state —
// every call is independent, which is what lets tests exercise every
// OrchestrationOptions combination without a fixture.
package promptrender

import (
	"fmt"
	"strings"

	"github.com/tim-agents/tim/internal/tim"
)

// Section markers. Tests check for the presence/absence of these
// exact strings.
const (
	MarkerBatchMode         = "## Batch Mode"
	MarkerAvailableAgents   = "## Available Agents"
	MarkerExecutorSelection = "## Executor Selection"
	MarkerWorkflow          = "## Workflow"
	MarkerFailureProtocol   = "## Failure Protocol"
	MarkerProgressUpdates   = "## Progress Updates"
	MarkerGuidelines        = "## Important Guidelines"
)

const defaultDynamicInstructions = "Choose codex-cli or claude-code per subagent based on the nature of the task; prefer claude-code for broad refactors and codex-cli for narrow, well-specified edits."

// Render builds the complete orchestration prompt for one invocation.
// mode selects which of the three workflow variants (normal, simple,
// tdd) is used; contextText and planID are inserted verbatim where the
// spec calls for them.
func Render(contextText, planID string, mode tim.ExecutionMode, opts tim.OrchestrationOptions) string {
	var b strings.Builder

	writeHeader(&b, mode)
	b.WriteString("\n\n")
	b.WriteString(contextText)
	b.WriteString("\n\n")

	if opts.BatchMode {
		writeBatchMode(&b, planID)
		b.WriteString("\n\n")
	}

	writeAvailableAgents(&b, opts)
	b.WriteString("\n\n")

	writeWorkflow(&b, mode, opts.BatchMode, opts.SimpleMode)
	b.WriteString("\n\n")

	writeFailureProtocol(&b)
	b.WriteString("\n\n")

	writeProgressUpdates(&b, planID)
	b.WriteString("\n\n")

	writeGuidelines(&b)

	return b.String()
}

func writeHeader(b *strings.Builder, mode tim.ExecutionMode) {
	switch mode {
	case tim.ModeTDD:
		fmt.Fprintf(b, "# Orchestration Mode: TDD\n")
	case tim.ModeSimple:
		fmt.Fprintf(b, "# Orchestration Mode: Simple\n")
	default:
		fmt.Fprintf(b, "# Orchestration Mode: Normal\n")
	}
}

func writeBatchMode(b *strings.Builder, planID string) {
	fmt.Fprintf(b, "%s\n\n", MarkerBatchMode)
	fmt.Fprintf(b, "Update the plan file with a YAML snippet after each task:\n\n")
	fmt.Fprintf(b, "```yaml\ntask_id: %s\nstatus: in_progress\n```\n\n", planID)
	fmt.Fprintf(b, "Select 2-5 related tasks from the plan before starting implementation.\n")
}

func writeAvailableAgents(b *strings.Builder, opts tim.OrchestrationOptions) {
	fmt.Fprintf(b, "%s\n\n", MarkerAvailableAgents)

	execFlag := ""
	switch opts.EffectiveSubagentExecutor() {
	case tim.ExecutorCodexCLI:
		execFlag = " -x codex-cli"
	case tim.ExecutorClaudeCode:
		execFlag = " -x claude-code"
	}

	fmt.Fprintf(b, "- `tim subagent implement%s --timeout 30m \"<task>\"`\n", execFlag)
	fmt.Fprintf(b, "- `tim subagent test%s --timeout 30m \"<task>\"`\n", execFlag)
	fmt.Fprintf(b, "- `tim subagent review%s --timeout 30m \"<task>\"`\n", execFlag)

	if execFlag == "" {
		b.WriteString("\n")
		fmt.Fprintf(b, "%s\n\n", MarkerExecutorSelection)
		instructions := opts.DynamicSubagentInstructions
		if instructions == "" {
			instructions = defaultDynamicInstructions
		}
		b.WriteString(instructions)
	}
}

func writeWorkflow(b *strings.Builder, mode tim.ExecutionMode, batchMode, simpleMode bool) {
	fmt.Fprintf(b, "%s\n\n", MarkerWorkflow)

	var phases []string
	if batchMode {
		phases = append(phases, "Task Selection")
	}
	if mode == tim.ModeTDD {
		phases = append(phases, "TDD Test Phase")
	}
	phases = append(phases, "Implementation")

	switch {
	case mode == tim.ModeSimple, mode == tim.ModeTDD && simpleMode:
		phases = append(phases, "Verification")
	default:
		phases = append(phases, "Testing", "Review")
	}
	phases = append(phases, "Notes", "Iteration")

	for i, phase := range phases {
		fmt.Fprintf(b, "%d. %s\n", i+1, phase)
	}
}

func writeFailureProtocol(b *strings.Builder) {
	fmt.Fprintf(b, "%s\n\n", MarkerFailureProtocol)
	b.WriteString("If any subagent's output contains a line beginning `FAILED:`, halt orchestration immediately. ")
	b.WriteString("Propagate it as:\n\n")
	b.WriteString("```\nFAILED: <agent> reported a failure — <summary>\n<subagent's report verbatim>\n```\n")
}

func writeProgressUpdates(b *strings.Builder, planID string) {
	fmt.Fprintf(b, "%s\n\n", MarkerProgressUpdates)
	fmt.Fprintf(b, "Update @%s with these subsections after every iteration:\n\n", planID)
	for _, sub := range []string{
		"Current State", "Completed", "Remaining", "Next Iteration Guidance",
		"Decisions", "Lessons Learned", "Risks",
	} {
		fmt.Fprintf(b, "- %s\n", sub)
	}
}

func writeGuidelines(b *strings.Builder) {
	fmt.Fprintf(b, "%s\n\n", MarkerGuidelines)
	b.WriteString("Never implement, test, or review directly — delegate every step through `tim subagent ...`. ")
	b.WriteString("Give subagents a timeout of at least 30 minutes. ")
	b.WriteString("For inputs larger than roughly 50KB, pass `--input-file <path>` instead of inlining the text.")
}
