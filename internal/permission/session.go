package permission

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/fatih/color"
	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"
)

const maxRenderedInputChars = 500

// choice is one of the four answers to the interactive permission
// prompt.
type choice string

const (
	choiceAllow          choice = "allow"
	choiceAllowSession   choice = "allow_session"
	choiceAlwaysAllow    choice = "always_allow"
	choiceDisallow       choice = "disallow"
)

// terminalSession serializes all interactive prompts (AskUserQuestion
// and the four-choice prompt) across every broker connection:
// concurrent prompts from different connections queue on ts.mu so the
// terminal never hosts two prompts at once, FIFO by arrival.
type terminalSession struct {
	mu          sync.Mutex
	bellLimiter *rate.Limiter
}

func newTerminalSession() *terminalSession {
	return &terminalSession{
		// At most one bell per 500ms: a burst of queued prompts
		// shouldn't turn into a klaxon.
		bellLimiter: rate.NewLimiter(rate.Every(500*time.Millisecond), 1),
	}
}

// ring emits a terminal bell, throttled.
func (ts *terminalSession) ring() {
	if ts.bellLimiter.Allow() {
		fmt.Fprint(os.Stderr, "\a")
	}
}

// promptChoice renders the truncated input, rings the bell, and asks
// the user to pick one of the four choices, honoring timeout and its
// configured default action.
func (ts *terminalSession) promptChoice(ctx context.Context, toolName string, input map[string]any, timeout time.Duration, timeoutDefault string) (choice, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	ts.ring()
	renderPromptHeader(toolName, input)

	var selected string
	field := huh.NewSelect[string]().
		Title(fmt.Sprintf("Allow %s?", toolName)).
		Options(
			huh.NewOption("Allow", string(choiceAllow)),
			huh.NewOption("Allow for Session", string(choiceAllowSession)),
			huh.NewOption("Always Allow", string(choiceAlwaysAllow)),
			huh.NewOption("Disallow", string(choiceDisallow)),
		).
		Value(&selected)

	promptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := huh.NewForm(huh.NewGroup(field)).RunWithContext(promptCtx)
	if err != nil {
		if timeoutDefault == "yes" {
			return choiceAllow, nil
		}
		return choiceDisallow, nil
	}
	return choice(selected), nil
}

// promptPrefix runs the secondary prefix-selection prompt.
func (ts *terminalSession) promptPrefix(ctx context.Context, candidates []string) (string, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if len(candidates) == 0 {
		return "", fmt.Errorf("permission: no candidate prefixes")
	}
	if len(candidates) == 1 {
		return candidates[0], nil
	}

	options := make([]huh.Option[string], len(candidates))
	for i, c := range candidates {
		options[i] = huh.NewOption(c, c)
	}
	var selected string
	field := huh.NewSelect[string]().
		Title("Persist which prefix?").
		Options(options...).
		Value(&selected)

	if err := huh.NewForm(huh.NewGroup(field)).RunWithContext(ctx); err != nil {
		return candidates[0], err
	}
	return selected, nil
}

// renderPromptHeader prints the tool name and a truncated YAML
// rendering of its input.
func renderPromptHeader(toolName string, input map[string]any) {
	yellow := color.New(color.FgYellow, color.Bold).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()

	fmt.Fprintf(os.Stderr, "\n%s %s\n", yellow("Permission request:"), cyan(toolName))

	block, err := yaml.Marshal(input)
	rendered := string(block)
	if err != nil {
		rendered = fmt.Sprintf("%v", input)
	}
	if len(rendered) > maxRenderedInputChars {
		rendered = rendered[:maxRenderedInputChars] + "\n... (truncated)"
	}
	fmt.Fprintln(os.Stderr, rendered)
}
