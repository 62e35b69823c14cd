package format

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"

	"github.com/tim-agents/tim/internal/tim"
)

const maxGenericLines = 10

// renderToolUse renders one tool_use content item, returning its
// display string, any file paths it touched (for
// TrackedFiles), and a structured sub-event when the tool is one of
// the recognized kinds.
func renderToolUse(item contentItem) (rendered string, filePaths []string, sub *tim.SubEvent) {
	var input map[string]any
	_ = json.Unmarshal(item.Input, &input)

	switch item.Name {
	case "Write":
		path, _ := input["path"].(string)
		lines := countLines(stringField(input, "content"))
		rendered = fmt.Sprintf("%s %s (%d lines)", label("Write"), path, lines)
		if path != "" {
			filePaths = append(filePaths, path)
		}
		sub = &tim.SubEvent{Kind: "file_write", Data: map[string]any{"path": path, "lines": lines, "op": "write"}}

	case "Edit":
		path, _ := input["path"].(string)
		oldStr := stringField(input, "old_str")
		newStr := stringField(input, "new_str")
		rendered = fmt.Sprintf("%s %s\n%s", label("Edit"), path, renderUnifiedDiff(oldStr, newStr))
		if path != "" {
			filePaths = append(filePaths, path)
		}
		sub = &tim.SubEvent{Kind: "file_write", Data: map[string]any{"path": path, "op": "edit"}}

	case "MultiEdit":
		path, _ := input["path"].(string)
		block, _ := yaml.Marshal(input)
		rendered = fmt.Sprintf("%s %s\n%s", label("MultiEdit"), path, string(block))
		if path != "" {
			filePaths = append(filePaths, path)
		}
		sub = &tim.SubEvent{Kind: "file_write", Data: map[string]any{"path": path, "op": "multi_edit"}}

	case "TodoWrite":
		rendered = renderTodoList(input)
		sub = &tim.SubEvent{Kind: "todo_update", Data: map[string]any{"todos": input["todos"]}}

	case "Task":
		red := color.New(color.FgRed).SprintFunc()
		rendered = red(fmt.Sprintf("Task: %v", input))
		sub = &tim.SubEvent{Kind: "llm_tool_use", Data: map[string]any{"tool": "Task", "input": input}}

	default:
		block, err := yaml.Marshal(input)
		body := string(block)
		if err != nil {
			body = fmt.Sprintf("%v", input)
		}
		rendered = fmt.Sprintf("%s\n%s", label(item.Name), body)
		sub = &tim.SubEvent{Kind: "llm_tool_use", Data: map[string]any{"tool": item.Name, "input": input}}
	}
	return rendered, filePaths, sub
}

// renderToolResult renders a tool_result item, using name (looked up
// from the Formatter's tool_use_id cache) to pick specialized
// rendering.
func renderToolResult(name string, item contentItem) string {
	text := resultText(item.Content)

	switch name {
	case "Read":
		return fmt.Sprintf("%s (%d lines)", label("Read result"), countLines(text))
	case "Bash":
		return renderBashResult(text)
	case "LS", "Glob":
		return truncateLines(text, maxGenericLines)
	default:
		var v any
		if err := json.Unmarshal([]byte(text), &v); err == nil {
			block, _ := yaml.Marshal(v)
			return string(block)
		}
		return text
	}
}

func resultText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func renderBashResult(text string) string {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	stdout, stderr := splitStdoutStderr(text)
	var b strings.Builder
	if stdout != "" {
		b.WriteString(green("stdout:") + "\n" + strings.TrimSpace(stdout) + "\n")
	}
	if stderr != "" {
		b.WriteString(red("stderr:") + "\n" + strings.TrimSpace(stderr))
	}
	return b.String()
}

// splitStdoutStderr expects a combined result of the shape the agent
// CLI emits: a JSON object with "stdout"/"stderr" keys, or else plain
// text treated entirely as stdout.
func splitStdoutStderr(text string) (stdout, stderr string) {
	var obj struct {
		Stdout string `json:"stdout"`
		Stderr string `json:"stderr"`
	}
	if err := json.Unmarshal([]byte(text), &obj); err == nil && (obj.Stdout != "" || obj.Stderr != "") {
		return obj.Stdout, obj.Stderr
	}
	return text, ""
}

func renderUnifiedDiff(oldStr, newStr string) string {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	var b strings.Builder
	for _, line := range strings.Split(oldStr, "\n") {
		b.WriteString(red("- "+line) + "\n")
	}
	for _, line := range strings.Split(newStr, "\n") {
		b.WriteString(green("+ "+line) + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderTodoList(input map[string]any) string {
	todos, _ := input["todos"].([]any)
	var b strings.Builder
	b.WriteString(label("Todos"))
	for _, t := range todos {
		m, ok := t.(map[string]any)
		if !ok {
			continue
		}
		status, _ := m["status"].(string)
		content, _ := m["content"].(string)
		mark := "[ ]"
		switch status {
		case "completed":
			mark = "[x]"
		case "in_progress":
			mark = "[~]"
		}
		b.WriteString(fmt.Sprintf("\n  %s %s", mark, content))
	}
	return b.String()
}

func label(s string) string {
	return color.New(color.FgMagenta, color.Bold).Sprint(s + ":")
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func countLines(s string) int {
	if s == "" {
		return 0
	}
	return strings.Count(s, "\n") + 1
}

func truncateLines(s string, max int) string {
	lines := strings.Split(s, "\n")
	if len(lines) <= max {
		return s
	}
	return strings.Join(lines[:max], "\n") + fmt.Sprintf("\n... (%d more lines)", len(lines)-max)
}
