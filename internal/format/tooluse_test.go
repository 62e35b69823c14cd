package format

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustRawInput(t *testing.T, v map[string]any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

func TestRenderToolUseWrite(t *testing.T) {
	item := contentItem{Name: "Write", Input: mustRawInput(t, map[string]any{"path": "a.go", "content": "line1\nline2\n"})}
	rendered, paths, sub := renderToolUse(item)
	assert.Contains(t, rendered, "a.go")
	assert.Contains(t, rendered, "3 lines")
	assert.Equal(t, []string{"a.go"}, paths)
	require.NotNil(t, sub)
	assert.Equal(t, "file_write", sub.Kind)
}

func TestRenderToolUseEditRendersDiff(t *testing.T) {
	item := contentItem{Name: "Edit", Input: mustRawInput(t, map[string]any{"path": "b.go", "old_str": "foo", "new_str": "bar"})}
	rendered, paths, sub := renderToolUse(item)
	assert.Contains(t, rendered, "- foo")
	assert.Contains(t, rendered, "+ bar")
	assert.Equal(t, []string{"b.go"}, paths)
	assert.Equal(t, "edit", sub.Data["op"])
}

func TestRenderToolUseTodoWrite(t *testing.T) {
	item := contentItem{Name: "TodoWrite", Input: mustRawInput(t, map[string]any{
		"todos": []any{
			map[string]any{"status": "completed", "content": "done thing"},
			map[string]any{"status": "in_progress", "content": "doing thing"},
			map[string]any{"status": "pending", "content": "todo thing"},
		},
	})}
	rendered, _, sub := renderToolUse(item)
	assert.Contains(t, rendered, "[x] done thing")
	assert.Contains(t, rendered, "[~] doing thing")
	assert.Contains(t, rendered, "[ ] todo thing")
	assert.Equal(t, "todo_update", sub.Kind)
}

func TestRenderToolUseGenericFallback(t *testing.T) {
	item := contentItem{Name: "WebFetch", Input: mustRawInput(t, map[string]any{"url": "https://example.com"})}
	rendered, paths, sub := renderToolUse(item)
	assert.Contains(t, rendered, "WebFetch")
	assert.Nil(t, paths)
	assert.Equal(t, "llm_tool_use", sub.Kind)
}

func TestRenderToolResultReadCountsLines(t *testing.T) {
	content, _ := json.Marshal("line1\nline2\nline3")
	rendered := renderToolResult("Read", contentItem{Content: content})
	assert.Contains(t, rendered, "3 lines")
}

func TestRenderToolResultBashSplitsStdoutStderr(t *testing.T) {
	inner, _ := json.Marshal(map[string]string{"stdout": "ok\n", "stderr": "warn\n"})
	content, _ := json.Marshal(string(inner))
	rendered := renderToolResult("Bash", contentItem{Content: content})
	assert.Contains(t, rendered, "stdout:")
	assert.Contains(t, rendered, "ok")
	assert.Contains(t, rendered, "stderr:")
	assert.Contains(t, rendered, "warn")
}

func TestRenderToolResultGlobTruncatesLongOutput(t *testing.T) {
	var lines string
	for i := 0; i < 20; i++ {
		lines += "file.go\n"
	}
	content, _ := json.Marshal(lines)
	rendered := renderToolResult("Glob", contentItem{Content: content})
	assert.Contains(t, rendered, "more lines")
}

func TestCountLines(t *testing.T) {
	assert.Equal(t, 0, countLines(""))
	assert.Equal(t, 1, countLines("one line"))
	assert.Equal(t, 3, countLines("a\nb\nc"))
}

func TestTruncateLinesNoTruncationNeeded(t *testing.T) {
	assert.Equal(t, "a\nb", truncateLines("a\nb", 10))
}

func TestSplitStdoutStderrPlainTextFallback(t *testing.T) {
	stdout, stderr := splitStdoutStderr("plain output, not json")
	assert.Equal(t, "plain output, not json", stdout)
	assert.Equal(t, "", stderr)
}
