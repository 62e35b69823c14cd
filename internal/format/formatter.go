// Package format implements the Message Formatter & Failure Detector:
// it turns each stream-json line from the agent's stdout
// into a typed tim.FormattedMessage and, for assistant/user messages,
// scans the concatenated raw text for a FAILED: report.
//
// The Formatter does no I/O — stdout parsing must never block on user
// interaction — and it is a value, not a singleton: its
// tool_use_id -> tool_name cache is bound to one Invocation and reset
// at construction, not module-global (see design notes).
package format

import (
	"encoding/json"
	"strconv"
	"strings"
	"sync"

	"github.com/fatih/color"

	"github.com/tim-agents/tim/internal/tim"
)

// Formatter renders stream-json lines for a single Invocation.
type Formatter struct {
	mu       sync.Mutex
	toolName map[string]string // tool_use_id -> tool name
}

// New returns a Formatter with an empty tool_use_id cache.
func New() *Formatter {
	return &Formatter{toolName: make(map[string]string)}
}

// rawMessage is the envelope shared by every stream-json line; fields
// not relevant to a given type are simply left zero.
type rawMessage struct {
	Type    string          `json:"type"`
	Subtype string          `json:"subtype"`
	Message json.RawMessage `json:"message"`

	SessionID string   `json:"session_id"`
	Tools     []string `json:"tools"`
	MCPServer []string `json:"mcp_servers"`

	Status json.RawMessage `json:"status"`

	CostUSD    float64 `json:"total_cost_usd"`
	DurationMS int64   `json:"duration_ms"`
	NumTurns   int     `json:"num_turns"`
}

type innerMessage struct {
	Content []contentItem `json:"content"`
}

type contentItem struct {
	Type      string          `json:"type"`
	Text      string          `json:"text"`
	Thinking  string          `json:"thinking"`
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Input     json.RawMessage `json:"input"`
	ToolUseID string          `json:"tool_use_id"`
	Content   json.RawMessage `json:"content"`
}

// FormatLine parses one line of stdout, never letting a single
// malformed event take down the stream.
func (f *Formatter) FormatLine(line string) tim.FormattedMessage {
	if strings.HasPrefix(line, "[DEBUG]") {
		return tim.FormattedMessage{Type: ""}
	}

	var raw rawMessage
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return tim.FormattedMessage{
			Type: "parse_error",
			SubEvents: []tim.SubEvent{
				{Kind: "llm_status", Data: map[string]any{"status": "llm.parse_error", "line": line}},
			},
		}
	}

	switch raw.Type {
	case "system":
		return f.renderSystem(raw)
	case "result":
		return f.renderResult(raw)
	case "assistant", "user":
		return f.renderConversation(raw)
	default:
		return tim.FormattedMessage{Type: raw.Type}
	}
}

func (f *Formatter) renderSystem(raw rawMessage) tim.FormattedMessage {
	bold := color.New(color.Bold).SprintFunc()
	switch raw.Subtype {
	case "init":
		rendered := bold("Starting") + "\n" +
			"  session: " + raw.SessionID + "\n" +
			"  tools:   " + strings.Join(raw.Tools, ", ") + "\n" +
			"  mcp:     " + strings.Join(raw.MCPServer, ", ")
		return tim.FormattedMessage{Type: raw.Type, Rendered: rendered}
	case "task_notification":
		return tim.FormattedMessage{Type: raw.Type, Rendered: bold("Task notification")}
	case "status":
		if len(raw.Status) == 0 || string(raw.Status) == "null" {
			return tim.FormattedMessage{Type: raw.Type}
		}
		return tim.FormattedMessage{Type: raw.Type, Rendered: bold("Status: ") + string(raw.Status)}
	case "compact_boundary":
		return tim.FormattedMessage{Type: raw.Type, Rendered: bold("--- context compacted ---")}
	default:
		return tim.FormattedMessage{Type: raw.Type}
	}
}

func (f *Formatter) renderResult(raw rawMessage) tim.FormattedMessage {
	green := color.New(color.FgGreen, color.Bold).SprintFunc()
	suffix := ""
	if raw.Subtype == "error_max_turns" {
		suffix = " (max turns reached)"
	}
	rendered := green("Done") + suffix +
		" — cost: $" + formatFloat(raw.CostUSD) +
		", duration: " + formatFloat(float64(raw.DurationMS)/1000) + "s" +
		", turns: " + formatInt(raw.NumTurns)

	return tim.FormattedMessage{
		Type:     raw.Type,
		Rendered: rendered,
		SubEvents: []tim.SubEvent{
			{Kind: "agent_session_end", Data: map[string]any{
				"cost_usd":    raw.CostUSD,
				"duration_ms": raw.DurationMS,
				"num_turns":   raw.NumTurns,
				"subtype":     raw.Subtype,
			}},
		},
	}
}

func (f *Formatter) renderConversation(raw rawMessage) tim.FormattedMessage {
	var inner innerMessage
	_ = json.Unmarshal(raw.Message, &inner)

	var renderedParts []string
	var rawTextParts []string
	var filePaths []string
	var subEvents []tim.SubEvent

	for _, item := range inner.Content {
		switch item.Type {
		case "text":
			cyan := color.New(color.FgCyan).SprintFunc()
			renderedParts = append(renderedParts, cyan("text:")+"\n"+item.Text)
			rawTextParts = append(rawTextParts, item.Text)
		case "thinking":
			gray := color.New(color.FgHiBlack).SprintFunc()
			renderedParts = append(renderedParts, gray("thinking:")+"\n"+item.Thinking)
		case "tool_use":
			f.mu.Lock()
			f.toolName[item.ID] = item.Name
			f.mu.Unlock()
			rendered, paths, sub := renderToolUse(item)
			renderedParts = append(renderedParts, rendered)
			filePaths = append(filePaths, paths...)
			if sub != nil {
				subEvents = append(subEvents, *sub)
			}
		case "tool_result":
			f.mu.Lock()
			name := f.toolName[item.ToolUseID]
			f.mu.Unlock()
			renderedParts = append(renderedParts, renderToolResult(name, item))
		}
	}

	rawText := strings.Join(rawTextParts, "\n")
	msg := tim.FormattedMessage{
		Type:      raw.Type,
		Rendered:  strings.Join(renderedParts, "\n\n"),
		RawText:   rawText,
		FilePaths: filePaths,
		SubEvents: subEvents,
	}

	if raw.Type == "assistant" {
		if report := DetectFailure(rawText); report != nil {
			msg.Failed = true
			msg.FailedSummary = report.Summary
		}
	}
	return msg
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func formatInt(i int) string {
	return strconv.Itoa(i)
}
