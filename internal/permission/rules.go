package permission

import (
	"strings"
	"sync"

	"github.com/tim-agents/tim/internal/tim"
)

// allowAll is the sentinel prefix value meaning "every Bash command is
// approved" / "every invocation of this tool is approved", per spec
// §3's AllowRule invariant: the "Bash" key maps to either this sentinel
// or an ordered list of distinct prefixes, never both.
const allowAll = "\x00allow-all\x00"

// RuleSet is the per-Invocation allow-rule map. It is shared mutable
// state, touched by every connection handler's user-prompt path, so it
// carries its own mutex rather than relying on a global — one RuleSet
// per Invocation keeps runs fully isolated (see design notes on test
// parallelism).
type RuleSet struct {
	mu    sync.Mutex
	rules map[string][]string // tool name -> ordered distinct prefixes, or [allowAll]
}

// NewRuleSet builds a RuleSet seeded with the given allow-all tool
// names and Bash prefixes.
func NewRuleSet(allowedTools []string) *RuleSet {
	rs := &RuleSet{rules: make(map[string][]string)}
	for _, t := range allowedTools {
		rs.allow(t)
	}
	return rs
}

// allow parses one settings-file-style rule string: either a bare tool
// name ("Edit") or "Bash(prefix)".
func (rs *RuleSet) allow(rule string) {
	tool, prefix, ok := splitBashRule(rule)
	if !ok {
		rs.addAllowAll(tool)
		return
	}
	rs.addPrefix(tool, prefix)
}

func splitBashRule(rule string) (tool, prefix string, isPrefixRule bool) {
	open := strings.IndexByte(rule, '(')
	if !strings.HasPrefix(rule, "Bash(") || !strings.HasSuffix(rule, ")") || open < 0 {
		return rule, "", false
	}
	return "Bash", rule[open+1 : len(rule)-1], true
}

func (rs *RuleSet) addAllowAll(tool string) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.rules[tool] = []string{allowAll}
}

func (rs *RuleSet) addPrefix(tool, prefix string) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	existing := rs.rules[tool]
	if len(existing) == 1 && existing[0] == allowAll {
		return // already allow-all; a narrower prefix adds nothing
	}
	for _, p := range existing {
		if p == prefix {
			return
		}
	}
	rs.rules[tool] = append(existing, prefix)
}

// AllowTool records a bare allow-all rule for tool. Session lifetime:
// callers decide whether to also persist it.
func (rs *RuleSet) AllowTool(tool string) {
	rs.addAllowAll(tool)
}

// AllowBashPrefix records a Bash prefix rule.
func (rs *RuleSet) AllowBashPrefix(prefix string) {
	rs.addPrefix("Bash", prefix)
}

// Approved reports whether req is covered by an existing rule. It does
// not perform the AskUserQuestion, auto-approve-deletion, or
// interactive-prompt steps — those are resolved by the caller in
// broker.go, which is the only place in the pipeline with access to
// TrackedFiles and the interactive session.
func (rs *RuleSet) Approved(req tim.PermissionRequest) bool {
	rs.mu.Lock()
	prefixes := append([]string(nil), rs.rules[req.ToolName]...)
	rs.mu.Unlock()

	if len(prefixes) == 0 {
		return false
	}
	if len(prefixes) == 1 && prefixes[0] == allowAll {
		return true
	}
	if req.ToolName != "Bash" {
		return false
	}
	cmd, _ := req.Input["command"].(string)
	for _, prefix := range prefixes {
		if strings.HasPrefix(cmd, prefix) {
			return true
		}
	}
	return false
}

// Snapshot returns a deep copy of the rule map, for diagnostics (e.g.
// `tim agent doctor`).
func (rs *RuleSet) Snapshot() map[string][]string {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	out := make(map[string][]string, len(rs.rules))
	for k, v := range rs.rules {
		cp := make([]string, len(v))
		copy(cp, v)
		out[k] = cp
	}
	return out
}
