package format

import (
	"strings"

	"github.com/tim-agents/tim/internal/tim"
)

// sourceAgentPriority is the case-insensitive substring match order:
// reviewer, verifier, tester, tdd-tests, implementer, fixer, in that
// priority, default "orchestrator".
var sourceAgentPriority = []string{"reviewer", "verifier", "tester", "tdd-tests", "implementer", "fixer"}

var canonicalSections = []string{"Requirements:", "Problems:", "Possible solutions:"}

// DetectFailure scans rawText line-by-line for the first line
// beginning "FAILED:" (whitespace-tolerant) and, if found, parses any
// canonical labeled sections that follow. Returns nil when no FAILED:
// line is present.
func DetectFailure(rawText string) *tim.FailureReport {
	lines := strings.Split(rawText, "\n")

	failedIdx := -1
	summary := ""
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if rest, ok := cutPrefixFold(trimmed, "FAILED:"); ok {
			failedIdx = i
			summary = strings.TrimSpace(rest)
			break
		}
	}
	if failedIdx == -1 {
		return nil
	}

	report := &tim.FailureReport{
		Summary:     summary,
		SourceAgent: inferSourceAgent(summary),
	}

	sections := parseCanonicalSections(lines[failedIdx+1:])
	report.Requirements = sections["Requirements:"]
	report.Problems = sections["Problems:"]
	report.PossibleSolutions = sections["Possible solutions:"]
	return report
}

func cutPrefixFold(s, prefix string) (string, bool) {
	if len(s) < len(prefix) || !strings.EqualFold(s[:len(prefix)], prefix) {
		return "", false
	}
	return s[len(prefix):], true
}

// inferSourceAgent applies the case-insensitive substring priority
// match over the FAILED summary text.
func inferSourceAgent(summary string) string {
	lower := strings.ToLower(summary)
	for _, name := range sourceAgentPriority {
		if strings.Contains(lower, name) {
			return name
		}
	}
	return "orchestrator"
}

// parseCanonicalSections parses the labeled bulleted subsections that
// may follow a FAILED: line.
func parseCanonicalSections(lines []string) map[string][]string {
	out := make(map[string][]string)
	current := ""
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if isCanonicalHeader(trimmed) {
			current = matchCanonicalHeader(trimmed)
			continue
		}
		if current == "" {
			continue
		}
		if item, ok := cutBullet(trimmed); ok {
			out[current] = append(out[current], item)
		}
	}
	return out
}

func isCanonicalHeader(line string) bool {
	return matchCanonicalHeader(line) != ""
}

func matchCanonicalHeader(line string) string {
	for _, header := range canonicalSections {
		if strings.EqualFold(line, header) {
			return header
		}
	}
	return ""
}

func cutBullet(line string) (string, bool) {
	for _, marker := range []string{"- ", "* "} {
		if strings.HasPrefix(line, marker) {
			return strings.TrimSpace(line[len(marker):]), true
		}
	}
	return "", false
}
