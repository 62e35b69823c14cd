package format

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectFailureNoFailedLineReturnsNil(t *testing.T) {
	assert.Nil(t, DetectFailure("all tests passed\nnothing to see here"))
}

// TestDetectFailureRoundTrip checks that a FAILED: line with
// canonical sections parses
// back into the same structured fields regardless of leading
// whitespace or case.
func TestDetectFailureRoundTrip(t *testing.T) {
	raw := "  FAILED: the login test suite is red\n" +
		"Requirements:\n" +
		"- users can log in with email\n" +
		"Problems:\n" +
		"- session cookie never set\n" +
		"* also insecure\n" +
		"Possible solutions:\n" +
		"- check the cookie middleware\n"

	report := DetectFailure(raw)
	require.NotNil(t, report)
	assert.Equal(t, "the login test suite is red", report.Summary)
	assert.Equal(t, []string{"users can log in with email"}, report.Requirements)
	assert.Equal(t, []string{"session cookie never set", "also insecure"}, report.Problems)
	assert.Equal(t, []string{"check the cookie middleware"}, report.PossibleSolutions)
}

func TestDetectFailureCaseInsensitivePrefix(t *testing.T) {
	report := DetectFailure("failed: lowercase still matches")
	require.NotNil(t, report)
	assert.Equal(t, "lowercase still matches", report.Summary)
}

func TestDetectFailureOnlyFirstMatchWins(t *testing.T) {
	report := DetectFailure("some text\nFAILED: first\nmore text\nFAILED: second")
	require.NotNil(t, report)
	assert.Equal(t, "first", report.Summary)
}

// TestInferSourceAgent checks the priority order: reviewer > verifier
// > tester > tdd-tests > implementer > fixer, default orchestrator,
// case-insensitive.
func TestInferSourceAgent(t *testing.T) {
	tests := []struct {
		summary string
		want    string
	}{
		{"the REVIEWER flagged a regression", "reviewer"},
		{"verifier could not confirm the fix", "verifier"},
		{"tester found a failing case", "tester"},
		{"tdd-tests step failed to write a red test", "tdd-tests"},
		{"implementer left the build broken", "implementer"},
		{"fixer could not resolve the conflict", "fixer"},
		{"nothing identifiable here", "orchestrator"},
		// priority: when multiple names appear, the highest-priority one wins.
		{"the fixer asked the reviewer to look again", "reviewer"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, inferSourceAgent(tc.summary), tc.summary)
	}
}

// TestDetectFailureBuriedUnderPreface checks that a FAILED report
// preceded by unrelated preface lines still parses, and
// a summary naming none of the known agent roles infers "orchestrator".
func TestDetectFailureBuriedUnderPreface(t *testing.T) {
	raw := "PREFACE\nSome lines first\n\nFAILED: Could not proceed due to constraints\nProblems:\n- X\n"

	report := DetectFailure(raw)
	require.NotNil(t, report)
	assert.Equal(t, "Could not proceed due to constraints", report.Summary)
	assert.Equal(t, []string{"X"}, report.Problems)
	assert.Equal(t, "orchestrator", inferSourceAgent(report.Summary))
}

func TestParseCanonicalSectionsIgnoresTextBeforeFirstHeader(t *testing.T) {
	report := DetectFailure("FAILED: x\nsome preamble note\nProblems:\n- the only problem\n")
	require.NotNil(t, report)
	assert.Nil(t, report.Requirements)
	assert.Equal(t, []string{"the only problem"}, report.Problems)
}
