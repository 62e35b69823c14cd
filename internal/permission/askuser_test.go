package permission

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeQuestionsDecodesOptionsAndMultiSelect(t *testing.T) {
	raw := []any{
		map[string]any{
			"question":    "Which approach?",
			"header":      "Pick one",
			"multiSelect": true,
			"options": []any{
				map[string]any{"label": "A", "description": "first"},
				map[string]any{"label": "B", "description": "second"},
			},
		},
	}

	got := decodeQuestions(raw)
	require.Len(t, got, 1)
	assert.Equal(t, "Which approach?", got[0].Question)
	assert.Equal(t, "Pick one", got[0].Header)
	assert.True(t, got[0].MultiSelect)
	require.Len(t, got[0].Options, 2)
	assert.Equal(t, "A", got[0].Options[0].Label)
	assert.Equal(t, "second", got[0].Options[1].Description)
}

func TestDecodeQuestionsSkipsMalformedEntries(t *testing.T) {
	raw := []any{"not a map", 42, map[string]any{"question": "ok"}}
	got := decodeQuestions(raw)
	require.Len(t, got, 1)
	assert.Equal(t, "ok", got[0].Question)
}

func TestDecodeQuestionsEmptyInput(t *testing.T) {
	assert.Nil(t, decodeQuestions(nil))
}

func TestStringField(t *testing.T) {
	m := map[string]any{"question": "hello", "count": 3}
	assert.Equal(t, "hello", stringField(m, "question"))
	assert.Equal(t, "", stringField(m, "count"))
	assert.Equal(t, "", stringField(m, "missing"))
}

// TestMultiSelectFreeTextComposition checks that a multi-select answer
// of [Option1, __free_text__] followed by
// "also this" composes to "Option1, also this".
func TestMultiSelectFreeTextComposition(t *testing.T) {
	labels, needsFreeText := splitFreeTextSentinel([]string{"Option1", freeTextSentinel})
	require.True(t, needsFreeText)
	labels = appendFreeText(labels, "also this")
	assert.Equal(t, "Option1, also this", strings.Join(labels, ", "))
}

func TestSplitFreeTextSentinelAbsent(t *testing.T) {
	labels, needsFreeText := splitFreeTextSentinel([]string{"Option1", "Option2"})
	assert.False(t, needsFreeText)
	assert.Equal(t, []string{"Option1", "Option2"}, labels)
}

func TestAppendFreeTextBlankIsNoOp(t *testing.T) {
	labels := appendFreeText([]string{"Option1"}, "   ")
	assert.Equal(t, []string{"Option1"}, labels)
}
