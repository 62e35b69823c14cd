package permission

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/huh"

	"github.com/tim-agents/tim/internal/tim"
)

// freeTextSentinel is the implicit trailing option every question
// offers: selecting it triggers a follow-up
// free-text prompt whose answer is appended to the selected labels.
const freeTextSentinel = "__free_text__"

// askUserQuestion drives the user through an AskUserQuestion tool's
// question list via huh forms and returns the approved response. It
// holds ts.mu for the duration, the same as promptChoice, so an
// AskUserQuestion prompt and the four-choice prompt never race for the
// terminal. timeout/timeoutDefault apply across the whole question
// list, same as promptChoice's single prompt.
func (ts *terminalSession) askUserQuestion(ctx context.Context, req tim.PermissionRequest, timeout time.Duration, timeoutDefault string) tim.PermissionResponse {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	rawQuestions, _ := req.Input["questions"].([]any)
	questions := decodeQuestions(rawQuestions)
	if len(questions) == 0 {
		return tim.NewDenial(req.RequestID)
	}

	promptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	answers := make(map[string]string, len(questions))
	for _, q := range questions {
		answer, err := askOneQuestion(promptCtx, q)
		if err != nil {
			if timeoutDefault == "yes" {
				return tim.NewApproval(req.RequestID)
			}
			return tim.NewDenial(req.RequestID)
		}
		answers[q.Question] = answer
	}

	resp := tim.NewApproval(req.RequestID)
	resp.UpdatedInput = map[string]any{
		"questions": req.Input["questions"],
		"answers":   answers,
	}
	return resp
}

func decodeQuestions(raw []any) []tim.AskUserQuestion {
	var out []tim.AskUserQuestion
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		q := tim.AskUserQuestion{
			Question: stringField(m, "question"),
			Header:   stringField(m, "header"),
		}
		if ms, ok := m["multiSelect"].(bool); ok {
			q.MultiSelect = ms
		}
		if opts, ok := m["options"].([]any); ok {
			for _, o := range opts {
				om, ok := o.(map[string]any)
				if !ok {
					continue
				}
				q.Options = append(q.Options, tim.AskUserQuestionOption{
					Label:       stringField(om, "label"),
					Description: stringField(om, "description"),
				})
			}
		}
		out = append(out, q)
	}
	return out
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

// askOneQuestion renders a single-select or multi-select huh form for
// q, offering the implicit free-text option, and returns a single
// comma-joined answer string.
func askOneQuestion(ctx context.Context, q tim.AskUserQuestion) (string, error) {
	options := make([]huh.Option[string], 0, len(q.Options)+1)
	for _, o := range q.Options {
		label := o.Label
		if o.Description != "" {
			label = fmt.Sprintf("%s — %s", o.Label, o.Description)
		}
		options = append(options, huh.NewOption(label, o.Label))
	}
	options = append(options, huh.NewOption("Free text", freeTextSentinel))

	var selected []string
	var single string
	var field huh.Field
	if q.MultiSelect {
		field = huh.NewMultiSelect[string]().
			Title(q.Question).
			Description(q.Header).
			Options(options...).
			Value(&selected)
	} else {
		field = huh.NewSelect[string]().
			Title(q.Question).
			Description(q.Header).
			Options(options...).
			Value(&single)
	}

	form := huh.NewForm(huh.NewGroup(field))
	if err := form.RunWithContext(ctx); err != nil {
		return "", err
	}
	if !q.MultiSelect && single != "" {
		selected = append(selected, single)
	}

	labels, needsFreeText := splitFreeTextSentinel(selected)

	if needsFreeText {
		var freeText string
		textField := huh.NewText().Title("Your answer").Value(&freeText)
		if err := huh.NewForm(huh.NewGroup(textField)).RunWithContext(ctx); err != nil {
			return "", err
		}
		labels = appendFreeText(labels, freeText)
	}

	return strings.Join(labels, ", "), nil
}

// splitFreeTextSentinel separates the implicit free-text marker out of
// a set of selected option labels, reporting whether it was present.
func splitFreeTextSentinel(selected []string) ([]string, bool) {
	labels := make([]string, 0, len(selected))
	needsFreeText := false
	for _, s := range selected {
		if s == freeTextSentinel {
			needsFreeText = true
			continue
		}
		labels = append(labels, s)
	}
	return labels, needsFreeText
}

// appendFreeText appends freeText to labels unless it is blank.
func appendFreeText(labels []string, freeText string) []string {
	if strings.TrimSpace(freeText) == "" {
		return labels
	}
	return append(labels, freeText)
}
