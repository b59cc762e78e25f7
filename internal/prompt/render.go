package prompt

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/manifold-labs/promptlab/internal/llmadapter"
	"github.com/manifold-labs/promptlab/internal/observability"
	"github.com/manifold-labs/promptlab/internal/promptlaberrors"
)

// Renderer renders a Template against dataset records into the
// (system, messages) shape the InferenceAdapter expects. It owns the
// "log once per runner instance" behavior of spec §4.1 step 3, so one
// Renderer should be shared across every record of a single run.
type Renderer struct {
	warnOnce sync.Once
}

// NewRenderer returns a Renderer whose warn-once state is scoped to a single
// inference run, matching spec §4.1 ("log a warning the first time this
// happens per runner instance, then suppress").
func NewRenderer() *Renderer {
	return &Renderer{}
}

// Render produces the system text and ordered message list for one record,
// per spec §4.1. It returns InvalidPromptError if no user message would be
// produced.
func (r *Renderer) Render(t *Template, inputs map[string]string) (system string, messages []llmadapter.Message, err error) {
	userText := substitute(t.UserTemplate, inputs)
	systemText := substitute(t.SystemTemplate, inputs)

	userText = r.appendUndeclared(userText, t.UserVars, t.UserTemplate, inputs)
	systemText = r.appendUndeclared(systemText, t.SystemVars, t.SystemTemplate, inputs)

	switch t.FewShot.Format {
	case FewShotAppendToUser:
		userText = appendExamplesBlock(userText, t.FewShot.Examples)
	case FewShotAppendToSystem:
		systemText = appendExamplesBlock(systemText, t.FewShot.Examples)
	}

	if strings.TrimSpace(userText) == "" && !(t.FewShot.Format == FewShotConverse && len(t.FewShot.Examples) > 0) {
		return "", nil, fmt.Errorf("%w: rendered user message is empty", promptlaberrors.ErrInvalidPrompt)
	}

	if t.FewShot.Format == FewShotConverse {
		for _, ex := range t.FewShot.Examples {
			messages = append(messages,
				llmadapter.Message{Role: llmadapter.RoleUser, Text: ex.Input},
				llmadapter.Message{Role: llmadapter.RoleAssistant, Text: ex.Output},
			)
		}
	}
	if strings.TrimSpace(userText) != "" {
		messages = append(messages, llmadapter.Message{Role: llmadapter.RoleUser, Text: userText})
	}
	if len(messages) == 0 {
		return "", nil, fmt.Errorf("%w: no messages produced", promptlaberrors.ErrInvalidPrompt)
	}
	return systemText, messages, nil
}

func substitute(template string, inputs map[string]string) string {
	return placeholderPattern.ReplaceAllStringFunc(template, func(m string) string {
		name := placeholderPattern.FindStringSubmatch(m)[1]
		return inputs[name]
	})
}

// appendUndeclared appends declared-but-absent placeholders as
// "[[ ## name ## ]]\n<value>\n" blocks, per spec §4.1 step 3, and warns once
// per Renderer the first time this fires.
func (r *Renderer) appendUndeclared(rendered string, vars map[string]struct{}, templateText string, inputs map[string]string) string {
	present := placeholdersIn(templateText)
	presentSet := toSet(present)
	var missing []string
	for name := range vars {
		if _, ok := presentSet[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return rendered
	}
	sort.Strings(missing)
	r.warnOnce.Do(func() {
		observability.Log().Warn().Strs("placeholders", missing).Msg("prompt_template_appends_undeclared_inputs")
	})
	var b strings.Builder
	b.WriteString(rendered)
	b.WriteString("\n\nHere are the additional inputs:\n")
	for _, name := range missing {
		fmt.Fprintf(&b, "[[ ## %s ## ]]\n%s\n", name, inputs[name])
	}
	return b.String()
}

func appendExamplesBlock(text string, examples []Example) string {
	if len(examples) == 0 {
		return text
	}
	var b strings.Builder
	b.WriteString(text)
	b.WriteString("\n\n**Examples**\n")
	for i, ex := range examples {
		fmt.Fprintf(&b, "Example %d:\nInput: %s\nOutput: %s\n", i+1, ex.Input, ex.Output)
	}
	return b.String()
}
