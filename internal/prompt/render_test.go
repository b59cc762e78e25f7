package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/manifold-labs/promptlab/internal/llmadapter"
	"github.com/manifold-labs/promptlab/internal/promptlaberrors"
)

func TestRenderSubstitutesDeclaredPlaceholders(t *testing.T) {
	tmpl, err := New("you are {{persona}}", nil, "classify: {{text}}", nil, FewShot{})
	require.NoError(t, err)

	r := NewRenderer()
	system, messages, err := r.Render(tmpl, map[string]string{"persona": "a critic", "text": "great movie"})
	require.NoError(t, err)
	require.Equal(t, "you are a critic", system)
	require.Len(t, messages, 1)
	require.Equal(t, llmadapter.RoleUser, messages[0].Role)
	require.Equal(t, "classify: great movie", messages[0].Text)
}

func TestRenderAppendsUndeclaredInputsOnce(t *testing.T) {
	tmpl, err := New("", nil, "classify: {{text}}", []string{"hint"}, FewShot{})
	require.NoError(t, err)

	r := NewRenderer()
	_, messages, err := r.Render(tmpl, map[string]string{"text": "x", "hint": "be terse"})
	require.NoError(t, err)
	require.Contains(t, messages[0].Text, "[[ ## hint ## ]]")
	require.Equal(t, 1, strings.Count(messages[0].Text, "[[ ## hint ## ]]"))
	require.Contains(t, messages[0].Text, "be terse")
}

func TestRenderConverseFormatPrependsExamplePairs(t *testing.T) {
	fs := FewShot{
		Format: FewShotConverse,
		Examples: []Example{
			{Input: "2+2", Output: "4"},
		},
	}
	tmpl, err := New("be helpful", nil, "compute: {{expr}}", nil, fs)
	require.NoError(t, err)

	r := NewRenderer()
	_, messages, err := r.Render(tmpl, map[string]string{"expr": "5+5"})
	require.NoError(t, err)
	require.Len(t, messages, 3)
	require.Equal(t, llmadapter.RoleUser, messages[0].Role)
	require.Equal(t, "2+2", messages[0].Text)
	require.Equal(t, llmadapter.RoleAssistant, messages[1].Role)
	require.Equal(t, "4", messages[1].Text)
	require.Equal(t, "compute: 5+5", messages[2].Text)
}

func TestRenderAppendToUserAppendsExamplesBlockToUserText(t *testing.T) {
	fs := FewShot{Format: FewShotAppendToUser, Examples: []Example{{Input: "in", Output: "out"}}}
	tmpl, err := New("be helpful", nil, "task: {{text}}", nil, fs)
	require.NoError(t, err)

	r := NewRenderer()
	_, messages, err := r.Render(tmpl, map[string]string{"text": "do it"})
	require.NoError(t, err)
	require.Contains(t, messages[0].Text, "**Examples**")
	require.Contains(t, messages[0].Text, "Input: in")
}

func TestRenderRejectsEmptyRenderedUserMessage(t *testing.T) {
	tmpl, err := New("be helpful", nil, "{{text}}", nil, FewShot{})
	require.NoError(t, err)

	r := NewRenderer()
	_, _, err = r.Render(tmpl, map[string]string{"text": ""})
	require.ErrorIs(t, err, promptlaberrors.ErrInvalidPrompt)
}
