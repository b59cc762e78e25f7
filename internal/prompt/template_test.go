package prompt

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/manifold-labs/promptlab/internal/promptlaberrors"
)

func TestNewDerivesPlaceholdersFromTemplateText(t *testing.T) {
	tmpl, err := New("answer as {{persona}}", nil, "classify: {{text}}", nil, FewShot{})
	require.NoError(t, err)
	require.Contains(t, tmpl.SystemVars, "persona")
	require.Contains(t, tmpl.UserVars, "text")
}

func TestNewToleratesDeclaredButUnusedVars(t *testing.T) {
	tmpl, err := New("", nil, "classify: {{text}}", []string{"hint"}, FewShot{})
	require.NoError(t, err)
	require.Contains(t, tmpl.UserVars, "hint")
	require.Contains(t, tmpl.UserVars, "text")
}

func TestNewRejectsEmptyUserTemplateWithoutFewShot(t *testing.T) {
	_, err := New("be helpful", nil, "", nil, FewShot{})
	require.ErrorIs(t, err, promptlaberrors.ErrInvalidPrompt)
}

func TestNewRejectsEmptyUserTemplateWithConverseButNoExamples(t *testing.T) {
	_, err := New("be helpful", nil, "", nil, FewShot{Format: FewShotConverse})
	require.ErrorIs(t, err, promptlaberrors.ErrInvalidPrompt)
}

func TestNewAllowsEmptyUserTemplateWithConverseExamples(t *testing.T) {
	fs := FewShot{Format: FewShotConverse, Examples: []Example{{Input: "hi", Output: "hello"}}}
	tmpl, err := New("be helpful", nil, "", nil, fs)
	require.NoError(t, err)
	require.Empty(t, tmpl.UserTemplate)
}

func TestSaveLoadRoundTripsTemplateAndFewShot(t *testing.T) {
	dir := t.TempDir()
	fs := FewShot{
		Format: FewShotAppendToUser,
		Examples: []Example{
			{Input: "2+2", Output: "4"},
			{Input: "3+3", Output: "6"},
		},
	}
	original, err := New("classify sentiment", nil, "text: {{text}}", nil, fs)
	require.NoError(t, err)

	require.NoError(t, original.Save(dir))
	require.FileExists(t, filepath.Join(dir, "system_prompt.txt"))
	require.FileExists(t, filepath.Join(dir, "user_prompt.txt"))
	require.FileExists(t, filepath.Join(dir, "few_shot.json"))

	loaded, err := Load(dir)
	require.NoError(t, err)
	require.Equal(t, original.SystemTemplate, loaded.SystemTemplate)
	require.Equal(t, original.UserTemplate, loaded.UserTemplate)
	require.Equal(t, original.FewShot.Format, loaded.FewShot.Format)
	require.Equal(t, original.FewShot.Examples, loaded.FewShot.Examples)
	require.Contains(t, loaded.UserVars, "text")
}

func TestSaveOmitsFewShotFileWhenNoExamples(t *testing.T) {
	dir := t.TempDir()
	tmpl, err := New("be helpful", nil, "echo: {{text}}", nil, FewShot{})
	require.NoError(t, err)
	require.NoError(t, tmpl.Save(dir))
	require.NoFileExists(t, filepath.Join(dir, "few_shot.json"))
}

func TestLoadRequiresSystemAndUserPromptFiles(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(dir)
	require.Error(t, err)
}
