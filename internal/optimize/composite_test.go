package optimize

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/manifold-labs/promptlab/internal/config"
	"github.com/manifold-labs/promptlab/internal/metric"
	"github.com/manifold-labs/promptlab/internal/promptlaberrors"
	"github.com/manifold-labs/promptlab/internal/ratelimit"
)

func TestResolvePresetRejectsUnknownMode(t *testing.T) {
	c := NewComposite(config.Default(), ratelimit.New(0), metric.ExactMatch, "exact_match")
	_, err := c.resolvePreset("nonexistent", nil)
	require.ErrorIs(t, err, promptlaberrors.ErrConfiguration)
}

func TestResolvePresetReturnsKnownPreset(t *testing.T) {
	c := NewComposite(config.Default(), ratelimit.New(0), metric.ExactMatch, "exact_match")
	preset, err := c.resolvePreset("fast", nil)
	require.NoError(t, err)
	require.Equal(t, 3, preset.Search.NumCandidates)
}

func TestResolvePresetCustomRequiresAllKeys(t *testing.T) {
	c := NewComposite(config.Default(), ratelimit.New(0), metric.ExactMatch, "exact_match")
	_, err := c.resolvePreset("custom", &config.CompositePreset{TaskModel: "gpt-test"})
	require.ErrorIs(t, err, promptlaberrors.ErrConfiguration)
}

func TestResolvePresetCustomAcceptsCompletePreset(t *testing.T) {
	c := NewComposite(config.Default(), ratelimit.New(0), metric.ExactMatch, "exact_match")
	preset := &config.CompositePreset{
		TaskModel: "gpt-test",
		Search: config.SearchParams{
			NumCandidates:        1,
			NumTrials:            1,
			MaxBootstrappedDemos: 1,
			MaxLabeledDemos:      1,
		},
	}
	got, err := c.resolvePreset("custom", preset)
	require.NoError(t, err)
	require.Equal(t, "gpt-test", got.TaskModel)
}
