package optimize

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/manifold-labs/promptlab/internal/config"
	"github.com/manifold-labs/promptlab/internal/dataset"
	"github.com/manifold-labs/promptlab/internal/llmadapter"
	"github.com/manifold-labs/promptlab/internal/metric"
	"github.com/manifold-labs/promptlab/internal/promptlaberrors"
	"github.com/manifold-labs/promptlab/internal/prompt"
	"github.com/manifold-labs/promptlab/internal/ratelimit"
)

// CompositeOptimizer sequentially applies the meta-prompter optimizer then
// the search optimizer (spec §4.8), selecting a named preset triplet of
// (proposer_model, task_model, search_params) or an explicit custom one.
type CompositeOptimizer struct {
	Config     config.Config
	Limiter    *ratelimit.Limiter
	Metric     metric.Metric
	MetricName string

	// LastTrials holds the search phase's scored trials from the most
	// recent Optimize call, for the CLI's best-trial table. Left nil when
	// Optimize never reaches the search phase (no dataset/metric supplied).
	LastTrials []TrialSummary
}

// NewComposite builds a CompositeOptimizer sharing one rate limiter across
// whichever vendor adapters a given run ends up building, so presets that
// name the same model id still contend on a single limiter instance.
func NewComposite(cfg config.Config, limiter *ratelimit.Limiter, m metric.Metric, metricName string) *CompositeOptimizer {
	return &CompositeOptimizer{Config: cfg, Limiter: limiter, Metric: m, MetricName: metricName}
}

// Optimize rewrites tmpl's instructions via the meta-prompter, then, if ds
// and a metric are both available, searches instruction/demo combinations
// against ds (spec §4.8). mode selects a named preset from Config.Presets,
// or "custom" to use the explicit preset passed in custom.
func (c *CompositeOptimizer) Optimize(ctx context.Context, tmpl *prompt.Template, mode string, custom *config.CompositePreset, ds *dataset.Dataset) (*prompt.Template, error) {
	preset, err := c.resolvePreset(mode, custom)
	if err != nil {
		return nil, err
	}

	proposerAdapter, err := llmadapter.BuildAdapter(ctx, preset.ProposerModel, c.Config, c.Limiter)
	if err != nil {
		return nil, fmt.Errorf("%w: build proposer adapter: %v", promptlaberrors.ErrConfiguration, err)
	}

	meta := NewMetaPrompter(proposerAdapter, preset.ProposerModel)
	rewritten, err := meta.Optimize(ctx, tmpl)
	if err != nil {
		return nil, err
	}

	if ds == nil || c.Metric == nil {
		return rewritten, nil
	}

	train, heldout, err := ds.Split(0.5, false, rand.New(rand.NewSource(1)))
	if err != nil {
		return nil, err
	}

	taskAdapter, err := llmadapter.BuildAdapter(ctx, preset.TaskModel, c.Config, c.Limiter)
	if err != nil {
		return nil, fmt.Errorf("%w: build task adapter: %v", promptlaberrors.ErrConfiguration, err)
	}

	search := NewSearch(proposerAdapter, taskAdapter, preset.ProposerModel, preset.TaskModel, c.Metric, c.MetricName)
	search.NumCandidates = preset.Search.NumCandidates
	search.NumTrials = preset.Search.NumTrials
	search.MaxBootstrappedDemos = preset.Search.MaxBootstrappedDemos
	search.MaxLabeledDemos = preset.Search.MaxLabeledDemos
	search.MinibatchSize = preset.Search.MinibatchSize

	winner, err := search.Optimize(ctx, rewritten, train, heldout)
	c.LastTrials = search.Trials
	if err != nil {
		return nil, err
	}
	return winner, nil
}

// resolvePreset selects a named preset from Config.Presets, or validates
// and returns custom when mode == "custom" (spec §4.8): all five required
// keys (task_model, num_candidates, num_trials, max_bootstrapped_demos,
// max_labeled_demos) must be present.
func (c *CompositeOptimizer) resolvePreset(mode string, custom *config.CompositePreset) (config.CompositePreset, error) {
	if mode == "custom" {
		if custom == nil {
			return config.CompositePreset{}, fmt.Errorf("%w: custom mode requires an explicit preset", promptlaberrors.ErrConfiguration)
		}
		if err := validateCustomPreset(*custom); err != nil {
			return config.CompositePreset{}, err
		}
		return *custom, nil
	}

	preset, ok := c.Config.Presets[mode]
	if !ok {
		return config.CompositePreset{}, fmt.Errorf("%w: unknown optimizer preset %q", promptlaberrors.ErrConfiguration, mode)
	}
	return preset, nil
}

func validateCustomPreset(p config.CompositePreset) error {
	var missing []string
	if p.TaskModel == "" {
		missing = append(missing, "task_model")
	}
	if p.Search.NumCandidates <= 0 {
		missing = append(missing, "num_candidates")
	}
	if p.Search.NumTrials <= 0 {
		missing = append(missing, "num_trials")
	}
	if p.Search.MaxBootstrappedDemos <= 0 {
		missing = append(missing, "max_bootstrapped_demos")
	}
	if p.Search.MaxLabeledDemos <= 0 {
		missing = append(missing, "max_labeled_demos")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: custom preset missing required keys: %v", promptlaberrors.ErrConfiguration, missing)
	}
	return nil
}
