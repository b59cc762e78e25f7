// Package eval implements the Evaluator of spec §4.5: aggregate and
// per-row scoring of a PromptTemplate against a Dataset through an
// InferenceRunner, with process-wide memoization of inference results.
package eval

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/manifold-labs/promptlab/internal/dataset"
	"github.com/manifold-labs/promptlab/internal/llmadapter"
	"github.com/manifold-labs/promptlab/internal/metric"
	"github.com/manifold-labs/promptlab/internal/observability"
	"github.com/manifold-labs/promptlab/internal/prompt"
	"github.com/manifold-labs/promptlab/internal/runner"
)

// Result is one scored row: the dataset record, the model's prediction,
// and the metric score for that prediction against the row's ground truth.
type Result struct {
	Record     dataset.Record `json:"record"`
	Prediction string         `json:"prediction"`
	Truth      string         `json:"truth"`
	Score      float64        `json:"score"`
}

// inferenceCache is the process-wide memoization table of spec §5: a
// single map shared across every Evaluator instance, keyed by a content
// fingerprint of (model_id, dataset, prompt, metric name) (see cacheKey).
// A cache hit returns the
// previously computed inference list by reference; callers MUST NOT
// mutate it. A single writer per key is sufficient (spec §5), so a plain
// mutex around map access is enough — no per-key locking is needed.
var (
	inferenceCacheMu sync.Mutex
	inferenceCache   = make(map[string][]runner.Result)
)

// Evaluator scores a PromptTemplate against a Dataset for one or more
// model ids, building a fresh InferenceRunner for each uncached call.
// Inference memoization lives in the process-wide inferenceCache, not on the
// Evaluator itself, so that two Evaluator instances built over
// structurally identical dataset/prompt/metric combinations share a cache
// hit (spec §5).
type Evaluator struct {
	Dataset    *dataset.Dataset
	Template   *prompt.Template
	Metric     metric.Metric
	MetricName string

	// OnProgress, if set, is forwarded to the InferenceRunner built for an
	// uncached call so a caller can drive a progress bar. It is never
	// invoked on a cache hit, since no inference runs in that case.
	OnProgress runner.ProgressFunc
}

// New builds an Evaluator over a fixed dataset/prompt/metric combination.
// metricName identifies the metric for cache-key purposes; it need not be
// globally unique, only stable for a given metric.Metric value.
func New(ds *dataset.Dataset, tmpl *prompt.Template, m metric.Metric, metricName string) *Evaluator {
	return &Evaluator{
		Dataset:    ds,
		Template:   tmpl,
		Metric:     m,
		MetricName: metricName,
	}
}

// AggregateScore runs (or reuses cached) inference for modelID and
// returns metric.BatchApply over the resulting predictions/truths.
func (e *Evaluator) AggregateScore(ctx context.Context, adapter *llmadapter.Adapter, modelID string, cfg llmadapter.Config) (float64, error) {
	results, err := e.getOrRunInference(ctx, adapter, modelID, cfg)
	if err != nil {
		return 0, err
	}
	preds := make([]string, 0, len(results))
	truths := make([]string, 0, len(results))
	for _, r := range results {
		_, truth := r.Record.Output()
		preds = append(preds, r.InferenceOutput)
		truths = append(truths, truth)
	}
	return e.Metric.BatchApply(preds, truths), nil
}

// Scores runs (or reuses cached) inference for modelID and returns one
// scored Result per successfully inferred record, applying metric.Apply
// per row.
func (e *Evaluator) Scores(ctx context.Context, adapter *llmadapter.Adapter, modelID string, cfg llmadapter.Config) ([]Result, error) {
	results, err := e.getOrRunInference(ctx, adapter, modelID, cfg)
	if err != nil {
		return nil, err
	}
	out := make([]Result, 0, len(results))
	for _, r := range results {
		_, truth := r.Record.Output()
		out = append(out, Result{
			Record:     r.Record,
			Prediction: r.InferenceOutput,
			Truth:      truth,
			Score:      e.Metric.Apply(r.InferenceOutput, truth),
		})
	}
	return out, nil
}

// getOrRunInference consults the process-wide cache keyed by the content
// fingerprint of (model_id, dataset, prompt, metric name) (spec §4.5). Callers MUST
// NOT mutate the returned slice: a cache hit returns the cached slice by
// reference.
func (e *Evaluator) getOrRunInference(ctx context.Context, adapter *llmadapter.Adapter, modelID string, cfg llmadapter.Config) ([]runner.Result, error) {
	key := cacheKey(modelID, e.Dataset, e.Template, e.MetricName)

	inferenceCacheMu.Lock()
	if cached, ok := inferenceCache[key]; ok {
		inferenceCacheMu.Unlock()
		return cached, nil
	}
	inferenceCacheMu.Unlock()

	r := runner.New(adapter, modelID, cfg)
	r.OnProgress = e.OnProgress
	results := r.Run(ctx, e.Template, e.Dataset)

	inferenceCacheMu.Lock()
	inferenceCache[key] = results
	inferenceCacheMu.Unlock()

	return results, nil
}

// ResetCache clears the process-wide inference cache. Production callers
// never need this; it exists for tests that require independent,
// deterministic call counts against dataset/prompt/metric combinations
// that would otherwise collide with a previous test's cache entry.
func ResetCache() {
	inferenceCacheMu.Lock()
	defer inferenceCacheMu.Unlock()
	inferenceCache = make(map[string][]runner.Result)
}

// Save writes results as one JSON object per line to path, creating
// parent directories as needed. A warning is logged and Save returns nil
// if results is empty; I/O errors propagate.
func Save(path string, results []Result) error {
	log := observability.Log()
	if len(results) == 0 {
		log.Warn().Str("path", path).Msg("eval_save_nothing_to_save")
		return nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create evaluation results dir: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create evaluation results file: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for _, r := range results {
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("write evaluation result: %w", err)
		}
	}
	return nil
}
