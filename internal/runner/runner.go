// Package runner executes a PromptTemplate over a Dataset through an
// InferenceAdapter using a bounded worker pool, producing one
// InferenceResult per successfully completed record.
package runner

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/manifold-labs/promptlab/internal/dataset"
	"github.com/manifold-labs/promptlab/internal/llmadapter"
	"github.com/manifold-labs/promptlab/internal/observability"
	"github.com/manifold-labs/promptlab/internal/prompt"
)

// Result pairs a dataset record with the model's rendered output. Index
// preserves the record's position in the dataset so callers that need
// ordering can sort by it — §4.4 guarantees no ordering otherwise.
type Result struct {
	Index           int
	Record          dataset.Record
	InferenceOutput string
}

// ProgressFunc is invoked once per completed task (success or failure),
// after the task resolves, so a caller can drive a progress bar.
type ProgressFunc func(done, total int)

// Runner executes a single template/dataset/adapter combination. It is
// stateless between calls to Run: nothing survives across invocations.
type Runner struct {
	Adapter    *llmadapter.Adapter
	Renderer   *prompt.Renderer
	ModelID    string
	Config     llmadapter.Config
	MaxWorkers int
	OnProgress ProgressFunc
}

// New builds a Runner with the spec's default worker count (4).
func New(adapter *llmadapter.Adapter, modelID string, cfg llmadapter.Config) *Runner {
	return &Runner{
		Adapter:    adapter,
		Renderer:   prompt.NewRenderer(),
		ModelID:    modelID,
		Config:     cfg,
		MaxWorkers: 4,
	}
}

// Run renders and calls the model for every record in ds, one task per
// record, bounded to r.MaxWorkers concurrent tasks (spec §4.4). A
// per-task failure is logged and the record is dropped from the result
// list rather than aborting the run; if every task fails, Run returns an
// empty, non-nil slice.
func (r *Runner) Run(ctx context.Context, tmpl *prompt.Template, ds *dataset.Dataset) []Result {
	maxWorkers := r.MaxWorkers
	if maxWorkers <= 0 {
		maxWorkers = 4
	}

	log := observability.Log()
	total := ds.Len()
	results := make([]Result, 0, total)
	resultsCh := make(chan Result, total)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxWorkers)

	var done int64
	for i, record := range ds.Records {
		i, record := i, record
		g.Go(func() error {
			system, messages, err := r.Renderer.Render(tmpl, record.Inputs)
			if err != nil {
				log.Error().Err(err).Int("record", i).Msg("runner_render_failed")
				r.reportProgress(&done, total)
				return nil
			}

			output, err := r.Adapter.CallModel(gctx, r.ModelID, system, messages, r.Config)
			if err != nil {
				log.Error().Err(err).Int("record", i).Str("model", r.ModelID).Msg("runner_inference_failed")
				r.reportProgress(&done, total)
				return nil
			}

			resultsCh <- Result{Index: i, Record: record, InferenceOutput: output}
			r.reportProgress(&done, total)
			return nil
		})
	}

	_ = g.Wait() // task goroutines never return non-nil errors; failures are swallowed per-task.
	close(resultsCh)
	for res := range resultsCh {
		results = append(results, res)
	}
	return results
}

func (r *Runner) reportProgress(done *int64, total int) {
	if r.OnProgress == nil {
		return
	}
	n := atomic.AddInt64(done, 1)
	r.OnProgress(int(n), total)
}
