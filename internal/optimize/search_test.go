package optimize

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/manifold-labs/promptlab/internal/dataset"
	"github.com/manifold-labs/promptlab/internal/eval"
	"github.com/manifold-labs/promptlab/internal/llmadapter"
	"github.com/manifold-labs/promptlab/internal/metric"
	"github.com/manifold-labs/promptlab/internal/ratelimit"
)

type recordingClient struct {
	infer func(text string) string
}

func (r *recordingClient) Call(ctx context.Context, req llmadapter.CallRequest) (string, error) {
	text := req.Messages[len(req.Messages)-1].Text
	if r.infer != nil {
		return r.infer(text), nil
	}
	return "ok", nil
}

func searchTestDataset(t *testing.T, n int) *dataset.Dataset {
	t.Helper()
	records := make([]dataset.Record, n)
	for i := range records {
		records[i] = dataset.Record{
			Inputs:  map[string]string{"text": "row"},
			Outputs: map[string]string{"label": "cat"},
		}
	}
	ds, err := dataset.New(records, []string{"text"}, []string{"label"})
	require.NoError(t, err)
	return ds
}

func TestSearchOptimizeReturnsBestScoringTemplate(t *testing.T) {
	eval.ResetCache()
	client := &recordingClient{infer: func(string) string { return "cat" }}
	adapter := llmadapter.New(client, ratelimit.New(0))
	o := NewSearch(adapter, adapter, "proposer-model", "task-model", metric.ExactMatch, "exact_match")
	o.rng = rand.New(rand.NewSource(42))
	o.NumCandidates = 2
	o.NumTrials = 3
	o.MaxBootstrappedDemos = 1
	o.MaxLabeledDemos = 1

	tmpl := newTemplate(t)
	train := searchTestDataset(t, 4)
	heldout := searchTestDataset(t, 4)

	out, err := o.Optimize(context.Background(), tmpl, train, heldout)
	require.NoError(t, err)
	require.NotNil(t, out)
	require.Contains(t, out.UserTemplate, "{{text}}")
}

func TestSearchOptimizeRecordsTrialSummariesWithOneWinner(t *testing.T) {
	eval.ResetCache()
	client := &recordingClient{infer: func(string) string { return "cat" }}
	adapter := llmadapter.New(client, ratelimit.New(0))
	o := NewSearch(adapter, adapter, "proposer-model", "task-model", metric.ExactMatch, "exact_match")
	o.rng = rand.New(rand.NewSource(42))
	o.NumCandidates = 2
	o.NumTrials = 3
	o.MaxBootstrappedDemos = 1
	o.MaxLabeledDemos = 1

	tmpl := newTemplate(t)
	train := searchTestDataset(t, 4)
	heldout := searchTestDataset(t, 4)

	_, err := o.Optimize(context.Background(), tmpl, train, heldout)
	require.NoError(t, err)

	require.Len(t, o.Trials, 3)
	winners := 0
	for _, trial := range o.Trials {
		require.NotEmpty(t, trial.ID)
		if trial.Winner {
			winners++
		}
	}
	require.Equal(t, 1, winners)
}

func TestSearchOptimizeWithZeroTrialsReturnsOriginalInstruction(t *testing.T) {
	eval.ResetCache()
	client := &recordingClient{infer: func(string) string { return "cat" }}
	adapter := llmadapter.New(client, ratelimit.New(0))
	o := NewSearch(adapter, adapter, "proposer-model", "task-model", metric.ExactMatch, "exact_match")
	o.rng = rand.New(rand.NewSource(1))
	o.NumTrials = 0

	tmpl := newTemplate(t)
	train := searchTestDataset(t, 2)
	heldout := searchTestDataset(t, 2)

	out, err := o.Optimize(context.Background(), tmpl, train, heldout)
	require.NoError(t, err)
	require.Equal(t, tmpl.SystemTemplate, out.SystemTemplate)
}

func TestSearchOptimizeHonorsMinibatchSize(t *testing.T) {
	eval.ResetCache()
	var evaluated int
	client := &recordingClient{infer: func(string) string {
		evaluated++
		return "cat"
	}}
	adapter := llmadapter.New(client, ratelimit.New(0))
	o := NewSearch(adapter, adapter, "proposer-model", "task-model", metric.ExactMatch, "exact_match")
	o.rng = rand.New(rand.NewSource(7))
	o.NumTrials = 1
	o.MinibatchSize = 2

	tmpl := newTemplate(t)
	train := searchTestDataset(t, 2)
	heldout := searchTestDataset(t, 10)

	_, err := o.Optimize(context.Background(), tmpl, train, heldout)
	require.NoError(t, err)
	// one trial against a 2-record minibatch, plus the winner re-scored
	// against the full 10-record heldout split before being returned.
	require.Equal(t, 12, evaluated)
}
