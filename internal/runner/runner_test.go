package runner

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/manifold-labs/promptlab/internal/dataset"
	"github.com/manifold-labs/promptlab/internal/llmadapter"
	"github.com/manifold-labs/promptlab/internal/prompt"
	"github.com/manifold-labs/promptlab/internal/ratelimit"
)

type fakeModelClient struct {
	fail func(req llmadapter.CallRequest) bool
}

func (f *fakeModelClient) Call(ctx context.Context, req llmadapter.CallRequest) (string, error) {
	if f.fail != nil && f.fail(req) {
		return "", errors.New("bad request: simulated failure")
	}
	return "echo:" + req.Messages[len(req.Messages)-1].Text, nil
}

func newTestDataset(t *testing.T, n int) *dataset.Dataset {
	t.Helper()
	records := make([]dataset.Record, n)
	for i := range records {
		records[i] = dataset.Record{
			Inputs:  map[string]string{"text": "row"},
			Outputs: map[string]string{"label": "row"},
		}
	}
	ds, err := dataset.New(records, []string{"text"}, []string{"label"})
	require.NoError(t, err)
	return ds
}

func testTemplate(t *testing.T) *prompt.Template {
	t.Helper()
	tmpl, err := prompt.New("", nil, "Classify: {{text}}", []string{"text"}, prompt.FewShot{})
	require.NoError(t, err)
	return tmpl
}

func TestRunProducesOneResultPerRecord(t *testing.T) {
	client := &fakeModelClient{}
	adapter := llmadapter.New(client, ratelimit.New(0))
	r := New(adapter, "gpt-test", llmadapter.Config{})

	ds := newTestDataset(t, 10)
	results := r.Run(context.Background(), testTemplate(t), ds)

	require.Len(t, results, 10)
	seen := make(map[int]bool)
	for _, res := range results {
		require.False(t, seen[res.Index])
		seen[res.Index] = true
	}
}

func TestRunDropsFailedRecordsWithoutAborting(t *testing.T) {
	var calls int64
	client := &fakeModelClient{fail: func(req llmadapter.CallRequest) bool {
		n := atomic.AddInt64(&calls, 1)
		return n%2 == 0
	}}
	adapter := llmadapter.New(client, ratelimit.New(0), llmadapter.WithMaxRetries(0))
	r := New(adapter, "gpt-test", llmadapter.Config{})

	ds := newTestDataset(t, 10)
	results := r.Run(context.Background(), testTemplate(t), ds)

	require.Less(t, len(results), 10)
	require.NotEmpty(t, results)
}

func TestRunAllFailuresReturnsEmptySlice(t *testing.T) {
	client := &fakeModelClient{fail: func(req llmadapter.CallRequest) bool { return true }}
	adapter := llmadapter.New(client, ratelimit.New(0), llmadapter.WithMaxRetries(0))
	r := New(adapter, "gpt-test", llmadapter.Config{})

	ds := newTestDataset(t, 5)
	results := r.Run(context.Background(), testTemplate(t), ds)

	require.Len(t, results, 0)
}

func TestRunInvokesProgressCallbackOncePerTask(t *testing.T) {
	client := &fakeModelClient{}
	adapter := llmadapter.New(client, ratelimit.New(0))
	r := New(adapter, "gpt-test", llmadapter.Config{})

	var progressCalls int64
	r.OnProgress = func(done, total int) {
		atomic.AddInt64(&progressCalls, 1)
		require.Equal(t, 6, total)
	}

	ds := newTestDataset(t, 6)
	r.Run(context.Background(), testTemplate(t), ds)

	require.Equal(t, int64(6), progressCalls)
}

func TestRunRespectsMaxWorkersBound(t *testing.T) {
	var inFlight, maxInFlight int64
	client := &fakeModelClient{fail: func(req llmadapter.CallRequest) bool {
		n := atomic.AddInt64(&inFlight, 1)
		for {
			cur := atomic.LoadInt64(&maxInFlight)
			if n <= cur || atomic.CompareAndSwapInt64(&maxInFlight, cur, n) {
				break
			}
		}
		atomic.AddInt64(&inFlight, -1)
		return true // short-circuit via "failure" so the test client stays fast
	}}
	adapter := llmadapter.New(client, ratelimit.New(0), llmadapter.WithMaxRetries(0))
	r := New(adapter, "gpt-test", llmadapter.Config{})
	r.MaxWorkers = 2

	ds := newTestDataset(t, 20)
	r.Run(context.Background(), testTemplate(t), ds)

	require.LessOrEqual(t, atomic.LoadInt64(&maxInFlight), int64(2))
}
