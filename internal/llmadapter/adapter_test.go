package llmadapter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/manifold-labs/promptlab/internal/promptlaberrors"
	"github.com/manifold-labs/promptlab/internal/ratelimit"
)

type fakeClient struct {
	calls   int
	respond func(call int) (string, error)
}

func (f *fakeClient) Call(ctx context.Context, req CallRequest) (string, error) {
	f.calls++
	return f.respond(f.calls)
}

func noSleepLimiter() *ratelimit.Limiter {
	l := ratelimit.New(0) // disabled: passthrough, no sleep
	return l
}

func TestCallModelRetriesThenSucceeds(t *testing.T) {
	client := &fakeClient{respond: func(call int) (string, error) {
		if call < 3 {
			return "", wrapKind(KindThrottling, errors.New("throttled"))
		}
		return "ok", nil
	}}
	a := New(client, noSleepLimiter(), WithMaxRetries(5))
	a.sleepFunc = func(time.Duration) {}

	out, err := a.CallModel(context.Background(), "m", "sys", nil, Config{})
	require.NoError(t, err)
	require.Equal(t, "ok", out)
	require.Equal(t, 3, client.calls)
}

func TestCallModelExhaustsRetries(t *testing.T) {
	client := &fakeClient{respond: func(call int) (string, error) {
		return "", wrapKind(KindThrottling, errors.New("throttled forever"))
	}}
	a := New(client, noSleepLimiter(), WithMaxRetries(3))
	a.sleepFunc = func(time.Duration) {}

	_, err := a.CallModel(context.Background(), "m", "sys", nil, Config{})
	require.ErrorIs(t, err, promptlaberrors.ErrMaxRetriesExceeded)
	require.Equal(t, 3, client.calls) // capped at max_retries total attempts
}

func TestCallModelFatalErrorNeverRetries(t *testing.T) {
	client := &fakeClient{respond: func(call int) (string, error) {
		return "", errors.New("bad request: invalid api key")
	}}
	a := New(client, noSleepLimiter(), WithMaxRetries(5))
	a.sleepFunc = func(time.Duration) {}

	_, err := a.CallModel(context.Background(), "m", "sys", nil, Config{})
	require.Error(t, err)
	require.NotErrorIs(t, err, promptlaberrors.ErrMaxRetriesExceeded)
	require.Equal(t, 1, client.calls)
}

func TestCallModelContextWindowExceededNeverRetries(t *testing.T) {
	client := &fakeClient{respond: func(call int) (string, error) {
		return "", wrapKind(KindContextWindowExceeded, errors.New("maximum context length exceeded"))
	}}
	a := New(client, noSleepLimiter(), WithMaxRetries(5))
	a.sleepFunc = func(time.Duration) {}

	_, err := a.CallModel(context.Background(), "m", "sys", nil, Config{})
	require.ErrorIs(t, err, promptlaberrors.ErrContextWindowExceeded)
	require.Equal(t, 1, client.calls)
}

func TestBackoffGrowsExponentially(t *testing.T) {
	a := New(&fakeClient{}, noSleepLimiter(), WithInitialBackoff(time.Second))
	a.randFunc = func() float64 { return 0 }
	require.Equal(t, time.Second, a.backoff(0))
	require.Equal(t, 2*time.Second, a.backoff(1))
	require.Equal(t, 4*time.Second, a.backoff(2))
}
