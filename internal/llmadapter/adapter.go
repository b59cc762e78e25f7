package llmadapter

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/manifold-labs/promptlab/internal/observability"
	"github.com/manifold-labs/promptlab/internal/promptlaberrors"
	"github.com/manifold-labs/promptlab/internal/ratelimit"
)

// Adapter implements the InferenceAdapter contract of spec §4.2: a
// synchronous call that is internally rate-limited and retries retryable
// upstream failures with exponential backoff + jitter, wrapping a single
// vendor ModelClient.
type Adapter struct {
	client         ModelClient
	limiter        *ratelimit.Limiter
	maxRetries     int
	initialBackoff time.Duration

	sleepFunc func(time.Duration)
	randFunc  func() float64
}

// Option configures an Adapter at construction.
type Option func(*Adapter)

// WithMaxRetries overrides the default retry budget (5).
func WithMaxRetries(n int) Option { return func(a *Adapter) { a.maxRetries = n } }

// WithInitialBackoff overrides the default initial backoff (1s).
func WithInitialBackoff(d time.Duration) Option { return func(a *Adapter) { a.initialBackoff = d } }

// New builds an Adapter over the given vendor client and rate limiter.
func New(client ModelClient, limiter *ratelimit.Limiter, opts ...Option) *Adapter {
	a := &Adapter{
		client:         client,
		limiter:        limiter,
		maxRetries:     5,
		initialBackoff: time.Second,
		sleepFunc:      time.Sleep,
		randFunc:       rand.Float64,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// CallModel applies the rate limiter, then calls the wrapped vendor client,
// retrying retryable upstream errors with exponential backoff + jitter
// (spec §4.2): wait(k) = initial_backoff * 2^k + uniform(0,1) for the k-th
// retry (0-indexed). Capped at max_retries total attempts (spec §4.2, §8
// Scenario 4); a budget below 1 still makes one attempt. Fatal errors
// (including ContextWindowExceeded) propagate immediately without ever
// being retried.
func (a *Adapter) CallModel(ctx context.Context, modelID, system string, messages []Message, cfg Config) (string, error) {
	log := observability.Log()
	maxAttempts := a.maxRetries
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		a.limiter.Apply()

		callCtx, span := StartCallSpan(ctx, modelID, attempt)
		start := time.Now()
		text, err := a.client.Call(callCtx, CallRequest{ModelID: modelID, System: system, Messages: messages, Config: cfg})
		elapsed := time.Since(start)
		if err == nil {
			recordAttempt(ctx, modelID, KindFatal, elapsed, false)
			span.End()
			return text, nil
		}

		kind := Classify(err)
		recordAttempt(ctx, modelID, kind, elapsed, kind.Retryable())
		RecordCallError(span, err)
		span.End()
		if !kind.Retryable() {
			log.Error().RawJSON("error", observability.RedactError(err)).Str("model", modelID).Msg("llm_call_fatal")
			if kind == KindContextWindowExceeded {
				return "", fmt.Errorf("%w: %v", promptlaberrors.ErrContextWindowExceeded, err)
			}
			return "", err
		}

		lastErr = err
		if attempt == maxAttempts-1 {
			break
		}

		wait := a.backoff(attempt)
		log.Warn().RawJSON("error", observability.RedactError(err)).Str("model", modelID).Int("attempt", attempt).Dur("backoff", wait).Msg("llm_call_retrying")
		a.sleepFunc(wait)
	}

	return "", fmt.Errorf("%w: %v", promptlaberrors.ErrMaxRetriesExceeded, lastErr)
}

// backoff computes wait(k) = initial_backoff * 2^k + uniform(0,1) seconds
// for the k-th retry (0-indexed), per spec §4.2.
func (a *Adapter) backoff(attempt int) time.Duration {
	seconds := a.initialBackoff.Seconds()*math.Pow(2, float64(attempt)) + a.randFunc()
	return time.Duration(seconds * float64(time.Second))
}
