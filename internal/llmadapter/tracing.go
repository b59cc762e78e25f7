package llmadapter

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/manifold-labs/promptlab/internal/observability"
)

var (
	instrumentsOnce  sync.Once
	retryCounter     otelmetric.Int64Counter
	callLatencyHisto otelmetric.Float64Histogram
)

// ensureInstruments lazily creates the adapter's metric instruments once a
// MeterProvider has been installed (InitOTel should run before the first
// call in normal startup; before that these are harmless no-ops).
func ensureInstruments() {
	instrumentsOnce.Do(func() {
		m := otel.Meter("internal/llmadapter")
		var err error
		retryCounter, err = m.Int64Counter("llmadapter.retries", otelmetric.WithDescription("Count of retried inference calls by classified error kind"))
		if err != nil {
			retryCounter = nil
		}
		callLatencyHisto, err = m.Float64Histogram("llmadapter.call_latency_seconds", otelmetric.WithDescription("Wall-clock latency of a single vendor call attempt, in seconds"))
		if err != nil {
			callLatencyHisto = nil
		}
	})
}

// StartCallSpan starts a tracer span for one CallModel invocation and sets
// attributes common to every vendor.
func StartCallSpan(ctx context.Context, modelID string, attempt int) (context.Context, trace.Span) {
	ctx, span := otel.Tracer("internal/llmadapter").Start(ctx, "llm_call")
	span.SetAttributes(attribute.String("llm.model", modelID), attribute.Int("llm.attempt", attempt))
	return ctx, span
}

// RecordCallError attaches err to span as a span event, with its message
// wrapped by observability.RedactError. That wrapper redacts by JSON key
// name only, so text echoed inside the message reaches the span unchanged.
func RecordCallError(span trace.Span, err error) {
	span.RecordError(errors.New(string(observability.RedactError(err))))
}

// recordAttempt emits the per-attempt latency histogram and, for retried
// attempts, bumps the retry counter tagged with the classified error kind.
func recordAttempt(ctx context.Context, modelID string, kind UpstreamErrorKind, elapsed time.Duration, retried bool) {
	ensureInstruments()
	if callLatencyHisto != nil {
		callLatencyHisto.Record(ctx, elapsed.Seconds(), otelmetric.WithAttributes(attribute.String("llm.model", modelID)))
	}
	if retried && retryCounter != nil {
		retryCounter.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("llm.model", modelID), attribute.String("llm.error_kind", kind.String())))
	}
}
