package llmadapter

import (
	"errors"
	"strings"

	"github.com/manifold-labs/promptlab/internal/promptlaberrors"
)

// UpstreamErrorKind classifies a vendor error into the three retryable
// upstream conditions of spec §4.2, the fatal context-window condition, or
// a generic fatal kind.
type UpstreamErrorKind int

const (
	// KindFatal is never retried (credentials, bad request, anything else
	// unclassified).
	KindFatal UpstreamErrorKind = iota
	// KindThrottling means the vendor rate-limited the request.
	KindThrottling
	// KindModelError means the vendor's model itself failed transiently.
	KindModelError
	// KindServiceUnavailable means the vendor's service was unreachable/5xx.
	KindServiceUnavailable
	// KindContextWindowExceeded is fatal and never triggers retry/fallback
	// loops, per spec §7.
	KindContextWindowExceeded
)

// String renders the kind for log fields and metric attributes.
func (k UpstreamErrorKind) String() string {
	switch k {
	case KindThrottling:
		return "throttling"
	case KindModelError:
		return "model_error"
	case KindServiceUnavailable:
		return "service_unavailable"
	case KindContextWindowExceeded:
		return "context_window_exceeded"
	default:
		return "fatal"
	}
}

// Retryable reports whether the retry loop should consume this kind.
func (k UpstreamErrorKind) Retryable() bool {
	switch k {
	case KindThrottling, KindModelError, KindServiceUnavailable:
		return true
	default:
		return false
	}
}

// Classify maps a raw vendor error into an UpstreamErrorKind using the
// substring heuristics vendors commonly surface in HTTP status text and SDK
// error messages. Each vendor_*.go file may wrap its raw SDK error with a
// more precise classification first; Classify is the fallback used when a
// vendor client doesn't special-case its own error types.
func Classify(err error) UpstreamErrorKind {
	if err == nil {
		return KindFatal
	}
	var classified interface{ UpstreamKind() UpstreamErrorKind }
	if errors.As(err, &classified) {
		return classified.UpstreamKind()
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "context window") || strings.Contains(msg, "context_length_exceeded") || strings.Contains(msg, "maximum context length"):
		return KindContextWindowExceeded
	case strings.Contains(msg, "throttl") || strings.Contains(msg, "rate limit") || strings.Contains(msg, "too many requests") || strings.Contains(msg, "429"):
		return KindThrottling
	case strings.Contains(msg, "service unavailable") || strings.Contains(msg, "503") || strings.Contains(msg, "timeout") || strings.Contains(msg, "connection reset"):
		return KindServiceUnavailable
	case strings.Contains(msg, "model error") || strings.Contains(msg, "internal server error") || strings.Contains(msg, "500") || strings.Contains(msg, "502"):
		return KindModelError
	default:
		return KindFatal
	}
}

// classifiedError lets a vendor wrap its SDK error with a known kind without
// losing the underlying error for logging (errors.Is/As still work).
type classifiedError struct {
	kind UpstreamErrorKind
	err  error
}

func (c *classifiedError) Error() string                   { return c.err.Error() }
func (c *classifiedError) Unwrap() error                   { return c.err }
func (c *classifiedError) UpstreamKind() UpstreamErrorKind { return c.kind }

func wrapKind(kind UpstreamErrorKind, err error) error {
	if err == nil {
		return nil
	}
	return &classifiedError{kind: kind, err: err}
}

