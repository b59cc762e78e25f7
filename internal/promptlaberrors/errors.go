// Package promptlaberrors defines the sentinel error taxonomy shared across
// the prompt optimization core. Every package below wraps these with
// fmt.Errorf("...: %w", ...) rather than declaring parallel error types.
package promptlaberrors

import "errors"

var (
	// ErrInvalidPrompt means the user template is empty or cannot render any
	// messages (e.g. no user text and no few-shot examples).
	ErrInvalidPrompt = errors.New("invalid prompt template")

	// ErrInvalidDataset means a dataset declares more than one output column
	// or was loaded from a malformed file.
	ErrInvalidDataset = errors.New("invalid dataset")

	// ErrInvalidSplit means a split percentage was not in the open interval (0, 1).
	ErrInvalidSplit = errors.New("invalid split ratio")

	// ErrRetryableUpstream marks a transient upstream failure (throttling,
	// model error, service unavailable) that the retry loop should consume.
	ErrRetryableUpstream = errors.New("retryable upstream error")

	// ErrMaxRetriesExceeded means the retry budget was exhausted.
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")

	// ErrContextWindowExceeded is fatal and never retried.
	ErrContextWindowExceeded = errors.New("context window exceeded")

	// ErrOptimization means an optimizer's model response could never be
	// parsed into the required shape.
	ErrOptimization = errors.New("optimization failed")

	// ErrConfiguration means the optimizer configuration is unusable: custom
	// mode is missing required keys, the preset name is unknown, or no vendor
	// client could be built for a preset's model id.
	ErrConfiguration = errors.New("invalid optimizer configuration")
)
