package llmadapter

import "context"

// CallRequest is the vendor-agnostic model call contract of spec §6: no
// vendor-specific fields ever cross this boundary.
type CallRequest struct {
	ModelID  string
	System   string
	Messages []Message
	Config   Config
}

// ModelClient is the thin per-vendor transport: one blocking call that
// returns decoded text or a classified error (see Classify in errors.go).
// Vendor request shaping (spec §4.2) happens entirely inside the
// implementation; ModelClient never leaks vendor fields to its caller.
type ModelClient interface {
	Call(ctx context.Context, req CallRequest) (string, error)
}
