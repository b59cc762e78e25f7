package llmadapter

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/manifold-labs/promptlab/internal/config"
	"github.com/manifold-labs/promptlab/internal/ratelimit"
)

// Build selects and constructs the vendor ModelClient for modelID by
// substring match (spec §4.2): ids containing "nova" route to Bedrock,
// ids containing "anthropic" route to Anthropic, "google" or "gemini"
// routes to Gemini, and anything else falls back to the OpenAI-compatible
// client. The match is deliberately loose: it is meant to pick a wire
// shape, not validate that modelID names a real model for that vendor.
func Build(ctx context.Context, modelID string, cfg config.Config) (ModelClient, error) {
	id := strings.ToLower(modelID)
	httpClient := &http.Client{Timeout: 2 * time.Minute}

	switch {
	case strings.Contains(id, "nova"):
		vc := cfg.Vendors["bedrock"]
		return NewBedrockNova(ctx, vc.Region)
	case strings.Contains(id, "anthropic"):
		vc := cfg.Vendors["anthropic"]
		return NewAnthropic(vc.APIKey, vc.BaseURL, httpClient), nil
	case strings.Contains(id, "google"), strings.Contains(id, "gemini"):
		vc := cfg.Vendors["google"]
		return NewGoogle(ctx, vc.APIKey, vc.BaseURL, httpClient)
	default:
		vc := cfg.Vendors["openai"]
		return NewOpenAI(vc.APIKey, vc.BaseURL, httpClient), nil
	}
}

// BuildAdapter wraps the vendor client selected for modelID with the
// shared rate limiter and the configured retry budget, producing the
// InferenceAdapter used by the runner.
func BuildAdapter(ctx context.Context, modelID string, cfg config.Config, limiter *ratelimit.Limiter) (*Adapter, error) {
	client, err := Build(ctx, modelID, cfg)
	if err != nil {
		return nil, fmt.Errorf("build vendor client for %q: %w", modelID, err)
	}
	opts := []Option{}
	if cfg.Retry.MaxRetries > 0 {
		opts = append(opts, WithMaxRetries(cfg.Retry.MaxRetries))
	}
	if cfg.Retry.InitialBackoff > 0 {
		opts = append(opts, WithInitialBackoff(time.Duration(cfg.Retry.InitialBackoff*float64(time.Second))))
	}
	return New(client, limiter, opts...), nil
}
