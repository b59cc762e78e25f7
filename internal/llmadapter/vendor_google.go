package llmadapter

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	genai "google.golang.org/genai"

	"github.com/manifold-labs/promptlab/internal/observability"
)

// googleClient implements ModelClient for Gemini. It is a second concrete
// "otherwise" vendor (spec §4.2): no extra fields added, warning logged
// once per instance, demonstrating the fallback path is genuinely
// vendor-agnostic rather than hardcoded to one SDK.
type googleClient struct {
	client   *genai.Client
	warnOnce sync.Once
}

// NewGoogle builds the Gemini vendor client.
func NewGoogle(ctx context.Context, apiKey, baseURL string, httpClient *http.Client) (ModelClient, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	httpOpts := genai.HTTPOptions{}
	if base := strings.TrimSpace(baseURL); base != "" {
		httpOpts.BaseURL = strings.TrimSuffix(base, "/") + "/"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      strings.TrimSpace(apiKey),
		HTTPClient:  observability.NewHTTPClient(httpClient),
		HTTPOptions: httpOpts,
	})
	if err != nil {
		return nil, fmt.Errorf("init google client: %w", err)
	}
	return &googleClient{client: client}, nil
}

func (c *googleClient) Call(ctx context.Context, req CallRequest) (string, error) {
	c.warnOnce.Do(func() {
		observability.Log().Warn().Str("model", req.ModelID).Msg("llm_adapter_no_vendor_shaping")
	})

	contents := make([]*genai.Content, 0, len(req.Messages))
	for _, m := range req.Messages {
		role := genai.RoleUser
		if m.Role == RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: m.Text}},
		})
	}

	cfg := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(req.Config.MaxTokens),
	}
	if strings.TrimSpace(req.System) != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.System}}}
	}

	log := observability.LoggerWithTrace(ctx)
	resp, err := c.client.Models.GenerateContent(ctx, req.ModelID, contents, cfg)
	if err != nil {
		log.Error().RawJSON("error", observability.RedactError(err)).Str("model", req.ModelID).Msg("google_generate_content_error")
		return "", err
	}
	return textFromResponse(resp)
}

// textFromResponse concatenates the text parts of the first candidate,
// mirroring the teacher's own candidate-walking response parser rather than
// relying on SDK convenience accessors whose exact surface varies by
// version.
func textFromResponse(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("google: no candidates in response")
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	return sb.String(), nil
}
