package llmadapter

import (
	"context"
	"net/http"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/manifold-labs/promptlab/internal/observability"
)

const defaultAnthropicMaxTokens int64 = 1024

// anthropicClient implements ModelClient for Anthropic's Messages API. Per
// spec §4.2, model ids containing "anthropic" add a top_k field via
// SetExtraFields — the only vendor shaping this client performs.
type anthropicClient struct {
	sdk sdk.Client
}

// NewAnthropic builds the Anthropic vendor client.
func NewAnthropic(apiKey, baseURL string, httpClient *http.Client) ModelClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(observability.NewHTTPClient(httpClient)),
	}
	if base := strings.TrimSpace(baseURL); base != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimSuffix(base, "/")))
	}
	return &anthropicClient{sdk: sdk.NewClient(opts...)}
}

func (c *anthropicClient) Call(ctx context.Context, req CallRequest) (string, error) {
	maxTokens := defaultAnthropicMaxTokens
	if req.Config.MaxTokens > 0 {
		maxTokens = int64(req.Config.MaxTokens)
	}

	params := sdk.MessageNewParams{
		Model:     sdk.Model(req.ModelID),
		Messages:  adaptAnthropicMessages(req.Messages),
		MaxTokens: maxTokens,
	}
	if strings.TrimSpace(req.System) != "" {
		params.System = []sdk.TextBlockParam{{Text: req.System}}
	}
	if strings.Contains(strings.ToLower(req.ModelID), "anthropic") && req.Config.TopK > 0 {
		params.SetExtraFields(map[string]any{"top_k": req.Config.TopK})
	}

	log := observability.LoggerWithTrace(ctx)
	resp, err := c.sdk.Messages.New(ctx, params)
	if err != nil {
		log.Error().RawJSON("error", observability.RedactError(err)).Str("model", req.ModelID).Msg("anthropic_chat_error")
		return "", err
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return text.String(), nil
}

func adaptAnthropicMessages(msgs []Message) []sdk.MessageParam {
	out := make([]sdk.MessageParam, 0, len(msgs))
	for _, m := range msgs {
		block := sdk.NewTextBlock(m.Text)
		if m.Role == RoleAssistant {
			out = append(out, sdk.NewAssistantMessage(block))
		} else {
			out = append(out, sdk.NewUserMessage(block))
		}
	}
	return out
}
