package llmadapter

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	sdk "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/packages/param"
	"github.com/openai/openai-go/v2/shared"

	"github.com/manifold-labs/promptlab/internal/observability"
)

// openAIClient implements ModelClient for the OpenAI-compatible chat
// completions API. It is also the "otherwise" fallback vendor of spec §4.2:
// no extra fields are added, and a warning is logged once per instance.
type openAIClient struct {
	sdk      sdk.Client
	warnOnce sync.Once
}

// NewOpenAI builds the OpenAI vendor client. baseURL is optional (useful
// for OpenAI-compatible self-hosted gateways); httpClient may be nil.
func NewOpenAI(apiKey, baseURL string, httpClient *http.Client) ModelClient {
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
	return &openAIClient{sdk: sdk.NewClient(opts...)}
}

func (c *openAIClient) Call(ctx context.Context, req CallRequest) (string, error) {
	c.warnOnce.Do(func() {
		observability.Log().Warn().Str("model", req.ModelID).Msg("llm_adapter_no_vendor_shaping")
	})

	params := sdk.ChatCompletionNewParams{
		Model:       shared.ChatModel(req.ModelID),
		Messages:    adaptOpenAIMessages(req.System, req.Messages),
		Temperature: param.NewOpt(req.Config.Temperature),
		TopP:        param.NewOpt(req.Config.TopP),
	}
	if req.Config.MaxTokens > 0 {
		params.MaxTokens = param.NewOpt(int64(req.Config.MaxTokens))
	}

	log := observability.LoggerWithTrace(ctx)
	comp, err := c.sdk.Chat.Completions.New(ctx, params)
	if err != nil {
		log.Error().RawJSON("error", observability.RedactError(err)).Str("model", req.ModelID).Msg("openai_chat_error")
		return "", err
	}
	if len(comp.Choices) == 0 {
		return "", fmt.Errorf("openai: no choices returned")
	}
	return comp.Choices[0].Message.Content, nil
}

func adaptOpenAIMessages(system string, msgs []Message) []sdk.ChatCompletionMessageParamUnion {
	out := make([]sdk.ChatCompletionMessageParamUnion, 0, len(msgs)+1)
	if strings.TrimSpace(system) != "" {
		out = append(out, sdk.SystemMessage(system))
	}
	for _, m := range msgs {
		switch m.Role {
		case RoleAssistant:
			out = append(out, sdk.AssistantMessage(m.Text))
		default:
			out = append(out, sdk.UserMessage(m.Text))
		}
	}
	return out
}
