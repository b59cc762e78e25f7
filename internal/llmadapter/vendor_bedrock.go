package llmadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/aws/smithy-go/document"

	"github.com/manifold-labs/promptlab/internal/observability"
)

// bedrockNovaClient implements ModelClient for AWS Bedrock's Converse API,
// the vendor selected when a model id contains "nova" (spec §4.2). It adds
// inferenceConfig.topK to the Bedrock request — the one piece of vendor
// shaping this path performs.
type bedrockNovaClient struct {
	runtime *bedrockruntime.Client
}

// NewBedrockNova builds the AWS Bedrock vendor client for Nova models,
// reusing the same aws-sdk-go-v2 credential/config chain the teacher wires
// for its S3 client.
func NewBedrockNova(ctx context.Context, region string) (ModelClient, error) {
	opts := []func(*awsconfig.LoadOptions) error{}
	if strings.TrimSpace(region) != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &bedrockNovaClient{runtime: bedrockruntime.NewFromConfig(cfg)}, nil
}

func (c *bedrockNovaClient) Call(ctx context.Context, req CallRequest) (string, error) {
	converseMessages := make([]types.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		role := types.ConversationRoleUser
		if m.Role == RoleAssistant {
			role = types.ConversationRoleAssistant
		}
		converseMessages = append(converseMessages, types.Message{
			Role:    role,
			Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: m.Text}},
		})
	}

	input := &bedrockruntime.ConverseInput{
		ModelId:  aws.String(req.ModelID),
		Messages: converseMessages,
		InferenceConfig: &types.InferenceConfiguration{
			MaxTokens:   aws.Int32(int32(req.Config.MaxTokens)),
			Temperature: aws.Float32(float32(req.Config.Temperature)),
			TopP:        aws.Float32(float32(req.Config.TopP)),
		},
	}
	if strings.TrimSpace(req.System) != "" {
		input.System = []types.SystemContentBlock{&types.SystemContentBlockMemberText{Value: req.System}}
	}
	if strings.Contains(strings.ToLower(req.ModelID), "nova") && req.Config.TopK > 0 {
		extra, _ := json.Marshal(map[string]any{"inferenceConfig": map[string]any{"topK": req.Config.TopK}})
		input.AdditionalModelRequestFields = document.NewLazyDocument(json.RawMessage(extra))
	}

	log := observability.LoggerWithTrace(ctx)
	out, err := c.runtime.Converse(ctx, input)
	if err != nil {
		log.Error().RawJSON("error", observability.RedactError(err)).Str("model", req.ModelID).Msg("bedrock_converse_error")
		return "", err
	}

	response, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return "", fmt.Errorf("bedrock: unexpected converse output shape")
	}
	var text strings.Builder
	for _, block := range response.Value.Content {
		if tb, ok := block.(*types.ContentBlockMemberText); ok {
			text.WriteString(tb.Value)
		}
	}
	return text.String(), nil
}
