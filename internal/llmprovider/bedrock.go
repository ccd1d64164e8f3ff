package llmprovider

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/brandlll-lee/cokra/internal/protocol"
)

// BedrockConfig configures the AWS Bedrock Converse-stream adapter.
type BedrockConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	DefaultModel    string
	RetryConfig
}

type bedrockClient struct {
	client       *bedrockruntime.Client
	defaultModel string
	retry        RetryConfig
}

// NewBedrock builds a turnexec.ModelClient over AWS Bedrock's Converse
// streaming API.
func NewBedrock(cfg BedrockConfig) (Adapter, error) {
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "anthropic.claude-3-sonnet-20240229-v1:0"
	}

	var awsCfg aws.Config
	var err error
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		awsCfg, err = awsconfig.LoadDefaultConfig(context.Background(),
			awsconfig.WithRegion(cfg.Region),
			awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken,
			)),
		)
	} else {
		awsCfg, err = awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(cfg.Region))
	}
	if err != nil {
		return Adapter{}, fmt.Errorf("bedrock: failed to load AWS config: %w", err)
	}

	return Adapter{&bedrockClient{
		client:       bedrockruntime.NewFromConfig(awsCfg),
		defaultModel: cfg.DefaultModel,
		retry:        cfg.RetryConfig,
	}}, nil
}

func (c *bedrockClient) ChatCompletionStream(ctx context.Context, req protocol.ChatRequest) (<-chan protocol.Chunk, error) {
	model := req.Model
	if model == "" {
		model = c.defaultModel
	}

	messages, system := convertBedrockMessages(req.Messages)
	converseReq := &bedrockruntime.ConverseStreamInput{
		ModelId:  aws.String(model),
		Messages: messages,
	}
	if system != "" {
		converseReq.System = []types.SystemContentBlock{&types.SystemContentBlockMemberText{Value: system}}
	}
	if req.MaxTokens != nil && *req.MaxTokens > 0 {
		converseReq.InferenceConfig = &types.InferenceConfiguration{MaxTokens: aws.Int32(int32(*req.MaxTokens))}
	}
	if len(req.Tools) > 0 {
		converseReq.ToolConfig = bedrockToolConfig(req.Tools)
	}

	var raw *bedrockruntime.ConverseStreamOutput
	err := Retry(ctx, c.retry, isRetryableBedrockError, func() error {
		out, err := c.client.ConverseStream(ctx, converseReq)
		if err != nil {
			return err
		}
		raw = out
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("bedrock: %w", err)
	}

	out := make(chan protocol.Chunk)
	go processBedrockStream(ctx, raw, out)
	return out, nil
}

func convertBedrockMessages(messages []protocol.Message) ([]types.Message, string) {
	var system string
	result := make([]types.Message, 0, len(messages))

	for _, m := range messages {
		if m.Role == protocol.MessageSystem {
			if system == "" {
				system = m.Content
			}
			continue
		}

		var content []types.ContentBlock
		if m.Content != "" {
			content = append(content, &types.ContentBlockMemberText{Value: m.Content})
		}

		if m.Role == protocol.MessageTool {
			content = append(content, &types.ContentBlockMemberToolResult{
				Value: types.ToolResultBlock{
					ToolUseId: aws.String(m.ToolCallId),
					Content:   []types.ToolResultContentBlock{&types.ToolResultContentBlockMemberText{Value: m.Content}},
				},
			})
		}

		for _, tc := range m.ToolCalls {
			var input any
			if err := json.Unmarshal([]byte(tc.Arguments), &input); err != nil {
				input = map[string]any{}
			}
			content = append(content, &types.ContentBlockMemberToolUse{
				Value: types.ToolUseBlock{
					ToolUseId: aws.String(tc.Id),
					Name:      aws.String(tc.Name),
					Input:     document.NewLazyDocument(input),
				},
			})
		}

		if len(content) == 0 {
			continue
		}
		role := types.ConversationRoleUser
		if m.Role == protocol.MessageAssistant {
			role = types.ConversationRoleAssistant
		}
		result = append(result, types.Message{Role: role, Content: content})
	}

	return result, system
}

func bedrockToolConfig(specs []protocol.ToolSpec) *types.ToolConfiguration {
	tools := make([]types.Tool, 0, len(specs))
	for _, spec := range specs {
		var schema any
		raw, _ := json.Marshal(spec.InputSchema)
		if err := json.Unmarshal(raw, &schema); err != nil {
			schema = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		tools = append(tools, &types.ToolMemberToolSpec{
			Value: types.ToolSpecification{
				Name:        aws.String(spec.Name),
				Description: aws.String(spec.Description),
				InputSchema: &types.ToolInputSchemaMemberJson{Value: document.NewLazyDocument(schema)},
			},
		})
	}
	return &types.ToolConfiguration{Tools: tools}
}

// processBedrockStream mirrors internal/agent/providers/bedrock.go's
// processStream, emitting protocol.Chunk off the Converse event union.
func processBedrockStream(ctx context.Context, raw *bedrockruntime.ConverseStreamOutput, out chan<- protocol.Chunk) {
	defer close(out)

	eventStream := raw.GetStream()
	defer eventStream.Close()

	var toolId, toolName string
	var toolArgs strings.Builder
	var usage protocol.TokenUsage

	events := eventStream.Events()
	for {
		select {
		case <-ctx.Done():
			out <- protocol.Chunk{Type: protocol.ChunkError, Message: ctx.Err().Error()}
			return
		case event, ok := <-events:
			if !ok {
				if err := eventStream.Err(); err != nil {
					out <- protocol.Chunk{Type: protocol.ChunkError, Message: err.Error()}
				} else {
					out <- protocol.Chunk{Type: protocol.ChunkMessageStop, Usage: &usage}
				}
				return
			}

			switch ev := event.(type) {
			case *types.ConverseStreamOutputMemberContentBlockStart:
				if tu, ok := ev.Value.Start.(*types.ContentBlockStartMemberToolUse); ok {
					toolId = aws.ToString(tu.Value.ToolUseId)
					toolName = aws.ToString(tu.Value.Name)
					toolArgs.Reset()
				}

			case *types.ConverseStreamOutputMemberContentBlockDelta:
				switch delta := ev.Value.Delta.(type) {
				case *types.ContentBlockDeltaMemberText:
					if delta.Value != "" {
						out <- protocol.Chunk{Type: protocol.ChunkContent, Delta: delta.Value}
					}
				case *types.ContentBlockDeltaMemberToolUse:
					if delta.Value.Input != nil {
						toolArgs.WriteString(*delta.Value.Input)
					}
				}

			case *types.ConverseStreamOutputMemberContentBlockStop:
				if toolId != "" {
					out <- protocol.Chunk{Type: protocol.ChunkToolCall, Tool: &protocol.ToolCallDelta{
						Id: toolId, Name: toolName, Arguments: toolArgs.String(),
					}}
					toolId, toolName = "", ""
					toolArgs.Reset()
				}

			case *types.ConverseStreamOutputMemberMessageStop:
				out <- protocol.Chunk{Type: protocol.ChunkMessageStop, Usage: &usage}
				return

			case *types.ConverseStreamOutputMemberMetadata:
				// Usage metadata is available here but the Converse
				// event shape varies by SDK minor version; token
				// accounting for Bedrock falls back to the turn
				// executor's own accumulation instead.
				_ = ev
			}
		}
	}
}

func isRetryableBedrockError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "ThrottlingException") || strings.Contains(msg, "ServiceUnavailable") ||
		strings.Contains(msg, "InternalServerException") || strings.Contains(msg, "timeout")
}
