package llmprovider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	"github.com/brandlll-lee/cokra/internal/protocol"
	"github.com/brandlll-lee/cokra/internal/transform"
)

// AnthropicConfig configures an Anthropic chat_completion_stream adapter.
type AnthropicConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
	RetryConfig
}

// anthropicClient is the chat_completion_stream implementation wired to
// anthropic-sdk-go's streaming Messages API.
type anthropicClient struct {
	client       anthropic.Client
	defaultModel string
	retry        RetryConfig
}

// NewAnthropic builds a turnexec.ModelClient for Anthropic's Messages API,
// deriving responses_stream via Adapter.
func NewAnthropic(cfg AnthropicConfig) Adapter {
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "claude-sonnet-4-20250514"
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return Adapter{&anthropicClient{
		client:       anthropic.NewClient(opts...),
		defaultModel: cfg.DefaultModel,
		retry:        cfg.RetryConfig,
	}}
}

func (a *anthropicClient) ChatCompletionStream(ctx context.Context, req protocol.ChatRequest) (<-chan protocol.Chunk, error) {
	params, err := a.buildParams(req)
	if err != nil {
		return nil, fmt.Errorf("anthropic: %w", err)
	}

	var raw *ssestream.Stream[anthropic.MessageStreamEventUnion]
	err = Retry(ctx, a.retry, isRetryableAnthropicError, func() error {
		raw = a.client.Messages.NewStreaming(ctx, params)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic: %w", err)
	}

	out := make(chan protocol.Chunk)
	go processAnthropicStream(raw, out)
	return out, nil
}

func (a *anthropicClient) buildParams(req protocol.ChatRequest) (anthropic.MessageNewParams, error) {
	model := req.Model
	if model == "" {
		model = a.defaultModel
	}
	converted, err := transform.ToAnthropic(req.Messages, transform.AnthropicProfile)
	if err != nil {
		return anthropic.MessageNewParams{}, err
	}

	messages := make([]anthropic.MessageParam, 0, len(converted.Messages))
	for _, m := range converted.Messages {
		blocks := make([]anthropic.ContentBlockParamUnion, 0, len(m.Content))
		for _, b := range m.Content {
			switch b.Type {
			case "text":
				blocks = append(blocks, anthropic.NewTextBlock(b.Text))
			case "tool_use":
				var input any
				_ = json.Unmarshal(b.Input, &input)
				blocks = append(blocks, anthropic.NewToolUseBlock(b.Id, input, b.Name))
			case "tool_result":
				blocks = append(blocks, anthropic.NewToolResultBlock(b.ToolUseId, b.Content, false))
			}
		}
		if m.Role == "assistant" {
			messages = append(messages, anthropic.NewAssistantMessage(blocks...))
		} else {
			messages = append(messages, anthropic.NewUserMessage(blocks...))
		}
	}

	maxTokens := int64(4096)
	if req.MaxTokens != nil && *req.MaxTokens > 0 {
		maxTokens = int64(*req.MaxTokens)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		Messages:  messages,
		MaxTokens: maxTokens,
	}
	if converted.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: converted.System}}
	}
	if len(req.Tools) > 0 {
		tools := make([]anthropic.ToolUnionParam, 0, len(req.Tools))
		for _, spec := range req.Tools {
			var schema anthropic.ToolInputSchemaParam
			raw, _ := json.Marshal(spec.InputSchema)
			_ = json.Unmarshal(raw, &schema)
			toolParam := anthropic.ToolUnionParamOfTool(schema, spec.Name)
			if toolParam.OfTool != nil {
				toolParam.OfTool.Description = anthropic.String(spec.Description)
			}
			tools = append(tools, toolParam)
		}
		params.Tools = tools
	}
	return params, nil
}

// processAnthropicStream mirrors internal/agent/providers/anthropic.go's
// processStream, but emits protocol.Chunk instead of *agent.CompletionChunk.
func processAnthropicStream(raw *ssestream.Stream[anthropic.MessageStreamEventUnion], out chan<- protocol.Chunk) {
	defer close(out)

	var toolId, toolName string
	var toolArgs strings.Builder
	var inputTokens, outputTokens int64

	for raw.Next() {
		event := raw.Current()
		switch event.Type {
		case "message_start":
			ms := event.AsMessageStart()
			if ms.Message.Usage.InputTokens > 0 {
				inputTokens = ms.Message.Usage.InputTokens
			}

		case "content_block_start":
			start := event.AsContentBlockStart()
			if start.ContentBlock.Type == "tool_use" {
				tu := start.ContentBlock.AsToolUse()
				toolId, toolName = tu.ID, tu.Name
				toolArgs.Reset()
			}

		case "content_block_delta":
			delta := event.AsContentBlockDelta().Delta
			switch delta.Type {
			case "text_delta":
				if delta.Text != "" {
					out <- protocol.Chunk{Type: protocol.ChunkContent, Delta: delta.Text}
				}
			case "input_json_delta":
				if delta.PartialJSON != "" {
					toolArgs.WriteString(delta.PartialJSON)
				}
			}

		case "content_block_stop":
			if toolId != "" {
				out <- protocol.Chunk{Type: protocol.ChunkToolCall, Tool: &protocol.ToolCallDelta{
					Id: toolId, Name: toolName, Arguments: toolArgs.String(),
				}}
				toolId, toolName = "", ""
				toolArgs.Reset()
			}

		case "message_delta":
			md := event.AsMessageDelta()
			if md.Usage.OutputTokens > 0 {
				outputTokens = md.Usage.OutputTokens
			}

		case "message_stop":
			out <- protocol.Chunk{Type: protocol.ChunkMessageStop, Usage: &protocol.TokenUsage{
				PromptTokens: inputTokens, CompletionTokens: outputTokens, TotalTokens: inputTokens + outputTokens,
			}}
			return

		case "error":
			out <- protocol.Chunk{Type: protocol.ChunkError, Message: "anthropic stream error"}
			return
		}
	}

	if err := raw.Err(); err != nil {
		out <- protocol.Chunk{Type: protocol.ChunkError, Message: err.Error()}
	}
}

func isRetryableAnthropicError(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 429, 500, 502, 503, 504:
			return true
		}
		return false
	}
	return strings.Contains(err.Error(), "timeout") || strings.Contains(err.Error(), "connection")
}
