package llmprovider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/brandlll-lee/cokra/internal/protocol"
	"github.com/brandlll-lee/cokra/internal/transform"
)

// headerRoundTripper attaches static headers to every outgoing request,
// used for OpenRouter's app-attribution headers (HTTP-Referer, X-Title).
type headerRoundTripper struct {
	headers map[string]string
	base    http.RoundTripper
}

func (t *headerRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(req)
}

// OpenAICompatibleConfig configures the OpenAI chat-completions adapter.
// A non-empty BaseURL repoints the same client at any OpenAI-compatible
// endpoint (OpenRouter, Ollama, LM Studio, vLLM, ...).
type OpenAICompatibleConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
	// ExtraHeaders are attached to every request, e.g. OpenRouter's
	// HTTP-Referer/X-Title attribution headers.
	ExtraHeaders map[string]string
	RetryConfig
}

type openAICompatibleClient struct {
	client       *openai.Client
	defaultModel string
	retry        RetryConfig
}

// NewOpenAICompatible builds a turnexec.ModelClient against any vendor
// speaking the OpenAI chat-completions wire format.
func NewOpenAICompatible(cfg OpenAICompatibleConfig) Adapter {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if strings.TrimSpace(cfg.BaseURL) != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	if len(cfg.ExtraHeaders) > 0 {
		clientConfig.HTTPClient = &http.Client{Transport: &headerRoundTripper{headers: cfg.ExtraHeaders}}
	}
	return Adapter{&openAICompatibleClient{
		client:       openai.NewClientWithConfig(clientConfig),
		defaultModel: cfg.DefaultModel,
		retry:        cfg.RetryConfig,
	}}
}

func (c *openAICompatibleClient) ChatCompletionStream(ctx context.Context, req protocol.ChatRequest) (<-chan protocol.Chunk, error) {
	model := req.Model
	if model == "" {
		model = c.defaultModel
	}

	messages, err := transform.ToOpenAI(req.Messages, transform.OpenAICompatibleProfile)
	if err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}

	chatReq := openai.ChatCompletionRequest{
		Model:    model,
		Messages: convertOpenAIMessages(messages),
		Stream:   true,
	}
	if req.MaxTokens != nil {
		chatReq.MaxTokens = *req.MaxTokens
	}
	if req.Temperature != nil {
		chatReq.Temperature = float32(*req.Temperature)
	}
	if len(req.Tools) > 0 {
		chatReq.Tools = convertOpenAITools(req.Tools)
	}

	var raw *openai.ChatCompletionStream
	err = Retry(ctx, c.retry, isRetryableOpenAIError, func() error {
		s, err := c.client.CreateChatCompletionStream(ctx, chatReq)
		if err != nil {
			return err
		}
		raw = s
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}

	out := make(chan protocol.Chunk)
	go processOpenAIStream(raw, out)
	return out, nil
}

func convertOpenAIMessages(messages []transform.OpenAIMessage) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		oaiMsg := openai.ChatCompletionMessage{
			Role:       m.Role,
			Content:    m.Content,
			ToolCallID: m.ToolCallId,
		}
		for _, tc := range m.ToolCalls {
			oaiMsg.ToolCalls = append(oaiMsg.ToolCalls, openai.ToolCall{
				ID:   tc.Id,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Function.Name,
					Arguments: tc.Function.Arguments,
				},
			})
		}
		out = append(out, oaiMsg)
	}
	return out
}

func convertOpenAITools(specs []protocol.ToolSpec) []openai.Tool {
	out := make([]openai.Tool, 0, len(specs))
	for _, spec := range specs {
		raw, _ := json.Marshal(spec.InputSchema)
		var schema map[string]any
		if err := json.Unmarshal(raw, &schema); err != nil {
			schema = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        spec.Name,
				Description: spec.Description,
				Parameters:  schema,
			},
		})
	}
	return out
}

// processOpenAIStream mirrors internal/agent/providers/openai.go's
// processStream, keyed by tool-call index the way OpenAI streams deltas.
func processOpenAIStream(raw *openai.ChatCompletionStream, out chan<- protocol.Chunk) {
	defer close(out)
	defer raw.Close()

	type indexedCall struct {
		id, name, arguments string
	}
	calls := make(map[int]*indexedCall)
	order := []int{}

	flush := func() {
		for _, idx := range order {
			c := calls[idx]
			if c == nil || c.id == "" || c.name == "" {
				continue
			}
			out <- protocol.Chunk{Type: protocol.ChunkToolCall, Tool: &protocol.ToolCallDelta{
				Id: c.id, Name: c.name, Arguments: c.arguments,
			}}
		}
		calls = make(map[int]*indexedCall)
		order = nil
	}

	var usage protocol.TokenUsage
	for {
		resp, err := raw.Recv()
		if err != nil {
			if err == io.EOF {
				flush()
				out <- protocol.Chunk{Type: protocol.ChunkMessageStop, Usage: &usage}
				return
			}
			out <- protocol.Chunk{Type: protocol.ChunkError, Message: err.Error()}
			return
		}

		if resp.Usage != nil {
			usage = protocol.TokenUsage{
				PromptTokens:     int64(resp.Usage.PromptTokens),
				CompletionTokens: int64(resp.Usage.CompletionTokens),
				TotalTokens:      int64(resp.Usage.TotalTokens),
			}
		}

		if len(resp.Choices) == 0 {
			continue
		}
		delta := resp.Choices[0].Delta

		if delta.Content != "" {
			out <- protocol.Chunk{Type: protocol.ChunkContent, Delta: delta.Content}
		}

		for _, tc := range delta.ToolCalls {
			index := 0
			if tc.Index != nil {
				index = *tc.Index
			}
			c, ok := calls[index]
			if !ok {
				c = &indexedCall{}
				calls[index] = c
				order = append(order, index)
			}
			if tc.ID != "" {
				c.id = tc.ID
			}
			if tc.Function.Name != "" {
				c.name = tc.Function.Name
			}
			if tc.Function.Arguments != "" {
				c.arguments += tc.Function.Arguments
			}
		}

		if resp.Choices[0].FinishReason == "tool_calls" {
			flush()
		}
	}
}

func isRetryableOpenAIError(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case 429, 500, 502, 503, 504:
			return true
		}
		return false
	}
	return strings.Contains(err.Error(), "timeout") || strings.Contains(err.Error(), "connection")
}
