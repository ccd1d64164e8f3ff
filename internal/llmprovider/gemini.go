package llmprovider

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"strings"

	"google.golang.org/genai"

	"github.com/brandlll-lee/cokra/internal/protocol"
)

// GeminiConfig configures the Google Gemini adapter.
type GeminiConfig struct {
	APIKey       string
	DefaultModel string
	RetryConfig
}

type geminiClient struct {
	client       *genai.Client
	defaultModel string
	retry        RetryConfig
}

// NewGemini builds a turnexec.ModelClient over google.golang.org/genai's
// GenerateContentStream.
func NewGemini(cfg GeminiConfig) (Adapter, error) {
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "gemini-2.0-flash"
	}
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return Adapter{}, fmt.Errorf("gemini: failed to create client: %w", err)
	}
	return Adapter{&geminiClient{client: client, defaultModel: cfg.DefaultModel, retry: cfg.RetryConfig}}, nil
}

func (c *geminiClient) ChatCompletionStream(ctx context.Context, req protocol.ChatRequest) (<-chan protocol.Chunk, error) {
	model := req.Model
	if model == "" {
		model = c.defaultModel
	}

	contents := convertGeminiContents(req.Messages)
	config := buildGeminiConfig(req)

	out := make(chan protocol.Chunk)
	go func() {
		defer close(out)
		err := Retry(ctx, c.retry, isRetryableGeminiError, func() error {
			iterator := c.client.Models.GenerateContentStream(ctx, model, contents, config)
			return processGeminiStream(ctx, iterator, out)
		})
		if err != nil && ctx.Err() == nil {
			out <- protocol.Chunk{Type: protocol.ChunkError, Message: err.Error()}
		}
	}()
	return out, nil
}

func convertGeminiContents(messages []protocol.Message) []*genai.Content {
	var result []*genai.Content
	for _, m := range messages {
		if m.Role == protocol.MessageSystem {
			continue
		}

		content := &genai.Content{}
		switch m.Role {
		case protocol.MessageAssistant:
			content.Role = genai.RoleModel
		default:
			content.Role = genai.RoleUser
		}

		if m.Content != "" {
			content.Parts = append(content.Parts, &genai.Part{Text: m.Content})
		}
		for _, tc := range m.ToolCalls {
			var args map[string]any
			if err := json.Unmarshal([]byte(tc.Arguments), &args); err != nil {
				args = map[string]any{}
			}
			content.Parts = append(content.Parts, &genai.Part{FunctionCall: &genai.FunctionCall{Name: tc.Name, Args: args}})
		}
		if m.Role == protocol.MessageTool {
			var response map[string]any
			if err := json.Unmarshal([]byte(m.Content), &response); err != nil {
				response = map[string]any{"result": m.Content}
			}
			content.Parts = append(content.Parts, &genai.Part{FunctionResponse: &genai.FunctionResponse{
				Name: m.ToolCallId, Response: response,
			}})
		}
		if len(content.Parts) == 0 {
			continue
		}
		result = append(result, content)
	}
	return result
}

func buildGeminiConfig(req protocol.ChatRequest) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{}
	for _, m := range req.Messages {
		if m.Role == protocol.MessageSystem {
			config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: m.Content}}}
			break
		}
	}
	if req.MaxTokens != nil && *req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(*req.MaxTokens)
	}
	if len(req.Tools) > 0 {
		config.Tools = toGeminiTools(req.Tools)
	}
	return config
}

func toGeminiTools(specs []protocol.ToolSpec) []*genai.Tool {
	declarations := make([]*genai.FunctionDeclaration, 0, len(specs))
	for _, spec := range specs {
		raw, _ := json.Marshal(spec.InputSchema)
		var schemaMap map[string]any
		if err := json.Unmarshal(raw, &schemaMap); err != nil {
			continue
		}
		declarations = append(declarations, &genai.FunctionDeclaration{
			Name:        spec.Name,
			Description: spec.Description,
			Parameters:  toGeminiSchema(schemaMap),
		})
	}
	if len(declarations) == 0 {
		return nil
	}
	return []*genai.Tool{{FunctionDeclarations: declarations}}
}

// toGeminiSchema converts a JSON Schema map into genai.Schema, grounded on
// internal/agent/toolconv/gemini.go's ToGeminiSchema.
func toGeminiSchema(schemaMap map[string]any) *genai.Schema {
	if schemaMap == nil {
		return nil
	}
	schema := &genai.Schema{}
	if t, ok := schemaMap["type"].(string); ok {
		schema.Type = genai.Type(strings.ToUpper(t))
	}
	if desc, ok := schemaMap["description"].(string); ok {
		schema.Description = desc
	}
	if enum, ok := schemaMap["enum"].([]any); ok {
		for _, e := range enum {
			if s, ok := e.(string); ok {
				schema.Enum = append(schema.Enum, s)
			}
		}
	}
	if props, ok := schemaMap["properties"].(map[string]any); ok {
		schema.Properties = make(map[string]*genai.Schema)
		for name, prop := range props {
			if propMap, ok := prop.(map[string]any); ok {
				schema.Properties[name] = toGeminiSchema(propMap)
			}
		}
	}
	if required, ok := schemaMap["required"].([]any); ok {
		for _, r := range required {
			if s, ok := r.(string); ok {
				schema.Required = append(schema.Required, s)
			}
		}
	}
	return schema
}

func processGeminiStream(ctx context.Context, iterator iter.Seq2[*genai.GenerateContentResponse, error], out chan<- protocol.Chunk) error {
	for resp, err := range iterator {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err != nil {
			return err
		}
		if resp == nil {
			continue
		}
		for _, candidate := range resp.Candidates {
			if candidate == nil || candidate.Content == nil {
				continue
			}
			for _, part := range candidate.Content.Parts {
				if part == nil {
					continue
				}
				if part.Text != "" {
					out <- protocol.Chunk{Type: protocol.ChunkContent, Delta: part.Text}
				}
				if part.FunctionCall != nil {
					argsJSON, err := json.Marshal(part.FunctionCall.Args)
					if err != nil {
						argsJSON = []byte("{}")
					}
					out <- protocol.Chunk{Type: protocol.ChunkToolCall, Tool: &protocol.ToolCallDelta{
						Id: "call_" + part.FunctionCall.Name, Name: part.FunctionCall.Name, Arguments: string(argsJSON),
					}}
				}
			}
		}
	}
	out <- protocol.Chunk{Type: protocol.ChunkMessageStop}
	return nil
}

func isRetryableGeminiError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "429") || strings.Contains(msg, "500") || strings.Contains(msg, "503") ||
		strings.Contains(msg, "timeout")
}
