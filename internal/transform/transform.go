// Package transform implements the model-agnostic transform layer
// (spec.md §4.6): per-provider request-shape conversion, tool-call-id
// sanitization policies, and empty-content policies.
package transform

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/brandlll-lee/cokra/internal/protocol"
)

// IdPolicy is a tool-call-id normalization policy.
type IdPolicy int

const (
	IdDefault IdPolicy = iota
	IdSanitize
	IdAlphanumeric9
)

var nonAlphaDashUnderscore = regexp.MustCompile(`[^A-Za-z0-9_-]`)
var nonAlphanumeric = regexp.MustCompile(`[^A-Za-z0-9]`)

// NormalizeId applies an IdPolicy to a tool-call id.
func NormalizeId(policy IdPolicy, id string) string {
	switch policy {
	case IdSanitize:
		return nonAlphaDashUnderscore.ReplaceAllString(id, "_")
	case IdAlphanumeric9:
		s := nonAlphanumeric.ReplaceAllString(id, "")
		if len(s) > 9 {
			s = s[:9]
		}
		for len(s) < 9 {
			s += "0"
		}
		return s
	default:
		return id
	}
}

// EmptyContentPolicy controls how empty message content is handled
// per provider.
type EmptyContentPolicy int

const (
	EmptyFilter EmptyContentPolicy = iota
	EmptyReplace
	EmptyReject
)

// ErrEmptyContentRejected is returned by ApplyEmptyContentPolicy under
// EmptyReject when content is empty.
type ErrEmptyContentRejected struct{ Role protocol.MessageRole }

func (e *ErrEmptyContentRejected) Error() string {
	return "transform: empty content rejected for role " + string(e.Role)
}

// ApplyEmptyContentPolicy returns the (possibly substituted) content, or
// an error under EmptyReject; ok=false under EmptyFilter means the caller
// should drop the message entirely.
func ApplyEmptyContentPolicy(policy EmptyContentPolicy, replacement string, m protocol.Message) (content string, ok bool, err error) {
	if m.Content != "" {
		return m.Content, true, nil
	}
	switch policy {
	case EmptyFilter:
		return "", false, nil
	case EmptyReplace:
		return replacement, true, nil
	case EmptyReject:
		return "", false, &ErrEmptyContentRejected{Role: m.Role}
	default:
		return m.Content, true, nil
	}
}

// ProviderProfile bundles the per-provider policy choices.
type ProviderProfile struct {
	Name               string
	IdPolicy           IdPolicy
	EmptyContentPolicy EmptyContentPolicy
	EmptyReplacement   string
}

var (
	OpenAICompatibleProfile = ProviderProfile{Name: "openai", IdPolicy: IdDefault, EmptyContentPolicy: EmptyFilter}
	AnthropicProfile        = ProviderProfile{Name: "anthropic", IdPolicy: IdSanitize, EmptyContentPolicy: EmptyFilter}
	MistralProfile          = ProviderProfile{Name: "mistral", IdPolicy: IdAlphanumeric9, EmptyContentPolicy: EmptyReplace, EmptyReplacement: " "}
)

// OpenAIMessage mirrors the OpenAI-compatible wire shape: passthrough
// with field pruning (no further remapping needed).
type OpenAIMessage struct {
	Role       string           `json:"role"`
	Content    string           `json:"content,omitempty"`
	ToolCallId string           `json:"tool_call_id,omitempty"`
	ToolCalls  []OpenAIToolCall `json:"tool_calls,omitempty"`
}

type OpenAIToolCall struct {
	Id       string             `json:"id"`
	Type     string             `json:"type"`
	Function OpenAIToolCallFunc `json:"function"`
}

type OpenAIToolCallFunc struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToOpenAI converts a ChatRequest's messages into the OpenAI-compatible
// wire shape, applying profile's id and empty-content policies.
func ToOpenAI(messages []protocol.Message, profile ProviderProfile) ([]OpenAIMessage, error) {
	out := make([]OpenAIMessage, 0, len(messages))
	for _, m := range messages {
		content, keep, err := ApplyEmptyContentPolicy(profile.EmptyContentPolicy, profile.EmptyReplacement, m)
		if err != nil {
			return nil, err
		}
		if !keep && len(m.ToolCalls) == 0 {
			continue
		}
		om := OpenAIMessage{Role: string(m.Role), Content: content, ToolCallId: NormalizeId(profile.IdPolicy, m.ToolCallId)}
		for _, tc := range m.ToolCalls {
			om.ToolCalls = append(om.ToolCalls, OpenAIToolCall{
				Id:   NormalizeId(profile.IdPolicy, tc.Id),
				Type: "function",
				Function: OpenAIToolCallFunc{
					Name:      tc.Name,
					Arguments: tc.Arguments,
				},
			})
		}
		out = append(out, om)
	}
	return out, nil
}

// AnthropicContentBlock is one block in an Anthropic message's content
// array.
type AnthropicContentBlock struct {
	Type      string          `json:"type"` // "text", "tool_use", "tool_result"
	Text      string          `json:"text,omitempty"`
	Id        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseId string          `json:"tool_use_id,omitempty"`
	Content   string          `json:"content,omitempty"`
}

// AnthropicMessage is the Anthropic-shaped message (no "system" role;
// system text is lifted to AnthropicRequest.System).
type AnthropicMessage struct {
	Role    string                  `json:"role"`
	Content []AnthropicContentBlock `json:"content"`
}

// AnthropicRequest is the transformed request shape.
type AnthropicRequest struct {
	System   string             `json:"system,omitempty"`
	Messages []AnthropicMessage `json:"messages"`
}

// ToAnthropic extracts the first System message to a top-level field and
// remaps tool_calls/tool messages into content blocks, per spec.md §4.6.
func ToAnthropic(messages []protocol.Message, profile ProviderProfile) (AnthropicRequest, error) {
	req := AnthropicRequest{}
	var systemSeen bool

	for _, m := range messages {
		if m.Role == protocol.MessageSystem && !systemSeen {
			req.System = m.Content
			systemSeen = true
			continue
		}

		content, keep, err := ApplyEmptyContentPolicy(profile.EmptyContentPolicy, profile.EmptyReplacement, m)
		if err != nil {
			return AnthropicRequest{}, err
		}

		switch m.Role {
		case protocol.MessageSystem:
			// Subsequent System messages are folded into a user-visible
			// text block; Anthropic only has one top-level system slot.
			if !keep {
				continue
			}
			req.Messages = append(req.Messages, AnthropicMessage{
				Role:    "user",
				Content: []AnthropicContentBlock{{Type: "text", Text: content}},
			})

		case protocol.MessageUser:
			if !keep {
				continue
			}
			req.Messages = append(req.Messages, AnthropicMessage{
				Role:    "user",
				Content: []AnthropicContentBlock{{Type: "text", Text: content}},
			})

		case protocol.MessageAssistant:
			am := AnthropicMessage{Role: "assistant"}
			if keep {
				am.Content = append(am.Content, AnthropicContentBlock{Type: "text", Text: content})
			}
			for _, tc := range m.ToolCalls {
				input, err := parseToolArguments(tc.Arguments)
				if err != nil {
					input, _ = json.Marshal(map[string]string{"raw": tc.Arguments})
				}
				am.Content = append(am.Content, AnthropicContentBlock{
					Type:  "tool_use",
					Id:    NormalizeId(profile.IdPolicy, tc.Id),
					Name:  tc.Name,
					Input: input,
				})
			}
			if len(am.Content) == 0 {
				continue
			}
			req.Messages = append(req.Messages, am)

		case protocol.MessageTool:
			req.Messages = append(req.Messages, AnthropicMessage{
				Role: "user",
				Content: []AnthropicContentBlock{{
					Type:      "tool_result",
					ToolUseId: NormalizeId(profile.IdPolicy, m.ToolCallId),
					Content:   content,
				}},
			})
		}
	}

	return req, nil
}

func parseToolArguments(arguments string) (json.RawMessage, error) {
	arguments = strings.TrimSpace(arguments)
	if arguments == "" {
		return json.RawMessage("{}"), nil
	}
	var v any
	if err := json.Unmarshal([]byte(arguments), &v); err != nil {
		return nil, err
	}
	return json.RawMessage(arguments), nil
}
