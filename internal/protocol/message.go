package protocol

import "encoding/json"

// MessageRole discriminates the Message tagged union.
type MessageRole string

const (
	MessageSystem    MessageRole = "system"
	MessageUser      MessageRole = "user"
	MessageAssistant MessageRole = "assistant"
	MessageTool      MessageRole = "tool"
)

// ToolCall is one function-call the model requested in an Assistant
// message.
type ToolCall struct {
	Id        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Message is one entry in the finite ordered conversation history.
//
// Invariant: every Assistant message's ToolCalls[i].Id is followed,
// before any further Assistant message, by a Tool message with the same
// ToolCallId (enforced by the turn executor, which appends exactly one
// Tool message per dispatched call before continuing the outer loop).
type Message struct {
	Role MessageRole `json:"role"`

	// System / User / Assistant content. Empty for a pure tool-call-only
	// Assistant message.
	Content string `json:"content,omitempty"`

	// Assistant only.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// Tool only.
	ToolCallId string `json:"tool_call_id,omitempty"`
}

func SystemMessage(text string) Message  { return Message{Role: MessageSystem, Content: text} }
func UserMessage(text string) Message    { return Message{Role: MessageUser, Content: text} }
func AssistantMessage(content string, calls []ToolCall) Message {
	return Message{Role: MessageAssistant, Content: content, ToolCalls: calls}
}
func ToolMessage(toolCallId, content string) Message {
	return Message{Role: MessageTool, Content: content, ToolCallId: toolCallId}
}

// ValidateHistory checks the tool_call/tool_result pairing invariant
// described above. It returns the id of the first Assistant tool_call
// that is not closed by a following Tool message before the next
// Assistant message, or "" if the history is well-formed.
func ValidateHistory(history []Message) string {
	var pending []string
	for _, m := range history {
		switch m.Role {
		case MessageAssistant:
			if len(pending) > 0 {
				return pending[0]
			}
			for _, tc := range m.ToolCalls {
				pending = append(pending, tc.Id)
			}
		case MessageTool:
			for i, id := range pending {
				if id == m.ToolCallId {
					pending = append(pending[:i], pending[i+1:]...)
					break
				}
			}
		}
	}
	if len(pending) > 0 {
		return pending[0]
	}
	return ""
}

// MarshalRaw is a convenience for handlers that need the raw JSON of a
// tool call's arguments without committing to a concrete struct shape.
func MarshalRaw(v any) (json.RawMessage, error) {
	return json.Marshal(v)
}
