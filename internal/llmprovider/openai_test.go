package llmprovider

import (
	"testing"

	"github.com/brandlll-lee/cokra/internal/protocol"
	"github.com/brandlll-lee/cokra/internal/transform"
)

func TestConvertOpenAIMessages_ToolCallRoundTrip(t *testing.T) {
	history := []protocol.Message{
		protocol.UserMessage("what's the weather"),
		protocol.AssistantMessage("", []protocol.ToolCall{{Id: "call_1", Name: "get_weather", Arguments: `{"city":"nyc"}`}}),
		protocol.ToolMessage("call_1", "72F"),
	}

	converted, err := transform.ToOpenAI(history, transform.OpenAICompatibleProfile)
	if err != nil {
		t.Fatalf("ToOpenAI: %v", err)
	}
	out := convertOpenAIMessages(converted)

	if len(out) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(out))
	}
	if out[1].ToolCalls[0].ID != "call_1" || out[1].ToolCalls[0].Function.Arguments != `{"city":"nyc"}` {
		t.Fatalf("tool call not preserved: %+v", out[1].ToolCalls)
	}
	if out[2].ToolCallID != "call_1" || out[2].Content != "72F" {
		t.Fatalf("tool result not preserved: %+v", out[2])
	}
}

func TestConvertOpenAITools_FallsBackToEmptySchemaOnBadInput(t *testing.T) {
	tools := convertOpenAITools([]protocol.ToolSpec{{
		Name:        "read_file",
		Description: "reads a file",
		InputSchema: protocol.ToolInputSchema{Type: "object", Required: []string{"path"}},
	}})
	if len(tools) != 1 {
		t.Fatalf("expected 1 tool, got %d", len(tools))
	}
	if tools[0].Function.Name != "read_file" {
		t.Fatalf("name mismatch: %+v", tools[0])
	}
}
