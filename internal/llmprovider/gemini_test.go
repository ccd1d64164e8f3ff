package llmprovider

import (
	"testing"

	"google.golang.org/genai"

	"github.com/brandlll-lee/cokra/internal/protocol"
)

func TestConvertGeminiContents_MapsAssistantToModelRole(t *testing.T) {
	history := []protocol.Message{
		protocol.SystemMessage("ignored here, lifted via buildGeminiConfig"),
		protocol.UserMessage("hi"),
		protocol.AssistantMessage("hello", nil),
	}
	contents := convertGeminiContents(history)
	if len(contents) != 2 {
		t.Fatalf("expected 2 contents (system skipped), got %d", len(contents))
	}
	if contents[0].Role != genai.RoleUser || contents[1].Role != genai.RoleModel {
		t.Fatalf("unexpected roles: %v, %v", contents[0].Role, contents[1].Role)
	}
}

func TestBuildGeminiConfig_LiftsSystemInstruction(t *testing.T) {
	req := protocol.ChatRequest{Messages: []protocol.Message{protocol.SystemMessage("be terse")}}
	config := buildGeminiConfig(req)
	if config.SystemInstruction == nil || config.SystemInstruction.Parts[0].Text != "be terse" {
		t.Fatalf("expected system instruction lifted, got %+v", config.SystemInstruction)
	}
}

func TestToGeminiSchema_ConvertsNestedObjectSchema(t *testing.T) {
	schema := toGeminiSchema(map[string]any{
		"type":     "object",
		"required": []any{"path"},
		"properties": map[string]any{
			"path": map[string]any{"type": "string"},
		},
	})
	if schema.Type != genai.Type("OBJECT") {
		t.Fatalf("expected OBJECT type, got %v", schema.Type)
	}
	if len(schema.Required) != 1 || schema.Required[0] != "path" {
		t.Fatalf("expected required=[path], got %v", schema.Required)
	}
	if schema.Properties["path"].Type != genai.Type("STRING") {
		t.Fatalf("expected nested string schema, got %+v", schema.Properties["path"])
	}
}
