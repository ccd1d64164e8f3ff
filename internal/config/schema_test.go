package config

import (
	"encoding/json"
	"testing"
)

func TestJSONSchema_ProducesValidJSON(t *testing.T) {
	raw, err := JSONSchema()
	if err != nil {
		t.Fatalf("JSONSchema: %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("schema is not valid JSON: %v", err)
	}
	if _, ok := doc["properties"]; !ok {
		t.Fatalf("expected a properties object in the schema, got %+v", doc)
	}
}

func TestJSONSchema_Cached(t *testing.T) {
	first, err := JSONSchema()
	if err != nil {
		t.Fatalf("JSONSchema: %v", err)
	}
	second, err := JSONSchema()
	if err != nil {
		t.Fatalf("JSONSchema: %v", err)
	}
	if string(first) != string(second) {
		t.Fatal("expected JSONSchema to return the same cached bytes on repeat calls")
	}
}
