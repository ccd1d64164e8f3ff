package toolrouter

import (
	"context"
	"testing"

	"github.com/brandlll-lee/cokra/internal/protocol"
)

func TestRegistry_AdvertiseWithoutHandlerIsUnroutable(t *testing.T) {
	r := NewRegistry()
	r.Advertise(protocol.ToolSpec{Name: "planned_tool"})

	if _, ok := r.spec("planned_tool"); !ok {
		t.Fatalf("expected advertised spec to be listed")
	}
	_, err := r.dispatch(context.Background(), protocol.ToolCall{Id: "1", Name: "planned_tool"})
	fcErr, ok := err.(*protocol.FunctionCallError)
	if !ok || fcErr.Kind != protocol.FuncToolNotFound {
		t.Fatalf("expected dispatch of an unbound advertised tool to fail with ToolNotFound, got %#v", err)
	}
}

func TestRegistry_DispatchDefaultsOutputId(t *testing.T) {
	r := NewRegistry()
	r.Register(protocol.ToolSpec{Name: "noop"}, func(_ context.Context, call protocol.ToolCall) (protocol.ToolOutput, error) {
		return protocol.ToolOutput{Content: "done"}, nil
	})

	out, err := r.dispatch(context.Background(), protocol.ToolCall{Id: "call-7", Name: "noop"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Id != "call-7" {
		t.Fatalf("expected dispatch to default Id to the call's id, got %q", out.Id)
	}
}

func TestRegistry_RegisterRejectsMalformedInputSchema(t *testing.T) {
	r := NewRegistry()
	spec := protocol.ToolSpec{
		Name: "broken",
		InputSchema: protocol.ToolInputSchema{
			Type:     "object",
			Required: []string{"path"},
			Properties: map[string]protocol.JSONSchemaProp{
				"path": {Type: "not-a-real-json-schema-type"},
			},
		},
	}
	err := r.Register(spec, func(context.Context, protocol.ToolCall) (protocol.ToolOutput, error) {
		return protocol.ToolOutput{}, nil
	})
	if err == nil {
		t.Fatal("expected an error registering a tool with a malformed input_schema")
	}
	if _, ok := r.spec("broken"); ok {
		t.Fatal("expected the malformed spec to not be registered")
	}
}

func TestRegistry_RegisterAcceptsWellFormedInputSchema(t *testing.T) {
	r := NewRegistry()
	spec := protocol.ToolSpec{
		Name: "read_file",
		InputSchema: protocol.ToolInputSchema{
			Type:     "object",
			Required: []string{"path"},
			Properties: map[string]protocol.JSONSchemaProp{
				"path": {Type: "string"},
			},
		},
	}
	if err := r.Register(spec, func(context.Context, protocol.ToolCall) (protocol.ToolOutput, error) {
		return protocol.ToolOutput{}, nil
	}); err != nil {
		t.Fatalf("unexpected error registering a well-formed input_schema: %v", err)
	}
}

func TestRegistry_AsToolSpecsIncludesAllRegistered(t *testing.T) {
	r := NewRegistry()
	r.Register(protocol.ToolSpec{Name: "a"}, func(context.Context, protocol.ToolCall) (protocol.ToolOutput, error) { return protocol.ToolOutput{}, nil })
	r.Advertise(protocol.ToolSpec{Name: "b"})

	specs := r.AsToolSpecs()
	if len(specs) != 2 {
		t.Fatalf("expected 2 specs, got %d", len(specs))
	}
}
