// Package toolrouter implements the tool registry, router, and validator
// (spec.md §4.7): dispatching model-issued function calls under an
// approval/sandbox policy. Grounded on internal/tools/policy/resolver.go
// (allow/deny evaluation shape) and internal/agent/approval.go (the
// Auto/Ask/Never decision cascade and the full ExecApprovalRequest /
// ExecApproval round trip, Open Question #3).
package toolrouter

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/brandlll-lee/cokra/internal/protocol"
)

// Handler is a tool's dispatch function. Pure w.r.t. the call in
// contract; side effects (shell/file tools) are the point.
type Handler func(ctx context.Context, call protocol.ToolCall) (protocol.ToolOutput, error)

// Registry maps tool name -> handler and name -> spec. A tool declared by
// spec without a handler is advertised to the model but unroutable.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	specs    map[string]protocol.ToolSpec
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler), specs: make(map[string]protocol.ToolSpec)}
}

// Register advertises a tool spec and binds its handler, after validating
// that the spec's input_schema is itself a well-formed JSON Schema
// document, so a malformed schema is caught here rather than after it's
// already been sent to a model.
func (r *Registry) Register(spec protocol.ToolSpec, handler Handler) error {
	if err := validateInputSchema(spec); err != nil {
		return fmt.Errorf("register tool %q: %w", spec.Name, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.specs[spec.Name] = spec
	r.handlers[spec.Name] = handler
	return nil
}

// validateInputSchema compiles spec.InputSchema as a JSON Schema document.
// A zero-value schema (no Type set) declares no input constraints and is
// always valid.
func validateInputSchema(spec protocol.ToolSpec) error {
	if spec.InputSchema.Type == "" {
		return nil
	}
	raw, err := json.Marshal(spec.InputSchema)
	if err != nil {
		return fmt.Errorf("encode input_schema: %w", err)
	}
	if _, err := jsonschema.CompileString(spec.Name+".input_schema.json", string(raw)); err != nil {
		return fmt.Errorf("invalid input_schema: %w", err)
	}
	return nil
}

// Advertise declares a tool spec without a routable handler.
func (r *Registry) Advertise(spec protocol.ToolSpec) error {
	if err := validateInputSchema(spec); err != nil {
		return fmt.Errorf("advertise tool %q: %w", spec.Name, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.specs[spec.Name] = spec
	return nil
}

func (r *Registry) handler(name string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[name]
	return h, ok
}

func (r *Registry) spec(name string) (protocol.ToolSpec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.specs[name]
	return s, ok
}

// AsToolSpecs returns every advertised spec, for inclusion in a
// ChatRequest.
func (r *Registry) AsToolSpecs() []protocol.ToolSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]protocol.ToolSpec, 0, len(r.specs))
	for _, s := range r.specs {
		out = append(out, s)
	}
	return out
}

// dispatch invokes the bound handler, or returns ToolNotFound.
func (r *Registry) dispatch(ctx context.Context, call protocol.ToolCall) (protocol.ToolOutput, error) {
	h, ok := r.handler(call.Name)
	if !ok {
		return protocol.ToolOutput{}, protocol.NewFunctionCallError(protocol.FuncToolNotFound, call.Name, fmt.Sprintf("no handler registered for %q", call.Name))
	}
	out, err := h(ctx, call)
	if err != nil {
		if _, ok := err.(*protocol.FunctionCallError); ok {
			return out, err
		}
		return out, protocol.NewFunctionCallError(protocol.FuncExecution, call.Name, err.Error())
	}
	if out.Id == "" {
		out.Id = call.Id
	}
	return out, nil
}
