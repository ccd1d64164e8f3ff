package toolrouter

import (
	"context"
	"encoding/json"

	"github.com/brandlll-lee/cokra/internal/agent/turnexec"
	"github.com/brandlll-lee/cokra/internal/protocol"
)

// ShellCommandExtractor pulls the literal shell command out of a tool
// call's arguments, for tools that shell out (e.g. "exec"/"run_command").
// Tools with no shell surface return "".
type ShellCommandExtractor func(toolName, arguments string) string

// Router implements turnexec.ToolRouter: it validates a call, resolves an
// approval decision, and — once approved — dispatches through the
// Registry. It implements the full ExecApprovalRequest/ExecApproval round
// trip rather than short-circuiting requires_approval decisions.
type Router struct {
	registry  *Registry
	validator *Validator
	approvals *ApprovalStore
	extractor ShellCommandExtractor
}

func NewRouter(registry *Registry, validator *Validator, approvals *ApprovalStore, extractor ShellCommandExtractor) *Router {
	if extractor == nil {
		extractor = func(string, string) string { return "" }
	}
	return &Router{registry: registry, validator: validator, approvals: approvals, extractor: extractor}
}

var _ turnexec.ToolRouter = (*Router)(nil)

// RouteToolCall implements spec.md §4.7's route_tool_call: validate,
// resolve an approval decision, and dispatch.
func (r *Router) RouteToolCall(ctx context.Context, call protocol.ToolCall) (protocol.ToolOutput, error) {
	if _, ok := r.registry.spec(call.Name); !ok {
		return protocol.ToolOutput{}, protocol.NewFunctionCallError(protocol.FuncToolNotFound, call.Name, "tool not registered")
	}

	shellCmd := r.extractor(call.Name, call.Arguments)
	decision, reason := r.validator.Evaluate(call.Name, call.Arguments, shellCmd)

	switch decision {
	case DecisionDenied:
		// Only the never-mode default-deny aborts the turn (§7); every other
		// denial reason (path traversal, denylist, operator policy, unsafe
		// arguments) surfaces as a recoverable Tool message instead.
		if reason == ReasonApprovalModeNever {
			return protocol.ToolOutput{}, protocol.NewFatalFunctionCallError(protocol.FuncPermissionDenied, call.Name, reason)
		}
		return protocol.ToolOutput{}, protocol.NewFunctionCallError(protocol.FuncPermissionDenied, call.Name, reason)

	case DecisionRequiresApproval:
		approved, err := r.awaitApproval(ctx, call)
		if err != nil {
			return protocol.ToolOutput{}, protocol.NewFunctionCallError(protocol.FuncExecution, call.Name, err.Error())
		}
		if !approved {
			return protocol.ToolOutput{}, protocol.NewFunctionCallError(protocol.FuncPermissionDenied, call.Name, "operator denied the approval request")
		}
		return r.registry.dispatch(ctx, call)

	default: // DecisionApproved
		return r.registry.dispatch(ctx, call)
	}
}

// awaitApproval emits EventExecApprovalRequest (if a TurnScope is present
// on ctx) and blocks until the matching OpExecApproval submission
// resolves it, the caller's context is cancelled, or the turn is
// interrupted (scenario S5: an Interrupt op cancels ctx, which unblocks
// Await with an error).
func (r *Router) awaitApproval(ctx context.Context, call protocol.ToolCall) (bool, error) {
	pending := r.approvals.Create(call.Name)

	if scope, ok := turnexec.TurnScopeFromContext(ctx); ok && scope.Events != nil {
		scope.Events <- protocol.EventMsg{
			Type:              protocol.EventExecApprovalRequest,
			ThreadId:          scope.ThreadId,
			TurnId:            scope.TurnId,
			ApprovalRequestId: pending.Id,
			ToolName:          call.Name,
		}
	}

	return pending.Await(ctx)
}

// DefaultShellCommandExtractor recognizes the conventional "command" or
// "cmd" string argument used by the kept exec tools.
func DefaultShellCommandExtractor(toolName, arguments string) string {
	var v struct {
		Command string `json:"command"`
		Cmd     string `json:"cmd"`
	}
	if err := json.Unmarshal([]byte(arguments), &v); err != nil {
		return ""
	}
	if v.Command != "" {
		return v.Command
	}
	return v.Cmd
}
