package turnexec

import (
	"context"

	"github.com/brandlll-lee/cokra/internal/protocol"
)

// TurnScope carries the identifiers and event sink a ToolRouter needs to
// emit its own events (e.g. ExecCommandBegin/End, ExecApprovalRequest)
// without widening the ToolRouter interface itself.
type TurnScope struct {
	ThreadId protocol.ThreadId
	TurnId   string
	Events   chan<- protocol.EventMsg
}

type turnScopeKey struct{}

func WithTurnScope(ctx context.Context, scope TurnScope) context.Context {
	return context.WithValue(ctx, turnScopeKey{}, scope)
}

// TurnScopeFromContext returns the scope Run attached to ctx before
// calling the router, or ok=false if none is present (e.g. in a unit
// test that calls a router directly).
func TurnScopeFromContext(ctx context.Context) (TurnScope, bool) {
	scope, ok := ctx.Value(turnScopeKey{}).(TurnScope)
	return scope, ok
}
