package toolrouter

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// PendingApproval is a round-trip awaiting an ExecApproval submission.
// Grounded on internal/agent/approval.go's ApprovalRequest/ApprovalStore,
// narrowed to the single in-memory resolve-by-id path the turn executor
// actually blocks on.
type PendingApproval struct {
	Id       string
	ToolName string
	resolve  chan bool
}

// ApprovalStore tracks requires_approval calls between the
// EventExecApprovalRequest they produce and the OpExecApproval submission
// that resolves them (spec.md §4.7, Open Question #3: full round trip,
// no short-circuit).
type ApprovalStore struct {
	mu      sync.Mutex
	pending map[string]*PendingApproval
}

func NewApprovalStore() *ApprovalStore {
	return &ApprovalStore{pending: make(map[string]*PendingApproval)}
}

// Create registers a new pending approval and returns its id.
func (s *ApprovalStore) Create(toolName string) *PendingApproval {
	p := &PendingApproval{Id: uuid.NewString(), ToolName: toolName, resolve: make(chan bool, 1)}
	s.mu.Lock()
	s.pending[p.Id] = p
	s.mu.Unlock()
	return p
}

// Resolve delivers an operator's ExecApproval decision to the waiting
// call, if one is still pending. Resolving an unknown or already-resolved
// id is a no-op (the round trip may have already timed out or been
// interrupted).
func (s *ApprovalStore) Resolve(id string, approved bool) {
	s.mu.Lock()
	p, ok := s.pending[id]
	if ok {
		delete(s.pending, id)
	}
	s.mu.Unlock()
	if ok {
		p.resolve <- approved
	}
}

// Await blocks until the approval is resolved, the context is cancelled,
// or done fires (interrupt mid-turn).
func (p *PendingApproval) Await(ctx context.Context) (bool, error) {
	select {
	case approved := <-p.resolve:
		return approved, nil
	case <-ctx.Done():
		return false, fmt.Errorf("toolrouter: approval %s cancelled: %w", p.Id, ctx.Err())
	}
}
