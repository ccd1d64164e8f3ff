// Package queue implements the submission/event queue pair and the
// submission loop that owns the exclusive receiver end (spec.md §4.1): a
// single goroutine reads Submissions, starts at most one turn at a time
// per Control, and stays responsive to Interrupt/Shutdown while that
// turn runs by racing the turn's completion against the next
// Submission — the same ctx.Done()-vs-work-in-flight shape
// internal/agent/runtime.go's agentic loop uses per iteration, lifted
// here to cover an entire turn rather than one provider call.
package queue

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/brandlll-lee/cokra/internal/agent/agentcontrol"
	"github.com/brandlll-lee/cokra/internal/agent/turnexec"
	"github.com/brandlll-lee/cokra/internal/protocol"
	"github.com/brandlll-lee/cokra/internal/toolrouter"
)

const (
	DefaultSubmissionBuffer = 64
	DefaultEventBuffer      = 1024
)

// Approver resolves a pending exec approval request. Satisfied by
// *toolrouter.ApprovalStore; an interface so the engine doesn't force a
// toolrouter dependency on callers that route tools another way.
type Approver interface {
	Resolve(id string, approved bool)
}

var _ Approver = (*toolrouter.ApprovalStore)(nil)

// Engine owns one Control's submission loop: the bounded submit channel,
// the bounded event channel, and the internal re-queue FIFO for
// Submissions that arrive while a turn is already in flight.
type Engine struct {
	control   *agentcontrol.Control
	approvals Approver

	submissions chan protocol.Submission
	events      chan protocol.Event

	mu          sync.Mutex
	cancelTurn  context.CancelFunc
	interrupted atomic.Bool
}

func New(control *agentcontrol.Control, approvals Approver) *Engine {
	return &Engine{
		control:     control,
		approvals:   approvals,
		submissions: make(chan protocol.Submission, DefaultSubmissionBuffer),
		events:      make(chan protocol.Event, DefaultEventBuffer),
	}
}

// Submit enqueues a Submission. Blocks if the submit channel is full
// (backpressure is intentional, per spec.md §4.1's bounded channel).
func (e *Engine) Submit(sub protocol.Submission) { e.submissions <- sub }

// Events returns the event stream. Closed once Run returns after a
// Shutdown submission.
func (e *Engine) Events() <-chan protocol.Event { return e.events }

// Run is the submission loop's single owner. It returns once a Shutdown
// submission has been fully processed (any in-flight turn cancelled and
// drained) or ctx is cancelled from outside.
func (e *Engine) Run(ctx context.Context) {
	defer close(e.events)

	var pending []protocol.Submission
	turnDone := make(chan struct{})
	busy := false
	shuttingDown := false

	startTurn := func(sub protocol.Submission) {
		turnCtx, cancel := context.WithCancel(ctx)
		e.mu.Lock()
		e.cancelTurn = cancel
		e.mu.Unlock()
		e.interrupted.Store(false)
		busy = true

		go func() {
			e.runTurn(turnCtx, sub)
			e.mu.Lock()
			e.cancelTurn = nil
			e.mu.Unlock()
			turnDone <- struct{}{}
		}()
	}

	popPending := func() (protocol.Submission, bool) {
		if len(pending) == 0 {
			return protocol.Submission{}, false
		}
		next := pending[0]
		pending = pending[1:]
		return next, true
	}

	// handle dispatches one Submission and reports whether the loop
	// should return immediately afterward (a Shutdown that found nothing
	// in flight).
	handle := func(sub protocol.Submission) (done bool) {
		switch sub.Op.Type {
		case protocol.OpConfigureSession:
			e.control.SetTurnConfig(func(cfg *turnexec.TurnConfig) {
				if sub.Op.Model != "" {
					cfg.Model = sub.Op.Model
				}
			})
			e.events <- protocol.Event{Id: sub.Id, Msg: protocol.EventMsg{Type: protocol.EventSessionConfigured, Model: sub.Op.Model}}

		case protocol.OpUserInput, protocol.OpUserTurn:
			if strings.TrimSpace(sub.Op.JoinedText()) == "" {
				e.events <- protocol.Event{Id: sub.Id, Msg: protocol.EventMsg{Type: protocol.EventWarning, UserFacingMessage: "empty input ignored"}}
				break
			}
			startTurn(sub)

		case protocol.OpInterrupt:
			e.mu.Lock()
			active := e.cancelTurn != nil
			if active {
				e.interrupted.Store(true)
				e.cancelTurn()
			}
			e.mu.Unlock()
			if !active {
				e.events <- protocol.Event{Id: sub.Id, Msg: protocol.EventMsg{Type: protocol.EventTurnAborted, Status: protocol.TurnStatusFailed, Reason: "no active turn"}}
			}

		case protocol.OpExecApproval:
			if e.approvals != nil {
				e.approvals.Resolve(sub.Op.ApprovalRequestID, sub.Op.Approved)
			}

		case protocol.OpShutdown:
			shuttingDown = true
			e.mu.Lock()
			wasBusy := e.cancelTurn != nil
			if wasBusy {
				e.cancelTurn()
			}
			e.mu.Unlock()
			if !wasBusy {
				e.events <- protocol.Event{Msg: protocol.EventMsg{Type: protocol.EventShutdownComplete}}
				return true
			}

		default:
			e.events <- protocol.Event{Id: sub.Id, Msg: protocol.EventMsg{Type: protocol.EventWarning, UserFacingMessage: "unrecognized op"}}
		}
		return false
	}

	for {
		select {
		case <-ctx.Done():
			return

		case <-turnDone:
			busy = false
			if shuttingDown {
				e.events <- protocol.Event{Msg: protocol.EventMsg{Type: protocol.EventShutdownComplete}}
				return
			}
			if next, ok := popPending(); ok {
				if handle(next) {
					return
				}
			}

		case sub := <-e.submissions:
			if busy {
				// Interrupt/Shutdown/ExecApproval are handled immediately
				// even mid-turn; everything else re-queues until the
				// in-flight turn completes (spec.md §4.1).
				switch sub.Op.Type {
				case protocol.OpInterrupt, protocol.OpShutdown, protocol.OpExecApproval:
					if handle(sub) {
						return
					}
				default:
					pending = append(pending, sub)
				}
				continue
			}
			if handle(sub) {
				return
			}
		}
	}
}

// runTurn drives one turn and forwards its events, remapping a
// provider/model error caused by an Interrupt into TurnAborted so
// callers see the outcome they asked for rather than a raw stream error
// (scenario S5, spec.md §8).
func (e *Engine) runTurn(ctx context.Context, sub protocol.Submission) {
	turnEvents := make(chan protocol.EventMsg, 64)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for msg := range turnEvents {
			if e.interrupted.Load() && (msg.Type == protocol.EventError || msg.Type == protocol.EventTurnComplete) {
				msg = protocol.EventMsg{
					Type:     protocol.EventTurnAborted,
					ThreadId: msg.ThreadId,
					TurnId:   msg.TurnId,
					Status:   protocol.TurnStatusFailed,
					Reason:   "interrupted",
				}
			}
			e.events <- protocol.Event{Id: sub.Id, Msg: msg}
		}
	}()

	turnId := sub.Id
	_, _ = e.control.ProcessTurn(ctx, turnId, sub.Op.JoinedText(), turnEvents)
	<-done
}
