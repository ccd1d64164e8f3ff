// Package agentcontrol implements AgentControl: one agent's lifecycle,
// its AgentStatus finite-state machine, and spawn_agent (spec.md §4.3).
package agentcontrol

import "sync"

// Status is the AgentStatus state machine (spec.md §3/§4.3).
type Status string

const (
	StatusPendingInit   Status = "pending_init"
	StatusInitializing  Status = "initializing"
	StatusReady         Status = "ready"
	StatusBusy          Status = "busy"
	StatusError         Status = "error"
	StatusShutdown      Status = "shutdown"
)

// allowedTransitions enumerates every accepted (source, target) pair
// besides the universal idempotent self-transition s -> s.
var allowedTransitions = map[Status]map[Status]bool{
	StatusPendingInit:  {StatusInitializing: true},
	StatusInitializing: {StatusReady: true, StatusError: true},
	StatusReady:        {StatusBusy: true, StatusShutdown: true},
	StatusBusy:         {StatusReady: true, StatusError: true, StatusShutdown: true},
	StatusError:        {StatusReady: true, StatusShutdown: true},
	StatusShutdown:     {},
}

// CanTransitionTo reports whether from -> to is an accepted transition:
// one of the enumerated pairs, or any idempotent self-transition.
func CanTransitionTo(from, to Status) bool {
	if from == to {
		return true
	}
	return allowedTransitions[from][to]
}

// StatusWatch is a latest-value broadcast: late subscribers immediately
// see the current status, then only subsequent changes.
type StatusWatch struct {
	mu      sync.Mutex
	current Status
	subs    []chan Status
}

func NewStatusWatch(initial Status) *StatusWatch {
	return &StatusWatch{current: initial}
}

func (w *StatusWatch) Current() Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Set records a new status and publishes it to subscribers. Returns
// false (without changing state) if the transition is not allowed.
func (w *StatusWatch) Set(to Status) bool {
	w.mu.Lock()
	if !CanTransitionTo(w.current, to) {
		w.mu.Unlock()
		return false
	}
	w.current = to
	subs := append([]chan Status(nil), w.subs...)
	w.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- to:
		default:
		}
	}
	return true
}

// Subscribe returns a channel that immediately receives the current
// status, then every subsequent change. Buffered (size 8); a lagging
// subscriber misses intermediate values but always eventually observes
// the latest.
func (w *StatusWatch) Subscribe() <-chan Status {
	w.mu.Lock()
	ch := make(chan Status, 8)
	ch <- w.current
	w.subs = append(w.subs, ch)
	w.mu.Unlock()
	return ch
}
