// Package spawnguard enforces the hard thread-count and spawn-depth
// limits on agent spawning, and owns the thread registry. It is the Go
// rendering of the teacher's atomic active-count check in
// internal/tools/subagent/spawn.go, upgraded from a load-then-add race to
// a proper CAS retry loop per the invariant that reserve_spawn_slot must
// be atomic.
package spawnguard

import (
	"sync"
	"sync/atomic"

	"github.com/brandlll-lee/cokra/internal/protocol"
)

// MaxThreadSpawnDepth is the hard spawn-depth limit (Open Question #1:
// the source disagreed between 1 and 5; this implementation picks 1).
const MaxThreadSpawnDepth = 1

// Guards enforces total_count <= max_threads via a lock-free CAS loop,
// plus a mutex-protected set of committed thread ids so a reservation can
// only ever be released once.
type Guards struct {
	totalCount int64 // atomic

	mu      sync.Mutex
	threads map[protocol.ThreadId]struct{}
}

func NewGuards() *Guards {
	return &Guards{threads: make(map[protocol.ThreadId]struct{})}
}

// TotalCount returns the current committed reservation count.
func (g *Guards) TotalCount() int64 {
	return atomic.LoadInt64(&g.totalCount)
}

// ReserveSpawnSlot attempts to atomically move total_count from k<max to
// k+1. maxThreads == nil means unbounded: the counter is incremented
// unconditionally. Returns ErrAgentLimitReached if, and only if, the
// counter could not be advanced because it was already at max.
func (g *Guards) ReserveSpawnSlot(maxThreads *int) (*Reservation, error) {
	if maxThreads == nil {
		atomic.AddInt64(&g.totalCount, 1)
		return &Reservation{guards: g, unbounded: true}, nil
	}

	max := int64(*maxThreads)
	for {
		cur := atomic.LoadInt64(&g.totalCount)
		if cur >= max {
			return nil, &protocol.GuardError{MaxThreads: *maxThreads}
		}
		if atomic.CompareAndSwapInt64(&g.totalCount, cur, cur+1) {
			return &Reservation{guards: g}, nil
		}
		// Spurious CAS failure (another goroutine raced us): retry.
	}
}

// release is called by a Reservation on drop-without-commit, or by
// ReleaseThread for a committed one. It only decrements the counter if
// the reservation had not already been released, protecting against
// double-release.
func (g *Guards) release(r *Reservation) {
	if !r.markReleasedOnce() {
		return
	}
	if r.committedId != nil {
		g.mu.Lock()
		delete(g.threads, *r.committedId)
		g.mu.Unlock()
	}
	atomic.AddInt64(&g.totalCount, -1)
}

// markCommitted records the thread id as registered under a committed
// reservation, so a later release can be matched against it.
func (g *Guards) markCommitted(id protocol.ThreadId) {
	g.mu.Lock()
	g.threads[id] = struct{}{}
	g.mu.Unlock()
}

// ReleaseThread releases the slot held by a previously committed
// reservation, identified by thread id (used by shutdown_spawned_agent,
// which does not retain the original Reservation value). It is a no-op if
// the id was never committed.
func (g *Guards) ReleaseThread(id protocol.ThreadId) {
	g.mu.Lock()
	_, ok := g.threads[id]
	if ok {
		delete(g.threads, id)
	}
	g.mu.Unlock()
	if ok {
		atomic.AddInt64(&g.totalCount, -1)
	}
}

// Reservation is an RAII-style token: it must be either Commit-ed exactly
// once (binding it to a thread id and registering it in the committed
// set) or released by calling Drop. A Reservation that is committed is no
// longer releasable via Drop — its slot outlives the reservation and is
// only freed later via Guards.ReleaseThread.
type Reservation struct {
	guards      *Guards
	unbounded   bool
	committedId *protocol.ThreadId
	released    int32 // atomic
	committed   int32 // atomic
}

func (r *Reservation) markReleasedOnce() bool {
	return atomic.CompareAndSwapInt32(&r.released, 0, 1)
}

// Commit binds the reservation to a thread id, transitioning it to
// "committed and associated with a thread_id". After Commit, Drop is a
// no-op: the slot is owned by the thread registry until
// Guards.ReleaseThread is called for that id.
func (r *Reservation) Commit(id protocol.ThreadId) {
	if !atomic.CompareAndSwapInt32(&r.committed, 0, 1) {
		return
	}
	r.committedId = &id
	if r.guards != nil && !r.unbounded {
		r.guards.markCommitted(id)
	}
	// Mark released so a later Drop call (e.g. via defer) is inert; the
	// slot's lifetime is now owned by the registry, not this value.
	atomic.StoreInt32(&r.released, 1)
}

// Drop releases an uncommitted reservation's slot. Safe to call multiple
// times and safe to call after Commit (no-op in that case). Intended to
// be deferred immediately after a successful ReserveSpawnSlot.
func (r *Reservation) Drop() {
	if atomic.LoadInt32(&r.committed) == 1 {
		return
	}
	if r.guards == nil {
		return
	}
	r.guards.release(r)
}
