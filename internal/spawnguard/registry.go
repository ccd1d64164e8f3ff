package spawnguard

import (
	"sync"

	"github.com/brandlll-lee/cokra/internal/protocol"
)

// ThreadManager is the shared registry mapping ThreadId -> ThreadInfo,
// plus a broadcast channel of thread_id creations. It is held by strong
// ownership from the runtime; AgentControl instances hold only a weak
// back-reference (see NewWeakRef) to break the control -> manager ->
// (child controls) -> ... -> control cycle described in spec.md §9.
type ThreadManager struct {
	mu      sync.RWMutex
	threads map[protocol.ThreadId]protocol.ThreadInfo

	subMu       sync.Mutex
	subscribers []chan protocol.ThreadId
}

func NewThreadManager() *ThreadManager {
	return &ThreadManager{threads: make(map[protocol.ThreadId]protocol.ThreadInfo)}
}

// Register inserts a ThreadInfo and publishes the new id to all current
// subscribers (non-blocking: a full subscriber channel is skipped, not
// awaited).
func (m *ThreadManager) Register(info protocol.ThreadInfo) {
	m.mu.Lock()
	m.threads[info.ThreadId] = info
	m.mu.Unlock()

	m.subMu.Lock()
	subs := append([]chan protocol.ThreadId(nil), m.subscribers...)
	m.subMu.Unlock()
	for _, ch := range subs {
		select {
		case ch <- info.ThreadId:
		default:
		}
	}
}

// Get returns the ThreadInfo for id, if present.
func (m *ThreadManager) Get(id protocol.ThreadId) (protocol.ThreadInfo, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	info, ok := m.threads[id]
	return info, ok
}

// Remove deletes a thread entry (used by shutdown_spawned_agent).
func (m *ThreadManager) Remove(id protocol.ThreadId) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.threads, id)
}

// Size returns the number of registered threads.
func (m *ThreadManager) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.threads)
}

// SubscribeCreations returns a channel of newly created thread ids. The
// channel has capacity 32; slow subscribers miss creations rather than
// blocking Register.
func (m *ThreadManager) SubscribeCreations() <-chan protocol.ThreadId {
	ch := make(chan protocol.ThreadId, 32)
	m.subMu.Lock()
	m.subscribers = append(m.subscribers, ch)
	m.subMu.Unlock()
	return ch
}

// WeakRef is a non-owning handle to a ThreadManager. Agents hold a WeakRef
// rather than a *ThreadManager so the manager can be torn down
// independently of any one agent; Upgrade fails once the manager has been
// cleared via Invalidate.
type WeakRef struct {
	mu     sync.RWMutex
	target *ThreadManager
}

func NewWeakRef(m *ThreadManager) *WeakRef {
	return &WeakRef{target: m}
}

// Upgrade returns the live ThreadManager, or ok=false if it has been
// invalidated ("thread manager dropped", per spec.md §4.3 step 3).
func (w *WeakRef) Upgrade() (*ThreadManager, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.target == nil {
		return nil, false
	}
	return w.target, true
}

// Invalidate clears the reference, causing future Upgrade calls to fail.
func (w *WeakRef) Invalidate() {
	w.mu.Lock()
	w.target = nil
	w.mu.Unlock()
}
