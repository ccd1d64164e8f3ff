package agentcontrol

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/brandlll-lee/cokra/internal/agent/turnexec"
	"github.com/brandlll-lee/cokra/internal/protocol"
	"github.com/brandlll-lee/cokra/internal/spawnguard"
)

// SpawnAnnouncer is called around a successful spawn, e.g. to emit
// CollabAgentSpawnBegin/End on an event sink. Implementations must not
// block meaningfully; errors are ignored (best-effort, matching the
// teacher's subagent announcer pattern).
type SpawnAnnouncer func(msg protocol.EventMsg)

// Control owns one agent's lifecycle: its status FSM, its TurnConfig, and
// spawn_agent. It shares ModelClient, ToolRegistry, and Session state
// with peer Controls but exclusively owns status and TurnConfig.
type Control struct {
	rootThreadId protocol.ThreadId
	threadId     protocol.ThreadId
	depth        int

	watch *StatusWatch

	cfgMu sync.RWMutex
	cfg   turnexec.TurnConfig

	executor *turnexec.Executor
	manager  *spawnguard.WeakRef
	guards   *spawnguard.Guards

	announce SpawnAnnouncer

	historyMu sync.Mutex
	history   []protocol.Message
}

// New constructs a Control for a thread already registered in manager
// (the caller — the runtime for the root, or a parent Control's
// spawn_agent for a child — is responsible for registering ThreadInfo
// before or immediately after calling New).
func New(threadId protocol.ThreadId, depth int, executor *turnexec.Executor, manager *spawnguard.WeakRef, guards *spawnguard.Guards, cfg turnexec.TurnConfig) *Control {
	return &Control{
		rootThreadId: threadId,
		threadId:     threadId,
		depth:        depth,
		watch:        NewStatusWatch(StatusPendingInit),
		cfg:          cfg,
		executor:     executor,
		manager:      manager,
		guards:       guards,
	}
}

func (c *Control) SetAnnouncer(fn SpawnAnnouncer) { c.announce = fn }

func (c *Control) RootThreadId() protocol.ThreadId { return c.rootThreadId }

func (c *Control) Status() Status { return c.watch.Current() }

func (c *Control) SubscribeStatus() <-chan Status { return c.watch.Subscribe() }

// Start transitions PendingInit -> Initializing -> Ready.
func (c *Control) Start() error {
	if !c.watch.Set(StatusInitializing) {
		return fmt.Errorf("agentcontrol: cannot start from %s", c.Status())
	}
	if !c.watch.Set(StatusReady) {
		return fmt.Errorf("agentcontrol: cannot reach ready from %s", c.Status())
	}
	return nil
}

// SetTurnConfig replaces the working config (e.g. on ConfigureSession).
func (c *Control) SetTurnConfig(mutate func(cfg *turnexec.TurnConfig)) {
	c.cfgMu.Lock()
	defer c.cfgMu.Unlock()
	mutate(&c.cfg)
}

func (c *Control) cloneTurnConfig() turnexec.TurnConfig {
	c.cfgMu.RLock()
	defer c.cfgMu.RUnlock()
	return c.cfg
}

// ProcessTurn asserts Ready->Busy, runs the turn executor, then
// transitions to Ready on success or Error(msg) on failure. A second
// attempt while Busy is rejected, serializing turns per spec.md §5.
func (c *Control) ProcessTurn(ctx context.Context, turnId, userText string, events chan<- protocol.EventMsg) (turnexec.TurnResult, error) {
	if !c.watch.Set(StatusBusy) {
		close(events)
		return turnexec.TurnResult{}, fmt.Errorf("agentcontrol: cannot process turn from %s", c.Status())
	}

	cfg := c.cloneTurnConfig()

	c.historyMu.Lock()
	history := append([]protocol.Message(nil), c.history...)
	c.historyMu.Unlock()

	result, newHistory, err := c.executor.Run(ctx, c.threadId, turnId, userText, history, cfg, events)

	c.historyMu.Lock()
	c.history = newHistory
	c.historyMu.Unlock()

	if err != nil {
		c.watch.Set(StatusError)
		return result, err
	}
	c.watch.Set(StatusReady)
	return result, nil
}

// Stop transitions to Shutdown from any non-terminal state.
func (c *Control) Stop() error {
	if !c.watch.Set(StatusShutdown) {
		return fmt.Errorf("agentcontrol: cannot stop from %s", c.Status())
	}
	return nil
}

var (
	errEmptyTask      = errors.New("non-empty task")
	errManagerDropped = errors.New("thread manager dropped")
)

// SpawnAgent implements spec.md §4.3's spawn_agent algorithm.
func (c *Control) SpawnAgent(task, role string, depth int, maxThreads *int) (protocol.ThreadId, error) {
	if task == "" {
		return protocol.ThreadId{}, errEmptyTask
	}
	if depth > spawnguard.MaxThreadSpawnDepth {
		return protocol.ThreadId{}, fmt.Errorf("spawn depth %d exceeds max supported depth", depth)
	}

	manager, ok := c.manager.Upgrade()
	if !ok {
		return protocol.ThreadId{}, errManagerDropped
	}

	reservation, err := c.guards.ReserveSpawnSlot(maxThreads)
	if err != nil {
		return protocol.ThreadId{}, err
	}
	defer reservation.Drop() // no-op once committed below

	if c.announce != nil {
		c.announce(protocol.EventMsg{
			Type:           protocol.EventCollabAgentSpawnBegin,
			ThreadId:       c.threadId,
			ParentThreadId: &c.threadId,
			Role:           role,
		})
	}

	childId := protocol.NewThreadId()
	manager.Register(protocol.ThreadInfo{
		ThreadId:       childId,
		ParentThreadId: &c.threadId,
		Depth:          depth,
		Role:           role,
		Task:           task,
	})
	reservation.Commit(childId)

	if c.announce != nil {
		c.announce(protocol.EventMsg{
			Type:        protocol.EventCollabAgentSpawnEnd,
			ThreadId:    childId,
			SpawnStatus: "created",
		})
	}

	return childId, nil
}

// ShutdownSpawnedAgent releases the child's reservation slot and removes
// it from the registry.
func (c *Control) ShutdownSpawnedAgent(childId protocol.ThreadId) error {
	manager, ok := c.manager.Upgrade()
	if !ok {
		return errManagerDropped
	}
	c.guards.ReleaseThread(childId)
	manager.Remove(childId)
	return nil
}
