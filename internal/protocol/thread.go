// Package protocol defines the wire-level types shared between the
// submission/event queue pair, the turn executor, and the agent control
// plane: thread identity, the Op/Event tagged unions, the normalized
// provider-agnostic ResponseEvent stream, and the conversation Message
// model.
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// ThreadId is a stable, globally-unique thread identity. The root thread
// is created once at runtime startup; each spawned sub-agent gets a fresh
// one. Entries linger in the registry until an explicit shutdown removes
// them — a ThreadId is never reused.
type ThreadId uuid.UUID

// NewThreadId generates a fresh ThreadId.
func NewThreadId() ThreadId {
	return ThreadId(uuid.New())
}

// NilThreadId is the zero value, used to mean "no parent" for the root
// thread.
var NilThreadId = ThreadId(uuid.Nil)

func (t ThreadId) String() string {
	return uuid.UUID(t).String()
}

func (t ThreadId) IsNil() bool {
	return t == NilThreadId
}

func (t ThreadId) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *ThreadId) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return fmt.Errorf("protocol: invalid thread id %q: %w", s, err)
	}
	*t = ThreadId(id)
	return nil
}

// ThreadInfo describes one entry in the thread registry.
type ThreadInfo struct {
	ThreadId       ThreadId  `json:"thread_id"`
	ParentThreadId *ThreadId `json:"parent_thread_id,omitempty"`
	Depth          int       `json:"depth"`
	Role           string    `json:"role"`
	Task           string    `json:"task"`
	CreatedAt      int64     `json:"created_at"` // unix nanos, caller-stamped
}
