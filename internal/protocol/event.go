package protocol

// EventMsgType discriminates the EventMsg tagged union.
type EventMsgType string

const (
	EventSessionConfigured EventMsgType = "session_configured"
	EventTurnStarted       EventMsgType = "turn_started"
	EventTurnComplete      EventMsgType = "turn_complete"
	EventTurnAborted       EventMsgType = "turn_aborted"
	EventShutdownComplete  EventMsgType = "shutdown_complete"
	EventError             EventMsgType = "error"
	EventWarning           EventMsgType = "warning"

	EventItemStarted             EventMsgType = "item_started"
	EventAgentMessageContentDelta EventMsgType = "agent_message_content_delta"
	EventItemCompleted           EventMsgType = "item_completed"

	EventExecCommandBegin   EventMsgType = "exec_command_begin"
	EventExecCommandOutput  EventMsgType = "exec_command_output"
	EventExecCommandEnd     EventMsgType = "exec_command_end"
	EventExecApprovalRequest EventMsgType = "exec_approval_request"

	EventCollabAgentSpawnBegin EventMsgType = "collab_agent_spawn_begin"
	EventCollabAgentSpawnEnd   EventMsgType = "collab_agent_spawn_end"
)

// TurnStatus is the terminal status carried by TurnComplete.
type TurnStatus string

const (
	TurnStatusSuccess TurnStatus = "success"
	TurnStatusFailed  TurnStatus = "failed"
)

// TokenUsage accumulates prompt/completion token counts across a turn's
// iterations (Open Question #2: summed, never downgraded to zero).
type TokenUsage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
}

// Add accumulates another reading into u, in place. A zero reading never
// downgrades an existing non-zero total.
func (u *TokenUsage) Add(other TokenUsage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
}

// EventMsg is the tagged-union payload of an Event.
type EventMsg struct {
	Type EventMsgType `json:"type"`

	ThreadId ThreadId `json:"thread_id,omitempty"`
	TurnId   string   `json:"turn_id,omitempty"`

	// EventSessionConfigured
	Model string `json:"model,omitempty"`

	// EventTurnComplete / EventTurnAborted
	Status TurnStatus `json:"status,omitempty"`
	Reason string     `json:"reason,omitempty"`
	Result string      `json:"result,omitempty"`
	Usage  *TokenUsage `json:"usage,omitempty"`

	// EventError / EventWarning
	UserFacingMessage string `json:"user_facing_message,omitempty"`
	Details           string `json:"details,omitempty"`

	// EventItemStarted / EventItemCompleted
	ItemId   string `json:"item_id,omitempty"`
	ItemType string `json:"item_type,omitempty"`

	// EventAgentMessageContentDelta
	Delta string `json:"delta,omitempty"`

	// Exec* events
	ExecCallId string   `json:"exec_call_id,omitempty"`
	Command    []string `json:"command,omitempty"`
	ExitCode   *int     `json:"exit_code,omitempty"`
	Output     string   `json:"output,omitempty"`

	// EventExecApprovalRequest
	ApprovalRequestId string `json:"approval_request_id,omitempty"`
	ToolName          string `json:"tool_name,omitempty"`

	// EventCollabAgentSpawnBegin / End
	ParentThreadId *ThreadId `json:"parent_thread_id,omitempty"`
	Role           string    `json:"role,omitempty"`
	SpawnStatus    string    `json:"spawn_status,omitempty"`
}

// Event is the unit delivered from RuntimeHandle.NextEvent /
// SubscribeEvents. Id matches the Submission.Id that produced it.
type Event struct {
	Id  string   `json:"id"`
	Msg EventMsg `json:"msg"`
}
