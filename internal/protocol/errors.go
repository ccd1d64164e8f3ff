package protocol

import "fmt"

// ModelErrorKind enumerates the ModelError taxonomy (§7).
type ModelErrorKind string

const (
	ModelAuthError            ModelErrorKind = "auth_error"
	ModelInvalidRequest       ModelErrorKind = "invalid_request"
	ModelInvalidResponse      ModelErrorKind = "invalid_response"
	ModelApiError             ModelErrorKind = "api_error"
	ModelRateLimited          ModelErrorKind = "rate_limited"
	ModelNetworkError         ModelErrorKind = "network_error"
	ModelStreamError          ModelErrorKind = "stream_error"
	ModelProviderNotFound     ModelErrorKind = "provider_not_found"
	ModelTimeout              ModelErrorKind = "timeout"
	ModelContextLimitExceeded ModelErrorKind = "context_limit_exceeded"
)

// ModelError is a structured provider-facing error.
type ModelError struct {
	Kind    ModelErrorKind
	Status  int // populated for ModelApiError
	Message string
	Cause   error
}

func (e *ModelError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("model error [%s status=%d]: %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("model error [%s]: %s", e.Kind, e.Message)
}

func (e *ModelError) Unwrap() error { return e.Cause }

func NewModelError(kind ModelErrorKind, message string) *ModelError {
	return &ModelError{Kind: kind, Message: message}
}

// FunctionCallErrorKind enumerates the FunctionCallError taxonomy (§7).
type FunctionCallErrorKind string

const (
	FuncInvalidArguments FunctionCallErrorKind = "invalid_arguments"
	FuncToolNotFound     FunctionCallErrorKind = "tool_not_found"
	FuncPermissionDenied FunctionCallErrorKind = "permission_denied"
	FuncValidation       FunctionCallErrorKind = "validation"
	FuncExecution        FunctionCallErrorKind = "execution"
	FuncOther            FunctionCallErrorKind = "other"
)

// FunctionCallError is returned by the tool router when a call cannot be
// turned into a ToolOutput. Fatal marks the narrow case that must abort the
// turn rather than surface as a Tool message (§7: PermissionDenied under
// never-mode); every other Kind/reason is recoverable by the model.
type FunctionCallError struct {
	Kind     FunctionCallErrorKind
	ToolName string
	Message  string
	Cause    error
	Fatal    bool
}

func (e *FunctionCallError) Error() string {
	if e.ToolName != "" {
		return fmt.Sprintf("function call error [%s] tool=%s: %s", e.Kind, e.ToolName, e.Message)
	}
	return fmt.Sprintf("function call error [%s]: %s", e.Kind, e.Message)
}

func (e *FunctionCallError) Unwrap() error { return e.Cause }

func NewFunctionCallError(kind FunctionCallErrorKind, toolName, message string) *FunctionCallError {
	return &FunctionCallError{Kind: kind, ToolName: toolName, Message: message}
}

// NewFatalFunctionCallError is NewFunctionCallError with Fatal set, for the
// never-mode PermissionDenied case that must abort the turn.
func NewFatalFunctionCallError(kind FunctionCallErrorKind, toolName, message string) *FunctionCallError {
	return &FunctionCallError{Kind: kind, ToolName: toolName, Message: message, Fatal: true}
}

// GuardError is raised by the spawn-guard layer.
type GuardError struct {
	MaxThreads int
}

func (e *GuardError) Error() string {
	return fmt.Sprintf("agent limit reached: max_threads=%d", e.MaxThreads)
}

// AgentLimitReachedError is the sole GuardError variant (§7).
type AgentLimitReachedError = GuardError

// TurnErrorKind enumerates the TurnError taxonomy (§7).
type TurnErrorKind string

const (
	TurnModelError    TurnErrorKind = "model_error"
	TurnToolError     TurnErrorKind = "tool_error"
	TurnToolNotFound  TurnErrorKind = "tool_not_found"
	TurnSessionError  TurnErrorKind = "session_error"
)

// TurnError wraps whichever taxonomy member aborted a turn.
type TurnError struct {
	Kind    TurnErrorKind
	Message string
	Cause   error
}

func (e *TurnError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("turn error [%s]: %s", e.Kind, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("turn error [%s]: %v", e.Kind, e.Cause)
	}
	return fmt.Sprintf("turn error [%s]", e.Kind)
}

func (e *TurnError) Unwrap() error { return e.Cause }

func NewSessionError(message string) *TurnError {
	return &TurnError{Kind: TurnSessionError, Message: message}
}

func WrapModelError(cause *ModelError) *TurnError {
	return &TurnError{Kind: TurnModelError, Message: cause.Error(), Cause: cause}
}

func WrapToolError(cause *FunctionCallError) *TurnError {
	kind := TurnToolError
	if cause.Kind == FuncToolNotFound {
		kind = TurnToolNotFound
	}
	return &TurnError{Kind: kind, Message: cause.Error(), Cause: cause}
}
