package protocol

// ToolHandlerType discriminates how a ToolSpec is dispatched.
type ToolHandlerType string

const (
	ToolHandlerFunction ToolHandlerType = "function"
	ToolHandlerMcp      ToolHandlerType = "mcp"
)

// JSONSchemaProp is one property of a tool's input_schema, supporting the
// recursive object/array subset §6 documents.
type JSONSchemaProp struct {
	Type        string                    `json:"type"`
	Description string                    `json:"description,omitempty"`
	Items       *JSONSchemaProp           `json:"items,omitempty"`
	Properties  map[string]JSONSchemaProp `json:"properties,omitempty"`
	Required    []string                  `json:"required,omitempty"`
	Enum        []string                  `json:"enum,omitempty"`
}

// ToolInputSchema is the top-level JSON-Schema subset sent to the model.
type ToolInputSchema struct {
	Type       string                    `json:"type"`
	Properties map[string]JSONSchemaProp `json:"properties,omitempty"`
	Required   []string                  `json:"required,omitempty"`
}

// ToolSpec declares one tool the model may call.
type ToolSpec struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema ToolInputSchema `json:"input_schema"`
	HandlerType ToolHandlerType `json:"handler_type"`
	Permissions []string        `json:"permissions,omitempty"`
	// IsMutating hints to policy/audit that this tool has side effects.
	IsMutating bool `json:"is_mutating,omitempty"`
}

// ToolInvocation is one model-issued call, with raw JSON-text arguments
// (parsed lazily by the handler, not the router).
type ToolInvocation struct {
	Id        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolOutput is a handler's result. Id defaults to the invocation id if
// the handler leaves it empty.
type ToolOutput struct {
	Id      string `json:"id"`
	Content string `json:"content"`
	IsError bool   `json:"is_error,omitempty"`
}
