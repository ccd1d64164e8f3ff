// Package turnexec implements the streaming tool-call loop (spec.md
// §4.2): given a user turn and a TurnConfig snapshot, it drives the model
// to a terminal response, dispatching any tool calls the model emits
// through a ToolRouter, and emits the EventMsg sequence described by the
// regex in spec.md §8 invariant 7.
//
// This is the protocol-typed sibling of internal/agent/loop.go's
// AgenticLoop: same Init -> Stream -> ExecuteTools -> Continue/Complete
// phase shape, generalized from the teacher's models.Message/ResponseChunk
// shapes to protocol.Message/EventMsg/ResponseEvent.
package turnexec

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/brandlll-lee/cokra/internal/agents"
	"github.com/brandlll-lee/cokra/internal/protocol"
	"github.com/brandlll-lee/cokra/internal/usage"
)

// MaxIterations bounds the tool-call loop within one turn (spec.md §4.2).
const MaxIterations = 10

// DefaultHistoryWindow is the number of prior session messages included
// ahead of the new user message (spec.md §4.2 step 2: "last 100
// messages").
const DefaultHistoryWindow = 100

// ModelClient is the provider-agnostic streaming contract the turn
// executor consumes. Adapters derive this from chat_completion_stream via
// the stream.Projector; see internal/agent/providers.
type ModelClient interface {
	ResponsesStream(ctx context.Context, req protocol.ChatRequest) (<-chan protocol.ResponseEvent, error)
}

// ToolRouter dispatches one model-issued function call. Implemented by
// internal/tools' registry + validator.
type ToolRouter interface {
	RouteToolCall(ctx context.Context, call protocol.ToolCall) (protocol.ToolOutput, error)
}

// TurnConfig is the per-turn snapshot read-cloned at turn start (spec.md
// §3).
type TurnConfig struct {
	Model        string
	Temperature  *float64
	MaxTokens    *int
	SystemPrompt string
	EnableTools  bool
	Tools        []protocol.ToolSpec

	// ContextWindowTokens is the resolved context window size for Model
	// (spec.md §6's models.default_context_window), used to warn or
	// refuse to run a turn against a window too small to be useful.
	ContextWindowTokens int
}

// TurnResult is returned once the turn reaches a terminal state.
type TurnResult struct {
	Content string
	Usage   protocol.TokenUsage
	Success bool
}

// Executor drives one turn. It is stateless across turns; callers
// construct one per turn or reuse it serially (it holds no per-turn
// state between calls to Run).
type Executor struct {
	Model  ModelClient
	Router ToolRouter
}

func NewExecutor(model ModelClient, router ToolRouter) *Executor {
	return &Executor{Model: model, Router: router}
}

// Run executes one turn, writing EventMsg values to events as it
// progresses. events is closed by Run before it returns. History is the
// prior session history (read-only in, mutated copy out); the caller is
// responsible for persisting the returned history.
func (e *Executor) Run(ctx context.Context, threadId protocol.ThreadId, turnId string, userText string, history []protocol.Message, cfg TurnConfig, events chan<- protocol.EventMsg) (TurnResult, []protocol.Message, error) {
	defer close(events)

	if cfg.ContextWindowTokens > 0 {
		guard := agents.EvaluateContextWindowGuard(
			agents.ContextWindowInfo{Tokens: cfg.ContextWindowTokens, Source: agents.ContextWindowSourceModelsConfig},
			nil,
		)
		if guard.ShouldBlock {
			sessionErr := protocol.NewSessionError("configured context window is too small to run a turn")
			events <- errorEvent(threadId, turnId, sessionErr.Error())
			return TurnResult{Success: false}, history, sessionErr
		}
		if guard.ShouldWarn {
			slog.Warn("context window below recommended minimum", "thread_id", threadId.String(), "tokens", guard.Tokens)
		}
	}

	events <- protocol.EventMsg{Type: protocol.EventTurnStarted, ThreadId: threadId, TurnId: turnId, Model: cfg.Model}
	startedAt := time.Now()

	msgs := buildInitialMessages(cfg, history, userText)
	var cumulative string
	var turnUsage protocol.TokenUsage

	for iter := 0; iter < MaxIterations; iter++ {
		itemId := uuid.NewString()
		events <- protocol.EventMsg{Type: protocol.EventItemStarted, ThreadId: threadId, TurnId: turnId, ItemId: itemId, ItemType: "agent-message"}

		req := protocol.ChatRequest{
			Model:       cfg.Model,
			Messages:    msgs,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
			Stream:      true,
		}
		if cfg.EnableTools {
			req.Tools = cfg.Tools
		}

		respCh, err := e.Model.ResponsesStream(ctx, req)
		if err != nil {
			modelErr := asModelError(err)
			events <- errorEvent(threadId, turnId, modelErr.Error())
			return TurnResult{Success: false}, msgs, protocol.WrapModelError(modelErr)
		}

		var assistantDelta string
		var calls []protocol.ToolCall

		for ev := range respCh {
			switch ev.Type {
			case protocol.ResponseContentDelta:
				if ev.Text == "" {
					continue
				}
				assistantDelta += ev.Text
				events <- protocol.EventMsg{Type: protocol.EventAgentMessageContentDelta, ThreadId: threadId, TurnId: turnId, ItemId: itemId, Delta: ev.Text}
			case protocol.ResponseFunctionCall:
				calls = append(calls, protocol.ToolCall{Id: ev.Id, Name: ev.Function.Name, Arguments: ev.Function.Arguments})
			case protocol.ResponseError:
				modelErr := &protocol.ModelError{Kind: protocol.ModelStreamError, Message: ev.Message}
				events <- errorEvent(threadId, turnId, modelErr.Error())
				return TurnResult{Success: false}, msgs, protocol.WrapModelError(modelErr)
			case protocol.ResponseEndTurn:
				if ev.Usage != nil {
					turnUsage.Add(*ev.Usage)
				}
			}
		}

		msgs = append(msgs, protocol.AssistantMessage(assistantDelta, calls))
		cumulative += assistantDelta

		if len(calls) == 0 {
			events <- protocol.EventMsg{Type: protocol.EventItemCompleted, ThreadId: threadId, TurnId: turnId, ItemId: itemId, Result: assistantDelta}
			events <- protocol.EventMsg{Type: protocol.EventTurnComplete, ThreadId: threadId, TurnId: turnId, Status: protocol.TurnStatusSuccess, Result: cumulative, Usage: &turnUsage}
			slog.Info("turn complete",
				"thread_id", threadId.String(),
				"turn_id", turnId,
				"duration", usage.FormatDurationMs(time.Since(startedAt).Milliseconds()),
				"prompt_tokens", turnUsage.PromptTokens,
				"completion_tokens", turnUsage.CompletionTokens,
				"total_tokens", turnUsage.TotalTokens,
			)
			return TurnResult{Content: cumulative, Usage: turnUsage, Success: true}, msgs, nil
		}

		for _, call := range calls {
			out, err := e.Router.RouteToolCall(WithTurnScope(ctx, TurnScope{ThreadId: threadId, TurnId: turnId, Events: events}), call)
			if err != nil {
				fcErr := asFunctionCallError(err, call.Name)
				if fcErr.Kind == protocol.FuncPermissionDenied && fcErr.Fatal {
					events <- errorEvent(threadId, turnId, fcErr.Error())
					return TurnResult{Success: false}, msgs, protocol.WrapToolError(fcErr)
				}
				// Non-fatal tool errors surface to the model as a Tool
				// message so it can react, per §7 propagation policy.
				out = protocol.ToolOutput{Id: call.Id, Content: fcErr.Error(), IsError: true}
			}
			if out.Id == "" {
				out.Id = call.Id
			}
			msgs = append(msgs, protocol.ToolMessage(out.Id, out.Content))
		}

		events <- protocol.EventMsg{Type: protocol.EventItemCompleted, ThreadId: threadId, TurnId: turnId, ItemId: itemId, Result: assistantDelta}
	}

	sessionErr := protocol.NewSessionError("too many tool call iterations")
	events <- errorEvent(threadId, turnId, sessionErr.Error())
	return TurnResult{Success: false}, msgs, sessionErr
}

func buildInitialMessages(cfg TurnConfig, history []protocol.Message, userText string) []protocol.Message {
	var msgs []protocol.Message
	if cfg.SystemPrompt != "" {
		msgs = append(msgs, protocol.SystemMessage(cfg.SystemPrompt))
	}
	start := 0
	if len(history) > DefaultHistoryWindow {
		start = len(history) - DefaultHistoryWindow
	}
	msgs = append(msgs, history[start:]...)
	msgs = append(msgs, protocol.UserMessage(userText))
	return msgs
}

func errorEvent(threadId protocol.ThreadId, turnId, message string) protocol.EventMsg {
	return protocol.EventMsg{Type: protocol.EventError, ThreadId: threadId, TurnId: turnId, UserFacingMessage: message}
}

func asModelError(err error) *protocol.ModelError {
	if me, ok := err.(*protocol.ModelError); ok {
		return me
	}
	return &protocol.ModelError{Kind: protocol.ModelApiError, Message: err.Error()}
}

func asFunctionCallError(err error, toolName string) *protocol.FunctionCallError {
	if fc, ok := err.(*protocol.FunctionCallError); ok {
		return fc
	}
	return &protocol.FunctionCallError{Kind: protocol.FuncExecution, ToolName: toolName, Message: err.Error()}
}
