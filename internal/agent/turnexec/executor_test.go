package turnexec

import (
	"context"
	"testing"

	"github.com/brandlll-lee/cokra/internal/protocol"
)

type scriptedModel struct {
	scripts [][]protocol.ResponseEvent
	calls   int
}

func (m *scriptedModel) ResponsesStream(ctx context.Context, req protocol.ChatRequest) (<-chan protocol.ResponseEvent, error) {
	script := m.scripts[m.calls]
	m.calls++
	ch := make(chan protocol.ResponseEvent, len(script))
	for _, ev := range script {
		ch <- ev
	}
	close(ch)
	return ch, nil
}

type stubRouter struct {
	outputs map[string]protocol.ToolOutput
}

func (r *stubRouter) RouteToolCall(ctx context.Context, call protocol.ToolCall) (protocol.ToolOutput, error) {
	out, ok := r.outputs[call.Id]
	if !ok {
		return protocol.ToolOutput{}, protocol.NewFunctionCallError(protocol.FuncToolNotFound, call.Name, "no such tool")
	}
	return out, nil
}

func drain(ch <-chan protocol.EventMsg) []protocol.EventMsg {
	var out []protocol.EventMsg
	for ev := range ch {
		out = append(out, ev)
	}
	return out
}

// TestRun_PureTextTurn is scenario S1 from spec.md §8.
func TestRun_PureTextTurn(t *testing.T) {
	model := &scriptedModel{scripts: [][]protocol.ResponseEvent{
		{protocol.ContentDelta("Hello", 0), protocol.ContentDelta(" world", 1), protocol.EndTurn()},
	}}
	exec := NewExecutor(model, &stubRouter{})
	events := make(chan protocol.EventMsg, 32)

	threadId := protocol.NewThreadId()
	var result TurnResult
	var err error
	done := make(chan struct{})
	go func() {
		result, _, err = exec.Run(context.Background(), threadId, "t1", "hello", nil, TurnConfig{Model: "gpt"}, events)
		close(done)
	}()
	labels := drain(events)
	<-done

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success || result.Content != "Hello world" {
		t.Fatalf("unexpected result: %+v", result)
	}

	want := []protocol.EventMsgType{
		protocol.EventTurnStarted,
		protocol.EventItemStarted,
		protocol.EventAgentMessageContentDelta,
		protocol.EventAgentMessageContentDelta,
		protocol.EventItemCompleted,
		protocol.EventTurnComplete,
	}
	assertLabelSequence(t, labels, want)
	if labels[len(labels)-1].Result != "Hello world" {
		t.Fatalf("expected cumulative result on TurnComplete, got %q", labels[len(labels)-1].Result)
	}
}

// TestRun_SingleToolCallLoop is scenario S2 from spec.md §8.
func TestRun_SingleToolCallLoop(t *testing.T) {
	model := &scriptedModel{scripts: [][]protocol.ResponseEvent{
		{
			protocol.ContentDelta("I'll read it. ", 0),
			protocol.FunctionCall("read_1", "read_file", `{"file_path":"demo.txt"}`),
			protocol.EndTurn(),
		},
		{
			protocol.ContentDelta("File content: hello from tool", 0),
			protocol.EndTurn(),
		},
	}}
	router := &stubRouter{outputs: map[string]protocol.ToolOutput{
		"read_1": {Content: "hello from tool"},
	}}
	exec := NewExecutor(model, router)
	events := make(chan protocol.EventMsg, 32)

	threadId := protocol.NewThreadId()
	var history []protocol.Message
	done := make(chan struct{})
	go func() {
		_, history, _ = exec.Run(context.Background(), threadId, "t1", "read demo.txt", nil, TurnConfig{Model: "gpt", EnableTools: true}, events)
		close(done)
	}()
	labels := drain(events)
	<-done

	started := countType(labels, protocol.EventItemStarted)
	completed := countType(labels, protocol.EventItemCompleted)
	if started != 2 || completed != 2 {
		t.Fatalf("expected 2 ItemStarted and 2 ItemCompleted, got %d/%d", started, completed)
	}
	terminal := countType(labels, protocol.EventTurnComplete)
	if terminal != 1 {
		t.Fatalf("expected exactly one terminal TurnComplete, got %d", terminal)
	}

	var foundToolMsg bool
	for _, m := range history {
		if m.Role == protocol.MessageTool && m.ToolCallId == "read_1" && m.Content == "hello from tool" {
			foundToolMsg = true
		}
	}
	if !foundToolMsg {
		t.Fatalf("expected a Tool message for read_1 in history, got %+v", history)
	}
	if err := protocol.ValidateHistory(history); err != "" {
		t.Fatalf("history failed tool_call/tool_result pairing invariant: unclosed call %s", err)
	}
}

// fixedErrRouter always fails every call with the given error.
type fixedErrRouter struct {
	err error
}

func (r *fixedErrRouter) RouteToolCall(ctx context.Context, call protocol.ToolCall) (protocol.ToolOutput, error) {
	return protocol.ToolOutput{}, r.err
}

// TestRun_FatalPermissionDeniedAbortsTurn covers the §7 exception: a
// never-mode PermissionDenied (Fatal) aborts the turn instead of being fed
// back to the model as a Tool message.
func TestRun_FatalPermissionDeniedAbortsTurn(t *testing.T) {
	model := &scriptedModel{scripts: [][]protocol.ResponseEvent{
		{protocol.FunctionCall("c", "rm_file", "{}"), protocol.EndTurn()},
	}}
	router := &fixedErrRouter{err: protocol.NewFatalFunctionCallError(protocol.FuncPermissionDenied, "rm_file", "approval mode never")}
	exec := NewExecutor(model, router)
	events := make(chan protocol.EventMsg, 32)

	threadId := protocol.NewThreadId()
	var result TurnResult
	var err error
	done := make(chan struct{})
	go func() {
		result, _, err = exec.Run(context.Background(), threadId, "t1", "hi", nil, TurnConfig{Model: "gpt", EnableTools: true}, events)
		close(done)
	}()
	labels := drain(events)
	<-done

	if err == nil || result.Success {
		t.Fatalf("expected a fatal PermissionDenied to abort the turn, got result=%+v err=%v", result, err)
	}
	var foundErr bool
	for _, ev := range labels {
		if ev.Type == protocol.EventError {
			foundErr = true
		}
	}
	if !foundErr {
		t.Fatalf("expected an Error event, got %+v", labels)
	}
}

// TestRun_NonFatalPermissionDeniedContinuesTurn covers the default case:
// a PermissionDenied that isn't the never-mode exception surfaces as a Tool
// message so the model can react, rather than aborting the turn.
func TestRun_NonFatalPermissionDeniedContinuesTurn(t *testing.T) {
	model := &scriptedModel{scripts: [][]protocol.ResponseEvent{
		{protocol.FunctionCall("c", "read_file", `{"path":"../etc/passwd"}`), protocol.EndTurn()},
		{protocol.ContentDelta("can't read that", 0), protocol.EndTurn()},
	}}
	router := &fixedErrRouter{err: protocol.NewFunctionCallError(protocol.FuncPermissionDenied, "read_file", "path traversal in tool arguments")}
	exec := NewExecutor(model, router)
	events := make(chan protocol.EventMsg, 32)

	threadId := protocol.NewThreadId()
	var result TurnResult
	var history []protocol.Message
	var err error
	done := make(chan struct{})
	go func() {
		result, history, err = exec.Run(context.Background(), threadId, "t1", "hi", nil, TurnConfig{Model: "gpt", EnableTools: true}, events)
		close(done)
	}()
	drain(events)
	<-done

	if err != nil || !result.Success {
		t.Fatalf("expected a non-fatal PermissionDenied to let the turn continue, got result=%+v err=%v", result, err)
	}
	var foundToolMsg bool
	for _, m := range history {
		if m.Role == protocol.MessageTool && m.ToolCallId == "c" && m.Content != "" {
			foundToolMsg = true
		}
	}
	if !foundToolMsg {
		t.Fatalf("expected a Tool error message for the denied call in history, got %+v", history)
	}
}

// TestRun_ErrorEventAbortsTurn is scenario S6 from spec.md §8.
func TestRun_ErrorEventAbortsTurn(t *testing.T) {
	model := &scriptedModel{scripts: [][]protocol.ResponseEvent{
		{protocol.ContentDelta("partial", 0), protocol.ErrorEvent("boom")},
	}}
	exec := NewExecutor(model, &stubRouter{})
	events := make(chan protocol.EventMsg, 32)

	threadId := protocol.NewThreadId()
	var err error
	done := make(chan struct{})
	go func() {
		_, _, err = exec.Run(context.Background(), threadId, "t1", "hi", nil, TurnConfig{Model: "gpt"}, events)
		close(done)
	}()
	labels := drain(events)
	<-done

	if err == nil {
		t.Fatalf("expected turn to fail")
	}
	if countType(labels, protocol.EventTurnComplete) != 0 {
		t.Fatalf("expected no TurnComplete event on stream error")
	}
	var foundErr bool
	for _, ev := range labels {
		if ev.Type == protocol.EventError && ev.UserFacingMessage == "boom" {
			foundErr = true
		}
	}
	if !foundErr {
		t.Fatalf("expected an Error event with user_facing_message=boom, got %+v", labels)
	}
}

func TestRun_MaxIterationsExceeded(t *testing.T) {
	script := []protocol.ResponseEvent{protocol.FunctionCall("c", "noop", "{}"), protocol.EndTurn()}
	scripts := make([][]protocol.ResponseEvent, MaxIterations)
	for i := range scripts {
		scripts[i] = script
	}
	model := &scriptedModel{scripts: scripts}
	router := &stubRouter{outputs: map[string]protocol.ToolOutput{"c": {Content: "ok"}}}
	exec := NewExecutor(model, router)
	events := make(chan protocol.EventMsg, 256)

	var err error
	done := make(chan struct{})
	go func() {
		_, _, err = exec.Run(context.Background(), protocol.NewThreadId(), "t1", "loop forever", nil, TurnConfig{Model: "gpt", EnableTools: true}, events)
		close(done)
	}()
	drain(events)
	<-done

	if err == nil {
		t.Fatalf("expected failure after exceeding MaxIterations")
	}
}

func assertLabelSequence(t *testing.T, events []protocol.EventMsg, want []protocol.EventMsgType) {
	t.Helper()
	if len(events) != len(want) {
		t.Fatalf("expected %d events, got %d: %+v", len(want), len(events), events)
	}
	for i, w := range want {
		if events[i].Type != w {
			t.Fatalf("event %d: expected %s, got %s", i, w, events[i].Type)
		}
	}
}

func countType(events []protocol.EventMsg, typ protocol.EventMsgType) int {
	n := 0
	for _, e := range events {
		if e.Type == typ {
			n++
		}
	}
	return n
}
