package turnexec

import (
	"context"
	"testing"

	"github.com/brandlll-lee/cokra/internal/protocol"
	"github.com/brandlll-lee/cokra/internal/testharness"
)

// eventShape is the type+result projection of an EventMsg with the
// non-deterministic ItemId/TurnId fields stripped, so the sequence can be
// golden-compared across runs.
type eventShape struct {
	Type   protocol.EventMsgType `json:"type"`
	Delta  string                `json:"delta,omitempty"`
	Result string                `json:"result,omitempty"`
}

func shapeEvents(events []protocol.EventMsg) []eventShape {
	shapes := make([]eventShape, len(events))
	for i, ev := range events {
		shapes[i] = eventShape{Type: ev.Type, Delta: ev.Delta, Result: ev.Result}
	}
	return shapes
}

// TestRun_PureTextTurn_GoldenEventSequence snapshots scenario S1's event
// shape sequence so a change to the turn loop's event emission order shows
// up as an explicit diff instead of silently passing other assertions.
func TestRun_PureTextTurn_GoldenEventSequence(t *testing.T) {
	model := &scriptedModel{scripts: [][]protocol.ResponseEvent{
		{protocol.ContentDelta("Hello", 0), protocol.ContentDelta(" world", 1), protocol.EndTurn()},
	}}
	exec := NewExecutor(model, &stubRouter{})
	events := make(chan protocol.EventMsg, 32)

	go func() {
		_, _, _ = exec.Run(context.Background(), protocol.NewThreadId(), "t1", "hello", nil, TurnConfig{Model: "gpt"}, events)
	}()
	labels := drain(events)

	golden := testharness.NewGolden(t)
	golden.AssertJSON(shapeEvents(labels))
}
