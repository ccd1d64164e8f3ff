package stream

import (
	"testing"

	"github.com/brandlll-lee/cokra/internal/protocol"
)

func TestDeriveResponsesStream_ProjectsAndFlushesOnClose(t *testing.T) {
	chunks := make(chan protocol.Chunk, 4)
	chunks <- protocol.Chunk{Type: protocol.ChunkContent, Delta: "hi"}
	chunks <- protocol.Chunk{Type: protocol.ChunkToolCall, Tool: &protocol.ToolCallDelta{Id: "1", Name: "t", Arguments: "{}"}}
	close(chunks)

	var got []protocol.ResponseEvent
	for ev := range DeriveResponsesStream(chunks) {
		got = append(got, ev)
	}
	if len(got) != 3 {
		t.Fatalf("expected content_delta, function_call, end_turn; got %d: %+v", len(got), got)
	}
	if got[2].Type != protocol.ResponseEndTurn {
		t.Fatalf("expected stream close to flush EndTurn, got %+v", got[2])
	}
}

func TestDeriveResponsesStream_StopsAfterChunkError(t *testing.T) {
	chunks := make(chan protocol.Chunk, 2)
	chunks <- protocol.Chunk{Type: protocol.ChunkError, Message: "boom"}
	close(chunks)

	var got []protocol.ResponseEvent
	for ev := range DeriveResponsesStream(chunks) {
		got = append(got, ev)
	}
	if len(got) != 1 || got[0].Type != protocol.ResponseError {
		t.Fatalf("expected a single error event with no trailing EndTurn, got %+v", got)
	}
}
