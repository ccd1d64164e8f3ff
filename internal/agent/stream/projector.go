// Package stream implements the provider-agnostic streaming normalizer:
// the Chunk -> ResponseEvent projector (§4.5) that every provider adapter
// can reuse so only chat_completion_stream needs a per-vendor
// implementation, and the usage-reading accumulator.
package stream

import (
	"sort"

	"github.com/brandlll-lee/cokra/internal/protocol"
)

// bufferedCall accumulates a streamed tool call's id/name/arguments
// across chunks, in first-seen order.
type bufferedCall struct {
	id        string
	name      string
	arguments string
	seq       int
}

// Projector is a stateful Chunk -> ResponseEvent converter. One Projector
// is used per stream; it is not safe for concurrent use.
type Projector struct {
	index       int
	calls       map[string]*bufferedCall
	order       []string
	lastId      string
	synthCount  int
	sawStop     bool
	usage       protocol.TokenUsage
}

func NewProjector() *Projector {
	return &Projector{calls: make(map[string]*bufferedCall)}
}

// Project consumes one Chunk and returns zero or more ResponseEvents.
func (p *Projector) Project(c protocol.Chunk) []protocol.ResponseEvent {
	switch c.Type {
	case protocol.ChunkContent:
		if c.Delta == "" {
			return nil
		}
		ev := protocol.ContentDelta(c.Delta, p.index)
		p.index++
		if c.Usage != nil {
			p.mergeUsage(*c.Usage)
		}
		return []protocol.ResponseEvent{ev}

	case protocol.ChunkToolCall:
		p.mergeToolCall(c.Tool)
		if c.Usage != nil {
			p.mergeUsage(*c.Usage)
		}
		return nil

	case protocol.ChunkMessageStop:
		p.sawStop = true
		if c.Usage != nil {
			p.mergeUsage(*c.Usage)
		}
		return p.flush(true)

	case protocol.ChunkError:
		return []protocol.ResponseEvent{protocol.ErrorEvent(c.Message)}

	default:
		return nil
	}
}

// End is called when the underlying provider stream closes. If
// MessageStop was never observed, any buffered calls are flushed and
// EndTurn is still emitted (§4.5: "on stream end without MessageStop,
// flush any buffered calls, then emit EndTurn").
func (p *Projector) End() []protocol.ResponseEvent {
	if p.sawStop {
		return nil
	}
	return p.flush(true)
}

func (p *Projector) mergeToolCall(delta *protocol.ToolCallDelta) {
	if delta == nil {
		return
	}
	id := delta.Id
	if id == "" {
		id = p.lastId
	}
	if id == "" {
		p.synthCount++
		id = syntheticId(p.synthCount)
	}
	p.lastId = id

	call, ok := p.calls[id]
	if !ok {
		call = &bufferedCall{id: id, seq: len(p.order)}
		p.calls[id] = call
		p.order = append(p.order, id)
	}
	if delta.Name != "" {
		call.name = delta.Name
	}
	if delta.Arguments != "" {
		call.arguments += delta.Arguments
	}
}

func syntheticId(n int) string {
	const prefix = "tool_call_"
	digits := []byte{}
	if n == 0 {
		digits = []byte{'0'}
	}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return prefix + string(digits)
}

func (p *Projector) mergeUsage(u protocol.TokenUsage) {
	p.usage.Add(u)
}

// Usage returns the accumulated usage seen across the stream so far.
func (p *Projector) Usage() protocol.TokenUsage { return p.usage }

// flush emits all buffered calls with a non-empty name, in insertion
// order, then EndTurn, per §4.5's ordering guarantee: all FunctionCalls
// are emitted before EndTurn.
func (p *Projector) flush(emitEndTurn bool) []protocol.ResponseEvent {
	ids := append([]string(nil), p.order...)
	sort.SliceStable(ids, func(i, j int) bool {
		return p.calls[ids[i]].seq < p.calls[ids[j]].seq
	})

	var out []protocol.ResponseEvent
	for _, id := range ids {
		call := p.calls[id]
		if call.name == "" {
			continue
		}
		out = append(out, protocol.FunctionCall(call.id, call.name, call.arguments))
	}
	p.calls = make(map[string]*bufferedCall)
	p.order = nil

	if emitEndTurn {
		end := protocol.EndTurn()
		usage := p.usage
		end.Usage = &usage
		out = append(out, end)
	}
	return out
}
