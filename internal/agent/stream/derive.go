package stream

import "github.com/brandlll-lee/cokra/internal/protocol"

// DeriveResponsesStream is the default responses_stream implementation
// spec.md §4.5 describes: project each Chunk as it arrives, then flush
// on stream close. Every provider adapter that only implements
// chat_completion_stream gets responses_stream for free through this.
func DeriveResponsesStream(chunks <-chan protocol.Chunk) <-chan protocol.ResponseEvent {
	out := make(chan protocol.ResponseEvent)
	go func() {
		defer close(out)
		p := NewProjector()
		for c := range chunks {
			for _, ev := range p.Project(c) {
				out <- ev
			}
			if c.Type == protocol.ChunkError {
				return
			}
		}
		for _, ev := range p.End() {
			out <- ev
		}
	}()
	return out
}
