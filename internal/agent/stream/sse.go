package stream

import "strings"

// SSEEvent is one decoded server-sent event: the concatenation of every
// "data: " line's payload within one \n\n-delimited block.
type SSEEvent struct {
	Data string
	Done bool // true when the payload was the literal "[DONE]" sentinel
}

// Framer buffers raw bytes and splits them into SSE events on blank-line
// boundaries, normalizing CRLF to LF first. It is not safe for concurrent
// use.
type Framer struct {
	buf strings.Builder
}

func NewFramer() *Framer {
	return &Framer{}
}

// Feed appends raw bytes and returns every complete event now available.
// Incomplete trailing data is retained for the next Feed call.
func (f *Framer) Feed(chunk []byte) []SSEEvent {
	f.buf.Write(chunk)
	text := strings.ReplaceAll(f.buf.String(), "\r\n", "\n")

	var events []SSEEvent
	for {
		idx := strings.Index(text, "\n\n")
		if idx == -1 {
			break
		}
		block := text[:idx]
		text = text[idx+2:]

		if ev, ok := parseBlock(block); ok {
			events = append(events, ev)
		}
	}

	f.buf.Reset()
	f.buf.WriteString(text)
	return events
}

func parseBlock(block string) (SSEEvent, bool) {
	var payloads []string
	for _, line := range strings.Split(block, "\n") {
		if rest, ok := strings.CutPrefix(line, "data: "); ok {
			payloads = append(payloads, rest)
		} else if rest, ok := strings.CutPrefix(line, "data:"); ok {
			payloads = append(payloads, rest)
		}
	}
	if len(payloads) == 0 {
		return SSEEvent{}, false
	}
	data := strings.Join(payloads, "\n")
	if data == "[DONE]" {
		return SSEEvent{Data: data, Done: true}, true
	}
	return SSEEvent{Data: data}, true
}
