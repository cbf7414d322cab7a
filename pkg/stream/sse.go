package stream

import (
	"bufio"
	"encoding/json"
	"fmt"
)

// SSEEmitter writes the start → N×chunk → end/error sequence as a textual
// event stream onto a buffered writer (the one-shot HTTP transport). Each
// chunk is flushed immediately so the client sees text as it is generated.
type SSEEmitter struct {
	w          *bufio.Writer
	terminated bool
}

func NewSSEEmitter(w *bufio.Writer) *SSEEmitter {
	return &SSEEmitter{w: w}
}

func (e *SSEEmitter) write(event string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", event, err)
	}
	if _, err := fmt.Fprintf(e.w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}
	return e.w.Flush()
}

func (e *SSEEmitter) EmitStart(sessionID string) {
	_ = e.write(EventStart, map[string]string{"sessionId": sessionID})
}

func (e *SSEEmitter) EmitChunk(chunk Chunk) error {
	if e.terminated {
		return nil
	}
	return e.write(EventChunk, chunk)
}

func (e *SSEEmitter) EmitComplete(sessionID string, fullText string) {
	if e.terminated {
		return
	}
	e.terminated = true
	_ = e.write(EventEnd, map[string]string{
		"sessionId": sessionID,
		"fullText":  fullText,
	})
}

func (e *SSEEmitter) EmitError(sessionID string, message string) {
	if e.terminated {
		return
	}
	e.terminated = true
	_ = e.write(EventError, map[string]string{
		"sessionId": sessionID,
		"message":   message,
	})
}
