package stream

// Event names shared by both transports. The HTTP event stream uses
// start/chunk/end; the WebSocket channel maps the same sequence onto
// typing/message_chunk/message_complete. Both emit exactly one terminal
// event (end/message_complete or error) per query.
const (
	EventStart    = "start"
	EventChunk    = "chunk"
	EventEnd      = "end"
	EventError    = "error"
	EventTyping   = "typing"
	EventMessage  = "message_chunk"
	EventComplete = "message_complete"
)

// Chunk is the payload of one incremental delivery unit.
type Chunk struct {
	SessionID  string `json:"sessionId"`
	Chunk      string `json:"chunk"`
	FullText   string `json:"fullText"`
	Index      int    `json:"index"`
	IsComplete bool   `json:"isComplete"`
}

// Emitter fans pipeline output to one transport. Implementations must
// preserve chunk order and emit exactly one terminal event per query;
// EmitChunk/EmitComplete/EmitError after the terminal event are ignored.
type Emitter interface {
	EmitStart(sessionID string)
	EmitChunk(chunk Chunk) error
	EmitComplete(sessionID string, fullText string)
	EmitError(sessionID string, message string)
}
