package websocket

import (
	"context"

	"ai-docqa-be/pkg/stream"

	"github.com/gofiber/websocket/v2"
)

// QueryStreamer is the chat-side surface the websocket handler drives. It is
// declared here so the service package can depend on the hub without a cycle.
type QueryStreamer interface {
	// EnsureSession returns the session id, creating the session when the
	// given id is empty or unknown.
	EnsureSession(ctx context.Context, sessionID string) (string, error)
	// QueryStream runs a question through the pipeline, emitting chunks as
	// they are produced. It must emit exactly one terminal event.
	QueryStream(ctx context.Context, sessionID string, query string, emitter stream.Emitter) error
}

// ServeWs handles one websocket connection for its whole lifetime. The
// readPump runs in the handler goroutine so Fiber keeps the connection open.
func ServeWs(hub *Hub, streamer QueryStreamer, c *websocket.Conn) {
	ctx, cancel := context.WithCancel(context.Background())
	client := &Client{
		Hub:    hub,
		Conn:   c,
		Send:   make(chan []byte, 256),
		ctx:    ctx,
		cancel: cancel,
	}
	client.dispatch = func(ctx context.Context, client *Client, event inboundEvent) {
		dispatchEvent(ctx, hub, streamer, client, event)
	}

	go client.writePump()
	client.readPump()
}

func dispatchEvent(ctx context.Context, hub *Hub, streamer QueryStreamer, client *Client, event inboundEvent) {
	switch event.Event {
	case "join_session":
		sessionID, err := streamer.EnsureSession(ctx, event.Data.SessionID)
		if err != nil {
			hub.logger.Error("WebsocketHandler", "Failed to ensure session", map[string]interface{}{"error": err.Error()})
			return
		}
		hub.Join(client, sessionID)
		hub.SendToSession(sessionID, "session_joined", map[string]string{"session_id": sessionID})

	case "send_message":
		sessionID := client.SessionID
		if sessionID == "" {
			sessionID = event.Data.SessionID
		}
		if sessionID == "" || event.Data.Message == "" {
			return
		}
		if client.SessionID == "" {
			hub.Join(client, sessionID)
		}

		// Run the query off the read loop so the client can still disconnect;
		// its context cancels the generation mid-stream.
		go func() {
			emitter := NewQueryEmitter(hub)
			if err := streamer.QueryStream(ctx, sessionID, event.Data.Message, emitter); err != nil {
				hub.logger.Error("WebsocketHandler", "Query stream failed", map[string]interface{}{
					"session_id": sessionID,
					"error":      err.Error(),
				})
			}
		}()

	default:
		hub.logger.Warn("WebsocketHandler", "Unknown inbound event", map[string]interface{}{"event": event.Event})
	}
}
