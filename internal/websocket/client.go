package websocket

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gofiber/websocket/v2"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8192
)

// inboundEvent is what the browser sends us.
type inboundEvent struct {
	Event string `json:"event"`
	Data  struct {
		SessionID string `json:"session_id"`
		Message   string `json:"message"`
	} `json:"data"`
}

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	Hub *Hub

	// The websocket connection.
	Conn *websocket.Conn

	// Session room this connection joined, empty until join_session.
	SessionID string

	// Buffered channel of outbound messages.
	Send chan []byte

	// Canceled when the connection drops, so in-flight generation stops.
	ctx    context.Context
	cancel context.CancelFunc

	dispatch func(ctx context.Context, client *Client, event inboundEvent)
}

// Context is canceled when the client disconnects.
func (c *Client) Context() context.Context {
	return c.ctx
}

// readPump pumps inbound events from the websocket connection to the
// dispatcher until the connection drops.
func (c *Client) readPump() {
	defer func() {
		c.cancel()
		c.Hub.unregister <- c
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.logger.Warn("WebsocketClient", "Unexpected close", map[string]interface{}{"session_id": c.SessionID, "error": err.Error()})
			}
			break
		}

		var event inboundEvent
		if err := json.Unmarshal(raw, &event); err != nil {
			c.Hub.logger.Warn("WebsocketClient", "Malformed inbound event", map[string]interface{}{"error": err.Error()})
			continue
		}
		if c.dispatch != nil {
			c.dispatch(c.ctx, c, event)
		}
	}
}

// writePump pumps messages from the hub to the websocket connection. Each
// queued message is a self-contained JSON envelope and gets its own frame.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
