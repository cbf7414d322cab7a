package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"ai-docqa-be/internal/pkg/logger"
	"ai-docqa-be/pkg/stream"

	"github.com/redis/go-redis/v9"
)

const clusterChannel = "chat_cluster_events"

// Envelope is the wire shape of every server-to-client event.
type Envelope struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// Hub tracks which clients joined which session room and fans events out to
// them. An optional Redis connection relays events to session rooms hosted on
// other instances.
type Hub struct {
	// session id -> clients in that room (multi-device)
	sessions map[string][]*Client

	register   chan *Client
	unregister chan *Client

	mu sync.RWMutex

	rdb *redis.Client

	logger logger.ILogger
}

func NewHub(rdb *redis.Client, log logger.ILogger) *Hub {
	return &Hub{
		sessions:   make(map[string][]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		rdb:        rdb,
		logger:     log,
	}
}

func (h *Hub) Run() {
	if h.rdb != nil {
		go h.subscribeToRedis()
	}

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.sessions[client.SessionID] = append(h.sessions[client.SessionID], client)
			h.mu.Unlock()
			h.logger.Info("Hub", "Client joined session room", map[string]interface{}{"session_id": client.SessionID})

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.sessions[client.SessionID]; ok {
				for i, c := range clients {
					if c == client {
						h.sessions[client.SessionID] = append(clients[:i], clients[i+1:]...)
						// Only close site for Send: a client still in the
						// room is closed exactly once, repeat unregisters
						// fall out of the loop without finding it.
						close(client.Send)
						break
					}
				}
				if len(h.sessions[client.SessionID]) == 0 {
					delete(h.sessions, client.SessionID)
					h.logger.Info("Hub", "Session room empty, removed", map[string]interface{}{"session_id": client.SessionID})
				}
			}
			h.mu.Unlock()
		}
	}
}

// Join moves a client into a session room. A client is in at most one room;
// joining again re-registers it under the new session id.
func (h *Hub) Join(client *Client, sessionID string) {
	if client.SessionID != "" {
		h.unregister <- client
		client.Send = make(chan []byte, 256)
	}
	client.SessionID = sessionID
	h.register <- client
}

// SendToSession delivers an event to every client in the room, and publishes
// it for other instances when Redis is available.
func (h *Hub) SendToSession(sessionID string, event string, payload interface{}) {
	data, err := json.Marshal(Envelope{Event: event, Data: payload})
	if err != nil {
		h.logger.Error("Hub", "Failed to marshal event", map[string]interface{}{"event": event, "error": err.Error()})
		return
	}

	h.deliverLocal(sessionID, data)

	if h.rdb != nil {
		wrapped, _ := json.Marshal(map[string]interface{}{
			"session_id": sessionID,
			"message":    json.RawMessage(data),
		})
		h.rdb.Publish(context.Background(), clusterChannel, wrapped)
	}
}

func (h *Hub) deliverLocal(sessionID string, data []byte) {
	h.mu.RLock()
	clients := h.sessions[sessionID]
	h.mu.RUnlock()

	for _, client := range clients {
		select {
		case client.Send <- data:
		default:
			h.logger.Warn("Hub", "Client send buffer full, dropping connection", map[string]interface{}{"session_id": sessionID})
			h.unregister <- client
		}
	}
}

// subscribeToRedis relays events published by other instances into the local
// rooms. Events for sessions with no local clients are dropped silently.
func (h *Hub) subscribeToRedis() {
	ctx := context.Background()
	pubsub := h.rdb.Subscribe(ctx, clusterChannel)
	defer pubsub.Close()

	for msg := range pubsub.Channel() {
		var payload struct {
			SessionID string          `json:"session_id"`
			Message   json.RawMessage `json:"message"`
		}
		if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
			h.logger.Warn("Hub", "Bad cluster event", map[string]interface{}{"error": err.Error()})
			continue
		}

		h.mu.RLock()
		_, hasRoom := h.sessions[payload.SessionID]
		h.mu.RUnlock()
		if hasRoom {
			h.deliverLocal(payload.SessionID, payload.Message)
		}
	}
}

// QueryEmitter adapts the hub to the per-query Emitter contract: chunk order
// is the caller's order, and only the first terminal event goes out.
type QueryEmitter struct {
	hub        *Hub
	terminated bool
}

func NewQueryEmitter(hub *Hub) *QueryEmitter {
	return &QueryEmitter{hub: hub}
}

func (e *QueryEmitter) EmitStart(sessionID string) {
	e.hub.SendToSession(sessionID, stream.EventTyping, map[string]bool{"typing": true})
}

func (e *QueryEmitter) EmitChunk(chunk stream.Chunk) error {
	if e.terminated {
		return nil
	}
	e.hub.SendToSession(chunk.SessionID, stream.EventMessage, chunk)
	return nil
}

func (e *QueryEmitter) EmitComplete(sessionID string, fullText string) {
	if e.terminated {
		return
	}
	e.terminated = true
	e.hub.SendToSession(sessionID, stream.EventComplete, map[string]string{
		"sessionId": sessionID,
		"fullText":  fullText,
	})
	e.hub.SendToSession(sessionID, stream.EventTyping, map[string]bool{"typing": false})
}

func (e *QueryEmitter) EmitError(sessionID string, message string) {
	if e.terminated {
		return
	}
	e.terminated = true
	e.hub.SendToSession(sessionID, stream.EventError, map[string]string{
		"sessionId": sessionID,
		"message":   message,
	})
	e.hub.SendToSession(sessionID, stream.EventTyping, map[string]bool{"typing": false})
}
