package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"

	sessionKeyPrefix = "session:"
)

// Message is a single conversation turn. Immutable once appended.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Session is the server-side conversational state for one client.
type Session struct {
	ID           string    `json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
	Messages     []Message `json:"messages"`
}

// SessionStats is the aggregate view over all live sessions.
type SessionStats struct {
	TotalSessions  int `json:"total_sessions"`
	ActiveSessions int `json:"active_sessions"`
	TotalMessages  int `json:"total_messages"`
}

// SessionStore keeps bounded conversation histories in a Store with a
// refreshing TTL. The underlying value is the whole serialized session, so
// every append is a read-modify-write; a keyed mutex serializes concurrent
// appends to the same session.
type SessionStore struct {
	kv          Store
	ttl         time.Duration
	maxMessages int

	locks sync.Map // session id -> *sync.Mutex
}

func NewSessionStore(kv Store, ttl time.Duration, maxMessages int) *SessionStore {
	if ttl <= 0 {
		ttl = 1 * time.Hour
	}
	if maxMessages <= 0 {
		maxMessages = 50
	}
	return &SessionStore{
		kv:          kv,
		ttl:         ttl,
		maxMessages: maxMessages,
	}
}

func sessionKey(id string) string {
	return sessionKeyPrefix + id
}

func (s *SessionStore) lock(id string) *sync.Mutex {
	mu, _ := s.locks.LoadOrStore(id, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

func (s *SessionStore) save(ctx context.Context, session *Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	return s.kv.Set(ctx, sessionKey(session.ID), string(data), s.ttl)
}

func (s *SessionStore) load(ctx context.Context, id string) (*Session, error) {
	raw, found, err := s.kv.Get(ctx, sessionKey(id))
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if !found {
		return nil, nil
	}
	var session Session
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &session, nil
}

// CreateSession creates a fresh session. With an empty id a new opaque one is
// generated; an existing id is an error so callers never clobber live history.
func (s *SessionStore) CreateSession(ctx context.Context, id string) (string, error) {
	if id == "" {
		id = uuid.NewString()
	}

	mu := s.lock(id)
	mu.Lock()
	defer mu.Unlock()

	if existing, err := s.load(ctx, id); err != nil {
		return "", err
	} else if existing != nil {
		return "", fmt.Errorf("session %s already exists", id)
	}

	now := time.Now().UTC()
	session := &Session{
		ID:           id,
		CreatedAt:    now,
		LastActivity: now,
		Messages:     []Message{},
	}
	if err := s.save(ctx, session); err != nil {
		return "", err
	}
	return id, nil
}

// GetSession returns the session or nil when absent. Reading refreshes the
// TTL and advances LastActivity; the message list is left untouched.
func (s *SessionStore) GetSession(ctx context.Context, id string) (*Session, error) {
	mu := s.lock(id)
	mu.Lock()
	defer mu.Unlock()

	session, err := s.load(ctx, id)
	if err != nil || session == nil {
		return nil, err
	}

	session.LastActivity = time.Now().UTC()
	if err := s.save(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// AppendMessage adds a message, evicting the oldest entries once the cap is
// reached. Returns false when the session does not exist.
func (s *SessionStore) AppendMessage(ctx context.Context, id string, msg Message) (bool, error) {
	mu := s.lock(id)
	mu.Lock()
	defer mu.Unlock()

	session, err := s.load(ctx, id)
	if err != nil {
		return false, err
	}
	if session == nil {
		return false, nil
	}

	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	session.Messages = append(session.Messages, msg)
	if overflow := len(session.Messages) - s.maxMessages; overflow > 0 {
		session.Messages = session.Messages[overflow:]
	}
	session.LastActivity = time.Now().UTC()

	if err := s.save(ctx, session); err != nil {
		return false, err
	}
	return true, nil
}

// ClearMessages empties the history but keeps the session alive.
func (s *SessionStore) ClearMessages(ctx context.Context, id string) (bool, error) {
	mu := s.lock(id)
	mu.Lock()
	defer mu.Unlock()

	session, err := s.load(ctx, id)
	if err != nil {
		return false, err
	}
	if session == nil {
		return false, nil
	}

	session.Messages = []Message{}
	session.LastActivity = time.Now().UTC()
	if err := s.save(ctx, session); err != nil {
		return false, err
	}
	return true, nil
}

func (s *SessionStore) DeleteSession(ctx context.Context, id string) (bool, error) {
	mu := s.lock(id)
	mu.Lock()
	defer mu.Unlock()

	deleted, err := s.kv.Delete(ctx, sessionKey(id))
	if err != nil {
		return false, err
	}
	s.locks.Delete(id)
	return deleted, nil
}

// Stats scans the live sessions. Active means activity within the last hour.
func (s *SessionStore) Stats(ctx context.Context) (*SessionStats, error) {
	keys, err := s.kv.Keys(ctx, sessionKeyPrefix+"*")
	if err != nil {
		return nil, fmt.Errorf("list session keys: %w", err)
	}

	stats := &SessionStats{}
	cutoff := time.Now().UTC().Add(-1 * time.Hour)
	for _, key := range keys {
		raw, found, err := s.kv.Get(ctx, key)
		if err != nil || !found {
			continue
		}
		var session Session
		if err := json.Unmarshal([]byte(raw), &session); err != nil {
			continue
		}
		stats.TotalSessions++
		stats.TotalMessages += len(session.Messages)
		if session.LastActivity.After(cutoff) {
			stats.ActiveSessions++
		}
	}
	return stats, nil
}
