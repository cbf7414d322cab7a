package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSessionStore(maxMessages int) *SessionStore {
	return NewSessionStore(NewMemoryStore(time.Hour), time.Hour, maxMessages)
}

func TestSessionCreateAndGet(t *testing.T) {
	ctx := context.Background()
	s := newTestSessionStore(10)

	id, err := s.CreateSession(ctx, "")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	session, err := s.GetSession(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, id, session.ID)
	assert.Empty(t, session.Messages)
	assert.False(t, session.CreatedAt.IsZero())
}

func TestSessionCreateExistingFails(t *testing.T) {
	ctx := context.Background()
	s := newTestSessionStore(10)

	id, err := s.CreateSession(ctx, "fixed-id")
	require.NoError(t, err)
	assert.Equal(t, "fixed-id", id)

	_, err = s.CreateSession(ctx, "fixed-id")
	assert.Error(t, err)
}

func TestSessionGetAbsentReturnsNil(t *testing.T) {
	ctx := context.Background()
	s := newTestSessionStore(10)

	session, err := s.GetSession(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, session)
}

// Reading a session must not change its message list, no matter how often it
// is read.
func TestSessionGetIsIdempotentOnMessages(t *testing.T) {
	ctx := context.Background()
	s := newTestSessionStore(10)

	id, err := s.CreateSession(ctx, "")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		ok, err := s.AppendMessage(ctx, id, Message{Role: RoleUser, Content: fmt.Sprintf("msg %d", i)})
		require.NoError(t, err)
		require.True(t, ok)
	}

	for i := 0; i < 5; i++ {
		session, err := s.GetSession(ctx, id)
		require.NoError(t, err)
		require.Len(t, session.Messages, 3)
	}
}

func TestSessionAppendEvictsOldestAtCap(t *testing.T) {
	ctx := context.Background()
	s := newTestSessionStore(3)

	id, err := s.CreateSession(ctx, "")
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		ok, err := s.AppendMessage(ctx, id, Message{Role: RoleUser, Content: fmt.Sprintf("msg %d", i)})
		require.NoError(t, err)
		require.True(t, ok)
	}

	session, err := s.GetSession(ctx, id)
	require.NoError(t, err)
	require.Len(t, session.Messages, 3)
	// Oldest two were dropped, order of the survivors preserved.
	assert.Equal(t, "msg 2", session.Messages[0].Content)
	assert.Equal(t, "msg 3", session.Messages[1].Content)
	assert.Equal(t, "msg 4", session.Messages[2].Content)
}

func TestSessionAppendToAbsentSession(t *testing.T) {
	ctx := context.Background()
	s := newTestSessionStore(3)

	ok, err := s.AppendMessage(ctx, "ghost", Message{Role: RoleUser, Content: "hello"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSessionClearKeepsSessionAlive(t *testing.T) {
	ctx := context.Background()
	s := newTestSessionStore(10)

	id, err := s.CreateSession(ctx, "")
	require.NoError(t, err)
	_, err = s.AppendMessage(ctx, id, Message{Role: RoleUser, Content: "hello"})
	require.NoError(t, err)

	ok, err := s.ClearMessages(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)

	session, err := s.GetSession(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Empty(t, session.Messages)
}

func TestSessionDelete(t *testing.T) {
	ctx := context.Background()
	s := newTestSessionStore(10)

	id, err := s.CreateSession(ctx, "")
	require.NoError(t, err)

	deleted, err := s.DeleteSession(ctx, id)
	require.NoError(t, err)
	assert.True(t, deleted)

	session, err := s.GetSession(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, session)

	deleted, err = s.DeleteSession(ctx, id)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestSessionStats(t *testing.T) {
	ctx := context.Background()
	s := newTestSessionStore(10)

	first, err := s.CreateSession(ctx, "")
	require.NoError(t, err)
	_, err = s.CreateSession(ctx, "")
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		_, err := s.AppendMessage(ctx, first, Message{Role: RoleUser, Content: "x"})
		require.NoError(t, err)
	}

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalSessions)
	assert.Equal(t, 2, stats.ActiveSessions)
	assert.Equal(t, 4, stats.TotalMessages)
}
