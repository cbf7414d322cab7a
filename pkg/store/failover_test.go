package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"ai-docqa-be/internal/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyStore wraps a MemoryStore and fails every operation while failing is
// set, counting the calls that reached it.
type flakyStore struct {
	inner   *MemoryStore
	failing bool
	pingErr error
	calls   int
}

var errBackend = errors.New("connection refused")

func (s *flakyStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	s.calls++
	if s.failing {
		return errBackend
	}
	return s.inner.Set(ctx, key, value, ttl)
}

func (s *flakyStore) Get(ctx context.Context, key string) (string, bool, error) {
	s.calls++
	if s.failing {
		return "", false, errBackend
	}
	return s.inner.Get(ctx, key)
}

func (s *flakyStore) Delete(ctx context.Context, key string) (bool, error) {
	s.calls++
	if s.failing {
		return false, errBackend
	}
	return s.inner.Delete(ctx, key)
}

func (s *flakyStore) Exists(ctx context.Context, key string) (bool, error) {
	s.calls++
	if s.failing {
		return false, errBackend
	}
	return s.inner.Exists(ctx, key)
}

func (s *flakyStore) Keys(ctx context.Context, pattern string) ([]string, error) {
	s.calls++
	if s.failing {
		return nil, errBackend
	}
	return s.inner.Keys(ctx, pattern)
}

func (s *flakyStore) Ping(context.Context) error {
	return s.pingErr
}

func TestFailoverServesFromPrimaryWhenHealthy(t *testing.T) {
	ctx := context.Background()
	primary := &flakyStore{inner: NewMemoryStore(time.Hour)}
	fallback := NewMemoryStore(time.Hour)
	f := NewFailoverStore(primary, fallback, logger.NewNopLogger())

	require.NoError(t, f.Set(ctx, "k", "v", time.Minute))
	val, found, err := f.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "v", val)
	assert.False(t, f.Degraded())

	// Nothing leaked into the fallback.
	_, found, err = fallback.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestFailoverDegradesWhenStartupPingFails(t *testing.T) {
	ctx := context.Background()
	primary := &flakyStore{inner: NewMemoryStore(time.Hour), pingErr: errBackend}
	fallback := NewMemoryStore(time.Hour)
	f := NewFailoverStore(primary, fallback, logger.NewNopLogger())

	assert.True(t, f.Degraded())

	require.NoError(t, f.Set(ctx, "k", "v", time.Minute))
	assert.Zero(t, primary.calls)

	val, found, err := fallback.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "v", val)
}

func TestFailoverDegradesAfterConsecutiveErrors(t *testing.T) {
	ctx := context.Background()
	primary := &flakyStore{inner: NewMemoryStore(time.Hour)}
	fallback := NewMemoryStore(time.Hour)
	f := NewFailoverStore(primary, fallback, logger.NewNopLogger())

	primary.failing = true
	for i := 0; i < DefaultMaxConsecutiveErrors; i++ {
		// Every failed call still succeeds through the fallback.
		require.NoError(t, f.Set(ctx, "k", "v", time.Minute))
	}
	assert.True(t, f.Degraded())

	// Once degraded the primary is never touched again, even if it recovers.
	primary.failing = false
	callsBefore := primary.calls
	_, _, err := f.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, callsBefore, primary.calls)
}

// Sessions keep working end to end when the networked cache is down from the
// start.
func TestSessionsSurviveUnreachablePrimary(t *testing.T) {
	ctx := context.Background()
	primary := &flakyStore{inner: NewMemoryStore(time.Hour), pingErr: errBackend, failing: true}
	f := NewFailoverStore(primary, NewMemoryStore(time.Hour), logger.NewNopLogger())
	sessions := NewSessionStore(f, time.Hour, 10)

	id, err := sessions.CreateSession(ctx, "")
	require.NoError(t, err)

	ok, err := sessions.AppendMessage(ctx, id, Message{Role: RoleUser, Content: "hello"})
	require.NoError(t, err)
	require.True(t, ok)

	session, err := sessions.GetSession(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Len(t, session.Messages, 1)
}

func TestFailoverSuccessResetsErrorStreak(t *testing.T) {
	ctx := context.Background()
	primary := &flakyStore{inner: NewMemoryStore(time.Hour)}
	fallback := NewMemoryStore(time.Hour)
	f := NewFailoverStore(primary, fallback, logger.NewNopLogger())

	for i := 0; i < DefaultMaxConsecutiveErrors-1; i++ {
		primary.failing = true
		require.NoError(t, f.Set(ctx, "k", "v", time.Minute))
		primary.failing = false
		require.NoError(t, f.Set(ctx, "k", "v", time.Minute))
	}
	assert.False(t, f.Degraded())
}
