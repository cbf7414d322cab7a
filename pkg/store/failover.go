package store

import (
	"context"
	"sync"
	"time"

	"ai-docqa-be/internal/pkg/logger"
)

// DefaultMaxConsecutiveErrors is how many primary failures in a row we
// tolerate before degrading to the in-process substitute.
const DefaultMaxConsecutiveErrors = 3

// FailoverStore serves from a primary (networked) Store and switches to the
// in-process fallback when the primary is unreachable at startup or fails too
// many times in a row. The switch is one-directional for the process lifetime:
// once degraded we never probe the primary again, which avoids flapping
// between backends under a partially healthy network.
type FailoverStore struct {
	primary  Store
	fallback Store
	log      logger.ILogger

	mu        sync.Mutex
	errCount  int
	maxErrors int
	degraded  bool
}

func NewFailoverStore(primary, fallback Store, log logger.ILogger) *FailoverStore {
	f := &FailoverStore{
		primary:   primary,
		fallback:  fallback,
		log:       log,
		maxErrors: DefaultMaxConsecutiveErrors,
	}

	pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := primary.Ping(pingCtx); err != nil {
		f.degraded = true
		f.log.Warn("Store", "Primary cache unreachable at startup, using in-process fallback", map[string]interface{}{
			"error": err.Error(),
		})
	}
	return f
}

// Degraded reports whether the store switched to the in-process substitute.
// Diagnostics only; callers observe no interface change.
func (f *FailoverStore) Degraded() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.degraded
}

func (f *FailoverStore) isDegraded() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.degraded
}

func (f *FailoverStore) recordResult(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		f.errCount = 0
		return
	}
	f.errCount++
	if f.errCount >= f.maxErrors && !f.degraded {
		f.degraded = true
		f.log.Error("Store", "Primary cache degraded after consecutive errors, switching to in-process fallback", map[string]interface{}{
			"consecutive_errors": f.errCount,
			"last_error":         err.Error(),
		})
	}
}

func (f *FailoverStore) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	if !f.isDegraded() {
		err := f.primary.Set(ctx, key, value, ttl)
		f.recordResult(err)
		if err == nil {
			return nil
		}
	}
	return f.fallback.Set(ctx, key, value, ttl)
}

func (f *FailoverStore) Get(ctx context.Context, key string) (string, bool, error) {
	if !f.isDegraded() {
		val, found, err := f.primary.Get(ctx, key)
		f.recordResult(err)
		if err == nil {
			return val, found, nil
		}
	}
	return f.fallback.Get(ctx, key)
}

func (f *FailoverStore) Delete(ctx context.Context, key string) (bool, error) {
	if !f.isDegraded() {
		ok, err := f.primary.Delete(ctx, key)
		f.recordResult(err)
		if err == nil {
			return ok, nil
		}
	}
	return f.fallback.Delete(ctx, key)
}

func (f *FailoverStore) Exists(ctx context.Context, key string) (bool, error) {
	if !f.isDegraded() {
		ok, err := f.primary.Exists(ctx, key)
		f.recordResult(err)
		if err == nil {
			return ok, nil
		}
	}
	return f.fallback.Exists(ctx, key)
}

func (f *FailoverStore) Keys(ctx context.Context, pattern string) ([]string, error) {
	if !f.isDegraded() {
		keys, err := f.primary.Keys(ctx, pattern)
		f.recordResult(err)
		if err == nil {
			return keys, nil
		}
	}
	return f.fallback.Keys(ctx, pattern)
}

func (f *FailoverStore) Ping(ctx context.Context) error {
	if !f.isDegraded() {
		return f.primary.Ping(ctx)
	}
	return f.fallback.Ping(ctx)
}
