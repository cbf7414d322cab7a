package store

import (
	"context"
	"time"
)

// Store is the generic string-keyed TTL storage the session layer builds on.
// Both the networked (Redis) and in-process (go-cache) variants implement it;
// the variant is picked once at startup and callers never branch on it.
type Store interface {
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, bool, error)
	Delete(ctx context.Context, key string) (bool, error)
	Exists(ctx context.Context, key string) (bool, error)
	Keys(ctx context.Context, pattern string) ([]string, error)
	Ping(ctx context.Context) error
}
