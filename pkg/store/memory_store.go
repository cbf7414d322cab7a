package store

import (
	"context"
	"path"
	"time"

	"github.com/patrickmn/go-cache"
)

// MemoryStore is the in-process Store substitute. go-cache keeps an expiry
// timestamp per item and checks it lazily on access, with a janitor sweep for
// reclamation, so no timers accumulate per key.
type MemoryStore struct {
	cache *cache.Cache
}

func NewMemoryStore(defaultTTL time.Duration) *MemoryStore {
	if defaultTTL <= 0 {
		defaultTTL = 1 * time.Hour
	}
	return &MemoryStore{
		cache: cache.New(defaultTTL, 10*time.Minute),
	}
}

func (s *MemoryStore) Set(_ context.Context, key string, value string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = cache.DefaultExpiration
	}
	s.cache.Set(key, value, ttl)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	if x, found := s.cache.Get(key); found {
		return x.(string), true, nil
	}
	return "", false, nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) (bool, error) {
	if _, found := s.cache.Get(key); !found {
		return false, nil
	}
	s.cache.Delete(key)
	return true, nil
}

func (s *MemoryStore) Exists(_ context.Context, key string) (bool, error) {
	_, found := s.cache.Get(key)
	return found, nil
}

// Keys matches the same glob patterns Redis KEYS accepts for our usage
// ("session:*" and friends). Expired items are already filtered by go-cache.
func (s *MemoryStore) Keys(_ context.Context, pattern string) ([]string, error) {
	items := s.cache.Items()
	keys := make([]string, 0, len(items))
	for k := range items {
		if ok, err := path.Match(pattern, k); err == nil && ok {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func (s *MemoryStore) Ping(_ context.Context) error {
	return nil
}
