package repository

import (
	"fmt"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// CacheCounterStore counts events per fixed window in an in-process
// cache. Buckets expire one window after they close; the cache janitor
// sweeps them out.
type CacheCounterStore struct {
	mu    sync.Mutex
	cache *gocache.Cache
	now   func() time.Time
}

func NewCacheCounterStore() *CacheCounterStore {
	return &CacheCounterStore{
		cache: gocache.New(5*time.Minute, 10*time.Minute),
		now:   time.Now,
	}
}

// Increment bumps the counter for the window containing the current
// time and returns the new count with the window start.
func (s *CacheCounterStore) Increment(key string, window time.Duration) (int64, time.Time, error) {
	if window <= 0 {
		return 0, time.Time{}, fmt.Errorf("window must be positive, got %s", window)
	}

	start := s.now().UTC().Truncate(window)
	bucket := fmt.Sprintf("%s|%d", key, start.Unix())

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.cache.Get(bucket); !ok {
		s.cache.Set(bucket, int64(0), 2*window)
	}
	count, err := s.cache.IncrementInt64(bucket, 1)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("failed to increment %s: %w", bucket, err)
	}
	return count, start, nil
}
