package stats

import (
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Default cache bounds.
const (
	DefaultCacheSize = 1024
	DefaultCacheTTL  = time.Minute
)

type cacheKey struct {
	userID uuid.UUID
	// axeID is empty for user-level entries.
	axeID string
}

// resultCache keeps fresh results for a TTL and the last computed result of
// every key without expiry. The latter is only served, marked stale, when
// recomputing fails.
type resultCache[V any] struct {
	fresh *expirable.LRU[cacheKey, V]
	last  *lru.Cache[cacheKey, V]
}

func newResultCache[V any](size int, ttl time.Duration) *resultCache[V] {
	if size <= 0 {
		size = DefaultCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	last, err := lru.New[cacheKey, V](size)
	if err != nil {
		// Only returned for a non-positive size.
		panic(err)
	}
	return &resultCache[V]{
		fresh: expirable.NewLRU[cacheKey, V](size, nil, ttl),
		last:  last,
	}
}

func (c *resultCache[V]) get(k cacheKey) (V, bool) {
	return c.fresh.Get(k)
}

func (c *resultCache[V]) lastKnown(k cacheKey) (V, bool) {
	return c.last.Get(k)
}

func (c *resultCache[V]) put(k cacheKey, v V) {
	c.fresh.Add(k, v)
	c.last.Add(k, v)
}

// invalidate drops the fresh entry; the last known value stays as fallback.
func (c *resultCache[V]) invalidate(k cacheKey) {
	c.fresh.Remove(k)
}
