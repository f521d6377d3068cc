package auth

import (
	"context"
	"sync"
	"time"
)

const defaultCacheTTL = 24 * time.Hour

type cacheEntry struct {
	result    Result
	expiresAt time.Time
}

// Cache stores authorization results per identifier value with absolute
// expiry. Expiry is checked lazily at read time; Sweep offers a periodic
// cleanup for long-running stations.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	ttl     time.Duration
}

func NewCache(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &Cache{entries: make(map[string]cacheEntry), ttl: ttl}
}

// Put stores a result, honoring the result's TTL override when set.
func (c *Cache) Put(value string, res Result) {
	ttl := c.ttl
	if res.CacheTTL > 0 {
		ttl = res.CacheTTL
	}
	expires := time.Now().Add(ttl)
	if !res.ExpiresAt.IsZero() && res.ExpiresAt.Before(expires) {
		expires = res.ExpiresAt
	}
	c.mu.Lock()
	c.entries[value] = cacheEntry{result: res, expiresAt: expires}
	c.mu.Unlock()
}

// Get returns a non-expired cached result.
func (c *Cache) Get(value string) (*Result, bool) {
	c.mu.RLock()
	e, ok := c.entries[value]
	c.mu.RUnlock()
	if !ok || time.Now().After(e.expiresAt) {
		return nil, false
	}
	res := e.result
	return &res, true
}

// Invalidate removes exactly one entry.
func (c *Cache) Invalidate(value string) {
	c.mu.Lock()
	delete(c.entries, value)
	c.mu.Unlock()
}

// Clear removes all entries.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]cacheEntry)
	c.mu.Unlock()
}

// Sweep removes expired entries and returns how many were dropped.
func (c *Cache) Sweep() int {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	dropped := 0
	for k, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, k)
			dropped++
		}
	}
	return dropped
}

// CacheStrategy answers from the authorization cache.
type CacheStrategy struct {
	enabled func() bool
	cache   *Cache
}

func NewCacheStrategy(enabled func() bool, cache *Cache) *CacheStrategy {
	return &CacheStrategy{enabled: enabled, cache: cache}
}

func (s *CacheStrategy) Name() string  { return "cache" }
func (s *CacheStrategy) Priority() int { return PriorityCache }

func (s *CacheStrategy) CanHandle(req *Request) bool {
	if s.enabled != nil && !s.enabled() {
		return false
	}
	_, ok := s.cache.Get(req.Identifier.Value)
	return ok
}

func (s *CacheStrategy) Authorize(_ context.Context, req *Request) (*Result, error) {
	res, ok := s.cache.Get(req.Identifier.Value)
	if !ok {
		return nil, nil
	}
	return res, nil
}
