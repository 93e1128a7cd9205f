package routepolicy

import (
	"sync"
	"time"
)

// CacheKey identifies one cached policy decision: (env, slug, method,
// normalizedPath). Version is intentionally excluded from the key.
type CacheKey struct {
	Env    string
	Slug   string
	Method string
	Path   string
}

type cacheEntry struct {
	decision  Decision
	expiresAt time.Time
}

// Cache is a per-process TTL cache keyed by (env, slug, method,
// normalizedPath). Gate.Evaluate stores only allowed decisions: denials
// and resolver errors are returned without being cached.
type Cache struct {
	mu      sync.RWMutex
	entries map[CacheKey]cacheEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewCache builds a Cache with the given TTL. ttl must be > 0.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		entries: make(map[CacheKey]cacheEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns the cached decision for key if present and unexpired.
func (c *Cache) Get(key CacheKey) (Decision, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok || c.now().After(e.expiresAt) {
		return Decision{}, false
	}
	return e.decision, true
}

// Put stores decision for key with the cache's configured TTL.
func (c *Cache) Put(key CacheKey, decision Decision) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{decision: decision, expiresAt: c.now().Add(c.ttl)}
}

// Purge drops every cached entry, e.g. on a svcconfig mirror refresh that
// changed policy revisions.
func (c *Cache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[CacheKey]cacheEntry)
}
