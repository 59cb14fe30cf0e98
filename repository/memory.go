package repository

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	body      []byte
	expiresAt time.Time
}

// MemoryCache is an in-process TTL cache bounded by maxEntries
type MemoryCache struct {
	mu         sync.Mutex
	entries    map[string]memoryEntry
	maxEntries int
	now        func() time.Time
}

// NewMemoryCache creates an empty in-process cache
func NewMemoryCache(maxEntries int) *MemoryCache {
	if maxEntries <= 0 {
		maxEntries = 1
	}
	return &MemoryCache{
		entries:    make(map[string]memoryEntry),
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !c.now().Before(e.expiresAt) {
		delete(c.entries, key)
		return nil, false, nil
	}
	return e.body, true, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, body []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxEntries {
		c.removeExpiredLocked()
		if len(c.entries) >= c.maxEntries {
			c.evictSoonestLocked()
		}
	}

	stored := make([]byte, len(body))
	copy(stored, body)
	c.entries[key] = memoryEntry{body: stored, expiresAt: c.now().Add(ttl)}
	return nil
}

func (c *MemoryCache) Invalidate(_ context.Context, key string) error {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) CleanExpired(_ context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.removeExpiredLocked(), nil
}

// Len returns the number of stored entries, expired ones included
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *MemoryCache) Health(context.Context) error { return nil }

func (c *MemoryCache) Backend() string { return "memory" }

func (c *MemoryCache) Close() {}

func (c *MemoryCache) removeExpiredLocked() int64 {
	now := c.now()
	var removed int64
	for k, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

// evictSoonestLocked drops the entry closest to expiry
func (c *MemoryCache) evictSoonestLocked() {
	var (
		victim string
		first  = true
		soon   time.Time
	)
	for k, e := range c.entries {
		if first || e.expiresAt.Before(soon) {
			victim, soon, first = k, e.expiresAt, false
		}
	}
	if !first {
		delete(c.entries, victim)
	}
}
