package repository

import (
	"context"
	"fmt"
	"time"

	"analise-fundamental/config"
)

// ResponseCache stores raw provider response bodies under a request key
type ResponseCache interface {
	// Get returns the cached body; ok is false on a miss or an expired entry
	Get(ctx context.Context, key string) (body []byte, ok bool, err error)
	Set(ctx context.Context, key string, body []byte, ttl time.Duration) error
	Invalidate(ctx context.Context, key string) error
	// CleanExpired removes expired entries and returns how many were removed
	CleanExpired(ctx context.Context) (int64, error)
	Health(ctx context.Context) error
	Backend() string
	Close()
}

// NewResponseCache builds the backend selected by cfg.Cache.Backend.
// It returns nil for the "none" backend.
func NewResponseCache(ctx context.Context, cfg *config.Config) (ResponseCache, error) {
	switch cfg.Cache.Backend {
	case config.CacheNone:
		return nil, nil
	case config.CacheMemory:
		return NewMemoryCache(cfg.Cache.MaxEntries), nil
	case config.CacheRedis:
		client, err := NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		return NewRedisCache(client, DefaultRedisPrefix), nil
	case config.CachePostgres:
		repo, err := NewRepository(ctx, cfg.Database.URL)
		if err != nil {
			return nil, err
		}
		if err := repo.EnsureSchema(ctx); err != nil {
			repo.Close()
			return nil, err
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
	}
}

// Compile-time interface verification
var (
	_ ResponseCache = (*MemoryCache)(nil)
	_ ResponseCache = (*RedisCache)(nil)
	_ ResponseCache = (*Repository)(nil)
)
