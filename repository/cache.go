package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// Get retrieves a cached response body
func (r *Repository) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var body []byte

	// Let the database handle expiry check to avoid timezone issues
	err := r.pool.QueryRow(ctx, `
		SELECT body FROM provider_response_cache
		WHERE cache_key = $1 AND expires_at > NOW()
	`, key).Scan(&body)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to query cache: %w", err)
	}

	return body, true, nil
}

// Set stores a response body with a TTL
func (r *Repository) Set(ctx context.Context, key string, body []byte, ttl time.Duration) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO provider_response_cache (cache_key, body, expires_at)
		VALUES ($1, $2, NOW() + $3::interval)
		ON CONFLICT (cache_key)
		DO UPDATE SET body = EXCLUDED.body, expires_at = NOW() + $3::interval, created_at = NOW()
	`, key, body, ttl.String())

	if err != nil {
		return fmt.Errorf("failed to set cache: %w", err)
	}

	return nil
}

// Invalidate removes a cached response
func (r *Repository) Invalidate(ctx context.Context, key string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM provider_response_cache WHERE cache_key = $1`, key)
	if err != nil {
		return fmt.Errorf("failed to invalidate cache: %w", err)
	}
	return nil
}

// CleanExpired removes all expired cache entries
func (r *Repository) CleanExpired(ctx context.Context) (int64, error) {
	result, err := r.pool.Exec(ctx, `DELETE FROM provider_response_cache WHERE expires_at < NOW()`)
	if err != nil {
		return 0, fmt.Errorf("failed to clean expired cache: %w", err)
	}
	return result.RowsAffected(), nil
}
