package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/zatekoja/docenricher/internal/domain/providers"
	"github.com/zatekoja/docenricher/internal/infrastructure/observability"
)

const defaultKeyPrefix = "docenricher:"

// RedisAdapter implements the CacheProvider interface using Redis
type RedisAdapter struct {
	client  redis.UniversalClient
	prefix  string
	name    string
	metrics *observability.Metrics
}

// NewRedisAdapter creates a new Redis cache adapter. metrics may be nil.
func NewRedisAdapter(client redis.UniversalClient, name string, metrics *observability.Metrics) *RedisAdapter {
	return &RedisAdapter{
		client:  client,
		prefix:  defaultKeyPrefix + name + ":",
		name:    name,
		metrics: metrics,
	}
}

var _ providers.CacheProvider = (*RedisAdapter)(nil)

func (a *RedisAdapter) key(key string) string {
	return a.prefix + key
}

// Get retrieves a value from cache
func (a *RedisAdapter) Get(ctx context.Context, key string) ([]byte, error) {
	result, err := a.client.Get(ctx, a.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		a.metrics.RecordCacheMiss(ctx, a.name)
		return nil, providers.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get from cache: %w", err)
	}
	a.metrics.RecordCacheHit(ctx, a.name)
	return result, nil
}

// Set stores a value in cache with expiration. A zero ttl keeps the value
// until redis evicts it.
func (a *RedisAdapter) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := a.client.Set(ctx, a.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set in cache: %w", err)
	}
	return nil
}
