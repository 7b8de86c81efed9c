package admission

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	connKeyPrefix = "livecast:conns:"
	msgKeyPrefix  = "livecast:msgs:"

	// connKeyTTL bounds leaked slots from crashed instances.
	connKeyTTL = 24 * time.Hour
)

// RedisStore is the shared counter store backed by Redis, so admission
// limits hold across livecast instances.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps a Redis client as a CounterStore.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Ping verifies the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// AddConnection implements CounterStore.
func (s *RedisStore) AddConnection(ctx context.Context, identity string) (int64, error) {
	key := connKeyPrefix + identity

	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, connKeyTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("incr connection count: %w", err)
	}
	return incr.Val(), nil
}

// RemoveConnection implements CounterStore.
func (s *RedisStore) RemoveConnection(ctx context.Context, identity string) error {
	key := connKeyPrefix + identity

	n, err := s.client.Decr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("decr connection count: %w", err)
	}
	if n <= 0 {
		// Clean up rather than let zero-count keys accumulate.
		s.client.Del(ctx, key)
	}
	return nil
}

// CountMessage implements CounterStore using a fixed-window counter
// keyed by the current window bucket.
func (s *RedisStore) CountMessage(ctx context.Context, identity string, window time.Duration) (int64, error) {
	bucket := time.Now().UnixMilli() / window.Milliseconds()
	key := fmt.Sprintf("%s%s:%d", msgKeyPrefix, identity, bucket)

	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.PExpire(ctx, key, 2*window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("incr message count: %w", err)
	}
	return incr.Val(), nil
}
