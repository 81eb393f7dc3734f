package cooldown

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore backs the cooldown map with Redis so multiple engine instances
// share one deduplication window. SET NX with an expiry gives the atomic
// check-and-record in a single round trip.
type RedisStore struct {
	client   *redis.Client
	interval time.Duration
}

// NewRedisStore creates a Redis-backed cooldown store
func NewRedisStore(client *redis.Client, interval time.Duration) *RedisStore {
	if interval <= 0 {
		interval = time.Hour
	}
	return &RedisStore{client: client, interval: interval}
}

// Reserve implements Store
func (s *RedisStore) Reserve(ctx context.Context, key Key, now time.Time) (bool, error) {
	ok, err := s.client.SetNX(ctx, key.String(), now.UnixMilli(), s.interval).Result()
	if err != nil {
		return false, fmt.Errorf("error reserving cooldown slot %s: %w", key, err)
	}
	return ok, nil
}
