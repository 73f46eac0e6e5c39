package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisDebounceStore backs the short-lived write-amplification throttles:
// last-seen updates, fingerprint polls and timesync prompts all check here
// before touching Postgres.
type RedisDebounceStore struct {
	client *redis.Client
}

func NewRedisDebounceStore(client *redis.Client) *RedisDebounceStore {
	return &RedisDebounceStore{client: client}
}

func (s *RedisDebounceStore) Get(ctx context.Context, key string) (string, error) {
	value, err := s.client.Get(ctx, "sso:debounce:"+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", err
	}
	return value, nil
}

func (s *RedisDebounceStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.client.Set(ctx, "sso:debounce:"+key, value, ttl).Err()
}
