package cache

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// Connect builds the Redis client shared by the debounce, pending-request,
// consent and association stores. Accepts a redis:// URL or a bare
// host:port.
func Connect(_ context.Context, redisURL string) (*redis.Client, error) {
	if !strings.HasPrefix(redisURL, "redis://") {
		return redis.NewClient(&redis.Options{Addr: redisURL}), nil
	}
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return redis.NewClient(opt), nil
}
