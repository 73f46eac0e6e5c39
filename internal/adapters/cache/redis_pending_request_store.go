package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/ojarva-net/sso-frontend/internal/domain"
	"github.com/redis/go-redis/v9"
)

// RedisPendingRequestStore stashes the decoded relying-party request across
// the consent redirect, one slot per browser session.
type RedisPendingRequestStore struct {
	client *redis.Client
}

func NewRedisPendingRequestStore(client *redis.Client) *RedisPendingRequestStore {
	return &RedisPendingRequestStore{client: client}
}

func (s *RedisPendingRequestStore) Put(ctx context.Context, sessionID string, req domain.PendingAuthRequest, ttl time.Duration) error {
	raw, err := json.Marshal(req)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, "sso:openid:pending:"+sessionID, raw, ttl).Err()
}

func (s *RedisPendingRequestStore) Get(ctx context.Context, sessionID string) (*domain.PendingAuthRequest, error) {
	raw, err := s.client.Get(ctx, "sso:openid:pending:"+sessionID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var out domain.PendingAuthRequest
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *RedisPendingRequestStore) Delete(ctx context.Context, sessionID string) error {
	return s.client.Del(ctx, "sso:openid:pending:"+sessionID).Err()
}
