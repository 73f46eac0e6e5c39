package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/ojarva-net/sso-frontend/internal/openid"
	"github.com/redis/go-redis/v9"
)

const privateAssocKey = "sso:openid:assoc:private"

// RedisAssociationStore keeps OpenID association secrets. Redis TTLs enforce
// expiry, so a handle that outlived its lifetime simply reads as unknown.
type RedisAssociationStore struct {
	client *redis.Client
}

func NewRedisAssociationStore(client *redis.Client) *RedisAssociationStore {
	return &RedisAssociationStore{client: client}
}

func (s *RedisAssociationStore) Put(ctx context.Context, assoc openid.Association, ttl time.Duration) error {
	raw, err := json.Marshal(assoc)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, "sso:openid:assoc:"+assoc.Handle, raw, ttl).Err()
}

func (s *RedisAssociationStore) Get(ctx context.Context, handle string) (*openid.Association, error) {
	raw, err := s.client.Get(ctx, "sso:openid:assoc:"+handle).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var out openid.Association
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *RedisAssociationStore) Delete(ctx context.Context, handle string) error {
	return s.client.Del(ctx, "sso:openid:assoc:"+handle).Err()
}

func (s *RedisAssociationStore) PutPrivate(ctx context.Context, assoc openid.Association, ttl time.Duration) error {
	raw, err := json.Marshal(assoc)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, privateAssocKey, raw, ttl).Err()
}

func (s *RedisAssociationStore) GetPrivate(ctx context.Context) (*openid.Association, error) {
	raw, err := s.client.Get(ctx, privateAssocKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var out openid.Association
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
