package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConsentStore records in-session trust decisions. Each session keeps an
// index set of its decision keys so cancellation can purge everything without
// scanning the keyspace.
type RedisConsentStore struct {
	client *redis.Client
}

func NewRedisConsentStore(client *redis.Client) *RedisConsentStore {
	return &RedisConsentStore{client: client}
}

func decisionKey(sessionID, trustKey string) string {
	return "sso:openid:consent:" + sessionID + ":" + trustKey
}

func indexKey(sessionID string) string {
	return "sso:openid:consent:index:" + sessionID
}

func (s *RedisConsentStore) PutDecision(ctx context.Context, sessionID, trustKey string, ttl time.Duration) error {
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, decisionKey(sessionID, trustKey), "1", ttl)
		p.SAdd(ctx, indexKey(sessionID), trustKey)
		p.Expire(ctx, indexKey(sessionID), ttl)
		return nil
	})
	return err
}

func (s *RedisConsentStore) HasDecision(ctx context.Context, sessionID, trustKey string) (bool, error) {
	n, err := s.client.Exists(ctx, decisionKey(sessionID, trustKey)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *RedisConsentStore) DeleteAll(ctx context.Context, sessionID string) error {
	trustKeys, err := s.client.SMembers(ctx, indexKey(sessionID)).Result()
	if err != nil {
		return err
	}
	keys := make([]string, 0, len(trustKeys)+1)
	for _, trustKey := range trustKeys {
		keys = append(keys, decisionKey(sessionID, trustKey))
	}
	keys = append(keys, indexKey(sessionID))
	return s.client.Del(ctx, keys...).Err()
}
