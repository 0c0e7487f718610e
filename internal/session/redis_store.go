package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "analytics:session:"

// RedisStore keeps sessions in Redis with native key expiry.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a RedisStore.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Get returns the session id for key.
func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	id, err := s.client.Get(ctx, redisKeyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get session: %w", err)
	}
	return id, true, nil
}

// SetIfAbsent uses SET NX so concurrent first requests agree on one id.
func (s *RedisStore) SetIfAbsent(ctx context.Context, key, sessionID string, ttl time.Duration) (string, error) {
	created, err := s.client.SetNX(ctx, redisKeyPrefix+key, sessionID, ttl).Result()
	if err != nil {
		return "", fmt.Errorf("set session: %w", err)
	}
	if created {
		return sessionID, nil
	}

	existing, found, err := s.Get(ctx, key)
	if err != nil {
		return "", err
	}
	if !found {
		// expired between SETNX and GET
		return sessionID, nil
	}
	return existing, nil
}

// Touch extends the expiry of key.
func (s *RedisStore) Touch(ctx context.Context, key string, ttl time.Duration) error {
	if err := s.client.Expire(ctx, redisKeyPrefix+key, ttl).Err(); err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	return nil
}
