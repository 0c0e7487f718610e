package bootstrap

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/trailverse/analytics/infrastructure/logger"
	infraredis "github.com/trailverse/analytics/infrastructure/redis"
	"github.com/trailverse/analytics/internal/config"
	"github.com/trailverse/analytics/internal/session"
)

// Sessions holds the session store and, when Redis backs it, the client.
type Sessions struct {
	Store  session.Store
	client *goredis.Client
}

// Ping checks Redis. It is nil when sessions are kept in memory.
func (s *Sessions) Ping() func() error {
	if s.client == nil {
		return nil
	}
	return func() error {
		ctx, cancel := context.WithTimeout(context.Background(), healthCheckTimeout)
		defer cancel()
		return s.client.Ping(ctx).Err()
	}
}

// Close releases the Redis client, if any.
func (s *Sessions) Close(log logger.Logger) {
	if s.client == nil {
		return
	}
	if err := s.client.Close(); err != nil {
		log.Error("Failed to close redis client", logger.Error(err))
	}
}

// SetupSessions picks the Redis session store when Redis is configured and
// the in-memory store otherwise.
func SetupSessions(ctx context.Context, cfg *config.Config, log logger.Logger) (*Sessions, error) {
	if !cfg.UsesRedisSessions() {
		log.Warn("Redis not configured; sessions are kept in process memory")
		return &Sessions{Store: session.NewMemoryStore()}, nil
	}

	client, err := infraredis.NewClient(ctx, cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}

	log.Info("Redis connected", logger.String("address", cfg.Redis.Address))
	return &Sessions{Store: session.NewRedisStore(client), client: client}, nil
}
