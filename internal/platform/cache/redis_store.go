package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/riskibarqy/softball-stats/internal/platform/logging"
	"github.com/riskibarqy/softball-stats/internal/platform/resilience"
)

// RedisStore shares encoded responses between instances. Redis failures
// degrade to calling the loader directly.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	flight resilience.SingleFlight
	logger *logging.Logger
}

func NewRedisStore(client redis.UniversalClient, prefix string, ttl time.Duration, logger *logging.Logger) *RedisStore {
	if logger == nil {
		logger = logging.Default()
	}
	return &RedisStore{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		logger: logger,
	}
}

func (s *RedisStore) key(key string) string {
	return s.prefix + key
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool) {
	value, err := s.client.Get(ctx, s.key(key)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.WarnContext(ctx, "redis cache read failed", "key", key, "error", err)
		}
		return nil, false
	}
	return value, true
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte) {
	if err := s.client.Set(ctx, s.key(key), value, s.ttl).Err(); err != nil {
		s.logger.WarnContext(ctx, "redis cache write failed", "key", key, "error", err)
	}
}

func (s *RedisStore) Delete(ctx context.Context, key string) {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		s.logger.WarnContext(ctx, "redis cache delete failed", "key", key, "error", err)
	}
	s.flight.Forget(key)
}

func (s *RedisStore) GetOrLoad(ctx context.Context, key string, loader Loader) ([]byte, error) {
	return loadThrough(ctx, &s.flight, s, key, loader)
}

// Ping reports whether Redis is reachable.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
