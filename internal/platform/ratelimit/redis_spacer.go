package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/riskibarqy/softball-stats/internal/platform/logging"
)

const defaultRedisSpacerKey = "softball:ratelimit:ncaa"

// RedisSpacer shares the request spacing across every instance pointed at
// the same Redis. A slot is held by a key that expires after interval.
type RedisSpacer struct {
	client   redis.UniversalClient
	key      string
	interval time.Duration
	local    *Spacer
	logger   *logging.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

func NewRedisSpacer(client redis.UniversalClient, key string, interval time.Duration, logger *logging.Logger) *RedisSpacer {
	if key == "" {
		key = defaultRedisSpacerKey
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = logging.Default()
	}

	return &RedisSpacer{
		client:   client,
		key:      key,
		interval: interval,
		local:    NewSpacer(interval, logger),
		logger:   logger,
		sleep:    sleepContext,
	}
}

// Wait spaces calls locally first, then claims the shared slot. If Redis is
// unreachable the local spacing still applies.
func (s *RedisSpacer) Wait(ctx context.Context) error {
	if err := s.local.Wait(ctx); err != nil {
		return err
	}

	for {
		acquired, err := s.client.SetNX(ctx, s.key, time.Now().UnixMilli(), s.interval).Result()
		if err != nil {
			return s.unavailable(ctx, "claim shared slot", err)
		}
		if acquired {
			return nil
		}

		ttl, err := s.client.PTTL(ctx, s.key).Result()
		if err != nil {
			return s.unavailable(ctx, "read shared slot ttl", err)
		}
		if ttl <= 0 {
			// Key without expiry or already gone; retry after a short pause.
			ttl = 10 * time.Millisecond
		}

		s.logger.DebugContext(ctx, "waiting for shared upstream slot", "wait_ms", ttl.Milliseconds())
		if err := s.sleep(ctx, ttl); err != nil {
			return err
		}
	}
}

// unavailable degrades to the local spacing that already ran, unless ctx
// ended.
func (s *RedisSpacer) unavailable(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	s.logger.WarnContext(ctx, "shared rate limit unavailable, using local spacing", "op", op, "error", err)
	return nil
}
