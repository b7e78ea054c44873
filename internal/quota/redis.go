package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"swiftapply/internal/domain"
)

// counterTTL keeps yesterday's keys around briefly for observability before
// they expire on their own.
const counterTTL = 48 * time.Hour

// RedisCounters keeps the per-identity-per-day counters in Redis. INCR is
// the atomic create-or-increment primitive; a speculative increment that
// lands past the limit is rolled back before reporting exhaustion, so
// successful consumptions never exceed the cap even under races.
type RedisCounters struct {
	Client *redis.Client
	Logger zerolog.Logger
}

func NewRedisCounters(client *redis.Client, logger zerolog.Logger) *RedisCounters {
	return &RedisCounters{Client: client, Logger: logger}
}

func counterKey(identity, day string) string {
	return fmt.Sprintf("quota:%s:%s", identity, day)
}

func (s *RedisCounters) Count(ctx context.Context, identity string, day string) (int, error) {
	count, err := s.Client.Get(ctx, counterKey(identity, day)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (s *RedisCounters) Increment(ctx context.Context, id domain.Identity, day string, limit int) (int, bool, error) {
	key := counterKey(id.ID, day)

	count, err := s.Client.Incr(ctx, key).Result()
	if err != nil {
		return 0, false, err
	}
	if count == 1 {
		_ = s.Client.Expire(ctx, key, counterTTL).Err()
	}

	if limit >= 0 && count > int64(limit) {
		// a failed rollback leaves the counter overshot; Check then
		// over-reports used until the key expires, so it must be visible
		if err := s.Client.Decr(ctx, key).Err(); err != nil {
			s.Logger.Error().Err(err).Str("key", key).Msg("quota counter rollback failed, counter overshoots until expiry")
		}
		return int(count - 1), false, nil
	}
	return int(count), true, nil
}

var _ CounterStore = (*RedisCounters)(nil)
