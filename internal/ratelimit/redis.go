package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "rate_limit"

// RedisLimiter keeps each client's sliding window in a Redis sorted set so
// every gateway instance draws from the same budget. The trim, record,
// count and expiry run in one transactional pipeline, which closes the
// check-then-act race between concurrent instances. The record lands before
// the count, so a rejected request still occupies a window slot.
type RedisLimiter struct {
	rdb    *redis.Client
	limit  int
	period time.Duration
}

func NewRedisLimiter(rdb *redis.Client, limit int, period time.Duration) *RedisLimiter {
	return &RedisLimiter{rdb: rdb, limit: limit, period: period}
}

func (l *RedisLimiter) Check(ctx context.Context, clientID string) (Decision, error) {
	now := time.Now()
	seconds := int64(l.period.Seconds())
	key := fmt.Sprintf("%s:%s:%d", redisKeyPrefix, clientID, seconds)

	score := float64(now.UnixNano()) / float64(time.Second)
	cutoff := score - l.period.Seconds()

	pipe := l.rdb.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatFloat(cutoff, 'f', -1, 64))
	pipe.ZAdd(ctx, key, redis.Z{
		Score:  score,
		Member: strconv.FormatInt(now.UnixNano(), 10),
	})
	count := pipe.ZCard(ctx, key)
	pipe.Expire(ctx, key, l.period)

	if _, err := pipe.Exec(ctx); err != nil {
		return Decision{}, fmt.Errorf("rate limit pipeline: %w", err)
	}

	inWindow := int(count.Val())
	allowed := inWindow <= l.limit

	remaining := l.limit - inWindow
	if remaining < 0 {
		remaining = 0
	}

	reset := now.Unix() + seconds
	if remaining == 0 {
		oldest, err := l.rdb.ZRangeWithScores(ctx, key, 0, 0).Result()
		if err != nil {
			return Decision{}, fmt.Errorf("rate limit oldest entry: %w", err)
		}
		if len(oldest) > 0 {
			reset = int64(oldest[0].Score) + seconds
		}
	}

	return Decision{Allowed: allowed, Remaining: remaining, Reset: reset}, nil
}
