package ratelimit

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/meridianmesh/edge-gateway/internal/domain/ratelimit"
)

// RedisLimiter implements ratelimit.Limiter over Redis INCR+EXPIRE. The
// window is still fixed, not a sliding log: EXPIRE is only set on the key's
// first increment, so the whole window resets atomically at TTL expiry.
type RedisLimiter struct {
	client *redis.Client
	logger *slog.Logger
	prefix string
}

// NewRedisLimiter builds a RedisLimiter over an existing client.
func NewRedisLimiter(client *redis.Client, logger *slog.Logger) *RedisLimiter {
	return &RedisLimiter{client: client, logger: logger, prefix: "edgegateway:ratelimit:"}
}

// Allow increments the counter for key's current window and compares against
// config.Points. Any Redis error fails open: the caller is allowed through
// and the error is logged, since availability outranks enforcement here.
func (l *RedisLimiter) Allow(ctx context.Context, key string, config ratelimit.Config) (ratelimit.Result, error) {
	if config.Points <= 0 || config.Window <= 0 {
		return ratelimit.Result{Allowed: true, Remaining: 0}, nil
	}

	redisKey := l.prefix + key

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	ttl := pipe.TTL(ctx, redisKey)
	if _, err := pipe.Exec(ctx); err != nil {
		l.logger.WarnContext(ctx, "rate limiter redis error, failing open", "error", err)
		return ratelimit.Result{Allowed: true, Remaining: 0}, nil
	}

	count := int(incr.Val())
	if count == 1 {
		// First hit in a new window: start its TTL. A race with a
		// concurrent first hit is harmless, both set the same duration.
		if err := l.client.Expire(ctx, redisKey, config.Window).Err(); err != nil {
			l.logger.WarnContext(ctx, "rate limiter failed to set window expiry, failing open", "error", err)
			return ratelimit.Result{Allowed: true, Remaining: 0}, nil
		}
	}

	if count > config.Points {
		remainingTTL := ttl.Val()
		if remainingTTL < 0 {
			remainingTTL = config.Window
		}
		return ratelimit.Result{
			Allowed:    false,
			Remaining:  0,
			RetryAfter: remainingTTL,
		}, nil
	}

	return ratelimit.Result{
		Allowed:   true,
		Remaining: config.Points - count,
	}, nil
}

var _ ratelimit.Limiter = (*RedisLimiter)(nil)
