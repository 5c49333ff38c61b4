// Package ratelimit implements a Redis-backed token bucket for the
// Token API. With no Redis configured, or a disabled limit, it
// degrades to a no-op.
package ratelimit

import (
	"context"
	"math"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/resumehub/billing/internal/config"
	"go.uber.org/zap"
)

// Limiter decides whether a caller may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// tokenBucket refills rate tokens per second up to burst and takes one
// token per call. Refill uses Redis server time so all instances agree.
var tokenBucket = redis.NewScript(`
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local ttl = tonumber(ARGV[3])

local nowData = redis.call("TIME")
local now = (nowData[1] * 1000) + math.floor(nowData[2] / 1000)

local data = redis.call("HMGET", KEYS[1], "tokens", "ts")
local tokens = tonumber(data[1])
local ts = tonumber(data[2])

if tokens == nil then
  tokens = burst
  ts = now
else
  local delta = now - ts
  if delta < 0 then
    delta = 0
  end
  tokens = math.min(burst, tokens + (delta / 1000) * rate)
  ts = now
end

local allowed = 0
if tokens >= 1 then
  allowed = 1
  tokens = tokens - 1
end

redis.call("HMSET", KEYS[1], "tokens", tokens, "ts", ts)
redis.call("PEXPIRE", KEYS[1], ttl)
return allowed
`)

type redisLimiter struct {
	rdb   *redis.Client
	rate  float64
	burst int
	ttl   time.Duration
	log   *zap.Logger
}

func New(cfg config.Config, log *zap.Logger) Limiter {
	if cfg.RedisAddr == "" || cfg.RateLimitCalls <= 0 || cfg.RateLimitPeriod <= 0 {
		return noopLimiter{}
	}
	rate := float64(cfg.RateLimitCalls) / float64(cfg.RateLimitPeriod)
	return &redisLimiter{
		rdb:   redis.NewClient(&redis.Options{Addr: cfg.RedisAddr}),
		rate:  rate,
		burst: cfg.RateLimitCalls,
		ttl:   bucketTTL(rate, cfg.RateLimitCalls),
		log:   log.Named("ratelimit"),
	}
}

func (l *redisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	allowed, err := tokenBucket.Run(ctx, l.rdb,
		[]string{"ratelimit:" + key},
		l.rate,
		l.burst,
		int64(l.ttl/time.Millisecond),
	).Int()
	if err != nil {
		// Fail open: a limiter outage must not take the API down.
		l.log.Warn("rate limit check failed", zap.Error(err))
		return true, nil
	}
	return allowed == 1, nil
}

// bucketTTL keeps idle buckets around long enough to refill twice.
func bucketTTL(rate float64, burst int) time.Duration {
	seconds := math.Ceil(float64(burst) / rate * 2)
	if seconds < 1 {
		seconds = 1
	}
	return time.Duration(seconds) * time.Second
}

type noopLimiter struct{}

func (noopLimiter) Allow(context.Context, string) (bool, error) { return true, nil }
