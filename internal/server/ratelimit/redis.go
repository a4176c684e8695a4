package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// slidingWindowScript trims the sorted set to the window, then records the
// request only when the count is under the limit. It returns
// {allowed, count, oldest_score_ms}.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)
if count >= limit then
  local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
  return {0, count, tonumber(oldest[2])}
end
redis.call('ZADD', key, now, ARGV[4])
redis.call('PEXPIRE', key, window)
local first = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
return {1, count + 1, tonumber(first[2])}
`)

// RedisLimiter is a sliding-window limiter shared by every instance that
// points at the same Redis.
type RedisLimiter struct {
	client redis.Scripter
	prefix string
	now    func() time.Time
}

// NewRedisLimiter creates a limiter storing windows under prefix.
func NewRedisLimiter(client redis.Scripter, prefix string) *RedisLimiter {
	if prefix == "" {
		prefix = "ratelimit:"
	}
	return &RedisLimiter{client: client, prefix: prefix, now: time.Now}
}

// Allow runs the sliding-window script atomically for key.
func (l *RedisLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (Info, error) {
	if limit <= 0 {
		return Info{Allowed: true}, nil
	}

	now := l.now()
	nowMs := now.UnixMilli()
	member := fmt.Sprintf("%d-%s", nowMs, uuid.NewString())

	res, err := slidingWindowScript.Run(ctx, l.client,
		[]string{l.prefix + key},
		nowMs, window.Milliseconds(), limit, member,
	).Int64Slice()
	if err != nil {
		return Info{}, fmt.Errorf("ratelimit: redis script: %w", err)
	}
	if len(res) != 3 {
		return Info{}, fmt.Errorf("ratelimit: unexpected script result %v", res)
	}

	reset := time.UnixMilli(res[2]).Add(window)
	info := Info{
		Allowed:   res[0] == 1,
		Limit:     limit,
		Remaining: limit - int(res[1]),
		ResetTime: reset,
	}
	if info.Remaining < 0 {
		info.Remaining = 0
	}
	if !info.Allowed {
		info.RetryAfter = reset.Sub(now)
		if info.RetryAfter < 0 {
			info.RetryAfter = 0
		}
	}
	return info, nil
}

// Close is a no-op; the Redis client is owned by the caller.
func (l *RedisLimiter) Close() error { return nil }
