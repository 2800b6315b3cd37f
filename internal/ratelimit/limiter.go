package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// LimitResult is the outcome of a rate limit check.
type LimitResult struct {
	Allowed    bool
	Remaining  int64
	ResetAt    time.Time
	RetryAfter time.Duration
}

// Checker is the sliding-window check used by the HTTP middleware.
type Checker interface {
	Check(ctx context.Context, key string, limit int64, window time.Duration) (LimitResult, error)
}

// Limiter performs sliding-window rate limiting backed by Redis sorted sets.
type Limiter struct {
	rdb *redis.Client
	now func() time.Time
}

// NewLimiter creates a new rate limiter. If rdb is nil, all checks pass (fail open).
func NewLimiter(rdb *redis.Client) *Limiter {
	return &Limiter{rdb: rdb, now: time.Now}
}

// slidingWindowScript atomically removes expired entries, then adds the
// current request if the window has room.
// KEYS[1] = sorted set key
// ARGV[1] = window start (unix micro)
// ARGV[2] = now (unix micro), used as score and member prefix
// ARGV[3] = limit
// ARGV[4] = TTL seconds for the key
// Returns: [current_count, 1=allowed/0=denied, oldest_score]
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local window_start = tonumber(ARGV[1])
local now = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])

redis.call('ZREMRANGEBYSCORE', key, '-inf', window_start)
local count = redis.call('ZCARD', key)

if count < limit then
    redis.call('ZADD', key, now, now .. ':' .. math.random(1000000))
    redis.call('EXPIRE', key, ttl)
    return {count + 1, 1, 0}
end

redis.call('EXPIRE', key, ttl)
local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
return {count, 0, tonumber(oldest[2])}
`)

func redisKey(key string) string {
	return fmt.Sprintf("critters:rl:%s", key)
}

// Check records one request against key and reports whether it fits within
// limit requests per window.
func (l *Limiter) Check(ctx context.Context, key string, limit int64, window time.Duration) (LimitResult, error) {
	now := l.now()
	if l.rdb == nil {
		return LimitResult{Allowed: true, Remaining: limit - 1, ResetAt: now.Add(window)}, nil
	}

	ttlSecs := int64(window.Seconds()) + 1
	result, err := slidingWindowScript.Run(ctx, l.rdb, []string{redisKey(key)},
		now.Add(-window).UnixMicro(), now.UnixMicro(), limit, ttlSecs,
	).Int64Slice()
	if err != nil {
		// Fail open on Redis errors
		return LimitResult{Allowed: true, Remaining: limit, ResetAt: now.Add(window)}, nil
	}
	return limitResult(now, limit, window, result), nil
}

// Count returns how many requests are recorded for key within window,
// without recording a new one.
func (l *Limiter) Count(ctx context.Context, key string, window time.Duration) (int64, error) {
	if l.rdb == nil {
		return 0, nil
	}
	now := l.now()
	n, err := l.rdb.ZCount(ctx, redisKey(key),
		fmt.Sprintf("(%d", now.Add(-window).UnixMicro()), "+inf").Result()
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", key, err)
	}
	return n, nil
}

// Reset forgets every request recorded for key.
func (l *Limiter) Reset(ctx context.Context, key string) error {
	if l.rdb == nil {
		return nil
	}
	return l.rdb.Del(ctx, redisKey(key)).Err()
}

func limitResult(now time.Time, limit int64, window time.Duration, result []int64) LimitResult {
	count := result[0]
	allowed := result[1] == 1
	remaining := max(limit-count, 0)

	res := LimitResult{
		Allowed:   allowed,
		Remaining: remaining,
		ResetAt:   now.Add(window),
	}
	if !allowed {
		res.RetryAfter = window / 2
		if len(result) > 2 && result[2] > 0 {
			oldest := time.UnixMicro(result[2])
			res.ResetAt = oldest.Add(window)
			res.RetryAfter = max(res.ResetAt.Sub(now), time.Second)
		}
	}
	return res
}
