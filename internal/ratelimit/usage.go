package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// UsageTracker counts the child's chat time per calendar day via Redis.
type UsageTracker struct {
	rdb *redis.Client
	loc *time.Location
}

// NewUsageTracker creates a usage tracker. If rdb is nil, usage is always
// zero. loc selects the day boundary; nil means UTC.
func NewUsageTracker(rdb *redis.Client, loc *time.Location) *UsageTracker {
	if loc == nil {
		loc = time.UTC
	}
	return &UsageTracker{rdb: rdb, loc: loc}
}

func (u *UsageTracker) dailyKey(now time.Time) string {
	return fmt.Sprintf("critters:usage:daily:%s", now.In(u.loc).Format("2006-01-02"))
}

// MinutesToday returns the whole minutes recorded for the day containing now.
func (u *UsageTracker) MinutesToday(ctx context.Context, now time.Time) (int, error) {
	if u.rdb == nil {
		return 0, nil
	}
	secs, err := u.rdb.Get(ctx, u.dailyKey(now)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read daily usage: %w", err)
	}
	return int(secs / 60), nil
}

// RecordSession adds a finished session's length to the day containing now.
func (u *UsageTracker) RecordSession(ctx context.Context, now time.Time, length time.Duration) error {
	secs := int64(length / time.Second)
	if u.rdb == nil || secs <= 0 {
		return nil
	}

	key := u.dailyKey(now)
	local := now.In(u.loc)
	endOfDay := time.Date(local.Year(), local.Month(), local.Day()+1, 0, 0, 0, 0, u.loc)
	ttl := endOfDay.Sub(local) + time.Hour

	pipe := u.rdb.Pipeline()
	pipe.IncrBy(ctx, key, secs)
	pipe.Expire(ctx, key, ttl)
	_, err := pipe.Exec(ctx)
	return err
}
