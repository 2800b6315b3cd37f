package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestUsageTracker_NilRedis(t *testing.T) {
	u := NewUsageTracker(nil, nil)
	ctx := context.Background()
	now := time.Now()

	if err := u.RecordSession(ctx, now, 20*time.Minute); err != nil {
		t.Fatalf("RecordSession: %v", err)
	}
	if n, err := u.MinutesToday(ctx, now); n != 0 || err != nil {
		t.Errorf("MinutesToday() = %d, %v", n, err)
	}
}

func TestUsageTracker_DailyKeyUsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC-8", -8*60*60)
	u := NewUsageTracker(nil, loc)

	// 03:00 UTC on the 2nd is still the evening of the 1st at UTC-8.
	now := time.Date(2026, 6, 2, 3, 0, 0, 0, time.UTC)
	if got := u.dailyKey(now); got != "critters:usage:daily:2026-06-01" {
		t.Errorf("dailyKey() = %s", got)
	}

	utc := NewUsageTracker(nil, nil)
	if got := utc.dailyKey(now); got != "critters:usage:daily:2026-06-02" {
		t.Errorf("UTC dailyKey() = %s", got)
	}
}
