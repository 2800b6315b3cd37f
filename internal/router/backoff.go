package router

import (
	"sync"
	"time"
)

// BackoffTracker holds the cloud backend cooldown. cooldownUntil only moves
// forward, except through Reset.
type BackoffTracker struct {
	mu            sync.Mutex
	cooldownUntil time.Time
	now           func() time.Time
}

// NewBackoffTracker creates a tracker. now may be nil to use the wall clock.
func NewBackoffTracker(now func() time.Time) *BackoffTracker {
	if now == nil {
		now = time.Now
	}
	return &BackoffTracker{now: now}
}

// Remaining returns how long the cloud backend must still be left alone.
func (b *BackoffTracker) Remaining() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	if d := b.cooldownUntil.Sub(b.now()); d > 0 {
		return d
	}
	return 0
}

// Trip starts or extends the cooldown to at least now+retryAfter.
func (b *BackoffTracker) Trip(retryAfter time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if until := b.now().Add(retryAfter); until.After(b.cooldownUntil) {
		b.cooldownUntil = until
	}
}

// Reset clears the cooldown.
func (b *BackoffTracker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cooldownUntil = time.Time{}
}

// CooldownUntil returns the end of the current cooldown, zero if never tripped.
func (b *BackoffTracker) CooldownUntil() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cooldownUntil
}
