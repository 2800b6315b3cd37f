package router

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/smiling-critters/critter-gateway/internal/config"
)

// AvailabilityCache remembers the last local backend probe for a short TTL.
// It holds a single slot: probing a different endpoint replaces it.
type AvailabilityCache struct {
	mu     sync.Mutex
	client *http.Client
	cfg    func() config.RoutingConfig
	now    func() time.Time

	endpoint  string
	available bool
	checkedAt time.Time
	valid     bool

	onProbe func(endpoint string, available bool)
}

// NewAvailabilityCache creates a cache. now may be nil to use the wall clock.
func NewAvailabilityCache(client *http.Client, cfg func() config.RoutingConfig, now func() time.Time) *AvailabilityCache {
	if now == nil {
		now = time.Now
	}
	return &AvailabilityCache{client: client, cfg: cfg, now: now}
}

// OnProbe registers a hook called after every network probe.
func (c *AvailabilityCache) OnProbe(fn func(endpoint string, available bool)) {
	c.mu.Lock()
	c.onProbe = fn
	c.mu.Unlock()
}

// IsAvailable reports whether endpoint answered GET /api/tags with 200,
// probing at most once per TTL. The lock is held across the probe so
// concurrent callers share one result.
func (c *AvailabilityCache) IsAvailable(ctx context.Context, endpoint string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	rc := c.cfg()
	now := c.now()
	if c.valid && c.endpoint == endpoint && now.Sub(c.checkedAt) < rc.AvailabilityTTL {
		return c.available
	}

	available := c.probe(ctx, endpoint, rc.ProbeTimeout)
	c.endpoint = endpoint
	c.available = available
	c.checkedAt = c.now()
	c.valid = true
	if c.onProbe != nil {
		c.onProbe(endpoint, available)
	}
	return available
}

// Reset forgets the cached probe.
func (c *AvailabilityCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.endpoint = ""
	c.available = false
	c.checkedAt = time.Time{}
	c.valid = false
}

func (c *AvailabilityCache) probe(ctx context.Context, endpoint string, timeout time.Duration) bool {
	if endpoint == "" {
		return false
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
