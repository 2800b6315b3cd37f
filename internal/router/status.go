package router

import (
	"context"
	"math"
)

// LocalStatus describes the local backend as of the last probe.
type LocalStatus struct {
	Available bool   `json:"available"`
	Endpoint  string `json:"endpoint"`
	Model     string `json:"model"`
}

// CloudStatus describes the cloud backend. BackoffRemaining is whole
// seconds, rounded up.
type CloudStatus struct {
	KeyConfigured    bool   `json:"key_configured"`
	Model            string `json:"model"`
	BackoffRemaining int    `json:"backoff_remaining_s"`
}

// Status is a display snapshot of both backends.
type Status struct {
	Active string      `json:"active"`
	Local  LocalStatus `json:"local"`
	Cloud  CloudStatus `json:"cloud"`
}

// CheckStatus reports the backend the next Send would use, with precedence
// local, cloud, rate_limited, none. Its only side effect is the cached probe.
func (r *Router) CheckStatus(ctx context.Context) Status {
	cfg := r.resolver.Resolve(ctx)
	localOK := r.availability.IsAvailable(ctx, cfg.LocalEndpoint)
	remaining := r.backoff.Remaining()

	s := Status{
		Local: LocalStatus{
			Available: localOK,
			Endpoint:  cfg.LocalEndpoint,
			Model:     cfg.LocalModel,
		},
		Cloud: CloudStatus{
			KeyConfigured:    cfg.HasCloudKey(),
			Model:            r.routing().CloudModel,
			BackoffRemaining: int(math.Ceil(remaining.Seconds())),
		},
	}

	switch {
	case localOK:
		s.Active = BackendLocal
	case cfg.HasCloudKey() && remaining <= 0:
		s.Active = BackendCloud
	case cfg.HasCloudKey():
		s.Active = BackendRateLimited
	default:
		s.Active = BackendNone
	}
	return s
}
