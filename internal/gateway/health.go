package gateway

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/smiling-critters/critter-gateway/internal/router"
)

// HealthServiceName is the gRPC health service reported alongside the
// overall ("") status.
const HealthServiceName = "critters.Gateway"

// StatusChecker reports backend status.
type StatusChecker interface {
	CheckStatus(ctx context.Context) router.Status
}

// HealthReporter mirrors backend availability into a gRPC health server:
// SERVING while any backend can answer.
type HealthReporter struct {
	server   *health.Server
	status   StatusChecker
	interval time.Duration
	logger   *slog.Logger
	last     healthpb.HealthCheckResponse_ServingStatus
}

func NewHealthReporter(status StatusChecker, interval time.Duration, logger *slog.Logger) *HealthReporter {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &HealthReporter{
		server:   health.NewServer(),
		status:   status,
		interval: interval,
		logger:   logger,
	}
}

// Server returns the health service to register on a gRPC server.
func (h *HealthReporter) Server() *health.Server { return h.server }

// Update checks the backends once and publishes the result.
func (h *HealthReporter) Update(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	s := h.status.CheckStatus(ctx)
	serving := healthpb.HealthCheckResponse_NOT_SERVING
	if s.Active != router.BackendNone {
		serving = healthpb.HealthCheckResponse_SERVING
	}
	if serving != h.last {
		h.logger.Info("backend health changed", "status", serving.String(), "active", s.Active)
		h.last = serving
	}
	h.server.SetServingStatus("", serving)
	h.server.SetServingStatus(HealthServiceName, serving)
	return serving
}

// Run updates health every interval until ctx is done, then marks the
// service as shutting down.
func (h *HealthReporter) Run(ctx context.Context) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	h.Update(ctx)
	for {
		select {
		case <-ctx.Done():
			h.server.Shutdown()
			return
		case <-ticker.C:
			h.Update(ctx)
		}
	}
}
