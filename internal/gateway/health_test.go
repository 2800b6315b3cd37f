package gateway

import (
	"context"
	"testing"
	"time"

	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/smiling-critters/critter-gateway/internal/router"
)

func checkHealth(t *testing.T, h *HealthReporter, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	resp, err := h.Server().Check(t.Context(), &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		t.Fatalf("Check(%q): %v", service, err)
	}
	return resp.GetStatus()
}

func TestHealthReporter_Update(t *testing.T) {
	tests := []struct {
		active string
		want   healthpb.HealthCheckResponse_ServingStatus
	}{
		{router.BackendLocal, healthpb.HealthCheckResponse_SERVING},
		{router.BackendCloud, healthpb.HealthCheckResponse_SERVING},
		{router.BackendNone, healthpb.HealthCheckResponse_NOT_SERVING},
	}
	for _, tt := range tests {
		t.Run(tt.active, func(t *testing.T) {
			fr := &fakeRouter{status: router.Status{Active: tt.active}}
			h := NewHealthReporter(fr, time.Minute, discard())

			if got := h.Update(t.Context()); got != tt.want {
				t.Errorf("Update = %v, want %v", got, tt.want)
			}
			for _, svc := range []string{"", HealthServiceName} {
				if got := checkHealth(t, h, svc); got != tt.want {
					t.Errorf("Check(%q) = %v, want %v", svc, got, tt.want)
				}
			}
		})
	}
}

func TestHealthReporter_Transitions(t *testing.T) {
	fr := &fakeRouter{status: router.Status{Active: router.BackendNone}}
	h := NewHealthReporter(fr, time.Minute, discard())

	h.Update(t.Context())
	fr.status.Active = router.BackendLocal
	h.Update(t.Context())
	if got := checkHealth(t, h, HealthServiceName); got != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("after recovery = %v, want SERVING", got)
	}
}

func TestHealthReporter_RunStopsOnCancel(t *testing.T) {
	fr := &fakeRouter{status: router.Status{Active: router.BackendLocal}}
	h := NewHealthReporter(fr, time.Millisecond, discard())

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	// Shutdown flips every service to NOT_SERVING.
	if got := checkHealth(t, h, ""); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Errorf("after shutdown = %v, want NOT_SERVING", got)
	}
}
