package router

import (
	"context"
	"testing"
	"time"
)

func TestCheckStatus_Precedence(t *testing.T) {
	tests := []struct {
		name    string
		localUp bool
		key     string
		cooling bool
		want    string
	}{
		{"local wins over cloud", true, "key", false, BackendLocal},
		{"local wins while cooling", true, "key", true, BackendLocal},
		{"cloud", false, "key", false, BackendCloud},
		{"rate limited", false, "key", true, BackendRateLimited},
		{"none", false, "", false, BackendNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, tt.localUp, tt.key, &scriptedBackend{}, &scriptedBackend{})
			if tt.cooling {
				h.router.backoff.Trip(30 * time.Second)
			}
			s := h.router.CheckStatus(context.Background())
			if s.Active != tt.want {
				t.Errorf("Active = %s, want %s", s.Active, tt.want)
			}
			if s.Cloud.KeyConfigured != (tt.key != "") {
				t.Errorf("KeyConfigured = %v", s.Cloud.KeyConfigured)
			}
			if tt.cooling && s.Cloud.BackoffRemaining != 30 {
				t.Errorf("BackoffRemaining = %d, want 30", s.Cloud.BackoffRemaining)
			}
			if s.Cloud.Model != "gemini-1.5-flash" {
				t.Errorf("Model = %s", s.Cloud.Model)
			}
		})
	}
}

func TestCheckStatus_SharesProbeWithSend(t *testing.T) {
	srv, probes := localServer(t, 200)
	clock := newFakeClock()
	r := New(Deps{
		Resolver:     staticResolver{LocalEndpoint: srv.URL},
		Local:        &scriptedBackend{tokens: []string{"hi"}},
		Cloud:        &scriptedBackend{},
		Availability: NewAvailabilityCache(srv.Client(), testRouting(), clock.Now),
		Backoff:      NewBackoffTracker(clock.Now),
		Routing:      testRouting(),
		Logger:       discardLogger(),
	})

	r.CheckStatus(context.Background())
	drain(r.Send(context.Background(), "sys", userHi, true))

	if n := probes.Load(); n != 1 {
		t.Errorf("expected one shared probe, got %d", n)
	}
}
