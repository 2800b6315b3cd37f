package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, vec *prometheus.CounterVec, labels ...string) float64 {
	t.Helper()
	counter, err := vec.GetMetricWithLabelValues(labels...)
	if err != nil {
		t.Fatalf("failed to get metric: %v", err)
	}
	var metric dto.Metric
	if err := counter.Write(&metric); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	return metric.GetCounter().GetValue()
}

func TestNewMetrics_Registers(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RecordFallback("local_error")
	m.RecordProbe(true)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, want := range []string{"critters_backend_fallbacks_total", "critters_local_probes_total"} {
		if !names[want] {
			t.Errorf("metric %s not registered", want)
		}
	}
}

func TestNewMetrics_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewMetrics(reg)
	defer func() {
		if recover() == nil {
			t.Error("expected panic on duplicate registration")
		}
	}()
	NewMetrics(reg)
}

func TestRecordTurn(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordTurn(TurnLabels{Backend: "local", Outcome: "ok", DurationMs: 850, Tokens: 42})
	m.RecordTurn(TurnLabels{Backend: "cloud", Outcome: "rate_limited", DurationMs: 3})

	if v := counterValue(t, m.TurnsTotal, "local", "ok"); v != 1 {
		t.Errorf("expected 1 local turn, got %v", v)
	}
	if v := counterValue(t, m.TokensTotal, "local"); v != 42 {
		t.Errorf("expected 42 tokens, got %v", v)
	}
	if v := counterValue(t, m.TokensTotal, "cloud"); v != 0 {
		t.Errorf("expected no cloud tokens, got %v", v)
	}
}

func TestRecordSafetyAndLimits(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordSafety("input", "crisis")
	m.RecordSafety("input", "crisis")
	m.RecordRateLimited("session")
	m.RecordPolicyDenial("quiet_hours")

	if v := counterValue(t, m.SafetyFlagsTotal, "input", "crisis"); v != 2 {
		t.Errorf("expected 2 crisis flags, got %v", v)
	}
	if v := counterValue(t, m.RateLimitedTotal, "session"); v != 1 {
		t.Errorf("expected 1 rate limited, got %v", v)
	}
	if v := counterValue(t, m.PolicyDenialsTotal, "quiet_hours"); v != 1 {
		t.Errorf("expected 1 denial, got %v", v)
	}
}
