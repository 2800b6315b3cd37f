package telemetry

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the critter gateway.
type Metrics struct {
	TurnsTotal         *prometheus.CounterVec
	TurnDurationMs     *prometheus.HistogramVec
	TokensTotal        *prometheus.CounterVec
	FallbacksTotal     *prometheus.CounterVec
	ProbesTotal        *prometheus.CounterVec
	SafetyFlagsTotal   *prometheus.CounterVec
	RateLimitedTotal   *prometheus.CounterVec
	PolicyDenialsTotal *prometheus.CounterVec
}

// NewMetrics creates all metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		TurnsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "critters_turns_total",
			Help: "Chat turns answered, by serving backend and outcome.",
		}, []string{"backend", "outcome"}),

		TurnDurationMs: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "critters_turn_duration_ms",
			Help:    "Time to stream a full reply in milliseconds.",
			Buckets: []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000},
		}, []string{"backend"}),

		TokensTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "critters_stream_tokens_total",
			Help: "Stream fragments delivered to children.",
		}, []string{"backend"}),

		FallbacksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "critters_backend_fallbacks_total",
			Help: "Turns that left the local backend for the cloud path.",
		}, []string{"reason"}),

		ProbesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "critters_local_probes_total",
			Help: "Local backend reachability probes sent over the network.",
		}, []string{"available"}),

		SafetyFlagsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "critters_safety_flags_total",
			Help: "Safety screen results above safe.",
		}, []string{"direction", "level"}),

		RateLimitedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "critters_rate_limited_total",
			Help: "Requests refused because of throttling.",
		}, []string{"scope"}),

		PolicyDenialsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "critters_policy_denials_total",
			Help: "Turns refused by screen-time policy.",
		}, []string{"reason"}),
	}
}

// TurnLabels holds the values recorded for one streamed reply.
type TurnLabels struct {
	Backend    string
	Outcome    string
	DurationMs float64
	Tokens     int
}

// RecordTurn records metrics for a completed reply.
func (m *Metrics) RecordTurn(l TurnLabels) {
	m.TurnsTotal.WithLabelValues(l.Backend, l.Outcome).Inc()
	m.TurnDurationMs.WithLabelValues(l.Backend).Observe(l.DurationMs)
	if l.Tokens > 0 {
		m.TokensTotal.WithLabelValues(l.Backend).Add(float64(l.Tokens))
	}
}

func (m *Metrics) RecordFallback(reason string) {
	m.FallbacksTotal.WithLabelValues(reason).Inc()
}

func (m *Metrics) RecordProbe(available bool) {
	m.ProbesTotal.WithLabelValues(strconv.FormatBool(available)).Inc()
}

// RecordSafety records a non-safe screen result. direction is "input" or "output".
func (m *Metrics) RecordSafety(direction, level string) {
	m.SafetyFlagsTotal.WithLabelValues(direction, level).Inc()
}

func (m *Metrics) RecordRateLimited(scope string) {
	m.RateLimitedTotal.WithLabelValues(scope).Inc()
}

func (m *Metrics) RecordPolicyDenial(reason string) {
	m.PolicyDenialsTotal.WithLabelValues(reason).Inc()
}
