package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// GatewayMetrics records upstream aggregator request outcomes.
type GatewayMetrics struct {
	duration *prometheus.HistogramVec
}

// NewGatewayMetrics registers gateway metrics on the provided registerer.
func NewGatewayMetrics(reg prometheus.Registerer) *GatewayMetrics {
	if reg == nil {
		return &GatewayMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "upstream_request_duration_seconds",
		Help:    "Duration of upstream aggregator requests in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "outcome"})
	reg.MustRegister(duration)
	return &GatewayMetrics{duration: duration}
}

// ObserveRequest records one upstream request.
func (g *GatewayMetrics) ObserveRequest(method, outcome string, duration time.Duration) {
	if g == nil || g.duration == nil {
		return
	}
	g.duration.WithLabelValues(normalizeLabel(method), normalizeLabel(outcome)).Observe(duration.Seconds())
}

// BreakerMetrics counts circuit state transitions.
type BreakerMetrics struct {
	transitions *prometheus.CounterVec
}

// NewBreakerMetrics registers breaker metrics on the provided registerer.
func NewBreakerMetrics(reg prometheus.Registerer) *BreakerMetrics {
	if reg == nil {
		return &BreakerMetrics{}
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "circuit_breaker_transitions_total",
		Help: "Circuit breaker state transitions.",
	}, []string{"circuit", "state"})
	reg.MustRegister(transitions)
	return &BreakerMetrics{transitions: transitions}
}

// IncTransition counts one transition into the named state.
func (b *BreakerMetrics) IncTransition(circuit, state string) {
	if b == nil || b.transitions == nil {
		return
	}
	b.transitions.WithLabelValues(normalizeLabel(circuit), normalizeLabel(state)).Inc()
}

// LoopMetrics records metadata for recovery loop sweeps.
type LoopMetrics struct {
	duration *prometheus.HistogramVec
	success  *prometheus.CounterVec
	failure  *prometheus.CounterVec
}

// NewLoopMetrics registers the recovery loop metrics on the provided registerer.
func NewLoopMetrics(reg prometheus.Registerer) *LoopMetrics {
	if reg == nil {
		return &LoopMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "recovery_sweep_duration_seconds",
		Help:    "Duration of recovery loop sweeps in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"loop"})
	success := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "recovery_sweep_success",
		Help: "Successful recovery sweeps.",
	}, []string{"loop"})
	failure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "recovery_sweep_failure",
		Help: "Failed recovery sweeps.",
	}, []string{"loop"})
	reg.MustRegister(duration, success, failure)
	return &LoopMetrics{
		duration: duration,
		success:  success,
		failure:  failure,
	}
}

// ObserveDuration records the duration for the named loop.
func (l *LoopMetrics) ObserveDuration(loop string, duration time.Duration) {
	if l == nil || l.duration == nil {
		return
	}
	l.duration.WithLabelValues(normalizeLabel(loop)).Observe(duration.Seconds())
}

// IncSuccess increments the success counter for the named loop.
func (l *LoopMetrics) IncSuccess(loop string) {
	if l == nil || l.success == nil {
		return
	}
	l.success.WithLabelValues(normalizeLabel(loop)).Inc()
}

// IncFailure increments the failure counter for the named loop.
func (l *LoopMetrics) IncFailure(loop string) {
	if l == nil || l.failure == nil {
		return
	}
	l.failure.WithLabelValues(normalizeLabel(loop)).Inc()
}

func normalizeLabel(value string) string {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		return "unknown"
	}
	return strings.ReplaceAll(value, " ", "_")
}
