package provider

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics records completion attempts. A nil *Metrics records nothing.
type Metrics struct {
	attempts *prometheus.CounterVec
	retries  *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics creates the completion collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		attempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tmcore_completion_attempts_total",
				Help: "Total number of completion attempts by outcome.",
			},
			[]string{"provider", "outcome"},
		),
		retries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tmcore_completion_retries_total",
				Help: "Total number of completion retries by failure class.",
			},
			[]string{"provider", "class"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tmcore_completion_attempt_duration_seconds",
				Help:    "Completion attempt latency in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"provider"},
		),
	}
}

func (m *Metrics) observeAttempt(provider string, class Class, d time.Duration) {
	if m == nil {
		return
	}
	outcome := "success"
	if class != ClassNone {
		outcome = string(class)
	}
	m.attempts.WithLabelValues(provider, outcome).Inc()
	m.duration.WithLabelValues(provider).Observe(d.Seconds())
}

func (m *Metrics) observeRetry(provider string, class Class) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(provider, string(class)).Inc()
}
