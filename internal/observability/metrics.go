// Package observability exposes Prometheus metrics for the gateway.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the gateway's Prometheus collectors. A nil *Metrics is
// valid and turns every method into a no-op, so callers never branch.
type Metrics struct {
	requestsTotal   *prometheus.CounterVec
	cacheHitsTotal  *prometheus.CounterVec
	providerCalls   *prometheus.CounterVec
	rateLimited     *prometheus.CounterVec
	providerLatency *prometheus.HistogramVec
	costTotal       *prometheus.CounterVec
}

// New creates the collectors and registers them on the registry.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cartai",
			Name:      "requests_total",
			Help:      "Chat requests by task type and outcome.",
		}, []string{"task", "outcome"}),
		cacheHitsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cartai",
			Name:      "cache_hits_total",
			Help:      "Cache hits by task type.",
		}, []string{"task"}),
		providerCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cartai",
			Name:      "provider_calls_total",
			Help:      "Provider attempts by provider and status.",
		}, []string{"provider", "status"}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cartai",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter, by reason.",
		}, []string{"reason"}),
		providerLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "cartai",
			Name:      "provider_latency_seconds",
			Help:      "Provider call latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider"}),
		costTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cartai",
			Name:      "cost_usd_total",
			Help:      "Accumulated provider spend in USD.",
		}, []string{"provider", "model"}),
	}
	reg.MustRegister(
		m.requestsTotal,
		m.cacheHitsTotal,
		m.providerCalls,
		m.rateLimited,
		m.providerLatency,
		m.costTotal,
	)
	return m
}

// Request outcomes.
const (
	OutcomeOK          = "ok"
	OutcomeCached      = "cached"
	OutcomeRateLimited = "rate_limited"
	OutcomeExhausted   = "exhausted"
)

func (m *Metrics) ObserveRequest(task, outcome string) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(task, outcome).Inc()
}

func (m *Metrics) ObserveCacheHit(task string) {
	if m == nil {
		return
	}
	m.cacheHitsTotal.WithLabelValues(task).Inc()
}

func (m *Metrics) ObserveProviderCall(provider, status string, seconds float64) {
	if m == nil {
		return
	}
	m.providerCalls.WithLabelValues(provider, status).Inc()
	m.providerLatency.WithLabelValues(provider).Observe(seconds)
}

func (m *Metrics) ObserveRateLimited(reason string) {
	if m == nil {
		return
	}
	m.rateLimited.WithLabelValues(reason).Inc()
}

func (m *Metrics) ObserveCost(provider, model string, usd float64) {
	if m == nil || usd <= 0 {
		return
	}
	m.costTotal.WithLabelValues(provider, model).Add(usd)
}
