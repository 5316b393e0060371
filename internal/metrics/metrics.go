// Package metrics exposes prometheus counters for the sync layer: API calls,
// poll ticks, replica sizes, cache lookups and stream events.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "emart_admin"

// Poll tick outcomes.
const (
	PollOK      = "ok"
	PollError   = "error"
	PollSkipped = "skipped"
)

type Metrics struct {
	registry *prometheus.Registry

	apiRequests  *prometheus.CounterVec
	apiLatency   *prometheus.HistogramVec
	pollTicks    *prometheus.CounterVec
	replicaSize  *prometheus.GaugeVec
	cacheLookups *prometheus.CounterVec
	streamEvents *prometheus.CounterVec
}

// New registers all collectors on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		apiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Backend API requests by endpoint and status code.",
		}, []string{"endpoint", "status"}),
		apiLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "Backend API request latency.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"endpoint"}),
		pollTicks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "poller",
			Name:      "ticks_total",
			Help:      "Poll ticks by collection and outcome.",
		}, []string{"collection", "result"}),
		replicaSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "poller",
			Name:      "replica_records",
			Help:      "Records held in the local replica.",
		}, []string{"collection"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Cache lookups by cache name and result.",
		}, []string{"cache", "result"}),
		streamEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "received_total",
			Help:      "Server-sent events received by type.",
		}, []string{"type"}),
	}

	m.registry.MustRegister(m.apiRequests, m.apiLatency, m.pollTicks, m.replicaSize, m.cacheLookups, m.streamEvents)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveAPI(endpoint string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.apiRequests.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
	m.apiLatency.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}

func (m *Metrics) PollTick(collection, result string) {
	if m == nil {
		return
	}
	m.pollTicks.WithLabelValues(collection, result).Inc()
}

func (m *Metrics) ReplicaSize(collection string, n int) {
	if m == nil {
		return
	}
	m.replicaSize.WithLabelValues(collection).Set(float64(n))
}

func (m *Metrics) CacheLookup(cache string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(cache, result).Inc()
}

func (m *Metrics) StreamEvent(eventType string) {
	if m == nil {
		return
	}
	m.streamEvents.WithLabelValues(eventType).Inc()
}

// PollTicksCounter returns the tick series for one collection and outcome.
func (m *Metrics) PollTicksCounter(collection, result string) prometheus.Counter {
	return m.pollTicks.WithLabelValues(collection, result)
}

// CacheLookupsCounter returns the lookup series for one cache and result.
func (m *Metrics) CacheLookupsCounter(cache, result string) prometheus.Counter {
	return m.cacheLookups.WithLabelValues(cache, result)
}
