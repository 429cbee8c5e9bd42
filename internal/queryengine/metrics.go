package queryengine

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// metricsRegistry holds the counters/gauges exposed at GET /metrics:
// request counts by method, cache hit/miss counters, and an in-flight
// gauge.
type metricsRegistry struct {
	registry *prometheus.Registry

	requestsTotal *prometheus.CounterVec
	cacheHits     prometheus.Counter
	cacheMisses   prometheus.Counter
	inFlight      prometheus.Gauge
}

func newMetricsRegistry() *metricsRegistry {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &metricsRegistry{
		registry: reg,
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ada_queryengine_requests_total",
			Help: "Number of RPC requests handled, by method.",
		}, []string{"method"}),
		cacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "ada_queryengine_cache_hits_total",
			Help: "Number of trace.info requests served from the LRU cache.",
		}),
		cacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "ada_queryengine_cache_misses_total",
			Help: "Number of trace.info requests that required a fresh compute.",
		}),
		inFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ada_queryengine_requests_in_flight",
			Help: "Number of RPC requests currently being handled.",
		}),
	}
}

func (m *metricsRegistry) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
