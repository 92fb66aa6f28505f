package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the API
	Registry = prometheus.NewRegistry()
	// HTTPRequests counts requests by method, route pattern, and status
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	// HTTPDuration records request durations in seconds
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)

	// LocationLookups counts location cache lookups by outcome:
	// hit, miss, or refresh.
	LocationLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "location_cache_lookups_total", Help: "Location cache lookups by outcome."},
		[]string{"outcome"},
	)
	// GeocodeRequests counts calls to the external geocoder by result:
	// found, no_match, or error.
	GeocodeRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "geocode_requests_total", Help: "External geocoder calls by result."},
		[]string{"result"},
	)
	// GeocodeLatency tracks geocoder round trips in seconds
	GeocodeLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "geocode_request_duration_seconds", Help: "External geocoder latency in seconds.", Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5}},
	)
	// WebhookDeliveries counts webhook attempts by result:
	// delivered, retry, or failed.
	WebhookDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "webhook_deliveries_total", Help: "Order event webhook attempts by result."},
		[]string{"result"},
	)
	// Assignments counts computed assignment results by kind
	Assignments = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "order_assignments_total", Help: "Order assignment results by kind."},
		[]string{"kind"},
	)
)

// RegisterDefault registers collectors to the dedicated registry.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests)
		Registry.MustRegister(HTTPDuration)
		Registry.MustRegister(LocationLookups)
		Registry.MustRegister(GeocodeRequests)
		Registry.MustRegister(GeocodeLatency)
		Registry.MustRegister(Assignments)
		Registry.MustRegister(WebhookDeliveries)
		// Go/process collectors on our registry
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

var regOnce sync.Once
