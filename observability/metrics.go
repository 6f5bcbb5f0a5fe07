package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	// Key store metrics
	KeyOperationsTotal *prometheus.CounterVec
	KeysManaged        prometheus.Gauge

	// Usage fetch metrics
	UsageFetchTotal    *prometheus.CounterVec
	UsageFetchDuration *prometheus.HistogramVec

	// Cache metrics
	CacheRefreshDuration prometheus.Histogram
	CacheInvalidations   prometheus.Counter

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Circuit breaker metrics
	CircuitBreakerState *prometheus.GaugeVec
	CircuitBreakerTrips *prometheus.CounterVec
}

// defaultBuckets are the default histogram buckets for duration metrics (in seconds)
var defaultBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30}

// globalMetrics is the global metrics instance
var globalMetrics *Metrics

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	factory := promauto.With(reg)

	m := &Metrics{
		KeyOperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "droidkey",
				Subsystem: "keys",
				Name:      "operations_total",
				Help:      "Total number of key store operations by type and outcome",
			},
			[]string{"operation", "status"},
		),
		KeysManaged: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "droidkey",
				Subsystem: "keys",
				Name:      "managed",
				Help:      "Number of keys currently held in the store",
			},
		),
		UsageFetchTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "droidkey",
				Subsystem: "usage",
				Name:      "fetch_total",
				Help:      "Total number of usage endpoint fetches by outcome",
			},
			[]string{"outcome"},
		),
		UsageFetchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "droidkey",
				Subsystem: "usage",
				Name:      "fetch_duration_seconds",
				Help:      "Duration of usage endpoint fetches in seconds",
				Buckets:   defaultBuckets,
			},
			[]string{"outcome"},
		),
		CacheRefreshDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "droidkey",
				Subsystem: "cache",
				Name:      "refresh_duration_seconds",
				Help:      "Duration of full usage cache refreshes in seconds",
				Buckets:   defaultBuckets,
			},
		),
		CacheInvalidations: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "droidkey",
				Subsystem: "cache",
				Name:      "invalidations_total",
				Help:      "Total number of usage cache invalidations",
			},
		),
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "droidkey",
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status_code"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "droidkey",
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Duration of HTTP requests in seconds",
				Buckets:   defaultBuckets,
			},
			[]string{"method", "path"},
		),
		HTTPResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "droidkey",
				Subsystem: "http",
				Name:      "response_size_bytes",
				Help:      "Size of HTTP responses in bytes",
				Buckets:   prometheus.ExponentialBuckets(100, 10, 6),
			},
			[]string{"method", "path"},
		),
		CircuitBreakerState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "droidkey",
				Subsystem: "circuit_breaker",
				Name:      "state",
				Help:      "Current circuit breaker state (0=closed, 1=half-open, 2=open)",
			},
			[]string{"service"},
		),
		CircuitBreakerTrips: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "droidkey",
				Subsystem: "circuit_breaker",
				Name:      "trips_total",
				Help:      "Total number of circuit breaker trips",
			},
			[]string{"service"},
		),
	}

	return m
}

// InitMetrics initializes the global metrics instance
func InitMetrics() *Metrics {
	globalMetrics = NewMetrics(nil)
	return globalMetrics
}

// GetMetrics returns the global metrics instance
func GetMetrics() *Metrics {
	if globalMetrics == nil {
		return InitMetrics()
	}
	return globalMetrics
}

// RecordKeyOperation records a key store operation
func (m *Metrics) RecordKeyOperation(operation, status string) {
	m.KeyOperationsTotal.WithLabelValues(operation, status).Inc()
}

// SetKeysManaged records the current key count
func (m *Metrics) SetKeysManaged(n int) {
	m.KeysManaged.Set(float64(n))
}

// RecordUsageFetch records a usage endpoint fetch
func (m *Metrics) RecordUsageFetch(outcome string, duration time.Duration) {
	m.UsageFetchTotal.WithLabelValues(outcome).Inc()
	m.UsageFetchDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// RecordCacheRefresh records the duration of a full cache refresh
func (m *Metrics) RecordCacheRefresh(duration time.Duration) {
	m.CacheRefreshDuration.Observe(duration.Seconds())
}

// RecordCacheInvalidation records a cache invalidation
func (m *Metrics) RecordCacheInvalidation() {
	m.CacheInvalidations.Inc()
}

// RecordHTTPRequest records HTTP request metrics
func (m *Metrics) RecordHTTPRequest(method, path, statusCode string, duration time.Duration, responseSize int) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.HTTPResponseSize.WithLabelValues(method, path).Observe(float64(responseSize))
}

// SetCircuitBreakerState records the current circuit breaker state
func (m *Metrics) SetCircuitBreakerState(service string, state int) {
	m.CircuitBreakerState.WithLabelValues(service).Set(float64(state))
}

// RecordCircuitBreakerTrip records a circuit breaker trip
func (m *Metrics) RecordCircuitBreakerTrip(service string) {
	m.CircuitBreakerTrips.WithLabelValues(service).Inc()
}
