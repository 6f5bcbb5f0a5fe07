package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	if m == nil {
		t.Fatal("NewMetrics returned nil")
	}

	// Verify all metrics are initialized
	if m.KeyOperationsTotal == nil {
		t.Error("KeyOperationsTotal is nil")
	}
	if m.KeysManaged == nil {
		t.Error("KeysManaged is nil")
	}
	if m.UsageFetchTotal == nil {
		t.Error("UsageFetchTotal is nil")
	}
	if m.UsageFetchDuration == nil {
		t.Error("UsageFetchDuration is nil")
	}
	if m.CacheRefreshDuration == nil {
		t.Error("CacheRefreshDuration is nil")
	}
	if m.CacheInvalidations == nil {
		t.Error("CacheInvalidations is nil")
	}
	if m.HTTPRequestsTotal == nil {
		t.Error("HTTPRequestsTotal is nil")
	}
	if m.HTTPRequestDuration == nil {
		t.Error("HTTPRequestDuration is nil")
	}
	if m.HTTPResponseSize == nil {
		t.Error("HTTPResponseSize is nil")
	}
	if m.CircuitBreakerState == nil {
		t.Error("CircuitBreakerState is nil")
	}
	if m.CircuitBreakerTrips == nil {
		t.Error("CircuitBreakerTrips is nil")
	}
}

func TestRecordKeyOperation(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RecordKeyOperation("add", "success")
	m.RecordKeyOperation("add", "success")
	m.RecordKeyOperation("remove", "error")

	addCount := testutil.ToFloat64(m.KeyOperationsTotal.WithLabelValues("add", "success"))
	if addCount != 2 {
		t.Errorf("expected add/success count 2, got %f", addCount)
	}
	removeCount := testutil.ToFloat64(m.KeyOperationsTotal.WithLabelValues("remove", "error"))
	if removeCount != 1 {
		t.Errorf("expected remove/error count 1, got %f", removeCount)
	}
}

func TestSetKeysManaged(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.SetKeysManaged(3)
	if got := testutil.ToFloat64(m.KeysManaged); got != 3 {
		t.Errorf("expected gauge 3, got %f", got)
	}

	m.SetKeysManaged(0)
	if got := testutil.ToFloat64(m.KeysManaged); got != 0 {
		t.Errorf("expected gauge 0, got %f", got)
	}
}

func TestRecordUsageFetch(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RecordUsageFetch("success", 50*time.Millisecond)
	m.RecordUsageFetch("fetch_error", 4*time.Second)

	if got := testutil.ToFloat64(m.UsageFetchTotal.WithLabelValues("success")); got != 1 {
		t.Errorf("expected success count 1, got %f", got)
	}
	if got := testutil.ToFloat64(m.UsageFetchTotal.WithLabelValues("fetch_error")); got != 1 {
		t.Errorf("expected fetch_error count 1, got %f", got)
	}
}

func TestRecordCacheInvalidation(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RecordCacheInvalidation()
	m.RecordCacheInvalidation()

	if got := testutil.ToFloat64(m.CacheInvalidations); got != 2 {
		t.Errorf("expected invalidation count 2, got %f", got)
	}
}

func TestRecordHTTPRequest(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RecordHTTPRequest("POST", "/api/add", "200", 10*time.Millisecond, 64)

	if got := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("POST", "/api/add", "200")); got != 1 {
		t.Errorf("expected request count 1, got %f", got)
	}
}

func TestCircuitBreakerMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.SetCircuitBreakerState("usage-endpoint", 2)
	if got := testutil.ToFloat64(m.CircuitBreakerState.WithLabelValues("usage-endpoint")); got != 2 {
		t.Errorf("expected state 2, got %f", got)
	}

	m.RecordCircuitBreakerTrip("usage-endpoint")
	if got := testutil.ToFloat64(m.CircuitBreakerTrips.WithLabelValues("usage-endpoint")); got != 1 {
		t.Errorf("expected trip count 1, got %f", got)
	}
}

func TestGetMetricsLazyInit(t *testing.T) {
	globalMetrics = nil
	// Avoid duplicate registration against the default registerer
	prometheus.DefaultRegisterer = prometheus.NewRegistry()

	m := GetMetrics()
	if m == nil {
		t.Fatal("GetMetrics returned nil")
	}
	if m != GetMetrics() {
		t.Error("GetMetrics should return the same instance")
	}
}
