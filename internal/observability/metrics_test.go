package observability

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_RegisteredAndScraped(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveOp("pow", 2*time.Millisecond, false)
	m.ObserveOp("pow", 150*time.Millisecond, true)
	m.IncExtreme("pow")
	m.ObserveCache("pow", true)
	m.ObserveCache("pow", false)
	m.ObserveCache("pow", false)
	m.SetCacheCapacity("pow", 256)
	m.ObservePool(true)
	m.SetPooled(7)
	m.IncRecovery("parse")
	m.IncRemediation("clear_pools")
	m.SetTunerState(1)
	m.ObservePreload(true)

	if got := testutil.ToFloat64(m.ops.WithLabelValues("pow")); got != 2 {
		t.Fatalf("ops=%v want 2", got)
	}
	if got := testutil.ToFloat64(m.slowOps.WithLabelValues("pow")); got != 1 {
		t.Fatalf("slow=%v want 1", got)
	}
	if got := testutil.ToFloat64(m.cacheReqs.WithLabelValues("pow", "miss")); got != 2 {
		t.Fatalf("misses=%v want 2", got)
	}
	if got := testutil.ToFloat64(m.cacheCap.WithLabelValues("pow")); got != 256 {
		t.Fatalf("capacity=%v want 256", got)
	}
	if got := testutil.ToFloat64(m.pooled); got != 7 {
		t.Fatalf("pooled=%v want 7", got)
	}

	rr := httptest.NewRecorder()
	promhttp.HandlerFor(reg, promhttp.HandlerOpts{}).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rr.Body.String()
	for _, name := range []string{
		"hugenum_ops_total", "hugenum_op_duration_seconds", "hugenum_extreme_results_total",
		"hugenum_recoveries_total", "hugenum_tuner_remediations_total", "hugenum_predict_preloads_total",
	} {
		if !strings.Contains(body, name) {
			t.Fatalf("scrape missing %s:\n%s", name, body)
		}
	}
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveOp("exp", time.Second, true)
	m.IncExtreme("exp")
	m.ObserveCache("exp", true)
	m.SetCacheCapacity("exp", 1)
	m.ObservePool(false)
	m.SetPooled(1)
	m.IncRecovery("retry")
	m.IncRemediation("reset_counters")
	m.SetTunerState(0)
	m.ObservePreload(false)

	var h *HTTPMetrics
	h.Observe("GET", "/stats", 200, time.Millisecond)
}

func TestHTTPMetrics_Observe(t *testing.T) {
	reg := prometheus.NewRegistry()
	h := NewHTTP(reg)
	h.Observe("GET", "/stats", 200, time.Millisecond)
	h.Observe("GET", "/stats", 200, time.Millisecond)
	if got := testutil.ToFloat64(h.requests.WithLabelValues("GET", "/stats", "200")); got != 2 {
		t.Fatalf("requests=%v want 2", got)
	}
}

func TestIOMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewIO(reg)
	m.ObserveStoreOp("set", nil, time.Millisecond)
	m.ObserveStoreOp("set", errors.New("boom"), time.Millisecond)
	m.IncEvent("sent")
	m.IncEvent("dropped")
	m.IncEvent("dropped")

	if got := testutil.ToFloat64(m.storeOps.WithLabelValues("set", "error")); got != 1 {
		t.Fatalf("store errors=%v", got)
	}
	if got := testutil.ToFloat64(m.events.WithLabelValues("dropped")); got != 2 {
		t.Fatalf("dropped=%v", got)
	}

	var nilIO *IOMetrics
	nilIO.ObserveStoreOp("get", nil, 0)
	nilIO.IncEvent("sent")
}
