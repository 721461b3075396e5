// Package observability holds the Prometheus metric sets of the engine and
// its telemetry server.
package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is the per-engine metric set. A nil *Metrics is valid and records
// nothing, so components can be built without telemetry.
type Metrics struct {
	ops         *prometheus.CounterVec
	opSeconds   *prometheus.HistogramVec
	slowOps     *prometheus.CounterVec
	extreme     *prometheus.CounterVec
	cacheReqs   *prometheus.CounterVec
	cacheCap    *prometheus.GaugeVec
	poolReqs    *prometheus.CounterVec
	pooled      prometheus.Gauge
	recoveries  *prometheus.CounterVec
	remediation *prometheus.CounterVec
	tunerState  prometheus.Gauge
	preloads    *prometheus.CounterVec
}

// New builds the metric set and registers it with r when r is non-nil.
// Engines created for tests pass nil and still get working collectors.
func New(r prometheus.Registerer) *Metrics {
	m := &Metrics{
		ops: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hugenum_ops_total",
				Help: "Timed engine operations by name.",
			},
			[]string{"op"},
		),
		opSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hugenum_op_duration_seconds",
				Help:    "Duration of timed engine operations.",
				Buckets: prometheus.ExponentialBuckets(0.000001, 4, 12), // 1µs to ~4s
			},
			[]string{"op"},
		),
		slowOps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hugenum_slow_ops_total",
				Help: "Operations slower than the slow-operation threshold.",
			},
			[]string{"op"},
		),
		extreme: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hugenum_extreme_results_total",
				Help: "Results at or above the extreme-value threshold.",
			},
			[]string{"op"},
		),
		cacheReqs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hugenum_cache_requests_total",
				Help: "Operation cache lookups by cache and result.",
			},
			[]string{"cache", "result"},
		),
		cacheCap: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "hugenum_cache_capacity",
				Help: "Current adaptive capacity of each operation cache.",
			},
			[]string{"cache"},
		),
		poolReqs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hugenum_pool_requests_total",
				Help: "Memory pool lookups by result.",
			},
			[]string{"result"},
		),
		pooled: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "hugenum_pool_values",
				Help: "Values currently held by the memory pool.",
			},
		),
		recoveries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hugenum_recoveries_total",
				Help: "Recovered failures by kind.",
			},
			[]string{"kind"},
		),
		remediation: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hugenum_tuner_remediations_total",
				Help: "Remediations applied by the performance tuner.",
			},
			[]string{"action"},
		),
		tunerState: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "hugenum_tuner_state",
				Help: "Tuner state: 0 disabled, 1 idle, 2 analyzing, 3 applying.",
			},
		),
		preloads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hugenum_predict_preloads_total",
				Help: "Predictive cache preloads by outcome.",
			},
			[]string{"outcome"},
		),
	}
	if r != nil {
		r.MustRegister(m.ops, m.opSeconds, m.slowOps, m.extreme, m.cacheReqs, m.cacheCap,
			m.poolReqs, m.pooled, m.recoveries, m.remediation, m.tunerState, m.preloads)
	}
	return m
}

func (m *Metrics) ObserveOp(op string, d time.Duration, slow bool) {
	if m == nil {
		return
	}
	m.ops.WithLabelValues(op).Inc()
	m.opSeconds.WithLabelValues(op).Observe(d.Seconds())
	if slow {
		m.slowOps.WithLabelValues(op).Inc()
	}
}

func (m *Metrics) IncExtreme(op string) {
	if m == nil {
		return
	}
	m.extreme.WithLabelValues(op).Inc()
}

func (m *Metrics) ObserveCache(cache string, hit bool) {
	if m == nil {
		return
	}
	m.cacheReqs.WithLabelValues(cache, result(hit)).Inc()
}

func (m *Metrics) SetCacheCapacity(cache string, n int) {
	if m == nil {
		return
	}
	m.cacheCap.WithLabelValues(cache).Set(float64(n))
}

func (m *Metrics) ObservePool(hit bool) {
	if m == nil {
		return
	}
	m.poolReqs.WithLabelValues(result(hit)).Inc()
}

func (m *Metrics) SetPooled(n int) {
	if m == nil {
		return
	}
	m.pooled.Set(float64(n))
}

func (m *Metrics) IncRecovery(kind string) {
	if m == nil {
		return
	}
	m.recoveries.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncRemediation(action string) {
	if m == nil {
		return
	}
	m.remediation.WithLabelValues(action).Inc()
}

func (m *Metrics) SetTunerState(state int) {
	if m == nil {
		return
	}
	m.tunerState.Set(float64(state))
}

func (m *Metrics) ObservePreload(useful bool) {
	if m == nil {
		return
	}
	outcome := "wasted"
	if useful {
		outcome = "useful"
	}
	m.preloads.WithLabelValues(outcome).Inc()
}

func result(hit bool) string {
	if hit {
		return "hit"
	}
	return "miss"
}

// HTTPMetrics instruments the telemetry server.
type HTTPMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func NewHTTP(r prometheus.Registerer) *HTTPMetrics {
	h := &HTTPMetrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests.",
			},
			[]string{"method", "route", "status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds.",
				Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
			},
			[]string{"method", "route", "status"},
		),
	}
	if r != nil {
		r.MustRegister(h.requests, h.duration)
	}
	return h
}

func (h *HTTPMetrics) Observe(method, route string, status int, d time.Duration) {
	if h == nil {
		return
	}
	st := strconv.Itoa(status)
	h.requests.WithLabelValues(method, route, st).Inc()
	h.duration.WithLabelValues(method, route, st).Observe(d.Seconds())
}

// IOMetrics instruments the value store and the tuning event publisher.
type IOMetrics struct {
	storeOps     *prometheus.CounterVec
	storeSeconds *prometheus.HistogramVec
	events       *prometheus.CounterVec
}

func NewIO(r prometheus.Registerer) *IOMetrics {
	m := &IOMetrics{
		storeOps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hugenum_store_op_total",
				Help: "Value store operations by op and result.",
			},
			[]string{"op", "result"},
		),
		storeSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hugenum_store_op_duration_seconds",
				Help:    "Latency of value store operations.",
				Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
			},
			[]string{"op"},
		),
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hugenum_tuning_events_total",
				Help: "Tuning events by outcome.",
			},
			[]string{"outcome"},
		),
	}
	if r != nil {
		r.MustRegister(m.storeOps, m.storeSeconds, m.events)
	}
	return m
}

func (m *IOMetrics) ObserveStoreOp(op string, err error, d time.Duration) {
	if m == nil {
		return
	}
	res := "ok"
	if err != nil {
		res = "error"
	}
	m.storeOps.WithLabelValues(op, res).Inc()
	m.storeSeconds.WithLabelValues(op).Observe(d.Seconds())
}

// IncEvent counts a tuning event as "sent", "dropped" or "failed".
func (m *IOMetrics) IncEvent(outcome string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(outcome).Inc()
}
