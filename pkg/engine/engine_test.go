package engine

import (
	"testing"
	"time"

	"github.com/mohammed-shakir/hugenum/internal/config"
	"github.com/mohammed-shakir/hugenum/internal/opcache"
	"github.com/mohammed-shakir/hugenum/internal/tuner"
	"github.com/mohammed-shakir/hugenum/pkg/decimal"
)

var t0 = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func newEngine(t *testing.T, mutate func(*config.Config), opts ...Option) *Engine {
	t.Helper()
	cfg := config.Defaults()
	if mutate != nil {
		mutate(&cfg)
	}
	opts = append([]Option{
		WithClock(func() time.Time { return t0 }),
		WithTunerOptions(tuner.WithGCHint(func() {})),
	}, opts...)
	return New(cfg, opts...)
}

func cacheStats(t *testing.T, e *Engine, name string) opcache.Stats {
	t.Helper()
	for _, s := range e.AllStats() {
		if s.Name == name {
			return s
		}
	}
	t.Fatalf("no cache %q", name)
	return opcache.Stats{}
}

func TestArithmetic_Scenarios(t *testing.T) {
	e := newEngine(t, nil)
	if got := e.Add("1e100", "2e100").String(); got != "3e+100" {
		t.Fatalf("1e100+2e100=%s", got)
	}
	if got := e.Mul(decimal.New(3), 4).String(); got != "12" {
		t.Fatalf("3*4=%s", got)
	}
	if got := e.Div(1, 0); !got.IsZero() {
		t.Fatalf("1/0=%s", got)
	}
	if got := e.Sub("1000abc", 1).String(); got != "999" {
		t.Fatalf("recovered operand: %s", got)
	}
	if n := e.Stats().Ops["add"].Count; n != 1 {
		t.Fatalf("add timed %d times", n)
	}
}

func TestCachedOps_OnlyFirstCallMisses(t *testing.T) {
	e := newEngine(t, nil)
	a := e.Pow(2, 10)
	b := e.Pow(decimal.New(2), "10")
	if !a.Eq(b) || a.String() != "1024" {
		t.Fatalf("pow: %s vs %s", a, b)
	}
	s := cacheStats(t, e, CachePow)
	if s.Misses != 1 || s.Hits != 1 {
		t.Fatalf("pow cache=%+v", s)
	}

	e.Sqrt(16)
	if got := e.Sqrt(16).String(); got != "4" {
		t.Fatalf("sqrt=%s", got)
	}
	if s := cacheStats(t, e, CacheSqrt); s.Misses != 1 || s.Hits != 1 {
		t.Fatalf("sqrt cache=%+v", s)
	}
	if got := e.Exp(0).String(); got != "1" {
		t.Fatalf("exp(0)=%s", got)
	}
}

func TestCachedOps_DomainErrorsRecoverToZero(t *testing.T) {
	e := newEngine(t, nil)
	if got := e.Ln(-1); !got.IsZero() {
		t.Fatalf("ln(-1)=%s", got)
	}
	if got := e.Sqrt(-4); !got.IsZero() {
		t.Fatalf("sqrt(-4)=%s", got)
	}
	r := e.Stats().Recovery
	if r.OpFailures != 2 || r.Zeroed != 2 {
		t.Fatalf("recovery=%+v", r)
	}
}

func TestParse_RecoversAndPools(t *testing.T) {
	e := newEngine(t, nil)
	if got := e.Parse("1000abc").String(); got != "1000" {
		t.Fatalf("Parse(1000abc)=%s", got)
	}
	if got := e.Parse("garbage").String(); got != "0" {
		t.Fatalf("Parse(garbage)=%s", got)
	}

	d := decimal.MustParse("1e500")
	if !e.Release(d) {
		t.Fatalf("release dropped")
	}
	if got := e.Parse(d.String()); !got.Eq(d) {
		t.Fatalf("pooled value %s != %s", got, d)
	}
	if p := e.Stats().Pool; p.Hits != 1 || p.Pooled != 0 {
		t.Fatalf("pool=%+v", p)
	}

	e.Release(decimal.New(1000))
	if got := e.Parse("1e3"); got.String() != "1000" {
		t.Fatalf("Parse(1e3)=%s", got)
	}
	if p := e.Stats().Pool; p.Hits != 2 || p.Pooled != 0 {
		t.Fatalf("non-canonical spelling missed the pool: %+v", p)
	}
}

func TestExtremeResultsAreCounted(t *testing.T) {
	e := newEngine(t, nil)
	if got := e.Pow(10, 400).String(); got != "1e+400" {
		t.Fatalf("10^400=%s", got)
	}
	e.Pow(10, 2)
	x := e.Stats().Extreme
	if x.ByOp["pow"] != 1 || x.Observed != 2 {
		t.Fatalf("extreme=%+v", x)
	}
	if !e.Converter().IsExtreme(e.Pow(10, 400)) {
		t.Fatalf("converter disagrees")
	}
}

func TestBatch(t *testing.T) {
	e := newEngine(t, func(c *config.Config) { c.Cache.BatchLargeThreshold = 3 })
	in := []decimal.Decimal{decimal.New(1), decimal.New(2)}
	first := e.BatchPow(in, decimal.New(3))
	second := e.BatchPow(in, decimal.New(3))
	if len(first) != 2 || first[1].String() != "8" || !second[1].Eq(first[1]) {
		t.Fatalf("batch pow: %v %v", first, second)
	}
	if s := cacheStats(t, e, CacheBatch); s.Hits != 1 || s.Misses != 1 {
		t.Fatalf("batch cache=%+v", s)
	}
	second[0] = decimal.New(99)
	if again := e.BatchPow(in, decimal.New(3)); again[0].String() != "1" {
		t.Fatalf("caller mutation leaked into the cache: %v", again)
	}

	e.Release(decimal.New(5))
	out := e.BatchMul([]decimal.Decimal{decimal.New(1), decimal.New(2), decimal.New(3)}, decimal.New(10))
	if out[2].String() != "30" {
		t.Fatalf("batch mul: %v", out)
	}
	s := e.Stats()
	if s.LargeBatches != 1 || s.Pool.Pooled != 0 {
		t.Fatalf("large batch: large=%d pool=%+v", s.LargeBatches, s.Pool)
	}

	neg := e.BatchMap("neg", in, decimal.Decimal.Neg)
	if neg[1].String() != "-2" {
		t.Fatalf("batch map: %v", neg)
	}
	if e.BatchMul(nil, decimal.One()) != nil {
		t.Fatalf("empty batch should be nil")
	}
}

func TestPredictivePreloadDoesNotChangeResults(t *testing.T) {
	run := func(enabled bool) (*Engine, []string) {
		e := newEngine(t, func(c *config.Config) {
			c.Predictive.Enabled = enabled
			c.Predictive.Threshold = 2
		})
		var got []string
		for range 2 {
			got = append(got, e.Pow(2, 3).String(), e.Exp(1).String())
		}
		e.ClearCache(CacheExp)
		got = append(got, e.Pow(2, 3).String(), e.Exp(1).String())
		return e, got
	}

	on, withPred := run(true)
	_, without := run(false)
	if len(withPred) != len(without) {
		t.Fatalf("length mismatch")
	}
	for i := range withPred {
		if withPred[i] != without[i] {
			t.Fatalf("result %d differs: %s vs %s", i, withPred[i], without[i])
		}
	}
	p := on.Stats().Predictive
	if p.Preloads != 1 || p.Useful != 1 {
		t.Fatalf("predictive=%+v", p)
	}
	if s := cacheStats(t, on, CacheExp); s.Hits != 2 {
		t.Fatalf("exp cache=%+v", s)
	}
}

func TestTuner_ClearsOversizedPool(t *testing.T) {
	var got []tuner.Remediation
	e := newEngine(t, func(c *config.Config) {
		c.Tuner.PoolOversize = 2
		c.Tuner.Interval = time.Minute
	}, WithSink(sinkFunc(func(r tuner.Remediation) { got = append(got, r) })))

	for i := range 3 {
		e.Release(decimal.New(float64(i + 1)))
	}
	e.EnableTuning(t0)
	plan, ran := e.Tune(t0.Add(time.Minute))
	if !ran || !plan.Memory || plan.Cache || plan.Performance {
		t.Fatalf("ran=%v plan=%+v", ran, plan)
	}
	if e.Stats().Pool.Pooled != 0 {
		t.Fatalf("pool not cleared")
	}
	if len(got) != 1 || got[0].Action != tuner.ActionClearPools {
		t.Fatalf("remediations=%+v", got)
	}

	e.DisableTuning()
	if _, ran := e.Tune(t0.Add(time.Hour)); ran || e.Tuner().State() != tuner.Disabled {
		t.Fatalf("disabled tuner ran")
	}
}

func TestTuner_DoesNotReclearRecoveredCache(t *testing.T) {
	e := newEngine(t, func(c *config.Config) { c.Tuner.Interval = time.Minute })
	e.EnableTuning(t0)

	for i := range 100 {
		e.Sqrt(float64(i + 1))
	}
	plan, ran := e.Tune(t0.Add(time.Minute))
	if !ran || !plan.Cache || len(plan.SlowCaches) != 1 || plan.SlowCaches[0] != CacheSqrt {
		t.Fatalf("first run: ran=%v plan=%+v", ran, plan)
	}
	if s := cacheStats(t, e, CacheSqrt); s.Len != 0 {
		t.Fatalf("sqrt not cleared: %+v", s)
	}

	// a small working set: 10 misses then 90 hits since the clear
	for range 10 {
		for i := range 10 {
			e.Sqrt(float64(1000 + i))
		}
	}
	plan, ran = e.Tune(t0.Add(2 * time.Minute))
	if !ran || plan.Cache {
		t.Fatalf("second run: ran=%v plan=%+v", ran, plan)
	}
	s := cacheStats(t, e, CacheSqrt)
	if s.Len != 10 || s.RecentHitRate != 0.9 || s.HitRate >= 0.8 {
		t.Fatalf("sqrt=%+v", s)
	}
}

func TestReset(t *testing.T) {
	e := newEngine(t, nil)
	e.Pow(10, 400)
	e.Parse("garbage")
	e.Release(decimal.New(1))
	e.Reset()
	s := e.Stats()
	if len(s.Ops) != 0 || s.Extreme.Extreme != 0 || s.Pool.Pooled != 0 || s.Recovery.ParseFailures != 0 {
		t.Fatalf("reset incomplete: %+v", s)
	}
	for _, c := range s.Caches {
		if c.Len != 0 || c.Requests() != 0 {
			t.Fatalf("cache %s not reset: %+v", c.Name, c)
		}
	}
}

func TestDefaultIsShared(t *testing.T) {
	if Default() != Default() {
		t.Fatalf("Default should return one engine")
	}
}

type sinkFunc func(tuner.Remediation)

func (s sinkFunc) Publish(r tuner.Remediation) { s(r) }
