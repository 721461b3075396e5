// Package engine bundles the decimal caches, pool, monitors, recovery and
// tuner into one context object. Each Engine is independent, so tests build
// their own; Default serves call sites that want a process-wide instance.
//
// An Engine is not safe for concurrent use. Decimals it returns are
// immutable and can be shared freely.
package engine

import (
	"log/slog"
	"sync"
	"time"

	"github.com/mohammed-shakir/hugenum/internal/config"
	"github.com/mohammed-shakir/hugenum/internal/logger"
	"github.com/mohammed-shakir/hugenum/internal/observability"
	"github.com/mohammed-shakir/hugenum/internal/opcache"
	"github.com/mohammed-shakir/hugenum/internal/perf"
	"github.com/mohammed-shakir/hugenum/internal/pool"
	"github.com/mohammed-shakir/hugenum/internal/predict"
	"github.com/mohammed-shakir/hugenum/internal/recovery"
	"github.com/mohammed-shakir/hugenum/internal/tuner"
	"github.com/mohammed-shakir/hugenum/pkg/decimal"
	"github.com/mohammed-shakir/hugenum/pkg/safeconv"
)

// Names of the per-operation caches.
const (
	CachePow   = "pow"
	CacheExp   = "exp"
	CacheLn    = "ln"
	CacheSqrt  = "sqrt"
	CacheBatch = "batch"
)

type Option func(*options)

type options struct {
	log     *slog.Logger
	warn    *slog.Logger
	metrics *observability.Metrics
	sink    tuner.Sink
	now     func() time.Time
	conv    []safeconv.Option
	tunerOp []tuner.Option
}

// WithLogger sets the logger for informational records.
func WithLogger(l *slog.Logger) Option { return func(o *options) { o.log = l } }

// WithWarnLogger sets the rate-limited logger used by recovery and the
// extreme-value monitor. It defaults to the WithLogger logger.
func WithWarnLogger(l *slog.Logger) Option { return func(o *options) { o.warn = l } }

func WithMetrics(m *observability.Metrics) Option { return func(o *options) { o.metrics = m } }

// WithSink forwards tuner remediations to s.
func WithSink(s tuner.Sink) Option { return func(o *options) { o.sink = s } }

// WithClock replaces time.Now for cache bookkeeping and predictive decay.
func WithClock(now func() time.Time) Option { return func(o *options) { o.now = now } }

func WithConverterOptions(opts ...safeconv.Option) Option {
	return func(o *options) { o.conv = append(o.conv, opts...) }
}

func WithTunerOptions(opts ...tuner.Option) Option {
	return func(o *options) { o.tunerOp = append(o.tunerOp, opts...) }
}

type Engine struct {
	cfg config.Config
	log *slog.Logger

	rec  *recovery.Recoverer
	conv *safeconv.Converter
	pool *pool.Pool

	pow, exp, ln, sqrt *opcache.Adaptive[decimal.Decimal]
	batch              *opcache.Batch
	caches             *opcache.Manager
	predictor          *predict.Predictor

	monitor *perf.Monitor
	extreme *perf.ExtremeMonitor
	tuner   *tuner.Tuner
}

// New builds an engine from cfg. The tuner starts disabled; EnableTuning
// arms it when cfg.Tuner.Enabled is what the caller wants.
func New(cfg config.Config, opts ...Option) *Engine {
	o := options{now: time.Now}
	for _, fn := range opts {
		fn(&o)
	}
	o.log = logger.OrNop(o.log)
	if o.warn == nil {
		o.warn = o.log
	}

	e := &Engine{cfg: cfg, log: o.log}
	e.rec = recovery.New(o.warn, o.metrics)
	e.conv = safeconv.New(e.rec, o.conv...)
	e.pool = pool.New(pool.Config{MaxPerKey: cfg.Pool.MaxPerKey, MaxTotal: cfg.Pool.MaxTotal}, o.metrics)
	e.caches = opcache.NewManager(cfg.Cache.MemoryLimit, o.log)

	release := func(d decimal.Decimal) { e.pool.Put(d) }
	newCache := func(name string) *opcache.Adaptive[decimal.Decimal] {
		c := opcache.NewAdaptive(cacheConfig(name, cfg.Cache),
			opcache.WithEvict(release),
			opcache.WithSizeOf(func(decimal.Decimal) int { return 32 }),
			opcache.WithMetrics[decimal.Decimal](o.metrics),
			opcache.WithClock[decimal.Decimal](o.now),
		)
		// names are distinct constants
		_ = e.caches.Register(c)
		return c
	}
	e.pow = newCache(CachePow)
	e.exp = newCache(CacheExp)
	e.ln = newCache(CacheLn)
	e.sqrt = newCache(CacheSqrt)

	e.batch = opcache.NewBatch(opcache.BatchConfig{
		Cache:          cacheConfig(CacheBatch, cfg.Cache),
		LargeThreshold: cfg.Cache.BatchLargeThreshold,
		OnLarge:        e.afterLargeBatch,
	},
		opcache.WithMetrics[[]decimal.Decimal](o.metrics),
		opcache.WithClock[[]decimal.Decimal](o.now),
	)
	_ = e.caches.Register(e.batch)

	e.predictor = predict.New(predict.Config{
		Enabled:   cfg.Predictive.Enabled,
		Threshold: cfg.Predictive.Threshold,
		HalfLife:  cfg.Predictive.HalfLife,
		MaxKeys:   cfg.Predictive.MaxKeys,
		Clock:     o.now,
	}, o.metrics)

	e.monitor = perf.NewMonitor(cfg.Monitor.SlowOpThreshold, o.warn, o.metrics)
	e.extreme = perf.NewExtremeMonitor(cfg.Monitor.ExtremeWarnAfter, cfg.Monitor.ExtremeOptimizeAfter, o.warn, o.metrics)

	topts := []tuner.Option{tuner.WithLogger(o.log), tuner.WithMetrics(o.metrics)}
	if o.sink != nil {
		topts = append(topts, tuner.WithSink(o.sink))
	}
	e.tuner = tuner.New(tuner.Config{
		Enabled:  cfg.Tuner.Enabled,
		Interval: cfg.Tuner.Interval,
		Thresholds: tuner.Thresholds{
			MaxOpTime:     cfg.Tuner.MaxOpTime,
			TargetHitRate: cfg.Tuner.TargetHitRate,
			ExtremeRatio:  cfg.Tuner.ExtremeRatio,
			PoolOversize:  cfg.Tuner.PoolOversize,
		},
	}, e, append(topts, o.tunerOp...)...)
	return e
}

func cacheConfig(name string, c config.CacheCfg) opcache.Config {
	return opcache.Config{
		Name:          name,
		Initial:       c.InitialSize,
		Min:           c.MinSize,
		Max:           c.MaxSize,
		EvalEvery:     c.EvalEvery,
		TargetHitRate: c.TargetHitRate,
	}
}

var defaultEngine = sync.OnceValue(func() *Engine { return New(config.Defaults()) })

// Default returns the process-wide engine built from config.Defaults.
func Default() *Engine { return defaultEngine() }

func (e *Engine) Config() config.Config { return e.cfg }

// Converter is the safe conversion boundary bound to this engine's recovery.
func (e *Engine) Converter() *safeconv.Converter { return e.conv }

func (e *Engine) Recoverer() *recovery.Recoverer { return e.rec }

func (e *Engine) Caches() *opcache.Manager { return e.caches }

func (e *Engine) Predictor() *predict.Predictor { return e.predictor }

func (e *Engine) Tuner() *tuner.Tuner { return e.tuner }

// EnableTuning arms the tuner with its first analysis one interval after now.
func (e *Engine) EnableTuning(now time.Time) { e.tuner.Enable(now) }

// DisableTuning stops the tuner immediately.
func (e *Engine) DisableTuning() { e.tuner.Disable() }

// Tune gives the tuner a chance to run and reports whether it did.
func (e *Engine) Tune(now time.Time) (tuner.Plan, bool) { return e.tuner.Poll(now) }

// Reset returns every cache, pool, monitor and counter to its initial
// state. The tuner keeps its enabled state and schedule.
func (e *Engine) Reset() {
	e.caches.Reset()
	e.pool.Reset()
	e.predictor.Reset()
	e.monitor.Reset()
	e.extreme.Reset()
	e.rec.Reset()
	e.tuner.Reset()
}

func (e *Engine) afterLargeBatch(n int) {
	e.pool.Clear()
	if e.caches.CheckMemory() {
		e.log.Info("large batch freed cache memory", slog.Int("inputs", n))
	}
}
