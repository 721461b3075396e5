package engine

import (
	"github.com/mohammed-shakir/hugenum/internal/opcache"
	"github.com/mohammed-shakir/hugenum/internal/perf"
	"github.com/mohammed-shakir/hugenum/internal/pool"
	"github.com/mohammed-shakir/hugenum/internal/predict"
	"github.com/mohammed-shakir/hugenum/internal/recovery"
	"github.com/mohammed-shakir/hugenum/internal/tuner"
)

// Stats is a read-only copy of every counter in the engine.
type Stats struct {
	Ops          map[string]perf.OpStats `json:"ops"`
	Overall      perf.OpStats            `json:"overall"`
	SlowWarnings uint64                  `json:"slow_warnings"`
	Extreme      perf.ExtremeStats       `json:"extreme"`
	NeedsOpt     bool                    `json:"needs_optimization"`
	Caches       []opcache.Stats         `json:"caches"`
	CacheBytes   int64                   `json:"cache_bytes"`
	MemoryClears uint64                  `json:"memory_clears"`
	LargeBatches uint64                  `json:"large_batches"`
	Pool         pool.Stats              `json:"pool"`
	Predictive   predict.Stats           `json:"predictive"`
	Recovery     recovery.Stats          `json:"recovery"`
	Tuner        tuner.Stats             `json:"tuner"`
}

func (e *Engine) Stats() Stats {
	return Stats{
		Ops:          e.monitor.Stats(),
		Overall:      e.monitor.Overall(),
		SlowWarnings: e.monitor.Warnings(),
		Extreme:      e.extreme.Stats(),
		NeedsOpt:     e.extreme.NeedsOptimization(),
		Caches:       e.caches.AllStats(),
		CacheBytes:   e.caches.Footprint(),
		MemoryClears: e.caches.MemoryClears(),
		LargeBatches: e.batch.LargeBatches(),
		Pool:         e.pool.Stats(),
		Predictive:   e.predictor.Stats(),
		Recovery:     e.rec.Stats(),
		Tuner:        e.tuner.Stats(),
	}
}

// AllStats returns the statistics of every registered cache.
func (e *Engine) AllStats() []opcache.Stats { return e.caches.AllStats() }

// Snapshot is what the tuner analyzes.
func (e *Engine) Snapshot() tuner.Snapshot {
	return tuner.Snapshot{
		Pool:    e.pool.Stats(),
		Caches:  e.caches.AllStats(),
		Ops:     e.monitor.Overall(),
		Extreme: e.extreme.Stats(),
	}
}

// ClearPools empties the pool and lets the cache manager enforce its limit.
func (e *Engine) ClearPools() {
	e.pool.Clear()
	e.caches.CheckMemory()
}

func (e *Engine) ClearCache(name string) bool { return e.caches.Clear(name) }

// ResetCounters restarts the timing and extreme-value windows.
func (e *Engine) ResetCounters() {
	e.monitor.Reset()
	e.extreme.Reset()
}

var _ tuner.Target = (*Engine)(nil)
