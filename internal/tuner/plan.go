package tuner

import (
	"time"

	"github.com/mohammed-shakir/hugenum/internal/opcache"
	"github.com/mohammed-shakir/hugenum/internal/perf"
	"github.com/mohammed-shakir/hugenum/internal/pool"
)

type Reason string

const (
	ReasonPoolOversized Reason = "pool_oversized"
	ReasonLowHitRate    Reason = "low_hit_rate"
	ReasonSlowOps       Reason = "slow_operations"
	ReasonExtremeRatio  Reason = "extreme_ratio"
)

type Action string

const (
	ActionClearPools    Action = "clear_pools"
	ActionClearCaches   Action = "clear_caches"
	ActionResetCounters Action = "reset_counters"
)

// Thresholds are the limits the tuner compares a snapshot against.
type Thresholds struct {
	MaxOpTime     time.Duration
	TargetHitRate float64
	ExtremeRatio  float64
	PoolOversize  int
	// MinCacheRequests keeps caches that have barely been used from being
	// judged on their hit rate.
	MinCacheRequests uint64
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		MaxOpTime:        10 * time.Millisecond,
		TargetHitRate:    0.8,
		ExtremeRatio:     0.5,
		PoolOversize:     5000,
		MinCacheRequests: 100,
	}
}

func (t Thresholds) withDefaults() Thresholds {
	d := DefaultThresholds()
	if t.MaxOpTime <= 0 {
		t.MaxOpTime = d.MaxOpTime
	}
	if t.TargetHitRate <= 0 {
		t.TargetHitRate = d.TargetHitRate
	}
	if t.ExtremeRatio <= 0 {
		t.ExtremeRatio = d.ExtremeRatio
	}
	if t.PoolOversize <= 0 {
		t.PoolOversize = d.PoolOversize
	}
	if t.MinCacheRequests == 0 {
		t.MinCacheRequests = d.MinCacheRequests
	}
	return t
}

// Snapshot is the statistics the tuner reads in one pass.
type Snapshot struct {
	Pool    pool.Stats
	Caches  []opcache.Stats
	Ops     perf.OpStats
	Extreme perf.ExtremeStats
}

// Plan holds the three independent conditions of one analysis.
type Plan struct {
	Memory      bool
	Cache       bool
	Performance bool
	// SlowCaches names the caches whose hit rate is below target.
	SlowCaches []string
	Reasons    []Reason
}

func (p Plan) Empty() bool { return !p.Memory && !p.Cache && !p.Performance }

// Analyze classifies s against t. It has no side effects.
func Analyze(s Snapshot, t Thresholds) Plan {
	t = t.withDefaults()
	var p Plan
	if s.Pool.Pooled > t.PoolOversize {
		p.Memory = true
		p.Reasons = append(p.Reasons, ReasonPoolOversized)
	}
	for _, c := range s.Caches {
		if c.RecentRequests() >= t.MinCacheRequests && c.RecentHitRate < t.TargetHitRate {
			p.SlowCaches = append(p.SlowCaches, c.Name)
		}
	}
	if len(p.SlowCaches) > 0 {
		p.Cache = true
		p.Reasons = append(p.Reasons, ReasonLowHitRate)
	}
	if s.Ops.Count > 0 && s.Ops.Avg > t.MaxOpTime {
		p.Performance = true
		p.Reasons = append(p.Reasons, ReasonSlowOps)
	}
	if s.Extreme.Observed > 0 && s.Extreme.Ratio > t.ExtremeRatio {
		p.Performance = true
		p.Reasons = append(p.Reasons, ReasonExtremeRatio)
	}
	return p
}
