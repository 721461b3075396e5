// Package perf records operation timings and how often results are extreme.
// Both monitors are read by the tuner and exposed as read-only snapshots.
package perf

import (
	"context"
	"log/slog"
	"time"

	"github.com/mohammed-shakir/hugenum/internal/logger"
	"github.com/mohammed-shakir/hugenum/internal/observability"
)

const DefaultSlowThreshold = 100 * time.Millisecond

type OpStats struct {
	Count uint64        `json:"count"`
	Total time.Duration `json:"total_ns"`
	Avg   time.Duration `json:"avg_ns"`
	Min   time.Duration `json:"min_ns"`
	Max   time.Duration `json:"max_ns"`
	Slow  uint64        `json:"slow"`
}

func (s *OpStats) add(d time.Duration, slow bool) {
	if s.Count == 0 || d < s.Min {
		s.Min = d
	}
	if d > s.Max {
		s.Max = d
	}
	s.Count++
	s.Total += d
	s.Avg = s.Total / time.Duration(s.Count)
	if slow {
		s.Slow++
	}
}

// Monitor times every call it wraps. It is not safe for concurrent use.
type Monitor struct {
	slow     time.Duration
	ops      map[string]*OpStats
	warnings uint64
	now      func() time.Time
	log      *slog.Logger
	metrics  *observability.Metrics
}

func NewMonitor(slow time.Duration, log *slog.Logger, m *observability.Metrics) *Monitor {
	if slow <= 0 {
		slow = DefaultSlowThreshold
	}
	return &Monitor{
		slow:    slow,
		ops:     make(map[string]*OpStats),
		now:     time.Now,
		log:     logger.OrNop(log),
		metrics: m,
	}
}

// Time runs fn and records its duration under name.
func (m *Monitor) Time(name string, fn func()) {
	start := m.now()
	fn()
	m.Record(name, m.now().Sub(start))
}

// TimeValue is Time for functions with a result.
func TimeValue[T any](m *Monitor, name string, fn func() T) T {
	start := m.now()
	v := fn()
	m.Record(name, m.now().Sub(start))
	return v
}

// Record adds one sample and logs a warning when it is slow.
func (m *Monitor) Record(name string, d time.Duration) {
	s := m.ops[name]
	if s == nil {
		s = &OpStats{}
		m.ops[name] = s
	}
	slow := d > m.slow
	s.add(d, slow)
	m.metrics.ObserveOp(name, d, slow)
	if slow {
		m.warnings++
		m.log.LogAttrs(context.Background(), slog.LevelWarn, "slow operation",
			slog.String("op", name),
			slog.Duration("duration", d),
			slog.Duration("threshold", m.slow),
		)
	}
}

// Stats returns a copy of the per-operation aggregates.
func (m *Monitor) Stats() map[string]OpStats {
	out := make(map[string]OpStats, len(m.ops))
	for k, v := range m.ops {
		out[k] = *v
	}
	return out
}

// Overall aggregates every operation into one sample set.
func (m *Monitor) Overall() OpStats {
	var all OpStats
	for _, s := range m.ops {
		if s.Count == 0 {
			continue
		}
		if all.Count == 0 || s.Min < all.Min {
			all.Min = s.Min
		}
		all.Max = max(all.Max, s.Max)
		all.Count += s.Count
		all.Total += s.Total
		all.Slow += s.Slow
	}
	if all.Count > 0 {
		all.Avg = all.Total / time.Duration(all.Count)
	}
	return all
}

func (m *Monitor) SlowThreshold() time.Duration { return m.slow }

// Warnings counts slow-operation warnings since the last reset.
func (m *Monitor) Warnings() uint64 { return m.warnings }

func (m *Monitor) Reset() {
	clear(m.ops)
	m.warnings = 0
}

// Ops lists the operation names seen so far.
func (m *Monitor) Ops() []string {
	out := make([]string, 0, len(m.ops))
	for k := range m.ops {
		out = append(out, k)
	}
	return out
}
