package perf

import (
	"context"
	"log/slog"

	"github.com/mohammed-shakir/hugenum/internal/logger"
	"github.com/mohammed-shakir/hugenum/internal/observability"
	"github.com/mohammed-shakir/hugenum/pkg/decimal"
	"github.com/mohammed-shakir/hugenum/pkg/safeconv"
)

const (
	DefaultWarnAfter     = 100
	DefaultOptimizeAfter = 50
)

type ExtremeStats struct {
	Observed uint64            `json:"observed"`
	Extreme  uint64            `json:"extreme"`
	Ratio    float64           `json:"ratio"`
	ByOp     map[string]uint64 `json:"by_op"`
	Warnings uint64            `json:"warnings"`
}

// ExtremeMonitor counts results at or above safeconv.ExtremeThreshold per
// operation. It warns once per operation when the count passes warnAfter
// and asks for optimization once any count passes optimizeAfter.
type ExtremeMonitor struct {
	warnAfter     uint64
	optimizeAfter uint64

	observed uint64
	extreme  uint64
	byOp     map[string]uint64
	warned   map[string]bool
	warnings uint64

	log     *slog.Logger
	metrics *observability.Metrics
}

// NewExtremeMonitor returns a monitor. log should be rate limited.
func NewExtremeMonitor(warnAfter, optimizeAfter int, log *slog.Logger, m *observability.Metrics) *ExtremeMonitor {
	if warnAfter <= 0 {
		warnAfter = DefaultWarnAfter
	}
	if optimizeAfter <= 0 {
		optimizeAfter = DefaultOptimizeAfter
	}
	return &ExtremeMonitor{
		warnAfter:     uint64(warnAfter),
		optimizeAfter: uint64(optimizeAfter),
		byOp:          make(map[string]uint64),
		warned:        make(map[string]bool),
		log:           logger.OrNop(log),
		metrics:       m,
	}
}

// Observe looks at one result of op and reports whether it was extreme.
func (e *ExtremeMonitor) Observe(op string, d decimal.Decimal) bool {
	if !safeconv.IsExtremeDecimal(d) {
		e.observed++
		return false
	}
	e.Record(op)
	return true
}

// Record counts one extreme result of op.
func (e *ExtremeMonitor) Record(op string) {
	e.observed++
	e.extreme++
	e.byOp[op]++
	e.metrics.IncExtreme(op)
	if n := e.byOp[op]; n > e.warnAfter && !e.warned[op] {
		e.warned[op] = true
		e.warnings++
		e.log.LogAttrs(context.Background(), slog.LevelWarn, "frequent extreme values",
			slog.String("op", op),
			slog.Uint64("count", n),
		)
	}
}

// NeedsOptimization reports whether any operation produced more than
// optimizeAfter extreme results.
func (e *ExtremeMonitor) NeedsOptimization() bool {
	for _, n := range e.byOp {
		if n > e.optimizeAfter {
			return true
		}
	}
	return false
}

// Count is the number of extreme results of op.
func (e *ExtremeMonitor) Count(op string) uint64 { return e.byOp[op] }

// Ratio is extreme results over observed results.
func (e *ExtremeMonitor) Ratio() float64 {
	if e.observed == 0 {
		return 0
	}
	return float64(e.extreme) / float64(e.observed)
}

func (e *ExtremeMonitor) Warnings() uint64 { return e.warnings }

func (e *ExtremeMonitor) Stats() ExtremeStats {
	by := make(map[string]uint64, len(e.byOp))
	for k, v := range e.byOp {
		by[k] = v
	}
	return ExtremeStats{
		Observed: e.observed,
		Extreme:  e.extreme,
		Ratio:    e.Ratio(),
		ByOp:     by,
		Warnings: e.warnings,
	}
}

func (e *ExtremeMonitor) Reset() {
	e.observed, e.extreme, e.warnings = 0, 0, 0
	clear(e.byOp)
	clear(e.warned)
}
