// Package tuner periodically inspects engine statistics and applies
// remediations that only affect cache and pool sizing or counter cadence,
// never results. It owns no goroutine: the engine's owner calls Poll from
// its own loop, so disabling it is immediate and deterministic.
package tuner

import (
	"context"
	"log/slog"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mohammed-shakir/hugenum/internal/logger"
	"github.com/mohammed-shakir/hugenum/internal/observability"
)

const (
	DefaultInterval = 5 * time.Minute
	historySize     = 32
)

type State int

const (
	Disabled State = iota
	Idle
	Analyzing
	Applying
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Analyzing:
		return "analyzing"
	case Applying:
		return "applying"
	default:
		return "disabled"
	}
}

// Target is what the tuner reads and remediates.
type Target interface {
	Snapshot() Snapshot
	ClearPools()
	ClearCache(name string) bool
	ResetCounters()
}

// Remediation records one applied action.
type Remediation struct {
	ID     string    `json:"id"`
	Action Action    `json:"action"`
	Reason Reason    `json:"reason"`
	Detail string    `json:"detail,omitempty"`
	At     time.Time `json:"at"`
}

// Sink receives remediations. Publish must not block.
type Sink interface {
	Publish(Remediation)
}

type Config struct {
	Enabled    bool
	Interval   time.Duration
	Thresholds Thresholds
}

type Option func(*Tuner)

// WithGCHint replaces runtime.GC as the hint issued after pools are cleared.
func WithGCHint(fn func()) Option { return func(t *Tuner) { t.gc = fn } }

func WithSink(s Sink) Option { return func(t *Tuner) { t.sink = s } }

func WithLogger(l *slog.Logger) Option { return func(t *Tuner) { t.log = logger.OrNop(l) } }

func WithMetrics(m *observability.Metrics) Option { return func(t *Tuner) { t.metrics = m } }

func WithIDs(fn func() string) Option { return func(t *Tuner) { t.newID = fn } }

// Tuner is not safe for concurrent use.
type Tuner struct {
	state    State
	interval time.Duration
	next     time.Time
	th       Thresholds
	target   Target

	gc      func()
	sink    Sink
	newID   func() string
	log     *slog.Logger
	metrics *observability.Metrics

	runs     uint64
	applied  uint64
	lastPlan Plan
	history  []Remediation
}

// New returns a disabled tuner; call Enable to arm it. When cfg.Enabled is
// set the caller still has to pass a start time to Enable.
func New(cfg Config, target Target, opts ...Option) *Tuner {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	t := &Tuner{
		interval: cfg.Interval,
		th:       cfg.Thresholds.withDefaults(),
		target:   target,
		gc:       runtime.GC,
		newID:    uuid.NewString,
		log:      logger.Nop(),
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

func (t *Tuner) State() State { return t.state }

func (t *Tuner) Thresholds() Thresholds { return t.th }

func (t *Tuner) SetThresholds(th Thresholds) { t.th = th.withDefaults() }

// Enable moves Disabled to Idle and schedules the first analysis one
// interval after now. It is a no-op in any other state.
func (t *Tuner) Enable(now time.Time) {
	if t.state != Disabled {
		return
	}
	t.next = now.Add(t.interval)
	t.setState(Idle)
}

// Disable cancels any scheduled analysis.
func (t *Tuner) Disable() {
	t.next = time.Time{}
	t.setState(Disabled)
}

// Next is when the next analysis is due; zero while disabled.
func (t *Tuner) Next() time.Time { return t.next }

// Poll runs one analysis when the interval has elapsed and reports whether
// it did.
func (t *Tuner) Poll(now time.Time) (Plan, bool) {
	if t.state != Idle || now.Before(t.next) {
		return Plan{}, false
	}
	return t.run(now), true
}

func (t *Tuner) run(now time.Time) Plan {
	t.setState(Analyzing)
	t.runs++
	plan := Analyze(t.target.Snapshot(), t.th)
	t.lastPlan = plan

	t.setState(Applying)
	t.apply(plan, now)

	// a Disable during apply wins
	if t.state == Applying {
		t.next = now.Add(t.interval)
		t.setState(Idle)
	}
	return plan
}

func (t *Tuner) apply(p Plan, now time.Time) {
	if p.Memory {
		t.target.ClearPools()
		t.gc()
		t.record(ActionClearPools, ReasonPoolOversized, "", now)
	}
	if p.Cache {
		for _, name := range p.SlowCaches {
			t.target.ClearCache(name)
		}
		t.record(ActionClearCaches, ReasonLowHitRate, strings.Join(p.SlowCaches, ","), now)
	}
	if p.Performance {
		reason := ReasonSlowOps
		for _, r := range p.Reasons {
			if r == ReasonSlowOps || r == ReasonExtremeRatio {
				reason = r
				break
			}
		}
		t.target.ResetCounters()
		t.record(ActionResetCounters, reason, "", now)
	}
}

func (t *Tuner) record(a Action, r Reason, detail string, now time.Time) {
	rem := Remediation{ID: t.newID(), Action: a, Reason: r, Detail: detail, At: now}
	t.applied++
	if len(t.history) == historySize {
		copy(t.history, t.history[1:])
		t.history = t.history[:historySize-1]
	}
	t.history = append(t.history, rem)
	t.metrics.IncRemediation(string(a))
	t.log.LogAttrs(context.Background(), slog.LevelInfo, "tuner remediation",
		slog.String("id", rem.ID),
		slog.String("action", string(a)),
		slog.String("reason", string(r)),
		slog.String("detail", detail),
	)
	if t.sink != nil {
		t.sink.Publish(rem)
	}
}

func (t *Tuner) setState(s State) {
	t.state = s
	t.metrics.SetTunerState(int(s))
}

type Stats struct {
	State        string        `json:"state"`
	Runs         uint64        `json:"runs"`
	Remediations uint64        `json:"remediations"`
	Next         time.Time     `json:"next"`
	LastPlan     Plan          `json:"last_plan"`
	History      []Remediation `json:"history"`
}

func (t *Tuner) Stats() Stats {
	h := make([]Remediation, len(t.history))
	copy(h, t.history)
	return Stats{
		State:        t.state.String(),
		Runs:         t.runs,
		Remediations: t.applied,
		Next:         t.next,
		LastPlan:     t.lastPlan,
		History:      h,
	}
}

// Reset zeroes the counters and history but keeps the state and schedule.
func (t *Tuner) Reset() {
	t.runs, t.applied = 0, 0
	t.lastPlan = Plan{}
	t.history = nil
}
