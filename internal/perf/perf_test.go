package perf

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/mohammed-shakir/hugenum/internal/logger"
	"github.com/mohammed-shakir/hugenum/pkg/decimal"
)

type fakeClock struct{ now time.Time }

func (f *fakeClock) Now() time.Time      { return f.now }
func (f *fakeClock) Add(d time.Duration) { f.now = f.now.Add(d) }

func newMonitor(t *testing.T, slow time.Duration) (*Monitor, *fakeClock, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	zl := logger.Build(logger.Config{Level: "info"}, &buf)
	m := NewMonitor(slow, logger.NewSlog(&zl), nil)
	fc := &fakeClock{now: time.Unix(0, 0).UTC()}
	m.now = fc.Now
	return m, fc, &buf
}

func TestMonitor_AggregatesEveryCall(t *testing.T) {
	m, fc, buf := newMonitor(t, 0)
	for _, d := range []time.Duration{time.Millisecond, 3 * time.Millisecond, 2 * time.Millisecond} {
		m.Time("pow", func() { fc.Add(d) })
	}
	got := TimeValue(m, "exp", func() int { fc.Add(5 * time.Millisecond); return 7 })
	if got != 7 {
		t.Fatalf("TimeValue returned %d", got)
	}

	s := m.Stats()["pow"]
	if s.Count != 3 || s.Min != time.Millisecond || s.Max != 3*time.Millisecond || s.Avg != 2*time.Millisecond {
		t.Fatalf("pow stats=%+v", s)
	}
	all := m.Overall()
	if all.Count != 4 || all.Max != 5*time.Millisecond || all.Avg != 11*time.Millisecond/4 {
		t.Fatalf("overall=%+v", all)
	}
	if buf.Len() != 0 || m.Warnings() != 0 {
		t.Fatalf("fast ops must not warn: %s", buf.String())
	}
}

func TestMonitor_WarnsOncePerSlowCall(t *testing.T) {
	m, fc, buf := newMonitor(t, 100*time.Millisecond)
	m.Time("ln", func() { fc.Add(150 * time.Millisecond) })
	m.Time("ln", func() { fc.Add(100 * time.Millisecond) }) // at the threshold is not slow
	if m.Warnings() != 1 || m.Stats()["ln"].Slow != 1 {
		t.Fatalf("warnings=%d stats=%+v", m.Warnings(), m.Stats()["ln"])
	}
	if strings.Count(buf.String(), "slow operation") != 1 {
		t.Fatalf("log=%s", buf.String())
	}

	m.Reset()
	if len(m.Stats()) != 0 || m.Warnings() != 0 || len(m.Ops()) != 0 {
		t.Fatalf("reset incomplete")
	}
}

func TestExtremeMonitor_TuningScenario(t *testing.T) {
	var buf bytes.Buffer
	zl := logger.Build(logger.Config{Level: "info"}, &buf)
	e := NewExtremeMonitor(0, 0, logger.NewSlog(&zl), nil)

	big := decimal.MustParse("1e400")
	for i := 0; i < 150; i++ {
		if !e.Observe("pow", big) {
			t.Fatalf("1e400 should be extreme")
		}
	}
	if !e.NeedsOptimization() {
		t.Fatalf("150 extreme results should need optimization")
	}
	if e.Warnings() < 1 {
		t.Fatalf("expected at least one warning")
	}
	if strings.Count(buf.String(), "frequent extreme values") != 1 {
		t.Fatalf("warning should fire once per op: %s", buf.String())
	}
}

func TestExtremeMonitor_Thresholds(t *testing.T) {
	e := NewExtremeMonitor(100, 50, nil, nil)
	for i := 0; i < 50; i++ {
		e.Record("exp")
	}
	if e.NeedsOptimization() {
		t.Fatalf("50 is not more than 50")
	}
	e.Record("exp")
	if !e.NeedsOptimization() || e.Warnings() != 0 {
		t.Fatalf("51 should need optimization without warning yet")
	}

	e.Observe("exp", decimal.New(1))
	e.Observe("exp", decimal.New(1e307))
	s := e.Stats()
	if s.Observed != 53 || s.Extreme != 51 || s.ByOp["exp"] != 51 {
		t.Fatalf("stats=%+v", s)
	}
	if r := e.Ratio(); r < 0.96 || r > 0.97 {
		t.Fatalf("ratio=%v", r)
	}

	e.Reset()
	if e.Count("exp") != 0 || e.Ratio() != 0 || e.NeedsOptimization() {
		t.Fatalf("reset incomplete: %+v", e.Stats())
	}
}
