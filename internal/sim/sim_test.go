package sim

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mohammed-shakir/hugenum/internal/config"
	"github.com/mohammed-shakir/hugenum/pkg/decimal"
	"github.com/mohammed-shakir/hugenum/pkg/engine"
)

type memStore struct {
	mu    sync.Mutex
	vals  map[string]decimal.Decimal
	saves int
	err   error
}

func (m *memStore) SaveAll(_ context.Context, vals map[string]decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.vals == nil {
		m.vals = map[string]decimal.Decimal{}
	}
	for k, v := range vals {
		m.vals[k] = v
	}
	m.saves++
	return nil
}

func (m *memStore) LoadAll(_ context.Context, names []string) (map[string]decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]decimal.Decimal{}
	for _, n := range names {
		if v, ok := m.vals[n]; ok {
			out[n] = v
		}
	}
	return out, nil
}

var t0 = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func newEngine(mutate func(*config.Config)) *engine.Engine {
	cfg := config.Defaults()
	if mutate != nil {
		mutate(&cfg)
	}
	return engine.New(cfg)
}

func TestStep_GrowsAndBuysLevels(t *testing.T) {
	s := New(newEngine(nil), Config{}, nil, nil)
	if err := s.Add(Producer{Name: "gold", Value: decimal.One(), Factor: decimal.New(2), CostBase: decimal.New(10)}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := s.Add(Producer{Name: "gold"}); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("duplicate err=%v", err)
	}
	_ = s.Add(Producer{Name: "stars", Value: decimal.New(1e300), Factor: decimal.New(1e10)})

	for i := range 5 {
		s.Step(t0.Add(time.Duration(i) * time.Second))
	}
	snap := s.Snapshot()
	if snap.Tick != 5 || snap.RunID != s.RunID() {
		t.Fatalf("tick=%d run=%s", snap.Tick, snap.RunID)
	}
	gold := snap.Values["gold"]
	if gold.Canonical != "6" || gold.Level != 2 {
		t.Fatalf("gold=%+v", gold)
	}
	stars := snap.Values["stars"]
	if stars.Canonical != "1e+350" || stars.Formatted != "1e+350" || stars.Magnitude != "extreme" {
		t.Fatalf("stars=%+v", stars)
	}
	if snap.Engine.Ops["mul"].Count != 10 {
		t.Fatalf("mul count=%d", snap.Engine.Ops["mul"].Count)
	}
}

func TestStep_PollsTuner(t *testing.T) {
	eng := newEngine(func(c *config.Config) { c.Tuner.Interval = time.Second })
	s := New(eng, Config{}, nil, nil)
	_ = s.Add(Producer{Name: "x", Value: decimal.One(), Factor: decimal.One()})
	eng.EnableTuning(t0)
	s.Step(t0.Add(500 * time.Millisecond))
	if s.Snapshot().Engine.Tuner.Runs != 0 {
		t.Fatalf("tuner ran early")
	}
	s.Step(t0.Add(time.Second))
	if s.Snapshot().Engine.Tuner.Runs != 1 {
		t.Fatalf("tuner did not run")
	}
}

func TestPersistAndRestore(t *testing.T) {
	store := &memStore{}
	s := New(newEngine(nil), Config{PersistEvery: time.Minute}, store, nil)
	_ = s.Add(Producer{Name: "gold", Value: decimal.MustParse("ee20"), Factor: decimal.One()})

	s.persisted = t0
	s.maybePersist(context.Background(), t0.Add(30*time.Second))
	if store.saves != 0 {
		t.Fatalf("persisted before interval")
	}
	s.maybePersist(context.Background(), t0.Add(time.Minute))
	if store.saves != 1 || store.vals["gold"].String() != "ee20" {
		t.Fatalf("saves=%d vals=%v", store.saves, store.vals)
	}

	r := New(newEngine(nil), Config{}, store, nil)
	_ = r.Add(Producer{Name: "gold", Value: decimal.Zero(), Factor: decimal.One()})
	_ = r.Add(Producer{Name: "new", Value: decimal.New(3), Factor: decimal.One()})
	if err := r.Restore(context.Background()); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	r.Step(t0)
	if v := r.Snapshot().Values; v["gold"].Canonical != "ee20" || v["new"].Canonical != "3" {
		t.Fatalf("restored=%+v", v)
	}

	store.err = errors.New("down")
	if err := r.Persist(context.Background()); err == nil {
		t.Fatalf("expected persist error")
	}
}

func TestRun_StopsAndPersists(t *testing.T) {
	store := &memStore{}
	eng := newEngine(nil)
	s := New(eng, Config{Tick: time.Millisecond, TuneOnStart: true}, store, nil)
	_ = s.Add(Producer{Name: "gold", Value: decimal.One(), Factor: decimal.New(1.5)})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := s.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if s.Snapshot().Tick == 0 {
		t.Fatalf("no ticks ran")
	}
	if store.saves == 0 {
		t.Fatalf("final persist missing")
	}
	if eng.Tuner().State().String() != "disabled" {
		t.Fatalf("tuner left running: %v", eng.Tuner().State())
	}
}
