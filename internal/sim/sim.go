// Package sim drives an engine the way a ticking game economy does: one
// goroutine owns the engine, advances every growth producer each tick, gives
// the tuner its turn, and publishes a read-only snapshot for other
// goroutines.
package sim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/mohammed-shakir/hugenum/internal/logger"
	"github.com/mohammed-shakir/hugenum/pkg/decimal"
	"github.com/mohammed-shakir/hugenum/pkg/engine"
)

const (
	DefaultTick         = 100 * time.Millisecond
	DefaultPersistEvery = 10 * time.Second
)

var ErrDuplicate = errors.New("sim: producer already registered")

// Store persists producer values between runs.
type Store interface {
	SaveAll(ctx context.Context, vals map[string]decimal.Decimal) error
	LoadAll(ctx context.Context, names []string) (map[string]decimal.Decimal, error)
}

// Producer grows by Factor every tick and buys a level whenever its value
// covers the cost CostBase^Level.
type Producer struct {
	Name     string
	Value    decimal.Decimal
	Factor   decimal.Decimal
	CostBase decimal.Decimal
	Level    int64
}

type Config struct {
	Tick         time.Duration
	PersistEvery time.Duration
	// TuneOnStart enables the engine's tuner when Run starts.
	TuneOnStart bool
}

// Value is one producer as published in a snapshot.
type Value struct {
	Canonical string `json:"canonical"`
	Formatted string `json:"formatted"`
	Magnitude string `json:"magnitude"`
	Level     int64  `json:"level"`
}

// Snapshot is immutable once published.
type Snapshot struct {
	RunID  string           `json:"run_id"`
	Tick   uint64           `json:"tick"`
	At     time.Time        `json:"at"`
	Values map[string]Value `json:"values"`
	Engine engine.Stats     `json:"engine"`
}

type Sim struct {
	eng   *engine.Engine
	cfg   Config
	store Store
	runID string
	log   *slog.Logger

	producers []*Producer
	byName    map[string]*Producer
	tick      uint64
	persisted time.Time

	snap atomic.Pointer[Snapshot]
}

// New returns a simulation over eng. store may be nil.
func New(eng *engine.Engine, cfg Config, store Store, log *slog.Logger) *Sim {
	if cfg.Tick <= 0 {
		cfg.Tick = DefaultTick
	}
	if cfg.PersistEvery <= 0 {
		cfg.PersistEvery = DefaultPersistEvery
	}
	s := &Sim{
		eng:    eng,
		cfg:    cfg,
		store:  store,
		runID:  uuid.NewString(),
		log:    logger.OrNop(log),
		byName: make(map[string]*Producer),
	}
	s.snap.Store(&Snapshot{RunID: s.runID, Values: map[string]Value{}})
	return s
}

func (s *Sim) RunID() string { return s.runID }

// Add registers a producer. It must be called before Run.
func (s *Sim) Add(p Producer) error {
	if _, ok := s.byName[p.Name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicate, p.Name)
	}
	cp := p
	s.producers = append(s.producers, &cp)
	s.byName[p.Name] = &cp
	return nil
}

// Restore replaces producer values with the persisted ones, when present.
func (s *Sim) Restore(ctx context.Context) error {
	if s.store == nil || len(s.producers) == 0 {
		return nil
	}
	vals, err := s.store.LoadAll(ctx, slices.Collect(maps.Keys(s.byName)))
	for name, v := range vals {
		s.byName[name].Value = v
	}
	if err != nil {
		return fmt.Errorf("sim restore: %w", err)
	}
	return nil
}

// Step advances every producer by one tick, polls the tuner and publishes a
// snapshot.
func (s *Sim) Step(now time.Time) {
	for _, p := range s.producers {
		s.advance(p)
	}
	s.tick++
	if plan, ran := s.eng.Tune(now); ran && !plan.Empty() {
		s.log.Info("tuner applied remediations", slog.Any("reasons", plan.Reasons))
	}
	s.publish(now)
}

func (s *Sim) advance(p *Producer) {
	p.Value = s.eng.Mul(p.Value, p.Factor)
	if p.CostBase.IsZero() {
		return
	}
	cost := s.eng.Pow(p.CostBase, p.Level)
	if p.Value.Gte(cost) {
		p.Value = s.eng.Sub(p.Value, cost)
		p.Level++
	}
}

func (s *Sim) publish(now time.Time) {
	conv := s.eng.Converter()
	vals := make(map[string]Value, len(s.producers))
	for _, p := range s.producers {
		vals[p.Name] = Value{
			Canonical: conv.ToString(p.Value),
			Formatted: conv.Format(p.Value),
			Magnitude: conv.DescribeMagnitude(p.Value).String(),
			Level:     p.Level,
		}
	}
	s.snap.Store(&Snapshot{
		RunID:  s.runID,
		Tick:   s.tick,
		At:     now,
		Values: vals,
		Engine: s.eng.Stats(),
	})
}

// Snapshot is safe to call from any goroutine.
func (s *Sim) Snapshot() *Snapshot { return s.snap.Load() }

// Persist saves every producer value.
func (s *Sim) Persist(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	vals := make(map[string]decimal.Decimal, len(s.producers))
	for _, p := range s.producers {
		vals[p.Name] = p.Value
	}
	if err := s.store.SaveAll(ctx, vals); err != nil {
		return fmt.Errorf("sim persist: %w", err)
	}
	return nil
}

func (s *Sim) maybePersist(ctx context.Context, now time.Time) {
	if now.Sub(s.persisted) < s.cfg.PersistEvery {
		return
	}
	s.persisted = now
	if err := s.Persist(ctx); err != nil {
		s.log.Warn("persist failed", slog.Any("err", err))
	}
}

// Run ticks until ctx is done, then disables the tuner and persists once
// more.
func (s *Sim) Run(ctx context.Context) error {
	t := time.NewTicker(s.cfg.Tick)
	defer t.Stop()

	start := time.Now()
	s.persisted = start
	if s.cfg.TuneOnStart {
		s.eng.EnableTuning(start)
	}
	s.log.Info("simulation started",
		slog.String("run_id", s.runID),
		slog.Int("producers", len(s.producers)),
		slog.Duration("tick", s.cfg.Tick),
	)

	for {
		select {
		case <-ctx.Done():
			s.eng.DisableTuning()
			// ctx is already done; the final save gets its own deadline
			saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			err := s.Persist(saveCtx)
			cancel()
			s.log.Info("simulation stopped", slog.Uint64("ticks", s.tick))
			return err
		case now := <-t.C:
			s.Step(now)
			s.maybePersist(ctx, now)
		}
	}
}
