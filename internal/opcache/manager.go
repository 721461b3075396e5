package opcache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mohammed-shakir/hugenum/internal/logger"
)

const DefaultMemoryLimit = 32 << 20

var ErrDuplicateCache = errors.New("opcache: cache already registered")

// Managed is what the Manager needs from a cache.
type Managed interface {
	Name() string
	Stats() Stats
	Clear()
	ResetStats()
	Footprint() int64
}

// Manager enumerates every registered cache, reports their statistics and
// clears them together when their summed footprint passes the limit.
type Manager struct {
	caches []Managed
	byName map[string]Managed
	limit  int64
	clears uint64
	log    *slog.Logger
}

func NewManager(limit int64, log *slog.Logger) *Manager {
	if limit <= 0 {
		limit = DefaultMemoryLimit
	}
	return &Manager{byName: make(map[string]Managed), limit: limit, log: logger.OrNop(log)}
}

func (m *Manager) Register(c Managed) error {
	if _, ok := m.byName[c.Name()]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateCache, c.Name())
	}
	m.caches = append(m.caches, c)
	m.byName[c.Name()] = c
	return nil
}

func (m *Manager) Get(name string) (Managed, bool) {
	c, ok := m.byName[name]
	return c, ok
}

// All returns the caches in registration order.
func (m *Manager) All() []Managed {
	out := make([]Managed, len(m.caches))
	copy(out, m.caches)
	return out
}

func (m *Manager) AllStats() []Stats {
	out := make([]Stats, 0, len(m.caches))
	for _, c := range m.caches {
		out = append(out, c.Stats())
	}
	return out
}

func (m *Manager) Footprint() int64 {
	var n int64
	for _, c := range m.caches {
		n += c.Footprint()
	}
	return n
}

func (m *Manager) Limit() int64 { return m.limit }

func (m *Manager) ClearAll() {
	for _, c := range m.caches {
		c.Clear()
	}
}

// Clear empties the named cache and reports whether it exists.
func (m *Manager) Clear(name string) bool {
	c, ok := m.byName[name]
	if ok {
		c.Clear()
	}
	return ok
}

// CheckMemory clears every cache when the summed footprint exceeds the
// limit and reports whether it did.
func (m *Manager) CheckMemory() bool {
	used := m.Footprint()
	if used <= m.limit {
		return false
	}
	m.ClearAll()
	m.clears++
	m.log.LogAttrs(context.Background(), slog.LevelWarn, "cache memory limit exceeded, caches cleared",
		slog.Int64("bytes", used),
		slog.Int64("limit", m.limit),
	)
	return true
}

// MemoryClears counts CheckMemory calls that cleared the caches.
func (m *Manager) MemoryClears() uint64 { return m.clears }

// Reset clears every cache and zeroes all counters.
func (m *Manager) Reset() {
	for _, c := range m.caches {
		c.Clear()
		c.ResetStats()
	}
	m.clears = 0
}
