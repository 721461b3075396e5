// Package opcache holds the per-operation result caches, the batch optimizer
// and the manager that enumerates and bounds them.
package opcache

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/mohammed-shakir/hugenum/internal/observability"
)

const (
	DefaultInitial   = 128
	DefaultMin       = 32
	DefaultMax       = 8192
	DefaultEvalEvery = 100
	DefaultTarget    = 0.8

	entryOverhead = 96 // list element, map slot and entry header
)

type Config struct {
	Name          string
	Initial       int
	Min           int
	Max           int
	EvalEvery     int
	TargetHitRate float64
}

func (c Config) withDefaults() Config {
	if c.Min <= 0 {
		c.Min = DefaultMin
	}
	if c.Max <= 0 {
		c.Max = DefaultMax
	}
	if c.Max < c.Min {
		c.Max = c.Min
	}
	if c.Initial <= 0 {
		c.Initial = DefaultInitial
	}
	c.Initial = min(max(c.Initial, c.Min), c.Max)
	if c.EvalEvery <= 0 {
		c.EvalEvery = DefaultEvalEvery
	}
	if c.TargetHitRate <= 0 || c.TargetHitRate > 1 {
		c.TargetHitRate = DefaultTarget
	}
	return c
}

type Stats struct {
	Name      string  `json:"name"`
	Len       int     `json:"len"`
	Capacity  int     `json:"capacity"`
	Hits      uint64  `json:"hits"`
	Misses    uint64  `json:"misses"`
	Evictions uint64  `json:"evictions"`
	Grows     int     `json:"grows"`
	Shrinks   int     `json:"shrinks"`
	HitRate   float64 `json:"hit_rate"`
	Bytes     int64   `json:"bytes"`

	// Recent* count lookups since the last Clear or ResetStats.
	RecentHits    uint64  `json:"recent_hits"`
	RecentMisses  uint64  `json:"recent_misses"`
	RecentHitRate float64 `json:"recent_hit_rate"`
}

// Requests is Hits + Misses.
func (s Stats) Requests() uint64 { return s.Hits + s.Misses }

func (s Stats) RecentRequests() uint64 { return s.RecentHits + s.RecentMisses }

type entry[V any] struct {
	val        V
	lastAccess time.Time
	count      uint64
}

// Adaptive is an LRU cache that resizes itself from its own hit rate. Every
// EvalEvery lookups it compares the window's hit rate with the target: below
// it the capacity doubles up to Max, well above it the capacity shrinks by a
// quarter down to Min. It is not safe for concurrent use.
type Adaptive[V any] struct {
	cfg   Config
	store *lru.Cache[string, *entry[V]]
	size  int

	winHits, winReqs int
	hits, misses     uint64
	recentHits       uint64
	recentMisses     uint64
	evictions        uint64
	grows, shrinks   int

	sizeOf   func(V) int
	onEvict  func(V)
	clearing bool
	now      func() time.Time
	metrics  *observability.Metrics
}

type Option[V any] func(*Adaptive[V])

// WithEvict registers fn for values pushed out by capacity, including
// shrinks. Clear does not call it.
func WithEvict[V any](fn func(V)) Option[V] {
	return func(a *Adaptive[V]) { a.onEvict = fn }
}

// WithSizeOf sets the per-value byte estimate used by Footprint.
func WithSizeOf[V any](fn func(V) int) Option[V] {
	return func(a *Adaptive[V]) { a.sizeOf = fn }
}

func WithMetrics[V any](m *observability.Metrics) Option[V] {
	return func(a *Adaptive[V]) { a.metrics = m }
}

func WithClock[V any](now func() time.Time) Option[V] {
	return func(a *Adaptive[V]) { a.now = now }
}

func NewAdaptive[V any](cfg Config, opts ...Option[V]) *Adaptive[V] {
	cfg = cfg.withDefaults()
	a := &Adaptive[V]{cfg: cfg, size: cfg.Initial, now: time.Now}
	for _, o := range opts {
		o(a)
	}
	// only fails for a non-positive size, which withDefaults rules out
	a.store, _ = lru.NewWithEvict(cfg.Initial, func(_ string, e *entry[V]) {
		if a.onEvict != nil && !a.clearing {
			a.onEvict(e.val)
		}
	})
	a.metrics.SetCacheCapacity(cfg.Name, a.size)
	return a
}

func (a *Adaptive[V]) Name() string { return a.cfg.Name }

// Get returns the cached value for key and counts the lookup.
func (a *Adaptive[V]) Get(key string) (V, bool) {
	e, ok := a.store.Get(key)
	a.record(ok)
	if !ok {
		var zero V
		return zero, false
	}
	e.count++
	e.lastAccess = a.now()
	return e.val, true
}

// Contains reports whether key is cached without counting a lookup or
// touching recency.
func (a *Adaptive[V]) Contains(key string) bool { return a.store.Contains(key) }

// Put stores v under key, evicting the least recently used entry when full.
func (a *Adaptive[V]) Put(key string, v V) {
	if a.store.Add(key, &entry[V]{val: v, lastAccess: a.now()}) {
		a.evictions++
	}
}

// GetOrCompute returns the cached value or computes, stores and returns it.
func (a *Adaptive[V]) GetOrCompute(key string, fn func() V) V {
	if v, ok := a.Get(key); ok {
		return v
	}
	v := fn()
	a.Put(key, v)
	return v
}

func (a *Adaptive[V]) record(hit bool) {
	if hit {
		a.hits++
		a.recentHits++
		a.winHits++
	} else {
		a.misses++
		a.recentMisses++
	}
	a.winReqs++
	a.metrics.ObserveCache(a.cfg.Name, hit)
	if a.winReqs >= a.cfg.EvalEvery {
		a.evaluate()
	}
}

func (a *Adaptive[V]) evaluate() {
	rate := float64(a.winHits) / float64(a.winReqs)
	a.winHits, a.winReqs = 0, 0

	target := a.cfg.TargetHitRate
	next := a.size
	switch {
	case rate < target && a.size < a.cfg.Max:
		next = min(a.size*2, a.cfg.Max)
		a.grows++
	case rate >= target+(1-target)/2 && a.size > a.cfg.Min:
		next = max(a.size-a.size/4, a.cfg.Min)
		a.shrinks++
	}
	if next != a.size {
		a.resize(next)
	}
}

func (a *Adaptive[V]) resize(n int) {
	a.evictions += uint64(a.store.Resize(n))
	a.size = n
	a.metrics.SetCacheCapacity(a.cfg.Name, n)
}

// Capacity is the current adaptive maximum number of entries.
func (a *Adaptive[V]) Capacity() int { return a.size }

func (a *Adaptive[V]) Len() int { return a.store.Len() }

// Clear drops every entry without feeding the eviction callback.
func (a *Adaptive[V]) Clear() {
	a.clearing = true
	a.store.Purge()
	a.clearing = false
	a.recentHits, a.recentMisses = 0, 0
}

// Footprint estimates the bytes held by the cache.
func (a *Adaptive[V]) Footprint() int64 {
	var n int64
	for _, k := range a.store.Keys() {
		n += int64(len(k) + entryOverhead)
		if a.sizeOf != nil {
			if e, ok := a.store.Peek(k); ok {
				n += int64(a.sizeOf(e.val))
			}
		}
	}
	return n
}

// Entry reports the bookkeeping of key without touching recency.
func (a *Adaptive[V]) Entry(key string) (lastAccess time.Time, count uint64, ok bool) {
	e, ok := a.store.Peek(key)
	if !ok {
		return time.Time{}, 0, false
	}
	return e.lastAccess, e.count, true
}

func (a *Adaptive[V]) Stats() Stats {
	s := Stats{
		Name:      a.cfg.Name,
		Len:       a.store.Len(),
		Capacity:  a.size,
		Hits:      a.hits,
		Misses:    a.misses,
		Evictions: a.evictions,
		Grows:     a.grows,
		Shrinks:   a.shrinks,
		Bytes:     a.Footprint(),

		RecentHits:   a.recentHits,
		RecentMisses: a.recentMisses,
	}
	if n := a.hits + a.misses; n > 0 {
		s.HitRate = float64(a.hits) / float64(n)
	}
	if n := a.recentHits + a.recentMisses; n > 0 {
		s.RecentHitRate = float64(a.recentHits) / float64(n)
	}
	return s
}

// ResetStats zeroes the counters and restores the initial capacity.
func (a *Adaptive[V]) ResetStats() {
	a.hits, a.misses, a.evictions = 0, 0, 0
	a.recentHits, a.recentMisses = 0, 0
	a.winHits, a.winReqs = 0, 0
	a.grows, a.shrinks = 0, 0
	if a.size != a.cfg.Initial {
		a.clearing = true
		a.store.Resize(a.cfg.Initial)
		a.clearing = false
		a.size = a.cfg.Initial
		a.metrics.SetCacheCapacity(a.cfg.Name, a.size)
	}
}
