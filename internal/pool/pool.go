// Package pool recycles decimals by canonical string. Decimals are
// immutable, so a pooled value is interchangeable with any other value of
// the same key.
package pool

import (
	"github.com/mohammed-shakir/hugenum/internal/observability"
	"github.com/mohammed-shakir/hugenum/pkg/decimal"
)

const (
	DefaultMaxPerKey = 100
	DefaultMaxTotal  = 10000
)

type Config struct {
	MaxPerKey int
	MaxTotal  int
}

type Stats struct {
	Pooled  int     `json:"pooled"`
	Keys    int     `json:"keys"`
	Hits    uint64  `json:"hits"`
	Misses  uint64  `json:"misses"`
	Dropped uint64  `json:"dropped"`
	HitRate float64 `json:"hit_rate"`
}

// Pool is not safe for concurrent use.
type Pool struct {
	maxPerKey int
	maxTotal  int
	buckets   map[string][]decimal.Decimal
	total     int

	hits, misses, dropped uint64
	metrics               *observability.Metrics
}

func New(cfg Config, m *observability.Metrics) *Pool {
	if cfg.MaxPerKey <= 0 {
		cfg.MaxPerKey = DefaultMaxPerKey
	}
	if cfg.MaxTotal <= 0 {
		cfg.MaxTotal = DefaultMaxTotal
	}
	return &Pool{
		maxPerKey: cfg.MaxPerKey,
		maxTotal:  cfg.MaxTotal,
		buckets:   make(map[string][]decimal.Decimal),
		metrics:   m,
	}
}

// Get pops a pooled value for key, or builds one on a miss. A nil build
// parses key and yields zero when key is not decimal text.
func (p *Pool) Get(key string, build func() decimal.Decimal) decimal.Decimal {
	if b := p.buckets[key]; len(b) > 0 {
		d := b[len(b)-1]
		if len(b) == 1 {
			delete(p.buckets, key)
		} else {
			p.buckets[key] = b[:len(b)-1]
		}
		p.total--
		p.hits++
		p.metrics.ObservePool(true)
		p.metrics.SetPooled(p.total)
		return d
	}
	p.misses++
	p.metrics.ObservePool(false)
	if build != nil {
		return build()
	}
	d, err := decimal.Parse(key)
	if err != nil {
		return decimal.Zero()
	}
	return d
}

// Put returns d to the bucket of its canonical string. It reports false
// when the bucket or the pool is full and d was dropped.
func (p *Pool) Put(d decimal.Decimal) bool {
	key := d.String()
	b := p.buckets[key]
	if len(b) >= p.maxPerKey || p.total >= p.maxTotal {
		p.dropped++
		return false
	}
	p.buckets[key] = append(b, d)
	p.total++
	p.metrics.SetPooled(p.total)
	return true
}

// Clear empties every bucket but keeps the counters.
func (p *Pool) Clear() {
	clear(p.buckets)
	p.total = 0
	p.metrics.SetPooled(0)
}

func (p *Pool) Len() int { return p.total }

func (p *Pool) Stats() Stats {
	s := Stats{
		Pooled:  p.total,
		Keys:    len(p.buckets),
		Hits:    p.hits,
		Misses:  p.misses,
		Dropped: p.dropped,
	}
	if n := p.hits + p.misses; n > 0 {
		s.HitRate = float64(p.hits) / float64(n)
	}
	return s
}

// Reset empties the pool and zeroes its counters.
func (p *Pool) Reset() {
	p.Clear()
	p.hits, p.misses, p.dropped = 0, 0, 0
}
