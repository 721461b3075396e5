// Package predict warms operation caches from observed access sequences.
// It remembers which key tends to follow which, scores each transition
// with exponential decay, and once a transition's score passes the
// threshold it asks a loader to compute the follower ahead of time.
//
// Preloads only warm caches: the loader computes the same value a miss
// would, so disabling the predictor never changes a result.
package predict

import (
	"math"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/mohammed-shakir/hugenum/internal/observability"
)

const (
	DefaultThreshold = 3.0
	DefaultHalfLife  = time.Minute
	DefaultMaxKeys   = 4096
	maxFollowers     = 8
)

type Config struct {
	Enabled   bool
	Threshold float64
	HalfLife  time.Duration
	MaxKeys   int
	// Clock defaults to time.Now.
	Clock func() time.Time
}

// Loader computes and caches key. It reports false when key was already
// cached or could not be computed.
type Loader func(key string) bool

type Stats struct {
	Enabled      bool    `json:"enabled"`
	Tracked      int     `json:"tracked"`
	Observations uint64  `json:"observations"`
	Predictions  uint64  `json:"predictions"`
	Preloads     uint64  `json:"preloads"`
	Useful       uint64  `json:"useful"`
	Wasted       uint64  `json:"wasted"`
	UsefulRate   float64 `json:"useful_rate"`
}

type counter struct {
	score float64
	last  time.Time
}

// Predictor is not safe for concurrent use.
type Predictor struct {
	cfg     Config
	enabled bool
	now     func() time.Time
	metrics *observability.Metrics

	prev    string
	follows *lru.Cache[string, map[string]*counter]
	pending *lru.Cache[string, struct{}]
	quiet   bool

	observations, predictions uint64
	preloads, useful, wasted  uint64
}

func New(cfg Config, m *observability.Metrics) *Predictor {
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.HalfLife <= 0 {
		cfg.HalfLife = DefaultHalfLife
	}
	if cfg.MaxKeys <= 0 {
		cfg.MaxKeys = DefaultMaxKeys
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	p := &Predictor{cfg: cfg, enabled: cfg.Enabled, now: cfg.Clock, metrics: m}
	p.follows, _ = lru.New[string, map[string]*counter](cfg.MaxKeys)
	// a preload pushed out before anyone asked for it was wasted
	p.pending, _ = lru.NewWithEvict(cfg.MaxKeys, func(string, struct{}) {
		if !p.quiet {
			p.wasted++
			p.metrics.ObservePreload(false)
		}
	})
	return p
}

func (p *Predictor) Enabled() bool { return p.enabled }

func (p *Predictor) Enable() { p.enabled = true }

// Disable stops observing and forgets every transition.
func (p *Predictor) Disable() {
	p.enabled = false
	p.forget()
}

// Observe records an access to key and, when a follower of key is
// predicted, hands it to load.
func (p *Predictor) Observe(key string, load Loader) {
	if !p.enabled || key == "" {
		return
	}
	p.observations++
	if p.pending.Contains(key) {
		p.quiet = true
		p.pending.Remove(key)
		p.quiet = false
		p.useful++
		p.metrics.ObservePreload(true)
	}
	now := p.now()
	if p.prev != "" && p.prev != key {
		p.inc(p.prev, key, now)
	}
	p.prev = key

	next, ok := p.predict(key, now)
	if !ok || load == nil || p.pending.Contains(next) {
		return
	}
	p.predictions++
	if load(next) {
		p.preloads++
		p.pending.Add(next, struct{}{})
	}
}

func (p *Predictor) inc(from, to string, now time.Time) {
	fs, ok := p.follows.Get(from)
	if !ok {
		fs = make(map[string]*counter, 1)
		p.follows.Add(from, fs)
	}
	c := fs[to]
	if c == nil {
		if len(fs) >= maxFollowers {
			dropWeakest(fs, now, p.cfg.HalfLife)
		}
		fs[to] = &counter{score: 1, last: now}
		return
	}
	c.score = decay(c.score, now.Sub(c.last).Seconds(), p.cfg.HalfLife.Seconds()) + 1
	c.last = now
}

// predict returns the strongest follower of key whose decayed score has
// reached the threshold.
func (p *Predictor) predict(key string, now time.Time) (string, bool) {
	fs, ok := p.follows.Peek(key)
	if !ok {
		return "", false
	}
	best, bestScore := "", 0.0
	for k, c := range fs {
		s := decay(c.score, now.Sub(c.last).Seconds(), p.cfg.HalfLife.Seconds())
		if s > bestScore || (s == bestScore && k < best) {
			best, bestScore = k, s
		}
	}
	return best, best != "" && bestScore >= p.cfg.Threshold
}

// Score is the decayed strength of the from -> to transition.
func (p *Predictor) Score(from, to string) float64 {
	fs, ok := p.follows.Peek(from)
	if !ok {
		return 0
	}
	c := fs[to]
	if c == nil {
		return 0
	}
	return decay(c.score, p.now().Sub(c.last).Seconds(), p.cfg.HalfLife.Seconds())
}

func dropWeakest(fs map[string]*counter, now time.Time, hl time.Duration) {
	weakest, low := "", math.Inf(1)
	for k, c := range fs {
		if s := decay(c.score, now.Sub(c.last).Seconds(), hl.Seconds()); s < low {
			weakest, low = k, s
		}
	}
	delete(fs, weakest)
}

func decay(score, dt, halfLife float64) float64 {
	if score == 0 || dt <= 0 || halfLife <= 0 {
		return score
	}
	return score * math.Exp(-math.Ln2/halfLife*dt)
}

func (p *Predictor) Stats() Stats {
	s := Stats{
		Enabled:      p.enabled,
		Tracked:      p.follows.Len(),
		Observations: p.observations,
		Predictions:  p.predictions,
		Preloads:     p.preloads,
		Useful:       p.useful,
		Wasted:       p.wasted,
	}
	if p.preloads > 0 {
		s.UsefulRate = float64(p.useful) / float64(p.preloads)
	}
	return s
}

// Reset forgets every transition and zeroes the counters. The enabled flag
// is kept.
func (p *Predictor) Reset() {
	p.forget()
	p.observations, p.predictions = 0, 0
	p.preloads, p.useful, p.wasted = 0, 0, 0
}

func (p *Predictor) forget() {
	p.prev = ""
	p.follows.Purge()
	p.quiet = true
	p.pending.Purge()
	p.quiet = false
}
