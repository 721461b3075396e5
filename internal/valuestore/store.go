// Package valuestore persists named decimals in Redis as their canonical
// strings, so a stored value reloads equal to what was saved.
package valuestore

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	maintnotifications "github.com/redis/go-redis/v9/maintnotifications"

	"github.com/mohammed-shakir/hugenum/internal/observability"
	"github.com/mohammed-shakir/hugenum/pkg/decimal"
)

var (
	ErrNoAddr  = errors.New("valuestore: redis address is required")
	ErrCorrupt = errors.New("valuestore: stored value is not a decimal")
)

type Option func(*redis.Options)

func WithPoolSize(n int) Option {
	return func(o *redis.Options) { o.PoolSize = n }
}

func WithDialTimeout(d time.Duration) Option {
	return func(o *redis.Options) { o.DialTimeout = d }
}

func WithReadTimeout(d time.Duration) Option {
	return func(o *redis.Options) { o.ReadTimeout = d }
}

func WithWriteTimeout(d time.Duration) Option {
	return func(o *redis.Options) { o.WriteTimeout = d }
}

type Config struct {
	Addr   string
	Prefix string
	// TTL of zero keeps values forever.
	TTL time.Duration
}

type Store struct {
	rdb     *redis.Client
	prefix  string
	ttl     time.Duration
	metrics *observability.IOMetrics
}

// New connects and pings Redis. m may be nil.
func New(ctx context.Context, cfg Config, m *observability.IOMetrics, opts ...Option) (*Store, error) {
	if cfg.Addr == "" {
		return nil, ErrNoAddr
	}
	ro := &redis.Options{
		Addr:         cfg.Addr,
		PoolSize:     16,
		MinIdleConns: 2,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  1 * time.Second,
		WriteTimeout: 1 * time.Second,
		MaintNotificationsConfig: &maintnotifications.Config{
			Mode: maintnotifications.ModeDisabled,
		},
	}
	for _, f := range opts {
		f(ro)
	}
	rdb := redis.NewClient(ro)

	start := time.Now()
	err := rdb.Ping(ctx).Err()
	m.ObserveStoreOp("ping", err, time.Since(start))
	if err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Store{rdb: rdb, prefix: cfg.Prefix, ttl: cfg.TTL, metrics: m}, nil
}

func (s *Store) key(name string) string { return s.prefix + name }

// Save stores d under name.
func (s *Store) Save(ctx context.Context, name string, d decimal.Decimal) error {
	start := time.Now()
	err := s.rdb.Set(ctx, s.key(name), d.String(), s.ttl).Err()
	s.metrics.ObserveStoreOp("set", err, time.Since(start))
	if err != nil {
		return fmt.Errorf("redis SET %q: %w", name, err)
	}
	return nil
}

// SaveAll stores every value in one pipeline.
func (s *Store) SaveAll(ctx context.Context, vals map[string]decimal.Decimal) error {
	if len(vals) == 0 {
		return nil
	}
	start := time.Now()
	_, err := s.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		for name, d := range vals {
			p.Set(ctx, s.key(name), d.String(), s.ttl)
		}
		return nil
	})
	s.metrics.ObserveStoreOp("mset", err, time.Since(start))
	if err != nil {
		return fmt.Errorf("redis MSET %d keys (pipeline): %w", len(vals), err)
	}
	return nil
}

// Load returns the value stored under name. ok is false when it is absent.
func (s *Store) Load(ctx context.Context, name string) (d decimal.Decimal, ok bool, err error) {
	start := time.Now()
	raw, err := s.rdb.Get(ctx, s.key(name)).Result()
	if errors.Is(err, redis.Nil) {
		s.metrics.ObserveStoreOp("get", nil, time.Since(start))
		return decimal.Zero(), false, nil
	}
	s.metrics.ObserveStoreOp("get", err, time.Since(start))
	if err != nil {
		return decimal.Zero(), false, fmt.Errorf("redis GET %q: %w", name, err)
	}
	d, err = decimal.Parse(raw)
	if err != nil {
		return decimal.Zero(), false, fmt.Errorf("%w: %q: %w", ErrCorrupt, name, err)
	}
	return d, true, nil
}

// LoadAll returns the stored values among names; absent names are left out.
// Entries that do not parse are skipped and reported together in err.
func (s *Store) LoadAll(ctx context.Context, names []string) (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal, len(names))
	if len(names) == 0 {
		return out, nil
	}
	keys := make([]string, len(names))
	for i, n := range names {
		keys[i] = s.key(n)
	}
	start := time.Now()
	vals, err := s.rdb.MGet(ctx, keys...).Result()
	s.metrics.ObserveStoreOp("mget", err, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("redis MGET %d keys: %w", len(keys), err)
	}
	var bad []error
	for i, v := range vals {
		str, ok := v.(string)
		if !ok {
			continue
		}
		d, perr := decimal.Parse(str)
		if perr != nil {
			bad = append(bad, fmt.Errorf("%w: %q", ErrCorrupt, names[i]))
			continue
		}
		out[names[i]] = d
	}
	return out, errors.Join(bad...)
}

// Names lists every stored name, sorted.
func (s *Store) Names(ctx context.Context) ([]string, error) {
	start := time.Now()
	seen := make(map[string]struct{})
	iter := s.rdb.Scan(ctx, 0, s.prefix+"*", 256).Iterator()
	for iter.Next(ctx) {
		seen[strings.TrimPrefix(iter.Val(), s.prefix)] = struct{}{}
	}
	err := iter.Err()
	s.metrics.ObserveStoreOp("scan", err, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("redis SCAN %q: %w", s.prefix, err)
	}
	return slices.Sorted(maps.Keys(seen)), nil
}

func (s *Store) Delete(ctx context.Context, names ...string) error {
	if len(names) == 0 {
		return nil
	}
	keys := make([]string, len(names))
	for i, n := range names {
		keys[i] = s.key(n)
	}
	start := time.Now()
	err := s.rdb.Del(ctx, keys...).Err()
	s.metrics.ObserveStoreOp("del", err, time.Since(start))
	if err != nil {
		return fmt.Errorf("redis DEL %d keys: %w", len(keys), err)
	}
	return nil
}

// Ping reports whether Redis answers; the health checker uses it.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	if err := s.rdb.Close(); err != nil {
		return fmt.Errorf("redis close: %w", err)
	}
	return nil
}
