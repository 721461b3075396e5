package engine

import (
	"github.com/mohammed-shakir/hugenum/internal/opcache"
	"github.com/mohammed-shakir/hugenum/internal/perf"
	"github.com/mohammed-shakir/hugenum/pkg/decimal"
)

type unaryFn func(decimal.Decimal) (decimal.Decimal, error)

var unary = map[string]unaryFn{
	CacheExp:  func(d decimal.Decimal) (decimal.Decimal, error) { return d.Exp(), nil },
	CacheLn:   decimal.Decimal.Ln,
	CacheSqrt: decimal.Decimal.Sqrt,
}

func pow(a, b decimal.Decimal) (decimal.Decimal, error) { return a.Pow(b) }

// Value converts v to a decimal, recovering malformed input to zero.
func (e *Engine) Value(v any) decimal.Decimal { return e.rec.Value(v) }

// Parse returns the decimal for s, reusing a pooled instance stored under
// its canonical string, so "1e3" finds a released 1000.
func (e *Engine) Parse(s string) decimal.Decimal {
	d := e.rec.Parse(s)
	return e.pool.Get(d.String(), func() decimal.Decimal { return d })
}

// Release hands d back to the pool and reports whether it was kept.
func (e *Engine) Release(d decimal.Decimal) bool { return e.pool.Put(d) }

func (e *Engine) Add(a, b any) decimal.Decimal {
	return e.binary("add", a, b, func(x, y decimal.Decimal) (decimal.Decimal, error) { return x.Add(y), nil })
}

func (e *Engine) Sub(a, b any) decimal.Decimal {
	return e.binary("sub", a, b, func(x, y decimal.Decimal) (decimal.Decimal, error) { return x.Sub(y), nil })
}

func (e *Engine) Mul(a, b any) decimal.Decimal {
	return e.binary("mul", a, b, func(x, y decimal.Decimal) (decimal.Decimal, error) { return x.Mul(y), nil })
}

// Div yields zero for a zero divisor.
func (e *Engine) Div(a, b any) decimal.Decimal {
	return e.binary("div", a, b, func(x, y decimal.Decimal) (decimal.Decimal, error) { return x.Div(y), nil })
}

func (e *Engine) binary(op string, a, b any, fn func(x, y decimal.Decimal) (decimal.Decimal, error)) decimal.Decimal {
	out := perf.TimeValue(e.monitor, op, func() decimal.Decimal { return e.rec.Do(op, a, b, fn) })
	e.extreme.Observe(op, out)
	return out
}

// Pow is base raised to exp, cached by operands. Undefined results such as a
// negative base to a fractional power recover to zero.
func (e *Engine) Pow(base, exp any) decimal.Decimal {
	b, x := e.rec.Value(base), e.rec.Value(exp)
	key := opcache.Key(CachePow, b, x)
	return e.cached(CachePow, e.pow, key, func() decimal.Decimal { return e.rec.Do(CachePow, b, x, pow) })
}

func (e *Engine) Exp(x any) decimal.Decimal  { return e.unaryOp(CacheExp, e.exp, x) }
func (e *Engine) Ln(x any) decimal.Decimal   { return e.unaryOp(CacheLn, e.ln, x) }
func (e *Engine) Sqrt(x any) decimal.Decimal { return e.unaryOp(CacheSqrt, e.sqrt, x) }

func (e *Engine) unaryOp(op string, c *opcache.Adaptive[decimal.Decimal], v any) decimal.Decimal {
	d := e.rec.Value(v)
	fn := unary[op]
	return e.cached(op, c, opcache.Key(op, d), func() decimal.Decimal {
		return e.rec.Do(op, d, decimal.Zero(), func(a, _ decimal.Decimal) (decimal.Decimal, error) { return fn(a) })
	})
}

func (e *Engine) cached(op string, c *opcache.Adaptive[decimal.Decimal], key string, compute func() decimal.Decimal) decimal.Decimal {
	out := perf.TimeValue(e.monitor, op, func() decimal.Decimal { return c.GetOrCompute(key, compute) })
	e.extreme.Observe(op, out)
	e.predictor.Observe(key, e.preload)
	return out
}

// preload computes a predicted key into its cache. It never logs or
// counts recoveries: a key that fails to compute is simply not loaded.
func (e *Engine) preload(key string) bool {
	op, args, err := opcache.SplitKey(key)
	if err != nil {
		return false
	}
	var (
		c   *opcache.Adaptive[decimal.Decimal]
		out decimal.Decimal
	)
	switch {
	case op == CachePow && len(args) == 2:
		c = e.pow
		if c.Contains(key) {
			return false
		}
		out, err = pow(args[0], args[1])
	case len(args) == 1 && unary[op] != nil:
		c = e.unaryCache(op)
		if c.Contains(key) {
			return false
		}
		out, err = unary[op](args[0])
	default:
		return false
	}
	if err != nil || !out.Valid() {
		return false
	}
	c.Put(key, out)
	return true
}

func (e *Engine) unaryCache(op string) *opcache.Adaptive[decimal.Decimal] {
	switch op {
	case CacheExp:
		return e.exp
	case CacheLn:
		return e.ln
	default:
		return e.sqrt
	}
}
