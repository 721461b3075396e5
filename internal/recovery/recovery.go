// Package recovery turns malformed input and failed arithmetic into safe
// decimal values. Nothing here returns an error for bad data: every failure
// degrades to a recovered value or zero, is counted, and is logged once.
package recovery

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/mohammed-shakir/hugenum/internal/logger"
	"github.com/mohammed-shakir/hugenum/internal/observability"
	"github.com/mohammed-shakir/hugenum/pkg/decimal"
)

type Stats struct {
	ParseFailures  uint64 `json:"parse_failures"`
	ParseRecovered uint64 `json:"parse_recovered"`
	OpFailures     uint64 `json:"op_failures"`
	OpRetried      uint64 `json:"op_retried"`
	Zeroed         uint64 `json:"zeroed"`
	InvalidResults uint64 `json:"invalid_results"`
	Warnings       uint64 `json:"warnings"`
}

// Recoverer is not safe for concurrent use; it belongs to one engine.
type Recoverer struct {
	log     *slog.Logger
	metrics *observability.Metrics
	stats   Stats
}

// BinaryOp is an arithmetic step that can fail.
type BinaryOp func(a, b decimal.Decimal) (decimal.Decimal, error)

var numericRun = regexp.MustCompile(`[-+]?(?:\d+\.?\d*|\.\d+)(?:[eE][-+]?\d+)?`)

// New returns a Recoverer. log should be rate limited (see logger.Throttled);
// nil log and nil metrics are allowed.
func New(log *slog.Logger, m *observability.Metrics) *Recoverer {
	return &Recoverer{log: logger.OrNop(log), metrics: m}
}

// Parse parses s, falling back to the first numeric run in s, then to s with
// every non-numeric character removed, then to zero.
func (r *Recoverer) Parse(s string) decimal.Decimal {
	d, err := decimal.Parse(s)
	if err == nil {
		return d
	}
	r.stats.ParseFailures++
	r.metrics.IncRecovery("parse")

	out, how := r.salvage(s)
	if how == "zero" {
		r.stats.Zeroed++
	} else {
		r.stats.ParseRecovered++
	}
	r.warn("decimal parse recovered",
		slog.String("input", clip(s)),
		slog.String("strategy", how),
		slog.String("result", out.String()),
		slog.Any("err", err),
	)
	return out
}

func (r *Recoverer) salvage(s string) (decimal.Decimal, string) {
	if m := numericRun.FindString(s); m != "" {
		if d, err := decimal.Parse(m); err == nil {
			return d, "first_numeric"
		}
	}
	stripped := strings.Map(func(c rune) rune {
		switch {
		case c >= '0' && c <= '9', c == '.', c == '-', c == '+', c == 'e', c == 'E':
			return c
		}
		return -1
	}, s)
	if stripped != "" {
		if d, err := decimal.Parse(stripped); err == nil {
			return d, "stripped"
		}
	}
	return decimal.Zero(), "zero"
}

// Value converts any boundary operand to a decimal. Strings go through
// Parse; non-finite numbers and unsupported types become zero.
func (r *Recoverer) Value(v any) decimal.Decimal {
	if s, ok := v.(string); ok {
		return r.Parse(s)
	}
	d, err := decimal.From(v)
	if err == nil {
		return d
	}
	r.stats.Zeroed++
	r.metrics.IncRecovery("operand")
	r.warn("operand replaced by zero", slog.String("type", fmt.Sprintf("%T", v)), slog.Any("err", err))
	return decimal.Zero()
}

// Do converts both operands and applies fn. When that fails, each operand is
// re-validated on its own, invalid ones become zero, and fn is retried once.
// A second failure yields zero. One warning is logged per failed call.
func (r *Recoverer) Do(op string, a, b any, fn BinaryOp) decimal.Decimal {
	da, errA := decimal.From(a)
	db, errB := decimal.From(b)
	var err error
	if errA == nil && errB == nil {
		var out decimal.Decimal
		if out, err = call(fn, da, db); err == nil {
			return out
		}
	} else {
		err = firstErr(errA, errB)
	}

	r.stats.OpFailures++
	r.metrics.IncRecovery("retry")
	da = r.revalidate(a)
	db = r.revalidate(b)

	r.stats.OpRetried++
	out, retryErr := call(fn, da, db)
	if retryErr != nil {
		r.stats.Zeroed++
		out = decimal.Zero()
	}
	r.warn("arithmetic recovered",
		slog.String("op", op),
		slog.Bool("retry_ok", retryErr == nil),
		slog.String("result", out.String()),
		slog.Any("err", err),
	)
	return out
}

// revalidate never logs; the caller emits the single warning for the call.
func (r *Recoverer) revalidate(v any) decimal.Decimal {
	if s, ok := v.(string); ok {
		if d, err := decimal.Parse(s); err == nil {
			return d
		}
		d, _ := r.salvage(s)
		return d
	}
	d, err := decimal.From(v)
	if err != nil {
		return decimal.Zero()
	}
	return d
}

func call(fn BinaryOp, a, b decimal.Decimal) (out decimal.Decimal, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			out, err = decimal.Zero(), fmt.Errorf("panic: %v", rec)
		}
	}()
	return fn(a, b)
}

// ValidateCalculation reports whether result is usable. Extreme but well
// formed decimals are valid; NaN, infinities and malformed values are not.
func (r *Recoverer) ValidateCalculation(result any, op string) bool {
	ok := validResult(result)
	if !ok {
		r.stats.InvalidResults++
		r.metrics.IncRecovery("invalid_result")
		r.warn("invalid calculation result", slog.String("op", op), slog.String("type", fmt.Sprintf("%T", result)))
	}
	return ok
}

func validResult(v any) bool {
	switch t := v.(type) {
	case decimal.Decimal:
		return t.Valid()
	case *decimal.Decimal:
		return t != nil && t.Valid()
	case decimal.Valuer:
		return t.DecimalValue().Valid()
	case string:
		return decimal.IsValid(t)
	}
	return decimal.IsFiniteNumber(v)
}

// ValidateInputs is the cheap type check done before the arithmetic path.
func ValidateInputs(a, b any, op string) error {
	for i, v := range []any{a, b} {
		switch decimal.KindOf(v) {
		case decimal.KindInvalid:
			return fmt.Errorf("%s operand %d: %w: %T", op, i, decimal.ErrUnsupportedType, v)
		case decimal.KindNumber:
			if !decimal.IsFiniteNumber(v) {
				return fmt.Errorf("%s operand %d: %w", op, i, decimal.ErrNotFinite)
			}
		}
	}
	return nil
}

func (r *Recoverer) Stats() Stats { return r.stats }

func (r *Recoverer) Reset() { r.stats = Stats{} }

func (r *Recoverer) warn(msg string, attrs ...slog.Attr) {
	r.stats.Warnings++
	r.log.LogAttrs(context.Background(), slog.LevelWarn, msg, attrs...)
}

func firstErr(errs ...error) error {
	for _, e := range errs {
		if e != nil {
			return e
		}
	}
	return nil
}

func clip(s string) string {
	const limit = 64
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
