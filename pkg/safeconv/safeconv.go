// Package safeconv is the sanctioned boundary between decimals and native
// numbers or display text. Every function accepts a Decimal, a Valuer, a
// native number or a string, and never fails: bad input degrades to a
// fallback or to zero through the recovery layer.
package safeconv

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/mohammed-shakir/hugenum/internal/recovery"
	"github.com/mohammed-shakir/hugenum/pkg/decimal"
)

// ExtremeThreshold is the single magnitude at and above which a value is
// extreme: the largest power of ten a float64 holds.
const ExtremeThreshold = 1e308

// Values with magnitude in [displayMin, displayMax) format positionally.
const (
	displayMin = 0.01
	displayMax = 1e15
	sciDigits  = 2
)

var extreme = decimal.New(ExtremeThreshold)

type Converter struct {
	rec     *recovery.Recoverer
	printer *message.Printer
}

type Option func(*Converter)

// WithLanguage selects the locale used for positional formatting.
func WithLanguage(tag language.Tag) Option {
	return func(c *Converter) { c.printer = message.NewPrinter(tag) }
}

// New returns a Converter that routes failures through rec. A nil rec gets a
// private recoverer without logging.
func New(rec *recovery.Recoverer, opts ...Option) *Converter {
	if rec == nil {
		rec = recovery.New(nil, nil)
	}
	c := &Converter{rec: rec, printer: message.NewPrinter(language.English)}
	for _, o := range opts {
		o(c)
	}
	return c
}

// ToNumber returns v as a float64, or fallback when v is extreme, not finite
// or too small to keep its digits. Zero is exact and returns 0, not fallback,
// and so does input that recovery turns into zero: a sentinel fallback
// cannot tell "garbage" from "0".
func (c *Converter) ToNumber(v any, fallback float64) float64 {
	if decimal.KindOf(v) == decimal.KindNumber && !decimal.IsFiniteNumber(v) {
		return fallback
	}
	d := c.rec.Value(v)
	if isExtreme(d) {
		return fallback
	}
	return d.Float64(fallback)
}

// ToString returns the canonical text of a decimal and "0" for anything else.
func (c *Converter) ToString(v any) string {
	switch t := v.(type) {
	case *decimal.Decimal:
		if t == nil {
			return "0"
		}
		return t.String()
	case decimal.Valuer:
		return t.DecimalValue().String()
	}
	return "0"
}

// IsExtreme reports whether |v| >= ExtremeThreshold. Non-finite native
// numbers are extreme.
func (c *Converter) IsExtreme(v any) bool {
	if decimal.KindOf(v) == decimal.KindNumber && !decimal.IsFiniteNumber(v) {
		return true
	}
	return isExtreme(c.rec.Value(v))
}

// IsExtremeDecimal is IsExtreme without the boundary conversion.
func IsExtremeDecimal(d decimal.Decimal) bool { return isExtreme(d) }

func isExtreme(d decimal.Decimal) bool {
	return d.CmpAbs(extreme) >= 0
}

// Format renders v for display: grouped positional text inside the normal
// range, two-digit scientific notation outside it, and the canonical form
// for extreme values. It is deterministic for a given value and locale.
func (c *Converter) Format(v any) string {
	d := c.rec.Value(v)
	switch {
	case d.IsZero():
		return "0"
	case isExtreme(d):
		return d.String()
	}
	f := d.Float64(0)
	if a := abs(f); f != 0 && a >= displayMin && a < displayMax {
		return c.printer.Sprintf("%v", number.Decimal(f, number.MaxFractionDigits(2)))
	}
	return d.Sci(sciDigits)
}

func (c *Converter) Add(a, b any) decimal.Decimal {
	return c.rec.Do("add", a, b, func(x, y decimal.Decimal) (decimal.Decimal, error) {
		return x.Add(y), nil
	})
}

func (c *Converter) Multiply(a, b any) decimal.Decimal {
	return c.rec.Do("mul", a, b, func(x, y decimal.Decimal) (decimal.Decimal, error) {
		return x.Mul(y), nil
	})
}

// Divide returns a / b, and zero when b is zero.
func (c *Converter) Divide(a, b any) decimal.Decimal {
	return c.rec.Do("div", a, b, func(x, y decimal.Decimal) (decimal.Decimal, error) {
		return x.Div(y), nil
	})
}

// Gte reports a >= b after recovering both operands.
func (c *Converter) Gte(a, b any) bool {
	return c.rec.Value(a).Gte(c.rec.Value(b))
}

// IsValidDecimalString reports whether s is plain, scientific or
// iterated-exponent decimal text.
func IsValidDecimalString(s string) bool { return decimal.IsValid(s) }

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
