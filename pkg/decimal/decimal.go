package decimal

import (
	"errors"
	"fmt"
	"math"
	"strconv"
)

// Decimal is an immutable number of unbounded magnitude.
// The zero value is the number 0.
type Decimal struct {
	sign  int8    // -1, 0 or 1
	layer int32   // log reductions applied to exp beyond layer 0
	mant  float64 // significand in [1, 10) at layer 0, unused above
	exp   float64 // integral base-10 exponent at layer 0, reduced exponent above
}

const (
	expLimit    = 9e15               // layer 0 exponents stay strictly inside ±expLimit
	logExpLimit = 15.954242509439325 // log10(expLimit)
	maxLayer    = math.MaxInt32 - 1

	// quantum keeps significands at 15 significant digits, the widest
	// decimal precision a float64 round-trips.
	quantum = 1e14

	maxNormalizeSteps = 16
)

var (
	ErrSyntax          = errors.New("decimal: invalid syntax")
	ErrNotFinite       = errors.New("decimal: value is not finite")
	ErrDomain          = errors.New("decimal: argument outside domain")
	ErrUnsupportedType = errors.New("decimal: unsupported operand type")
)

var (
	zero = Decimal{}
	one  = Decimal{sign: 1, mant: 1}
)

// Zero returns the decimal 0.
func Zero() Decimal { return zero }

// One returns the decimal 1.
func One() Decimal { return one }

// New returns f as a decimal. NaN and infinities become zero; use
// [FromFloat] to detect them.
func New(f float64) Decimal {
	d, err := FromFloat(f)
	if err != nil {
		return zero
	}
	return d
}

// FromFloat converts f to a decimal, failing for NaN and infinities.
func FromFloat(f float64) (Decimal, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return zero, fmt.Errorf("%w: %v", ErrNotFinite, f)
	}
	return fromFloat(f), nil
}

// FromInt returns i as a decimal.
func FromInt(i int64) Decimal {
	return fromFloat(float64(i))
}

func fromFloat(f float64) Decimal {
	switch {
	case f > 0:
		return fromME(1, f, 0)
	case f < 0:
		return fromME(-1, -f, 0)
	}
	return zero
}

// fromME normalizes sign × m × 10^e for integral e.
func fromME(sign int8, m, e float64) Decimal {
	switch {
	case sign == 0 || m == 0 || math.IsNaN(m) || math.IsNaN(e):
		return zero
	case m < 0:
		sign, m = -sign, -m
	}
	if math.IsInf(m, 0) || math.IsInf(e, 1) {
		return saturated(sign)
	}
	if m < 1e-290 {
		// keep the scaling power inside the float64 range for subnormals
		m *= 1e300
		e -= 300
	}
	if m < 1 || m >= 10 {
		k := math.Floor(math.Log10(m))
		m /= math.Pow10(int(k))
		e += k
		for m >= 10 {
			m /= 10
			e++
		}
		for m < 1 {
			m *= 10
			e--
		}
	}
	m = math.Round(m*quantum) / quantum
	if m >= 10 {
		m = 1
		e++
	}
	switch {
	case e >= expLimit:
		return fromLayer(sign, 1, log10(e+math.Log10(m)))
	case e <= -expLimit:
		return zero
	}
	return Decimal{sign: sign, mant: m, exp: e}
}

// fromLog10 returns sign × 10^x.
func fromLog10(sign int8, x float64) Decimal {
	switch {
	case math.IsNaN(x) || sign == 0:
		return zero
	case x >= expLimit:
		return fromLayer(sign, 1, log10(x))
	case x <= -expLimit:
		return zero
	}
	e := math.Floor(x)
	return fromME(sign, pow10(x-e), e)
}

// fromLog10Split returns sign × 10^(a+b) keeping the fractional parts of a
// and b apart so large integral parts do not swamp the significand.
func fromLog10Split(sign int8, a, b float64) Decimal {
	if math.IsInf(a, 0) || math.IsInf(b, 0) || math.IsNaN(a) || math.IsNaN(b) {
		return fromLog10(sign, a+b)
	}
	ia, ib := math.Floor(a), math.Floor(b)
	e := ia + ib
	f := (a - ia) + (b - ib)
	if f >= 1 {
		f--
		e++
	}
	if math.Abs(e) >= expLimit {
		return fromLog10(sign, a+b)
	}
	return fromME(sign, pow10(f), e)
}

// fromLayer normalizes a value whose magnitude is a tower of layer+1 tens
// topped by mag.
func fromLayer(sign int8, layer int32, mag float64) Decimal {
	if sign == 0 || math.IsNaN(mag) {
		return zero
	}
	for range maxNormalizeSteps {
		switch {
		case math.IsInf(mag, 1) || layer > maxLayer:
			return saturated(sign)
		case mag >= expLimit:
			layer++
			mag = log10(mag)
		case mag < logExpLimit:
			x := pow10(mag)
			if x >= expLimit {
				return Decimal{sign: sign, layer: layer, exp: mag}
			}
			if layer == 1 {
				return fromLog10(sign, x)
			}
			layer--
			mag = x
		default:
			return Decimal{sign: sign, layer: layer, exp: mag}
		}
	}
	return Decimal{sign: sign, layer: layer, exp: mag}
}

func saturated(sign int8) Decimal {
	return Decimal{sign: sign, layer: maxLayer, exp: math.Nextafter(expLimit, 0)}
}

// Valid reports whether d satisfies the representation invariants. Values
// produced by this package are always valid; the check exists for boundary
// code that re-validates operands after a failure.
func (d Decimal) Valid() bool {
	switch {
	case d.sign == 0:
		return d.layer == 0 && d.mant == 0 && d.exp == 0
	case d.sign != 1 && d.sign != -1:
		return false
	case math.IsNaN(d.mant) || math.IsInf(d.mant, 0) || math.IsNaN(d.exp) || math.IsInf(d.exp, 0):
		return false
	case d.layer < 0:
		return false
	case d.layer == 0:
		return d.mant >= 1 && d.mant < 10 && d.exp == math.Trunc(d.exp) && math.Abs(d.exp) < expLimit
	}
	return d.mant == 0 && d.exp < expLimit && (d.exp >= logExpLimit || pow10(d.exp) >= expLimit)
}

// Sign returns -1, 0 or 1.
func (d Decimal) Sign() int { return int(d.sign) }

// IsZero reports whether d is 0.
func (d Decimal) IsZero() bool { return d.sign == 0 }

// Layer returns how many times the exponent was log-reduced to fit a float64.
// It is meant for telemetry; arithmetic never needs it.
func (d Decimal) Layer() int { return int(d.layer) }

// Neg returns -d.
func (d Decimal) Neg() Decimal {
	d.sign = -d.sign
	return d
}

// Abs returns |d|.
func (d Decimal) Abs() Decimal {
	if d.sign < 0 {
		d.sign = 1
	}
	return d
}

func (d Decimal) withSign(s int8) Decimal {
	if d.sign == 0 {
		return d
	}
	d.sign = s
	return d
}

// Float64 returns d as a float64 when 1e-100 < |d| < 1e308 or d is zero,
// and fallback otherwise. Outside that band a float64 would either overflow
// or lose most of its significant digits.
func (d Decimal) Float64(fallback float64) float64 {
	switch {
	case d.sign == 0:
		return 0
	case d.layer != 0 || d.exp >= 308 || d.exp < -100 || (d.exp == -100 && d.mant == 1):
		return fallback
	}
	return d.float()
}

// InexactFloat64 returns the nearest float64, saturating to ±Inf for
// magnitudes above the float64 range and to 0 below it.
func (d Decimal) InexactFloat64() float64 {
	switch {
	case d.sign == 0:
		return 0
	case d.layer != 0:
		return math.Inf(int(d.sign))
	}
	return d.float()
}

// float is the correctly rounded float64 of a layer 0 value.
func (d Decimal) float() float64 {
	switch {
	case d.sign == 0:
		return 0
	case d.exp > 309:
		return math.Inf(int(d.sign))
	case d.exp < -345:
		return 0
	}
	s := strconv.FormatFloat(d.mant, 'f', -1, 64) + "e" + strconv.FormatFloat(d.exp, 'f', 0, 64)
	f, _ := strconv.ParseFloat(s, 64)
	return float64(d.sign) * f
}

// DecimalValue implements [Valuer].
func (d Decimal) DecimalValue() Decimal { return d }

// MarshalText implements [encoding.TextMarshaler] with the canonical form.
func (d Decimal) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements [encoding.TextUnmarshaler].
func (d *Decimal) UnmarshalText(text []byte) error {
	v, err := Parse(string(text))
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// log10 is math.Log10 corrected to be exact on powers of ten.
func log10(x float64) float64 {
	if x <= 0 || math.IsInf(x, 0) || math.IsNaN(x) {
		return math.Log10(x)
	}
	e := math.Floor(math.Log10(x))
	p := math.Pow10(int(e))
	if p == 0 || math.IsInf(p, 0) {
		return math.Log10(x)
	}
	r := x / p
	switch {
	case r >= 10:
		e++
		r /= 10
	case r < 1:
		e--
		r *= 10
	}
	return e + math.Log10(r)
}

// pow10 is 10^x, exact for integral x in the float64 range.
func pow10(x float64) float64 {
	if x == math.Trunc(x) && x >= -323 && x <= 308 {
		return math.Pow10(int(x))
	}
	return math.Pow(10, x)
}
