package decimal

import (
	"fmt"
	"math"
)

// precisionGap is the exponent distance beyond which the smaller addend
// cannot change a 15-digit significand.
const precisionGap = 17

// nativeExp bounds the layer 0 exponents handed to math functions directly.
const nativeExp = 300

// Add returns d + o.
func (d Decimal) Add(o Decimal) Decimal {
	switch {
	case d.sign == 0:
		return o
	case o.sign == 0:
		return d
	}
	big, small := d, o
	if cmpAbs(d, o) < 0 {
		big, small = o, d
	}
	if big.layer > 0 {
		// the smaller operand is below the resolution of the reduced
		// exponent; only exact cancellation matters
		if cmpAbs(big, small) == 0 && big.sign != small.sign {
			return zero
		}
		return big
	}
	gap := big.exp - small.exp
	if gap > precisionGap {
		return big
	}
	m := big.mant
	sm := small.mant / pow10(gap)
	if big.sign == small.sign {
		m += sm
	} else {
		m -= sm
	}
	return fromME(big.sign, m, big.exp)
}

// Sub returns d - o.
func (d Decimal) Sub(o Decimal) Decimal {
	return d.Add(o.Neg())
}

// Mul returns d * o.
func (d Decimal) Mul(o Decimal) Decimal {
	if d.sign == 0 || o.sign == 0 {
		return zero
	}
	s := d.sign * o.sign
	if d.layer == 0 && o.layer == 0 {
		return fromME(s, d.mant*o.mant, d.exp+o.exp)
	}
	return exp10(d.logAbs().Add(o.logAbs())).withSign(s)
}

// Div returns d / o. Division by zero returns zero instead of failing:
// callers that need strict semantics test the divisor first.
func (d Decimal) Div(o Decimal) Decimal {
	if d.sign == 0 || o.sign == 0 {
		return zero
	}
	s := d.sign * o.sign
	if d.layer == 0 && o.layer == 0 {
		return fromME(s, d.mant/o.mant, d.exp-o.exp)
	}
	return exp10(d.logAbs().Sub(o.logAbs())).withSign(s)
}

// Pow returns d raised to e. A negative base requires an integral exponent.
// Zero raised to any non-zero power yields zero.
func (d Decimal) Pow(e Decimal) (Decimal, error) {
	switch {
	case e.sign == 0:
		return one, nil
	case d.sign == 0:
		return zero, nil
	}
	s := int8(1)
	if d.sign < 0 {
		integral, odd := e.parity()
		if !integral {
			return zero, fmt.Errorf("%w: pow(%s, %s)", ErrDomain, d, e)
		}
		if odd {
			s = -1
		}
	}
	if d.layer == 0 && e.layer == 0 && e.exp < 16 {
		p := e.float()
		if math.Abs(d.exp) < nativeExp {
			r := math.Pow(d.Abs().float(), p)
			if !math.IsInf(r, 0) && r >= 1e-300 {
				return fromFloat(r).withSign(s), nil
			}
		}
		return fromLog10Split(s, p*d.exp, p*math.Log10(d.mant)), nil
	}
	return exp10(d.logAbs().Mul(e)).withSign(s), nil
}

// Sqrt returns the square root of d.
func (d Decimal) Sqrt() (Decimal, error) {
	switch {
	case d.sign < 0:
		return zero, fmt.Errorf("%w: sqrt(%s)", ErrDomain, d)
	case d.sign == 0:
		return zero, nil
	case d.layer == 0:
		m, e := d.mant, d.exp
		if math.Mod(e, 2) != 0 {
			m *= 10
			e--
		}
		return fromME(1, math.Sqrt(m), e/2), nil
	case d.layer == 1:
		return fromLayer(1, 1, d.exp-math.Log10(2)), nil
	}
	// halving a layer 2 exponent is below float64 resolution
	return d, nil
}

// Exp returns e^d.
func (d Decimal) Exp() Decimal {
	if d.sign == 0 {
		return one
	}
	if d.layer == 0 && d.exp < 16 {
		x := d.float()
		if r := math.Exp(x); !math.IsInf(r, 0) && r >= 1e-300 {
			return fromFloat(r)
		}
		return fromLog10(1, x*math.Log10E)
	}
	if d.sign < 0 {
		return zero
	}
	return exp10(d.Mul(log10e))
}

var (
	log10e = fromFloat(math.Log10E)
	ln10   = fromFloat(math.Ln10)
)

// Ln returns the natural logarithm of d.
func (d Decimal) Ln() (Decimal, error) {
	if d.sign <= 0 {
		return zero, fmt.Errorf("%w: ln(%s)", ErrDomain, d)
	}
	if d.layer == 0 && math.Abs(d.exp) < nativeExp {
		return fromFloat(math.Log(d.float())), nil
	}
	return d.logAbs().Mul(ln10), nil
}

// Log10 returns the base-10 logarithm of d.
func (d Decimal) Log10() (Decimal, error) {
	if d.sign <= 0 {
		return zero, fmt.Errorf("%w: log10(%s)", ErrDomain, d)
	}
	return d.logAbs(), nil
}

// Log returns the logarithm of d in the given base.
func (d Decimal) Log(base Decimal) (Decimal, error) {
	if base.sign <= 0 || base == one {
		return zero, fmt.Errorf("%w: log base %s", ErrDomain, base)
	}
	n, err := d.Log10()
	if err != nil {
		return zero, err
	}
	return n.Div(base.logAbs()), nil
}

// logAbs returns log10(|d|) for non-zero d, one layer down.
func (d Decimal) logAbs() Decimal {
	switch {
	case d.sign == 0:
		return zero
	case d.layer == 0:
		return fromFloat(d.exp + math.Log10(d.mant))
	case d.layer == 1:
		return fromLog10(1, d.exp)
	}
	return Decimal{sign: 1, layer: d.layer - 1, exp: d.exp}
}

// exp10 returns 10^e.
func exp10(e Decimal) Decimal {
	switch {
	case e.sign == 0:
		return one
	case e.layer == 0 && e.exp < 16:
		return fromLog10(1, e.float())
	case e.sign < 0:
		return zero
	case e.layer == 0:
		return fromLayer(1, 1, e.exp+math.Log10(e.mant))
	}
	return fromLayer(1, e.layer+1, e.exp)
}

// parity reports whether d is an integer and, if so, whether it is odd.
// Significands carry 15 digits, so every exponent of 15 or more is even.
func (d Decimal) parity() (integral, odd bool) {
	switch {
	case d.sign == 0:
		return true, false
	case d.layer != 0 || d.exp >= 15:
		return true, false
	case d.exp < 0:
		return false, false
	}
	v := d.Abs().float()
	if v != math.Trunc(v) {
		return false, false
	}
	return true, math.Mod(v, 2) == 1
}
