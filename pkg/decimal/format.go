package decimal

import (
	"strconv"
	"strings"
)

// String returns the canonical, lossless text form of d.
// Parse(d.String()) reproduces d exactly.
func (d Decimal) String() string {
	if d.sign == 0 {
		return "0"
	}
	var b strings.Builder
	b.Grow(24)
	if d.sign < 0 {
		b.WriteByte('-')
	}
	if d.layer == 0 {
		writeSignificand(&b, d.mant, d.exp)
		return b.String()
	}
	n := int64(d.layer) + 1
	if n <= 3 {
		b.WriteString(strings.Repeat("e", int(n)))
	} else {
		b.WriteString("(e^")
		b.WriteString(strconv.FormatInt(n, 10))
		b.WriteByte(')')
	}
	b.WriteString(strconv.FormatFloat(d.exp, 'f', -1, 64))
	return b.String()
}

// writeSignificand prints m × 10^e positionally for -6 <= e < 21 and in
// exponent form otherwise, moving the decimal point textually so no
// rounding happens on the way.
func writeSignificand(b *strings.Builder, m, e float64) {
	ms := strconv.FormatFloat(m, 'f', -1, 64)
	if e < -6 || e >= 21 {
		b.WriteString(ms)
		b.WriteByte('e')
		if e >= 0 {
			b.WriteByte('+')
		}
		b.WriteString(strconv.FormatFloat(e, 'f', 0, 64))
		return
	}
	digits := strings.Replace(ms, ".", "", 1)
	n := int(e)
	switch {
	case n < 0:
		b.WriteString("0.")
		b.WriteString(strings.Repeat("0", -n-1))
		b.WriteString(digits)
	case len(digits) <= n+1:
		b.WriteString(digits)
		b.WriteString(strings.Repeat("0", n+1-len(digits)))
	default:
		b.WriteString(digits[:n+1])
		b.WriteByte('.')
		b.WriteString(digits[n+1:])
	}
}

// Sci formats d as mantissa and exponent with prec digits after the point,
// e.g. "1.23e+456". Values beyond layer 0 fall back to String.
func (d Decimal) Sci(prec int) string {
	if d.sign == 0 {
		return "0"
	}
	if d.layer != 0 {
		return d.String()
	}
	if prec < 0 {
		prec = 0
	}
	e := d.exp
	ms := strconv.FormatFloat(d.mant, 'f', prec, 64)
	// rounding the mantissa may carry into the next power of ten
	if strings.HasPrefix(ms, "10") {
		e++
		ms = strconv.FormatFloat(d.mant/10, 'f', prec, 64)
	}
	var b strings.Builder
	if d.sign < 0 {
		b.WriteByte('-')
	}
	b.WriteString(ms)
	b.WriteByte('e')
	if e >= 0 {
		b.WriteByte('+')
	}
	b.WriteString(strconv.FormatFloat(e, 'f', 0, 64))
	return b.String()
}
