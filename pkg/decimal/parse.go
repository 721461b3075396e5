package decimal

import (
	"fmt"
	"strconv"
	"strings"
)

// Parse converts text in plain, scientific or iterated-exponent form into a
// decimal. Surrounding whitespace is ignored. See the package documentation
// for the grammar.
func Parse(s string) (Decimal, error) {
	t := strings.TrimSpace(s)
	d, err := parseNumber(t, 0)
	if err != nil {
		return zero, fmt.Errorf("%w: %q", ErrSyntax, s)
	}
	return d, nil
}

// MustParse is like [Parse] but panics on error. It is meant for constants
// and tests.
func MustParse(s string) Decimal {
	d, err := Parse(s)
	if err != nil {
		panic(fmt.Sprintf("MustParse(%q) failed: %v", s, err))
	}
	return d
}

// IsValid reports whether s is accepted by [Parse].
func IsValid(s string) bool {
	_, err := parseNumber(strings.TrimSpace(s), 0)
	return err == nil
}

const maxParseDepth = 8

func parseNumber(s string, depth int) (Decimal, error) {
	if depth > maxParseDepth || s == "" {
		return zero, ErrSyntax
	}
	var neg bool
	switch s[0] {
	case '-':
		neg = true
		s = s[1:]
	case '+':
		s = s[1:]
	}
	if s == "" {
		return zero, ErrSyntax
	}

	var (
		d   Decimal
		err error
	)
	switch {
	case strings.HasPrefix(s, "(e^") || strings.HasPrefix(s, "(E^"):
		d, err = parseTower(s, depth)
	case s[0] == 'e' || s[0] == 'E':
		n := 0
		for n < len(s) && (s[n] == 'e' || s[n] == 'E') {
			n++
		}
		d, err = parseIterated(s[n:], n, depth)
	default:
		d, err = parseScientific(s, depth)
	}
	if err != nil {
		return zero, err
	}
	if neg {
		d = d.Neg()
	}
	return d, nil
}

// parseTower handles "(e^N)x".
func parseTower(s string, depth int) (Decimal, error) {
	end := strings.IndexByte(s, ')')
	if end < 0 {
		return zero, ErrSyntax
	}
	count := s[3:end]
	if count == "" || !allDigits(count) {
		return zero, ErrSyntax
	}
	n, err := strconv.Atoi(count)
	if err != nil || n > maxLayer {
		return zero, ErrSyntax
	}
	return parseIterated(s[end+1:], n, depth)
}

// parseIterated handles n leading exponentiations of rest. A rest that fits
// a float64 is read at full double precision so tower forms round-trip.
func parseIterated(rest string, n, depth int) (Decimal, error) {
	if n == 0 {
		return parseNumber(rest, depth+1)
	}
	if isFloatLiteral(rest) {
		if f, err := strconv.ParseFloat(rest, 64); err == nil {
			if n == 1 {
				return fromLog10(1, f), nil
			}
			return fromLayer(1, int32(n-1), f), nil
		}
	}
	inner, err := parseNumber(rest, depth+1)
	if err != nil {
		return zero, err
	}
	return iterExp10(inner, n), nil
}

// parseScientific handles a significand with an optional exponent that may
// itself be any number.
func parseScientific(s string, depth int) (Decimal, error) {
	mant, expText, hasExp := s, "", false
	if i := strings.IndexAny(s, "eE"); i >= 0 {
		mant, expText, hasExp = s[:i], s[i+1:], true
	}
	m, shift, ok := significand(mant)
	if !ok || (hasExp && expText == "") {
		return zero, ErrSyntax
	}
	if !hasExp {
		return fromME(1, m, shift), nil
	}
	if isInteger(expText) {
		// exponents too long for a float64 fall through to the general path
		if e, err := strconv.ParseFloat(expText, 64); err == nil {
			return fromME(1, m, e+shift), nil
		}
	}
	exp, err := parseNumber(expText, depth+1)
	if err != nil {
		return zero, err
	}
	if m == 0 {
		return zero, nil
	}
	// m × 10^(shift + exp) = 10^(exp + shift + log10(m))
	return exp10(exp.Add(fromFloat(shift + log10(m)))), nil
}

// significand reads digits with at most one point as m × 10^shift with m in
// [1, 10), or m == 0 when every digit is zero.
func significand(s string) (m, shift float64, ok bool) {
	intPart, frac := s, ""
	if dot := strings.IndexByte(s, '.'); dot >= 0 {
		intPart, frac = s[:dot], s[dot+1:]
	}
	all := intPart + frac
	if all == "" || !allDigits(all) {
		return 0, 0, false
	}
	lead := 0
	for lead < len(all) && all[lead] == '0' {
		lead++
	}
	if lead == len(all) {
		return 0, 0, true
	}
	digits := strings.TrimRight(all[lead:], "0")
	text := digits[:1]
	if len(digits) > 1 {
		text += "." + digits[1:]
	}
	m, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, 0, false
	}
	return m, float64(len(intPart) - 1 - lead), true
}

func iterExp10(d Decimal, n int) Decimal {
	for n > 0 {
		switch {
		case d.sign > 0 && d.layer >= 1:
			l := min(int64(d.layer)+int64(n), maxLayer+1)
			return fromLayer(1, int32(l), d.exp)
		case n >= 2 && d.layer == 0 && d.exp < 16:
			return fromLayer(1, int32(n-1), d.float())
		}
		d = exp10(d)
		n--
	}
	return d
}

// isFloatLiteral accepts [sign] significand [('e'|'E') [sign] digits], the
// subset of strconv.ParseFloat syntax this package allows.
func isFloatLiteral(s string) bool {
	if s != "" && (s[0] == '+' || s[0] == '-') {
		s = s[1:]
	}
	mant, exp := s, ""
	if i := strings.IndexAny(s, "eE"); i >= 0 {
		mant, exp = s[:i], s[i+1:]
		if !isInteger(exp) {
			return false
		}
	}
	_, _, ok := significand(mant)
	return ok
}

func isInteger(s string) bool {
	if s != "" && (s[0] == '+' || s[0] == '-') {
		s = s[1:]
	}
	return s != "" && allDigits(s)
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
