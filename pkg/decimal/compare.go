package decimal

import "cmp"

// cmpAbs orders magnitudes by layer, then exponent, then significand.
func cmpAbs(a, b Decimal) int {
	switch {
	case a.sign == 0 || b.sign == 0:
		return cmp.Compare(a.sign*a.sign, b.sign*b.sign)
	case a.layer != b.layer:
		return cmp.Compare(a.layer, b.layer)
	case a.exp != b.exp:
		return cmp.Compare(a.exp, b.exp)
	}
	return cmp.Compare(a.mant, b.mant)
}

// Cmp compares d and o and returns -1, 0 or +1.
func (d Decimal) Cmp(o Decimal) int {
	if d.sign != o.sign {
		return cmp.Compare(d.sign, o.sign)
	}
	c := cmpAbs(d, o)
	if d.sign < 0 {
		return -c
	}
	return c
}

// CmpAbs compares |d| and |o|.
func (d Decimal) CmpAbs(o Decimal) int { return cmpAbs(d, o) }

func (d Decimal) Eq(o Decimal) bool  { return d.Cmp(o) == 0 }
func (d Decimal) Lt(o Decimal) bool  { return d.Cmp(o) < 0 }
func (d Decimal) Lte(o Decimal) bool { return d.Cmp(o) <= 0 }
func (d Decimal) Gt(o Decimal) bool  { return d.Cmp(o) > 0 }
func (d Decimal) Gte(o Decimal) bool { return d.Cmp(o) >= 0 }

// Max returns the larger of d and o.
func Max(d, o Decimal) Decimal {
	if d.Cmp(o) >= 0 {
		return d
	}
	return o
}

// Min returns the smaller of d and o.
func Min(d, o Decimal) Decimal {
	if d.Cmp(o) <= 0 {
		return d
	}
	return o
}
