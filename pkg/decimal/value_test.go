package decimal

import (
	"errors"
	"math"
	"testing"
)

type score struct{ v Decimal }

func (s score) DecimalValue() Decimal { return s.v }

func TestKindOf(t *testing.T) {
	var nilDec *Decimal
	d := New(1)
	cases := []struct {
		in   any
		want Kind
	}{
		{New(3), KindDecimal},
		{&d, KindDecimal},
		{nilDec, KindInvalid},
		{score{New(2)}, KindDecimal},
		{3.5, KindNumber},
		{uint8(7), KindNumber},
		{"1e500", KindString},
		{nil, KindInvalid},
		{struct{}{}, KindInvalid},
	}
	for _, tc := range cases {
		if got := KindOf(tc.in); got != tc.want {
			t.Fatalf("KindOf(%#v) = %s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestFrom_ConvertsSupportedOperands(t *testing.T) {
	d := MustParse("ee20")
	cases := []struct {
		in   any
		want string
	}{
		{42, "42"},
		{int64(-7), "-7"},
		{uint32(9), "9"},
		{float32(0.5), "0.5"},
		{1e100, "1e+100"},
		{"1e500", "1e+500"},
		{d, "ee20"},
		{&d, "ee20"},
		{score{New(12)}, "12"},
	}
	for _, tc := range cases {
		got, err := From(tc.in)
		if err != nil {
			t.Fatalf("From(%#v): %v", tc.in, err)
		}
		if got.String() != tc.want {
			t.Fatalf("From(%#v) = %s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestFrom_Errors(t *testing.T) {
	var nilDec *Decimal
	cases := []struct {
		in   any
		want error
	}{
		{"abc", ErrSyntax},
		{math.NaN(), ErrNotFinite},
		{math.Inf(-1), ErrNotFinite},
		{nil, ErrUnsupportedType},
		{nilDec, ErrUnsupportedType},
		{[]int{1}, ErrUnsupportedType},
		{Decimal{sign: 1, mant: 42}, ErrNotFinite},
	}
	for _, tc := range cases {
		if _, err := From(tc.in); !errors.Is(err, tc.want) {
			t.Fatalf("From(%#v) error = %v, want %v", tc.in, err, tc.want)
		}
	}
}

func TestIsFiniteNumber(t *testing.T) {
	if !IsFiniteNumber(1.5) || !IsFiniteNumber(3) {
		t.Fatalf("finite numbers rejected")
	}
	if IsFiniteNumber(math.NaN()) || IsFiniteNumber(math.Inf(1)) || IsFiniteNumber("1") {
		t.Fatalf("non-numbers accepted")
	}
}
