package decimal

import (
	"fmt"
	"math"
)

// Valuer is implemented by anything that can present itself as a Decimal.
// It is the single capability check used at API boundaries in place of
// probing for representation fields.
type Valuer interface {
	DecimalValue() Decimal
}

// Kind classifies operands accepted at API boundaries.
type Kind int

const (
	KindInvalid Kind = iota
	KindDecimal
	KindNumber
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindDecimal:
		return "decimal"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	default:
		return "invalid"
	}
}

// KindOf classifies v without converting it.
func KindOf(v any) Kind {
	switch t := v.(type) {
	case *Decimal:
		if t == nil {
			return KindInvalid
		}
		return KindDecimal
	case Valuer:
		return KindDecimal
	case float64, float32, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return KindNumber
	case string:
		return KindString
	}
	return KindInvalid
}

// From converts a Decimal, Valuer, native number or string to a Decimal.
func From(v any) (Decimal, error) {
	switch t := v.(type) {
	case Decimal:
		if !t.Valid() {
			return zero, fmt.Errorf("%w: malformed decimal", ErrNotFinite)
		}
		return t, nil
	case *Decimal:
		if t == nil {
			return zero, fmt.Errorf("%w: nil *Decimal", ErrUnsupportedType)
		}
		return From(*t)
	case Valuer:
		return From(t.DecimalValue())
	case float64:
		return FromFloat(t)
	case float32:
		return FromFloat(float64(t))
	case int:
		return FromInt(int64(t)), nil
	case int8:
		return FromInt(int64(t)), nil
	case int16:
		return FromInt(int64(t)), nil
	case int32:
		return FromInt(int64(t)), nil
	case int64:
		return FromInt(t), nil
	case uint:
		return New(float64(t)), nil
	case uint8:
		return New(float64(t)), nil
	case uint16:
		return New(float64(t)), nil
	case uint32:
		return New(float64(t)), nil
	case uint64:
		return New(float64(t)), nil
	case string:
		return Parse(t)
	case nil:
		return zero, fmt.Errorf("%w: nil", ErrUnsupportedType)
	}
	return zero, fmt.Errorf("%w: %T", ErrUnsupportedType, v)
}

// IsFiniteNumber reports whether v is a native number that is not NaN or ±Inf.
func IsFiniteNumber(v any) bool {
	switch t := v.(type) {
	case float64:
		return !math.IsNaN(t) && !math.IsInf(t, 0)
	case float32:
		f := float64(t)
		return !math.IsNaN(f) && !math.IsInf(f, 0)
	}
	return KindOf(v) == KindNumber
}
