package safeconv

import "github.com/mohammed-shakir/hugenum/pkg/decimal"

// Magnitude is a coarse, ordered size class for telemetry and display.
// Arithmetic must never branch on it.
type Magnitude int

const (
	Negative Magnitude = iota
	Zero
	Tiny    // below 1
	Small   // below 1e6
	Medium  // below 1e21
	Large   // below ExtremeThreshold
	Extreme // at or above ExtremeThreshold
)

var magnitudeNames = [...]string{"negative", "zero", "tiny", "small", "medium", "large", "extreme"}

func (m Magnitude) String() string {
	if m < 0 || int(m) >= len(magnitudeNames) {
		return "unknown"
	}
	return magnitudeNames[m]
}

var (
	million = decimal.New(1e6)
	sextill = decimal.New(1e21)
)

// DescribeMagnitude classifies v.
func (c *Converter) DescribeMagnitude(v any) Magnitude {
	if decimal.KindOf(v) == decimal.KindNumber && !decimal.IsFiniteNumber(v) {
		return Extreme
	}
	return Describe(c.rec.Value(v))
}

// Describe classifies d.
func Describe(d decimal.Decimal) Magnitude {
	switch {
	case d.Sign() < 0:
		return Negative
	case d.IsZero():
		return Zero
	case d.Lt(decimal.One()):
		return Tiny
	case d.Lt(million):
		return Small
	case d.Lt(sextill):
		return Medium
	case !isExtreme(d):
		return Large
	}
	return Extreme
}
