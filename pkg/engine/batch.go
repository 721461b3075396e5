package engine

import (
	"github.com/mohammed-shakir/hugenum/internal/perf"
	"github.com/mohammed-shakir/hugenum/pkg/decimal"
)

// BatchPow raises every input to exp. An identical batch is served from the
// batch cache without recomputation.
func (e *Engine) BatchPow(inputs []decimal.Decimal, exp decimal.Decimal) []decimal.Decimal {
	return e.runBatch("batch_pow", []decimal.Decimal{exp}, inputs, func(x decimal.Decimal) decimal.Decimal {
		return e.rec.Do(CachePow, x, exp, pow)
	})
}

// BatchMul multiplies every input by factor.
func (e *Engine) BatchMul(inputs []decimal.Decimal, factor decimal.Decimal) []decimal.Decimal {
	return e.runBatch("batch_mul", []decimal.Decimal{factor}, inputs, func(x decimal.Decimal) decimal.Decimal {
		return x.Mul(factor)
	})
}

// BatchMap applies fn to every input. Results are cached under op, so each
// distinct fn needs its own op name.
func (e *Engine) BatchMap(op string, inputs []decimal.Decimal, fn func(decimal.Decimal) decimal.Decimal) []decimal.Decimal {
	return e.runBatch(op, nil, inputs, func(x decimal.Decimal) decimal.Decimal {
		out := fn(x)
		if !e.rec.ValidateCalculation(out, op) {
			return decimal.Zero()
		}
		return out
	})
}

func (e *Engine) runBatch(op string, args, inputs []decimal.Decimal, fn func(decimal.Decimal) decimal.Decimal) []decimal.Decimal {
	if len(inputs) == 0 {
		return nil
	}
	out := perf.TimeValue(e.monitor, op, func() []decimal.Decimal {
		return e.batch.Run(op, args, inputs, fn)
	})
	for _, d := range out {
		e.extreme.Observe(op, d)
	}
	return out
}
