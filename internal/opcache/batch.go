package opcache

import (
	"slices"

	"github.com/mohammed-shakir/hugenum/pkg/decimal"
)

const DefaultLargeBatch = 1000

type BatchConfig struct {
	Cache Config
	// LargeThreshold is the input count at which OnLarge fires.
	LargeThreshold int
	// OnLarge runs after a large batch has been computed.
	OnLarge func(n int)
}

// Batch caches whole result arrays of homogeneous operations keyed by the
// content signature of the batch, so an unchanged batch is never recomputed.
type Batch struct {
	cache   *Adaptive[[]decimal.Decimal]
	large   int
	onLarge func(int)
	larges  uint64
}

func NewBatch(cfg BatchConfig, opts ...Option[[]decimal.Decimal]) *Batch {
	if cfg.Cache.Name == "" {
		cfg.Cache.Name = "batch"
	}
	if cfg.LargeThreshold <= 0 {
		cfg.LargeThreshold = DefaultLargeBatch
	}
	opts = append([]Option[[]decimal.Decimal]{WithSizeOf(func(v []decimal.Decimal) int {
		return 24 + 32*len(v)
	})}, opts...)
	return &Batch{
		cache:   NewAdaptive(cfg.Cache, opts...),
		large:   cfg.LargeThreshold,
		onLarge: cfg.OnLarge,
	}
}

// Run applies fn to every input, or returns the cached results of an earlier
// identical batch. args are the operands shared by every element, such as the
// exponent of a batch power. The returned slice belongs to the caller.
func (b *Batch) Run(op string, args []decimal.Decimal, inputs []decimal.Decimal, fn func(decimal.Decimal) decimal.Decimal) []decimal.Decimal {
	sig := Signature(op, args, inputs)
	if out, ok := b.cache.Get(sig); ok {
		return slices.Clone(out)
	}
	out := make([]decimal.Decimal, len(inputs))
	for i, in := range inputs {
		out[i] = fn(in)
	}
	b.cache.Put(sig, out)
	if len(inputs) >= b.large {
		b.larges++
		if b.onLarge != nil {
			b.onLarge(len(inputs))
		}
	}
	return slices.Clone(out)
}

// LargeBatches counts batches that reached the large threshold.
func (b *Batch) LargeBatches() uint64 { return b.larges }

func (b *Batch) Name() string     { return b.cache.Name() }
func (b *Batch) Stats() Stats     { return b.cache.Stats() }
func (b *Batch) Clear()           { b.cache.Clear() }
func (b *Batch) Footprint() int64 { return b.cache.Footprint() }
func (b *Batch) ResetStats() {
	b.cache.ResetStats()
	b.larges = 0
}
