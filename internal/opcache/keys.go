package opcache

import (
	"errors"
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/mohammed-shakir/hugenum/pkg/decimal"
)

// Key is the cache key of a single operation: the operation name followed by
// the canonical strings of its operands.
func Key(op string, operands ...decimal.Decimal) string {
	var b strings.Builder
	b.Grow(len(op) + 1 + 24*len(operands))
	b.WriteString(op)
	b.WriteByte(':')
	for i, d := range operands {
		if i > 0 {
			b.WriteByte('|')
		}
		b.WriteString(d.String())
	}
	return b.String()
}

var ErrBadKey = errors.New("opcache: malformed key")

// SplitKey reverses Key.
func SplitKey(key string) (op string, operands []decimal.Decimal, err error) {
	op, rest, ok := strings.Cut(key, ":")
	if !ok || op == "" || rest == "" {
		return "", nil, fmt.Errorf("%w: %q", ErrBadKey, key)
	}
	for part := range strings.SplitSeq(rest, "|") {
		d, err := decimal.Parse(part)
		if err != nil {
			return "", nil, fmt.Errorf("%w: %q: %w", ErrBadKey, key, err)
		}
		operands = append(operands, d)
	}
	return op, operands, nil
}

// Signature identifies a whole batch: operation, extra arguments, the
// xxhash of every input's canonical string and the canonical first and last
// inputs in clear. Equal inputs in equal order always give the same
// signature; two different batches share one only if they agree on length
// and both ends and their 64-bit hashes also collide.
func Signature(op string, args []decimal.Decimal, inputs []decimal.Decimal) string {
	h := xxhash.New()
	for _, a := range args {
		_, _ = h.WriteString(a.String())
		_, _ = h.Write([]byte{0})
	}
	_, _ = h.Write([]byte{1})
	for _, in := range inputs {
		_, _ = h.WriteString(in.String())
		_, _ = h.Write([]byte{0})
	}
	var first, last string
	if len(inputs) > 0 {
		first, last = inputs[0].String(), inputs[len(inputs)-1].String()
	}
	return fmt.Sprintf("%s:n=%d:h=%016x:%s..%s", op, len(inputs), h.Sum64(), first, last)
}
