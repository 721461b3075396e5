package valuestore

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/mohammed-shakir/hugenum/internal/observability"
	"github.com/mohammed-shakir/hugenum/pkg/decimal"
)

// creates a store connected to miniredis for testing
func newMini(t *testing.T, ttl time.Duration, m *observability.IOMetrics) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	t.Cleanup(cancel)

	s, err := New(ctx, Config{Addr: mr.Addr(), Prefix: "test:", TTL: ttl}, m)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func TestSaveLoad_RoundTripsCanonicalStrings(t *testing.T) {
	s, mr := newMini(t, 0, nil)
	ctx := context.Background()

	for _, in := range []string{"0", "1000", "0.000015", "3e+100", "1e+500", "ee20", "-ee30", "(e^5)320"} {
		d := decimal.MustParse(in)
		if err := s.Save(ctx, in, d); err != nil {
			t.Fatalf("Save(%s): %v", in, err)
		}
		got, ok, err := s.Load(ctx, in)
		if err != nil || !ok || !got.Eq(d) || got.String() != d.String() {
			t.Fatalf("Load(%s)=%s ok=%v err=%v", in, got, ok, err)
		}
	}
	if raw, _ := mr.Get("test:ee20"); raw != "ee20" {
		t.Fatalf("stored text=%q", raw)
	}

	if _, ok, err := s.Load(ctx, "missing"); ok || err != nil {
		t.Fatalf("missing: ok=%v err=%v", ok, err)
	}
}

func TestSaveAllLoadAll(t *testing.T) {
	s, mr := newMini(t, 0, nil)
	ctx := context.Background()

	vals := map[string]decimal.Decimal{
		"gold":   decimal.MustParse("1.5e300"),
		"energy": decimal.MustParse("ee15"),
	}
	if err := s.SaveAll(ctx, vals); err != nil {
		t.Fatalf("SaveAll: %v", err)
	}
	_ = mr.Set("test:broken", "not a number")

	got, err := s.LoadAll(ctx, []string{"gold", "energy", "nope", "broken"})
	if !errors.Is(err, ErrCorrupt) {
		t.Fatalf("want ErrCorrupt, got %v", err)
	}
	if len(got) != 2 || !got["gold"].Eq(vals["gold"]) || !got["energy"].Eq(vals["energy"]) {
		t.Fatalf("LoadAll=%v", got)
	}
	if _, _, err := s.Load(ctx, "broken"); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("Load broken err=%v", err)
	}

	names, err := s.Names(ctx)
	if err != nil || len(names) != 3 || names[0] != "broken" || names[2] != "gold" {
		t.Fatalf("Names=%v err=%v", names, err)
	}
	if err := s.Delete(ctx, "broken"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if mr.Exists("test:broken") {
		t.Fatalf("broken still stored")
	}
}

func TestTTLExpiry(t *testing.T) {
	s, mr := newMini(t, 2*time.Second, nil)
	ctx := context.Background()
	if err := s.Save(ctx, "k", decimal.New(7)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	mr.FastForward(3 * time.Second)
	if _, ok, err := s.Load(ctx, "k"); ok || err != nil {
		t.Fatalf("expired value still loaded: ok=%v err=%v", ok, err)
	}
}

func TestContextCanceled(t *testing.T) {
	s, _ := newMini(t, 0, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Save(ctx, "k", decimal.One()); err == nil {
		t.Fatalf("expected error on Save with canceled context")
	}
	if _, _, err := s.Load(ctx, "k"); err == nil {
		t.Fatalf("expected error on Load with canceled context")
	}
}

func TestNew_Errors(t *testing.T) {
	if _, err := New(context.Background(), Config{}, nil); !errors.Is(err, ErrNoAddr) {
		t.Fatalf("err=%v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	if _, err := New(ctx, Config{Addr: "127.0.0.1:1"}, nil, WithDialTimeout(100*time.Millisecond)); err == nil {
		t.Fatalf("expected ping failure")
	}
}

func TestMetrics_Recorded(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := observability.NewIO(reg)
	s, _ := newMini(t, 0, m)
	ctx := context.Background()
	_ = s.Save(ctx, "a", decimal.One())
	_, _, _ = s.Load(ctx, "a")

	n, err := testutil.GatherAndCount(reg, "hugenum_store_op_total")
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	// ping, set and get each get a series
	if n != 3 {
		t.Fatalf("series=%d", n)
	}
}
