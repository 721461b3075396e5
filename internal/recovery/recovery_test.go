package recovery

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/mohammed-shakir/hugenum/internal/logger"
	"github.com/mohammed-shakir/hugenum/internal/observability"
	"github.com/mohammed-shakir/hugenum/pkg/decimal"
)

func newRecoverer(t *testing.T) (*Recoverer, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	zl := logger.Build(logger.Config{Level: "info"}, &buf)
	return New(logger.NewSlog(&zl), nil), &buf
}

func countLines(s string) int {
	return strings.Count(strings.TrimSpace(s), "\n") + 1
}

func TestParse_Recovery(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"1000abc", "1000"},
		{"garbage", "0"},
		{"", "0"},
		{"abc-2.5e3xyz", "-2500"},
		{"  42  ", "42"},
		{"ee20", "ee20"},
	}
	for _, tc := range cases {
		r, _ := newRecoverer(t)
		if got := r.Parse(tc.in).String(); got != tc.want {
			t.Fatalf("Parse(%q)=%q want %q", tc.in, got, tc.want)
		}
	}
}

func TestParse_OneWarningPerFailure(t *testing.T) {
	r, buf := newRecoverer(t)
	r.Parse("12 apples")
	if n := countLines(buf.String()); n != 1 {
		t.Fatalf("want exactly 1 warning line, got %d:\n%s", n, buf.String())
	}
	if !strings.Contains(buf.String(), `"strategy":"first_numeric"`) {
		t.Fatalf("strategy missing: %s", buf.String())
	}

	buf.Reset()
	r.Parse("nothing here")
	if n := countLines(buf.String()); n != 1 {
		t.Fatalf("want exactly 1 warning line, got %d", n)
	}

	s := r.Stats()
	if s.ParseFailures != 2 || s.ParseRecovered != 1 || s.Zeroed != 1 || s.Warnings != 2 {
		t.Fatalf("stats=%+v", s)
	}

	buf.Reset()
	r.Parse("7")
	if buf.Len() != 0 {
		t.Fatalf("valid input must not log: %s", buf.String())
	}
}

func TestValue(t *testing.T) {
	r, _ := newRecoverer(t)
	if got := r.Value(math.NaN()); !got.IsZero() {
		t.Fatalf("NaN -> %v", got)
	}
	if got := r.Value(struct{}{}); !got.IsZero() {
		t.Fatalf("struct -> %v", got)
	}
	if got := r.Value(int64(12)); got.String() != "12" {
		t.Fatalf("int64 -> %v", got)
	}
	if got := r.Value("5kg"); got.String() != "5" {
		t.Fatalf("string -> %v", got)
	}
	if s := r.Stats(); s.Zeroed != 2 || s.ParseRecovered != 1 {
		t.Fatalf("stats=%+v", s)
	}
}

func TestDo_RetriesOnceWithZeroedOperands(t *testing.T) {
	r, buf := newRecoverer(t)
	calls := 0
	add := func(a, b decimal.Decimal) (decimal.Decimal, error) {
		calls++
		return a.Add(b), nil
	}

	got := r.Do("add", 5, math.Inf(1), add)
	if got.String() != "5" {
		t.Fatalf("got %v want 5", got)
	}
	if calls != 1 {
		t.Fatalf("fn should only run on the retry, ran %d times", calls)
	}
	if n := countLines(buf.String()); n != 1 {
		t.Fatalf("want 1 warning, got %d", n)
	}
	if s := r.Stats(); s.OpFailures != 1 || s.OpRetried != 1 {
		t.Fatalf("stats=%+v", s)
	}
}

func TestDo_FallsBackToZero(t *testing.T) {
	r, _ := newRecoverer(t)
	calls := 0
	failing := func(a, b decimal.Decimal) (decimal.Decimal, error) {
		calls++
		return decimal.Zero(), errors.New("boom")
	}
	got := r.Do("pow", 2, 3, failing)
	if !got.IsZero() || calls != 2 {
		t.Fatalf("got %v after %d calls", got, calls)
	}

	panicking := func(a, b decimal.Decimal) (decimal.Decimal, error) {
		panic("bad state")
	}
	if got := r.Do("div", 1, 2, panicking); !got.IsZero() {
		t.Fatalf("panic path got %v", got)
	}
	if s := r.Stats(); s.OpFailures != 2 || s.Zeroed != 2 {
		t.Fatalf("stats=%+v", s)
	}
}

func TestDo_HappyPathDoesNotCount(t *testing.T) {
	r, buf := newRecoverer(t)
	mul := func(a, b decimal.Decimal) (decimal.Decimal, error) { return a.Mul(b), nil }
	if got := r.Do("mul", "1e100", decimal.New(2), mul); got.String() != "2e+100" {
		t.Fatalf("got %v", got)
	}
	if buf.Len() != 0 || r.Stats() != (Stats{}) {
		t.Fatalf("unexpected recovery: %+v %s", r.Stats(), buf.String())
	}
}

func TestValidateCalculation(t *testing.T) {
	r, _ := newRecoverer(t)
	valid := []any{
		decimal.MustParse("eee400"),
		decimal.MustParse("1e500"),
		decimal.Zero(),
		1.5,
		"1e1e10",
	}
	for _, v := range valid {
		if !r.ValidateCalculation(v, "exp") {
			t.Fatalf("%v should be valid", v)
		}
	}
	invalid := []any{math.NaN(), math.Inf(-1), "nope", nil, (*decimal.Decimal)(nil)}
	for _, v := range invalid {
		if r.ValidateCalculation(v, "exp") {
			t.Fatalf("%v should be invalid", v)
		}
	}
	if got := r.Stats().InvalidResults; got != uint64(len(invalid)) {
		t.Fatalf("invalid results=%d", got)
	}
}

func TestValidateInputs(t *testing.T) {
	if err := ValidateInputs(decimal.One(), "12", "add"); err != nil {
		t.Fatalf("unexpected: %v", err)
	}
	if err := ValidateInputs(1, []int{1}, "add"); !errors.Is(err, decimal.ErrUnsupportedType) {
		t.Fatalf("want ErrUnsupportedType, got %v", err)
	}
	if err := ValidateInputs(math.NaN(), 1, "add"); !errors.Is(err, decimal.ErrNotFinite) {
		t.Fatalf("want ErrNotFinite, got %v", err)
	}
}

func TestMetricsAndReset(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(nil, observability.New(reg))
	r.Parse("x")
	r.Parse("y")
	want := `
# HELP hugenum_recoveries_total Recovered failures by kind.
# TYPE hugenum_recoveries_total counter
hugenum_recoveries_total{kind="parse"} 2
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(want), "hugenum_recoveries_total"); err != nil {
		t.Fatalf("recoveries: %v", err)
	}
	r.Reset()
	if r.Stats() != (Stats{}) {
		t.Fatalf("reset left %+v", r.Stats())
	}
}
