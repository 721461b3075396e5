package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func lines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, ln := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if ln == "" {
			continue
		}
		m := map[string]any{}
		if err := json.Unmarshal([]byte(ln), &m); err != nil {
			t.Fatalf("bad json line %q: %v", ln, err)
		}
		out = append(out, m)
	}
	return out
}

func TestNewSlog_WritesContextFieldsAndAttrs(t *testing.T) {
	var buf bytes.Buffer
	zl := Build(Config{Level: "debug", RunID: "run-1", Component: "engine"}, &buf)
	l := NewSlog(&zl).With("cache", "pow")

	ctx := WithOp(WithRequestID(context.Background(), "req-9"), "pow")
	l.WarnContext(ctx, "slow operation", slog.Duration("took", 150*time.Millisecond), slog.Int("n", 3))

	got := lines(t, &buf)
	if len(got) != 1 {
		t.Fatalf("want 1 line, got %d: %s", len(got), buf.String())
	}
	ln := got[0]
	for k, want := range map[string]any{
		"level": "warn", "msg": "slow operation", "run_id": "run-1",
		"component": "engine", "request_id": "req-9", "op": "pow", "cache": "pow",
	} {
		if ln[k] != want {
			t.Fatalf("field %s = %v, want %v (line %v)", k, ln[k], want, ln)
		}
	}
	if _, ok := ln["timestamp"]; !ok {
		t.Fatalf("timestamp missing: %v", ln)
	}
}

func TestThrottled_DropsBeyondBurst(t *testing.T) {
	var buf bytes.Buffer
	zl := Build(Config{Level: "info"}, &buf)
	l := Throttled(&zl, 2, time.Hour)

	for range 10 {
		l.Warn("recovered malformed input")
	}
	if n := len(lines(t, &buf)); n != 2 {
		t.Fatalf("burst of 2 let %d lines through", n)
	}
}

func TestNop_AndOrNop(t *testing.T) {
	Nop().Error("dropped")
	if OrNop(nil) == nil {
		t.Fatalf("OrNop(nil) must return a logger")
	}
	l := Nop()
	if OrNop(l) != l {
		t.Fatalf("OrNop must keep a non-nil logger")
	}
}

func TestNewID_IsHex16(t *testing.T) {
	id := NewID()
	if len(id) != 16 || strings.Trim(id, "0123456789abcdef") != "" {
		t.Fatalf("bad id %q", id)
	}
}
