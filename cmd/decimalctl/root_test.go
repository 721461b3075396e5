package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestParse(t *testing.T) {
	out, err := execute(t, "parse", "1000abc", "1e400", "garbage")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := "1000abc\t1000\n1e400\t1e+400\ngarbage\t0\n"
	if out != want {
		t.Fatalf("got %q want %q", out, want)
	}
}

func TestFormat_Locale(t *testing.T) {
	out, err := execute(t, "format", "1234.5")
	if err != nil || out != "1,234.5\n" {
		t.Fatalf("en: %q err=%v", out, err)
	}
	out, err = execute(t, "--lang", "de", "format", "1234.5")
	if err != nil || out != "1.234,5\n" {
		t.Fatalf("de: %q err=%v", out, err)
	}
	if _, err := execute(t, "--lang", "!!", "format", "1"); err == nil {
		t.Fatalf("expected bad locale error")
	}
}

func TestEval(t *testing.T) {
	cases := []struct {
		args []string
		want string
	}{
		{[]string{"eval", "1e100", "+", "2e100"}, "3e+100"},
		{[]string{"eval", "sqrt", "16"}, "4"},
		{[]string{"eval", "--", "ln", "-1"}, "0"},
		{[]string{"eval", "1", "/", "0"}, "0"},
		{[]string{"eval", "-f", "1000", "*", "1.5"}, "1,500"},
	}
	for _, tc := range cases {
		out, err := execute(t, tc.args...)
		if err != nil {
			t.Fatalf("%v: %v", tc.args, err)
		}
		if got := strings.TrimSpace(out); got != tc.want {
			t.Fatalf("%v: got %q want %q", tc.args, got, tc.want)
		}
	}

	if _, err := execute(t, "eval", "1", "%", "2"); err == nil {
		t.Fatalf("expected unknown operator error")
	}
	if _, err := execute(t, "eval", "cos", "2"); err == nil {
		t.Fatalf("expected unknown function error")
	}
}

func TestDescribe(t *testing.T) {
	out, err := execute(t, "describe", "ee20")
	if err != nil {
		t.Fatalf("describe: %v", err)
	}
	for _, want := range []string{"canonical:  ee20", "magnitude:  extreme", "extreme:    true", "well-formed: true"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
}

func TestBench(t *testing.T) {
	out, err := execute(t, "bench", "--n", "20", "--distinct", "4")
	if err != nil {
		t.Fatalf("bench: %v", err)
	}
	var rep struct {
		Iterations int `json:"iterations"`
		Stats      struct {
			Ops map[string]struct {
				Count uint64 `json:"count"`
			} `json:"ops"`
			Caches []struct {
				Name   string `json:"name"`
				Hits   uint64 `json:"hits"`
				Misses uint64 `json:"misses"`
			} `json:"caches"`
		} `json:"stats"`
	}
	if err := json.Unmarshal([]byte(out), &rep); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if rep.Iterations != 20 || rep.Stats.Ops["pow"].Count != 20 {
		t.Fatalf("report=%+v", rep)
	}
	for _, c := range rep.Stats.Caches {
		if c.Name == "pow" && (c.Misses != 4 || c.Hits != 16) {
			t.Fatalf("pow cache=%+v", c)
		}
	}

	if _, err := execute(t, "bench", "--n", "0"); err == nil {
		t.Fatalf("expected error for --n 0")
	}
}

func TestConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.toml")
	if err := os.WriteFile(path, []byte("[cache]\ninitial_size = 8\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := execute(t, "--config", path, "parse", "1"); err != nil {
		t.Fatalf("toml config: %v", err)
	}
	if _, err := execute(t, "--config", filepath.Join(t.TempDir(), "cfg.ini"), "parse", "1"); err == nil {
		t.Fatalf("expected read error")
	}
}
