package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	// Known names map onto slog levels; anything else is info
	cases := map[string]slog.Level{
		"debug": slog.LevelDebug, " WARN ": slog.LevelWarn, "warning": slog.LevelWarn,
		"error": slog.LevelError, "info": slog.LevelInfo, "": slog.LevelInfo, "verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewWriter_JSONFormat(t *testing.T) {
	// json format emits one JSON object per record
	var buf bytes.Buffer
	NewWriter(&buf, "info", "json").Info("[PIPELINE] started", "run_id", "r1")
	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("not JSON: %q", buf.String())
	}
	if rec["msg"] != "[PIPELINE] started" || rec["run_id"] != "r1" {
		t.Errorf("got %v", rec)
	}
}

func TestNewWriter_LevelFilters(t *testing.T) {
	// Records below the configured level are dropped
	var buf bytes.Buffer
	l := NewWriter(&buf, "warn", "text")
	l.Info("hidden")
	l.Warn("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Errorf("got %q", buf.String())
	}
}
