package logs

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"debug": slog.LevelDebug,
		"WARN":  slog.LevelWarn,
		"error": slog.LevelError,
		"":      slog.LevelInfo,
		"loud":  slog.LevelInfo,
	} {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestFanout(t *testing.T) {
	var term bytes.Buffer
	file := filepath.Join(t.TempDir(), "tada.log")
	log, closeLog, err := New(Options{Level: "warn", File: file, Terminal: &term})
	if err != nil {
		t.Fatal(err)
	}
	log.Info("hidden")
	log.Warn("persist failed", "key", "todos-tada")
	if err := closeLog(); err != nil {
		t.Fatal(err)
	}

	if strings.Contains(term.String(), "hidden") {
		t.Errorf("info logged at warn level: %q", term.String())
	}
	if !strings.Contains(term.String(), "persist failed") {
		t.Errorf("terminal missing record: %q", term.String())
	}
	b, err := os.ReadFile(file)
	if err != nil {
		t.Fatal(err)
	}
	var rec map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(b), &rec); err != nil {
		t.Fatalf("file record not JSON: %v: %q", err, b)
	}
	if rec["key"] != "todos-tada" {
		t.Errorf("file record = %v", rec)
	}
}

func TestDiscardTerminal(t *testing.T) {
	log, closeLog, err := New(Options{Terminal: io.Discard})
	if err != nil {
		t.Fatal(err)
	}
	defer closeLog()
	log.Info("nowhere")
}
