package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/yanivzohar1971-cmd/Rent-a-Car-sub007/internal/config"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"DEBUG": slog.LevelDebug,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
		"info":  slog.LevelInfo,
		"":      slog.LevelInfo,
		"loud":  slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewWithWriter_JSON(t *testing.T) {
	// Given: A JSON logger at warn level
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "warn", "json")

	// When: Info and warn records are written
	logger.Info("hidden")
	logger.Warn("shown", "component", "outbox")

	// Then: Only the warn record appears as JSON
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d: %q", len(lines), buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if rec["msg"] != "shown" || rec["component"] != "outbox" {
		t.Errorf("unexpected record %v", rec)
	}
}

func TestNewWithWriter_Text(t *testing.T) {
	var buf bytes.Buffer
	NewWithWriter(&buf, "info", "text").Info("hello", "tenant_id", "t1")

	if !strings.Contains(buf.String(), "msg=hello") || !strings.Contains(buf.String(), "tenant_id=t1") {
		t.Errorf("unexpected text output %q", buf.String())
	}
}

func TestNew_RotatingFile(t *testing.T) {
	// Given: A log file configured
	path := filepath.Join(t.TempDir(), "rentsync.log")
	logger, closer := New(config.LogConfig{Level: "info", Format: "json", File: path, MaxSizeMB: 1})

	// When: A record is written and the file closed
	logger.Info("written to file")
	if err := closer.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	// Then: The file holds the record
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "written to file") {
		t.Errorf("log file missing record: %q", data)
	}
}

func TestNew_StdoutCloserIsNoOp(t *testing.T) {
	_, closer := New(config.LogConfig{Level: "info", Format: "json"})
	if err := closer.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
