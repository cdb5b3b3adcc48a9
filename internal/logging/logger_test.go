package logging

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

// readEntries parses every JSON line from the debug log.
func readEntries(t *testing.T, stateDir string) []map[string]any {
	t.Helper()

	f, err := os.Open(filepath.Join(stateDir, "debug.log"))
	if err != nil {
		t.Fatalf("failed to open debug log: %v", err)
	}
	defer f.Close()

	var entries []map[string]any
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var entry map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			t.Fatalf("failed to parse log line %q: %v", scanner.Text(), err)
		}
		entries = append(entries, entry)
	}
	return entries
}

func TestNewLogger_WritesJSONToStateDir(t *testing.T) {
	dir := t.TempDir()

	logger, err := NewLogger(dir, "INFO")
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}

	logger.Info("pipeline started", "upstream", "upstream/main")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	entries := readEntries(t, dir)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0]["msg"] != "pipeline started" {
		t.Errorf("unexpected msg: %v", entries[0]["msg"])
	}
	if entries[0]["upstream"] != "upstream/main" {
		t.Errorf("unexpected upstream attr: %v", entries[0]["upstream"])
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	dir := t.TempDir()

	logger, err := NewLogger(dir, "WARN")
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}

	logger.Debug("too quiet")
	logger.Info("still too quiet")
	logger.Warn("heard")
	logger.Error("also heard")
	_ = logger.Close()

	entries := readEntries(t, dir)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries at WARN level, got %d", len(entries))
	}
}

func TestLogger_ContextPropagation(t *testing.T) {
	dir := t.TempDir()

	logger, err := NewLogger(dir, "DEBUG")
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}

	unitLogger := logger.WithRun("run-1").WithStage("patch").WithUnit("03-attention-restore")
	unitLogger.Info("apply attempted")

	// The parent logger must not have inherited child attributes.
	logger.Info("plain entry")
	_ = logger.Close()

	entries := readEntries(t, dir)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}

	first := entries[0]
	if first["run_id"] != "run-1" || first["stage"] != "patch" || first["unit"] != "03-attention-restore" {
		t.Errorf("child logger missing context attrs: %v", first)
	}

	second := entries[1]
	if _, ok := second["stage"]; ok {
		t.Errorf("parent logger leaked child attrs: %v", second)
	}
}

func TestParseLevel_Defaults(t *testing.T) {
	if got := ParseLevel("bogus"); got != LevelInfo {
		t.Errorf("expected default INFO, got %s", got)
	}
	if got := ParseLevel("debug"); got != LevelDebug {
		t.Errorf("expected DEBUG, got %s", got)
	}
}

func TestNopLogger_DoesNotPanic(t *testing.T) {
	logger := NopLogger()
	logger.Info("discarded")
	logger.WithStage("preflight").Error("also discarded")
}
