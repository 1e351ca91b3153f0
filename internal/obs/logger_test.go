package obs

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewWritesToStderrByDefault(t *testing.T) {
	lg := New(Config{Level: LevelDebug, Service: "test"})
	defer lg.Close()
	lg.Info("hello", "tx_id", 1, "offset", 42, "bytes", 128)
}

func TestNewWritesJSONFileSink(t *testing.T) {
	dir := t.TempDir()
	lg := New(Config{Level: LevelInfo, LogDir: dir, Service: "driftd", Quiet: true})
	lg.Info("committed", "tx_id", 7)
	if err := lg.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one log file, got %d", len(entries))
	}
	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("expected non-empty log file")
	}
}

func TestWithAddsAttrsToChildLogger(t *testing.T) {
	lg := New(Config{Level: LevelDebug, Quiet: true})
	child := lg.With("component", "journal")
	child.Warn("heartbeat fired")
}
