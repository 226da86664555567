package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLevelString(t *testing.T) {
	cases := []struct {
		level Level
		want  string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{Level(42), "UNKNOWN"},
	}

	for _, tc := range cases {
		if got := tc.level.String(); got != tc.want {
			t.Errorf("Level(%d).String() = %q, want %q", tc.level, got, tc.want)
		}
	}
}

func TestNew_FileLogging(t *testing.T) {
	dir := t.TempDir()

	logger := New(Config{
		Level:   LevelInfo,
		LogDir:  dir,
		Service: "test",
		Quiet:   true,
	})
	logger.Info("hello", "key", "value")

	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 log file, got %d", len(entries))
	}
	if !strings.HasPrefix(entries[0].Name(), "test_") {
		t.Errorf("log file name = %q, want test_ prefix", entries[0].Name())
	}

	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"hello"`) {
		t.Errorf("log file missing message: %s", data)
	}
	if !strings.Contains(string(data), `"service":"test"`) {
		t.Errorf("log file missing service attribute: %s", data)
	}
}

func TestDiscard(t *testing.T) {
	logger := Discard()
	// Must not panic or write anywhere.
	logger.Debug("a")
	logger.Info("b")
	logger.Warn("c")
	logger.Error("d")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
}

func TestWith_SharesFile(t *testing.T) {
	dir := t.TempDir()
	logger := New(Config{LogDir: dir, Service: "test", Quiet: true})
	defer logger.Close()

	child := logger.With("stage", "extract")
	child.Info("working")

	if child.file != logger.file {
		t.Error("child logger should share the parent's file handle")
	}
}

func TestClose_NoFile(t *testing.T) {
	logger := New(Config{Quiet: true})
	if err := logger.Close(); err != nil {
		t.Fatalf("Close without file should be nil, got %v", err)
	}
}
