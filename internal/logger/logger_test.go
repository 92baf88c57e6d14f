package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestLineFormatter(t *testing.T) {
	var buf bytes.Buffer
	l, closer, err := New(Options{Level: "debug", Console: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer closer.Close()

	l.WithFields(logrus.Fields{"slot": "day", "attempt": 2}).Warn("texture fallback")

	line := buf.String()
	if !strings.Contains(line, "[WARN]") {
		t.Errorf("missing level in %q", line)
	}
	if !strings.Contains(line, "logger_test.go:") {
		t.Errorf("missing caller in %q", line)
	}
	if !strings.HasSuffix(line, "texture fallback attempt=2 slot=day\n") {
		t.Errorf("fields not sorted after message: %q", line)
	}
}

func TestNewWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "debug.log")
	l, closer, err := New(Options{Level: "info", File: path})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	l.Debug("hidden")
	l.Info("shown")
	closer.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if strings.Contains(string(data), "hidden") {
		t.Error("debug line written at info level")
	}
	if !strings.Contains(string(data), "shown") {
		t.Error("info line missing")
	}
}

func TestBadLevelFallsBackToInfo(t *testing.T) {
	l, _, err := New(Options{Level: "loud"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if l.GetLevel() != logrus.InfoLevel {
		t.Errorf("level = %v, want info", l.GetLevel())
	}
}
