package logger

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
	}{
		{"debug", LevelDebug},
		{"DEBUG", LevelDebug},
		{" info ", LevelInfo},
		{"warning", LevelWarn},
		{"Error", LevelError},
		{"none", LevelNone},
		{"off", LevelNone},
		{"invalid", LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.expected {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestLevelString(t *testing.T) {
	if LevelWarn.String() != "WARN" {
		t.Errorf("LevelWarn.String() = %q", LevelWarn.String())
	}
	if Level(42).String() != "UNKNOWN" {
		t.Errorf("unknown level should stringify as UNKNOWN")
	}
}

func TestNewLoggerWritesFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "nested", "test.log")

	logger, err := New(LevelInfo, logPath, "test")
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}

	logger.Info("test message")
	logger.Debug("should not appear")
	logger.WithPrefix("child").Warn("child message")

	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	contentStr := string(content)

	if !strings.Contains(contentStr, "[INFO] [test] test message") {
		t.Errorf("log file missing info message: %s", contentStr)
	}
	if strings.Contains(contentStr, "should not appear") {
		t.Errorf("log file contains debug message when level is INFO")
	}
	if !strings.Contains(contentStr, "[test:child] child message") {
		t.Errorf("log file missing combined prefix: %s", contentStr)
	}
}

func TestSetLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(LevelInfo, &buf, "")

	logger.Debug("debug1")
	logger.SetLevel(LevelDebug)
	logger.Debug("debug2")

	out := buf.String()
	if strings.Contains(out, "debug1") {
		t.Errorf("debug1 should not appear (level was INFO)")
	}
	if !strings.Contains(out, "debug2") {
		t.Errorf("debug2 should appear (level changed to DEBUG)")
	}
}

func TestLoggerDisabled(t *testing.T) {
	logger, err := New(LevelNone, "", "test")
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Close()

	logger.Debug("debug")
	logger.Error("error")
}

func TestGlobalLogger(t *testing.T) {
	if Global() == nil {
		t.Fatal("Global() returned nil")
	}

	Debug("debug")
	Info("info")
	Warn("warn")
	Error("error")
}

func TestSlogHandlerForwardsAttributes(t *testing.T) {
	var buf bytes.Buffer
	base := NewWithWriter(LevelDebug, &buf, "http")

	slogger := slog.New(NewSlogHandler(base)).WithGroup("req")
	slogger.LogAttrs(context.Background(), slog.LevelWarn, "slow request", slog.String("path", "/api/turn"))

	out := buf.String()
	if !strings.Contains(out, "[WARN] [http] slow request req.path=/api/turn") {
		t.Errorf("unexpected slog output: %q", out)
	}
}
