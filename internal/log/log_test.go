package log

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestNewWithWriter_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, Config{Level: slog.LevelInfo})

	logger.Info("hello", "key", "value")

	out := buf.String()
	if !strings.Contains(out, "hello") {
		t.Errorf("expected output to contain message, got %q", out)
	}
	if !strings.Contains(out, "key=value") {
		t.Errorf("expected text format key=value, got %q", out)
	}
}

func TestNewWithWriter_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, Config{JSON: true})

	logger.Info("hello", "key", "value")

	out := buf.String()
	if !strings.Contains(out, `"msg":"hello"`) {
		t.Errorf("expected JSON output, got %q", out)
	}
}

func TestNewWithWriter_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, Config{Level: slog.LevelWarn})

	logger.Info("should be filtered")
	logger.Warn("should appear")

	out := buf.String()
	if strings.Contains(out, "should be filtered") {
		t.Errorf("info message should have been filtered, got %q", out)
	}
	if !strings.Contains(out, "should appear") {
		t.Errorf("warn message missing, got %q", out)
	}
}

func TestNewNop_DiscardsOutput(t *testing.T) {
	logger := NewNop()
	// Must not panic; output goes nowhere.
	logger.Error("discarded", "key", "value")
}

func TestLogger_With(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, Config{})

	child := logger.With("component", "chunker")
	child.Info("processing")

	if !strings.Contains(buf.String(), "component=chunker") {
		t.Errorf("expected component attribute, got %q", buf.String())
	}
}
