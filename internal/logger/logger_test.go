package logger

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

// resetLogger resets the logger to default state for test isolation
func resetLogger() {
	Init(Options{})
}

// --- Init Tests ---

func TestInit_DefaultLevel_Info(t *testing.T) {
	buf := &bytes.Buffer{}
	Init(Options{Output: buf})
	defer resetLogger()

	Info("test info")
	if !strings.Contains(buf.String(), "test info") {
		t.Error("Info message should be logged at default level")
	}

	buf.Reset()
	Debug("test debug")
	if strings.Contains(buf.String(), "test debug") {
		t.Error("Debug message should not be logged at default level")
	}
}

func TestInit_DebugLevel(t *testing.T) {
	buf := &bytes.Buffer{}
	Init(Options{Debug: true, Output: buf})
	defer resetLogger()

	Debug("test debug")
	if !strings.Contains(buf.String(), "test debug") {
		t.Error("Debug message should be logged when Debug is enabled")
	}
}

func TestQuiet_OverridesDebug(t *testing.T) {
	buf := &bytes.Buffer{}
	Init(Options{Debug: true, Quiet: true, Output: buf})
	defer resetLogger()

	Warn("test warn")
	Error("test error")
	if strings.Contains(buf.String(), "test warn") {
		t.Error("Warn should be suppressed in quiet mode")
	}
	if !strings.Contains(buf.String(), "test error") {
		t.Error("Error should be logged in quiet mode")
	}
}

func TestInit_JSONFormat(t *testing.T) {
	buf := &bytes.Buffer{}
	Init(Options{JSON: true, Output: buf})
	defer resetLogger()

	Info("json test", "identifier", "42")
	out := buf.String()
	if !strings.Contains(out, `"msg":"json test"`) || !strings.Contains(out, `"identifier":"42"`) {
		t.Errorf("expected JSON output, got: %s", out)
	}
}

// --- Context Tests ---

func TestNewContext_CarriesAttrs(t *testing.T) {
	buf := &bytes.Buffer{}
	Init(Options{Output: buf})
	defer resetLogger()

	ctx := NewContext(context.Background(), With("resolution_id", "abc"))
	InfoContext(ctx, "from context")

	out := buf.String()
	if !strings.Contains(out, "from context") || !strings.Contains(out, "resolution_id=abc") {
		t.Errorf("expected context logger attrs, got: %s", out)
	}
}

func TestFromContext_FallsBackToDefault(t *testing.T) {
	buf := &bytes.Buffer{}
	Init(Options{Output: buf})
	defer resetLogger()

	//nolint:staticcheck // nil context is part of the contract
	FromContext(nil).Info("fallback")
	if !strings.Contains(buf.String(), "fallback") {
		t.Error("expected default logger for nil context")
	}
}

func TestWarnContext(t *testing.T) {
	buf := &bytes.Buffer{}
	Init(Options{Output: buf})
	defer resetLogger()

	WarnContext(context.Background(), "careful", "source", "snippet")
	if !strings.Contains(buf.String(), "careful") || !strings.Contains(buf.String(), "source=snippet") {
		t.Errorf("unexpected output: %s", buf.String())
	}
}
