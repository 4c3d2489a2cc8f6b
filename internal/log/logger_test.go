package log

import (
	"bytes"
	"strings"
	"testing"
)

func TestVerbosityGating(t *testing.T) {
	var buf bytes.Buffer
	Initialize(LevelInfo, &buf)
	defer Initialize(LevelQuiet, &buf)

	Info("visible", "k", "v")
	Debug("hidden")

	out := buf.String()
	if !strings.Contains(out, "visible") {
		t.Errorf("info message missing: %q", out)
	}
	if strings.Contains(out, "hidden") {
		t.Errorf("debug message leaked at info level: %q", out)
	}
}

func TestWarnAlwaysVisible(t *testing.T) {
	var buf bytes.Buffer
	Initialize(LevelQuiet, &buf)

	Warn("careful")
	if !strings.Contains(buf.String(), "careful") {
		t.Errorf("warn suppressed: %q", buf.String())
	}
}

func TestIsDebug(t *testing.T) {
	var buf bytes.Buffer

	Initialize(LevelInfo, &buf)
	if IsDebug() {
		t.Error("IsDebug true at info level")
	}

	Initialize(LevelDebug, &buf)
	if !IsDebug() {
		t.Error("IsDebug false at debug level")
	}

	Initialize(LevelQuiet, &buf)
}
