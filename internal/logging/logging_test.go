package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestPreInitLoggerUsesConfiguredHandler(t *testing.T) {
	logger := L("egfx")

	var buf bytes.Buffer
	Init("text", "info", &buf)

	logger.Info("channel opened", "channelId", 3)

	out := buf.String()
	if strings.Contains(out, `msg="INFO channel opened`) {
		t.Fatalf("unexpected nested severity prefix in message: %s", out)
	}
	if !strings.Contains(out, "msg=\"channel opened\"") {
		t.Fatalf("expected plain channel-opened message, got: %s", out)
	}
	if !strings.Contains(out, "component=egfx") {
		t.Fatalf("expected component field, got: %s", out)
	}
	if !strings.Contains(out, "channelId=3") {
		t.Fatalf("expected channelId field, got: %s", out)
	}
}

func TestPreInitLoggerRespectsConfiguredLevel(t *testing.T) {
	logger := L("session")

	var buf bytes.Buffer
	Init("text", "warn", &buf)

	logger.Info("hidden")
	logger.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info log should be filtered at warn level: %s", out)
	}
	if !strings.Contains(out, "shown") {
		t.Fatalf("warn log should be emitted: %s", out)
	}
}

func TestInitJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	Init("json", "debug", &buf)

	L("clipboard").Debug("loop check", "skipped", true)

	out := buf.String()
	if !strings.Contains(out, `"component":"clipboard"`) {
		t.Fatalf("expected json component field, got: %s", out)
	}
	if !strings.Contains(out, `"skipped":true`) {
		t.Fatalf("expected json skipped field, got: %s", out)
	}
}
