package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"uplink/internal/services"
)

func TestConsoleHandlerFormatsComponentAndTracker(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	logger := slog.New(newConsoleHandler(&buf, lvl))

	logger = NewComponentLogger(logger, "orchestrator")
	logger.Info("upload started", String(FieldTracker, "ATH"), Int("files", 3))

	out := buf.String()
	if !strings.Contains(out, "[orchestrator]") {
		t.Errorf("expected component marker in output, got %q", out)
	}
	if !strings.Contains(out, "<ATH>") {
		t.Errorf("expected tracker marker in output, got %q", out)
	}
	if !strings.Contains(out, "files=3") {
		t.Errorf("expected attribute in output, got %q", out)
	}
}

func TestConsoleHandlerHonorsLevel(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	lvl.Set(slog.LevelWarn)
	logger := slog.New(newConsoleHandler(&buf, lvl))

	logger.Info("ignored")
	logger.Warn("seen")

	out := buf.String()
	if strings.Contains(out, "ignored") {
		t.Errorf("info record should have been filtered, got %q", out)
	}
	if !strings.Contains(out, "seen") {
		t.Errorf("warn record missing from output %q", out)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "yaml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestWithContextAttachesTrackerFields(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	logger := slog.New(newConsoleHandler(&buf, lvl))

	ctx := services.WithTracker(context.Background(), "BLU")
	ctx = services.WithRequestID(ctx, "req-1")
	WithContext(ctx, logger).Info("gathering")

	out := buf.String()
	if !strings.Contains(out, "<BLU>") {
		t.Errorf("expected tracker from context, got %q", out)
	}
	if !strings.Contains(out, "correlation_id=req-1") {
		t.Errorf("expected correlation id from context, got %q", out)
	}
}
