package logger

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestInitToHonorsLevel(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	InitTo(&buf, "warn")
	slog.Info("hidden")
	slog.Warn("shown", "ticket_id", 7)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info record leaked at warn level: %s", out)
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "ticket_id=7") {
		t.Fatalf("missing warn record: %s", out)
	}
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"DEBUG": slog.LevelDebug, "warning": slog.LevelWarn, "error": slog.LevelError, "": slog.LevelInfo, "loud": slog.LevelInfo,
	} {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %s, want %s", in, got, want)
		}
	}
}
