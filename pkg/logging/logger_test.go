package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for raw, want := range cases {
		if got := ParseLevel(raw); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", raw, got, want)
		}
	}
}

func TestDefaultLoggerIsInfo(t *testing.T) {
	ctx := context.Background()
	logger := Default()
	if !logger.Enabled(ctx, slog.LevelInfo) || logger.Enabled(ctx, slog.LevelDebug) {
		t.Fatalf("Default() should log at info")
	}
	if Default() == logger {
		t.Fatalf("Default() should return a new logger each call")
	}
}

func TestWithSessionTagsRecords(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter("debug", &buf).WithSession("chat-7")

	logger.Debug("drift checked", "score", 0.5)

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("expected one JSON record, got %q: %v", buf.String(), err)
	}
	if record["session_id"] != "chat-7" || record["msg"] != "drift checked" || record["score"] != 0.5 {
		t.Fatalf("unexpected record %v", record)
	}
}

func TestDiscardDropsEverything(t *testing.T) {
	logger := Discard()
	if logger.Enabled(context.Background(), slog.LevelWarn) {
		t.Fatalf("Discard() should only enable error")
	}
	logger.Error("ignored")
}
