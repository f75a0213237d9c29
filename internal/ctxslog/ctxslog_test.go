package ctxslog

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	logger := New("info", "text", &buf)

	ctx := WithLogger(context.Background(), logger)
	FromContext(ctx).Info("analyzing", "packages", 3)

	if got := buf.String(); !strings.Contains(got, "analyzing") || !strings.Contains(got, "packages=3") {
		t.Errorf("log output = %q, want message and attrs", got)
	}
}

func TestFromContextWithoutLogger(t *testing.T) {
	logger := FromContext(context.Background())
	if logger == nil {
		t.Fatal("FromContext returned nil")
	}
	// Must not panic or write anywhere.
	logger.Error("dropped")
}

func TestNewJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	New("debug", "json", &buf).Debug("probe")

	got := buf.String()
	if !strings.HasPrefix(got, "{") || !strings.Contains(got, `"msg":"probe"`) {
		t.Errorf("json output = %q", got)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
