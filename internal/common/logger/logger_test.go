package logger

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/AlibekovAA/videotube/backend/internal/common/constants"
)

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "auth", "warning")

	log.Info("hidden")
	log.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info message should be filtered, got %q", out)
	}
	if !strings.Contains(out, "[WARNING] [auth]") || !strings.Contains(out, "shown") {
		t.Errorf("expected warning line, got %q", out)
	}
}

func TestLogger_WithFieldsIncludesTraceAndSortedFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "", "debug")

	ctx := context.WithValue(context.Background(), constants.TraceIDKey, "trace-1")
	log.WithFields(ctx, Fields{"user_id": "u1", "action": "login_success"}).Info("login success")

	out := buf.String()
	if !strings.Contains(out, "[trace_id=trace-1 action=login_success user_id=u1]") {
		t.Errorf("unexpected field rendering: %q", out)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"debug":    DEBUG,
		" WARN ":   WARNING,
		"error":    ERROR,
		"critical": CRITICAL,
		"":         INFO,
		"verbose":  INFO,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNew_WithoutDirectory(t *testing.T) {
	log, err := New("", "test", "info")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !log.ShouldLog(INFO) || log.ShouldLog(DEBUG) {
		t.Error("unexpected level gate")
	}
}
