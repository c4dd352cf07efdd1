package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"recettes/internal/core"
)

func newBufferLogger(buf *bytes.Buffer) *Logger {
	return New(Config{
		Component: "test",
		Handler:   slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}),
	})
}

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	return out
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLoggerAddsComponent(t *testing.T) {
	var buf bytes.Buffer
	l := newBufferLogger(&buf)
	l.Info("hello", "k", "v")

	line := decode(t, &buf)
	if line["component"] != "test" || line["k"] != "v" {
		t.Errorf("unexpected log line %v", line)
	}
}

func TestLogDriftCorrected(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(newBufferLogger(&buf))
	sl.LogDriftCorrected(context.Background(), core.DriftCorrected{
		SourceID: 4, OwnerID: "alice",
		Stored: core.Money{Cents: 90000}, Authoritative: core.Money{Cents: 70000},
	})

	line := decode(t, &buf)
	if line["level"] != "WARN" {
		t.Errorf("level = %v, want WARN", line["level"])
	}
	if line[FieldStoredCents] != float64(90000) || line[FieldAuthCents] != float64(70000) {
		t.Errorf("unexpected drift fields %v", line)
	}
	if line[FieldComponent] != ComponentReconciler {
		t.Errorf("component = %v", line[FieldComponent])
	}
}

func TestLogPartialFailureLevel(t *testing.T) {
	tests := []struct {
		compensated bool
		level       string
	}{
		{true, "WARN"},
		{false, "ERROR"},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		sl := NewStructuredLogger(newBufferLogger(&buf))
		sl.LogPartialFailure(context.Background(), "alice", &core.PartialFailureError{
			Operation: "create_transfer", FailedLeg: core.LegDestination,
			Compensated: tt.compensated, Err: errors.New("boom"),
		})
		line := decode(t, &buf)
		if line["level"] != tt.level {
			t.Errorf("compensated=%v: level = %v, want %s", tt.compensated, line["level"], tt.level)
		}
		if line[FieldFailedLeg] != "destination" || line[FieldError] != "boom" {
			t.Errorf("unexpected fields %v", line)
		}
	}
}

func TestFromContextFallsBackToDefault(t *testing.T) {
	if l := FromContext(context.Background()); l.Component() != "unknown" {
		t.Errorf("component = %q, want unknown", l.Component())
	}

	var buf bytes.Buffer
	logger := newBufferLogger(&buf)
	req := httptest.NewRequest("GET", "/", nil)
	var got *Logger
	h := Middleware(logger)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got = FromContext(r.Context())
	}))
	h.ServeHTTP(httptest.NewRecorder(), req)
	if got != logger {
		t.Error("middleware should store the logger in the request context")
	}
}
