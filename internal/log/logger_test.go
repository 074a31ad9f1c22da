package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newBufferLogger(buf *bytes.Buffer, level slog.Level) *Logger {
	return New(Config{Level: level, Component: ComponentStore, Handler: NewTextHandler(buf, level)})
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{"warn", slog.LevelWarn, false},
		{"warning", slog.LevelWarn, false},
		{"Error", slog.LevelError, false},
		{"trace", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLogger_AddsComponent(t *testing.T) {
	var buf bytes.Buffer
	l := newBufferLogger(&buf, slog.LevelInfo)

	l.Info("hello", "k", "v")
	l.WithComponent(ComponentHTTP).Warn("careful")
	l.Debug("hidden")

	out := buf.String()
	if !strings.Contains(out, "component=store") || !strings.Contains(out, "k=v") {
		t.Fatalf("missing fields: %s", out)
	}
	if !strings.Contains(out, "component=http") {
		t.Fatalf("WithComponent not applied: %s", out)
	}
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug line logged at info level: %s", out)
	}
}

func TestFromContext(t *testing.T) {
	if got := FromContext(context.Background()).Component(); got != "unknown" {
		t.Fatalf("component = %q, want unknown", got)
	}

	var buf bytes.Buffer
	l := newBufferLogger(&buf, slog.LevelInfo)
	ctx := WithLogger(context.Background(), l.With(FieldRequestID, "req-1"))
	seen := FromContext(ctx)
	seen.Info("inside")

	if seen.Component() != ComponentStore {
		t.Fatalf("component = %q, want %q", seen.Component(), ComponentStore)
	}
	if !strings.Contains(buf.String(), "request_id=req-1") {
		t.Fatalf("request id missing: %s", buf.String())
	}

	fallback := newBufferLogger(&buf, slog.LevelInfo)
	if got := FromContextOr(context.Background(), fallback); got != fallback {
		t.Fatal("FromContextOr did not return the fallback")
	}
	if got := FromContextOr(ctx, fallback); got == fallback {
		t.Fatal("FromContextOr ignored the context logger")
	}
}

func TestStructuredLogger_HTTPLevels(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(newBufferLogger(&buf, slog.LevelDebug))
	r := httptest.NewRequest(http.MethodPost, "/api/invoices?x=1", nil)

	sl.LogHTTPEnd(context.Background(), r, 201, 3, "10.0.0.1")
	sl.LogHTTPEnd(context.Background(), r, 422, 1, "10.0.0.1")
	sl.LogHTTPEnd(context.Background(), r, 500, 1, "10.0.0.1")
	sl.LogError(context.Background(), "boom", errors.New("disk full"), ComponentStorage, OpUpdate, nil)

	out := buf.String()
	for _, want := range []string{"level=INFO", "level=WARN", "level=ERROR", "status_code=422", `error="disk full"`} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
