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

	"github.com/shopspring/decimal"
)

func newBufferLogger(buf *bytes.Buffer, level slog.Level) *Logger {
	return New(Config{Level: level, Component: ComponentApp, Output: buf})
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
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"trace", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestLogger_ComponentTag(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf, slog.LevelInfo).WithComponent(ComponentBudget)

	logger.Info("evaluated", FieldBudgetID, "b1")
	logger.Debug("hidden")

	out := buf.String()
	if !strings.Contains(out, "component=budget") {
		t.Errorf("missing component tag: %s", out)
	}
	if strings.Count(out, "component=") != 1 {
		t.Errorf("component must appear once: %s", out)
	}
	if strings.Contains(out, "hidden") {
		t.Errorf("debug record should be filtered at info level")
	}
}

func TestFields(t *testing.T) {
	f := NewFields().
		WithComponent(ComponentHTTP).
		WithUser("").
		WithEntity("budget", "b1").
		WithBudgetStatus("b1", "warning", decimal.RequireFromString("85.5")).
		WithMovement("expense", decimal.RequireFromString("10.00")).
		WithError(nil)

	if _, ok := f[FieldUserID]; ok {
		t.Error("empty user must be skipped")
	}
	if _, ok := f[FieldError]; ok {
		t.Error("nil error must be skipped")
	}
	if f[FieldPercent] != "85.5" || f[FieldAmount] != "10" {
		t.Errorf("unexpected money fields: %v %v", f[FieldPercent], f[FieldAmount])
	}
	for i, v := range f.ToSlice() {
		if i%2 == 0 && v == FieldComponent {
			t.Error("ToSlice must not repeat the component key")
		}
	}
}

func TestMiddleware_RequestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf, slog.LevelInfo)

	handler := Middleware(logger)(RequestIDMiddleware(func(r *http.Request) string {
		return r.Header.Get("X-Request-ID")
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		FromContext(r.Context()).InfoContext(r.Context(), "inside")
	})))

	req := httptest.NewRequest(http.MethodGet, "/api/budgets", nil)
	req.Header.Set("X-Request-ID", "req-42")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if !strings.Contains(buf.String(), "request_id=req-42") {
		t.Errorf("request id not propagated: %s", buf.String())
	}
}

func TestFromContext_Default(t *testing.T) {
	if l := FromContext(context.Background()); l == nil || l.Component() != ComponentApp {
		t.Errorf("FromContext without logger = %+v", l)
	}
}

func TestStructuredLogger_LevelByStatus(t *testing.T) {
	tests := []struct {
		status int
		level  string
	}{
		{200, "level=INFO"},
		{404, "level=WARN"},
		{500, "level=ERROR"},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		sl := NewStructuredLogger(newBufferLogger(&buf, slog.LevelInfo))
		req := httptest.NewRequest(http.MethodGet, "/api/analytics/overview?startDate=2024-01-01", nil)
		sl.LogHTTPEnd(context.Background(), req, tt.status, 12, "10.0.0.1")
		if !strings.Contains(buf.String(), tt.level) {
			t.Errorf("status %d: want %s in %s", tt.status, tt.level, buf.String())
		}
	}
}

func TestStructuredLogger_LogError(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(newBufferLogger(&buf, slog.LevelInfo))
	sl.LogError(context.Background(), "budget failed", errors.New("boom"), ComponentBudget, OpEvaluate, nil)

	out := buf.String()
	for _, want := range []string{"level=ERROR", "component=budget", "operation=evaluate", "error=boom"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in %s", want, out)
		}
	}
}
