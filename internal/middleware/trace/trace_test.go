package trace

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	applog "carteira/internal/log"
)

func newTraced(buf *bytes.Buffer, status int) (*Middleware, http.Handler) {
	logger := applog.New(applog.Config{Output: buf, Component: applog.ComponentHTTP})
	m := NewMiddleware(func(r *http.Request) string { return "10.0.0.1" }, logger)
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetRequestID(r.Context()) == "" {
			w.Header().Set("X-Test", "missing")
		}
		w.WriteHeader(status)
	}))
	return m, h
}

func TestMiddleware_GeneratesRequestID(t *testing.T) {
	var buf bytes.Buffer
	_, h := newTraced(&buf, http.StatusOK)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/budgets", nil))

	id := rec.Header().Get(HeaderRequestID)
	if !strings.HasPrefix(id, "req_") {
		t.Fatalf("request id = %q", id)
	}
	if rec.Header().Get("X-Test") != "" {
		t.Error("request id not in handler context")
	}
	if !strings.Contains(buf.String(), "request_id="+id) {
		t.Errorf("completion log lacks request id: %s", buf.String())
	}
}

func TestMiddleware_KeepsIncomingID(t *testing.T) {
	var buf bytes.Buffer
	_, h := newTraced(&buf, http.StatusOK)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get(HeaderRequestID); got != "abc-123" {
		t.Errorf("request id = %q, want abc-123", got)
	}

	req.Header.Set(HeaderRequestID, "bad id with spaces")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get(HeaderRequestID); got == "bad id with spaces" {
		t.Error("malformed request id should be replaced")
	}
}

func TestMiddleware_Metrics(t *testing.T) {
	var buf bytes.Buffer
	m, h := newTraced(&buf, http.StatusNotFound)
	for i := 0; i < 3; i++ {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	}
	got := m.GetMetrics()
	if got.TotalRequests != 3 || got.ClientErrors != 3 || got.ServerErrors != 0 {
		t.Errorf("GetMetrics() = %+v", got)
	}
	if !strings.Contains(buf.String(), "level=WARN") {
		t.Errorf("404 should log at warn: %s", buf.String())
	}
}
