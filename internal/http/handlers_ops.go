package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":    "ok",
		"timestamp": s.now().Format(time.RFC3339),
		"uptime":    time.Since(s.startedAt).Round(time.Second).String(),
	})
}

// handleReady performs readiness check with dependency verification
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]string)

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	switch {
	case s.store == nil:
		checks["store"] = "not_configured"
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
	default:
		if err := s.store.Ping(ctx); err != nil {
			checks["store"] = fmt.Sprintf("failed: %v", err)
			status, httpStatus = "not_ready", http.StatusServiceUnavailable
		} else {
			checks["store"] = "ok"
		}
	}

	checks["cache_entries"] = fmt.Sprintf("%d", s.responses.Size())

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":    status,
		"timestamp": s.now().Format(time.RFC3339),
		"checks":    checks,
	})
}

// handleMetrics exposes request, rate limit, security and cache counters as
// plain text.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	t := s.tracer.GetMetrics()
	rl := s.limiter.GetMetrics()
	sec := s.detector.GetMetrics()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "carteira_http_requests_total %d\n", t.TotalRequests)
	fmt.Fprintf(w, "carteira_http_client_errors_total %d\n", t.ClientErrors)
	fmt.Fprintf(w, "carteira_http_server_errors_total %d\n", t.ServerErrors)
	fmt.Fprintf(w, "carteira_http_response_time_avg_microseconds %d\n", t.AverageResponseTime)
	fmt.Fprintf(w, "carteira_rate_limit_hits_total %d\n", rl.TotalHits)
	fmt.Fprintf(w, "carteira_rate_limit_clients %d\n", rl.ClientCount)
	fmt.Fprintf(w, "carteira_security_suspicious_total %d\n", sec.SuspiciousRequests)
	fmt.Fprintf(w, "carteira_security_blocked_total %d\n", sec.BlockedRequests)
	fmt.Fprintf(w, "carteira_cache_entries %d\n", s.responses.Size())
	fmt.Fprintf(w, "carteira_uptime_seconds %d\n", int64(time.Since(s.startedAt).Seconds()))
}
