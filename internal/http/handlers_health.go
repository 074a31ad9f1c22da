package http

import (
	"context"
	"net/http"
	"time"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	traffic := s.tracer.GetMetrics()
	limits := s.rateLimiter.GetMetrics()
	NewJSONResponse().Body(map[string]any{
		"status":    "ok",
		"timestamp": s.now().Format(time.RFC3339),
		"uptime":    s.now().Sub(s.startedAt).Round(time.Second).String(),
		"requests": map[string]any{
			"total":       traffic.TotalRequests,
			"avgResponse": traffic.AverageResponseTime.String(),
			"rateLimited": limits.Rejected,
			"clients":     limits.ClientCount,
		},
	}).Write(w)
}

// handleReady performs readiness check with dependency verification
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{"store": "ok"}
	status, code := "ready", http.StatusOK

	if s.store == nil {
		checks["store"] = "failed: not configured"
		status, code = "not_ready", http.StatusServiceUnavailable
	}

	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			s.logger.WarnContext(r.Context(), "Readiness check failed", "error", err)
			checks["backend"] = "failed: " + err.Error()
			status, code = "not_ready", http.StatusServiceUnavailable
		} else {
			checks["backend"] = "ok"
		}
	}

	if s.assist.Enabled() {
		checks["assist"] = "ok"
	} else {
		checks["assist"] = "disabled"
	}

	NewJSONResponse().Status(code).Body(map[string]any{
		"status": status,
		"checks": checks,
	}).Write(w)
}
