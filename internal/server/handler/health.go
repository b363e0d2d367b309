package handler

import (
	"net/http"
	"time"
)

// HealthReporter lists current telemetry health issues.
type HealthReporter interface {
	Health(maxLatencyMs float64) []string
}

// HealthHandler serves the liveness endpoint.
type HealthHandler struct {
	health       HealthReporter
	maxLatencyMs float64
	startedAt    time.Time
}

func NewHealthHandler(health HealthReporter, maxLatencyMs float64) *HealthHandler {
	return &HealthHandler{health: health, maxLatencyMs: maxLatencyMs, startedAt: time.Now().UTC()}
}

// HealthCheck always answers 200 while the process is up; degraded
// telemetry is reported in the body.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	issues := []string{}
	if h.health != nil {
		if got := h.health.Health(h.maxLatencyMs); len(got) > 0 {
			issues = got
		}
	}
	status := "ok"
	if len(issues) > 0 {
		status = "degraded"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         status,
		"issues":         issues,
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
	})
}
