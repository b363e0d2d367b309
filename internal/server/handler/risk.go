package handler

import (
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/scoretrader/internal/domain"
)

// RiskControl exposes the risk manager to the API.
type RiskControl interface {
	Status() domain.RiskStatus
	ResetCircuitBreaker()
}

type RiskHandler struct {
	risk   RiskControl
	logger *slog.Logger
}

func NewRiskHandler(risk RiskControl, logger *slog.Logger) *RiskHandler {
	return &RiskHandler{risk: risk, logger: logger}
}

// GET /api/risk
func (h *RiskHandler) GetRisk(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.risk.Status())
}

// ResetBreaker clears the circuit breaker and returns the new status.
// POST /api/risk/reset
func (h *RiskHandler) ResetBreaker(w http.ResponseWriter, r *http.Request) {
	h.risk.ResetCircuitBreaker()
	h.logger.WarnContext(r.Context(), "circuit breaker reset via api")
	writeJSON(w, http.StatusOK, h.risk.Status())
}
