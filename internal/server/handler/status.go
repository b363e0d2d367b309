package handler

import (
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/scoretrader/internal/service"
)

// TradingControl is the pipeline surface behind the status and gate routes.
type TradingControl interface {
	Status() service.TradingStatus
	Enabled() bool
	Enable()
	Disable()
}

// StatusHandler serves the composite status and the execution gate.
type StatusHandler struct {
	trading TradingControl
	mode    string
	logger  *slog.Logger
}

func NewStatusHandler(trading TradingControl, mode string, logger *slog.Logger) *StatusHandler {
	return &StatusHandler{trading: trading, mode: mode, logger: logger}
}

type statusResponse struct {
	Mode string `json:"mode"`
	service.TradingStatus
}

// GetStatus returns mode, gate, risk, metrics, telemetry and open positions.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{Mode: h.mode, TradingStatus: h.trading.Status()})
}

// GetMetrics returns trading metrics with the telemetry snapshot.
// GET /api/metrics
func (h *StatusHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	st := h.trading.Status()
	writeJSON(w, http.StatusOK, map[string]any{
		"metrics":   st.Metrics,
		"telemetry": st.Telemetry,
	})
}

// EnableTrading opens the execution gate.
// POST /api/trading/enable
func (h *StatusHandler) EnableTrading(w http.ResponseWriter, r *http.Request) {
	h.trading.Enable()
	h.logger.InfoContext(r.Context(), "trading enabled via api")
	writeJSON(w, http.StatusOK, map[string]bool{"enabled": h.trading.Enabled()})
}

// DisableTrading closes the execution gate.
// POST /api/trading/disable
func (h *StatusHandler) DisableTrading(w http.ResponseWriter, r *http.Request) {
	h.trading.Disable()
	h.logger.WarnContext(r.Context(), "trading disabled via api")
	writeJSON(w, http.StatusOK, map[string]bool{"enabled": h.trading.Enabled()})
}
