package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/scoretrader/internal/domain"
)

// PositionReader lists open positions.
type PositionReader interface {
	OpenPositions() []domain.Position
}

// ManualCloser exits a position at its refreshed price.
type ManualCloser interface {
	CloseManual(ctx context.Context, positionID string) (domain.Position, error)
}

// PositionHandler serves position endpoints.
type PositionHandler struct {
	positions PositionReader
	closer    ManualCloser
	logger    *slog.Logger
}

func NewPositionHandler(positions PositionReader, closer ManualCloser, logger *slog.Logger) *PositionHandler {
	return &PositionHandler{positions: positions, closer: closer, logger: logger}
}

type listPositionsResponse struct {
	Positions []domain.Position `json:"positions"`
}

// ListPositions returns open positions.
// GET /api/positions
func (h *PositionHandler) ListPositions(w http.ResponseWriter, r *http.Request) {
	positions := h.positions.OpenPositions()
	if positions == nil {
		positions = []domain.Position{}
	}
	writeJSON(w, http.StatusOK, listPositionsResponse{Positions: positions})
}

// ClosePosition exits one position manually. 202 means the sell is resting
// and the position closes once it fills.
// POST /api/positions/{id}/close
func (h *PositionHandler) ClosePosition(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	pos, err := h.closer.CloseManual(r.Context(), id)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, pos)
	case errors.Is(err, domain.ErrExitPending):
		writeJSON(w, http.StatusAccepted, pos)
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "position not found")
	case errors.Is(err, domain.ErrPositionNotOpen), errors.Is(err, domain.ErrCloseInProgress):
		writeError(w, http.StatusConflict, err.Error())
	default:
		h.logger.ErrorContext(r.Context(), "handler: close position failed",
			slog.String("position_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadGateway, "failed to close position")
	}
}
