package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/scoretrader/internal/domain"
)

// OrderBook is the executor's view of working and completed orders.
type OrderBook interface {
	Pending() []domain.Order
	Completed(limit int) []domain.Order
	Cancel(ctx context.Context, orderID string) error
}

// OrderHandler serves order endpoints.
type OrderHandler struct {
	orders OrderBook
	logger *slog.Logger
}

func NewOrderHandler(orders OrderBook, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{orders: orders, logger: logger}
}

type listOrdersResponse struct {
	Pending   []domain.Order `json:"pending"`
	Completed []domain.Order `json:"completed"`
}

// ListOrders returns the pending working set and the most recent
// completed orders.
// GET /api/orders?limit=50
func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	resp := listOrdersResponse{
		Pending:   h.orders.Pending(),
		Completed: h.orders.Completed(parseListOpts(r).Limit),
	}
	if resp.Pending == nil {
		resp.Pending = []domain.Order{}
	}
	if resp.Completed == nil {
		resp.Completed = []domain.Order{}
	}
	writeJSON(w, http.StatusOK, resp)
}

// CancelOrder cancels a pending order on the exchange.
// DELETE /api/orders/{id}
func (h *OrderHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	err := h.orders.Cancel(r.Context(), id)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled", "order_id": id})
	case errors.Is(err, domain.ErrOrderNotPending):
		writeError(w, http.StatusConflict, err.Error())
	default:
		h.logger.ErrorContext(r.Context(), "handler: cancel order failed",
			slog.String("order_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadGateway, "failed to cancel order")
	}
}
