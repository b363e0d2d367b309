// Package paper provides an in-process exchange that fills every order
// immediately at its limit price. It backs paper mode and local drills.
package paper

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/alanyoungcy/scoretrader/internal/domain"
)

// Name is the venue tag reported by the paper exchange.
const Name = "paper"

// Exchange is a domain.Exchange that never touches the network.
type Exchange struct {
	mu     sync.Mutex
	orders map[string]domain.ExchangeOrder
	seq    []string
}

// NewExchange returns an empty paper exchange.
func NewExchange() *Exchange {
	return &Exchange{orders: make(map[string]domain.ExchangeOrder)}
}

var _ domain.Exchange = (*Exchange)(nil)

func (e *Exchange) Name() string { return Name }

// Submit fills the whole request at the limit price. A pinned contract
// count fills exactly; otherwise the dollar size buys as many whole
// contracts as it covers.
func (e *Exchange) Submit(_ context.Context, req domain.SubmitRequest) (domain.ExchangeResult, error) {
	if req.LimitPrice <= 0 || req.LimitPrice >= 1 {
		return domain.ExchangeResult{}, fmt.Errorf("paper: %w: limit price %.4f", domain.ErrInvalidOrder, req.LimitPrice)
	}
	if req.Size <= 0 && req.Contracts <= 0 {
		return domain.ExchangeResult{}, fmt.Errorf("paper: %w: size %.2f", domain.ErrInvalidOrder, req.Size)
	}
	count, filled := req.Contracts, req.Size
	if count > 0 {
		filled = domain.RoundCents(float64(count) * req.LimitPrice)
	} else {
		count = max(1, int64(req.Size/req.LimitPrice))
	}

	id := "paper-" + uuid.NewString()
	e.mu.Lock()
	e.orders[id] = domain.ExchangeOrder{
		OrderID:       id,
		ClientOrderID: req.ClientOrderID,
		Ticker:        req.Ticker,
		Status:        domain.OrderStatusFilled,
		AvgPrice:      req.LimitPrice,
		FilledCount:   count,
	}
	e.seq = append(e.seq, id)
	e.mu.Unlock()

	return domain.ExchangeResult{
		OrderID:     id,
		Status:      domain.OrderStatusFilled,
		AvgPrice:    req.LimitPrice,
		Filled:      filled,
		FilledCount: count,
	}, nil
}

// Cancel always fails for known orders since they are already filled.
func (e *Exchange) Cancel(_ context.Context, exchangeOrderID string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.orders[exchangeOrderID]; !ok {
		return false, fmt.Errorf("paper: order %s: %w", exchangeOrderID, domain.ErrNotFound)
	}
	return false, nil
}

// ListOrders returns every filled order for the closed filter and nothing
// for the open one.
func (e *Exchange) ListOrders(_ context.Context, status string) ([]domain.ExchangeOrder, error) {
	if status == domain.ExchangeOrdersOpen {
		return nil, nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]domain.ExchangeOrder, 0, len(e.seq))
	for _, id := range e.seq {
		out = append(out, e.orders[id])
	}
	return out, nil
}
