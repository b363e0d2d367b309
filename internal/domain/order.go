package domain

import (
	"fmt"
	"time"
)

// OrderSide indicates whether this is a buy or sell.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// Outcome selects the yes or no leg of a binary contract.
type Outcome string

const (
	OutcomeYes Outcome = "yes"
	OutcomeNo  Outcome = "no"
)

// OrderStatus tracks the order lifecycle.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusSubmitted OrderStatus = "submitted"
	OrderStatusFilled    OrderStatus = "filled"
	OrderStatusRejected  OrderStatus = "rejected"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// IsTerminal reports whether the status can no longer change.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusFilled || s == OrderStatusRejected || s == OrderStatusCancelled
}

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:   {OrderStatusSubmitted, OrderStatusRejected, OrderStatusCancelled},
	OrderStatusSubmitted: {OrderStatusFilled, OrderStatusRejected, OrderStatusCancelled},
}

// OrderIntent is a proposed trade. Size stays zero until the risk manager
// approves it. A non-zero Contracts pins the exact quantity, which exits use
// to sell what the entry bought; otherwise the exchange derives it from Size.
type OrderIntent struct {
	ID         string    `json:"id"`
	ContestID  string    `json:"contest_id"`
	MarketID   string    `json:"market_id"`
	Exchange   string    `json:"exchange"`
	Side       OrderSide `json:"side"`
	Outcome    Outcome   `json:"outcome"`
	Size       float64   `json:"size"`
	LimitPrice float64   `json:"limit_price"`
	Contracts  int64     `json:"contracts,omitempty"`
	Reason     string    `json:"reason"`
	EventID    string    `json:"event_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Order is the executor's record of a single submission.
type Order struct {
	ID              string      `json:"id"`
	IntentID        string      `json:"intent_id"`
	ContestID       string      `json:"contest_id"`
	MarketID        string      `json:"market_id"`
	Exchange        string      `json:"exchange"`
	Side            OrderSide   `json:"side"`
	Outcome         Outcome     `json:"outcome"`
	RequestedSize   float64     `json:"requested_size"`
	Contracts       int64       `json:"contracts,omitempty"`
	LimitPrice      float64     `json:"limit_price"`
	FilledSize      float64     `json:"filled_size"`
	FilledContracts int64       `json:"filled_contracts,omitempty"`
	AvgFillPrice    *float64    `json:"avg_fill_price,omitempty"`
	Status          OrderStatus `json:"status"`
	ExchangeOrderID string      `json:"exchange_order_id,omitempty"`
	ErrorMessage    string      `json:"error_message,omitempty"`
	EventID         string      `json:"event_id,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	SubmittedAt     *time.Time  `json:"submitted_at,omitempty"`
	FilledAt        *time.Time  `json:"filled_at,omitempty"`
}

// NewOrder creates a pending order from an approved intent.
func NewOrder(id string, intent OrderIntent, now time.Time) Order {
	return Order{
		ID:            id,
		IntentID:      intent.ID,
		ContestID:     intent.ContestID,
		MarketID:      intent.MarketID,
		Exchange:      intent.Exchange,
		Side:          intent.Side,
		Outcome:       intent.Outcome,
		RequestedSize: intent.Size,
		Contracts:     intent.Contracts,
		LimitPrice:    intent.LimitPrice,
		Status:        OrderStatusPending,
		EventID:       intent.EventID,
		CreatedAt:     now,
	}
}

// Transition moves the order to a new status if the state machine allows it.
func (o *Order) Transition(to OrderStatus) error {
	for _, allowed := range orderTransitions[o.Status] {
		if allowed == to {
			o.Status = to
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidOrder, o.Status, to)
}

// EntryPrice is the average fill price when known, otherwise the limit.
func (o Order) EntryPrice() float64 {
	if o.AvgFillPrice != nil && *o.AvgFillPrice > 0 {
		return *o.AvgFillPrice
	}
	return o.LimitPrice
}

// SubmitRequest is what the executor hands to an exchange.
type SubmitRequest struct {
	Ticker        string
	Side          OrderSide
	Outcome       Outcome
	Size          float64
	Contracts     int64 // exact quantity when > 0
	LimitPrice    float64
	ClientOrderID string
}

// ExchangeResult is the exchange's synchronous answer to a submission.
type ExchangeResult struct {
	OrderID     string
	Status      OrderStatus // submitted or filled
	AvgPrice    float64
	Filled      float64
	FilledCount int64
}

// Order listing filters understood by every Exchange.
const (
	ExchangeOrdersOpen   = "open"
	ExchangeOrdersClosed = "closed"
)

// ExchangeOrder is one row from an exchange order listing.
type ExchangeOrder struct {
	OrderID       string
	ClientOrderID string
	Ticker        string
	Status        OrderStatus
	AvgPrice      float64
	FilledCount   int64
}
