package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PositionStatus tracks whether a position is open or closed.
type PositionStatus string

const (
	PositionStatusOpen   PositionStatus = "open"
	PositionStatusClosed PositionStatus = "closed"
)

// Position is a holding created from a filled entry order.
// Closed positions are archived, never deleted.
type Position struct {
	ID            string         `json:"id"`
	ContestID     string         `json:"contest_id"`
	MarketID      string         `json:"market_id"`
	Exchange      string         `json:"exchange"`
	Outcome       Outcome        `json:"outcome"`
	Size          float64        `json:"size"`
	Contracts     int64          `json:"contracts,omitempty"`
	EntryPrice    float64        `json:"entry_price"`
	CurrentPrice  float64        `json:"current_price"`
	UnrealizedPnL float64        `json:"unrealized_pnl"`
	RealizedPnL   float64        `json:"realized_pnl"`
	Status        PositionStatus `json:"status"`
	OpenedAt      time.Time      `json:"opened_at"`
	ClosedAt      *time.Time     `json:"closed_at,omitempty"`
	ExitPrice     *float64       `json:"exit_price,omitempty"`
	EntryOrderID  string         `json:"entry_order_id"`
	ExitOrderID   string         `json:"exit_order_id,omitempty"`
	ExitReason    string         `json:"exit_reason,omitempty"`
	EventID       string         `json:"event_id,omitempty"`
}

// UnrealizedPnLPct is the mark-to-market return in percent.
func (p Position) UnrealizedPnLPct() float64 {
	return PnLPct(p.Outcome, p.EntryPrice, p.CurrentPrice)
}

// MarkPrice refreshes the current price and unrealized P&L.
func (p *Position) MarkPrice(price float64) {
	p.CurrentPrice = price
	p.UnrealizedPnL = PnL(p.Outcome, p.Size, p.EntryPrice, price)
}

// Close realizes P&L at exitPrice. It fails for a position that is
// already closed.
func (p *Position) Close(exitPrice float64, exitOrderID, reason string, at time.Time) error {
	if p.Status != PositionStatusOpen {
		return ErrPositionNotOpen
	}
	p.CurrentPrice = exitPrice
	p.ExitPrice = &exitPrice
	p.RealizedPnL = PnL(p.Outcome, p.Size, p.EntryPrice, exitPrice)
	p.UnrealizedPnL = 0
	p.Status = PositionStatusClosed
	p.ClosedAt = &at
	p.ExitOrderID = exitOrderID
	p.ExitReason = reason
	return nil
}

// Trade is the reporting twin of a Position.
type Trade struct {
	ID         string     `json:"id"`
	PositionID string     `json:"position_id"`
	ContestID  string     `json:"contest_id"`
	MarketID   string     `json:"market_id"`
	Exchange   string     `json:"exchange"`
	Side       OrderSide  `json:"side"`
	Outcome    Outcome    `json:"outcome"`
	Size       float64    `json:"size"`
	EntryPrice float64    `json:"entry_price"`
	ExitPrice  *float64   `json:"exit_price,omitempty"`
	EntryTime  time.Time  `json:"entry_time"`
	ExitTime   *time.Time `json:"exit_time,omitempty"`
	PnL        *float64   `json:"pnl,omitempty"`
	PnLPct     *float64   `json:"pnl_pct,omitempty"`
	Reason     string     `json:"reason"`
	ExitReason string     `json:"exit_reason,omitempty"`
	EventID    string     `json:"event_id,omitempty"`
	LatencyMs  float64    `json:"latency_ms"`
	Slippage   float64    `json:"slippage"`
}

// Closed reports whether the trade has been finalized.
func (t Trade) Closed() bool {
	return t.ExitTime != nil
}

// Finalize copies the exit facts from a closed position so the two agree.
func (t *Trade) Finalize(p Position) {
	if p.Status != PositionStatusClosed || p.ExitPrice == nil || p.ClosedAt == nil {
		return
	}
	exit := *p.ExitPrice
	at := *p.ClosedAt
	pnl := p.RealizedPnL
	pct := PnLPct(p.Outcome, p.EntryPrice, exit)
	t.ExitPrice = &exit
	t.ExitTime = &at
	t.PnL = &pnl
	t.PnLPct = &pct
	t.ExitReason = p.ExitReason
}

var hundred = decimal.NewFromInt(100)

// PnLPct returns the percentage return of moving from entry to exit. The
// sign flips for the "no" outcome.
func PnLPct(outcome Outcome, entry, exit float64) float64 {
	if entry <= 0 {
		return 0
	}
	e := decimal.NewFromFloat(entry)
	pct := decimal.NewFromFloat(exit).Sub(e).Div(e).Mul(hundred)
	if outcome == OutcomeNo {
		pct = pct.Neg()
	}
	return pct.Round(2).InexactFloat64()
}

// PnL returns size * (exit-entry)/entry, rounded to cents, with the same
// sign convention as PnLPct.
func PnL(outcome Outcome, size, entry, exit float64) float64 {
	if entry <= 0 {
		return 0
	}
	e := decimal.NewFromFloat(entry)
	pnl := decimal.NewFromFloat(size).Mul(decimal.NewFromFloat(exit).Sub(e)).Div(e)
	if outcome == OutcomeNo {
		pnl = pnl.Neg()
	}
	return pnl.Round(2).InexactFloat64()
}

// RoundCents rounds an amount to two decimal places.
func RoundCents(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
