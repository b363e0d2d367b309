package service

import (
	"time"

	"github.com/alanyoungcy/scoretrader/internal/domain"
)

// ExitReason names why a position should be closed.
type ExitReason string

const (
	ExitTakeProfit   ExitReason = "take_profit"
	ExitStopLoss     ExitReason = "stop_loss"
	ExitTime         ExitReason = "time_exit"
	ExitContestEnded ExitReason = "match_ended"
	ExitManual       ExitReason = "manual"
)

// ExitPolicy decides whether an open position should be exited. It holds
// no state beyond its thresholds.
type ExitPolicy struct {
	TakeProfitPct float64 // fraction, 0.15 = 15%
	StopLossPct   float64
	MaxHold       time.Duration
}

// Evaluate applies the exit rules in priority order; the first match wins.
// contest may be nil when the contest is no longer tracked.
func (p ExitPolicy) Evaluate(pos domain.Position, contest *domain.Contest, now time.Time) (ExitReason, bool) {
	pct := pos.UnrealizedPnLPct()
	tp := domain.RoundCents(p.TakeProfitPct * 100)
	sl := domain.RoundCents(p.StopLossPct * 100)
	switch {
	case tp > 0 && pct >= tp:
		return ExitTakeProfit, true
	case sl > 0 && pct <= -sl:
		return ExitStopLoss, true
	case p.MaxHold > 0 && now.Sub(pos.OpenedAt) >= p.MaxHold:
		return ExitTime, true
	case contest != nil && contest.Status.IsTerminal():
		return ExitContestEnded, true
	}
	return "", false
}
