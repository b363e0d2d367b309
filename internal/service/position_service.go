package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/scoretrader/internal/domain"
)

// PositionCloser exits a position. *TradeService satisfies it.
type PositionCloser interface {
	ClosePosition(ctx context.Context, positionID string, currentPrice float64, reason string) (domain.Position, error)
}

// PositionService is the post-trade monitor loop: it marks open positions to
// market and closes those the exit policy flags.
type PositionService struct {
	ledger   domain.Ledger
	resolver domain.MarketResolver // optional
	prices   domain.PriceCache     // optional
	closer   PositionCloser
	policy   ExitPolicy
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// NewPositionService creates the sweeper. interval defaults to 10s.
func NewPositionService(
	ledger domain.Ledger,
	resolver domain.MarketResolver,
	prices domain.PriceCache,
	closer PositionCloser,
	policy ExitPolicy,
	interval time.Duration,
	logger *slog.Logger,
) *PositionService {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &PositionService{
		ledger:   ledger,
		resolver: resolver,
		prices:   prices,
		closer:   closer,
		policy:   policy,
		interval: interval,
		logger:   logger.With(slog.String("component", "position_sweeper")),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the time source. Tests only.
func (s *PositionService) SetClock(now func() time.Time) { s.now = now }

// Run sweeps open positions every interval until ctx is cancelled. Exits
// already dispatched run to completion.
func (s *PositionService) Run(ctx context.Context) error {
	s.logger.Info("position sweeper started", slog.Duration("interval", s.interval))
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep evaluates every open position once and returns how many it closed.
func (s *PositionService) Sweep(ctx context.Context) int {
	closed := 0
	for _, pos := range s.ledger.OpenPositions() {
		if ctx.Err() != nil {
			break
		}
		price := s.Price(ctx, pos)
		marked, err := s.ledger.MarkPosition(pos.ID, price)
		if err != nil {
			continue
		}

		var contest *domain.Contest
		if c, ok := s.ledger.Contest(pos.ContestID); ok {
			contest = &c
		}
		reason, exit := s.policy.Evaluate(marked, contest, s.now())
		if !exit {
			continue
		}

		s.logger.InfoContext(ctx, "exit triggered",
			slog.String("position_id", pos.ID),
			slog.String("reason", string(reason)),
			slog.Float64("price", price),
			slog.Float64("pnl_pct", marked.UnrealizedPnLPct()),
		)
		if _, err := s.closer.ClosePosition(context.WithoutCancel(ctx), pos.ID, price, string(reason)); err != nil {
			level := slog.LevelError
			switch {
			case errors.Is(err, domain.ErrExitPending):
				level = slog.LevelInfo
			case errors.Is(err, domain.ErrCloseInProgress), errors.Is(err, domain.ErrPositionNotOpen):
				level = slog.LevelDebug
			}
			s.logger.Log(ctx, level, "exit failed",
				slog.String("position_id", pos.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		closed++
	}
	return closed
}

// Price returns the freshest quote for a position: a market refresh, then
// the price cache, then the last marked price.
func (s *PositionService) Price(ctx context.Context, pos domain.Position) float64 {
	if s.resolver != nil {
		m, err := s.resolver.RefreshMarket(ctx, pos.MarketID)
		if err == nil && m.YesPrice > 0 {
			return m.YesPrice
		}
		if err != nil {
			s.logger.DebugContext(ctx, "market refresh failed",
				slog.String("market_id", pos.MarketID),
				slog.String("error", err.Error()),
			)
		}
	}
	if s.prices != nil {
		if p, _, err := s.prices.GetPrice(ctx, pos.MarketID); err == nil && p > 0 {
			return p
		}
	}
	return pos.CurrentPrice
}

// CloseManual exits a position at its refreshed price.
func (s *PositionService) CloseManual(ctx context.Context, positionID string) (domain.Position, error) {
	pos, ok := s.ledger.Position(positionID)
	if !ok {
		return domain.Position{}, fmt.Errorf("position_service: %s: %w", positionID, domain.ErrNotFound)
	}
	if pos.Status != domain.PositionStatusOpen {
		return pos, fmt.Errorf("position_service: %s: %w", positionID, domain.ErrPositionNotOpen)
	}
	return s.closer.ClosePosition(ctx, positionID, s.Price(ctx, pos), string(ExitManual))
}
