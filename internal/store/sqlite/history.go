package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/alanyoungcy/scoretrader/internal/domain"
)

const tradeCols = `id, position_id, contest_id, market_id, exchange, side, outcome, size,
	entry_price, exit_price, entry_time, exit_time, pnl, pnl_pct,
	reason, exit_reason, event_id, latency_ms, slippage`

func scanTrades(rows *sql.Rows) ([]domain.Trade, error) {
	defer rows.Close()
	var out []domain.Trade
	for rows.Next() {
		var (
			t                   domain.Trade
			side, outcome       string
			entry               int64
			exitTime            sql.NullInt64
			exitPrice, pnl, pct sql.NullFloat64
		)
		if err := rows.Scan(
			&t.ID, &t.PositionID, &t.ContestID, &t.MarketID, &t.Exchange, &side, &outcome, &t.Size,
			&t.EntryPrice, &exitPrice, &entry, &exitTime, &pnl, &pct,
			&t.Reason, &t.ExitReason, &t.EventID, &t.LatencyMs, &t.Slippage,
		); err != nil {
			return nil, err
		}
		t.Side, t.Outcome = domain.OrderSide(side), domain.Outcome(outcome)
		t.EntryTime = fromNanos(entry)
		t.ExitTime = timePtr(exitTime)
		t.ExitPrice, t.PnL, t.PnLPct = floatPtr(exitPrice), floatPtr(pnl), floatPtr(pct)
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) ListTrades(ctx context.Context, opts domain.ListOpts) ([]domain.Trade, error) {
	query := `SELECT ` + tradeCols + ` FROM trades WHERE 1=1`
	var args []any
	if opts.Since != nil {
		query += ` AND entry_time >= ?`
		args = append(args, nanos(*opts.Since))
	}
	if opts.Until != nil {
		query += ` AND entry_time <= ?`
		args = append(args, nanos(*opts.Until))
	}
	query += ` ORDER BY entry_time DESC`
	if opts.Limit > 0 || opts.Offset > 0 {
		limit := opts.Limit
		if limit <= 0 {
			limit = -1
		}
		query += ` LIMIT ? OFFSET ?`
		args = append(args, limit, opts.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list trades: %w", err)
	}
	trades, err := scanTrades(rows)
	if err != nil {
		return nil, fmt.Errorf("sqlite: scan trades: %w", err)
	}
	return trades, nil
}

func (s *Store) ListClosedTradesBetween(ctx context.Context, from, to time.Time) ([]domain.Trade, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+tradeCols+` FROM trades WHERE exit_time >= ? AND exit_time < ? ORDER BY exit_time`,
		nanos(from), nanos(to))
	if err != nil {
		return nil, fmt.Errorf("sqlite: list closed trades: %w", err)
	}
	trades, err := scanTrades(rows)
	if err != nil {
		return nil, fmt.Errorf("sqlite: scan closed trades: %w", err)
	}
	return trades, nil
}

func (s *Store) ListEventsBetween(ctx context.Context, from, to time.Time) ([]domain.ScoringEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, contest_id, sport, occurred_at, period, clock, minute,
			scoring_team_id, scoring_team_name, is_home, points, scoring_type,
			home_score, away_score
		FROM scoring_events WHERE occurred_at >= ? AND occurred_at < ? ORDER BY occurred_at`,
		nanos(from), nanos(to))
	if err != nil {
		return nil, fmt.Errorf("sqlite: list events: %w", err)
	}
	defer rows.Close()

	var out []domain.ScoringEvent
	for rows.Next() {
		var ev domain.ScoringEvent
		var sport string
		var at int64
		if err := rows.Scan(
			&ev.ID, &ev.ContestID, &sport, &at, &ev.Period, &ev.Clock, &ev.Minute,
			&ev.ScoringTeamID, &ev.ScoringTeamName, &ev.IsHome, &ev.Points, &ev.ScoringType,
			&ev.HomeScore, &ev.AwayScore,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scan event: %w", err)
		}
		ev.Sport, ev.Timestamp = domain.Sport(sport), fromNanos(at)
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: list events rows: %w", err)
	}
	return out, nil
}

func (s *Store) TradeSummary(ctx context.Context) (domain.TradeSummary, error) {
	var sum domain.TradeSummary
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COUNT(exit_time),
			COALESCE(SUM(CASE WHEN pnl > 0 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN pnl < 0 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(pnl), 0.0),
			COALESCE(MAX(pnl), 0.0),
			COALESCE(MIN(pnl), 0.0)
		FROM trades`,
	).Scan(&sum.Total, &sum.Closed, &sum.Wins, &sum.Losses, &sum.TotalPnL, &sum.BestPnL, &sum.WorstPnL)
	if err != nil {
		return sum, fmt.Errorf("sqlite: trade summary: %w", err)
	}
	return sum, nil
}

func (s *Store) LatestSnapshot(ctx context.Context) (domain.Snapshot, error) {
	var snap domain.Snapshot
	var at int64
	var risk, metrics, telemetry string
	err := s.db.QueryRowContext(ctx,
		`SELECT taken_at, risk, metrics, telemetry FROM metrics_snapshots ORDER BY taken_at DESC, id DESC LIMIT 1`,
	).Scan(&at, &risk, &metrics, &telemetry)
	if errors.Is(err, sql.ErrNoRows) {
		return snap, domain.ErrNotFound
	}
	if err != nil {
		return snap, fmt.Errorf("sqlite: latest snapshot: %w", err)
	}
	snap.TakenAt = fromNanos(at)
	if err := errors.Join(
		json.Unmarshal([]byte(risk), &snap.Risk),
		json.Unmarshal([]byte(metrics), &snap.Metrics),
		json.Unmarshal([]byte(telemetry), &snap.Telemetry),
	); err != nil {
		return snap, fmt.Errorf("sqlite: decode snapshot: %w", err)
	}
	return snap, nil
}

var _ domain.HistoryReader = (*Store)(nil)
