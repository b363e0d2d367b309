package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/alanyoungcy/scoretrader/internal/domain"
)

const tradeCols = `id, position_id, contest_id, market_id, exchange, side, outcome, size,
	entry_price, exit_price, entry_time, exit_time, pnl, pnl_pct,
	reason, exit_reason, event_id, latency_ms, slippage`

const eventCols = `id, contest_id, sport, occurred_at, period, clock, minute,
	scoring_team_id, scoring_team_name, is_home, points, scoring_type,
	home_score, away_score`

func scanTrades(rows pgx.Rows) ([]domain.Trade, error) {
	defer rows.Close()
	var out []domain.Trade
	for rows.Next() {
		var t domain.Trade
		var side, outcome string
		if err := rows.Scan(
			&t.ID, &t.PositionID, &t.ContestID, &t.MarketID, &t.Exchange, &side, &outcome, &t.Size,
			&t.EntryPrice, &t.ExitPrice, &t.EntryTime, &t.ExitTime, &t.PnL, &t.PnLPct,
			&t.Reason, &t.ExitReason, &t.EventID, &t.LatencyMs, &t.Slippage,
		); err != nil {
			return nil, err
		}
		t.Side, t.Outcome = domain.OrderSide(side), domain.Outcome(outcome)
		out = append(out, t)
	}
	return out, rows.Err()
}

// ListTrades returns trades newest first, filtered on entry time.
func (r *Recorder) ListTrades(ctx context.Context, opts domain.ListOpts) ([]domain.Trade, error) {
	query := `SELECT ` + tradeCols + ` FROM trades WHERE 1=1`
	args := []any{}
	add := func(clause string, v any) {
		args = append(args, v)
		query += fmt.Sprintf(clause, len(args))
	}
	if opts.Since != nil {
		add(" AND entry_time >= $%d", *opts.Since)
	}
	if opts.Until != nil {
		add(" AND entry_time <= $%d", *opts.Until)
	}
	query += " ORDER BY entry_time DESC"
	if opts.Limit > 0 {
		add(" LIMIT $%d", opts.Limit)
	}
	if opts.Offset > 0 {
		add(" OFFSET $%d", opts.Offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trades: %w", err)
	}
	trades, err := scanTrades(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan trades: %w", err)
	}
	return trades, nil
}

// ListClosedTradesBetween returns trades whose exit falls in [from, to).
func (r *Recorder) ListClosedTradesBetween(ctx context.Context, from, to time.Time) ([]domain.Trade, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+tradeCols+` FROM trades
		 WHERE exit_time >= $1 AND exit_time < $2
		 ORDER BY exit_time`, from, to)
	if err != nil {
		return nil, fmt.Errorf("postgres: list closed trades: %w", err)
	}
	trades, err := scanTrades(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan closed trades: %w", err)
	}
	return trades, nil
}

// ListEventsBetween returns scoring events that occurred in [from, to).
func (r *Recorder) ListEventsBetween(ctx context.Context, from, to time.Time) ([]domain.ScoringEvent, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+eventCols+` FROM scoring_events
		 WHERE occurred_at >= $1 AND occurred_at < $2
		 ORDER BY occurred_at`, from, to)
	if err != nil {
		return nil, fmt.Errorf("postgres: list events: %w", err)
	}
	defer rows.Close()

	var out []domain.ScoringEvent
	for rows.Next() {
		var ev domain.ScoringEvent
		var sport string
		if err := rows.Scan(
			&ev.ID, &ev.ContestID, &sport, &ev.Timestamp, &ev.Period, &ev.Clock, &ev.Minute,
			&ev.ScoringTeamID, &ev.ScoringTeamName, &ev.IsHome, &ev.Points, &ev.ScoringType,
			&ev.HomeScore, &ev.AwayScore,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan event: %w", err)
		}
		ev.Sport = domain.Sport(sport)
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list events rows: %w", err)
	}
	return out, nil
}

func (r *Recorder) TradeSummary(ctx context.Context) (domain.TradeSummary, error) {
	var s domain.TradeSummary
	err := r.pool.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(exit_time),
			COUNT(*) FILTER (WHERE pnl > 0),
			COUNT(*) FILTER (WHERE pnl < 0),
			COALESCE(SUM(pnl), 0)::float8,
			COALESCE(MAX(pnl), 0)::float8,
			COALESCE(MIN(pnl), 0)::float8
		FROM trades`,
	).Scan(&s.Total, &s.Closed, &s.Wins, &s.Losses, &s.TotalPnL, &s.BestPnL, &s.WorstPnL)
	if err != nil {
		return s, fmt.Errorf("postgres: trade summary: %w", err)
	}
	return s, nil
}

// LatestSnapshot returns the most recent metrics snapshot.
func (r *Recorder) LatestSnapshot(ctx context.Context) (domain.Snapshot, error) {
	var s domain.Snapshot
	var risk, metrics, telemetry []byte
	err := r.pool.QueryRow(ctx,
		`SELECT taken_at, risk, metrics, telemetry FROM metrics_snapshots ORDER BY taken_at DESC LIMIT 1`,
	).Scan(&s.TakenAt, &risk, &metrics, &telemetry)
	if errors.Is(err, pgx.ErrNoRows) {
		return s, domain.ErrNotFound
	}
	if err != nil {
		return s, fmt.Errorf("postgres: latest snapshot: %w", err)
	}
	if err := unmarshalSnapshot(&s, risk, metrics, telemetry); err != nil {
		return s, fmt.Errorf("postgres: latest snapshot: %w", err)
	}
	return s, nil
}

func unmarshalSnapshot(s *domain.Snapshot, risk, metrics, telemetry []byte) error {
	if err := json.Unmarshal(risk, &s.Risk); err != nil {
		return err
	}
	if err := json.Unmarshal(metrics, &s.Metrics); err != nil {
		return err
	}
	return json.Unmarshal(telemetry, &s.Telemetry)
}

var _ domain.HistoryReader = (*Recorder)(nil)
