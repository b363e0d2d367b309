package sqlite

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/alanyoungcy/scoretrader/internal/domain"
)

func (s *Store) RecordEvent(ctx context.Context, ev domain.ScoringEvent) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scoring_events (
			id, contest_id, sport, occurred_at, period, clock, minute,
			scoring_team_id, scoring_team_name, is_home, points, scoring_type,
			home_score, away_score
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT (id) DO NOTHING`,
		ev.ID, ev.ContestID, string(ev.Sport), nanos(ev.Timestamp), ev.Period, ev.Clock, ev.Minute,
		ev.ScoringTeamID, ev.ScoringTeamName, ev.IsHome, ev.Points, ev.ScoringType,
		ev.HomeScore, ev.AwayScore,
	)
	if err != nil {
		return fmt.Errorf("sqlite: record event %s: %w", ev.ID, err)
	}
	return nil
}

func (s *Store) RecordOrder(ctx context.Context, o domain.Order) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO orders (
			id, intent_id, contest_id, market_id, exchange, side, outcome,
			requested_size, limit_price, filled_size, avg_fill_price, status,
			exchange_order_id, error_message, event_id, created_at, submitted_at, filled_at
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT (id) DO UPDATE SET
			filled_size = excluded.filled_size,
			avg_fill_price = excluded.avg_fill_price,
			status = excluded.status,
			exchange_order_id = excluded.exchange_order_id,
			error_message = excluded.error_message,
			submitted_at = excluded.submitted_at,
			filled_at = excluded.filled_at`,
		o.ID, o.IntentID, o.ContestID, o.MarketID, o.Exchange, string(o.Side), string(o.Outcome),
		o.RequestedSize, o.LimitPrice, o.FilledSize, nullFloat(o.AvgFillPrice), string(o.Status),
		o.ExchangeOrderID, o.ErrorMessage, o.EventID, nanos(o.CreatedAt), nullNanos(o.SubmittedAt), nullNanos(o.FilledAt),
	)
	if err != nil {
		return fmt.Errorf("sqlite: record order %s: %w", o.ID, err)
	}
	return nil
}

func (s *Store) RecordPosition(ctx context.Context, p domain.Position) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO positions (
			id, contest_id, market_id, exchange, outcome, size, entry_price,
			current_price, unrealized_pnl, realized_pnl, status, opened_at,
			closed_at, exit_price, entry_order_id, exit_order_id, exit_reason, event_id
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT (id) DO UPDATE SET
			current_price = excluded.current_price,
			unrealized_pnl = excluded.unrealized_pnl,
			realized_pnl = excluded.realized_pnl,
			status = excluded.status,
			closed_at = excluded.closed_at,
			exit_price = excluded.exit_price,
			exit_order_id = excluded.exit_order_id,
			exit_reason = excluded.exit_reason`,
		p.ID, p.ContestID, p.MarketID, p.Exchange, string(p.Outcome), p.Size, p.EntryPrice,
		p.CurrentPrice, p.UnrealizedPnL, p.RealizedPnL, string(p.Status), nanos(p.OpenedAt),
		nullNanos(p.ClosedAt), nullFloat(p.ExitPrice), p.EntryOrderID, p.ExitOrderID, p.ExitReason, p.EventID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: record position %s: %w", p.ID, err)
	}
	return nil
}

func (s *Store) RecordTrade(ctx context.Context, t domain.Trade) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO trades (
			id, position_id, contest_id, market_id, exchange, side, outcome, size,
			entry_price, exit_price, entry_time, exit_time, pnl, pnl_pct,
			reason, exit_reason, event_id, latency_ms, slippage
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT (id) DO UPDATE SET
			exit_price = excluded.exit_price,
			exit_time = excluded.exit_time,
			pnl = excluded.pnl,
			pnl_pct = excluded.pnl_pct,
			exit_reason = excluded.exit_reason`,
		t.ID, t.PositionID, t.ContestID, t.MarketID, t.Exchange, string(t.Side), string(t.Outcome), t.Size,
		t.EntryPrice, nullFloat(t.ExitPrice), nanos(t.EntryTime), nullNanos(t.ExitTime), nullFloat(t.PnL), nullFloat(t.PnLPct),
		t.Reason, t.ExitReason, t.EventID, t.LatencyMs, t.Slippage,
	)
	if err != nil {
		return fmt.Errorf("sqlite: record trade %s: %w", t.ID, err)
	}
	return nil
}

func (s *Store) RecordSnapshot(ctx context.Context, snap domain.Snapshot) error {
	risk, err := json.Marshal(snap.Risk)
	if err != nil {
		return fmt.Errorf("sqlite: marshal risk: %w", err)
	}
	metrics, err := json.Marshal(snap.Metrics)
	if err != nil {
		return fmt.Errorf("sqlite: marshal metrics: %w", err)
	}
	telemetry, err := json.Marshal(snap.Telemetry)
	if err != nil {
		return fmt.Errorf("sqlite: marshal telemetry: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO metrics_snapshots (taken_at, risk, metrics, telemetry) VALUES (?,?,?,?)`,
		nanos(snap.TakenAt), string(risk), string(metrics), string(telemetry),
	); err != nil {
		return fmt.Errorf("sqlite: record snapshot: %w", err)
	}
	return nil
}

func (s *Store) Audit(ctx context.Context, event string, detail map[string]any) error {
	data, err := json.Marshal(detail)
	if err != nil {
		return fmt.Errorf("sqlite: marshal audit detail: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_log (event, detail, created_at) VALUES (?,?,?)`,
		event, string(data), nanos(s.now()),
	); err != nil {
		return fmt.Errorf("sqlite: audit %s: %w", event, err)
	}
	return nil
}

var _ domain.Recorder = (*Store)(nil)
