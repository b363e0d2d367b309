package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/scoretrader/internal/domain"
)

// Recorder upserts ledger entries by id. Orders, positions and trades are
// written again on every state change, so the row always reflects the
// latest in-memory copy.
type Recorder struct {
	pool *pgxpool.Pool
}

func NewRecorder(pool *pgxpool.Pool) *Recorder {
	return &Recorder{pool: pool}
}

func (r *Recorder) RecordEvent(ctx context.Context, ev domain.ScoringEvent) error {
	const q = `
		INSERT INTO scoring_events (
			id, contest_id, sport, occurred_at, period, clock, minute,
			scoring_team_id, scoring_team_name, is_home, points, scoring_type,
			home_score, away_score
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		ON CONFLICT (id) DO NOTHING`
	_, err := r.pool.Exec(ctx, q,
		ev.ID, ev.ContestID, string(ev.Sport), ev.Timestamp, ev.Period, ev.Clock, ev.Minute,
		ev.ScoringTeamID, ev.ScoringTeamName, ev.IsHome, ev.Points, ev.ScoringType,
		ev.HomeScore, ev.AwayScore,
	)
	if err != nil {
		return fmt.Errorf("postgres: record event %s: %w", ev.ID, err)
	}
	return nil
}

func (r *Recorder) RecordOrder(ctx context.Context, o domain.Order) error {
	const q = `
		INSERT INTO orders (
			id, intent_id, contest_id, market_id, exchange, side, outcome,
			requested_size, limit_price, filled_size, avg_fill_price, status,
			exchange_order_id, error_message, event_id, created_at, submitted_at, filled_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
		ON CONFLICT (id) DO UPDATE SET
			filled_size = EXCLUDED.filled_size,
			avg_fill_price = EXCLUDED.avg_fill_price,
			status = EXCLUDED.status,
			exchange_order_id = EXCLUDED.exchange_order_id,
			error_message = EXCLUDED.error_message,
			submitted_at = EXCLUDED.submitted_at,
			filled_at = EXCLUDED.filled_at`
	_, err := r.pool.Exec(ctx, q,
		o.ID, o.IntentID, o.ContestID, o.MarketID, o.Exchange, string(o.Side), string(o.Outcome),
		o.RequestedSize, o.LimitPrice, o.FilledSize, o.AvgFillPrice, string(o.Status),
		o.ExchangeOrderID, o.ErrorMessage, o.EventID, o.CreatedAt, o.SubmittedAt, o.FilledAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: record order %s: %w", o.ID, err)
	}
	return nil
}

func (r *Recorder) RecordPosition(ctx context.Context, p domain.Position) error {
	const q = `
		INSERT INTO positions (
			id, contest_id, market_id, exchange, outcome, size, entry_price,
			current_price, unrealized_pnl, realized_pnl, status, opened_at,
			closed_at, exit_price, entry_order_id, exit_order_id, exit_reason, event_id
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
		ON CONFLICT (id) DO UPDATE SET
			current_price = EXCLUDED.current_price,
			unrealized_pnl = EXCLUDED.unrealized_pnl,
			realized_pnl = EXCLUDED.realized_pnl,
			status = EXCLUDED.status,
			closed_at = EXCLUDED.closed_at,
			exit_price = EXCLUDED.exit_price,
			exit_order_id = EXCLUDED.exit_order_id,
			exit_reason = EXCLUDED.exit_reason`
	_, err := r.pool.Exec(ctx, q,
		p.ID, p.ContestID, p.MarketID, p.Exchange, string(p.Outcome), p.Size, p.EntryPrice,
		p.CurrentPrice, p.UnrealizedPnL, p.RealizedPnL, string(p.Status), p.OpenedAt,
		p.ClosedAt, p.ExitPrice, p.EntryOrderID, p.ExitOrderID, p.ExitReason, p.EventID,
	)
	if err != nil {
		return fmt.Errorf("postgres: record position %s: %w", p.ID, err)
	}
	return nil
}

func (r *Recorder) RecordTrade(ctx context.Context, t domain.Trade) error {
	const q = `
		INSERT INTO trades (
			id, position_id, contest_id, market_id, exchange, side, outcome, size,
			entry_price, exit_price, entry_time, exit_time, pnl, pnl_pct,
			reason, exit_reason, event_id, latency_ms, slippage
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
		ON CONFLICT (id) DO UPDATE SET
			exit_price = EXCLUDED.exit_price,
			exit_time = EXCLUDED.exit_time,
			pnl = EXCLUDED.pnl,
			pnl_pct = EXCLUDED.pnl_pct,
			exit_reason = EXCLUDED.exit_reason`
	_, err := r.pool.Exec(ctx, q,
		t.ID, t.PositionID, t.ContestID, t.MarketID, t.Exchange, string(t.Side), string(t.Outcome), t.Size,
		t.EntryPrice, t.ExitPrice, t.EntryTime, t.ExitTime, t.PnL, t.PnLPct,
		t.Reason, t.ExitReason, t.EventID, t.LatencyMs, t.Slippage,
	)
	if err != nil {
		return fmt.Errorf("postgres: record trade %s: %w", t.ID, err)
	}
	return nil
}

func (r *Recorder) RecordSnapshot(ctx context.Context, s domain.Snapshot) error {
	risk, err := json.Marshal(s.Risk)
	if err != nil {
		return fmt.Errorf("postgres: marshal risk: %w", err)
	}
	metrics, err := json.Marshal(s.Metrics)
	if err != nil {
		return fmt.Errorf("postgres: marshal metrics: %w", err)
	}
	telemetry, err := json.Marshal(s.Telemetry)
	if err != nil {
		return fmt.Errorf("postgres: marshal telemetry: %w", err)
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO metrics_snapshots (taken_at, risk, metrics, telemetry) VALUES ($1,$2,$3,$4)`,
		s.TakenAt, risk, metrics, telemetry,
	)
	if err != nil {
		return fmt.Errorf("postgres: record snapshot: %w", err)
	}
	return nil
}

// Audit appends to audit_log. detail is stored as JSONB.
func (r *Recorder) Audit(ctx context.Context, event string, detail map[string]any) error {
	data, err := json.Marshal(detail)
	if err != nil {
		return fmt.Errorf("postgres: marshal audit detail: %w", err)
	}
	if _, err := r.pool.Exec(ctx, `INSERT INTO audit_log (event, detail) VALUES ($1, $2)`, event, data); err != nil {
		return fmt.Errorf("postgres: audit %s: %w", event, err)
	}
	return nil
}

var _ domain.Recorder = (*Recorder)(nil)
