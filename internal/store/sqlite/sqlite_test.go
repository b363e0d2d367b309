package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/scoretrader/internal/domain"
	"github.com/alanyoungcy/scoretrader/internal/store/sqlite"
)

func openStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "data", "scoretrader.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func closedTrade(id string, entry time.Time, pnl float64) domain.Trade {
	exit := entry.Add(30 * time.Minute)
	exitPrice := 0.3
	return domain.Trade{
		ID: id, PositionID: "p-" + id, ContestID: "401", MarketID: "KXNFL-BUF", Exchange: "kalshi",
		Side: domain.OrderSideBuy, Outcome: domain.OutcomeYes, Size: 50, EntryPrice: 0.27,
		EntryTime: entry, ExitTime: &exit, ExitPrice: &exitPrice, PnL: &pnl, Reason: "underdog TD",
	}
}

func TestStore_TradesRoundTrip(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)

	open := domain.Trade{ID: "t0", PositionID: "p0", ContestID: "401", MarketID: "KX", Exchange: "kalshi",
		Side: domain.OrderSideBuy, Outcome: domain.OutcomeYes, Size: 20, EntryPrice: 0.4, EntryTime: base}
	require.NoError(t, s.RecordTrade(ctx, open))
	require.NoError(t, s.RecordTrade(ctx, closedTrade("t1", base.Add(time.Hour), 5.5)))
	require.NoError(t, s.RecordTrade(ctx, closedTrade("t2", base.Add(2*time.Hour), -3)))

	// re-recording an open trade with its exit updates the row
	open = closedTrade("t0", base, 1.25)
	require.NoError(t, s.RecordTrade(ctx, open))

	all, err := s.ListTrades(ctx, domain.ListOpts{Limit: 2})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "t2", all[0].ID)
	assert.Equal(t, "t1", all[1].ID)

	got, err := s.ListTrades(ctx, domain.ListOpts{Offset: 2})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "t0", got[0].ID)
	require.NotNil(t, got[0].PnL)
	assert.Equal(t, 1.25, *got[0].PnL)
	assert.True(t, got[0].EntryTime.Equal(base))

	closed, err := s.ListClosedTradesBetween(ctx, base.Add(time.Hour), base.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Len(t, closed, 2)

	sum, err := s.TradeSummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.TradeSummary{Total: 3, Closed: 3, Wins: 2, Losses: 1, TotalPnL: 3.75, BestPnL: 5.5, WorstPnL: -3}, sum)
}

func TestStore_EventsAreInsertedOnce(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 18, 5, 0, 0, time.UTC)
	ev := domain.ScoringEvent{
		ID: "nfl-401-away-20-2", ContestID: "401", Sport: domain.SportNFL, Timestamp: at, Period: 2,
		ScoringTeamID: "2", ScoringTeamName: "Buffalo Bills", IsHome: false, Points: 7,
		ScoringType: "touchdown", HomeScore: 14, AwayScore: 20,
	}
	require.NoError(t, s.RecordEvent(ctx, ev))
	require.NoError(t, s.RecordEvent(ctx, ev))

	events, err := s.ListEventsBetween(ctx, at, at.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, ev, events[0])
}

func TestStore_OrdersPositionsAudit(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	now := time.Now().UTC()
	fill := 0.27

	o := domain.Order{ID: "o1", IntentID: "i1", ContestID: "401", MarketID: "KX", Exchange: "kalshi",
		Side: domain.OrderSideBuy, Outcome: domain.OutcomeYes, RequestedSize: 50, LimitPrice: 0.27,
		Status: domain.OrderStatusPending, CreatedAt: now}
	require.NoError(t, s.RecordOrder(ctx, o))
	o.Status, o.AvgFillPrice, o.FilledAt = domain.OrderStatusFilled, &fill, &now
	require.NoError(t, s.RecordOrder(ctx, o))

	p := domain.Position{ID: "p1", ContestID: "401", MarketID: "KX", Exchange: "kalshi", Outcome: domain.OutcomeYes,
		Size: 50, EntryPrice: 0.27, CurrentPrice: 0.27, Status: domain.PositionStatusOpen, OpenedAt: now}
	require.NoError(t, s.RecordPosition(ctx, p))
	require.NoError(t, p.Close(0.3, "o2", "take_profit", now))
	require.NoError(t, s.RecordPosition(ctx, p))

	assert.NoError(t, s.Audit(ctx, "trading_enabled", map[string]any{"by": "api"}))
}

func TestStore_LatestSnapshot(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	_, err := s.LatestSnapshot(ctx)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.RecordSnapshot(ctx, domain.Snapshot{TakenAt: t0, Risk: domain.RiskStatus{DailyPnL: -10}}))
	require.NoError(t, s.RecordSnapshot(ctx, domain.Snapshot{
		TakenAt:   t0.Add(5 * time.Minute),
		Risk:      domain.RiskStatus{DailyPnL: 12.5},
		Metrics:   domain.TradingMetrics{TotalTrades: 3},
		Telemetry: domain.TelemetrySnapshot{Healthy: true},
	}))

	snap, err := s.LatestSnapshot(ctx)
	require.NoError(t, err)
	assert.True(t, snap.TakenAt.Equal(t0.Add(5*time.Minute)))
	assert.Equal(t, 12.5, snap.Risk.DailyPnL)
	assert.Equal(t, 3, snap.Metrics.TotalTrades)
	assert.True(t, snap.Telemetry.Healthy)
}
