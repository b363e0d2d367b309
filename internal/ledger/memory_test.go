package ledger_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/scoretrader/internal/domain"
	"github.com/alanyoungcy/scoretrader/internal/ledger"
)

func TestMemory_MarkProcessedIsIdempotent(t *testing.T) {
	l := ledger.NewMemory(10)
	ev := domain.ScoringEvent{ID: "nfl-1-home-7-1"}

	assert.False(t, l.IsProcessed(ev.ID))
	assert.True(t, l.MarkProcessed(ev))
	assert.False(t, l.MarkProcessed(ev))
	assert.True(t, l.IsProcessed(ev.ID))
	assert.Len(t, l.RecentEvents(0), 1)
}

func TestMemory_HistoryIsBounded(t *testing.T) {
	l := ledger.NewMemory(3)
	for i := 0; i < 5; i++ {
		l.MarkProcessed(domain.ScoringEvent{ID: fmt.Sprintf("e%d", i)})
	}
	recent := l.RecentEvents(0)
	require.Len(t, recent, 3)
	assert.Equal(t, "e4", recent[0].ID)
	assert.Equal(t, "e2", recent[2].ID)
	assert.Len(t, l.RecentEvents(2), 2)
	// dedup outlives history eviction
	assert.True(t, l.IsProcessed("e0"))
}

func TestMemory_ClearFinished(t *testing.T) {
	l := ledger.NewMemory(0)
	l.UpsertContest(domain.Contest{ID: "a", Status: domain.ContestInProgress})
	l.UpsertContest(domain.Contest{ID: "b", Status: domain.ContestFinal})
	l.SaveMapping(domain.MarketMapping{ContestID: "b"})

	assert.Equal(t, 1, l.ClearFinished())
	_, ok := l.Contest("b")
	assert.False(t, ok)
	_, ok = l.Mapping("b")
	assert.False(t, ok)
	assert.Len(t, l.Contests(), 1)
}

func TestMemory_ClearFinishedKeepsContestsWithOpenPositions(t *testing.T) {
	l := ledger.NewMemory(0)
	now := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)
	l.UpsertContest(domain.Contest{ID: "c1", Status: domain.ContestFinal})
	l.AddPosition(domain.Position{
		ID: "p1", ContestID: "c1", Outcome: domain.OutcomeYes, Size: 50, EntryPrice: 0.30,
		Status: domain.PositionStatusOpen, OpenedAt: now,
	})

	assert.Equal(t, 0, l.ClearFinished())
	c, ok := l.Contest("c1")
	require.True(t, ok)
	assert.Equal(t, domain.ContestFinal, c.Status)

	_, _, err := l.ClosePosition("p1", 0.05, "exit-1", "match_ended", now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, l.ClearFinished())
	_, ok = l.Contest("c1")
	assert.False(t, ok)
}

func TestMemory_ClosePositionFinalizesTrade(t *testing.T) {
	l := ledger.NewMemory(0)
	now := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)
	l.AddPosition(domain.Position{
		ID: "p1", ContestID: "c1", Outcome: domain.OutcomeYes, Size: 50, EntryPrice: 0.30,
		Status: domain.PositionStatusOpen, OpenedAt: now,
	})
	l.AddTrade(domain.Trade{ID: "t1", PositionID: "p1", ContestID: "c1", Outcome: domain.OutcomeYes, Size: 50, EntryPrice: 0.30, EntryTime: now})

	_, err := l.MarkPosition("p1", 0.33)
	require.NoError(t, err)

	p, tr, err := l.ClosePosition("p1", 0.40, "exit-1", "take_profit", now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, domain.PositionStatusClosed, p.Status)
	assert.Equal(t, 16.67, p.RealizedPnL)
	require.True(t, tr.Closed())
	assert.Equal(t, p.RealizedPnL, *tr.PnL)

	assert.Empty(t, l.OpenPositions())
	assert.Len(t, l.ClosedPositions(0), 1)
	stored, ok := l.Position("p1")
	require.True(t, ok)
	assert.Equal(t, domain.PositionStatusClosed, stored.Status)

	_, _, err = l.ClosePosition("p1", 0.40, "exit-2", "manual", now)
	assert.ErrorIs(t, err, domain.ErrPositionNotOpen)

	trades := l.Trades(10)
	require.Len(t, trades, 1)
	assert.NotNil(t, trades[0].ExitTime)
}

func TestMemory_Metrics(t *testing.T) {
	l := ledger.NewMemory(0)
	now := time.Now().UTC()
	for i, exit := range []float64{0.40, 0.20} {
		id := fmt.Sprintf("p%d", i)
		l.AddPosition(domain.Position{ID: id, Outcome: domain.OutcomeYes, Size: 50, EntryPrice: 0.30, Status: domain.PositionStatusOpen})
		l.AddTrade(domain.Trade{ID: "t" + id, PositionID: id, Size: 50, EntryPrice: 0.30, LatencyMs: float64(100 * (i + 1))})
		_, _, err := l.ClosePosition(id, exit, "x", "manual", now)
		require.NoError(t, err)
	}
	l.AddPosition(domain.Position{ID: "open", Size: 20, Status: domain.PositionStatusOpen})

	m := l.Metrics(-5)
	assert.Equal(t, 2, m.TotalTrades)
	assert.Equal(t, 1, m.WinningTrades)
	assert.Equal(t, 1, m.LosingTrades)
	assert.Equal(t, 0.5, m.WinRate)
	assert.Equal(t, 0.0, m.TotalPnL) // +16.67 and -16.67
	assert.Equal(t, 150.0, m.AvgLatencyMs)
	assert.Equal(t, 200.0, m.MaxLatencyMs)
	assert.Equal(t, 1, m.OpenPositions)
	assert.Equal(t, 20.0, m.TotalExposure)
	assert.Equal(t, -5.0, m.DailyPnL)

	l.Reset()
	assert.Zero(t, l.Metrics(0).TotalTrades)
}

func TestMemory_ConcurrentAccess(t *testing.T) {
	l := ledger.NewMemory(50)
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				l.MarkProcessed(domain.ScoringEvent{ID: fmt.Sprintf("%d-%d", w, i)})
				l.UpsertContest(domain.Contest{ID: fmt.Sprintf("%d", w)})
				_ = l.RecentEvents(5)
			}
		}(w)
	}
	wg.Wait()
	assert.Len(t, l.RecentEvents(0), 50)
	assert.Len(t, l.Contests(), 4)
}
