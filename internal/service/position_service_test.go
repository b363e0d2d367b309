package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/scoretrader/internal/domain"
	"github.com/alanyoungcy/scoretrader/internal/ledger"
	"github.com/alanyoungcy/scoretrader/internal/service"
)

type closeCall struct {
	id     string
	price  float64
	reason string
}

type recordingCloser struct {
	mu     sync.Mutex
	ledger *ledger.Memory
	calls  []closeCall
}

func (c *recordingCloser) ClosePosition(_ context.Context, id string, price float64, reason string) (domain.Position, error) {
	c.mu.Lock()
	c.calls = append(c.calls, closeCall{id, price, reason})
	c.mu.Unlock()
	p, _, err := c.ledger.ClosePosition(id, price, "exit-"+id, reason, time.Now().UTC())
	return p, err
}

func openAt(id, market string, entry float64, opened time.Time) domain.Position {
	return domain.Position{
		ID: id, ContestID: "401", MarketID: market, Outcome: domain.OutcomeYes,
		Size: 50, EntryPrice: entry, CurrentPrice: entry,
		Status: domain.PositionStatusOpen, OpenedAt: opened,
	}
}

func TestPositionService_SweepAppliesPolicy(t *testing.T) {
	now := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)
	l := ledger.NewMemory(10)
	l.UpsertContest(domain.Contest{ID: "401", Status: domain.ContestInProgress})
	l.AddPosition(openAt("up", "KX-UP", 0.30, now.Add(-10*time.Minute)))
	l.AddPosition(openAt("down", "KX-DOWN", 0.30, now.Add(-10*time.Minute)))
	l.AddPosition(openAt("flat", "KX-FLAT", 0.30, now.Add(-10*time.Minute)))
	l.AddPosition(openAt("old", "KX-OLD", 0.30, now.Add(-3*time.Hour)))

	resolver := &stubResolver{mapping: domain.MarketMapping{Markets: []domain.Market{
		{ID: "KX-UP", YesPrice: 0.36},
		{ID: "KX-DOWN", YesPrice: 0.26},
		{ID: "KX-OLD", YesPrice: 0.30},
	}}}
	prices := &fakePrices{}
	require.NoError(t, prices.SetPrice(context.Background(), "KX-FLAT", 0.31, now))

	closer := &recordingCloser{ledger: l}
	policy := service.ExitPolicy{TakeProfitPct: 0.15, StopLossPct: 0.10, MaxHold: 90 * time.Minute}
	svc := service.NewPositionService(l, resolver, prices, closer, policy, time.Second, discard())
	svc.SetClock(func() time.Time { return now })

	n := svc.Sweep(context.Background())
	assert.Equal(t, 3, n)

	reasons := map[string]string{}
	for _, c := range closer.calls {
		reasons[c.id] = c.reason
	}
	assert.Equal(t, map[string]string{
		"up":   "take_profit",
		"down": "stop_loss",
		"old":  "time_exit",
	}, reasons)

	open := l.OpenPositions()
	require.Len(t, open, 1)
	assert.Equal(t, "flat", open[0].ID)
	assert.Equal(t, 0.31, open[0].CurrentPrice, "price cache fallback")
}

func TestPositionService_ContestEnded(t *testing.T) {
	now := time.Now().UTC()
	l := ledger.NewMemory(10)
	l.UpsertContest(domain.Contest{ID: "401", Status: domain.ContestFinal})
	l.AddPosition(openAt("p1", "KX-1", 0.30, now))

	closer := &recordingCloser{ledger: l}
	svc := service.NewPositionService(l, nil, nil, closer, service.ExitPolicy{TakeProfitPct: 0.15, StopLossPct: 0.10}, 0, discard())

	assert.Equal(t, 1, svc.Sweep(context.Background()))
	require.Len(t, closer.calls, 1)
	assert.Equal(t, "match_ended", closer.calls[0].reason)
	assert.Equal(t, 0.30, closer.calls[0].price, "last known price")
}

func TestPositionService_CloseManual(t *testing.T) {
	l := ledger.NewMemory(10)
	l.AddPosition(openAt("p1", "KX-1", 0.30, time.Now().UTC()))
	resolver := &stubResolver{mapping: domain.MarketMapping{Markets: []domain.Market{{ID: "KX-1", YesPrice: 0.33}}}}
	closer := &recordingCloser{ledger: l}
	svc := service.NewPositionService(l, resolver, nil, closer, service.ExitPolicy{}, 0, discard())

	p, err := svc.CloseManual(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, domain.PositionStatusClosed, p.Status)
	assert.Equal(t, closeCall{"p1", 0.33, "manual"}, closer.calls[0])

	_, err = svc.CloseManual(context.Background(), "p1")
	assert.ErrorIs(t, err, domain.ErrPositionNotOpen)
	_, err = svc.CloseManual(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPositionService_RunStopsOnCancel(t *testing.T) {
	l := ledger.NewMemory(10)
	svc := service.NewPositionService(l, nil, nil, &recordingCloser{ledger: l}, service.ExitPolicy{}, 5*time.Millisecond, discard())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}
