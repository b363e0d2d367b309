package service_test

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/scoretrader/internal/domain"
	"github.com/alanyoungcy/scoretrader/internal/service"
)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func riskCfg() service.RiskConfig {
	return service.RiskConfig{
		Bankroll:             10000,
		MaxPerTradePct:       0.5,
		DailyLossLimit:       500,
		PerContestMax:        200,
		MaxConsecutiveErrors: 5,
		MinTradeSize:         1,
	}
}

func intentFor(contest string) domain.OrderIntent {
	return domain.OrderIntent{ID: "i-" + contest, ContestID: contest, MarketID: "M", Side: domain.OrderSideBuy, Outcome: domain.OutcomeYes, LimitPrice: 0.3}
}

func TestRisk_ApproveSizesFromBankroll(t *testing.T) {
	r := service.NewRiskService(riskCfg(), discard())
	in := intentFor("c1")

	out, reason := r.Approve(in)
	require.NotNil(t, out, reason)
	assert.Equal(t, 50.0, out.Size)
	assert.Zero(t, in.Size, "input intent is not mutated")
}

func TestRisk_ClampsToDailyBudget(t *testing.T) {
	r := service.NewRiskService(riskCfg(), discard())
	r.RecordResult("other", -480, 0)

	out, reason := r.Approve(intentFor("c1"))
	require.NotNil(t, out, reason)
	assert.Equal(t, 20.0, out.Size)
}

func TestRisk_ClampsToContestBudget(t *testing.T) {
	r := service.NewRiskService(riskCfg(), discard())
	r.RecordResult("c1", 0, 180)

	out, _ := r.Approve(intentFor("c1"))
	require.NotNil(t, out)
	assert.Equal(t, 20.0, out.Size)

	r.RecordResult("c1", 0, 20)
	out, reason := r.Approve(intentFor("c1"))
	assert.Nil(t, out)
	assert.Contains(t, reason, "exposure at cap")
}

func TestRisk_RejectsWhenDailyFloorBreached(t *testing.T) {
	r := service.NewRiskService(riskCfg(), discard())
	r.RecordResult("c9", -500, 0)
	out, reason := r.Approve(intentFor("c1"))
	assert.Nil(t, out)
	assert.Contains(t, reason, "Daily loss limit")
}

func TestRisk_RejectsTinySize(t *testing.T) {
	r := service.NewRiskService(riskCfg(), discard())
	r.RecordResult("c9", -499.5, 0)
	out, reason := r.Approve(intentFor("c1"))
	assert.Nil(t, out)
	assert.Contains(t, reason, "too small")
}

func TestRisk_CircuitBreaker(t *testing.T) {
	var trips int
	r := service.NewRiskService(riskCfg(), discard(), service.WithTripHandler(func(domain.RiskStatus) { trips++ }))

	for i := 0; i < 5; i++ {
		r.RecordError("exchange down")
	}
	assert.True(t, r.Status().CircuitBreakerActive)
	assert.Equal(t, 1, trips)

	r.RecordSuccess()
	st := r.Status()
	assert.True(t, st.CircuitBreakerActive, "success does not clear the breaker")
	assert.Zero(t, st.ConsecutiveErrors)

	out, reason := r.Approve(intentFor("c1"))
	assert.Nil(t, out)
	assert.Contains(t, reason, "Circuit breaker")

	r.ResetCircuitBreaker()
	assert.False(t, r.BreakerActive())
	out, _ = r.Approve(intentFor("c1"))
	assert.NotNil(t, out)
}

func TestRisk_DailyRolloverClearsExposure(t *testing.T) {
	now := time.Date(2026, 5, 1, 23, 0, 0, 0, time.UTC)
	r := service.NewRiskService(riskCfg(), discard(), service.WithClock(func() time.Time { return now }))

	r.RecordResult("c1", -100, 150)
	assert.Equal(t, 150.0, r.ExposureFor("c1"))
	assert.Equal(t, -100.0, r.DailyPnL())

	now = now.Add(2 * time.Hour)
	st := r.Status()
	assert.Zero(t, st.DailyPnL)
	assert.Empty(t, st.ExposureByContest)
	assert.Equal(t, "2026-05-02", st.LastResetDate)
}

func TestRisk_ExposureFloorsAtZero(t *testing.T) {
	r := service.NewRiskService(riskCfg(), discard())
	r.RecordResult("c1", 0, 50)
	r.RecordResult("c1", 5, -60)
	st := r.Status()
	assert.NotContains(t, st.ExposureByContest, "c1")
	assert.Equal(t, 5.0, st.DailyPnL)
	assert.Equal(t, 505.0, st.DailyLossRemaining)
}

func TestRisk_ConcurrentUse(t *testing.T) {
	r := service.NewRiskService(riskCfg(), discard())
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				r.RecordResult("shared", 0, 1)
				_, _ = r.Approve(intentFor("x"))
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 400.0, r.ExposureFor("shared"))
}
