package strategy_test

import (
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/scoretrader/internal/domain"
	"github.com/alanyoungcy/scoretrader/internal/strategy"
)

func ptr(v float64) *float64 { return &v }

func newEvaluator() *strategy.Evaluator {
	cfg := strategy.DefaultConfig()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return strategy.NewEvaluator(strategy.DefaultRegistry(cfg), cfg, logger)
}

func nbaContest() domain.Contest {
	return domain.Contest{
		ID:     "401",
		Sport:  domain.SportNBA,
		Home:   domain.Team{ID: "1", Name: "Boston Celtics"},
		Away:   domain.Team{ID: "2", Name: "Detroit Pistons"},
		Status: domain.ContestInProgress,
		Period: 2,
	}
}

func pistonsRun() domain.ScoringEvent {
	return domain.ScoringEvent{
		ID: "nba-401-away-50-2", ContestID: "401", Sport: domain.SportNBA,
		Period: 2, ScoringTeamID: "2", ScoringTeamName: "Detroit Pistons",
		IsHome: false, Points: 10, ScoringType: "scoring_run",
		HomeScore: 52, AwayScore: 50,
	}
}

func mappingWithProb(awayProb float64, price float64) domain.MarketMapping {
	return domain.MarketMapping{
		ContestID:        "401",
		PreEventHomeProb: ptr(1 - awayProb),
		PreEventAwayProb: ptr(awayProb),
		Markets: []domain.Market{{
			ID: "KXNBA-DET", Exchange: "kalshi", Title: "Will Detroit Pistons win?",
			YesPrice: price, YesVolume: 5000, NoVolume: 3000, Status: domain.MarketStatusOpen,
		}},
	}
}

func TestEvaluate_UnderdogProducesIntent(t *testing.T) {
	e := newEvaluator()
	intent, reason := e.Evaluate(pistonsRun(), nbaContest(), mappingWithProb(0.35, 0.35))

	require.NotNil(t, intent, reason)
	assert.Equal(t, domain.OrderSideBuy, intent.Side)
	assert.Equal(t, domain.OutcomeYes, intent.Outcome)
	assert.Equal(t, "KXNBA-DET", intent.MarketID)
	assert.Equal(t, 0.37, intent.LimitPrice)
	assert.Zero(t, intent.Size)
	assert.Equal(t, "nba-401-away-50-2", intent.EventID)
	assert.Contains(t, intent.Reason, "Underdog Detroit Pistons scored")
	assert.Contains(t, intent.Reason, "Value found")
	assert.Equal(t, intent.Reason, reason)
}

func TestEvaluate_FavoriteRejected(t *testing.T) {
	e := newEvaluator()
	intent, reason := e.Evaluate(pistonsRun(), nbaContest(), mappingWithProb(0.65, 0.35))
	assert.Nil(t, intent)
	assert.Contains(t, reason, "Favorite scored")
}

func TestEvaluate_Soccer(t *testing.T) {
	e := newEvaluator()
	c := domain.Contest{
		ID: "g1", Sport: domain.SportSoccer, Status: domain.ContestInProgress,
		Home: domain.Team{ID: "h", Name: "Arsenal"}, Away: domain.Team{ID: "a", Name: "Brentford FC"},
		Minute: 30,
	}
	ev := domain.ScoringEvent{
		ID: "soccer-g1-away-1-1", ContestID: "g1", Sport: domain.SportSoccer, Points: 1,
		ScoringTeamName: "Brentford FC", IsHome: false, Minute: 30, HomeScore: 0, AwayScore: 1, Period: 1,
	}
	m := domain.MarketMapping{
		PreEventHomeProb: ptr(0.65), PreEventAwayProb: ptr(0.35),
		Markets: []domain.Market{{ID: "BRE", Title: "Brentford to win", YesPrice: 0.35, YesVolume: 400, NoVolume: 100, Status: domain.MarketStatusOpen}},
	}

	intent, reason := e.Evaluate(ev, c, m)
	require.NotNil(t, intent, reason)

	ev.Minute = 80
	intent, reason = e.Evaluate(ev, c, m)
	assert.Nil(t, intent)
	assert.Contains(t, reason, "Not enough time remaining")
}

func TestEvaluate_Steps(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(ev *domain.ScoringEvent, c *domain.Contest, m *domain.MarketMapping)
		want   string
	}{
		{"insignificant", func(ev *domain.ScoringEvent, _ *domain.Contest, _ *domain.MarketMapping) { ev.Points = 4 }, "Insignificant score"},
		{"no market", func(_ *domain.ScoringEvent, _ *domain.Contest, m *domain.MarketMapping) { m.Markets = nil }, "No suitable market"},
		{"price too hot", func(_ *domain.ScoringEvent, _ *domain.Contest, m *domain.MarketMapping) { m.Markets[0].YesPrice = 0.72 }, "Price too high"},
		{"no value", func(_ *domain.ScoringEvent, _ *domain.Contest, m *domain.MarketMapping) { m.Markets[0].YesPrice = 0.60 }, "No clear value"},
		{"thin market", func(_ *domain.ScoringEvent, _ *domain.Contest, m *domain.MarketMapping) {
			m.Markets[0].YesVolume, m.Markets[0].NoVolume = 40, 20
		}, "Insufficient liquidity"},
		{"fourth quarter", func(ev *domain.ScoringEvent, _ *domain.Contest, _ *domain.MarketMapping) { ev.Period = 4 }, "Too late"},
		{"blowout", func(ev *domain.ScoringEvent, _ *domain.Contest, _ *domain.MarketMapping) {
			ev.HomeScore, ev.AwayScore = 90, 60
		}, "Blowout"},
		{"unknown sport", func(ev *domain.ScoringEvent, _ *domain.Contest, _ *domain.MarketMapping) { ev.Sport = "cricket" }, "unknown sport"},
	}

	e := newEvaluator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, c, m := pistonsRun(), nbaContest(), mappingWithProb(0.35, 0.35)
			tt.mutate(&ev, &c, &m)
			intent, reason := e.Evaluate(ev, c, m)
			assert.Nil(t, intent)
			assert.Contains(t, reason, tt.want)
		})
	}
}

// gatedRules wraps NBA rules with a composite gate that always refuses.
type gatedRules struct {
	*strategy.NBA
	calls int
}

func (g *gatedRules) ShouldTrade(domain.ScoringEvent, domain.Contest, domain.MarketMapping) strategy.Check {
	g.calls++
	return strategy.Check{OK: false, Reason: "halted by sport gate"}
}

func TestEvaluate_UsesSportGate(t *testing.T) {
	cfg := strategy.DefaultConfig()
	gated := &gatedRules{NBA: strategy.NewNBA(strategy.DefaultParams(domain.SportNBA, cfg))}
	registry := strategy.NewRegistry()
	registry.Register(gated)
	e := strategy.NewEvaluator(registry, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))

	intent, reason := e.Evaluate(pistonsRun(), nbaContest(), mappingWithProb(0.35, 0.35))
	assert.Nil(t, intent)
	assert.Equal(t, "halted by sport gate", reason)
	assert.Equal(t, 1, gated.calls)
}

func TestEvaluate_JustificationCarriesGateReason(t *testing.T) {
	e := newEvaluator()
	rules, err := e.Registry().Get(domain.SportNBA)
	require.NoError(t, err)
	ev, c, m := pistonsRun(), nbaContest(), mappingWithProb(0.35, 0.35)

	intent, reason := e.Evaluate(ev, c, m)
	require.NotNil(t, intent, reason)
	assert.True(t, strings.HasPrefix(reason, rules.ShouldTrade(ev, c, m).Reason))
	assert.Contains(t, reason, "Liquidity OK")
}

func TestEvaluate_LimitPriceCapped(t *testing.T) {
	cfg := strategy.DefaultConfig()
	cfg.LimitPremium = 0.6
	e := strategy.NewEvaluator(strategy.DefaultRegistry(cfg), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))

	intent, reason := e.Evaluate(pistonsRun(), nbaContest(), mappingWithProb(0.35, 0.40))
	require.NotNil(t, intent, reason)
	assert.Equal(t, 0.99, intent.LimitPrice)

	intent, reason = e.Evaluate(pistonsRun(), nbaContest(), mappingWithProb(0.35, 0.30))
	require.NotNil(t, intent, reason)
	assert.Equal(t, 0.90, intent.LimitPrice)
}

func TestSelectMarket(t *testing.T) {
	markets := []domain.Market{
		{ID: "a", Title: "Detroit total points over 210", Status: domain.MarketStatusOpen},
		{ID: "b", Title: "Detroit Pistons to win", Status: domain.MarketStatusClosed},
		{ID: "c", Title: "Will Detroit win the game?", Status: domain.MarketStatusOpen, YesVolume: 500},
		{ID: "d", Title: "Will Detroit win tonight?", Status: domain.MarketStatusOpen, YesVolume: 900},
		{ID: "e", Title: "Celtics to win", Status: domain.MarketStatusOpen, YesVolume: 900},
	}
	best := strategy.SelectMarket("Detroit Pistons", markets, 100)
	require.NotNil(t, best)
	assert.Equal(t, "c", best.ID, "first market wins a tie")

	assert.Nil(t, strategy.SelectMarket("Utah Jazz", markets, 100))
	assert.Nil(t, strategy.SelectMarket("", markets, 100))
}

func TestCheckValue(t *testing.T) {
	assert.True(t, strategy.CheckValue(0.30, ptr(0.25), 0.7, 0.1, 0.5).OK)
	assert.True(t, strategy.CheckValue(0.45, nil, 0.7, 0.1, 0.5).OK)
	assert.False(t, strategy.CheckValue(0.55, ptr(0.40), 0.7, 0.1, 0.5).OK)
	assert.False(t, strategy.CheckValue(0.71, ptr(0.65), 0.7, 0.1, 0.5).OK)
}
