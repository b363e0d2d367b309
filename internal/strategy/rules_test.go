package strategy_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/scoretrader/internal/domain"
	"github.com/alanyoungcy/scoretrader/internal/strategy"
)

func rulesFor(t *testing.T, sport domain.Sport) strategy.Rules {
	t.Helper()
	r, err := strategy.DefaultRegistry(strategy.DefaultConfig()).Get(sport)
	require.NoError(t, err)
	return r
}

func TestRegistry_ListsAllSports(t *testing.T) {
	reg := strategy.DefaultRegistry(strategy.DefaultConfig())
	assert.Equal(t, []domain.Sport{"mlb", "nba", "nfl", "nhl", "soccer"}, reg.List())

	params := reg.ListParams()
	require.Len(t, params, 5)
	assert.Equal(t, 10, params[1].MinPoints)

	_, err := reg.Get("curling")
	assert.ErrorIs(t, err, domain.ErrUnknownSport)
}

func TestIsUnderdog_SpreadFirst(t *testing.T) {
	r := rulesFor(t, domain.SportNFL)
	c := domain.Contest{Spread: ptr(-3.5)} // home favoured
	m := domain.MarketMapping{PreEventHomeProb: ptr(0.2), PreEventAwayProb: ptr(0.8)}

	away := r.IsUnderdog(domain.ScoringEvent{IsHome: false}, c, m)
	assert.True(t, away.IsUnderdog)
	assert.Equal(t, strategy.SourceSpread, away.Source)
	assert.Equal(t, 3.5, *away.Value)

	home := r.IsUnderdog(domain.ScoringEvent{IsHome: true}, c, m)
	assert.False(t, home.IsUnderdog)
}

func TestIsUnderdog_ProbabilityThenDefault(t *testing.T) {
	r := rulesFor(t, domain.SportNFL)
	m := domain.MarketMapping{PreEventHomeProb: ptr(0.55), PreEventAwayProb: ptr(0.44)}

	u := r.IsUnderdog(domain.ScoringEvent{IsHome: false}, domain.Contest{}, m)
	assert.True(t, u.IsUnderdog, "0.44 is under the NFL cutoff")
	assert.Equal(t, strategy.SourceProbability, u.Source)

	fallback := r.IsUnderdog(domain.ScoringEvent{IsHome: false}, domain.Contest{}, domain.MarketMapping{})
	assert.True(t, fallback.IsUnderdog)
	assert.True(t, fallback.LowConfidence())
	assert.Equal(t, strategy.LowConfidenceDefault, fallback.Reason)

	home := r.IsUnderdog(domain.ScoringEvent{IsHome: true}, domain.Contest{}, domain.MarketMapping{})
	assert.False(t, home.IsUnderdog)
}

func TestIsUnderdog_SoccerPrefersProbability(t *testing.T) {
	r := rulesFor(t, domain.SportSoccer)
	c := domain.Contest{Spread: ptr(0.5)} // spread says home is the underdog
	m := domain.MarketMapping{PreEventHomeProb: ptr(0.60), PreEventAwayProb: ptr(0.20)}

	u := r.IsUnderdog(domain.ScoringEvent{IsHome: true}, c, m)
	assert.False(t, u.IsUnderdog)
	assert.Equal(t, strategy.SourceProbability, u.Source)
}

func TestTimeRules(t *testing.T) {
	tests := []struct {
		sport  domain.Sport
		period int
		minute int
		ok     bool
	}{
		{domain.SportNFL, 3, 0, true},
		{domain.SportNFL, 4, 0, false},
		{domain.SportNBA, 4, 0, false},
		{domain.SportMLB, 5, 0, false},
		{domain.SportMLB, 6, 0, true},
		{domain.SportNHL, 2, 0, true},
		{domain.SportNHL, 3, 0, false},
		{domain.SportSoccer, 2, 75, true},
		{domain.SportSoccer, 2, 76, false},
	}
	for _, tt := range tests {
		r := rulesFor(t, tt.sport)
		ev := domain.ScoringEvent{Period: tt.period, Minute: tt.minute}
		chk := r.CheckTimeRemaining(domain.Contest{}, ev)
		assert.Equal(t, tt.ok, chk.OK, "%s period %d minute %d: %s", tt.sport, tt.period, tt.minute, chk.Reason)
	}
}

func TestDifferentialRules(t *testing.T) {
	assert.True(t, rulesFor(t, domain.SportNFL).CheckScoreDifferential(domain.Contest{}, domain.ScoringEvent{HomeScore: 28, AwayScore: 7}).OK)
	assert.False(t, rulesFor(t, domain.SportNFL).CheckScoreDifferential(domain.Contest{}, domain.ScoringEvent{HomeScore: 29, AwayScore: 7}).OK)
	assert.False(t, rulesFor(t, domain.SportNHL).CheckScoreDifferential(domain.Contest{}, domain.ScoringEvent{HomeScore: 4, AwayScore: 0}).OK)
}

func TestMLBLeadChange(t *testing.T) {
	ev := domain.ScoringEvent{IsHome: false, Points: 2, HomeScore: 3, AwayScore: 4, Period: 7}
	assert.True(t, strategy.LeadChange(ev))

	chk := rulesFor(t, domain.SportMLB).CheckScoreDifferential(domain.Contest{}, ev)
	assert.True(t, chk.OK)
	assert.Contains(t, chk.Reason, "lead change")

	ev = domain.ScoringEvent{IsHome: true, Points: 1, HomeScore: 5, AwayScore: 2}
	assert.False(t, strategy.LeadChange(ev))
}

func TestShouldTrade(t *testing.T) {
	r := rulesFor(t, domain.SportNHL)
	ev := domain.ScoringEvent{ScoringTeamName: "Sharks", IsHome: false, Period: 1, HomeScore: 1, AwayScore: 1}
	chk := r.ShouldTrade(ev, domain.Contest{}, domain.MarketMapping{})
	assert.True(t, chk.OK)
	assert.Contains(t, chk.Reason, "LOW CONFIDENCE")

	ev.Period = 3
	assert.False(t, r.ShouldTrade(ev, domain.Contest{}, domain.MarketMapping{}).OK)
}
