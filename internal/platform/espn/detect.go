package espn

import (
	"github.com/alanyoungcy/scoretrader/internal/domain"
)

// NBA runs: the scoring side put up at least runPoints while the opponent
// managed fewer than runAllowed.
const (
	runPoints  = 10
	runAllowed = 3
)

// Detect emits one event per side whose score rose between prev and
// current. Contests absent from prev are skipped. The result depends only
// on its inputs, so re-running a poll yields the same event ids.
func Detect(prev map[string]domain.Contest, current []domain.Contest) []domain.ScoringEvent {
	var out []domain.ScoringEvent
	for _, c := range current {
		p, ok := prev[c.ID]
		if !ok {
			continue
		}
		homeDelta := c.HomeScore - p.HomeScore
		awayDelta := c.AwayScore - p.AwayScore
		if homeDelta > 0 {
			out = append(out, newEvent(c, true, homeDelta, awayDelta))
		}
		if awayDelta > 0 {
			out = append(out, newEvent(c, false, awayDelta, homeDelta))
		}
	}
	return out
}

func newEvent(c domain.Contest, home bool, delta, opponentDelta int) domain.ScoringEvent {
	team := c.Away
	score := c.AwayScore
	if home {
		team = c.Home
		score = c.HomeScore
	}
	return domain.ScoringEvent{
		ID:              domain.EventID(c.Sport, c.ID, home, score, c.Period),
		ContestID:       c.ID,
		Sport:           c.Sport,
		Timestamp:       c.UpdatedAt,
		Period:          c.Period,
		Clock:           c.Clock,
		Minute:          c.Minute,
		ScoringTeamID:   team.ID,
		ScoringTeamName: team.Name,
		IsHome:          home,
		Points:          delta,
		ScoringType:     ScoringType(c.Sport, delta, opponentDelta),
		HomeScore:       c.HomeScore,
		AwayScore:       c.AwayScore,
	}
}

// ScoringType infers the kind of score from the point delta.
func ScoringType(sport domain.Sport, points, opponentPoints int) string {
	switch sport {
	case domain.SportNFL:
		switch {
		case points >= 6:
			return "touchdown"
		case points == 3:
			return "field_goal"
		case points == 2:
			return "safety"
		case points == 1:
			return "extra_point"
		}
		return "score"
	case domain.SportNBA:
		if points >= runPoints && opponentPoints < runAllowed {
			return "scoring_run"
		}
		return "basket"
	case domain.SportMLB:
		return "run"
	case domain.SportNHL, domain.SportSoccer:
		return "goal"
	}
	return "score"
}
