package domain

import (
	"fmt"
	"strings"
	"time"
)

// Sport tags a contest with the ruleset used to evaluate it.
type Sport string

const (
	SportNFL    Sport = "nfl"
	SportNBA    Sport = "nba"
	SportMLB    Sport = "mlb"
	SportNHL    Sport = "nhl"
	SportSoccer Sport = "soccer"
)

// AllSports lists every supported sport in a stable order.
var AllSports = []Sport{SportSoccer, SportNFL, SportNBA, SportMLB, SportNHL}

// ParseSport normalises a sport tag. Unknown tags return ErrUnknownSport.
func ParseSport(s string) (Sport, error) {
	sp := Sport(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllSports {
		if sp == known {
			return sp, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSport, s)
}

// ContestStatus is the lifecycle state of a live sporting event.
type ContestStatus string

const (
	ContestScheduled  ContestStatus = "scheduled"
	ContestInProgress ContestStatus = "in_progress"
	ContestHalftime   ContestStatus = "halftime"
	ContestFinal      ContestStatus = "final"
	ContestPostponed  ContestStatus = "postponed"
	ContestCancelled  ContestStatus = "cancelled"
	ContestAbandoned  ContestStatus = "abandoned"
)

// IsTerminal reports whether no further scoring can happen.
func (s ContestStatus) IsTerminal() bool {
	switch s {
	case ContestFinal, ContestCancelled, ContestAbandoned, ContestPostponed:
		return true
	default:
		return false
	}
}

// IsLive reports whether the contest is currently being played.
func (s ContestStatus) IsLive() bool {
	return s == ContestInProgress || s == ContestHalftime
}

// Team is one side of a contest.
type Team struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Abbreviation string `json:"abbreviation,omitempty"`
}

// Contest is a snapshot of a live sporting event. Snapshots are replaced
// wholesale on every poll.
type Contest struct {
	ID        string        `json:"id"`
	Sport     Sport         `json:"sport"`
	League    string        `json:"league,omitempty"`
	Home      Team          `json:"home"`
	Away      Team          `json:"away"`
	HomeScore int           `json:"home_score"`
	AwayScore int           `json:"away_score"`
	Status    ContestStatus `json:"status"`
	Period    int           `json:"period"`
	Clock     string        `json:"clock,omitempty"`
	Minute    int           `json:"minute,omitempty"` // elapsed minutes, soccer only
	StartTime time.Time     `json:"start_time"`
	Spread    *float64      `json:"spread,omitempty"` // home perspective, negative = home favoured
	OverUnder *float64      `json:"over_under,omitempty"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// DisplayName renders "Away @ Home".
func (c Contest) DisplayName() string {
	return c.Away.Name + " @ " + c.Home.Name
}

// TeamName returns the name of the home or away side.
func (c Contest) TeamName(home bool) string {
	if home {
		return c.Home.Name
	}
	return c.Away.Name
}

// ScoringEvent is an immutable record of a score change observed by a
// provider.
type ScoringEvent struct {
	ID              string    `json:"id"`
	ContestID       string    `json:"contest_id"`
	Sport           Sport     `json:"sport"`
	Timestamp       time.Time `json:"timestamp"`
	Period          int       `json:"period"`
	Clock           string    `json:"clock,omitempty"`
	Minute          int       `json:"minute,omitempty"`
	ScoringTeamID   string    `json:"scoring_team_id"`
	ScoringTeamName string    `json:"scoring_team_name"`
	IsHome          bool      `json:"is_home"`
	Points          int       `json:"points"`
	ScoringType     string    `json:"scoring_type"`
	HomeScore       int       `json:"home_score"`
	AwayScore       int       `json:"away_score"`
}

// ScoreDifferential is the absolute margin after the event.
func (e ScoringEvent) ScoreDifferential() int {
	d := e.HomeScore - e.AwayScore
	if d < 0 {
		return -d
	}
	return d
}

// EventID builds the canonical event identity. It is unique per
// contest, side, resulting score and period.
func EventID(sport Sport, contestID string, home bool, newScore, period int) string {
	side := "away"
	if home {
		side = "home"
	}
	return fmt.Sprintf("%s-%s-%s-%d-%d", sport, contestID, side, newScore, period)
}
