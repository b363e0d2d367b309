package strategy

import (
	"github.com/alanyoungcy/scoretrader/internal/domain"
)

// NFL reacts to underdog touchdowns before the fourth quarter.
type NFL struct{ base }

func NewNFL(p Params) *NFL {
	p.Sport = domain.SportNFL
	return &NFL{base{params: p}}
}

func (r *NFL) IsUnderdog(ev domain.ScoringEvent, c domain.Contest, m domain.MarketMapping) UnderdogCheck {
	return r.spreadFirst(ev, c, m)
}

func (r *NFL) ShouldTrade(ev domain.ScoringEvent, c domain.Contest, m domain.MarketMapping) Check {
	return shouldTrade(r, ev, c, m)
}

func (r *NFL) CheckTimeRemaining(c domain.Contest, ev domain.ScoringEvent) Check {
	q := periodOf(c, ev)
	switch {
	case q >= 4:
		return fail("Too late (Q%d)", q)
	case q <= 2:
		return pass("First half (Q%d)", q)
	default:
		return pass("Third quarter (Q%d)", q)
	}
}

func (r *NFL) CheckScoreDifferential(_ domain.Contest, ev domain.ScoringEvent) Check {
	return r.differential(ev, "pts")
}

// NBA reacts to underdog scoring runs before the fourth quarter.
type NBA struct{ base }

func NewNBA(p Params) *NBA {
	p.Sport = domain.SportNBA
	return &NBA{base{params: p}}
}

func (r *NBA) IsUnderdog(ev domain.ScoringEvent, c domain.Contest, m domain.MarketMapping) UnderdogCheck {
	return r.spreadFirst(ev, c, m)
}

func (r *NBA) ShouldTrade(ev domain.ScoringEvent, c domain.Contest, m domain.MarketMapping) Check {
	return shouldTrade(r, ev, c, m)
}

func (r *NBA) CheckTimeRemaining(c domain.Contest, ev domain.ScoringEvent) Check {
	q := periodOf(c, ev)
	if q >= 4 {
		return fail("Too late (Q%d)", q)
	}
	return pass("Q%d - good timing", q)
}

func (r *NBA) CheckScoreDifferential(_ domain.Contest, ev domain.ScoringEvent) Check {
	return r.differential(ev, "pts")
}

// lateInning is the first inning MLB trades are considered.
const lateInning = 6

// MLB waits for underdog runs in the late innings.
type MLB struct{ base }

func NewMLB(p Params) *MLB {
	p.Sport = domain.SportMLB
	return &MLB{base{params: p}}
}

func (r *MLB) IsUnderdog(ev domain.ScoringEvent, c domain.Contest, m domain.MarketMapping) UnderdogCheck {
	return r.spreadFirst(ev, c, m)
}

func (r *MLB) ShouldTrade(ev domain.ScoringEvent, c domain.Contest, m domain.MarketMapping) Check {
	return shouldTrade(r, ev, c, m)
}

func (r *MLB) CheckTimeRemaining(c domain.Contest, ev domain.ScoringEvent) Check {
	inning := periodOf(c, ev)
	if inning < lateInning {
		return fail("Early innings (%d) - waiting for late game", inning)
	}
	return pass("Late innings (%d) - prime time", inning)
}

func (r *MLB) CheckScoreDifferential(_ domain.Contest, ev domain.ScoringEvent) Check {
	chk := r.differential(ev, "runs")
	if chk.OK && LeadChange(ev) {
		chk.Reason += ", lead change"
	}
	return chk
}

// LeadChange reports whether the event put the scoring side ahead from a
// tie or a deficit.
func LeadChange(ev domain.ScoringEvent) bool {
	prevHome, prevAway := ev.HomeScore, ev.AwayScore
	if ev.IsHome {
		prevHome -= ev.Points
		return prevHome <= prevAway && ev.HomeScore > ev.AwayScore
	}
	prevAway -= ev.Points
	return prevAway <= prevHome && ev.AwayScore > ev.HomeScore
}

// NHL reacts to underdog goals in the first two periods.
type NHL struct{ base }

func NewNHL(p Params) *NHL {
	p.Sport = domain.SportNHL
	return &NHL{base{params: p}}
}

func (r *NHL) IsUnderdog(ev domain.ScoringEvent, c domain.Contest, m domain.MarketMapping) UnderdogCheck {
	return r.spreadFirst(ev, c, m)
}

func (r *NHL) ShouldTrade(ev domain.ScoringEvent, c domain.Contest, m domain.MarketMapping) Check {
	return shouldTrade(r, ev, c, m)
}

func (r *NHL) CheckTimeRemaining(c domain.Contest, ev domain.ScoringEvent) Check {
	p := periodOf(c, ev)
	if p >= 3 {
		return fail("Too late (Period %d)", p)
	}
	return pass("Period %d - good timing", p)
}

func (r *NHL) CheckScoreDifferential(_ domain.Contest, ev domain.ScoringEvent) Check {
	return r.differential(ev, "goals")
}

const (
	regulationMinutes = 90
	minMinutesLeft    = 15
)

// Soccer reacts to underdog goals with at least a quarter hour left.
// Pre-match probabilities are preferred over the spread.
type Soccer struct{ base }

func NewSoccer(p Params) *Soccer {
	p.Sport = domain.SportSoccer
	return &Soccer{base{params: p}}
}

func (r *Soccer) IsUnderdog(ev domain.ScoringEvent, c domain.Contest, m domain.MarketMapping) UnderdogCheck {
	if u, ok := r.fromProbability(ev.IsHome, m); ok {
		return u
	}
	if u, ok := r.fromSpread(ev.IsHome, c, m); ok {
		return u
	}
	return r.fallback(ev.IsHome)
}

func (r *Soccer) ShouldTrade(ev domain.ScoringEvent, c domain.Contest, m domain.MarketMapping) Check {
	return shouldTrade(r, ev, c, m)
}

func (r *Soccer) CheckTimeRemaining(c domain.Contest, ev domain.ScoringEvent) Check {
	minute := ev.Minute
	if minute == 0 {
		minute = c.Minute
	}
	left := regulationMinutes - minute
	if left < minMinutesLeft {
		return fail("Not enough time remaining (%d < %d mins)", left, minMinutesLeft)
	}
	return pass("Time remaining OK (%d mins)", left)
}

func (r *Soccer) CheckScoreDifferential(_ domain.Contest, ev domain.ScoringEvent) Check {
	return r.differential(ev, "goals")
}

var (
	_ Rules = (*NFL)(nil)
	_ Rules = (*NBA)(nil)
	_ Rules = (*MLB)(nil)
	_ Rules = (*NHL)(nil)
	_ Rules = (*Soccer)(nil)
)
