// Package strategy turns scoring events into unsized trade intents using a
// shared evaluation pipeline and per-sport rules.
package strategy

import (
	"fmt"
	"strings"

	"github.com/alanyoungcy/scoretrader/internal/domain"
)

// UnderdogSource names the signal an underdog decision was based on.
type UnderdogSource string

const (
	SourceSpread      UnderdogSource = "spread"
	SourceProbability UnderdogSource = "probability"
	SourceDefault     UnderdogSource = "default"
)

// LowConfidenceDefault is the reason attached to the last-resort heuristic.
const LowConfidenceDefault = "LOW CONFIDENCE: away team assumed underdog (no pricing signal)"

// UnderdogCheck is the outcome of an underdog test. Value is the scoring
// side's spread or probability, depending on Source.
type UnderdogCheck struct {
	IsUnderdog bool
	Value      *float64
	Source     UnderdogSource
	Reason     string
}

// LowConfidence reports whether the decision used the default heuristic.
func (u UnderdogCheck) LowConfidence() bool { return u.Source == SourceDefault }

// Check is a pass/fail test result with a human-readable reason.
type Check struct {
	OK     bool
	Reason string
}

func pass(format string, args ...any) Check {
	return Check{OK: true, Reason: fmt.Sprintf(format, args...)}
}
func fail(format string, args ...any) Check {
	return Check{OK: false, Reason: fmt.Sprintf(format, args...)}
}

// Params are the tunable thresholds of one sport.
type Params struct {
	Sport             domain.Sport
	MinPoints         int
	MaxPrice          float64
	MaxDifferential   int
	UnderdogThreshold float64
}

// Rules is the per-sport decision contract.
type Rules interface {
	Sport() domain.Sport
	Params() Params
	IsUnderdog(ev domain.ScoringEvent, c domain.Contest, m domain.MarketMapping) UnderdogCheck
	// ShouldTrade combines the underdog, time and differential checks. It
	// needs no market prices and is the Evaluator's final gate.
	ShouldTrade(ev domain.ScoringEvent, c domain.Contest, m domain.MarketMapping) Check
	CheckTimeRemaining(c domain.Contest, ev domain.ScoringEvent) Check
	CheckScoreDifferential(c domain.Contest, ev domain.ScoringEvent) Check
}

// base carries the shared parameters and underdog signals.
type base struct {
	params Params
}

func (b base) Sport() domain.Sport { return b.params.Sport }
func (b base) Params() Params      { return b.params }

func spreadOf(c domain.Contest, m domain.MarketMapping) *float64 {
	if m.Spread != nil && *m.Spread != 0 {
		return m.Spread
	}
	return c.Spread
}

func (b base) fromSpread(isHome bool, c domain.Contest, m domain.MarketMapping) (UnderdogCheck, bool) {
	spread := spreadOf(c, m)
	if spread == nil {
		return UnderdogCheck{}, false
	}
	v := *spread
	underdog := v > 0
	if !isHome {
		v = -v
		underdog = *spread < 0
	}
	return UnderdogCheck{IsUnderdog: underdog, Value: &v, Source: SourceSpread, Reason: fmt.Sprintf("Spread: %+.1f", v)}, true
}

func (b base) fromProbability(isHome bool, m domain.MarketMapping) (UnderdogCheck, bool) {
	if !m.HasBothProbs() {
		return UnderdogCheck{}, false
	}
	p := *m.PreEventProb(isHome)
	return UnderdogCheck{
		IsUnderdog: p < b.params.UnderdogThreshold,
		Value:      &p,
		Source:     SourceProbability,
		Reason:     fmt.Sprintf("Win probability: %.1f%%", p*100),
	}, true
}

func (b base) fallback(isHome bool) UnderdogCheck {
	return UnderdogCheck{IsUnderdog: !isHome, Source: SourceDefault, Reason: LowConfidenceDefault}
}

// spreadFirst is the underdog order used by the North American leagues.
func (b base) spreadFirst(ev domain.ScoringEvent, c domain.Contest, m domain.MarketMapping) UnderdogCheck {
	if u, ok := b.fromSpread(ev.IsHome, c, m); ok {
		return u
	}
	if u, ok := b.fromProbability(ev.IsHome, m); ok {
		return u
	}
	return b.fallback(ev.IsHome)
}

func (b base) differential(ev domain.ScoringEvent, unit string) Check {
	diff := ev.ScoreDifferential()
	if diff > b.params.MaxDifferential {
		return fail("Blowout (%d %s)", diff, unit)
	}
	return pass("Competitive (%d %s)", diff, unit)
}

// shouldTrade runs the composite decision in the order every sport shares.
func shouldTrade(r Rules, ev domain.ScoringEvent, c domain.Contest, m domain.MarketMapping) Check {
	u := r.IsUnderdog(ev, c, m)
	if !u.IsUnderdog {
		return fail("Favorite scored (%s)", u.Reason)
	}
	t := r.CheckTimeRemaining(c, ev)
	if !t.OK {
		return t
	}
	d := r.CheckScoreDifferential(c, ev)
	if !d.OK {
		return d
	}
	return pass("Underdog %s scored. %s. %s. %s", ev.ScoringTeamName, u.Reason, t.Reason, d.Reason)
}

func periodOf(c domain.Contest, ev domain.ScoringEvent) int {
	if ev.Period > 0 {
		return ev.Period
	}
	return c.Period
}

func joinReasons(parts []string) string {
	return strings.Join(parts, ". ")
}
