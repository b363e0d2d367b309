package strategy

import (
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/scoretrader/internal/domain"
)

const maxLimitPrice = 0.99

// Evaluator is the decision engine. It holds only thresholds and may be
// shared across goroutines.
type Evaluator struct {
	registry *Registry
	cfg      Config
	logger   *slog.Logger
	now      func() time.Time
}

// NewEvaluator creates an Evaluator dispatching on the given registry.
func NewEvaluator(registry *Registry, cfg Config, logger *slog.Logger) *Evaluator {
	return &Evaluator{
		registry: registry,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "evaluator")),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Registry exposes the rules table.
func (e *Evaluator) Registry() *Registry { return e.registry }

// Evaluate returns an unsized buy intent, or nil with the rejection reason.
// On success the returned string is the full justification.
func (e *Evaluator) Evaluate(ev domain.ScoringEvent, c domain.Contest, m domain.MarketMapping) (*domain.OrderIntent, string) {
	log := e.logger.With(
		slog.String("event_id", ev.ID),
		slog.String("sport", string(ev.Sport)),
		slog.String("team", ev.ScoringTeamName),
	)

	rules, err := e.registry.Get(ev.Sport)
	if err != nil {
		return e.reject(log, err.Error())
	}
	params := rules.Params()

	// 1. significance
	if ev.Points < params.MinPoints {
		return e.reject(log, fmt.Sprintf("Insignificant score (%d < %d points)", ev.Points, params.MinPoints))
	}

	// 2. underdog, screened early so a favorite never reaches market lookup
	u := rules.IsUnderdog(ev, c, m)
	if !u.IsUnderdog {
		return e.reject(log, fmt.Sprintf("Favorite scored (%s)", u.Reason))
	}
	if u.LowConfidence() {
		log.Warn("underdog decided by default heuristic")
	}

	// 3. market selection
	market := SelectMarket(c.TeamName(ev.IsHome), m.Markets, e.cfg.MinLiquidity)
	if market == nil {
		return e.reject(log, fmt.Sprintf("No suitable market for %s", ev.ScoringTeamName))
	}

	// 4. value
	value := CheckValue(market.YesPrice, m.PreEventProb(ev.IsHome), params.MaxPrice, e.cfg.ExpectedMove, e.cfg.ValueFloor)
	if !value.OK {
		return e.reject(log, value.Reason)
	}

	// 5. liquidity
	liq := CheckLiquidity(*market, e.cfg.MinLiquidity)
	if !liq.OK {
		return e.reject(log, liq.Reason)
	}

	// 6-7. the sport's composite gate: underdog, time remaining, differential
	gate := rules.ShouldTrade(ev, c, m)
	if !gate.OK {
		return e.reject(log, gate.Reason)
	}

	limit := math.Min(maxLimitPrice, domain.RoundCents(market.YesPrice+e.cfg.LimitPremium))
	reason := joinReasons([]string{gate.Reason, value.Reason, liq.Reason})
	intent := &domain.OrderIntent{
		ID:         uuid.New().String(),
		ContestID:  c.ID,
		MarketID:   market.ID,
		Exchange:   market.Exchange,
		Side:       domain.OrderSideBuy,
		Outcome:    domain.OutcomeYes,
		LimitPrice: limit,
		Reason:     reason,
		EventID:    ev.ID,
		CreatedAt:  e.now(),
	}
	log.Info("trade signal",
		slog.String("market", market.ID),
		slog.Float64("price", market.YesPrice),
		slog.Float64("limit", limit),
	)
	return intent, reason
}

func (e *Evaluator) reject(log *slog.Logger, reason string) (*domain.OrderIntent, string) {
	log.Info("no signal", slog.String("reason", reason))
	return nil, reason
}

// SelectMarket picks the best market for teamName. The first candidate wins
// ties.
func SelectMarket(teamName string, markets []domain.Market, minLiquidity float64) *domain.Market {
	team := strings.ToLower(strings.TrimSpace(teamName))
	if team == "" {
		return nil
	}
	keys := []string{team, strings.ReplaceAll(team, " fc", "")}
	if fields := strings.Fields(team); len(fields) > 0 {
		keys = append(keys, fields[0])
	}

	var best *domain.Market
	bestScore := 0
	for i := range markets {
		title := strings.ToLower(markets[i].Title)
		if !containsAny(title, keys) {
			continue
		}
		score := 1
		if strings.Contains(title, "win") {
			score += 2
		}
		if markets[i].Status.Tradable() {
			score++
		}
		if markets[i].YesVolume > minLiquidity {
			score++
		}
		if score > bestScore {
			bestScore = score
			best = &markets[i]
		}
	}
	return best
}

func containsAny(s string, keys []string) bool {
	for _, k := range keys {
		if k != "" && strings.Contains(s, k) {
			return true
		}
	}
	return false
}

// CheckValue decides whether price still offers value against the pre-event
// probability.
func CheckValue(price float64, preProb *float64, maxPrice, expectedMove, floor float64) Check {
	if price > maxPrice {
		return fail("Price too high (%.2f > %.2f)", price, maxPrice)
	}
	if preProb != nil {
		if target := *preProb + expectedMove; price < target {
			return pass("Value found: current %.2f < expected %.2f", price, target)
		}
	}
	if price < floor {
		return pass("Price still below %.0f%% (%.2f)", floor*100, price)
	}
	return fail("No clear value at current price (%.2f)", price)
}

// CheckLiquidity requires two-sided volume of at least minLiquidity.
func CheckLiquidity(m domain.Market, minLiquidity float64) Check {
	total := m.TotalVolume()
	if total < minLiquidity {
		return fail("Insufficient liquidity (%.0f < %.0f)", total, minLiquidity)
	}
	return pass("Liquidity OK (%.0f)", total)
}
