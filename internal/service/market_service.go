package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/alanyoungcy/scoretrader/internal/domain"
)

// MarketSource lists and re-reads exchange markets.
type MarketSource interface {
	ListMarkets(ctx context.Context, limit int) ([]domain.Market, error)
	GetMarket(ctx context.Context, id string) (domain.Market, error)
}

// MarketConfig tunes resolution.
type MarketConfig struct {
	Exchange      string
	CacheTTL      time.Duration
	MinConfidence float64
	ListLimit     int
}

// MarketService resolves contests to exchange markets. It implements
// domain.MarketResolver.
type MarketService struct {
	source MarketSource
	cache  domain.MarketCache // optional
	prices domain.PriceCache  // optional
	cfg    MarketConfig
	logger *slog.Logger

	mu       sync.Mutex
	local    []domain.Market
	localExp time.Time
	now      func() time.Time
}

// NewMarketService creates a MarketService. cache and prices may be nil.
func NewMarketService(
	source MarketSource,
	cache domain.MarketCache,
	prices domain.PriceCache,
	cfg MarketConfig,
	logger *slog.Logger,
) *MarketService {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if cfg.MinConfidence <= 0 {
		cfg.MinConfidence = 0.7
	}
	if cfg.ListLimit <= 0 {
		cfg.ListLimit = 200
	}
	return &MarketService{
		source: source,
		cache:  cache,
		prices: prices,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "market_service")),
		now:    time.Now,
	}
}

var _ domain.MarketResolver = (*MarketService)(nil)

// SetClock replaces the time source used for cache expiry.
func (s *MarketService) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Listing returns the exchange listing, served from Redis or the in-process
// copy while fresh.
func (s *MarketService) Listing(ctx context.Context) ([]domain.Market, error) {
	if s.cache != nil {
		markets, err := s.cache.GetListing(ctx, s.cfg.Exchange)
		if err == nil {
			return markets, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.WarnContext(ctx, "market_service: listing cache read failed",
				slog.String("error", err.Error()),
			)
		}
	} else {
		s.mu.Lock()
		if s.local != nil && s.now().Before(s.localExp) {
			out := s.local
			s.mu.Unlock()
			return out, nil
		}
		s.mu.Unlock()
	}

	markets, err := s.source.ListMarkets(ctx, s.cfg.ListLimit)
	if err != nil {
		return nil, fmt.Errorf("market_service: list markets: %w", err)
	}

	if s.cache != nil {
		if cacheErr := s.cache.SetListing(ctx, s.cfg.Exchange, markets, s.cfg.CacheTTL); cacheErr != nil {
			s.logger.WarnContext(ctx, "market_service: listing cache write failed",
				slog.String("error", cacheErr.Error()),
			)
		}
	} else {
		s.mu.Lock()
		s.local = markets
		s.localExp = s.now().Add(s.cfg.CacheTTL)
		s.mu.Unlock()
	}

	s.logger.InfoContext(ctx, "market_service: refreshed listing",
		slog.Int("count", len(markets)),
	)
	return markets, nil
}

// FindMarkets returns the listed markets that mention the contest. Both
// teams must match, or one team plus the league name.
func (s *MarketService) FindMarkets(ctx context.Context, c domain.Contest) ([]domain.Market, error) {
	listing, err := s.Listing(ctx)
	if err != nil {
		return nil, err
	}

	threshold := s.cfg.MinConfidence
	league := strings.ToLower(c.League)
	var out []domain.Market
	for _, m := range listing {
		text := m.Title + " " + m.Subtitle
		home := TeamMatchScore(c.Home.Name, text)
		away := TeamMatchScore(c.Away.Name, text)
		switch {
		case home >= threshold && away >= threshold:
			out = append(out, m)
		case (home >= threshold || away >= threshold) && league != "" && strings.Contains(strings.ToLower(text), league):
			out = append(out, m)
		}
	}
	return out, nil
}

// CreateMapping links c to its markets and captures the pre-event win
// probabilities. No match is not an error; the mapping is then empty.
func (s *MarketService) CreateMapping(ctx context.Context, c domain.Contest) (domain.MarketMapping, error) {
	mapping := domain.EmptyMapping(c)

	markets, err := s.FindMarkets(ctx, c)
	if err != nil {
		return mapping, err
	}
	if len(markets) > 0 {
		mapping.Markets = markets
	}
	mapping.PreEventHomeProb, mapping.PreEventAwayProb = winProbabilities(c, markets)

	s.logger.InfoContext(ctx, "market_service: mapped contest",
		slog.String("contest_id", c.ID),
		slog.String("contest", c.DisplayName()),
		slog.Int("markets", len(markets)),
	)
	return mapping, nil
}

func winProbabilities(c domain.Contest, markets []domain.Market) (home, away *float64) {
	homeAliases := TeamAliases(c.Home.Name)
	awayAliases := TeamAliases(c.Away.Name)
	for _, m := range markets {
		title := strings.ToLower(m.Title)
		if !strings.Contains(title, "win") {
			continue
		}
		p := m.YesPrice
		switch favouredSide(strings.ToLower(m.Subtitle), title, homeAliases, awayAliases) {
		case sideHome:
			home = &p
		case sideAway:
			away = &p
		}
	}
	return home, away
}

type side int

const (
	sideNone side = iota
	sideHome
	sideAway
)

// favouredSide decides which team a "win" market pays out on. A subtitle
// naming exactly one team decides it; otherwise the team named first in the
// title does.
func favouredSide(subtitle, title string, homeAliases, awayAliases []string) side {
	h, a := firstMention(subtitle, homeAliases), firstMention(subtitle, awayAliases)
	switch {
	case h >= 0 && a < 0:
		return sideHome
	case a >= 0 && h < 0:
		return sideAway
	}
	h, a = firstMention(title, homeAliases), firstMention(title, awayAliases)
	switch {
	case h < 0 && a < 0:
		return sideNone
	case a < 0 || (h >= 0 && h <= a):
		return sideHome
	default:
		return sideAway
	}
}

// firstMention returns the earliest index of any alias in text, or -1.
func firstMention(text string, aliases []string) int {
	best := -1
	for _, a := range aliases {
		if i := strings.Index(text, a); i >= 0 && (best < 0 || i < best) {
			best = i
		}
	}
	return best
}

// RefreshMarket re-reads one market and records its quote in the price
// cache.
func (s *MarketService) RefreshMarket(ctx context.Context, marketID string) (domain.Market, error) {
	m, err := s.source.GetMarket(ctx, marketID)
	if err != nil {
		return domain.Market{}, fmt.Errorf("market_service: refresh %q: %w", marketID, err)
	}

	if s.prices != nil {
		if cacheErr := s.prices.SetPrice(ctx, m.ID, m.YesPrice, s.now().UTC()); cacheErr != nil {
			s.logger.WarnContext(ctx, "market_service: price cache write failed",
				slog.String("market_id", m.ID),
				slog.String("error", cacheErr.Error()),
			)
		}
	}
	if s.cache != nil {
		if cacheErr := s.cache.Set(ctx, m, s.cfg.CacheTTL); cacheErr != nil {
			s.logger.WarnContext(ctx, "market_service: market cache write failed",
				slog.String("market_id", m.ID),
				slog.String("error", cacheErr.Error()),
			)
		}
	}
	return m, nil
}
