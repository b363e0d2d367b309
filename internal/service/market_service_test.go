package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/scoretrader/internal/domain"
	"github.com/alanyoungcy/scoretrader/internal/service"
)

type fakeSource struct {
	mu      sync.Mutex
	markets []domain.Market
	lists   int
}

func (f *fakeSource) ListMarkets(context.Context, int) ([]domain.Market, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists++
	return f.markets, nil
}

func (f *fakeSource) GetMarket(_ context.Context, id string) (domain.Market, error) {
	for _, m := range f.markets {
		if m.ID == id {
			return m, nil
		}
	}
	return domain.Market{}, domain.ErrNotFound
}

type fakePrices struct {
	mu     sync.Mutex
	prices map[string]float64
}

func (f *fakePrices) SetPrice(_ context.Context, id string, price float64, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.prices == nil {
		f.prices = map[string]float64{}
	}
	f.prices[id] = price
	return nil
}

func (f *fakePrices) GetPrice(_ context.Context, id string) (float64, time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.prices[id]
	if !ok {
		return 0, time.Time{}, domain.ErrNotFound
	}
	return p, time.Now(), nil
}

func chiefsBills() domain.Contest {
	return domain.Contest{
		ID:     "401",
		Sport:  domain.SportNFL,
		League: "NFL",
		Home:   domain.Team{ID: "12", Name: "Kansas City Chiefs"},
		Away:   domain.Team{ID: "2", Name: "Buffalo Bills"},
		Status: domain.ContestInProgress,
	}
}

func nflListing() []domain.Market {
	return []domain.Market{
		{ID: "KXNFL-KC", Title: "Will Kansas City Chiefs win vs Buffalo Bills?", YesPrice: 0.62, Status: domain.MarketStatusOpen},
		{ID: "KXNFL-BUF", Title: "Will Buffalo Bills win vs Kansas City Chiefs?", YesPrice: 0.38, Status: domain.MarketStatusOpen},
		{ID: "KXNFL-CHAMP", Title: "Will Kansas City Chiefs win the NFL championship?", YesPrice: 0.2, Status: domain.MarketStatusOpen},
		{ID: "KXNFL-WEST", Title: "Will Kansas City Chiefs win the AFC West?", YesPrice: 0.7, Status: domain.MarketStatusOpen},
		{ID: "KXNBA-1", Title: "Lakers vs Celtics total points", YesPrice: 0.5, Status: domain.MarketStatusOpen},
	}
}

func TestNormalizeTeam(t *testing.T) {
	assert.Equal(t, "manchester", service.NormalizeTeam("Manchester United FC"))
	assert.Equal(t, "arsenal", service.NormalizeTeam("  Arsenal FC "))
	assert.Equal(t, "buffalo bills", service.NormalizeTeam("Buffalo Bills"))
}

func TestTeamAliases(t *testing.T) {
	aliases := service.TeamAliases("Tottenham Hotspur")
	assert.Contains(t, aliases, "tottenham hotspur")
	assert.Contains(t, aliases, "spurs")

	aliases = service.TeamAliases("Spurs")
	assert.Contains(t, aliases, "tottenham hotspur")
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, service.Similarity("Liverpool", "liverpool"))
	assert.Greater(t, service.Similarity("liverpool", "liverpol"), 0.8)
	assert.Less(t, service.Similarity("liverpool", "arsenal"), 0.5)
	assert.Equal(t, 1.0, service.Similarity("", ""))
	assert.Zero(t, service.Similarity("abc", "xyz"))
}

func TestTeamMatchScore(t *testing.T) {
	assert.Equal(t, 0.9, service.TeamMatchScore("Wolverhampton Wanderers", "Wolves to beat Everton?"))
	assert.Less(t, service.TeamMatchScore("Buffalo Bills", "Lakers vs Celtics total points"), 0.7)
}

func TestMarketService_FindMarkets(t *testing.T) {
	src := &fakeSource{markets: nflListing()}
	svc := service.NewMarketService(src, nil, nil, service.MarketConfig{Exchange: "kalshi"}, discard())

	got, err := svc.FindMarkets(context.Background(), chiefsBills())
	require.NoError(t, err)

	ids := make([]string, 0, len(got))
	for _, m := range got {
		ids = append(ids, m.ID)
	}
	assert.Equal(t, []string{"KXNFL-KC", "KXNFL-BUF", "KXNFL-CHAMP"}, ids)
}

func TestMarketService_CreateMappingProbabilities(t *testing.T) {
	src := &fakeSource{markets: nflListing()[:2]}
	svc := service.NewMarketService(src, nil, nil, service.MarketConfig{}, discard())

	c := chiefsBills()
	spread := -3.5
	c.Spread = &spread

	m, err := svc.CreateMapping(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, "401", m.ContestID)
	assert.Len(t, m.Markets, 2)
	require.NotNil(t, m.PreEventHomeProb)
	require.NotNil(t, m.PreEventAwayProb)
	assert.Equal(t, 0.62, *m.PreEventHomeProb)
	assert.Equal(t, 0.38, *m.PreEventAwayProb)
	assert.Equal(t, -3.5, *m.Spread)
}

func TestMarketService_SubtitleDecidesSide(t *testing.T) {
	src := &fakeSource{markets: []domain.Market{
		{ID: "KX-G-BUF", Title: "Kansas City vs Buffalo Winner?", Subtitle: "Buffalo", YesPrice: 0.41},
	}}
	svc := service.NewMarketService(src, nil, nil, service.MarketConfig{MinConfidence: 0.5}, discard())

	c := chiefsBills()
	c.Home.Name, c.Away.Name = "Kansas City", "Buffalo"
	m, err := svc.CreateMapping(context.Background(), c)
	require.NoError(t, err)
	require.NotNil(t, m.PreEventAwayProb)
	assert.Equal(t, 0.41, *m.PreEventAwayProb)
	assert.Nil(t, m.PreEventHomeProb)
}

func TestMarketService_NoMatchIsEmptyMapping(t *testing.T) {
	src := &fakeSource{markets: nflListing()[4:]}
	svc := service.NewMarketService(src, nil, nil, service.MarketConfig{}, discard())

	m, err := svc.CreateMapping(context.Background(), chiefsBills())
	require.NoError(t, err)
	assert.NotNil(t, m.Markets)
	assert.Empty(t, m.Markets)
	assert.Nil(t, m.PreEventHomeProb)
	assert.False(t, m.HasBothProbs())
}

func TestMarketService_LocalListingCache(t *testing.T) {
	src := &fakeSource{markets: nflListing()}
	svc := service.NewMarketService(src, nil, nil, service.MarketConfig{CacheTTL: time.Minute}, discard())
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.SetClock(func() time.Time { return now })

	ctx := context.Background()
	_, err := svc.Listing(ctx)
	require.NoError(t, err)
	_, err = svc.Listing(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, src.lists)

	now = now.Add(2 * time.Minute)
	_, err = svc.Listing(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, src.lists)
}

func TestMarketService_RefreshMarketWritesPriceCache(t *testing.T) {
	src := &fakeSource{markets: nflListing()}
	prices := &fakePrices{}
	svc := service.NewMarketService(src, nil, prices, service.MarketConfig{}, discard())

	m, err := svc.RefreshMarket(context.Background(), "KXNFL-BUF")
	require.NoError(t, err)
	assert.Equal(t, 0.38, m.YesPrice)

	p, _, err := prices.GetPrice(context.Background(), "KXNFL-BUF")
	require.NoError(t, err)
	assert.Equal(t, 0.38, p)

	_, err = svc.RefreshMarket(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
