package domain

import (
	"context"
	"time"
)

// ScoreProvider fetches live contests for one sport and turns consecutive
// snapshots into scoring events.
type ScoreProvider interface {
	Sport() Sport
	LiveContests(ctx context.Context) ([]Contest, error)
	// DetectScoringEvents must be pure: the same inputs always yield the
	// same events with the same ids.
	DetectScoringEvents(prev map[string]Contest, current []Contest) []ScoringEvent
}

// MarketResolver links contests to tradeable markets.
type MarketResolver interface {
	// CreateMapping returns an empty market list rather than an error when
	// nothing matches.
	CreateMapping(ctx context.Context, c Contest) (MarketMapping, error)
	RefreshMarket(ctx context.Context, marketID string) (Market, error)
}

// Exchange is the single venue the executor trades against. Price and size
// unit conversion is the implementation's concern.
type Exchange interface {
	Name() string
	Submit(ctx context.Context, req SubmitRequest) (ExchangeResult, error)
	Cancel(ctx context.Context, exchangeOrderID string) (bool, error)
	ListOrders(ctx context.Context, status string) ([]ExchangeOrder, error)
}

// Ledger is the in-process record of contests, processed events, positions
// and trades. Implementations must be safe for concurrent use.
type Ledger interface {
	UpsertContest(c Contest)
	Contest(id string) (Contest, bool)
	Contests() []Contest
	ClearFinished() int

	Mapping(contestID string) (MarketMapping, bool)
	SaveMapping(m MarketMapping)

	IsProcessed(eventID string) bool
	// MarkProcessed records the event and appends it to history. It returns
	// false when the id was already processed.
	MarkProcessed(ev ScoringEvent) bool
	RecentEvents(n int) []ScoringEvent

	AddPosition(p Position)
	Position(id string) (Position, bool)
	OpenPositions() []Position
	MarkPosition(id string, price float64) (Position, error)
	// ClosePosition closes the position and finalizes its trade atomically.
	ClosePosition(id string, exitPrice float64, exitOrderID, reason string, at time.Time) (Position, Trade, error)
	ClosedPositions(limit int) []Position

	AddTrade(t Trade)
	Trades(limit int) []Trade

	Metrics(dailyPnL float64) TradingMetrics
	Reset()
}
