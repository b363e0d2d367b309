package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// Recorder mirrors ledger entries to durable storage. The pipeline never
// depends on it for correctness.
type Recorder interface {
	RecordEvent(ctx context.Context, ev ScoringEvent) error
	RecordOrder(ctx context.Context, o Order) error
	RecordPosition(ctx context.Context, p Position) error
	RecordTrade(ctx context.Context, t Trade) error
	RecordSnapshot(ctx context.Context, s Snapshot) error
	Audit(ctx context.Context, event string, detail map[string]any) error
}

// TradeSummary is an aggregate over stored trades.
type TradeSummary struct {
	Total    int
	Closed   int
	Wins     int
	Losses   int
	TotalPnL float64
	BestPnL  float64
	WorstPnL float64
}

// HistoryReader serves durable history for reports and the API.
type HistoryReader interface {
	ListTrades(ctx context.Context, opts ListOpts) ([]Trade, error)
	ListClosedTradesBetween(ctx context.Context, from, to time.Time) ([]Trade, error)
	ListEventsBetween(ctx context.Context, from, to time.Time) ([]ScoringEvent, error)
	TradeSummary(ctx context.Context) (TradeSummary, error)
	LatestSnapshot(ctx context.Context) (Snapshot, error)
}

// NopRecorder discards everything.
type NopRecorder struct{}

func (NopRecorder) RecordEvent(context.Context, ScoringEvent) error     { return nil }
func (NopRecorder) RecordOrder(context.Context, Order) error            { return nil }
func (NopRecorder) RecordPosition(context.Context, Position) error      { return nil }
func (NopRecorder) RecordTrade(context.Context, Trade) error            { return nil }
func (NopRecorder) RecordSnapshot(context.Context, Snapshot) error      { return nil }
func (NopRecorder) Audit(context.Context, string, map[string]any) error { return nil }

var _ Recorder = NopRecorder{}
