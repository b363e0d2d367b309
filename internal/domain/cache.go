package domain

import (
	"context"
	"time"
)

// PriceCache holds the latest yes quote per market.
type PriceCache interface {
	SetPrice(ctx context.Context, marketID string, price float64, ts time.Time) error
	GetPrice(ctx context.Context, marketID string) (float64, time.Time, error)
}

// MarketCache caches the exchange market listing used for resolution.
type MarketCache interface {
	SetListing(ctx context.Context, exchange string, markets []Market, ttl time.Duration) error
	GetListing(ctx context.Context, exchange string) ([]Market, error)
	Set(ctx context.Context, market Market, ttl time.Duration) error
	Get(ctx context.Context, id string) (Market, error)
	Invalidate(ctx context.Context, id string) error
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// LockManager provides distributed locking.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// StreamMessage represents a single entry from a durable stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus provides pub/sub and durable streams.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}

// Signal bus channel names.
const (
	ChannelEvents = "scoretrader:events"
	ChannelTrades = "scoretrader:trades"
	ChannelRisk   = "scoretrader:risk"
	StreamTrades  = "scoretrader:stream:trades"
)
