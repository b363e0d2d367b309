package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/scoretrader/internal/domain"
)

// MarketCache shares the exchange listing and single-market snapshots
// between instances so that only one of them hits the exchange per TTL.
//
//	{prefix}:markets:listing:{exchange}  JSON array of markets
//	{prefix}:market:{id}                 JSON market
type MarketCache struct {
	c *Client
}

func NewMarketCache(c *Client) *MarketCache {
	return &MarketCache{c: c}
}

func (mc *MarketCache) SetListing(ctx context.Context, exchange string, markets []domain.Market, ttl time.Duration) error {
	data, err := json.Marshal(markets)
	if err != nil {
		return fmt.Errorf("redis: marshal listing %s: %w", exchange, err)
	}
	if err := mc.c.rdb.Set(ctx, mc.c.Key("markets", "listing", exchange), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis: set listing %s: %w", exchange, err)
	}
	return nil
}

// GetListing returns domain.ErrNotFound once the listing has expired.
func (mc *MarketCache) GetListing(ctx context.Context, exchange string) ([]domain.Market, error) {
	var markets []domain.Market
	if err := mc.getJSON(ctx, mc.c.Key("markets", "listing", exchange), &markets); err != nil {
		return nil, fmt.Errorf("redis: get listing %s: %w", exchange, err)
	}
	return markets, nil
}

func (mc *MarketCache) Set(ctx context.Context, m domain.Market, ttl time.Duration) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("redis: marshal market %s: %w", m.ID, err)
	}
	if err := mc.c.rdb.Set(ctx, mc.c.Key("market", m.ID), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis: set market %s: %w", m.ID, err)
	}
	return nil
}

func (mc *MarketCache) Get(ctx context.Context, id string) (domain.Market, error) {
	var m domain.Market
	if err := mc.getJSON(ctx, mc.c.Key("market", id), &m); err != nil {
		return domain.Market{}, fmt.Errorf("redis: get market %s: %w", id, err)
	}
	return m, nil
}

func (mc *MarketCache) Invalidate(ctx context.Context, id string) error {
	if err := mc.c.rdb.Del(ctx, mc.c.Key("market", id)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate market %s: %w", id, err)
	}
	return nil
}

func (mc *MarketCache) getJSON(ctx context.Context, key string, v any) error {
	data, err := mc.c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.ErrNotFound
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

var _ domain.MarketCache = (*MarketCache)(nil)
