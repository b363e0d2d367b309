package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/scoretrader/internal/domain"
)

// PriceCache keeps the last YES price per market as a hash with fields
// "price" and "ts" (unix nanoseconds). Entries expire after ttl so the exit
// monitor never marks a position against a quote from an old session.
type PriceCache struct {
	c   *Client
	ttl time.Duration
}

// NewPriceCache creates the cache. ttl <= 0 keeps prices indefinitely.
func NewPriceCache(c *Client, ttl time.Duration) *PriceCache {
	return &PriceCache{c: c, ttl: ttl}
}

func (pc *PriceCache) SetPrice(ctx context.Context, marketID string, price float64, ts time.Time) error {
	key := pc.c.Key("price", marketID)
	pipe := pc.c.rdb.TxPipeline()
	pipe.HSet(ctx, key,
		"price", strconv.FormatFloat(price, 'f', -1, 64),
		"ts", strconv.FormatInt(ts.UnixNano(), 10),
	)
	if pc.ttl > 0 {
		pipe.Expire(ctx, key, pc.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set price %s: %w", marketID, err)
	}
	return nil
}

func (pc *PriceCache) GetPrice(ctx context.Context, marketID string) (float64, time.Time, error) {
	vals, err := pc.c.rdb.HGetAll(ctx, pc.c.Key("price", marketID)).Result()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis: get price %s: %w", marketID, err)
	}
	price, ts, err := parsePrice(vals)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis: get price %s: %w", marketID, err)
	}
	return price, ts, nil
}

// GetPrices batches lookups in one pipeline. Missing markets are omitted.
func (pc *PriceCache) GetPrices(ctx context.Context, marketIDs []string) (map[string]float64, error) {
	out := make(map[string]float64, len(marketIDs))
	if len(marketIDs) == 0 {
		return out, nil
	}
	pipe := pc.c.rdb.Pipeline()
	cmds := make(map[string]*redis.MapStringStringCmd, len(marketIDs))
	for _, id := range marketIDs {
		cmds[id] = pipe.HGetAll(ctx, pc.c.Key("price", id))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis: get prices: %w", err)
	}
	for id, cmd := range cmds {
		if p, _, err := parsePrice(cmd.Val()); err == nil {
			out[id] = p
		}
	}
	return out, nil
}

// parsePrice decodes a price hash. An empty or partial hash is
// domain.ErrNotFound.
func parsePrice(vals map[string]string) (float64, time.Time, error) {
	ps, ok1 := vals["price"]
	ts, ok2 := vals["ts"]
	if !ok1 || !ok2 {
		return 0, time.Time{}, domain.ErrNotFound
	}
	price, err := strconv.ParseFloat(ps, 64)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("parse price: %w", err)
	}
	nanos, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("parse ts: %w", err)
	}
	return price, time.Unix(0, nanos).UTC(), nil
}

var _ domain.PriceCache = (*PriceCache)(nil)
