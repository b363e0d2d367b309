package kalshi

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/alanyoungcy/scoretrader/internal/domain"
)

// ExchangeName is the venue tag carried on markets, intents and orders.
const ExchangeName = "kalshi"

// Exchange adapts Client to domain.Exchange. It owns the conversion between
// 0-1 prices and dollar sizes on one side and cents and contract counts on
// the other.
type Exchange struct {
	client *Client
}

// NewExchange wraps a configured client.
func NewExchange(client *Client) *Exchange {
	return &Exchange{client: client}
}

var _ domain.Exchange = (*Exchange)(nil)

func (e *Exchange) Name() string { return ExchangeName }

// Submit places a limit order. A pinned contract count is sent as is;
// otherwise the dollar size is converted at the limit price.
func (e *Exchange) Submit(ctx context.Context, req domain.SubmitRequest) (domain.ExchangeResult, error) {
	cents := PriceToCents(req.LimitPrice)
	count := req.Contracts
	if count <= 0 {
		count = Contracts(req.Size, req.LimitPrice)
	}
	order := KalshiOrder{
		Ticker:        req.Ticker,
		ClientOrderID: req.ClientOrderID,
		Action:        string(req.Side),
		Side:          string(req.Outcome),
		Type:          "limit",
		Count:         count,
	}
	if req.Outcome == domain.OutcomeNo {
		order.NoPrice = &cents
	} else {
		order.YesPrice = &cents
	}

	detail, err := e.client.PlaceOrder(ctx, order)
	if err != nil {
		return domain.ExchangeResult{}, err
	}

	res := domain.ExchangeResult{
		OrderID:  detail.OrderID,
		Status:   mapStatus(detail.Status),
		AvgPrice: avgPrice(detail, req.LimitPrice),
	}
	if n := detail.FillCount(); n > 0 {
		res.FilledCount = n
		res.Filled = domain.RoundCents(float64(n) * res.AvgPrice)
	}
	return res, nil
}

// Cancel reports true when the exchange accepted the cancellation.
func (e *Exchange) Cancel(ctx context.Context, exchangeOrderID string) (bool, error) {
	if err := e.client.CancelOrder(ctx, exchangeOrderID); err != nil {
		return false, err
	}
	return true, nil
}

// ListOrders maps the neutral open/closed filters onto Kalshi statuses.
func (e *Exchange) ListOrders(ctx context.Context, status string) ([]domain.ExchangeOrder, error) {
	var statuses []string
	switch status {
	case domain.ExchangeOrdersOpen:
		statuses = []string{"resting"}
	case domain.ExchangeOrdersClosed:
		statuses = []string{"executed", "canceled"}
	default:
		statuses = []string{""}
	}

	var out []domain.ExchangeOrder
	for _, s := range statuses {
		orders, err := e.client.GetOrders(ctx, s)
		if err != nil {
			return nil, err
		}
		for _, o := range orders {
			out = append(out, domain.ExchangeOrder{
				OrderID:       o.OrderID,
				ClientOrderID: o.ClientOrderID,
				Ticker:        o.Ticker,
				Status:        mapStatus(o.Status),
				AvgPrice:      avgPrice(o, 0),
				FilledCount:   o.FillCount(),
			})
		}
	}
	return out, nil
}

// ListMarkets returns up to limit open markets, following cursors.
func (e *Exchange) ListMarkets(ctx context.Context, limit int) ([]domain.Market, error) {
	const page = 200
	var (
		out    []domain.Market
		cursor string
	)
	for limit <= 0 || len(out) < limit {
		n := page
		if limit > 0 && limit-len(out) < n {
			n = limit - len(out)
		}
		markets, next, err := e.client.GetMarkets(ctx, MarketsQuery{Limit: n, Cursor: cursor, Status: "open"})
		if err != nil {
			return nil, err
		}
		for _, m := range markets {
			out = append(out, ToMarket(m))
		}
		if next == "" || len(markets) == 0 {
			break
		}
		cursor = next
	}
	return out, nil
}

// GetMarket re-reads a single market.
func (e *Exchange) GetMarket(ctx context.Context, ticker string) (domain.Market, error) {
	m, err := e.client.GetMarket(ctx, ticker)
	if err != nil {
		return domain.Market{}, err
	}
	return ToMarket(m), nil
}

// ToMarket converts a Kalshi market to the domain shape. The yes price is
// the best yes bid; a market with no bid is quoted at 0.5.
func ToMarket(m KalshiMarket) domain.Market {
	yes := 0.5
	if m.YesBid > 0 {
		yes = float64(m.YesBid) / 100
	}
	title := m.Title
	if m.YesSubTitle != "" && !strings.Contains(title, m.YesSubTitle) {
		title = title + " " + m.YesSubTitle
	}
	return domain.Market{
		ID:        m.Ticker,
		Exchange:  ExchangeName,
		Title:     title,
		Subtitle:  m.Subtitle,
		YesPrice:  yes,
		NoPrice:   domain.RoundCents(1 - yes),
		YesVolume: float64(m.Volume),
		NoVolume:  float64(m.Volume),
		Status:    domain.MarketStatus(m.Status),
		UpdatedAt: time.Now().UTC(),
	}
}

// PriceToCents converts a 0-1 price to whole cents clamped to 1..99.
func PriceToCents(price float64) int64 {
	c := int64(math.Round(price * 100))
	if c < 1 {
		return 1
	}
	if c > 99 {
		return 99
	}
	return c
}

// Contracts converts a dollar size at a price into a whole contract count,
// never less than one.
func Contracts(size, price float64) int64 {
	if price <= 0 {
		return 1
	}
	n := int64(size / price)
	if n < 1 {
		return 1
	}
	return n
}

func mapStatus(s string) domain.OrderStatus {
	switch s {
	case "executed":
		return domain.OrderStatusFilled
	case "canceled", "cancelled":
		return domain.OrderStatusCancelled
	default:
		return domain.OrderStatusSubmitted
	}
}

func avgPrice(o KalshiOrderDetail, fallback float64) float64 {
	if c := o.AvgFillCents(); c > 0 {
		return math.Round(c*100) / 10000
	}
	return fallback
}
