package kalshi_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/scoretrader/internal/domain"
	"github.com/alanyoungcy/scoretrader/internal/platform/kalshi"
)

type recorded struct {
	mu     sync.Mutex
	orders []kalshi.KalshiOrder
	paths  []string
}

func newServer(t *testing.T, rec *recorded) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /trade-api/v2/portfolio/orders", func(w http.ResponseWriter, r *http.Request) {
		var o kalshi.KalshiOrder
		require.NoError(t, json.NewDecoder(r.Body).Decode(&o))
		rec.mu.Lock()
		rec.orders = append(rec.orders, o)
		rec.mu.Unlock()
		assert.NotEmpty(t, r.Header.Get("KALSHI-ACCESS-SIGNATURE"))
		_ = json.NewEncoder(w).Encode(kalshi.KalshiOrderResponse{Order: kalshi.KalshiOrderDetail{
			OrderID: "ord-1", ClientOrderID: o.ClientOrderID, Status: "executed",
			TakerFillCount: o.Count, TakerFillCost: o.Count * 27,
		}})
	})
	mux.HandleFunc("DELETE /trade-api/v2/portfolio/orders/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") == "gone" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":{"code":"not_found","message":"order not found"}}`))
			return
		}
		_, _ = w.Write([]byte(`{}`))
	})
	mux.HandleFunc("GET /trade-api/v2/portfolio/orders", func(w http.ResponseWriter, r *http.Request) {
		rec.mu.Lock()
		rec.paths = append(rec.paths, r.URL.RawQuery)
		rec.mu.Unlock()
		var orders []kalshi.KalshiOrderDetail
		switch r.URL.Query().Get("status") {
		case "resting":
			orders = []kalshi.KalshiOrderDetail{{OrderID: "a", Status: "resting"}}
		case "executed":
			orders = []kalshi.KalshiOrderDetail{{OrderID: "b", ClientOrderID: "cid", Status: "executed", TakerFillCount: 10, TakerFillCost: 280}}
		case "canceled":
			orders = []kalshi.KalshiOrderDetail{{OrderID: "c", Status: "canceled"}}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"orders": orders})
	})
	mux.HandleFunc("GET /trade-api/v2/markets", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("cursor") == "" {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"markets": []kalshi.KalshiMarket{{Ticker: "KXNFL-1", Title: "Chiefs win?", YesBid: 25, Volume: 4000, Status: "open"}},
				"cursor":  "next",
			})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"markets": []kalshi.KalshiMarket{{Ticker: "KXNFL-2", Title: "Bills win?", Status: "open"}},
		})
	})
	mux.HandleFunc("GET /trade-api/v2/markets/{ticker}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("ticker") == "limited" {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"market": kalshi.KalshiMarket{Ticker: r.PathValue("ticker"), YesBid: 40, Status: "active"}})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newExchange(t *testing.T, rec *recorded) *kalshi.Exchange {
	t.Helper()
	srv := newServer(t, rec)
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	c := kalshi.NewClient(srv.URL+"/trade-api/v2", "key-id", 0)
	c.SetPrivateKey(key)
	return kalshi.NewExchange(c)
}

func TestSubmit_ConvertsUnits(t *testing.T) {
	rec := &recorded{}
	ex := newExchange(t, rec)

	res, err := ex.Submit(context.Background(), domain.SubmitRequest{
		Ticker: "KXNFL-1", Side: domain.OrderSideBuy, Outcome: domain.OutcomeYes,
		Size: 50, LimitPrice: 0.27, ClientOrderID: "order-uuid",
	})
	require.NoError(t, err)
	assert.Equal(t, "ord-1", res.OrderID)
	assert.Equal(t, domain.OrderStatusFilled, res.Status)
	assert.Equal(t, 0.27, res.AvgPrice)

	require.Len(t, rec.orders, 1)
	o := rec.orders[0]
	assert.Equal(t, "buy", o.Action)
	assert.Equal(t, "yes", o.Side)
	assert.Equal(t, "limit", o.Type)
	assert.Equal(t, "order-uuid", o.ClientOrderID)
	assert.EqualValues(t, 185, o.Count)
	require.NotNil(t, o.YesPrice)
	assert.EqualValues(t, 27, *o.YesPrice)
	assert.Nil(t, o.NoPrice)
}

func TestSubmit_NoOutcomeUsesNoPrice(t *testing.T) {
	rec := &recorded{}
	ex := newExchange(t, rec)

	_, err := ex.Submit(context.Background(), domain.SubmitRequest{
		Ticker: "KXNFL-1", Side: domain.OrderSideSell, Outcome: domain.OutcomeNo, Size: 0.2, LimitPrice: 0.999,
	})
	require.NoError(t, err)
	o := rec.orders[0]
	assert.Equal(t, "sell", o.Action)
	require.NotNil(t, o.NoPrice)
	assert.EqualValues(t, 99, *o.NoPrice)
	assert.EqualValues(t, 1, o.Count)
}

func TestCancel_MapsNotFound(t *testing.T) {
	ex := newExchange(t, &recorded{})

	ok, err := ex.Cancel(context.Background(), "ord-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = ex.Cancel(context.Background(), "gone")
	assert.False(t, ok)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListOrders(t *testing.T) {
	rec := &recorded{}
	ex := newExchange(t, rec)

	open, err := ex.ListOrders(context.Background(), domain.ExchangeOrdersOpen)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, domain.OrderStatusSubmitted, open[0].Status)

	closed, err := ex.ListOrders(context.Background(), domain.ExchangeOrdersClosed)
	require.NoError(t, err)
	require.Len(t, closed, 2)
	assert.Equal(t, domain.OrderStatusFilled, closed[0].Status)
	assert.Equal(t, 0.28, closed[0].AvgPrice)
	assert.EqualValues(t, 10, closed[0].FilledCount)
	assert.Equal(t, domain.OrderStatusCancelled, closed[1].Status)
}

func TestListMarkets_FollowsCursor(t *testing.T) {
	ex := newExchange(t, &recorded{})

	markets, err := ex.ListMarkets(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, markets, 2)
	assert.Equal(t, 0.25, markets[0].YesPrice)
	assert.Equal(t, 4000.0, markets[0].YesVolume)
	assert.Equal(t, 4000.0, markets[0].NoVolume)
	assert.Equal(t, 0.5, markets[1].YesPrice)
}

func TestGetMarket_RateLimited(t *testing.T) {
	ex := newExchange(t, &recorded{})

	m, err := ex.GetMarket(context.Background(), "KXNFL-9")
	require.NoError(t, err)
	assert.Equal(t, 0.40, m.YesPrice)
	assert.True(t, m.Status.Tradable())

	_, err = ex.GetMarket(context.Background(), "limited")
	assert.ErrorIs(t, err, domain.ErrRateLimited)
}

func TestPriceToCents(t *testing.T) {
	assert.EqualValues(t, 1, kalshi.PriceToCents(0.001))
	assert.EqualValues(t, 37, kalshi.PriceToCents(0.37))
	assert.EqualValues(t, 99, kalshi.PriceToCents(1.2))
	assert.EqualValues(t, 1, kalshi.Contracts(0.1, 0.5))
	assert.EqualValues(t, 100, kalshi.Contracts(50, 0.5))
}

func TestSubmit_PinnedContractsSellWhatWasBought(t *testing.T) {
	rec := &recorded{}
	ex := newExchange(t, rec)
	ctx := context.Background()

	entry, err := ex.Submit(ctx, domain.SubmitRequest{
		Ticker: "KXNFL-1", Side: domain.OrderSideBuy, Outcome: domain.OutcomeYes,
		Size: 50, LimitPrice: 0.27, ClientOrderID: "entry",
	})
	require.NoError(t, err)
	assert.EqualValues(t, 185, entry.FilledCount)

	_, err = ex.Submit(ctx, domain.SubmitRequest{
		Ticker: "KXNFL-1", Side: domain.OrderSideSell, Outcome: domain.OutcomeYes,
		Size: 50, Contracts: entry.FilledCount, LimitPrice: 0.38, ClientOrderID: "exit",
	})
	require.NoError(t, err)

	require.Len(t, rec.orders, 2)
	assert.EqualValues(t, 185, rec.orders[0].Count)
	assert.EqualValues(t, 185, rec.orders[1].Count, "the exit sells the filled quantity, not size/exit price")
}
