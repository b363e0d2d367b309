package kalshi

import (
	"bytes"
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/alanyoungcy/scoretrader/internal/domain"
)

// DefaultBaseURL is the production REST root.
const DefaultBaseURL = "https://api.elections.kalshi.com/trade-api/v2"

// Client talks to the Kalshi trade API. Requests are RSA-PSS signed once a
// key is set; without one only public market data is reachable.
type Client struct {
	root     string
	rootPath string
	keyID    string
	key      *rsa.PrivateKey
	http     *http.Client
	pace     *rate.Limiter
	now      func() time.Time
}

// NewClient returns a client rooted at baseURL. requestsPerSecond <= 0
// disables local pacing.
func NewClient(baseURL, apiKeyID string, requestsPerSecond float64) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		root:  strings.TrimRight(baseURL, "/"),
		keyID: apiKeyID,
		http:  &http.Client{Timeout: 30 * time.Second},
		now:   time.Now,
	}
	if u, err := url.Parse(c.root); err == nil {
		c.rootPath = u.Path
	}
	if requestsPerSecond > 0 {
		c.pace = rate.NewLimiter(rate.Limit(requestsPerSecond), max(1, int(requestsPerSecond)))
	}
	return c
}

// SetPrivateKey enables signed requests.
func (c *Client) SetPrivateKey(key *rsa.PrivateKey) { c.key = key }

// GetMarkets returns one page of markets and the cursor for the next page.
func (c *Client) GetMarkets(ctx context.Context, q MarketsQuery) ([]KalshiMarket, string, error) {
	v := url.Values{}
	set := func(k, val string) {
		if val != "" {
			v.Set(k, val)
		}
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	set("cursor", q.Cursor)
	set("status", q.Status)
	set("event_ticker", q.EventTicker)
	set("series_ticker", q.SeriesTicker)

	var page struct {
		Markets []KalshiMarket `json:"markets"`
		Cursor  string         `json:"cursor"`
	}
	if err := c.call(ctx, http.MethodGet, withQuery("/markets", v), nil, &page); err != nil {
		return nil, "", fmt.Errorf("kalshi: list markets: %w", err)
	}
	return page.Markets, page.Cursor, nil
}

// GetMarket fetches one market by ticker.
func (c *Client) GetMarket(ctx context.Context, ticker string) (KalshiMarket, error) {
	var out struct {
		Market KalshiMarket `json:"market"`
	}
	if err := c.call(ctx, http.MethodGet, "/markets/"+url.PathEscape(ticker), nil, &out); err != nil {
		return KalshiMarket{}, fmt.Errorf("kalshi: market %s: %w", ticker, err)
	}
	return out.Market, nil
}

// PlaceOrder submits an order. An order the exchange cancels on arrival
// (e.g. an unfilled IOC) is returned together with an error.
func (c *Client) PlaceOrder(ctx context.Context, order KalshiOrder) (KalshiOrderDetail, error) {
	var out KalshiOrderResponse
	if err := c.call(ctx, http.MethodPost, "/portfolio/orders", order, &out); err != nil {
		return KalshiOrderDetail{}, fmt.Errorf("kalshi: place order: %w", err)
	}
	if out.Order.Status == "canceled" {
		return out.Order, fmt.Errorf("kalshi: order %s cancelled on arrival", out.Order.OrderID)
	}
	return out.Order, nil
}

// CancelOrder cancels a resting order.
func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	if err := c.call(ctx, http.MethodDelete, "/portfolio/orders/"+url.PathEscape(orderID), nil, nil); err != nil {
		return fmt.Errorf("kalshi: cancel %s: %w", orderID, err)
	}
	return nil
}

// GetOrders lists portfolio orders in one exchange status ("resting",
// "canceled", "executed"); empty lists all.
func (c *Client) GetOrders(ctx context.Context, status string) ([]KalshiOrderDetail, error) {
	v := url.Values{}
	if status != "" {
		v.Set("status", status)
	}
	var out struct {
		Orders []KalshiOrderDetail `json:"orders"`
	}
	if err := c.call(ctx, http.MethodGet, withQuery("/portfolio/orders", v), nil, &out); err != nil {
		return nil, fmt.Errorf("kalshi: list orders: %w", err)
	}
	return out.Orders, nil
}

func withQuery(path string, v url.Values) string {
	if len(v) == 0 {
		return path
	}
	return path + "?" + v.Encode()
}

// call paces, signs and sends one request, decoding a 2xx body into out
// when out is non-nil.
func (c *Client) call(ctx context.Context, method, path string, in, out any) error {
	if c.pace != nil {
		if err := c.pace.Wait(ctx); err != nil {
			return fmt.Errorf("pace: %w", err)
		}
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode body: %w", err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.root+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.key != nil {
		if err := c.sign(req.Header, method, c.rootPath+path); err != nil {
			return err
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("send: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp.StatusCode, raw)
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}

// sign adds the KALSHI-ACCESS-* headers. The signed message is
// timestamp + method + path, with the query string stripped.
func (c *Client) sign(h http.Header, method, path string) error {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	ts := strconv.FormatInt(c.now().UnixMilli(), 10)
	digest := sha256.Sum256([]byte(ts + method + path))
	sig, err := rsa.SignPSS(rand.Reader, c.key, crypto.SHA256, digest[:], &rsa.PSSOptions{
		SaltLength: rsa.PSSSaltLengthEqualsHash,
	})
	if err != nil {
		return fmt.Errorf("sign: %w", err)
	}
	h.Set("KALSHI-ACCESS-KEY", c.keyID)
	h.Set("KALSHI-ACCESS-TIMESTAMP", ts)
	h.Set("KALSHI-ACCESS-SIGNATURE", base64.StdEncoding.EncodeToString(sig))
	return nil
}

var statusSentinels = map[int]error{
	http.StatusNotFound:        domain.ErrNotFound,
	http.StatusUnauthorized:    domain.ErrUnauthorized,
	http.StatusForbidden:       domain.ErrUnauthorized,
	http.StatusTooManyRequests: domain.ErrRateLimited,
	http.StatusBadRequest:      domain.ErrInvalidOrder,
	http.StatusConflict:        domain.ErrAlreadyExists,
}

func statusError(code int, body []byte) error {
	var apiErr KalshiErrorResponse
	_ = json.Unmarshal(body, &apiErr)
	if sentinel, ok := statusSentinels[code]; ok {
		return fmt.Errorf("%w: %s", sentinel, apiErr.text())
	}
	return fmt.Errorf("HTTP %d: %s", code, apiErr.text())
}
