package kalshi

// --------------------------------------------------------------------------
// Kalshi API DTOs
// --------------------------------------------------------------------------

// KalshiMarket represents a market as returned by the Kalshi REST API.
// Prices are in cents.
type KalshiMarket struct {
	Ticker       string `json:"ticker"`
	EventTicker  string `json:"event_ticker"`
	SeriesTicker string `json:"series_ticker,omitempty"`
	Title        string `json:"title"`
	Subtitle     string `json:"subtitle"`
	YesSubTitle  string `json:"yes_sub_title,omitempty"`
	Status       string `json:"status"` // "open", "active", "closed", "settled"
	YesBid       int64  `json:"yes_bid"`
	YesAsk       int64  `json:"yes_ask"`
	NoBid        int64  `json:"no_bid"`
	NoAsk        int64  `json:"no_ask"`
	LastPrice    int64  `json:"last_price"`
	Volume       int64  `json:"volume"`
	Volume24H    int64  `json:"volume_24h"`
	OpenInterest int64  `json:"open_interest"`
	CloseTime    string `json:"close_time"`
	Result       string `json:"result"` // "yes", "no", "" (unsettled)
}

// MarketsQuery filters GET /markets.
type MarketsQuery struct {
	Limit        int
	Cursor       string
	Status       string
	EventTicker  string
	SeriesTicker string
}

// KalshiOrder represents an order to be placed on the Kalshi exchange.
type KalshiOrder struct {
	Ticker        string `json:"ticker"`
	ClientOrderID string `json:"client_order_id,omitempty"`
	Action        string `json:"action"` // "buy" or "sell"
	Side          string `json:"side"`   // "yes" or "no"
	Type          string `json:"type"`   // "market" or "limit"
	Count         int64  `json:"count"`  // number of contracts
	YesPrice      *int64 `json:"yes_price,omitempty"`
	NoPrice       *int64 `json:"no_price,omitempty"`
}

// KalshiOrderDetail is an order as reported by the exchange.
type KalshiOrderDetail struct {
	OrderID        string `json:"order_id"`
	ClientOrderID  string `json:"client_order_id"`
	Ticker         string `json:"ticker"`
	Status         string `json:"status"` // "resting", "canceled", "executed", "pending"
	Action         string `json:"action"`
	Side           string `json:"side"`
	Type           string `json:"type"`
	YesPrice       int64  `json:"yes_price"`
	NoPrice        int64  `json:"no_price"`
	PlacedTime     string `json:"created_time"`
	RemainingCount int64  `json:"remaining_count"`
	TakerFillCount int64  `json:"taker_fill_count"`
	TakerFillCost  int64  `json:"taker_fill_cost"`
	MakerFillCount int64  `json:"maker_fill_count"`
	MakerFillCost  int64  `json:"maker_fill_cost"`
}

// FillCount is the total number of contracts filled.
func (o KalshiOrderDetail) FillCount() int64 { return o.TakerFillCount + o.MakerFillCount }

// AvgFillCents is the average fill price in cents, or 0 when nothing filled.
func (o KalshiOrderDetail) AvgFillCents() float64 {
	n := o.FillCount()
	if n == 0 {
		return 0
	}
	return float64(o.TakerFillCost+o.MakerFillCost) / float64(n)
}

// KalshiOrderResponse represents the API response after placing an order.
type KalshiOrderResponse struct {
	Order KalshiOrderDetail `json:"order"`
}

// KalshiErrorResponse represents a Kalshi API error response.
type KalshiErrorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e KalshiErrorResponse) text() string {
	code, msg := e.Code, e.Message
	if code == "" {
		code = e.Error.Code
	}
	if msg == "" {
		msg = e.Error.Message
	}
	return msg + " (" + code + ")"
}
