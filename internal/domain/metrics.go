package domain

import "time"

// RiskStatus is a read-only snapshot of the risk manager's counters.
type RiskStatus struct {
	Bankroll             float64            `json:"bankroll"`
	DailyPnL             float64            `json:"daily_pnl"`
	DailyLossLimit       float64            `json:"daily_loss_limit"`
	DailyLossRemaining   float64            `json:"daily_loss_remaining"`
	PerContestMax        float64            `json:"per_contest_max_exposure"`
	ConsecutiveErrors    int                `json:"consecutive_errors"`
	CircuitBreakerActive bool               `json:"circuit_breaker_active"`
	LastError            string             `json:"last_error,omitempty"`
	ExposureByContest    map[string]float64 `json:"exposure_by_contest"`
	TotalExposure        float64            `json:"total_exposure"`
	LastResetDate        string             `json:"last_reset_date"`
}

// TradingMetrics aggregates ledger state for reporting.
type TradingMetrics struct {
	TotalTrades     int     `json:"total_trades"`
	WinningTrades   int     `json:"winning_trades"`
	LosingTrades    int     `json:"losing_trades"`
	WinRate         float64 `json:"win_rate"`
	TotalPnL        float64 `json:"total_pnl"`
	AvgPnLPerTrade  float64 `json:"avg_pnl_per_trade"`
	DailyPnL        float64 `json:"daily_pnl"`
	AvgLatencyMs    float64 `json:"avg_latency_ms"`
	MaxLatencyMs    float64 `json:"max_latency_ms"`
	AvgSlippage     float64 `json:"avg_slippage"`
	OpenPositions   int     `json:"open_positions"`
	TotalExposure   float64 `json:"total_exposure"`
	EventsProcessed int     `json:"events_processed"`
}

// TelemetrySnapshot summarises execution quality over the rolling windows.
type TelemetrySnapshot struct {
	AvgEventToOrderMs float64   `json:"avg_event_to_order_ms"`
	P95EventToOrderMs float64   `json:"p95_event_to_order_ms"`
	AvgEventToFillMs  float64   `json:"avg_event_to_fill_ms"`
	P95EventToFillMs  float64   `json:"p95_event_to_fill_ms"`
	AvgSlippageBps    float64   `json:"avg_slippage_bps"`
	FillRate          float64   `json:"fill_rate"`
	OrdersSubmitted   int       `json:"orders_submitted"`
	OrdersFilled      int       `json:"orders_filled"`
	OrdersRejected    int       `json:"orders_rejected"`
	EventsSeen        int       `json:"events_seen"`
	ErrorsLastHour    int       `json:"errors_last_hour"`
	Healthy           bool      `json:"healthy"`
	Issues            []string  `json:"issues,omitempty"`
	TakenAt           time.Time `json:"taken_at"`
}

// Snapshot is the periodic record written to the persistence mirrors.
type Snapshot struct {
	TakenAt   time.Time         `json:"taken_at"`
	Risk      RiskStatus        `json:"risk"`
	Metrics   TradingMetrics    `json:"metrics"`
	Telemetry TelemetrySnapshot `json:"telemetry"`
}
