package telemetry

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alanyoungcy/scoretrader/internal/domain"
)

// instruments are registered on a private registry so tests can build as
// many monitors as they like.
type instruments struct {
	registry *prometheus.Registry

	eventsTotal     prometheus.Counter
	ordersTotal     *prometheus.CounterVec
	rejectionsTotal prometheus.Counter
	errorsTotal     *prometheus.CounterVec
	outcomesTotal   *prometheus.CounterVec
	eventToOrder    prometheus.Histogram
	eventToFill     prometheus.Histogram
	tradeLatency    prometheus.Histogram
	slippageBps     prometheus.Histogram
	openPositions   prometheus.Gauge
	totalExposure   prometheus.Gauge
	dailyPnL        prometheus.Gauge
	circuitBreaker  prometheus.Gauge
	wsClients       prometheus.Gauge
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
}

var latencyBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30}

func newInstruments() *instruments {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &instruments{
		registry: reg,
		eventsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "scoretrader_scoring_events_total",
			Help: "Scoring events accepted by the pipeline",
		}),
		ordersTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "scoretrader_orders_total",
			Help: "Orders by lifecycle outcome",
		}, []string{"status"}),
		rejectionsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "scoretrader_order_rejections_total",
			Help: "Orders rejected by the exchange or the executor",
		}),
		errorsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "scoretrader_errors_total",
			Help: "Errors recorded by component",
		}, []string{"component"}),
		outcomesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "scoretrader_pipeline_outcomes_total",
			Help: "Pipeline results by outcome",
		}, []string{"outcome"}),
		eventToOrder: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "scoretrader_event_to_order_seconds",
			Help:    "Latency from scoring event to order submission",
			Buckets: latencyBuckets,
		}),
		eventToFill: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "scoretrader_event_to_fill_seconds",
			Help:    "Latency from scoring event to fill",
			Buckets: latencyBuckets,
		}),
		tradeLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "scoretrader_trade_latency_seconds",
			Help:    "Entry latency recorded on opened trades",
			Buckets: latencyBuckets,
		}),
		slippageBps: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "scoretrader_slippage_bps",
			Help:    "Fill price minus expected price, in basis points",
			Buckets: []float64{-200, -100, -50, -10, 0, 10, 50, 100, 200},
		}),
		openPositions: f.NewGauge(prometheus.GaugeOpts{
			Name: "scoretrader_open_positions",
			Help: "Currently open positions",
		}),
		totalExposure: f.NewGauge(prometheus.GaugeOpts{
			Name: "scoretrader_exposure_dollars",
			Help: "Total exposure across contests",
		}),
		dailyPnL: f.NewGauge(prometheus.GaugeOpts{
			Name: "scoretrader_daily_pnl_dollars",
			Help: "Realised P&L for the current UTC day",
		}),
		circuitBreaker: f.NewGauge(prometheus.GaugeOpts{
			Name: "scoretrader_circuit_breaker_active",
			Help: "1 while the risk circuit breaker is tripped",
		}),
		wsClients: f.NewGauge(prometheus.GaugeOpts{
			Name: "scoretrader_websocket_clients",
			Help: "Connected WebSocket clients",
		}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "scoretrader_http_requests_total",
			Help: "Total HTTP requests",
		}, []string{"method", "path", "status"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scoretrader_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}, []string{"method", "path"}),
	}
}

// Handler serves the monitor's registry in the Prometheus text format.
func (m *Monitor) Handler() http.Handler {
	return promhttp.HandlerFor(m.inst.registry, promhttp.HandlerOpts{Registry: m.inst.registry})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Monitor) Registry() *prometheus.Registry { return m.inst.registry }

// RecordOutcome counts one pipeline result.
func (m *Monitor) RecordOutcome(outcome string) {
	m.inst.outcomesTotal.WithLabelValues(outcome).Inc()
}

// ObserveRisk mirrors the risk manager's counters into gauges.
func (m *Monitor) ObserveRisk(s domain.RiskStatus) {
	m.inst.totalExposure.Set(s.TotalExposure)
	m.inst.dailyPnL.Set(s.DailyPnL)
	if s.CircuitBreakerActive {
		m.inst.circuitBreaker.Set(1)
	} else {
		m.inst.circuitBreaker.Set(0)
	}
}

// SetOpenPositions updates the open position gauge.
func (m *Monitor) SetOpenPositions(n int) { m.inst.openPositions.Set(float64(n)) }

// SetWSClients updates the connected WebSocket client gauge.
func (m *Monitor) SetWSClients(n int) { m.inst.wsClients.Set(float64(n)) }

// Middleware records request counts and durations. The path label is the
// matched route pattern, which keeps cardinality bounded.
func (m *Monitor) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		path := r.Pattern
		if path == "" {
			path = "unmatched"
		}
		m.inst.httpRequests.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		m.inst.httpDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the underlying writer, which
// the WebSocket upgrade needs for hijacking.
func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("telemetry: response writer does not support hijacking")
	}
	return h.Hijack()
}
