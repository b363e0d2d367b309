// Package telemetry tracks execution quality over rolling windows and
// mirrors it into Prometheus instruments. It only observes; nothing here
// feeds back into trading decisions.
package telemetry

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/alanyoungcy/scoretrader/internal/domain"
)

// DefaultWindow is the capacity of each rolling window.
const DefaultWindow = 1000

// Health thresholds.
const (
	minFillRate      = 0.8
	minOrdersForRate = 10
	maxErrorsPerHour = 10
	slippageWarnBps  = 50.0
)

type latency struct {
	eventID string
	event   time.Time
	order   *time.Time
	fill    *time.Time
}

// Monitor is safe for concurrent use.
type Monitor struct {
	mu sync.Mutex

	size         int
	latencies    []*latency
	slippages    []float64
	errors       []time.Time
	submitted    int
	filled       int
	rejected     int
	events       int
	maxLatencyMs float64

	inst   *instruments
	logger *slog.Logger
	now    func() time.Time
}

// NewMonitor builds a monitor whose windows hold size entries (DefaultWindow
// when size <= 0). maxLatencyMs is the threshold Snapshot uses for health.
func NewMonitor(size int, maxLatencyMs float64, logger *slog.Logger) *Monitor {
	if size <= 0 {
		size = DefaultWindow
	}
	return &Monitor{
		size:         size,
		maxLatencyMs: maxLatencyMs,
		inst:         newInstruments(),
		logger:       logger.With(slog.String("component", "telemetry")),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the time source. Tests only.
func (m *Monitor) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func push[T any](window []T, v T, size int) []T {
	window = append(window, v)
	if len(window) > size {
		window = window[len(window)-size:]
	}
	return window
}

// RecordEvent starts a latency measurement for a scoring event.
func (m *Monitor) RecordEvent(eventID string, at time.Time) {
	m.mu.Lock()
	m.latencies = push(m.latencies, &latency{eventID: eventID, event: at}, m.size)
	m.events++
	m.mu.Unlock()
	m.inst.eventsTotal.Inc()
}

func (m *Monitor) findLocked(eventID string) *latency {
	for i := len(m.latencies) - 1; i >= 0; i-- {
		if m.latencies[i].eventID == eventID {
			return m.latencies[i]
		}
	}
	return nil
}

// RecordOrderSubmitted closes the event-to-order leg for eventID.
func (m *Monitor) RecordOrderSubmitted(eventID string, at time.Time) {
	m.mu.Lock()
	m.submitted++
	var ms float64
	if l := m.findLocked(eventID); l != nil {
		l.order = &at
		ms = float64(at.Sub(l.event).Milliseconds())
	}
	limit := m.maxLatencyMs
	m.mu.Unlock()

	m.inst.ordersTotal.WithLabelValues("submitted").Inc()
	if ms > 0 {
		m.inst.eventToOrder.Observe(ms / 1000)
		if limit > 0 && ms > limit {
			m.logger.Warn("high event-to-order latency",
				slog.String("event_id", eventID),
				slog.Float64("latency_ms", ms),
				slog.Float64("threshold_ms", limit),
			)
		}
	}
}

// RecordFill closes the event-to-fill leg and records slippage in basis
// points, (actual - expected) * 10000.
func (m *Monitor) RecordFill(eventID string, expected, actual float64, at time.Time) {
	bps := (actual - expected) * 10000

	m.mu.Lock()
	m.filled++
	m.slippages = push(m.slippages, bps, m.size)
	var ms float64
	if l := m.findLocked(eventID); l != nil {
		l.fill = &at
		ms = float64(at.Sub(l.event).Milliseconds())
	}
	m.mu.Unlock()

	m.inst.ordersTotal.WithLabelValues("filled").Inc()
	m.inst.slippageBps.Observe(bps)
	if ms > 0 {
		m.inst.eventToFill.Observe(ms / 1000)
	}
	if abs(bps) > slippageWarnBps {
		m.logger.Warn("high slippage",
			slog.String("event_id", eventID),
			slog.Float64("slippage_bps", bps),
			slog.Float64("expected", expected),
			slog.Float64("actual", actual),
		)
	}
}

// RecordRejected counts an order the exchange or executor refused.
func (m *Monitor) RecordRejected(reason string) {
	m.mu.Lock()
	m.rejected++
	m.mu.Unlock()
	m.inst.ordersTotal.WithLabelValues("rejected").Inc()
	m.inst.rejectionsTotal.Inc()
	m.logger.Warn("order rejected", slog.String("reason", reason))
}

// RecordError timestamps an error for the hourly error-rate check.
func (m *Monitor) RecordError(component, msg string) {
	m.mu.Lock()
	m.errors = push(m.errors, m.now(), m.size)
	m.mu.Unlock()
	m.inst.errorsTotal.WithLabelValues(component).Inc()
	m.logger.Error("error recorded", slog.String("source", component), slog.String("error", msg))
}

// RecordTrade observes the entry latency of an opened trade.
func (m *Monitor) RecordTrade(latencyMs float64) {
	m.inst.tradeLatency.Observe(latencyMs / 1000)
}

// Snapshot summarises the windows and evaluates health.
func (m *Monitor) Snapshot() domain.TelemetrySnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.snapshotLocked()
	s.Issues = m.issuesLocked(s, m.maxLatencyMs)
	s.Healthy = len(s.Issues) == 0
	return s
}

// Health returns the list of failing checks for the given latency ceiling.
// An empty list means healthy.
func (m *Monitor) Health(maxLatencyMs float64) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.issuesLocked(m.snapshotLocked(), maxLatencyMs)
}

func (m *Monitor) snapshotLocked() domain.TelemetrySnapshot {
	var toOrder, toFill []float64
	for _, l := range m.latencies {
		if l.order != nil {
			toOrder = append(toOrder, float64(l.order.Sub(l.event).Milliseconds()))
		}
		if l.fill != nil {
			toFill = append(toFill, float64(l.fill.Sub(l.event).Milliseconds()))
		}
	}

	s := domain.TelemetrySnapshot{
		AvgEventToOrderMs: mean(toOrder),
		P95EventToOrderMs: p95(toOrder),
		AvgEventToFillMs:  mean(toFill),
		P95EventToFillMs:  p95(toFill),
		AvgSlippageBps:    mean(m.slippages),
		OrdersSubmitted:   m.submitted,
		OrdersFilled:      m.filled,
		OrdersRejected:    m.rejected,
		EventsSeen:        m.events,
		TakenAt:           m.now(),
	}
	if m.submitted > 0 {
		s.FillRate = float64(m.filled) / float64(m.submitted)
	}
	cutoff := s.TakenAt.Add(-time.Hour)
	for _, t := range m.errors {
		if t.After(cutoff) {
			s.ErrorsLastHour++
		}
	}
	return s
}

func (m *Monitor) issuesLocked(s domain.TelemetrySnapshot, maxLatencyMs float64) []string {
	var issues []string
	if maxLatencyMs > 0 && s.AvgEventToOrderMs > maxLatencyMs {
		issues = append(issues, fmt.Sprintf("High average latency: %.0fms", s.AvgEventToOrderMs))
	}
	if s.FillRate < minFillRate && m.submitted > minOrdersForRate {
		issues = append(issues, fmt.Sprintf("Low fill rate: %.1f%%", s.FillRate*100))
	}
	if s.ErrorsLastHour > maxErrorsPerHour {
		issues = append(issues, fmt.Sprintf("High error rate: %d errors in last hour", s.ErrorsLastHour))
	}
	return issues
}

// Reset clears the windows and counters. Prometheus counters keep their
// totals.
func (m *Monitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latencies = nil
	m.slippages = nil
	m.errors = nil
	m.submitted, m.filled, m.rejected, m.events = 0, 0, 0, 0
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func p95(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	return sorted[int(float64(len(sorted))*0.95)]
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
