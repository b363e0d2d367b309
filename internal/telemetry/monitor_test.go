package telemetry

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMonitor(size int) (*Monitor, *time.Time) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := NewMonitor(size, 5000, slog.New(slog.NewTextHandler(io.Discard, nil)))
	m.SetClock(func() time.Time { return now })
	return m, &now
}

func TestMonitor_LatencyAndSlippage(t *testing.T) {
	m, _ := newTestMonitor(0)
	base := time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC)

	m.RecordEvent("e1", base)
	m.RecordOrderSubmitted("e1", base.Add(200*time.Millisecond))
	m.RecordFill("e1", 0.27, 0.28, base.Add(500*time.Millisecond))

	m.RecordEvent("e2", base)
	m.RecordOrderSubmitted("e2", base.Add(400*time.Millisecond))

	s := m.Snapshot()
	assert.Equal(t, 300.0, s.AvgEventToOrderMs)
	assert.Equal(t, 400.0, s.P95EventToOrderMs)
	assert.Equal(t, 500.0, s.AvgEventToFillMs)
	assert.InDelta(t, 100.0, s.AvgSlippageBps, 1e-9)
	assert.Equal(t, 2, s.OrdersSubmitted)
	assert.Equal(t, 1, s.OrdersFilled)
	assert.Equal(t, 0.5, s.FillRate)
	assert.Equal(t, 2, s.EventsSeen)
	assert.True(t, s.Healthy)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.inst.ordersTotal.WithLabelValues("submitted")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.inst.eventsTotal))
}

func TestMonitor_WindowIsBounded(t *testing.T) {
	m, _ := newTestMonitor(3)
	base := time.Now()
	for i := 0; i < 5; i++ {
		m.RecordEvent(fmt.Sprintf("e%d", i), base)
	}
	assert.Len(t, m.latencies, 3)
	assert.Equal(t, "e2", m.latencies[0].eventID)
	assert.Equal(t, 5, m.Snapshot().EventsSeen)
}

func TestMonitor_Health(t *testing.T) {
	m, now := newTestMonitor(0)

	for i := 0; i < 12; i++ {
		id := fmt.Sprintf("e%d", i)
		m.RecordEvent(id, now.Add(-10*time.Second))
		m.RecordOrderSubmitted(id, *now)
	}
	m.RecordFill("e0", 0.3, 0.3, *now)
	for i := 0; i < 11; i++ {
		m.RecordError("executor", "boom")
	}

	issues := m.Health(5000)
	require.Len(t, issues, 3)
	assert.True(t, strings.HasPrefix(issues[0], "High average latency"))
	assert.True(t, strings.HasPrefix(issues[1], "Low fill rate"))
	assert.Equal(t, "High error rate: 11 errors in last hour", issues[2])

	assert.Len(t, m.Health(20000), 2)
	assert.False(t, m.Snapshot().Healthy)
}

func TestMonitor_OldErrorsAgeOut(t *testing.T) {
	m, now := newTestMonitor(0)
	for i := 0; i < 11; i++ {
		m.RecordError("espn", "timeout")
	}
	later := now.Add(2 * time.Hour)
	m.SetClock(func() time.Time { return later })
	assert.Zero(t, m.Snapshot().ErrorsLastHour)
	assert.Empty(t, m.Health(5000))
}

func TestMonitor_Middleware(t *testing.T) {
	m, _ := newTestMonitor(0)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/positions/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	h := m.Middleware(mux)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/positions/abc", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.inst.httpRequests.WithLabelValues("GET", "GET /api/positions/{id}", "418")))

	rec = httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), "scoretrader_http_requests_total")
}
