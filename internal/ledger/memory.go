// Package ledger holds the in-process record of contests, processed scoring
// events, positions and trades.
package ledger

import (
	"fmt"
	"sync"
	"time"

	"github.com/alanyoungcy/scoretrader/internal/domain"
)

// DefaultHistorySize bounds the trailing scoring-event history.
const DefaultHistorySize = 1000

// Memory is a mutex-guarded, map-backed implementation of domain.Ledger.
type Memory struct {
	mu sync.RWMutex

	contests  map[string]domain.Contest
	mappings  map[string]domain.MarketMapping
	processed map[string]struct{}
	history   []domain.ScoringEvent
	histCap   int

	open   map[string]domain.Position
	closed []domain.Position

	trades     []domain.Trade
	tradeIndex map[string]int // position id -> index into trades
}

// NewMemory creates an empty ledger. historySize <= 0 uses DefaultHistorySize.
func NewMemory(historySize int) *Memory {
	if historySize <= 0 {
		historySize = DefaultHistorySize
	}
	m := &Memory{histCap: historySize}
	m.init()
	return m
}

func (m *Memory) init() {
	m.contests = make(map[string]domain.Contest)
	m.mappings = make(map[string]domain.MarketMapping)
	m.processed = make(map[string]struct{})
	m.history = make([]domain.ScoringEvent, 0, 64)
	m.open = make(map[string]domain.Position)
	m.closed = nil
	m.trades = nil
	m.tradeIndex = make(map[string]int)
}

// UpsertContest replaces the stored snapshot for c.ID.
func (m *Memory) UpsertContest(c domain.Contest) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.contests[c.ID] = c
}

func (m *Memory) Contest(id string) (domain.Contest, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.contests[id]
	return c, ok
}

func (m *Memory) Contests() []domain.Contest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Contest, 0, len(m.contests))
	for _, c := range m.contests {
		out = append(out, c)
	}
	return out
}

// ClearFinished drops terminal contests and their mappings, returning how
// many were removed. A finished contest that still backs an open position
// is kept until that position closes.
func (m *Memory) ClearFinished() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	held := make(map[string]bool, len(m.open))
	for _, p := range m.open {
		held[p.ContestID] = true
	}
	n := 0
	for id, c := range m.contests {
		if c.Status.IsTerminal() && !held[id] {
			delete(m.contests, id)
			delete(m.mappings, id)
			n++
		}
	}
	return n
}

func (m *Memory) Mapping(contestID string) (domain.MarketMapping, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mp, ok := m.mappings[contestID]
	return mp, ok
}

func (m *Memory) SaveMapping(mp domain.MarketMapping) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mappings[mp.ContestID] = mp
}

func (m *Memory) IsProcessed(eventID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.processed[eventID]
	return ok
}

// MarkProcessed records the event id and appends the event to the bounded
// history. It returns false if the id had already been recorded.
func (m *Memory) MarkProcessed(ev domain.ScoringEvent) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.processed[ev.ID]; ok {
		return false
	}
	m.processed[ev.ID] = struct{}{}
	m.appendEventLocked(ev)
	return true
}

// AppendEvent adds an event to history without marking it processed.
func (m *Memory) AppendEvent(ev domain.ScoringEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appendEventLocked(ev)
}

func (m *Memory) appendEventLocked(ev domain.ScoringEvent) {
	m.history = append(m.history, ev)
	if over := len(m.history) - m.histCap; over > 0 {
		m.history = append(m.history[:0:0], m.history[over:]...)
	}
}

// RecentEvents returns up to n events, newest first. n <= 0 returns all.
func (m *Memory) RecentEvents(n int) []domain.ScoringEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if n <= 0 || n > len(m.history) {
		n = len(m.history)
	}
	out := make([]domain.ScoringEvent, 0, n)
	for i := len(m.history) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, m.history[i])
	}
	return out
}

func (m *Memory) AddPosition(p domain.Position) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.open[p.ID] = p
}

// Position looks up a position by id among open then closed positions.
func (m *Memory) Position(id string) (domain.Position, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if p, ok := m.open[id]; ok {
		return p, true
	}
	for _, p := range m.closed {
		if p.ID == id {
			return p, true
		}
	}
	return domain.Position{}, false
}

func (m *Memory) OpenPositions() []domain.Position {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Position, 0, len(m.open))
	for _, p := range m.open {
		out = append(out, p)
	}
	return out
}

// MarkPosition refreshes an open position's current price.
func (m *Memory) MarkPosition(id string, price float64) (domain.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.open[id]
	if !ok {
		return domain.Position{}, fmt.Errorf("ledger: mark position %s: %w", id, domain.ErrPositionNotOpen)
	}
	p.MarkPrice(price)
	m.open[id] = p
	return p, nil
}

// ClosePosition closes an open position, archives it and finalizes the
// linked trade in the same critical section.
func (m *Memory) ClosePosition(id string, exitPrice float64, exitOrderID, reason string, at time.Time) (domain.Position, domain.Trade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.open[id]
	if !ok {
		return domain.Position{}, domain.Trade{}, fmt.Errorf("ledger: close position %s: %w", id, domain.ErrPositionNotOpen)
	}
	if err := p.Close(exitPrice, exitOrderID, reason, at); err != nil {
		return domain.Position{}, domain.Trade{}, fmt.Errorf("ledger: close position %s: %w", id, err)
	}
	delete(m.open, id)
	m.closed = append(m.closed, p)

	var t domain.Trade
	if idx, ok := m.tradeIndex[id]; ok {
		m.trades[idx].Finalize(p)
		t = m.trades[idx]
	}
	return p, t, nil
}

// ClosedPositions returns up to limit closed positions, most recent first.
func (m *Memory) ClosedPositions(limit int) []domain.Position {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if limit <= 0 || limit > len(m.closed) {
		limit = len(m.closed)
	}
	out := make([]domain.Position, 0, limit)
	for i := len(m.closed) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.closed[i])
	}
	return out
}

// AddTrade appends a trade. A trade whose position is already closed is
// finalized immediately.
func (m *Memory) AddTrade(t domain.Trade) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.PositionID != "" {
		for _, p := range m.closed {
			if p.ID == t.PositionID {
				t.Finalize(p)
				break
			}
		}
		m.tradeIndex[t.PositionID] = len(m.trades)
	}
	m.trades = append(m.trades, t)
}

// Trades returns up to limit trades, most recent first.
func (m *Memory) Trades(limit int) []domain.Trade {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if limit <= 0 || limit > len(m.trades) {
		limit = len(m.trades)
	}
	out := make([]domain.Trade, 0, limit)
	for i := len(m.trades) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.trades[i])
	}
	return out
}

// Metrics aggregates the trade history. Win/loss counts and P&L only cover
// closed trades.
func (m *Memory) Metrics(dailyPnL float64) domain.TradingMetrics {
	m.mu.RLock()
	defer m.mu.RUnlock()

	met := domain.TradingMetrics{
		TotalTrades:     len(m.trades),
		DailyPnL:        dailyPnL,
		OpenPositions:   len(m.open),
		EventsProcessed: len(m.processed),
	}

	var closed int
	var latencySum, slippageSum float64
	for _, t := range m.trades {
		latencySum += t.LatencyMs
		slippageSum += t.Slippage
		if t.LatencyMs > met.MaxLatencyMs {
			met.MaxLatencyMs = t.LatencyMs
		}
		if t.PnL == nil {
			continue
		}
		closed++
		met.TotalPnL += *t.PnL
		switch {
		case *t.PnL > 0:
			met.WinningTrades++
		case *t.PnL < 0:
			met.LosingTrades++
		}
	}
	if n := len(m.trades); n > 0 {
		met.AvgLatencyMs = latencySum / float64(n)
		met.AvgSlippage = slippageSum / float64(n)
	}
	if closed > 0 {
		met.WinRate = float64(met.WinningTrades) / float64(closed)
		met.AvgPnLPerTrade = domain.RoundCents(met.TotalPnL / float64(closed))
	}
	met.TotalPnL = domain.RoundCents(met.TotalPnL)

	for _, p := range m.open {
		met.TotalExposure += p.Size
	}
	return met
}

// Reset clears all state.
func (m *Memory) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.init()
}

var _ domain.Ledger = (*Memory)(nil)
