package service

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/scoretrader/internal/domain"
)

// RiskConfig holds the tunable limits of the risk manager.
type RiskConfig struct {
	Bankroll             float64
	MaxPerTradePct       float64 // percent of bankroll, e.g. 0.5 = 0.5%
	DailyLossLimit       float64
	PerContestMax        float64
	MaxConsecutiveErrors int
	MinTradeSize         float64
}

// RiskService sizes and approves trade intents, tracks daily P&L and
// per-contest exposure, and owns the circuit breaker. It is shared by every
// sport loop and is safe for concurrent use.
type RiskService struct {
	cfg    RiskConfig
	logger *slog.Logger
	now    func() time.Time

	mu                sync.Mutex
	dailyPnL          float64
	exposure          map[string]float64
	consecutiveErrors int
	breaker           bool
	lastError         string
	resetDate         string

	onTrip func(status domain.RiskStatus)
}

// RiskOption customises a RiskService.
type RiskOption func(*RiskService)

// WithClock overrides the wall clock used for the daily rollover.
func WithClock(now func() time.Time) RiskOption {
	return func(s *RiskService) { s.now = now }
}

// WithTripHandler registers a callback fired once each time the breaker trips.
func WithTripHandler(fn func(domain.RiskStatus)) RiskOption {
	return func(s *RiskService) { s.onTrip = fn }
}

// NewRiskService creates a RiskService with the given limits.
func NewRiskService(cfg RiskConfig, logger *slog.Logger, opts ...RiskOption) *RiskService {
	if cfg.MinTradeSize <= 0 {
		cfg.MinTradeSize = 1
	}
	s := &RiskService{
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "risk")),
		now:      func() time.Time { return time.Now().UTC() },
		exposure: make(map[string]float64),
	}
	for _, o := range opts {
		o(s)
	}
	s.resetDate = s.today()
	return s
}

func (s *RiskService) today() string {
	return s.now().UTC().Format(time.DateOnly)
}

// rollover resets daily counters and exposure on a new UTC day. Caller holds mu.
func (s *RiskService) rollover() {
	if d := s.today(); d != s.resetDate {
		s.logger.Info("daily risk reset",
			slog.String("previous", s.resetDate),
			slog.Float64("daily_pnl", s.dailyPnL),
		)
		s.dailyPnL = 0
		s.exposure = make(map[string]float64)
		s.resetDate = d
	}
}

// Approve sizes the intent or rejects it. The returned intent is a copy; the
// argument is never modified.
func (s *RiskService) Approve(intent domain.OrderIntent) (*domain.OrderIntent, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rollover()

	if s.breaker {
		return s.rejectLocked(intent, "Circuit breaker active")
	}
	if s.dailyPnL <= -s.cfg.DailyLossLimit {
		return s.rejectLocked(intent, fmt.Sprintf("Daily loss limit reached (%.2f)", s.dailyPnL))
	}
	current := s.exposure[intent.ContestID]
	if current >= s.cfg.PerContestMax {
		return s.rejectLocked(intent, fmt.Sprintf("Contest exposure at cap (%.2f/%.2f)", current, s.cfg.PerContestMax))
	}

	size := s.sizeLocked(current)
	if size < s.cfg.MinTradeSize {
		return s.rejectLocked(intent, fmt.Sprintf("Position size too small (%.2f)", size))
	}

	approved := intent
	approved.Size = size
	s.logger.Info("intent approved",
		slog.String("intent_id", intent.ID),
		slog.String("contest_id", intent.ContestID),
		slog.Float64("size", size),
	)
	return &approved, fmt.Sprintf("Approved: $%.2f", size)
}

func (s *RiskService) sizeLocked(currentExposure float64) float64 {
	base := decimal.NewFromFloat(s.cfg.Bankroll).
		Mul(decimal.NewFromFloat(s.cfg.MaxPerTradePct)).
		Div(decimal.NewFromInt(100))
	dailyRemaining := decimal.NewFromFloat(s.cfg.DailyLossLimit).Add(decimal.NewFromFloat(s.dailyPnL))
	contestRemaining := decimal.NewFromFloat(s.cfg.PerContestMax).Sub(decimal.NewFromFloat(currentExposure))
	return decimal.Min(base, dailyRemaining, contestRemaining).Round(2).InexactFloat64()
}

func (s *RiskService) rejectLocked(intent domain.OrderIntent, reason string) (*domain.OrderIntent, string) {
	s.logger.Info("intent rejected",
		slog.String("intent_id", intent.ID),
		slog.String("contest_id", intent.ContestID),
		slog.String("reason", reason),
	)
	return nil, reason
}

// RecordResult folds realized P&L and an exposure change into the totals.
// exposureDelta is positive on open and negative on close.
func (s *RiskService) RecordResult(contestID string, pnl, exposureDelta float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rollover()

	s.dailyPnL = domain.RoundCents(s.dailyPnL + pnl)
	next := domain.RoundCents(s.exposure[contestID] + exposureDelta)
	if next <= 0 {
		delete(s.exposure, contestID)
	} else {
		s.exposure[contestID] = next
	}
}

// RecordError counts a submission fault and trips the breaker at the
// configured threshold.
func (s *RiskService) RecordError(msg string) {
	s.mu.Lock()
	s.consecutiveErrors++
	s.lastError = msg
	tripped := false
	if !s.breaker && s.cfg.MaxConsecutiveErrors > 0 && s.consecutiveErrors >= s.cfg.MaxConsecutiveErrors {
		s.breaker = true
		tripped = true
	}
	status := s.statusLocked()
	s.mu.Unlock()

	s.logger.Warn("execution error recorded",
		slog.String("error", msg),
		slog.Int("consecutive_errors", status.ConsecutiveErrors),
	)
	if tripped {
		s.logger.Error("circuit breaker tripped", slog.Int("consecutive_errors", status.ConsecutiveErrors))
		if s.onTrip != nil {
			s.onTrip(status)
		}
	}
}

// RecordSuccess resets the error counter. It never clears the breaker.
func (s *RiskService) RecordSuccess() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.consecutiveErrors = 0
}

// ResetCircuitBreaker is the only way to clear a tripped breaker.
func (s *RiskService) ResetCircuitBreaker() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.breaker = false
	s.consecutiveErrors = 0
	s.lastError = ""
	s.logger.Info("circuit breaker reset")
}

// BreakerActive reports whether approvals are halted.
func (s *RiskService) BreakerActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.breaker
}

// ExposureFor returns the tracked exposure of one contest.
func (s *RiskService) ExposureFor(contestID string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rollover()
	return s.exposure[contestID]
}

// DailyPnL returns today's realized P&L.
func (s *RiskService) DailyPnL() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rollover()
	return s.dailyPnL
}

// Status returns a read-only snapshot.
func (s *RiskService) Status() domain.RiskStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rollover()
	return s.statusLocked()
}

func (s *RiskService) statusLocked() domain.RiskStatus {
	exp := make(map[string]float64, len(s.exposure))
	var total float64
	for k, v := range s.exposure {
		exp[k] = v
		total += v
	}
	return domain.RiskStatus{
		Bankroll:             s.cfg.Bankroll,
		DailyPnL:             s.dailyPnL,
		DailyLossLimit:       s.cfg.DailyLossLimit,
		DailyLossRemaining:   domain.RoundCents(s.cfg.DailyLossLimit + s.dailyPnL),
		PerContestMax:        s.cfg.PerContestMax,
		ConsecutiveErrors:    s.consecutiveErrors,
		CircuitBreakerActive: s.breaker,
		LastError:            s.lastError,
		ExposureByContest:    exp,
		TotalExposure:        domain.RoundCents(total),
		LastResetDate:        s.resetDate,
	}
}
