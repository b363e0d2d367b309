package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/scoretrader/internal/domain"
	"github.com/alanyoungcy/scoretrader/internal/executor"
	"github.com/alanyoungcy/scoretrader/internal/strategy"
	"github.com/alanyoungcy/scoretrader/internal/telemetry"
)

// PipelineOutcome is the terminal step a scoring event reached.
type PipelineOutcome string

const (
	OutcomeDuplicate      PipelineOutcome = "duplicate"
	OutcomeNoSignal       PipelineOutcome = "no_signal"
	OutcomeRiskRejected   PipelineOutcome = "risk_rejected"
	OutcomeDryRun         PipelineOutcome = "dry_run"
	OutcomeOrderRejected  PipelineOutcome = "order_rejected"
	OutcomeOrderSubmitted PipelineOutcome = "order_submitted"
	OutcomePositionOpened PipelineOutcome = "position_opened"
)

// PipelineResult describes what happened to one scoring event.
type PipelineResult struct {
	EventID  string              `json:"event_id"`
	Outcome  PipelineOutcome     `json:"outcome"`
	Reason   string              `json:"reason"`
	Intent   *domain.OrderIntent `json:"intent,omitempty"`
	Order    *domain.Order       `json:"order,omitempty"`
	Position *domain.Position    `json:"position,omitempty"`
}

// Notifier delivers operator alerts. *notify.Notifier satisfies it.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// Notification event types.
const (
	NotifyOrderFilled    = "order_filled"
	NotifyPositionClosed = "position_closed"
	NotifyCircuitBreaker = "circuit_breaker"
	NotifyError          = "error"
)

// TradeConfig tunes the orchestrator.
type TradeConfig struct {
	Enabled        bool
	ExitConcession float64
	EventLockTTL   time.Duration
}

// TradeDeps are the collaborators of a TradeService. Locks, Bus, Notifier
// and Recorder are optional.
type TradeDeps struct {
	Ledger    domain.Ledger
	Resolver  domain.MarketResolver
	Evaluator *strategy.Evaluator
	Risk      *RiskService
	Executor  *executor.Executor
	Monitor   *telemetry.Monitor
	Locks     domain.LockManager
	Bus       domain.SignalBus
	Notifier  Notifier
	Recorder  domain.Recorder
}

// TradeService runs the event-to-position pipeline and the exit flow. Its
// enable switch gates order submission only.
type TradeService struct {
	TradeDeps
	cfg     TradeConfig
	logger  *slog.Logger
	now     func() time.Time
	enabled atomic.Bool

	mu      sync.Mutex
	closing map[string]struct{}
	entries map[string]restingEntry // order id -> entry awaiting its fill
	exits   map[string]restingExit  // order id -> exit awaiting its fill
}

type restingEntry struct {
	event  domain.ScoringEvent
	intent domain.OrderIntent
	seenAt time.Time
}

type restingExit struct {
	positionID string
	reason     string
}

// NewTradeService wires the pipeline and subscribes to the executor so
// orders that rest on the exchange are settled when they resolve.
func NewTradeService(deps TradeDeps, cfg TradeConfig, logger *slog.Logger) *TradeService {
	if cfg.ExitConcession <= 0 {
		cfg.ExitConcession = 0.02
	}
	if cfg.EventLockTTL <= 0 {
		cfg.EventLockTTL = 10 * time.Minute
	}
	if deps.Recorder == nil {
		deps.Recorder = domain.NopRecorder{}
	}
	s := &TradeService{
		TradeDeps: deps,
		cfg:       cfg,
		logger:    logger.With(slog.String("component", "trade_service")),
		now:       func() time.Time { return time.Now().UTC() },
		closing:   make(map[string]struct{}),
		entries:   make(map[string]restingEntry),
		exits:     make(map[string]restingExit),
	}
	s.enabled.Store(cfg.Enabled)
	if deps.Executor != nil {
		deps.Executor.Observe(s.settle)
	}
	return s
}

// Enable turns on order submission.
func (s *TradeService) Enable() {
	s.enabled.Store(true)
	s.logger.Info("trading enabled")
	s.audit(context.Background(), "trading_enabled", nil)
}

// Disable turns off order submission. Evaluation and risk checks keep
// running.
func (s *TradeService) Disable() {
	s.enabled.Store(false)
	s.logger.Warn("trading disabled")
	s.audit(context.Background(), "trading_disabled", nil)
}

func (s *TradeService) Enabled() bool { return s.enabled.Load() }

// ProcessEvent runs one scoring event through the pipeline. Decision-path
// rejections are reported in the result, not as errors; a repeated event
// returns ErrDuplicateEvent alongside a duplicate result.
func (s *TradeService) ProcessEvent(ctx context.Context, ev domain.ScoringEvent, contest domain.Contest) (PipelineResult, error) {
	res := PipelineResult{EventID: ev.ID}
	log := s.logger.With(
		slog.String("event_id", ev.ID),
		slog.String("contest_id", contest.ID),
		slog.String("sport", string(ev.Sport)),
	)

	if s.Ledger.IsProcessed(ev.ID) {
		return s.duplicate(res)
	}
	if s.Locks != nil {
		// The claim is left to expire so other processes skip the event.
		if _, err := s.Locks.Acquire(ctx, "event:"+ev.ID, s.cfg.EventLockTTL); err != nil {
			if errors.Is(err, domain.ErrLockHeld) {
				return s.duplicate(res)
			}
			log.WarnContext(ctx, "event claim failed, continuing", slog.String("error", err.Error()))
		}
	}
	if !s.Ledger.MarkProcessed(ev) {
		return s.duplicate(res)
	}

	seenAt := ev.Timestamp
	if seenAt.IsZero() {
		seenAt = s.now()
	}
	s.Monitor.RecordEvent(ev.ID, seenAt)
	s.Ledger.UpsertContest(contest)
	s.record(ctx, "event", s.Recorder.RecordEvent(ctx, ev))
	s.publish(ctx, domain.ChannelEvents, "scoring_event", ev)

	log.InfoContext(ctx, "scoring event",
		slog.String("team", ev.ScoringTeamName),
		slog.Int("points", ev.Points),
		slog.String("type", ev.ScoringType),
		slog.String("score", fmt.Sprintf("%d-%d", ev.HomeScore, ev.AwayScore)),
	)

	mapping := s.mapping(ctx, contest)

	intent, reason := s.Evaluator.Evaluate(ev, contest, mapping)
	if intent == nil {
		return s.finish(res, OutcomeNoSignal, reason), nil
	}
	res.Intent = intent

	approved, riskReason := s.Risk.Approve(*intent)
	if approved == nil {
		return s.finish(res, OutcomeRiskRejected, riskReason), nil
	}
	res.Intent = approved

	if !s.Enabled() {
		log.InfoContext(ctx, "trading disabled, intent not executed",
			slog.String("market", approved.MarketID),
			slog.Float64("size", approved.Size),
			slog.Float64("limit", approved.LimitPrice),
		)
		return s.finish(res, OutcomeDryRun, reason), nil
	}

	order, msg := s.Executor.Execute(ctx, *approved)
	if order == nil {
		return s.finish(res, OutcomeOrderRejected, msg), nil
	}
	res.Order = order
	s.record(ctx, "order", s.Recorder.RecordOrder(ctx, *order))

	if order.Status == domain.OrderStatusRejected {
		s.Risk.RecordError(order.ErrorMessage)
		s.Monitor.RecordRejected(order.ErrorMessage)
		s.Monitor.ObserveRisk(s.Risk.Status())
		s.alert(ctx, NotifyError, "Order rejected",
			fmt.Sprintf("%s on %s: %s", approved.Side, approved.MarketID, order.ErrorMessage))
		return s.finish(res, OutcomeOrderRejected, msg), nil
	}
	s.Risk.RecordSuccess()
	if order.SubmittedAt != nil {
		s.Monitor.RecordOrderSubmitted(ev.ID, *order.SubmittedAt)
	}

	if order.Status != domain.OrderStatusFilled {
		// Exposure is reserved while the order rests and released if it
		// never fills.
		s.Risk.RecordResult(approved.ContestID, 0, approved.Size)
		s.Monitor.ObserveRisk(s.Risk.Status())
		s.track(ctx, order.ID, func() { s.entries[order.ID] = restingEntry{event: ev, intent: *approved, seenAt: seenAt} })
		log.InfoContext(ctx, "entry order resting",
			slog.String("order_id", order.ID),
			slog.String("exchange_order_id", order.ExchangeOrderID),
		)
		return s.finish(res, OutcomeOrderSubmitted, msg), nil
	}

	s.Risk.RecordResult(approved.ContestID, 0, approved.Size)
	pos := s.openPosition(ctx, ev, *approved, *order, seenAt)
	res.Position = &pos
	return s.finish(res, OutcomePositionOpened, reason), nil
}

func (s *TradeService) duplicate(res PipelineResult) (PipelineResult, error) {
	res = s.finish(res, OutcomeDuplicate, "event already processed")
	return res, fmt.Errorf("trade_service: %s: %w", res.EventID, domain.ErrDuplicateEvent)
}

func (s *TradeService) finish(res PipelineResult, outcome PipelineOutcome, reason string) PipelineResult {
	res.Outcome = outcome
	res.Reason = reason
	s.Monitor.RecordOutcome(string(outcome))
	return res
}

// mapping returns the contest's cached mapping or builds one. A resolver
// failure yields an uncached empty mapping.
func (s *TradeService) mapping(ctx context.Context, c domain.Contest) domain.MarketMapping {
	if m, ok := s.Ledger.Mapping(c.ID); ok {
		return m
	}
	if s.Resolver == nil {
		return domain.EmptyMapping(c)
	}
	m, err := s.Resolver.CreateMapping(ctx, c)
	if err != nil {
		s.logger.WarnContext(ctx, "market mapping failed",
			slog.String("contest_id", c.ID),
			slog.String("error", err.Error()),
		)
		s.Monitor.RecordError("resolver", err.Error())
		return domain.EmptyMapping(c)
	}
	s.Ledger.SaveMapping(m)
	return m
}

// openPosition materializes the Position and Trade for a filled entry
// order. The caller has already booked its exposure.
func (s *TradeService) openPosition(
	ctx context.Context,
	ev domain.ScoringEvent,
	intent domain.OrderIntent,
	order domain.Order,
	seenAt time.Time,
) domain.Position {
	now := s.now()
	entry := order.EntryPrice()
	latency := float64(now.Sub(seenAt).Milliseconds())

	pos := domain.Position{
		ID:           uuid.New().String(),
		ContestID:    intent.ContestID,
		MarketID:     intent.MarketID,
		Exchange:     intent.Exchange,
		Outcome:      intent.Outcome,
		Size:         intent.Size,
		Contracts:    order.FilledContracts,
		EntryPrice:   entry,
		CurrentPrice: entry,
		Status:       domain.PositionStatusOpen,
		OpenedAt:     now,
		EntryOrderID: order.ID,
		EventID:      ev.ID,
	}
	trade := domain.Trade{
		ID:         uuid.New().String(),
		PositionID: pos.ID,
		ContestID:  pos.ContestID,
		MarketID:   pos.MarketID,
		Exchange:   pos.Exchange,
		Side:       domain.OrderSideBuy,
		Outcome:    pos.Outcome,
		Size:       pos.Size,
		EntryPrice: entry,
		EntryTime:  now,
		Reason:     intent.Reason,
		EventID:    ev.ID,
		LatencyMs:  latency,
		Slippage:   domain.RoundCents(entry - intent.LimitPrice),
	}
	s.Ledger.AddPosition(pos)
	s.Ledger.AddTrade(trade)

	if order.FilledAt != nil {
		s.Monitor.RecordFill(ev.ID, intent.LimitPrice, entry, *order.FilledAt)
	}
	s.Monitor.RecordTrade(latency)
	s.Monitor.SetOpenPositions(len(s.Ledger.OpenPositions()))
	s.Monitor.ObserveRisk(s.Risk.Status())

	s.record(ctx, "position", s.Recorder.RecordPosition(ctx, pos))
	s.record(ctx, "trade", s.Recorder.RecordTrade(ctx, trade))
	s.publish(ctx, domain.ChannelTrades, "trade.opened", trade)
	s.publish(ctx, domain.ChannelRisk, "risk.updated", s.Risk.Status())
	s.appendStream(ctx, "trade.opened", trade)
	s.alert(ctx, NotifyOrderFilled, "Position opened",
		fmt.Sprintf("%s %s $%.2f @ %.2f\n%s", pos.Outcome, pos.MarketID, pos.Size, entry, intent.Reason))

	s.logger.InfoContext(ctx, "position opened",
		slog.String("position_id", pos.ID),
		slog.String("market", pos.MarketID),
		slog.Float64("size", pos.Size),
		slog.Float64("entry", entry),
		slog.Float64("latency_ms", latency),
	)
	return pos
}

// ClosePosition exits an open position with a sell of the held contracts at
// a small concession to currentPrice. Exits bypass risk approval. The
// realized P&L and the released exposure are fed back to the risk manager.
// An exit that rests on the exchange returns ErrExitPending; the position
// stays open and claimed until the order resolves.
func (s *TradeService) ClosePosition(ctx context.Context, positionID string, currentPrice float64, reason string) (domain.Position, error) {
	s.mu.Lock()
	if _, busy := s.closing[positionID]; busy {
		s.mu.Unlock()
		return domain.Position{}, fmt.Errorf("trade_service: close %s: %w", positionID, domain.ErrCloseInProgress)
	}
	s.closing[positionID] = struct{}{}
	s.mu.Unlock()
	release := true
	defer func() {
		if release {
			s.release(positionID)
		}
	}()

	// Read under the claim so a close that just finished is seen.
	pos, ok := s.Ledger.Position(positionID)
	if !ok {
		return domain.Position{}, fmt.Errorf("trade_service: close %s: %w", positionID, domain.ErrNotFound)
	}
	if pos.Status != domain.PositionStatusOpen {
		return domain.Position{}, fmt.Errorf("trade_service: close %s: %w", positionID, domain.ErrPositionNotOpen)
	}

	limit := math.Max(0.01, domain.RoundCents(currentPrice-s.cfg.ExitConcession))
	intent := domain.OrderIntent{
		ID:         uuid.New().String(),
		ContestID:  pos.ContestID,
		MarketID:   pos.MarketID,
		Exchange:   pos.Exchange,
		Side:       domain.OrderSideSell,
		Outcome:    pos.Outcome,
		Size:       pos.Size,
		Contracts:  pos.Contracts,
		LimitPrice: limit,
		Reason:     "Exit: " + reason,
		EventID:    pos.EventID,
		CreatedAt:  s.now(),
	}

	order, msg := s.Executor.Execute(ctx, intent)
	if order != nil {
		s.record(ctx, "order", s.Recorder.RecordOrder(ctx, *order))
	}
	if order == nil || order.Status == domain.OrderStatusRejected {
		s.Risk.RecordError(msg)
		s.Monitor.RecordRejected(msg)
		s.alert(ctx, NotifyError, "Exit rejected", fmt.Sprintf("%s on %s: %s", reason, pos.MarketID, msg))
		return pos, fmt.Errorf("trade_service: close %s: %w: %s", positionID, domain.ErrOrderRejected, msg)
	}
	s.Risk.RecordSuccess()

	if order.Status != domain.OrderStatusFilled {
		release = false
		s.track(ctx, order.ID, func() { s.exits[order.ID] = restingExit{positionID: positionID, reason: reason} })
		s.logger.InfoContext(ctx, "exit order resting",
			slog.String("position_id", positionID),
			slog.String("order_id", order.ID),
		)
		return pos, fmt.Errorf("trade_service: close %s: %w", positionID, domain.ErrExitPending)
	}
	return s.completeClose(ctx, positionID, *order, reason)
}

// completeClose books a filled exit order against the position.
func (s *TradeService) completeClose(ctx context.Context, positionID string, order domain.Order, reason string) (domain.Position, error) {
	closed, trade, err := s.Ledger.ClosePosition(positionID, order.EntryPrice(), order.ID, reason, s.now())
	if err != nil {
		return closed, fmt.Errorf("trade_service: close %s: %w", positionID, err)
	}
	s.Risk.RecordResult(closed.ContestID, closed.RealizedPnL, -closed.Size)

	s.Monitor.SetOpenPositions(len(s.Ledger.OpenPositions()))
	s.Monitor.ObserveRisk(s.Risk.Status())
	s.record(ctx, "position", s.Recorder.RecordPosition(ctx, closed))
	if trade.ID != "" {
		s.record(ctx, "trade", s.Recorder.RecordTrade(ctx, trade))
		s.appendStream(ctx, "trade.closed", trade)
	}
	s.publish(ctx, domain.ChannelTrades, "trade.closed", closed)
	s.publish(ctx, domain.ChannelRisk, "risk.updated", s.Risk.Status())
	s.alert(ctx, NotifyPositionClosed, "Position closed",
		fmt.Sprintf("%s %s exit %.2f (%s) P&L $%.2f", closed.Outcome, closed.MarketID, *closed.ExitPrice, reason, closed.RealizedPnL))

	s.logger.InfoContext(ctx, "position closed",
		slog.String("position_id", closed.ID),
		slog.String("reason", reason),
		slog.Float64("exit", *closed.ExitPrice),
		slog.Float64("pnl", closed.RealizedPnL),
	)
	return closed, nil
}

func (s *TradeService) release(positionID string) {
	s.mu.Lock()
	delete(s.closing, positionID)
	s.mu.Unlock()
}

// track registers a resting order. An order that resolved before it was
// registered is settled straight away.
func (s *TradeService) track(ctx context.Context, orderID string, register func()) {
	s.mu.Lock()
	register()
	s.mu.Unlock()
	if o, ok := s.Executor.Get(orderID); ok && o.Status.IsTerminal() {
		s.settle(ctx, o)
	}
}

// settle is the executor observer. It resolves resting entries and exits
// once their order reaches a terminal state; other orders are ignored.
func (s *TradeService) settle(ctx context.Context, o domain.Order) {
	s.mu.Lock()
	entry, isEntry := s.entries[o.ID]
	delete(s.entries, o.ID)
	exit, isExit := s.exits[o.ID]
	delete(s.exits, o.ID)
	s.mu.Unlock()

	switch {
	case isEntry:
		s.settleEntry(ctx, entry, o)
	case isExit:
		s.settleExit(ctx, exit, o)
	}
}

func (s *TradeService) settleEntry(ctx context.Context, entry restingEntry, o domain.Order) {
	if o.Status == domain.OrderStatusFilled {
		s.openPosition(ctx, entry.event, entry.intent, o, entry.seenAt)
		return
	}
	s.Risk.RecordResult(entry.intent.ContestID, 0, -entry.intent.Size)
	s.Monitor.ObserveRisk(s.Risk.Status())
	s.publish(ctx, domain.ChannelRisk, "risk.updated", s.Risk.Status())
	s.logger.WarnContext(ctx, "entry order did not fill",
		slog.String("order_id", o.ID),
		slog.String("event_id", entry.event.ID),
		slog.String("status", string(o.Status)),
	)
}

func (s *TradeService) settleExit(ctx context.Context, exit restingExit, o domain.Order) {
	defer s.release(exit.positionID)
	if o.Status != domain.OrderStatusFilled {
		s.logger.WarnContext(ctx, "exit order did not fill, position stays open",
			slog.String("order_id", o.ID),
			slog.String("position_id", exit.positionID),
			slog.String("status", string(o.Status)),
		)
		return
	}
	if _, err := s.completeClose(ctx, exit.positionID, o, exit.reason); err != nil {
		s.logger.ErrorContext(ctx, "settle exit failed",
			slog.String("position_id", exit.positionID),
			slog.String("error", err.Error()),
		)
	}
}

// TradingStatus is the composite view served by the API.
type TradingStatus struct {
	Enabled       bool                     `json:"enabled"`
	Risk          domain.RiskStatus        `json:"risk"`
	Metrics       domain.TradingMetrics    `json:"metrics"`
	Telemetry     domain.TelemetrySnapshot `json:"telemetry"`
	OpenPositions []domain.Position        `json:"open_positions"`
	PendingOrders int                      `json:"pending_orders"`
}

func (s *TradeService) Status() TradingStatus {
	risk := s.Risk.Status()
	return TradingStatus{
		Enabled:       s.Enabled(),
		Risk:          risk,
		Metrics:       s.Ledger.Metrics(risk.DailyPnL),
		Telemetry:     s.Monitor.Snapshot(),
		OpenPositions: s.Ledger.OpenPositions(),
		PendingOrders: len(s.Executor.Pending()),
	}
}

// Snapshot captures the state persisted by the periodic snapshot job.
func (s *TradeService) Snapshot() domain.Snapshot {
	st := s.Status()
	return domain.Snapshot{
		TakenAt:   s.now(),
		Risk:      st.Risk,
		Metrics:   st.Metrics,
		Telemetry: st.Telemetry,
	}
}

type busMessage struct {
	Type string    `json:"type"`
	At   time.Time `json:"at"`
	Data any       `json:"data"`
}

func (s *TradeService) encode(kind string, data any) []byte {
	payload, err := json.Marshal(busMessage{Type: kind, At: s.now(), Data: data})
	if err != nil {
		s.logger.Error("encode bus message", slog.String("type", kind), slog.String("error", err.Error()))
		return nil
	}
	return payload
}

func (s *TradeService) publish(ctx context.Context, channel, kind string, data any) {
	if s.Bus == nil {
		return
	}
	payload := s.encode(kind, data)
	if payload == nil {
		return
	}
	if err := s.Bus.Publish(ctx, channel, payload); err != nil {
		s.logger.WarnContext(ctx, "publish failed",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
	}
}

func (s *TradeService) appendStream(ctx context.Context, kind string, data any) {
	if s.Bus == nil {
		return
	}
	payload := s.encode(kind, data)
	if payload == nil {
		return
	}
	if err := s.Bus.StreamAppend(ctx, domain.StreamTrades, payload); err != nil {
		s.logger.WarnContext(ctx, "stream append failed", slog.String("error", err.Error()))
	}
}

func (s *TradeService) alert(ctx context.Context, event, title, message string) {
	if s.Notifier == nil {
		return
	}
	if err := s.Notifier.Notify(ctx, event, title, message); err != nil {
		s.logger.WarnContext(ctx, "notification failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

func (s *TradeService) record(ctx context.Context, what string, err error) {
	if err != nil {
		s.logger.WarnContext(ctx, "mirror write failed",
			slog.String("entity", what),
			slog.String("error", err.Error()),
		)
	}
}

func (s *TradeService) audit(ctx context.Context, event string, detail map[string]any) {
	s.record(ctx, "audit", s.Recorder.Audit(ctx, event, detail))
}
