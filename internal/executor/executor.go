package executor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/scoretrader/internal/domain"
)

// OrderObserver is called once for every order that reaches a terminal
// state. Observers must not block.
type OrderObserver func(ctx context.Context, o domain.Order)

// Config tunes the executor.
type Config struct {
	OrderTimeout      time.Duration
	DedupTTL          time.Duration
	RateLimit         int // submissions per RateWindow; 0 disables
	RateWindow        time.Duration
	ReconcileInterval time.Duration
	ReconcileAge      time.Duration
	HistorySize       int
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		OrderTimeout:      10 * time.Second,
		DedupTTL:          2 * time.Minute,
		RateWindow:        time.Second,
		ReconcileInterval: 5 * time.Second,
		ReconcileAge:      5 * time.Second,
		HistorySize:       1000,
	}
}

// Executor submits approved intents to the exchange and tracks each order
// from pending to a terminal state. Submission faults are recorded on the
// order, never returned as errors.
type Executor struct {
	exchange domain.Exchange
	limiter  domain.RateLimiter
	dedup    *Dedup
	cfg      Config
	logger   *slog.Logger
	now      func() time.Time

	cleanupInterval time.Duration

	mu        sync.Mutex
	pending   map[string]*domain.Order
	completed []domain.Order
	observers []OrderObserver
}

// NewExecutor creates an Executor trading on exchange.
func NewExecutor(exchange domain.Exchange, cfg Config, logger *slog.Logger) *Executor {
	def := DefaultConfig()
	if cfg.OrderTimeout <= 0 {
		cfg.OrderTimeout = def.OrderTimeout
	}
	if cfg.DedupTTL <= 0 {
		cfg.DedupTTL = def.DedupTTL
	}
	if cfg.RateWindow <= 0 {
		cfg.RateWindow = def.RateWindow
	}
	if cfg.ReconcileInterval <= 0 {
		cfg.ReconcileInterval = def.ReconcileInterval
	}
	if cfg.ReconcileAge <= 0 {
		cfg.ReconcileAge = def.ReconcileAge
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = def.HistorySize
	}
	return &Executor{
		exchange:        exchange,
		dedup:           NewDedup(cfg.DedupTTL),
		cfg:             cfg,
		logger:          logger.With(slog.String("component", "executor")),
		now:             func() time.Time { return time.Now().UTC() },
		cleanupInterval: 30 * time.Second,
		pending:         make(map[string]*domain.Order),
	}
}

// SetRateLimiter gates submissions through a distributed limiter.
func (e *Executor) SetRateLimiter(l domain.RateLimiter) { e.limiter = l }

// Observe registers an observer for terminal orders. Must be called before
// the executor is used.
func (e *Executor) Observe(fn OrderObserver) { e.observers = append(e.observers, fn) }

// Exchange returns the venue this executor trades on.
func (e *Executor) Exchange() domain.Exchange { return e.exchange }

// Execute creates an order for intent and submits it. A rejected order is
// still returned so callers can inspect the error message; nil is only
// returned for duplicate intents.
func (e *Executor) Execute(ctx context.Context, intent domain.OrderIntent) (*domain.Order, string) {
	if e.dedup.IsDuplicate(intent.ID) {
		e.logger.DebugContext(ctx, "intent deduplicated", slog.String("intent_id", intent.ID))
		return nil, "duplicate intent"
	}

	start := e.now()
	order := domain.NewOrder(uuid.New().String(), intent, start)
	log := e.logger.With(
		slog.String("order_id", order.ID),
		slog.String("market", order.MarketID),
		slog.String("side", string(order.Side)),
		slog.Float64("size", order.RequestedSize),
		slog.Float64("limit", order.LimitPrice),
	)

	e.mu.Lock()
	e.pending[order.ID] = &order
	e.mu.Unlock()

	if !e.allow(ctx) {
		return e.reject(ctx, log, order.ID, domain.ErrRateLimited.Error())
	}

	subCtx, cancel := context.WithTimeout(ctx, e.cfg.OrderTimeout)
	defer cancel()
	res, err := e.exchange.Submit(subCtx, domain.SubmitRequest{
		Ticker:        order.MarketID,
		Side:          order.Side,
		Outcome:       order.Outcome,
		Size:          order.RequestedSize,
		Contracts:     order.Contracts,
		LimitPrice:    order.LimitPrice,
		ClientOrderID: order.ID,
	})
	if err != nil {
		return e.reject(ctx, log, order.ID, err.Error())
	}

	end := e.now()
	latency := end.Sub(start)

	e.mu.Lock()
	o := e.pending[order.ID]
	o.ExchangeOrderID = res.OrderID
	_ = o.Transition(domain.OrderStatusSubmitted)
	o.SubmittedAt = &end
	if res.Status == domain.OrderStatusFilled {
		e.fillLocked(o, res.AvgPrice, res.Filled, res.FilledCount, end)
	}
	snapshot := *o
	if o.Status.IsTerminal() {
		e.archiveLocked(o)
	}
	e.mu.Unlock()

	if snapshot.Status.IsTerminal() {
		e.notify(ctx, snapshot)
	}
	log.InfoContext(ctx, "order executed",
		slog.String("exchange_order_id", snapshot.ExchangeOrderID),
		slog.String("status", string(snapshot.Status)),
		slog.Duration("latency", latency),
	)
	return &snapshot, fmt.Sprintf("Order %s (latency: %dms)", snapshot.Status, latency.Milliseconds())
}

func (e *Executor) allow(ctx context.Context) bool {
	if e.limiter == nil || e.cfg.RateLimit <= 0 {
		return true
	}
	ok, err := e.limiter.Allow(ctx, "orders:"+e.exchange.Name(), e.cfg.RateLimit, e.cfg.RateWindow)
	if err != nil {
		e.logger.WarnContext(ctx, "rate limiter unavailable, allowing submission", slog.String("error", err.Error()))
		return true
	}
	return ok
}

func (e *Executor) reject(ctx context.Context, log *slog.Logger, orderID, msg string) (*domain.Order, string) {
	e.mu.Lock()
	o := e.pending[orderID]
	_ = o.Transition(domain.OrderStatusRejected)
	o.ErrorMessage = msg
	snapshot := *o
	e.archiveLocked(o)
	e.mu.Unlock()

	log.WarnContext(ctx, "order rejected", slog.String("error", msg))
	e.notify(ctx, snapshot)
	return &snapshot, "Execution error: " + msg
}

// fillLocked marks o filled. Caller holds mu.
func (e *Executor) fillLocked(o *domain.Order, avgPrice, filled float64, contracts int64, at time.Time) {
	if err := o.Transition(domain.OrderStatusFilled); err != nil {
		return
	}
	o.FilledAt = &at
	if avgPrice <= 0 {
		avgPrice = o.LimitPrice
	}
	o.AvgFillPrice = &avgPrice
	if filled <= 0 {
		filled = o.RequestedSize
	}
	o.FilledSize = filled
	if contracts <= 0 {
		contracts = o.Contracts
	}
	o.FilledContracts = contracts
}

// archiveLocked moves a terminal order to history. Caller holds mu.
func (e *Executor) archiveLocked(o *domain.Order) {
	delete(e.pending, o.ID)
	e.completed = append(e.completed, *o)
	if over := len(e.completed) - e.cfg.HistorySize; over > 0 {
		e.completed = append(e.completed[:0:0], e.completed[over:]...)
	}
}

func (e *Executor) notify(ctx context.Context, o domain.Order) {
	for _, fn := range e.observers {
		fn(ctx, o)
	}
}

// Cancel cancels an order that has not reached a terminal state.
func (e *Executor) Cancel(ctx context.Context, orderID string) error {
	e.mu.Lock()
	o, ok := e.pending[orderID]
	if !ok {
		e.mu.Unlock()
		return fmt.Errorf("executor: cancel %s: %w", orderID, domain.ErrOrderNotPending)
	}
	exchangeID := o.ExchangeOrderID
	e.mu.Unlock()

	if exchangeID != "" {
		cctx, cancel := context.WithTimeout(ctx, e.cfg.OrderTimeout)
		defer cancel()
		confirmed, err := e.exchange.Cancel(cctx, exchangeID)
		if err != nil {
			return fmt.Errorf("executor: cancel %s: %w", orderID, err)
		}
		if !confirmed {
			return fmt.Errorf("executor: cancel %s: exchange did not confirm", orderID)
		}
	}

	e.mu.Lock()
	o, ok = e.pending[orderID]
	if !ok {
		e.mu.Unlock()
		return fmt.Errorf("executor: cancel %s: %w", orderID, domain.ErrOrderNotPending)
	}
	if err := o.Transition(domain.OrderStatusCancelled); err != nil {
		e.mu.Unlock()
		return fmt.Errorf("executor: cancel %s: %w", orderID, err)
	}
	snapshot := *o
	e.archiveLocked(o)
	e.mu.Unlock()

	e.logger.InfoContext(ctx, "order cancelled", slog.String("order_id", orderID))
	e.notify(ctx, snapshot)
	return nil
}

// Reconcile resolves an order's state from the exchange order listings.
// Terminal orders are returned unchanged.
func (e *Executor) Reconcile(ctx context.Context, orderID string) (domain.Order, error) {
	e.mu.Lock()
	o, ok := e.pending[orderID]
	if !ok {
		e.mu.Unlock()
		if done, found := e.Get(orderID); found {
			return done, nil
		}
		return domain.Order{}, fmt.Errorf("executor: reconcile %s: %w", orderID, domain.ErrNotFound)
	}
	snapshot := *o
	e.mu.Unlock()

	open, err := e.exchange.ListOrders(ctx, domain.ExchangeOrdersOpen)
	if err != nil {
		return snapshot, fmt.Errorf("executor: reconcile %s: list open: %w", orderID, err)
	}
	if _, found := matchOrder(open, snapshot); found {
		return snapshot, nil
	}

	closed, err := e.exchange.ListOrders(ctx, domain.ExchangeOrdersClosed)
	if err != nil {
		return snapshot, fmt.Errorf("executor: reconcile %s: list closed: %w", orderID, err)
	}
	row, found := matchOrder(closed, snapshot)
	if !found {
		return snapshot, nil
	}

	now := e.now()
	e.mu.Lock()
	o, ok = e.pending[orderID]
	if !ok {
		e.mu.Unlock()
		done, _ := e.Get(orderID)
		return done, nil
	}
	if o.ExchangeOrderID == "" {
		o.ExchangeOrderID = row.OrderID
	}
	if o.Status == domain.OrderStatusPending {
		_ = o.Transition(domain.OrderStatusSubmitted)
		o.SubmittedAt = &now
	}
	switch row.Status {
	case domain.OrderStatusFilled:
		var filled float64
		if row.FilledCount > 0 && row.AvgPrice > 0 {
			filled = domain.RoundCents(float64(row.FilledCount) * row.AvgPrice)
		}
		e.fillLocked(o, row.AvgPrice, filled, row.FilledCount, now)
	case domain.OrderStatusCancelled:
		_ = o.Transition(domain.OrderStatusCancelled)
	case domain.OrderStatusRejected:
		_ = o.Transition(domain.OrderStatusRejected)
	}
	snapshot = *o
	if o.Status.IsTerminal() {
		e.archiveLocked(o)
	}
	e.mu.Unlock()

	if snapshot.Status.IsTerminal() {
		e.logger.InfoContext(ctx, "order reconciled",
			slog.String("order_id", orderID),
			slog.String("status", string(snapshot.Status)),
		)
		e.notify(ctx, snapshot)
	}
	return snapshot, nil
}

func matchOrder(rows []domain.ExchangeOrder, o domain.Order) (domain.ExchangeOrder, bool) {
	for _, r := range rows {
		if (o.ExchangeOrderID != "" && r.OrderID == o.ExchangeOrderID) || r.ClientOrderID == o.ID {
			return r, true
		}
	}
	return domain.ExchangeOrder{}, false
}

// Pending returns orders that have not reached a terminal state.
func (e *Executor) Pending() []domain.Order {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]domain.Order, 0, len(e.pending))
	for _, o := range e.pending {
		out = append(out, *o)
	}
	return out
}

// Completed returns up to limit terminal orders, most recent first.
func (e *Executor) Completed(limit int) []domain.Order {
	e.mu.Lock()
	defer e.mu.Unlock()
	if limit <= 0 || limit > len(e.completed) {
		limit = len(e.completed)
	}
	out := make([]domain.Order, 0, limit)
	for i := len(e.completed) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, e.completed[i])
	}
	return out
}

// Get looks up an order in the working set, then in history.
func (e *Executor) Get(id string) (domain.Order, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if o, ok := e.pending[id]; ok {
		return *o, true
	}
	for i := len(e.completed) - 1; i >= 0; i-- {
		if e.completed[i].ID == id {
			return e.completed[i], true
		}
	}
	return domain.Order{}, false
}

// Run sweeps the dedup window and reconciles stale submitted orders until
// ctx is cancelled.
func (e *Executor) Run(ctx context.Context) error {
	e.logger.Info("executor started")
	defer e.logger.Info("executor stopped")

	cleanupTicker := time.NewTicker(e.cleanupInterval)
	defer cleanupTicker.Stop()
	reconcileTicker := time.NewTicker(e.cfg.ReconcileInterval)
	defer reconcileTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-cleanupTicker.C:
			e.dedup.Cleanup()

		case <-reconcileTicker.C:
			e.reconcileStale(ctx)
		}
	}
}

func (e *Executor) reconcileStale(ctx context.Context) {
	cutoff := e.now().Add(-e.cfg.ReconcileAge)
	for _, o := range e.Pending() {
		if o.Status != domain.OrderStatusSubmitted || o.SubmittedAt == nil || o.SubmittedAt.After(cutoff) {
			continue
		}
		if _, err := e.Reconcile(ctx, o.ID); err != nil {
			e.logger.WarnContext(ctx, "reconcile failed",
				slog.String("order_id", o.ID),
				slog.String("error", err.Error()),
			)
		}
	}
}

// SetDedupTTL replaces the dedup window. Must be called before use.
func (e *Executor) SetDedupTTL(ttl time.Duration) {
	e.dedup = NewDedup(ttl)
}

// SetCleanupInterval changes how often the dedup map is garbage-collected.
// Must be called before Run.
func (e *Executor) SetCleanupInterval(d time.Duration) {
	e.cleanupInterval = d
}
