package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/scoretrader/internal/config"
	"github.com/alanyoungcy/scoretrader/internal/domain"
	"github.com/alanyoungcy/scoretrader/internal/executor"
	"github.com/alanyoungcy/scoretrader/internal/ledger"
	"github.com/alanyoungcy/scoretrader/internal/service"
	"github.com/alanyoungcy/scoretrader/internal/strategy"
	"github.com/alanyoungcy/scoretrader/internal/telemetry"
)

// Pipeline holds the trading components built on top of Dependencies.
type Pipeline struct {
	Ledger    *ledger.Memory
	Risk      *service.RiskService
	Evaluator *strategy.Evaluator
	Executor  *executor.Executor
	Monitor   *telemetry.Monitor
	Markets   *service.MarketService
	Trades    *service.TradeService
	Positions *service.PositionService
}

// BuildPipeline assembles the event-to-position pipeline. deps must come from
// Wire in a mode that talks to the venue.
func BuildPipeline(cfg *config.Config, deps *Dependencies, logger *slog.Logger) *Pipeline {
	p := &Pipeline{
		Ledger:  ledger.NewMemory(cfg.Trading.HistorySize),
		Monitor: telemetry.NewMonitor(0, cfg.Risk.MaxLatencyMs, logger),
	}

	p.Risk = service.NewRiskService(service.RiskConfig{
		Bankroll:             cfg.Risk.Bankroll,
		MaxPerTradePct:       cfg.Risk.MaxPerTradePct,
		DailyLossLimit:       cfg.Risk.DailyLossLimit,
		PerContestMax:        cfg.Risk.PerMatchMaxExposure,
		MaxConsecutiveErrors: cfg.Risk.MaxConsecutiveErrors,
		MinTradeSize:         cfg.Risk.MinTradeSize,
	}, logger, service.WithTripHandler(tripHandler(deps, p.Monitor, logger)))

	scfg := strategyConfig(cfg)
	p.Evaluator = strategy.NewEvaluator(strategy.DefaultRegistry(scfg), scfg, logger)

	p.Executor = executor.NewExecutor(deps.Exchange, executor.Config{
		OrderTimeout: cfg.Trading.OrderTimeout.Duration,
		DedupTTL:     cfg.Trading.DedupTTL.Duration,
		RateLimit:    cfg.Trading.RateLimit,
		RateWindow:   cfg.Trading.RateWindow.Duration,
		HistorySize:  cfg.Trading.HistorySize,
	}, logger)
	if deps.RateLimiter != nil {
		p.Executor.SetRateLimiter(deps.RateLimiter)
	}
	recorder := deps.Recorder
	p.Executor.Observe(func(ctx context.Context, o domain.Order) {
		if err := recorder.RecordOrder(ctx, o); err != nil {
			logger.WarnContext(ctx, "mirror order failed",
				slog.String("order_id", o.ID),
				slog.String("error", err.Error()),
			)
		}
	})

	p.Markets = service.NewMarketService(deps.Markets, deps.MarketCache, deps.PriceCache, service.MarketConfig{
		Exchange:      deps.Exchange.Name(),
		CacheTTL:      cfg.Market.CacheTTL.Duration,
		MinConfidence: cfg.Market.MinMatchConfidence,
		ListLimit:     cfg.Market.ListLimit,
	}, logger)

	tradeDeps := service.TradeDeps{
		Ledger:    p.Ledger,
		Resolver:  p.Markets,
		Evaluator: p.Evaluator,
		Risk:      p.Risk,
		Executor:  p.Executor,
		Monitor:   p.Monitor,
		Locks:     deps.LockManager,
		Bus:       deps.SignalBus,
		Recorder:  deps.Recorder,
	}
	// A typed nil would defeat the service's optional-collaborator check.
	if deps.Notifier != nil {
		tradeDeps.Notifier = deps.Notifier
	}
	p.Trades = service.NewTradeService(tradeDeps, service.TradeConfig{
		Enabled:      cfg.Trading.Enabled,
		EventLockTTL: cfg.Trading.EventLockTTL.Duration,
	}, logger)

	p.Positions = service.NewPositionService(
		p.Ledger,
		p.Markets,
		deps.PriceCache,
		p.Trades,
		service.ExitPolicy{
			TakeProfitPct: cfg.Risk.TakeProfitPct,
			StopLossPct:   cfg.Risk.StopLossPct,
			MaxHold:       cfg.Trading.MaxHold.Duration,
		},
		cfg.Trading.ExitSweepInterval.Duration,
		logger,
	)
	return p
}

// tripHandler alerts operators and dashboards when the breaker trips.
func tripHandler(deps *Dependencies, monitor *telemetry.Monitor, logger *slog.Logger) func(domain.RiskStatus) {
	return func(status domain.RiskStatus) {
		monitor.ObserveRisk(status)
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if deps.SignalBus != nil {
				if payload, err := encodeSignal("risk.circuit_breaker", status); err == nil {
					_ = deps.SignalBus.Publish(ctx, domain.ChannelRisk, payload)
				}
			}
			if deps.Notifier == nil {
				return
			}
			msg := fmt.Sprintf("%d consecutive errors, last: %s", status.ConsecutiveErrors, status.LastError)
			if err := deps.Notifier.Notify(ctx, service.NotifyCircuitBreaker, "Circuit breaker tripped", msg); err != nil {
				logger.WarnContext(ctx, "breaker alert failed", slog.String("error", err.Error()))
			}
		}()
	}
}

func strategyConfig(cfg *config.Config) strategy.Config {
	out := strategy.Config{
		UnderdogThreshold: cfg.Strategy.UnderdogThreshold,
		MinLiquidity:      cfg.Strategy.MinLiquidity,
		LimitPremium:      cfg.Strategy.LimitPremium,
		ExpectedMove:      cfg.Strategy.ExpectedMove,
		ValueFloor:        cfg.Strategy.ValueFloor,
		Sports:            make(map[domain.Sport]strategy.SportOverride, len(cfg.Strategy.Sports)),
	}
	// Validate has already rejected unknown tags.
	for tag, o := range cfg.Strategy.Sports {
		sport, err := domain.ParseSport(tag)
		if err != nil {
			continue
		}
		out.Sports[sport] = strategy.SportOverride{
			MinPoints:         o.MinPoints,
			MaxPrice:          o.MaxPrice,
			MaxDifferential:   o.MaxDifferential,
			UnderdogThreshold: o.UnderdogThreshold,
		}
	}
	return out
}

// encodeSignal frames a bus payload the way TradeService does.
func encodeSignal(kind string, data any) ([]byte, error) {
	return json.Marshal(struct {
		Type string    `json:"type"`
		At   time.Time `json:"at"`
		Data any       `json:"data"`
	}{Type: kind, At: time.Now().UTC(), Data: data})
}
