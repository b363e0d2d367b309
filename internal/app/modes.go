package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/scoretrader/internal/server"
	"github.com/alanyoungcy/scoretrader/internal/server/handler"
	"github.com/alanyoungcy/scoretrader/internal/server/ws"
)

// TradeMode runs the per-sport pollers, the exit sweeper, the executor's
// reconcile loop, the scheduler and the API. PaperMode is the same loop set
// with a simulated exchange injected by Wire.
func (a *App) TradeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting trading loops",
		slog.String("mode", a.cfg.Mode),
		slog.String("exchange", deps.Exchange.Name()),
		slog.Bool("trading_enabled", a.cfg.Trading.Enabled),
	)

	p := BuildPipeline(a.cfg, deps, a.logger)
	g, ctx := errgroup.WithContext(ctx)

	for _, provider := range deps.Providers {
		poller := NewPoller(provider, p.Trades, p.Ledger, a.cfg.Trading.PollInterval.Duration, a.logger)
		g.Go(func() error { return poller.Run(ctx) })
	}
	g.Go(func() error { return p.Positions.Run(ctx) })
	g.Go(func() error { return p.Executor.Run(ctx) })

	sched, err := a.newScheduler(deps, p)
	if err != nil {
		return err
	}
	g.Go(func() error { return sched.Run(ctx) })

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps, p)
	}
	return g.Wait()
}

// ServerMode serves the API over an idle pipeline: manual injection and
// closes work, nothing polls.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	p := BuildPipeline(a.cfg, deps, a.logger)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return p.Executor.Run(ctx) })
	a.startHTTPServer(ctx, g, deps, p)
	return g.Wait()
}

// ReportMode prints tables from the mirror and exits.
func (a *App) ReportMode(ctx context.Context, deps *Dependencies) error {
	if deps.History == nil {
		return fmt.Errorf("app: report: no mirror enabled")
	}
	return WriteReport(ctx, os.Stdout, deps.History)
}

func (a *App) newScheduler(deps *Dependencies, p *Pipeline) (*Scheduler, error) {
	sched := NewScheduler(a.logger)
	if err := sched.AddJob(a.cfg.Schedule.SnapshotCron, &SnapshotJob{Source: p.Trades, Recorder: deps.Recorder}); err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	if deps.Archiver != nil {
		job := &ArchiveJob{Archiver: deps.Archiver, Logger: a.logger}
		if err := sched.AddJob(a.cfg.Schedule.ArchiveCron, job); err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}
	}
	return sched, nil
}

// startHTTPServer adds the API server, its WebSocket hub and the shutdown
// watcher to g.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, p *Pipeline) {
	hub := ws.NewHub(deps.SignalBus, func() any { return p.Trades.Status() }, p.Monitor.SetWSClients, a.logger)
	g.Go(func() error { return hub.Run(ctx) })

	srv := server.NewServer(
		server.Config{
			Port:        a.cfg.Server.Port,
			CORSOrigins: a.cfg.Server.CORSOrigins,
			APIKey:      a.cfg.Server.APIKey,
			RateLimit:   a.cfg.Server.RateLimit,
			RateWindow:  a.cfg.Server.RateWindow.Duration,
		},
		server.Handlers{
			Health:    handler.NewHealthHandler(p.Monitor, a.cfg.Risk.MaxLatencyMs),
			Status:    handler.NewStatusHandler(p.Trades, a.cfg.Mode, a.logger),
			Risk:      handler.NewRiskHandler(p.Risk, a.logger),
			Positions: handler.NewPositionHandler(p.Ledger, p.Positions, a.logger),
			Orders:    handler.NewOrderHandler(p.Executor, a.logger),
			History:   handler.NewHistoryHandler(p.Ledger, deps.History, p.Trades, a.logger),
		},
		hub,
		p.Monitor,
		deps.RateLimiter,
		a.logger,
	)

	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}
