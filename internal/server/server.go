// Package server exposes the trading pipeline over HTTP and WebSocket.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/scoretrader/internal/domain"
	"github.com/alanyoungcy/scoretrader/internal/server/handler"
	"github.com/alanyoungcy/scoretrader/internal/server/middleware"
	"github.com/alanyoungcy/scoretrader/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // empty disables authentication

	// RateLimit caps requests per client IP per RateWindow. It applies only
	// when a limiter is supplied; 0 disables it.
	RateLimit  int
	RateWindow time.Duration
}

// Handlers aggregates the HTTP handlers the server registers.
type Handlers struct {
	Health    *handler.HealthHandler
	Status    *handler.StatusHandler
	Risk      *handler.RiskHandler
	Positions *handler.PositionHandler
	Orders    *handler.OrderHandler
	History   *handler.HistoryHandler
}

// Instrumentation serves Prometheus metrics and measures requests.
type Instrumentation interface {
	Handler() http.Handler
	Middleware(next http.Handler) http.Handler
}

// Server is the headless API server.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	logger     *slog.Logger
}

// NewServer registers every route and builds the middleware chain:
// logging, CORS, auth, rate limit, then request metrics. hub, metrics and
// limiter may be nil.
func NewServer(cfg Config, h Handlers, hub *ws.Hub, metrics Instrumentation, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	logger = logger.With(slog.String("component", "server"))
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", h.Health.HealthCheck)
	mux.HandleFunc("GET /api/status", h.Status.GetStatus)
	mux.HandleFunc("GET /api/metrics", h.Status.GetMetrics)
	mux.HandleFunc("POST /api/trading/enable", h.Status.EnableTrading)
	mux.HandleFunc("POST /api/trading/disable", h.Status.DisableTrading)

	mux.HandleFunc("GET /api/risk", h.Risk.GetRisk)
	mux.HandleFunc("POST /api/risk/reset", h.Risk.ResetBreaker)

	mux.HandleFunc("GET /api/positions", h.Positions.ListPositions)
	mux.HandleFunc("POST /api/positions/{id}/close", h.Positions.ClosePosition)

	mux.HandleFunc("GET /api/orders", h.Orders.ListOrders)
	mux.HandleFunc("DELETE /api/orders/{id}", h.Orders.CancelOrder)

	mux.HandleFunc("GET /api/trades", h.History.ListTrades)
	mux.HandleFunc("GET /api/events", h.History.ListEvents)
	mux.HandleFunc("POST /api/events", h.History.InjectEvent)

	if metrics != nil {
		mux.Handle("GET /metrics", metrics.Handler())
	}
	if hub != nil {
		mux.HandleFunc("GET /ws", hub.HandleWS)
	}

	// Wrapped innermost first.
	var root http.Handler = mux
	if metrics != nil {
		root = metrics.Middleware(root)
	}
	if limiter != nil && cfg.RateLimit > 0 {
		root = middleware.RateLimit(limiter, cfg.RateLimit, cfg.RateWindow)(root)
	}
	root = middleware.Auth(cfg.APIKey)(root)
	root = middleware.CORS(cfg.CORSOrigins)(root)
	root = middleware.Logging(logger)(root)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      root,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		handler: root,
		logger:  logger,
	}
}

// Handler returns the fully wrapped root handler.
func (s *Server) Handler() http.Handler { return s.handler }

// Start listens until the server fails or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown waits for in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
