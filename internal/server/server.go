// Package server assembles the HTTP + WebSocket API.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/arbdesk/arbdesk/internal/domain"
	"github.com/arbdesk/arbdesk/internal/server/handler"
	"github.com/arbdesk/arbdesk/internal/server/middleware"
	"github.com/arbdesk/arbdesk/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port            int
	CORSOrigins     []string
	APIKey          string // if empty, authentication is disabled
	RateLimit       int    // requests per window per client IP; 0 disables
	RateLimitWindow time.Duration
}

// Handlers aggregates the HTTP handlers the server registers.
type Handlers struct {
	Health        *handler.HealthHandler
	Opportunities *handler.OpportunityHandler
	Paper         *handler.PaperHandler
}

// Server is the headless HTTP + WebSocket API server.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer registers all routes and builds the middleware chain. The rate
// limiter is optional; pass nil to disable it.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health check (never authenticated).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Opportunity cache endpoints.
	mux.HandleFunc("GET /api/arbitrage", handlers.Opportunities.ListArbitrage)
	mux.HandleFunc("GET /api/income", handlers.Opportunities.ListIncome)
	mux.HandleFunc("POST /api/refresh", handlers.Opportunities.Refresh)
	mux.HandleFunc("GET /api/status", handlers.Opportunities.Status)

	// Paper-trading endpoints.
	mux.HandleFunc("GET /api/paper/trades", handlers.Paper.ListTrades)
	mux.HandleFunc("GET /api/paper/pnl", handlers.Paper.GetPnL)
	mux.HandleFunc("POST /api/paper/execute", handlers.Paper.ExecuteTrade)
	mux.HandleFunc("POST /api/paper/close/{id}", handlers.Paper.CloseTrade)
	mux.HandleFunc("GET /api/paper/config", handlers.Paper.GetConfig)
	mux.HandleFunc("POST /api/paper/config", handlers.Paper.UpdateConfig)
	mux.HandleFunc("POST /api/paper/auto-scan", handlers.Paper.AutoScan)

	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Middleware chain, innermost first.
	var h http.Handler = mux
	h = middleware.Auth(cfg.APIKey)(h)
	if limiter != nil && cfg.RateLimit > 0 {
		window := cfg.RateLimitWindow
		if window <= 0 {
			window = time.Minute
		}
		h = middleware.RateLimit(limiter, cfg.RateLimit, window)(h)
	}
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
