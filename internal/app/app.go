// Package app owns the process lifecycle: dependency wiring, mode dispatch,
// and teardown ordering.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/arbdesk/arbdesk/internal/config"
)

// App is the root object handed to main. Cleanup functions accumulate as
// wiring progresses and run in reverse on Close, so a partial wire still
// tears down whatever it managed to open.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New builds an App around a validated configuration.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run wires dependencies and blocks in the configured mode until the context
// is cancelled. Modes: "server" serves the HTTP API, "monitor" runs only the
// background pipeline, "full" runs both.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting",
		slog.String("mode", a.cfg.Mode),
		slog.String("log_level", a.cfg.LogLevel),
	)

	deps, cleanup, err := Wire(ctx, a.cfg)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	switch strings.ToLower(a.cfg.Mode) {
	case "server":
		return a.ServerMode(ctx, deps)
	case "monitor":
		return a.MonitorMode(ctx, deps)
	case "full":
		return a.FullMode(ctx, deps)
	}
	return fmt.Errorf("app: unsupported mode %q", a.cfg.Mode)
}

// Close releases resources in reverse registration order. Calling it more
// than once is a no-op.
func (a *App) Close() {
	if len(a.closers) == 0 {
		return
	}
	a.logger.Info("shutting down")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
