package app

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/arbdesk/arbdesk/internal/detector"
	"github.com/arbdesk/arbdesk/internal/domain"
	"github.com/arbdesk/arbdesk/internal/pipeline"
	"github.com/arbdesk/arbdesk/internal/platform/defillama"
	"github.com/arbdesk/arbdesk/internal/platform/polymarket"
	"github.com/arbdesk/arbdesk/internal/server"
	"github.com/arbdesk/arbdesk/internal/server/handler"
	"github.com/arbdesk/arbdesk/internal/server/ws"
	"github.com/arbdesk/arbdesk/internal/service"
)

// services holds the two core domain services shared by every mode.
type services struct {
	cache  *service.OpportunityCache
	ledger *service.PaperLedger
}

// buildServices constructs the opportunity cache and paper ledger and warms
// both from the durable store when one is wired.
func (a *App) buildServices(ctx context.Context, deps *Dependencies) *services {
	gamma := polymarket.NewGammaClient(
		a.cfg.Polymarket.GammaHost,
		a.cfg.Polymarket.PageSize,
		a.logger,
	)

	var income service.IncomeFeed
	if a.cfg.Yields.Enabled {
		income = defillama.New(a.cfg.Yields.BaseURL, a.cfg.Yields.MinTVL, a.cfg.Yields.Limit)
	}

	cache := service.NewOpportunityCache(service.OpportunityCacheConfig{
		Feed:     gamma,
		Income:   income,
		Detector: detector.New(a.cfg.Cache.Epsilon),
		Store:    deps.OpportunityStore,
		Mirror:   deps.Mirror,
		Bus:      deps.SignalBus,
		Notifier: deps.Notifier,
		TTL:      a.cfg.Cache.TTL.Duration,
		Logger:   a.logger,
	})

	ledger := service.NewPaperLedger(service.PaperLedgerConfig{
		Store:    deps.PaperStore,
		Mirror:   deps.Mirror,
		Bus:      deps.SignalBus,
		Notifier: deps.Notifier,
		Config: domain.PaperConfig{
			AutoExecuteThreshold: a.cfg.Paper.AutoExecuteThreshold,
			MaxTradeSizeUSD:      a.cfg.Paper.MaxTradeSizeUSD,
			MaxTokenLimit:        a.cfg.Paper.MaxTokenLimit,
			AutoTradingEnabled:   a.cfg.Paper.AutoTradingEnabled,
		},
		Logger: a.logger,
	})

	cache.Restore(ctx)
	ledger.Restore(ctx)

	return &services{cache: cache, ledger: ledger}
}

// ServerMode runs the HTTP + WebSocket API only. Cache refreshes happen
// lazily on stale reads or explicit POST /api/refresh.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)

	svcs := a.buildServices(ctx, deps)
	a.startHTTPServer(ctx, g, deps, svcs)

	return g.Wait()
}

// MonitorMode runs the background pipeline only: scheduled refreshes,
// optional auto-scans, and archival. No HTTP surface.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting monitor mode")

	g, ctx := errgroup.WithContext(ctx)

	svcs := a.buildServices(ctx, deps)
	a.startPipeline(ctx, g, deps, svcs)

	return g.Wait()
}

// FullMode runs both the API server and the background pipeline.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)

	svcs := a.buildServices(ctx, deps)
	a.startHTTPServer(ctx, g, deps, svcs)
	a.startPipeline(ctx, g, deps, svcs)

	return g.Wait()
}

func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, svcs *services) {
	if !a.cfg.Server.Enabled {
		a.logger.WarnContext(ctx, "server.enabled is false, skipping HTTP server")
		return
	}

	hub := ws.NewHub(deps.SignalBus, a.logger, ws.Config{
		Mode:      a.cfg.Mode,
		StartedAt: time.Now().UTC(),
	})
	g.Go(func() error {
		return hub.Run(ctx)
	})

	health := handler.NewHealthHandler(a.logger)
	for name, check := range deps.HealthChecks {
		health = health.WithCheck(name, check)
	}

	srv := server.NewServer(
		server.Config{
			Port:            a.cfg.Server.Port,
			CORSOrigins:     a.cfg.Server.CORSOrigins,
			APIKey:          a.cfg.Server.APIKey,
			RateLimit:       a.cfg.Server.RateLimit,
			RateLimitWindow: a.cfg.Server.RateLimitWindow.Duration,
		},
		server.Handlers{
			Health:        health,
			Opportunities: handler.NewOpportunityHandler(svcs.cache, a.logger),
			Paper:         handler.NewPaperHandler(svcs.ledger, svcs.cache, a.logger),
		},
		hub,
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

func (a *App) startPipeline(ctx context.Context, g *errgroup.Group, deps *Dependencies, svcs *services) {
	if !a.cfg.Pipeline.Enabled {
		a.logger.WarnContext(ctx, "pipeline.enabled is false, skipping background schedules")
		return
	}

	var archiver *pipeline.Archiver
	if deps.Archiver != nil {
		archiver = pipeline.NewArchiver(deps.Archiver, a.cfg.Pipeline.ArchiveRetentionDays, a.logger)
	} else {
		a.logger.InfoContext(ctx, "archival disabled",
			slog.Bool("s3_enabled", a.cfg.S3.Enabled),
			slog.Bool("supabase_enabled", a.cfg.Supabase.Enabled),
		)
	}

	orch := pipeline.NewOrchestrator(svcs.cache, svcs.ledger, archiver,
		pipeline.Config{
			RefreshCron: a.cfg.Pipeline.RefreshCron,
			ArchiveCron: a.cfg.Pipeline.ArchiveCron,
			AutoScan:    a.cfg.Pipeline.AutoScan,
		},
		a.logger,
	)
	g.Go(func() error {
		return orch.Run(ctx)
	})
}
