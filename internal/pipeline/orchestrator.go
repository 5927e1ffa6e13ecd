// Package pipeline schedules the background work: periodic cache refreshes
// chained into auto-scan passes, and cold-storage archival of settled trades.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/arbdesk/arbdesk/internal/domain"
	"github.com/arbdesk/arbdesk/internal/service"
)

// Config holds the orchestrator schedules. Cron expressions use the standard
// 5-field format; an empty expression disables that job.
type Config struct {
	RefreshCron string // e.g. "*/5 * * * *"
	ArchiveCron string // e.g. "0 3 * * *"
	AutoScan    bool   // chain an auto-scan pass after each refresh
}

// Orchestrator drives the opportunity cache and paper ledger on schedules.
// It is the only component that calls both services; they never call each
// other directly.
type Orchestrator struct {
	cache    *service.OpportunityCache
	ledger   *service.PaperLedger
	archiver *Archiver
	cfg      Config
	logger   *slog.Logger
}

// NewOrchestrator creates an Orchestrator. The archiver may be nil when blob
// storage is not configured.
func NewOrchestrator(
	cache *service.OpportunityCache,
	ledger *service.PaperLedger,
	archiver *Archiver,
	cfg Config,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		cache:    cache,
		ledger:   ledger,
		archiver: archiver,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "pipeline")),
	}
}

// Run schedules the jobs and blocks until the context is cancelled.
func (o *Orchestrator) Run(ctx context.Context) error {
	c := cron.New()

	if o.cfg.RefreshCron != "" {
		if _, err := c.AddFunc(o.cfg.RefreshCron, func() { o.refreshTick(ctx) }); err != nil {
			return fmt.Errorf("pipeline: refresh schedule %q: %w", o.cfg.RefreshCron, err)
		}
	}
	if o.cfg.ArchiveCron != "" && o.archiver != nil {
		if _, err := c.AddFunc(o.cfg.ArchiveCron, func() { o.archiveTick(ctx) }); err != nil {
			return fmt.Errorf("pipeline: archive schedule %q: %w", o.cfg.ArchiveCron, err)
		}
	}

	o.logger.Info("pipeline starting",
		slog.String("refresh_cron", o.cfg.RefreshCron),
		slog.String("archive_cron", o.cfg.ArchiveCron),
		slog.Bool("auto_scan", o.cfg.AutoScan),
	)

	c.Start()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-ctx.Done()
		stopCtx := c.Stop()
		// Let in-flight jobs finish before reporting shutdown.
		<-stopCtx.Done()
		return ctx.Err()
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		o.logger.Info("pipeline stopped cleanly")
		return nil
	}
	return err
}

// refreshTick refreshes the cache and, when enabled, runs one auto-scan pass
// over the fresh arbitrage snapshot.
func (o *Orchestrator) refreshTick(ctx context.Context) {
	outcome := o.cache.Refresh(ctx)
	if outcome.Status == domain.RefreshStatusAlreadyFetching {
		o.logger.Debug("refresh tick skipped, fetch already running")
		return
	}

	o.logger.Info("scheduled refresh complete",
		slog.Int("arbitrage", outcome.ArbitrageCount),
		slog.Int("income", outcome.IncomeCount),
	)

	if !o.cfg.AutoScan || outcome.ArbitrageCount == 0 {
		return
	}

	candidates, _ := o.cache.Arbitrage(ctx)
	result, err := o.ledger.AutoScan(ctx, candidates)
	if err != nil {
		if errors.Is(err, domain.ErrAutoTradingDisabled) {
			return
		}
		o.logger.Error("scheduled auto-scan failed", slog.String("error", err.Error()))
		return
	}
	if result.Executed > 0 {
		o.logger.Info("scheduled auto-scan executed trades",
			slog.Int("executed", result.Executed),
			slog.Int("skipped", result.Skipped),
		)
	}
}

// archiveTick runs one archive pass: aged trades first, then the current
// opportunity snapshot as the day's history record.
func (o *Orchestrator) archiveTick(ctx context.Context) {
	if err := o.archiver.Run(ctx); err != nil {
		o.logger.Error("archive run failed", slog.String("error", err.Error()))
	}
	if err := o.archiver.ArchiveSnapshot(ctx, o.cache.Snapshot()); err != nil {
		o.logger.Error("snapshot archive failed", slog.String("error", err.Error()))
	}
}
