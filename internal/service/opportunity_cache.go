// Package service holds the two singleton stateful services: the opportunity
// cache and the paper-trading ledger. Each owns its state behind a mutex and
// processes one logical operation at a time; the two are mutually
// independent and coordinate only through the pipeline orchestrator.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/arbdesk/arbdesk/internal/detector"
	"github.com/arbdesk/arbdesk/internal/domain"
	"github.com/arbdesk/arbdesk/internal/notify"
)

// DefaultCacheTTL bounds snapshot freshness; reads past this age trigger a
// refresh before returning.
const DefaultCacheTTL = 5 * time.Minute

// MarketFeed is the upstream price-feed adapter. One refresh performs
// exactly one FetchSnapshot call.
type MarketFeed interface {
	FetchSnapshot(ctx context.Context) (domain.MarketSnapshot, error)
}

// IncomeFeed supplies the low-churn income list. It may be nil, in which
// case the income snapshot stays empty.
type IncomeFeed interface {
	FetchIncome(ctx context.Context) ([]domain.IncomeOpportunity, error)
}

// OpportunityCacheConfig configures the cache service. Store, Mirror, and
// Bus are optional; nil disables the corresponding side effect.
type OpportunityCacheConfig struct {
	Feed     MarketFeed
	Income   IncomeFeed
	Detector *detector.Detector
	Store    domain.OpportunityStore
	Mirror   domain.SnapshotMirror
	Bus      domain.SignalBus
	Notifier *notify.Notifier
	TTL      time.Duration
	Logger   *slog.Logger
}

// OpportunityCache owns the canonical opportunity snapshot. State is mutated
// only by refresh and is replaced wholesale, never merged. The read path
// always returns something, preferring staleness over unavailability.
type OpportunityCache struct {
	feed     MarketFeed
	income   IncomeFeed
	det      *detector.Detector
	store    domain.OpportunityStore
	mirror   domain.SnapshotMirror
	bus      domain.SignalBus
	notifier *notify.Notifier
	ttl      time.Duration
	logger   *slog.Logger

	group singleflight.Group
	clock func() time.Time

	mu        sync.Mutex
	arbs      []domain.ArbOpportunity
	incomeOps []domain.IncomeOpportunity
	lastFetch time.Time
	fetching  bool
}

// NewOpportunityCache creates the cache service with an empty snapshot. Call
// Restore before serving reads to warm it from durable storage.
func NewOpportunityCache(cfg OpportunityCacheConfig) *OpportunityCache {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	c := &OpportunityCache{
		feed:     cfg.Feed,
		income:   cfg.Income,
		det:      cfg.Detector,
		store:    cfg.Store,
		mirror:   cfg.Mirror,
		bus:      cfg.Bus,
		notifier: cfg.Notifier,
		ttl:      ttl,
		logger:   cfg.Logger.With(slog.String("component", "opportunity_cache")),
		clock:    time.Now,
	}
	return c
}

// Restore loads the last persisted snapshot, defaulting to empty when the
// store has nothing or is unavailable.
func (c *OpportunityCache) Restore(ctx context.Context) {
	if c.store == nil {
		return
	}
	snap, err := c.store.Load(ctx)
	if err != nil {
		c.logger.WarnContext(ctx, "restore from store failed, starting empty",
			slog.String("error", err.Error()),
		)
		return
	}
	c.mu.Lock()
	c.arbs = snap.Arbitrage
	c.incomeOps = snap.Income
	c.lastFetch = snap.FetchedAt
	c.mu.Unlock()
	c.logger.InfoContext(ctx, "cache restored",
		slog.Int("arbitrage", len(snap.Arbitrage)),
		slog.Int("income", len(snap.Income)),
		slog.Time("fetched_at", snap.FetchedAt),
	)
}

// Arbitrage returns the arbitrage snapshot, refreshing first when stale.
// Concurrent stale reads collapse into a single upstream fetch; a read that
// arrives while a refresh is already marked in-flight serves the stale
// snapshot immediately rather than queueing.
func (c *OpportunityCache) Arbitrage(ctx context.Context) ([]domain.ArbOpportunity, time.Time) {
	c.refreshIfStale(ctx)
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.ArbOpportunity, len(c.arbs))
	copy(out, c.arbs)
	return out, c.lastFetch
}

// Income returns the income snapshot under the same staleness rules as
// Arbitrage.
func (c *OpportunityCache) Income(ctx context.Context) ([]domain.IncomeOpportunity, time.Time) {
	c.refreshIfStale(ctx)
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.IncomeOpportunity, len(c.incomeOps))
	copy(out, c.incomeOps)
	return out, c.lastFetch
}

// Refresh forces a refresh unless one is already in flight, in which case it
// reports already_fetching without touching the snapshot.
func (c *OpportunityCache) Refresh(ctx context.Context) domain.RefreshOutcome {
	c.mu.Lock()
	if c.fetching {
		out := domain.RefreshOutcome{
			Status:         domain.RefreshStatusAlreadyFetching,
			ArbitrageCount: len(c.arbs),
			IncomeCount:    len(c.incomeOps),
			CachedAt:       c.lastFetch,
		}
		c.mu.Unlock()
		return out
	}
	c.mu.Unlock()

	c.doRefresh(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	return domain.RefreshOutcome{
		Status:         domain.RefreshStatusRefreshed,
		ArbitrageCount: len(c.arbs),
		IncomeCount:    len(c.incomeOps),
		CachedAt:       c.lastFetch,
	}
}

// Status reports the cache state for the dashboard.
func (c *OpportunityCache) Status() domain.CacheStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return domain.CacheStatus{
		IsFetching:     c.fetching,
		LastFetchAt:    c.lastFetch,
		CacheStale:     c.staleLocked(),
		ArbitrageCount: len(c.arbs),
		IncomeCount:    len(c.incomeOps),
	}
}

// Snapshot copies the current in-memory state without triggering a refresh.
func (c *OpportunityCache) Snapshot() domain.OpportunitySnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return domain.OpportunitySnapshot{
		Arbitrage: append([]domain.ArbOpportunity(nil), c.arbs...),
		Income:    append([]domain.IncomeOpportunity(nil), c.incomeOps...),
		FetchedAt: c.lastFetch,
	}
}

// staleLocked must be called with the lock held.
func (c *OpportunityCache) staleLocked() bool {
	return c.clock().Sub(c.lastFetch) > c.ttl
}

// refreshIfStale triggers a synchronous refresh when the snapshot is stale
// and no refresh is running. The singleflight group collapses concurrent
// stale readers into one fetch; each collapsed caller waits for the shared
// result so it returns fresh data.
func (c *OpportunityCache) refreshIfStale(ctx context.Context) {
	c.mu.Lock()
	stale := c.staleLocked()
	fetching := c.fetching
	c.mu.Unlock()

	if !stale || fetching {
		return
	}

	// The error is deliberately discarded: a failed refresh leaves the
	// previous snapshot in place and the read serves stale.
	c.group.Do("refresh", func() (any, error) {
		c.doRefresh(ctx)
		return nil, nil
	})
}

// doRefresh runs one complete refresh attempt: one upstream fetch, detection,
// snapshot replacement on success, and a best-effort persist + write-through
// regardless of outcome. It never cancels midway.
func (c *OpportunityCache) doRefresh(ctx context.Context) {
	c.mu.Lock()
	if c.fetching {
		c.mu.Unlock()
		return
	}
	c.fetching = true
	c.mu.Unlock()

	defer func() {
		c.persist(ctx)
		c.mu.Lock()
		c.fetching = false
		c.mu.Unlock()
	}()

	started := c.clock()
	snap, err := c.feed.FetchSnapshot(ctx)
	if err != nil {
		// Serve stale: keep the previous snapshot, skip the timestamp so
		// the next read retries.
		c.logger.WarnContext(ctx, "upstream fetch failed, serving stale snapshot",
			slog.String("error", err.Error()),
		)
		c.publish(ctx, "status", map[string]any{"event": "refresh_failed", "error": err.Error()})
		if c.notifier != nil {
			_ = c.notifier.Notify(ctx, notify.EventRefreshFailed,
				"Opportunity refresh failed", err.Error())
		}
		return
	}

	arbs := c.det.Detect(snap, started)

	var income []domain.IncomeOpportunity
	incomeOK := false
	if c.income != nil {
		income, err = c.income.FetchIncome(ctx)
		if err != nil {
			c.logger.WarnContext(ctx, "income fetch failed, keeping previous list",
				slog.String("error", err.Error()),
			)
		} else {
			incomeOK = true
		}
	}

	c.mu.Lock()
	hadArbs := len(c.arbs) > 0
	c.arbs = arbs
	if incomeOK {
		c.incomeOps = income
	}
	c.lastFetch = started
	c.mu.Unlock()

	if len(arbs) > 0 && !hadArbs && c.notifier != nil {
		_ = c.notifier.Notify(ctx, notify.EventArbDetected,
			"Arbitrage detected",
			fmt.Sprintf("%d opportunity(s) in the latest snapshot, best %.2f%%", len(arbs), arbs[0].ProfitPercent))
	}

	c.logger.InfoContext(ctx, "cache refreshed",
		slog.Int("markets", len(snap.Markets)),
		slog.Int("groups", len(snap.Groups)),
		slog.Int("arbitrage", len(arbs)),
		slog.Duration("took", c.clock().Sub(started)),
	)
	c.publish(ctx, "arb", map[string]any{"event": "refreshed", "count": len(arbs)})
}

// persist writes the current snapshot to the durable store and the mirror.
// Both writes are best-effort: a failure is logged and never aborts the
// in-memory update.
func (c *OpportunityCache) persist(ctx context.Context) {
	c.mu.Lock()
	snap := domain.OpportunitySnapshot{
		Arbitrage: append([]domain.ArbOpportunity(nil), c.arbs...),
		Income:    append([]domain.IncomeOpportunity(nil), c.incomeOps...),
		FetchedAt: c.lastFetch,
	}
	c.mu.Unlock()

	if c.store != nil {
		if err := c.store.ReplaceAll(ctx, snap); err != nil {
			c.logger.ErrorContext(ctx, "persist snapshot failed",
				slog.String("error", err.Error()),
			)
		}
	}
	if c.mirror != nil {
		if err := c.mirror.SetOpportunities(ctx, snap); err != nil {
			c.logger.WarnContext(ctx, "mirror write-through failed",
				slog.String("error", err.Error()),
			)
		}
	}
}

// publish pushes a JSON event to the signal bus when one is wired.
func (c *OpportunityCache) publish(ctx context.Context, channel string, event map[string]any) {
	if c.bus == nil {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	if err := c.bus.Publish(ctx, channel, payload); err != nil {
		c.logger.DebugContext(ctx, "publish failed",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
	}
}
