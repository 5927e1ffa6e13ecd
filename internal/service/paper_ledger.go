package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/arbdesk/arbdesk/internal/domain"
	"github.com/arbdesk/arbdesk/internal/notify"
)

// Config clamp bounds. Operator input outside these ranges is pulled back to
// the nearest bound, not rejected.
const (
	minAutoThreshold = 0.1
	minTradeSizeUSD  = 1
	maxTradeSizeUSD  = 100
	minTokenLimit    = 10
	maxTokenLimit    = 10000
)

// DefaultPaperConfig is the ledger configuration used until an operator
// changes it.
var DefaultPaperConfig = domain.PaperConfig{
	AutoExecuteThreshold: 2.5,
	MaxTradeSizeUSD:      5,
	MaxTokenLimit:        100,
	AutoTradingEnabled:   false,
}

// ExecuteRequest carries the inputs of a manual or auto-scan execution.
// ProfitPercent is derived from the prices when nil.
type ExecuteRequest struct {
	MarketID      string
	MarketName    string
	YesPrice      float64
	NoPrice       float64
	ProfitPercent *float64
	Strategy      string
}

// PaperLedgerConfig configures the ledger service. Store, Mirror, Bus, and
// Notifier are optional.
type PaperLedgerConfig struct {
	Store    domain.PaperStore
	Mirror   domain.SnapshotMirror
	Bus      domain.SignalBus
	Notifier *notify.Notifier
	Config   domain.PaperConfig
	Logger   *slog.Logger
}

// PaperLedger owns the simulated-trade ledger and its running P&L. Every
// operation is synchronous and total: a trade is either fully appended or
// not at all. Durable writes are best-effort; in-memory state stays
// authoritative for the process lifetime.
type PaperLedger struct {
	store    domain.PaperStore
	mirror   domain.SnapshotMirror
	bus      domain.SignalBus
	notifier *notify.Notifier
	logger   *slog.Logger
	clock    func() time.Time

	mu          sync.Mutex
	trades      []domain.PaperTrade
	totalTrades int
	realized    float64
	cfg         domain.PaperConfig
}

// NewPaperLedger creates an empty ledger. Call Restore before serving to
// warm it from durable storage.
func NewPaperLedger(cfg PaperLedgerConfig) *PaperLedger {
	pc := cfg.Config
	if pc == (domain.PaperConfig{}) {
		pc = DefaultPaperConfig
	}
	return &PaperLedger{
		store:    cfg.Store,
		mirror:   cfg.Mirror,
		bus:      cfg.Bus,
		notifier: cfg.Notifier,
		logger:   cfg.Logger.With(slog.String("component", "paper_ledger")),
		clock:    time.Now,
		cfg:      pc,
	}
}

// Restore loads trades and ledger state from the durable store.
func (l *PaperLedger) Restore(ctx context.Context) {
	if l.store == nil {
		return
	}
	trades, err := l.store.List(ctx)
	if err != nil {
		l.logger.WarnContext(ctx, "restore trades failed, starting empty",
			slog.String("error", err.Error()),
		)
		return
	}
	state, err := l.store.LoadState(ctx)
	if err != nil {
		l.logger.WarnContext(ctx, "restore ledger state failed, using defaults",
			slog.String("error", err.Error()),
		)
		state = domain.LedgerSnapshot{TotalTrades: len(trades), Config: l.cfg}
	}

	l.mu.Lock()
	l.trades = trades
	l.totalTrades = state.TotalTrades
	l.realized = state.RealizedPnL
	if state.Config != (domain.PaperConfig{}) {
		l.cfg = state.Config
	}
	l.mu.Unlock()

	l.logger.InfoContext(ctx, "ledger restored",
		slog.Int("trades", len(trades)),
		slog.Int("total_trades", state.TotalTrades),
	)
}

// Execute opens a simulated both-sides position for a market. It fails with
// ErrConflict when an open trade already exists for the market id; at most
// one open trade per market, always.
func (l *PaperLedger) Execute(ctx context.Context, req ExecuteRequest) (domain.PaperTrade, error) {
	if err := validateExecute(req); err != nil {
		return domain.PaperTrade{}, err
	}

	l.mu.Lock()
	trade, err := l.executeLocked(req)
	l.mu.Unlock()
	if err != nil {
		return domain.PaperTrade{}, err
	}

	l.persistTrade(ctx, trade, true)
	l.publish(ctx, "paper", map[string]any{"event": "trade_opened", "trade": trade})
	l.logger.InfoContext(ctx, "paper trade opened",
		slog.String("trade_id", trade.ID),
		slog.String("market_id", trade.MarketID),
		slog.Float64("profit_percent", trade.ProfitPercent),
	)
	return trade, nil
}

// executeLocked appends a new open trade. The caller must hold l.mu.
func (l *PaperLedger) executeLocked(req ExecuteRequest) (domain.PaperTrade, error) {
	for i := range l.trades {
		if l.trades[i].MarketID == req.MarketID && l.trades[i].IsOpen() {
			return domain.PaperTrade{}, fmt.Errorf("market %s: %w", req.MarketID, domain.ErrConflict)
		}
	}

	sum := req.YesPrice + req.NoPrice
	profitPct := (1 - sum) * 100
	if req.ProfitPercent != nil {
		profitPct = *req.ProfitPercent
	}

	strategy := req.Strategy
	if strategy == "" {
		strategy = "arbitrage"
	}

	stake := l.cfg.MaxTradeSizeUSD
	potential := (1 - sum) * stake

	trade := domain.PaperTrade{
		ID:              uuid.NewString(),
		MarketID:        req.MarketID,
		MarketName:      req.MarketName,
		Strategy:        strategy,
		YesPrice:        req.YesPrice,
		NoPrice:         req.NoPrice,
		ProfitPercent:   round2(profitPct),
		Stake:           stake,
		PotentialProfit: round4(potential),
		ExpectedReturn:  round4(stake + potential),
		Status:          domain.PaperTradeOpen,
		OpenedAt:        l.clock().UTC(),
	}

	l.trades = append(l.trades, trade)
	l.totalTrades++
	return trade, nil
}

// Close settles or closes an open trade, fixing its P&L permanently.
// A "yes" or "no" resolution pays the same amount: both sides were bought at
// open, so the winning side always returns the full payout of 1 per token.
// "cancel" voids the trade at zero. No resolution falls back to the
// originally-estimated potential profit. finalPnL overrides everything.
func (l *PaperLedger) Close(ctx context.Context, tradeID, resolution string, finalPnL *float64) (domain.PaperTrade, error) {
	resolution = strings.ToLower(strings.TrimSpace(resolution))
	switch resolution {
	case "", "unknown", "yes", "no", "cancel":
	default:
		return domain.PaperTrade{}, fmt.Errorf("resolution %q: %w", resolution, domain.ErrValidation)
	}

	l.mu.Lock()
	idx := -1
	for i := range l.trades {
		if l.trades[i].ID == tradeID {
			idx = i
			break
		}
	}
	if idx < 0 {
		l.mu.Unlock()
		return domain.PaperTrade{}, fmt.Errorf("trade %s: %w", tradeID, domain.ErrNotFound)
	}
	if !l.trades[idx].IsOpen() {
		l.mu.Unlock()
		return domain.PaperTrade{}, fmt.Errorf("trade %s is %s: %w", tradeID, l.trades[idx].Status, domain.ErrInvalidState)
	}

	t := &l.trades[idx]

	var pnl float64
	switch {
	case finalPnL != nil:
		pnl = *finalPnL
	case resolution == "yes" || resolution == "no":
		pnl = round4((1 - (t.YesPrice + t.NoPrice)) * t.Stake)
	case resolution == "cancel":
		pnl = 0
	default:
		pnl = t.PotentialProfit
	}

	now := l.clock().UTC()
	t.SimulatedPnL = pnl
	t.ClosedAt = &now
	t.Resolution = resolution
	if resolution == "yes" || resolution == "no" || resolution == "cancel" {
		t.Status = domain.PaperTradeSettled
	} else {
		t.Status = domain.PaperTradeClosed
	}
	l.realized += pnl
	trade := *t
	l.mu.Unlock()

	l.persistTrade(ctx, trade, false)
	l.publish(ctx, "paper", map[string]any{"event": "trade_closed", "trade": trade})
	l.notify(ctx, notify.EventTradeClosed, "Paper trade closed",
		fmt.Sprintf("%s closed with PnL $%.4f", trade.MarketName, pnl))
	l.logger.InfoContext(ctx, "paper trade closed",
		slog.String("trade_id", trade.ID),
		slog.String("status", string(trade.Status)),
		slog.Float64("pnl", pnl),
	)
	return trade, nil
}

// AutoScan walks the candidates in input order, skipping those below the
// configured threshold or already open, and executes the rest through the
// same path as a manual execute. Callers must pre-rank; no additional
// sorting is imposed.
func (l *PaperLedger) AutoScan(ctx context.Context, candidates []domain.ArbOpportunity) (domain.ScanResult, error) {
	l.mu.Lock()
	if !l.cfg.AutoTradingEnabled {
		l.mu.Unlock()
		return domain.ScanResult{}, domain.ErrAutoTradingDisabled
	}
	threshold := l.cfg.AutoExecuteThreshold

	result := domain.ScanResult{
		Trades:      []domain.PaperTrade{},
		SkipReasons: []string{},
	}
	for _, cand := range candidates {
		if cand.ProfitPercent < threshold {
			result.Skipped++
			result.SkipReasons = append(result.SkipReasons,
				fmt.Sprintf("%s: profit %.2f%% below threshold %.2f%%", cand.MarketID, cand.ProfitPercent, threshold))
			continue
		}

		pct := cand.ProfitPercent
		trade, err := l.executeLocked(ExecuteRequest{
			MarketID:      cand.MarketID,
			MarketName:    cand.MarketName,
			YesPrice:      cand.YesPrice,
			NoPrice:       cand.NoPrice,
			ProfitPercent: &pct,
			Strategy:      "auto-arbitrage",
		})
		if err != nil {
			result.Skipped++
			result.SkipReasons = append(result.SkipReasons,
				fmt.Sprintf("%s: trade already open", cand.MarketID))
			continue
		}
		result.Executed++
		result.Trades = append(result.Trades, trade)
	}
	l.mu.Unlock()

	for _, trade := range result.Trades {
		l.persistTrade(ctx, trade, true)
		l.publish(ctx, "paper", map[string]any{"event": "trade_opened", "trade": trade})
		l.notify(ctx, notify.EventTradeExecuted, "Auto-executed paper trade",
			fmt.Sprintf("%s at %.2f%% expected profit", trade.MarketName, trade.ProfitPercent))
	}
	if result.Executed > 0 || result.Skipped > 0 {
		l.logger.InfoContext(ctx, "auto-scan complete",
			slog.Int("executed", result.Executed),
			slog.Int("skipped", result.Skipped),
		)
	}
	return result, nil
}

// Config returns the current paper-trading configuration.
func (l *PaperLedger) Config() domain.PaperConfig {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cfg
}

// UpdateConfig applies a partial update, clamping each field to its sane
// range, and persists the result.
func (l *PaperLedger) UpdateConfig(ctx context.Context, patch domain.PaperConfigPatch) domain.PaperConfig {
	l.mu.Lock()
	if patch.AutoExecuteThreshold != nil {
		l.cfg.AutoExecuteThreshold = math.Max(*patch.AutoExecuteThreshold, minAutoThreshold)
	}
	if patch.MaxTradeSizeUSD != nil {
		l.cfg.MaxTradeSizeUSD = clamp(*patch.MaxTradeSizeUSD, minTradeSizeUSD, maxTradeSizeUSD)
	}
	if patch.MaxTokenLimit != nil {
		l.cfg.MaxTokenLimit = clamp(*patch.MaxTokenLimit, minTokenLimit, maxTokenLimit)
	}
	if patch.AutoTradingEnabled != nil {
		l.cfg.AutoTradingEnabled = *patch.AutoTradingEnabled
	}
	cfg := l.cfg
	l.mu.Unlock()

	l.persistState(ctx)
	l.logger.InfoContext(ctx, "paper config updated",
		slog.Float64("threshold", cfg.AutoExecuteThreshold),
		slog.Float64("max_trade_size", cfg.MaxTradeSizeUSD),
		slog.Bool("auto_trading", cfg.AutoTradingEnabled),
	)
	return cfg
}

// Trades returns trades filtered by status; an empty status returns all.
// The second return value is the cumulative trade counter.
func (l *PaperLedger) Trades(status domain.PaperTradeStatus) ([]domain.PaperTrade, int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]domain.PaperTrade, 0, len(l.trades))
	for _, t := range l.trades {
		if status == "" || t.Status == status {
			out = append(out, t)
		}
	}
	return out, l.totalTrades
}

// PnL recomputes the ledger summary from the trade list. Open trades carry
// no mark-to-market movement; their contribution is zero until close.
func (l *PaperLedger) PnL() domain.PnLSummary {
	l.mu.Lock()
	defer l.mu.Unlock()

	s := domain.PnLSummary{TotalTrades: l.totalTrades}
	for _, t := range l.trades {
		s.TotalInvested += t.Stake
		if t.IsOpen() {
			s.OpenTrades++
			s.UnrealizedPnL += t.SimulatedPnL // always 0 pre-close
			continue
		}
		s.ClosedTrades++
		s.RealizedPnL += t.SimulatedPnL
		if t.SimulatedPnL > 0 {
			s.WinTrades++
		} else if t.SimulatedPnL < 0 {
			s.LossTrades++
		}
	}
	s.TotalPnL = s.RealizedPnL + s.UnrealizedPnL
	if s.ClosedTrades > 0 {
		s.WinRate = round2(float64(s.WinTrades) / float64(s.ClosedTrades) * 100)
	}
	if s.TotalInvested > 0 {
		s.ROI = round2(s.TotalPnL / s.TotalInvested * 100)
	}
	s.RealizedPnL = round4(s.RealizedPnL)
	s.UnrealizedPnL = round4(s.UnrealizedPnL)
	s.TotalPnL = round4(s.TotalPnL)
	return s
}

// persistTrade writes one trade and the ledger state, best-effort.
func (l *PaperLedger) persistTrade(ctx context.Context, trade domain.PaperTrade, created bool) {
	if l.store != nil {
		var err error
		if created {
			err = l.store.Insert(ctx, trade)
		} else {
			err = l.store.Update(ctx, trade)
		}
		if err != nil {
			l.logger.ErrorContext(ctx, "persist trade failed",
				slog.String("trade_id", trade.ID),
				slog.String("error", err.Error()),
			)
		}
	}
	l.persistState(ctx)
}

// persistState writes the ledger counters/config and refreshes the mirror,
// best-effort.
func (l *PaperLedger) persistState(ctx context.Context) {
	l.mu.Lock()
	state := domain.LedgerSnapshot{
		TotalTrades: l.totalTrades,
		RealizedPnL: l.realized,
		Config:      l.cfg,
	}
	trades := append([]domain.PaperTrade(nil), l.trades...)
	l.mu.Unlock()

	if l.store != nil {
		if err := l.store.SaveState(ctx, state); err != nil {
			l.logger.ErrorContext(ctx, "persist ledger state failed",
				slog.String("error", err.Error()),
			)
		}
	}
	if l.mirror != nil {
		if err := l.mirror.SetLedger(ctx, trades, state); err != nil {
			l.logger.WarnContext(ctx, "mirror write-through failed",
				slog.String("error", err.Error()),
			)
		}
	}
}

func (l *PaperLedger) publish(ctx context.Context, channel string, event map[string]any) {
	if l.bus == nil {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	if err := l.bus.Publish(ctx, channel, payload); err != nil {
		l.logger.DebugContext(ctx, "publish failed",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
	}
}

func (l *PaperLedger) notify(ctx context.Context, event, title, message string) {
	if l.notifier == nil {
		return
	}
	if err := l.notifier.Notify(ctx, event, title, message); err != nil {
		l.logger.DebugContext(ctx, "notify failed", slog.String("error", err.Error()))
	}
}

func validateExecute(req ExecuteRequest) error {
	if strings.TrimSpace(req.MarketID) == "" {
		return fmt.Errorf("marketId is required: %w", domain.ErrValidation)
	}
	if req.YesPrice <= 0 || req.YesPrice > 1 || req.NoPrice <= 0 || req.NoPrice > 1 {
		return fmt.Errorf("prices must be in (0,1]: %w", domain.ErrValidation)
	}
	return nil
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
func round4(v float64) float64 { return math.Round(v*10000) / 10000 }
