package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arbdesk/arbdesk/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestLedger(t *testing.T, cfg domain.PaperConfig) *PaperLedger {
	t.Helper()
	l := NewPaperLedger(PaperLedgerConfig{Config: cfg, Logger: testLogger()})
	l.clock = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	return l
}

func TestExecuteOpensTrade(t *testing.T) {
	l := newTestLedger(t, domain.PaperConfig{
		AutoExecuteThreshold: 2.5,
		MaxTradeSizeUSD:      5,
		MaxTokenLimit:        100,
	})

	trade, err := l.Execute(context.Background(), ExecuteRequest{
		MarketID:   "m1",
		MarketName: "Will it rain?",
		YesPrice:   0.45,
		NoPrice:    0.50,
	})
	require.NoError(t, err)

	assert.NotEmpty(t, trade.ID)
	assert.Equal(t, domain.PaperTradeOpen, trade.Status)
	assert.Equal(t, "arbitrage", trade.Strategy)
	assert.InDelta(t, 5.0, trade.ProfitPercent, 1e-9)
	assert.InDelta(t, 5.0, trade.Stake, 1e-9)
	assert.InDelta(t, 0.25, trade.PotentialProfit, 1e-9)
	assert.InDelta(t, 5.25, trade.ExpectedReturn, 1e-9)
	assert.Nil(t, trade.ClosedAt)
}

func TestExecuteRejectsDuplicateOpenMarket(t *testing.T) {
	l := newTestLedger(t, DefaultPaperConfig)
	ctx := context.Background()

	_, err := l.Execute(ctx, ExecuteRequest{MarketID: "m1", YesPrice: 0.45, NoPrice: 0.50})
	require.NoError(t, err)

	_, err = l.Execute(ctx, ExecuteRequest{MarketID: "m1", YesPrice: 0.44, NoPrice: 0.51})
	assert.ErrorIs(t, err, domain.ErrConflict)

	// A different market is unaffected.
	_, err = l.Execute(ctx, ExecuteRequest{MarketID: "m2", YesPrice: 0.45, NoPrice: 0.50})
	assert.NoError(t, err)
}

func TestExecuteAllowedAfterClose(t *testing.T) {
	l := newTestLedger(t, DefaultPaperConfig)
	ctx := context.Background()

	trade, err := l.Execute(ctx, ExecuteRequest{MarketID: "m1", YesPrice: 0.45, NoPrice: 0.50})
	require.NoError(t, err)
	_, err = l.Close(ctx, trade.ID, "yes", nil)
	require.NoError(t, err)

	_, err = l.Execute(ctx, ExecuteRequest{MarketID: "m1", YesPrice: 0.46, NoPrice: 0.49})
	assert.NoError(t, err)
}

func TestExecuteValidation(t *testing.T) {
	l := newTestLedger(t, DefaultPaperConfig)
	ctx := context.Background()

	_, err := l.Execute(ctx, ExecuteRequest{YesPrice: 0.45, NoPrice: 0.50})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = l.Execute(ctx, ExecuteRequest{MarketID: "m1", YesPrice: 0, NoPrice: 0.50})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = l.Execute(ctx, ExecuteRequest{MarketID: "m1", YesPrice: 0.45, NoPrice: 1.2})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestCloseWithResolution(t *testing.T) {
	cases := []struct {
		name       string
		resolution string
		finalPnL   *float64
		wantPnL    float64
		wantStatus domain.PaperTradeStatus
	}{
		{name: "yes pays spread", resolution: "yes", wantPnL: 0.25, wantStatus: domain.PaperTradeSettled},
		{name: "no pays same as yes", resolution: "no", wantPnL: 0.25, wantStatus: domain.PaperTradeSettled},
		{name: "cancel voids", resolution: "cancel", wantPnL: 0, wantStatus: domain.PaperTradeSettled},
		{name: "unknown keeps estimate", resolution: "unknown", wantPnL: 0.25, wantStatus: domain.PaperTradeClosed},
		{name: "no resolution keeps estimate", resolution: "", wantPnL: 0.25, wantStatus: domain.PaperTradeClosed},
		{name: "explicit pnl wins", resolution: "yes", finalPnL: ptr(-1.5), wantPnL: -1.5, wantStatus: domain.PaperTradeSettled},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			l := newTestLedger(t, domain.PaperConfig{MaxTradeSizeUSD: 5, MaxTokenLimit: 100, AutoExecuteThreshold: 2.5})
			ctx := context.Background()

			trade, err := l.Execute(ctx, ExecuteRequest{MarketID: "m1", YesPrice: 0.45, NoPrice: 0.50})
			require.NoError(t, err)

			closed, err := l.Close(ctx, trade.ID, tc.resolution, tc.finalPnL)
			require.NoError(t, err)
			assert.Equal(t, tc.wantStatus, closed.Status)
			assert.InDelta(t, tc.wantPnL, closed.SimulatedPnL, 1e-9)
			require.NotNil(t, closed.ClosedAt)
		})
	}
}

func TestCloseErrors(t *testing.T) {
	l := newTestLedger(t, DefaultPaperConfig)
	ctx := context.Background()

	_, err := l.Close(ctx, "missing", "yes", nil)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	trade, err := l.Execute(ctx, ExecuteRequest{MarketID: "m1", YesPrice: 0.45, NoPrice: 0.50})
	require.NoError(t, err)

	_, err = l.Close(ctx, trade.ID, "refund", nil)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = l.Close(ctx, trade.ID, "yes", nil)
	require.NoError(t, err)

	// Second close of the same trade must fail and leave the P&L untouched.
	before := l.PnL()
	_, err = l.Close(ctx, trade.ID, "no", nil)
	assert.ErrorIs(t, err, domain.ErrInvalidState)
	assert.Equal(t, before, l.PnL())
}

func TestAutoScan(t *testing.T) {
	l := newTestLedger(t, domain.PaperConfig{
		AutoExecuteThreshold: 2.5,
		MaxTradeSizeUSD:      5,
		MaxTokenLimit:        100,
		AutoTradingEnabled:   true,
	})
	ctx := context.Background()

	// m3 is already open, so the scan must skip it.
	_, err := l.Execute(ctx, ExecuteRequest{MarketID: "m3", YesPrice: 0.40, NoPrice: 0.55})
	require.NoError(t, err)

	result, err := l.AutoScan(ctx, []domain.ArbOpportunity{
		{MarketID: "m1", MarketName: "A", YesPrice: 0.45, NoPrice: 0.50, ProfitPercent: 5.0},
		{MarketID: "m2", MarketName: "B", YesPrice: 0.49, NoPrice: 0.50, ProfitPercent: 1.0},
		{MarketID: "m3", MarketName: "C", YesPrice: 0.40, NoPrice: 0.55, ProfitPercent: 5.0},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Executed)
	assert.Equal(t, 2, result.Skipped)
	require.Len(t, result.Trades, 1)
	assert.Equal(t, "m1", result.Trades[0].MarketID)
	assert.Equal(t, "auto-arbitrage", result.Trades[0].Strategy)
	assert.Len(t, result.SkipReasons, 2)
}

func TestAutoScanDisabled(t *testing.T) {
	l := newTestLedger(t, domain.PaperConfig{AutoExecuteThreshold: 2.5, MaxTradeSizeUSD: 5, MaxTokenLimit: 100})

	_, err := l.AutoScan(context.Background(), []domain.ArbOpportunity{
		{MarketID: "m1", YesPrice: 0.45, NoPrice: 0.50, ProfitPercent: 5.0},
	})
	assert.True(t, errors.Is(err, domain.ErrAutoTradingDisabled))
}

func TestUpdateConfigClamps(t *testing.T) {
	l := newTestLedger(t, DefaultPaperConfig)
	ctx := context.Background()

	cfg := l.UpdateConfig(ctx, domain.PaperConfigPatch{
		AutoExecuteThreshold: ptr(0.01),
		MaxTradeSizeUSD:      ptr(500.0),
		MaxTokenLimit:        ptr(3.0),
	})
	assert.InDelta(t, 0.1, cfg.AutoExecuteThreshold, 1e-9)
	assert.InDelta(t, 100.0, cfg.MaxTradeSizeUSD, 1e-9)
	assert.InDelta(t, 10.0, cfg.MaxTokenLimit, 1e-9)

	// Partial patch leaves the other fields alone.
	cfg = l.UpdateConfig(ctx, domain.PaperConfigPatch{AutoTradingEnabled: ptr(true)})
	assert.True(t, cfg.AutoTradingEnabled)
	assert.InDelta(t, 100.0, cfg.MaxTradeSizeUSD, 1e-9)
}

func TestPnLSummary(t *testing.T) {
	l := newTestLedger(t, domain.PaperConfig{AutoExecuteThreshold: 2.5, MaxTradeSizeUSD: 5, MaxTokenLimit: 100})
	ctx := context.Background()

	t1, err := l.Execute(ctx, ExecuteRequest{MarketID: "m1", YesPrice: 0.45, NoPrice: 0.50})
	require.NoError(t, err)
	t2, err := l.Execute(ctx, ExecuteRequest{MarketID: "m2", YesPrice: 0.48, NoPrice: 0.50})
	require.NoError(t, err)
	_, err = l.Execute(ctx, ExecuteRequest{MarketID: "m3", YesPrice: 0.40, NoPrice: 0.55})
	require.NoError(t, err)

	_, err = l.Close(ctx, t1.ID, "yes", nil) // +0.25
	require.NoError(t, err)
	_, err = l.Close(ctx, t2.ID, "yes", ptr(-0.10))
	require.NoError(t, err)

	s := l.PnL()
	assert.Equal(t, 3, s.TotalTrades)
	assert.Equal(t, 1, s.OpenTrades)
	assert.Equal(t, 2, s.ClosedTrades)
	assert.Equal(t, 1, s.WinTrades)
	assert.Equal(t, 1, s.LossTrades)
	assert.InDelta(t, 50.0, s.WinRate, 1e-9)
	assert.InDelta(t, 15.0, s.TotalInvested, 1e-9)
	assert.InDelta(t, 0.15, s.RealizedPnL, 1e-9)
	assert.InDelta(t, 0.0, s.UnrealizedPnL, 1e-9)
	assert.InDelta(t, s.RealizedPnL+s.UnrealizedPnL, s.TotalPnL, 1e-9)
	assert.InDelta(t, 1.0, s.ROI, 1e-9)
}

func TestTradesFilter(t *testing.T) {
	l := newTestLedger(t, DefaultPaperConfig)
	ctx := context.Background()

	t1, err := l.Execute(ctx, ExecuteRequest{MarketID: "m1", YesPrice: 0.45, NoPrice: 0.50})
	require.NoError(t, err)
	_, err = l.Execute(ctx, ExecuteRequest{MarketID: "m2", YesPrice: 0.48, NoPrice: 0.50})
	require.NoError(t, err)
	_, err = l.Close(ctx, t1.ID, "yes", nil)
	require.NoError(t, err)

	all, total := l.Trades("")
	assert.Len(t, all, 2)
	assert.Equal(t, 2, total)

	open, _ := l.Trades(domain.PaperTradeOpen)
	require.Len(t, open, 1)
	assert.Equal(t, "m2", open[0].MarketID)

	settled, _ := l.Trades(domain.PaperTradeSettled)
	require.Len(t, settled, 1)
	assert.Equal(t, "m1", settled[0].MarketID)
}

func ptr[T any](v T) *T { return &v }
