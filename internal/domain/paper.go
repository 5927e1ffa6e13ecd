package domain

import "time"

// PaperTradeStatus tracks the one-way lifecycle of a simulated trade.
// Transitions: open -> closed (manual close without resolution) or
// open -> settled (closed with a market resolution). Both are terminal.
type PaperTradeStatus string

const (
	PaperTradeOpen    PaperTradeStatus = "open"
	PaperTradeClosed  PaperTradeStatus = "closed"
	PaperTradeSettled PaperTradeStatus = "settled"
)

// PaperTrade is one simulated both-sides position opened against an
// arbitrage opportunity. At most one open trade may exist per market.
// SimulatedPnL stays 0 until the trade leaves the open state and is fixed
// permanently at that transition.
type PaperTrade struct {
	ID              string           `json:"id"`
	MarketID        string           `json:"marketId"`
	MarketName      string           `json:"marketName"`
	Strategy        string           `json:"strategy"`
	YesPrice        float64          `json:"yesPrice"`
	NoPrice         float64          `json:"noPrice"`
	ProfitPercent   float64          `json:"profitPercent"`
	Stake           float64          `json:"stake"`
	PotentialProfit float64          `json:"potentialProfit"`
	ExpectedReturn  float64          `json:"expectedReturn"`
	SimulatedPnL    float64          `json:"simulatedPnl"`
	Resolution      string           `json:"resolution,omitempty"`
	Status          PaperTradeStatus `json:"status"`
	OpenedAt        time.Time        `json:"openedAt"`
	ClosedAt        *time.Time       `json:"closedAt,omitempty"`
}

// IsOpen reports whether the trade is still in its initial state.
func (t PaperTrade) IsOpen() bool { return t.Status == PaperTradeOpen }

// PaperConfig holds the paper-trading knobs read by auto-scan and execute.
type PaperConfig struct {
	AutoExecuteThreshold float64 `json:"autoExecuteThreshold"` // min profit% for auto execution
	MaxTradeSizeUSD      float64 `json:"maxTradeSizeUsd"`      // fixed stake per trade
	MaxTokenLimit        float64 `json:"maxTokenLimit"`        // position size cap in tokens
	AutoTradingEnabled   bool    `json:"autoTradingEnabled"`
}

// PaperConfigPatch is a partial config update; nil fields are left unchanged.
type PaperConfigPatch struct {
	AutoExecuteThreshold *float64 `json:"autoExecuteThreshold"`
	MaxTradeSizeUSD      *float64 `json:"maxTradeSizeUsd"`
	MaxTokenLimit        *float64 `json:"maxTokenLimit"`
	AutoTradingEnabled   *bool    `json:"autoTradingEnabled"`
}

// PnLSummary aggregates ledger performance across all recorded trades.
type PnLSummary struct {
	TotalTrades   int     `json:"totalTrades"`
	OpenTrades    int     `json:"openTrades"`
	ClosedTrades  int     `json:"closedTrades"`
	WinTrades     int     `json:"winTrades"`
	LossTrades    int     `json:"lossTrades"`
	WinRate       float64 `json:"winRate"`
	TotalInvested float64 `json:"totalInvested"`
	RealizedPnL   float64 `json:"realizedPnl"`
	UnrealizedPnL float64 `json:"unrealizedPnl"`
	TotalPnL      float64 `json:"totalPnl"`
	ROI           float64 `json:"roi"`
}

// ScanResult reports one auto-scan pass: trades executed plus per-candidate
// skip reasons, in input order.
type ScanResult struct {
	Executed    int          `json:"executed"`
	Skipped     int          `json:"skipped"`
	Trades      []PaperTrade `json:"trades"`
	SkipReasons []string     `json:"skipReasons"`
}
