package domain

import "time"

// OpportunityKind selects which cached opportunity list a read refers to.
type OpportunityKind string

const (
	KindArbitrage OpportunityKind = "arbitrage"
	KindIncome    OpportunityKind = "income"
)

// ArbOpportunity is an immutable snapshot of a detected price arbitrage: a
// market (or event group) where buying every side costs less than the
// guaranteed payout of 1. Snapshots are replaced wholesale on each refresh,
// never merged.
type ArbOpportunity struct {
	MarketID      string    `json:"market"`
	MarketName    string    `json:"marketName"`
	YesPrice      float64   `json:"yesPrice"`
	NoPrice       float64   `json:"noPrice"`
	PriceSum      float64   `json:"priceSum"`
	ProfitPercent float64   `json:"profitPercent"`
	Volume24      float64   `json:"volume"`
	Timestamp     time.Time `json:"timestamp"`
}

// IncomeOpportunity is one row of the low-churn income list: a yield venue
// worth surfacing on the dashboard alongside price arbitrage.
type IncomeOpportunity struct {
	Protocol  string    `json:"protocol"`
	Asset     string    `json:"asset"`
	APY       float64   `json:"apy"`
	TVL       float64   `json:"tvl"`
	Risk      string    `json:"risk"` // "low", "medium", "high"
	Timestamp time.Time `json:"timestamp"`
}

// CacheStatus is the outward-facing state of the opportunity cache.
type CacheStatus struct {
	IsFetching     bool      `json:"isFetching"`
	LastFetchAt    time.Time `json:"lastFetchAt"`
	CacheStale     bool      `json:"cacheStale"`
	ArbitrageCount int       `json:"arbitrageCount"`
	IncomeCount    int       `json:"incomeCount"`
}

// RefreshOutcome reports the result of an explicit refresh request.
type RefreshOutcome struct {
	Status         string    `json:"status"` // "refreshed" or "already_fetching"
	ArbitrageCount int       `json:"arbitrageCount"`
	IncomeCount    int       `json:"incomeCount"`
	CachedAt       time.Time `json:"cachedAt"`
}

const (
	RefreshStatusRefreshed       = "refreshed"
	RefreshStatusAlreadyFetching = "already_fetching"
)
