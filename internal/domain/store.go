package domain

import (
	"context"
	"io"
	"time"
)

// OpportunitySnapshot bundles everything the opportunity cache persists: the
// two opportunity lists and the timestamp of the fetch that produced them.
type OpportunitySnapshot struct {
	Arbitrage []ArbOpportunity
	Income    []IncomeOpportunity
	FetchedAt time.Time
}

// OpportunityStore is the durable full-replace store behind the opportunity
// cache. Every write replaces the previous snapshot wholesale; the store is
// read only once, on service activation.
type OpportunityStore interface {
	ReplaceAll(ctx context.Context, snap OpportunitySnapshot) error
	Load(ctx context.Context) (OpportunitySnapshot, error)
}

// LedgerSnapshot bundles the ledger state the paper store persists besides
// the trade rows themselves.
type LedgerSnapshot struct {
	TotalTrades int
	RealizedPnL float64
	Config      PaperConfig
}

// PaperStore persists paper trades and ledger state. In-memory ledger state
// remains authoritative for the process lifetime; write failures are logged
// and non-fatal.
type PaperStore interface {
	Insert(ctx context.Context, trade PaperTrade) error
	Update(ctx context.Context, trade PaperTrade) error
	List(ctx context.Context) ([]PaperTrade, error)
	SaveState(ctx context.Context, state LedgerSnapshot) error
	LoadState(ctx context.Context) (LedgerSnapshot, error)
	// ListSettledBefore and DeleteSettledBefore support cold-storage
	// archival of terminal trades.
	ListSettledBefore(ctx context.Context, before time.Time) ([]PaperTrade, error)
	DeleteSettledBefore(ctx context.Context, before time.Time) (int64, error)
}

// BlobWriter uploads serialized archives to object storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// Archiver moves aged terminal records out of the hot stores into cold
// storage.
type Archiver interface {
	ArchiveTrades(ctx context.Context, before time.Time) (int64, error)
	ArchiveSnapshot(ctx context.Context, snap OpportunitySnapshot) error
}
