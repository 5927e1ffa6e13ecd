package domain

import (
	"context"
	"time"
)

// SnapshotMirror is the write-through replica of service state kept for
// durability and ad-hoc querying. It is never read on the hot path and is
// rebuildable from the owning service at any time.
type SnapshotMirror interface {
	SetOpportunities(ctx context.Context, snap OpportunitySnapshot) error
	SetLedger(ctx context.Context, trades []PaperTrade, state LedgerSnapshot) error
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// SignalBus provides pub/sub fan-out of service events to push consumers
// (the WebSocket hub).
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}
