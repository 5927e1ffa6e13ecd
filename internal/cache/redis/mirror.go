package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/arbdesk/arbdesk/internal/domain"
)

// Key layout for the write-through mirror. Values are JSON documents meant
// for ad-hoc inspection; no hot-path read ever touches them.
const (
	keyArbOpportunities    = "arbdesk:opps:arbitrage"
	keyIncomeOpportunities = "arbdesk:opps:income"
	keyOpportunityMeta     = "arbdesk:opps:meta"
	keyPaperTrades         = "arbdesk:paper:trades"
	keyPaperState          = "arbdesk:paper:state"
)

// SnapshotMirror implements domain.SnapshotMirror. Every write replaces the
// mirrored document wholesale, matching the services' replace-not-merge
// state model.
type SnapshotMirror struct {
	rdb *redis.Client
}

// NewSnapshotMirror creates a SnapshotMirror backed by the given Client.
func NewSnapshotMirror(c *Client) *SnapshotMirror {
	return &SnapshotMirror{rdb: c.Underlying()}
}

// SetOpportunities mirrors the opportunity snapshot.
func (m *SnapshotMirror) SetOpportunities(ctx context.Context, snap domain.OpportunitySnapshot) error {
	arbs, err := json.Marshal(snap.Arbitrage)
	if err != nil {
		return fmt.Errorf("redis: marshal arbitrage mirror: %w", err)
	}
	income, err := json.Marshal(snap.Income)
	if err != nil {
		return fmt.Errorf("redis: marshal income mirror: %w", err)
	}
	meta, err := json.Marshal(map[string]any{"fetchedAt": snap.FetchedAt})
	if err != nil {
		return fmt.Errorf("redis: marshal opportunity meta: %w", err)
	}

	pipe := m.rdb.Pipeline()
	pipe.Set(ctx, keyArbOpportunities, arbs, 0)
	pipe.Set(ctx, keyIncomeOpportunities, income, 0)
	pipe.Set(ctx, keyOpportunityMeta, meta, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: mirror opportunities: %w", err)
	}
	return nil
}

// SetLedger mirrors the paper ledger.
func (m *SnapshotMirror) SetLedger(ctx context.Context, trades []domain.PaperTrade, state domain.LedgerSnapshot) error {
	tradeDoc, err := json.Marshal(trades)
	if err != nil {
		return fmt.Errorf("redis: marshal trade mirror: %w", err)
	}
	stateDoc, err := json.Marshal(map[string]any{
		"totalTrades": state.TotalTrades,
		"realizedPnl": state.RealizedPnL,
		"config":      state.Config,
	})
	if err != nil {
		return fmt.Errorf("redis: marshal ledger state mirror: %w", err)
	}

	pipe := m.rdb.Pipeline()
	pipe.Set(ctx, keyPaperTrades, tradeDoc, 0)
	pipe.Set(ctx, keyPaperState, stateDoc, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: mirror ledger: %w", err)
	}
	return nil
}

var _ domain.SnapshotMirror = (*SnapshotMirror)(nil)
