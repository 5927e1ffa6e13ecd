package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arbdesk/arbdesk/internal/domain"
)

// OpportunityStore implements domain.OpportunityStore using PostgreSQL.
// Writes replace the whole snapshot inside one transaction so readers never
// observe a half-written snapshot.
type OpportunityStore struct {
	pool *pgxpool.Pool
}

var _ domain.OpportunityStore = (*OpportunityStore)(nil)

// NewOpportunityStore creates an OpportunityStore backed by the given pool.
func NewOpportunityStore(pool *pgxpool.Pool) *OpportunityStore {
	return &OpportunityStore{pool: pool}
}

// ReplaceAll deletes the stored snapshot and inserts the new one.
func (s *OpportunityStore) ReplaceAll(ctx context.Context, snap domain.OpportunitySnapshot) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin replace snapshot: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM arb_opportunities`); err != nil {
		return fmt.Errorf("postgres: clear arb opportunities: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM income_opportunities`); err != nil {
		return fmt.Errorf("postgres: clear income opportunities: %w", err)
	}

	const insertArb = `
		INSERT INTO arb_opportunities (
			market_id, market_name, yes_price, no_price,
			price_sum, profit_percent, volume_24h, detected_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	for _, opp := range snap.Arbitrage {
		if _, err := tx.Exec(ctx, insertArb,
			opp.MarketID, opp.MarketName, opp.YesPrice, opp.NoPrice,
			opp.PriceSum, opp.ProfitPercent, opp.Volume24, opp.Timestamp,
		); err != nil {
			return fmt.Errorf("postgres: insert arb opportunity %s: %w", opp.MarketID, err)
		}
	}

	const insertIncome = `
		INSERT INTO income_opportunities (
			protocol, asset, apy, tvl, risk, detected_at
		) VALUES ($1, $2, $3, $4, $5, $6)`
	for _, opp := range snap.Income {
		if _, err := tx.Exec(ctx, insertIncome,
			opp.Protocol, opp.Asset, opp.APY, opp.TVL, opp.Risk, opp.Timestamp,
		); err != nil {
			return fmt.Errorf("postgres: insert income opportunity %s/%s: %w", opp.Protocol, opp.Asset, err)
		}
	}

	const upsertMeta = `
		INSERT INTO cache_meta (id, fetched_at) VALUES (1, $1)
		ON CONFLICT (id) DO UPDATE SET fetched_at = EXCLUDED.fetched_at`
	if _, err := tx.Exec(ctx, upsertMeta, snap.FetchedAt); err != nil {
		return fmt.Errorf("postgres: upsert cache meta: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit replace snapshot: %w", err)
	}
	return nil
}

// Load reads the persisted snapshot. A database that has never been written
// yields an empty snapshot with a zero FetchedAt.
func (s *OpportunityStore) Load(ctx context.Context) (domain.OpportunitySnapshot, error) {
	var snap domain.OpportunitySnapshot

	var fetchedAt time.Time
	err := s.pool.QueryRow(ctx, `SELECT fetched_at FROM cache_meta WHERE id = 1`).Scan(&fetchedAt)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return snap, nil
	case err != nil:
		return snap, fmt.Errorf("postgres: load cache meta: %w", err)
	}
	snap.FetchedAt = fetchedAt

	rows, err := s.pool.Query(ctx, `
		SELECT market_id, market_name, yes_price, no_price,
		       price_sum, profit_percent, volume_24h, detected_at
		FROM arb_opportunities
		ORDER BY profit_percent DESC`)
	if err != nil {
		return snap, fmt.Errorf("postgres: load arb opportunities: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var opp domain.ArbOpportunity
		if err := rows.Scan(
			&opp.MarketID, &opp.MarketName, &opp.YesPrice, &opp.NoPrice,
			&opp.PriceSum, &opp.ProfitPercent, &opp.Volume24, &opp.Timestamp,
		); err != nil {
			return snap, fmt.Errorf("postgres: scan arb opportunity: %w", err)
		}
		snap.Arbitrage = append(snap.Arbitrage, opp)
	}
	if err := rows.Err(); err != nil {
		return snap, fmt.Errorf("postgres: load arb opportunities rows: %w", err)
	}

	incomeRows, err := s.pool.Query(ctx, `
		SELECT protocol, asset, apy, tvl, risk, detected_at
		FROM income_opportunities
		ORDER BY tvl DESC`)
	if err != nil {
		return snap, fmt.Errorf("postgres: load income opportunities: %w", err)
	}
	defer incomeRows.Close()

	for incomeRows.Next() {
		var opp domain.IncomeOpportunity
		if err := incomeRows.Scan(
			&opp.Protocol, &opp.Asset, &opp.APY, &opp.TVL, &opp.Risk, &opp.Timestamp,
		); err != nil {
			return snap, fmt.Errorf("postgres: scan income opportunity: %w", err)
		}
		snap.Income = append(snap.Income, opp)
	}
	if err := incomeRows.Err(); err != nil {
		return snap, fmt.Errorf("postgres: load income opportunities rows: %w", err)
	}

	return snap, nil
}
