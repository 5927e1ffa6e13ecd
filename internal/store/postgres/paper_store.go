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

// PaperStore implements domain.PaperStore using PostgreSQL.
type PaperStore struct {
	pool *pgxpool.Pool
}

var _ domain.PaperStore = (*PaperStore)(nil)

// NewPaperStore creates a PaperStore backed by the given connection pool.
func NewPaperStore(pool *pgxpool.Pool) *PaperStore {
	return &PaperStore{pool: pool}
}

const paperSelectCols = `id, market_id, market_name, strategy,
	yes_price, no_price, profit_percent, stake,
	potential_profit, expected_return, simulated_pnl,
	resolution, status, opened_at, closed_at`

// Insert stores a newly opened trade.
func (s *PaperStore) Insert(ctx context.Context, trade domain.PaperTrade) error {
	const query = `
		INSERT INTO paper_trades (
			id, market_id, market_name, strategy,
			yes_price, no_price, profit_percent, stake,
			potential_profit, expected_return, simulated_pnl,
			resolution, status, opened_at, closed_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8,
			$9, $10, $11,
			$12, $13, $14, $15
		)`

	_, err := s.pool.Exec(ctx, query,
		trade.ID, trade.MarketID, trade.MarketName, trade.Strategy,
		trade.YesPrice, trade.NoPrice, trade.ProfitPercent, trade.Stake,
		trade.PotentialProfit, trade.ExpectedReturn, trade.SimulatedPnL,
		trade.Resolution, trade.Status, trade.OpenedAt, trade.ClosedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert paper trade %s: %w", trade.ID, err)
	}
	return nil
}

// Update rewrites the mutable fields of an existing trade.
func (s *PaperStore) Update(ctx context.Context, trade domain.PaperTrade) error {
	const query = `
		UPDATE paper_trades SET
			simulated_pnl = $2,
			resolution    = $3,
			status        = $4,
			closed_at     = $5
		WHERE id = $1`

	tag, err := s.pool.Exec(ctx, query,
		trade.ID, trade.SimulatedPnL, trade.Resolution, trade.Status, trade.ClosedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: update paper trade %s: %w", trade.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// List returns every stored trade in opening order.
func (s *PaperStore) List(ctx context.Context) ([]domain.PaperTrade, error) {
	query := `SELECT ` + paperSelectCols + ` FROM paper_trades ORDER BY opened_at ASC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: list paper trades: %w", err)
	}
	defer rows.Close()
	return scanTrades(rows)
}

// ListSettledBefore returns terminal trades closed before the cutoff.
func (s *PaperStore) ListSettledBefore(ctx context.Context, before time.Time) ([]domain.PaperTrade, error) {
	query := `SELECT ` + paperSelectCols + `
		FROM paper_trades
		WHERE status IN ('closed', 'settled') AND closed_at < $1
		ORDER BY closed_at ASC`

	rows, err := s.pool.Query(ctx, query, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list settled trades: %w", err)
	}
	defer rows.Close()
	return scanTrades(rows)
}

// DeleteSettledBefore removes terminal trades closed before the cutoff and
// reports how many rows were dropped.
func (s *PaperStore) DeleteSettledBefore(ctx context.Context, before time.Time) (int64, error) {
	const query = `
		DELETE FROM paper_trades
		WHERE status IN ('closed', 'settled') AND closed_at < $1`

	tag, err := s.pool.Exec(ctx, query, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete settled trades: %w", err)
	}
	return tag.RowsAffected(), nil
}

// SaveState upserts the single ledger-state row.
func (s *PaperStore) SaveState(ctx context.Context, state domain.LedgerSnapshot) error {
	const query = `
		INSERT INTO paper_ledger_state (
			id, total_trades, realized_pnl,
			auto_execute_threshold, max_trade_size_usd, max_token_limit,
			auto_trading_enabled, updated_at
		) VALUES (1, $1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (id) DO UPDATE SET
			total_trades           = EXCLUDED.total_trades,
			realized_pnl           = EXCLUDED.realized_pnl,
			auto_execute_threshold = EXCLUDED.auto_execute_threshold,
			max_trade_size_usd     = EXCLUDED.max_trade_size_usd,
			max_token_limit        = EXCLUDED.max_token_limit,
			auto_trading_enabled   = EXCLUDED.auto_trading_enabled,
			updated_at             = NOW()`

	_, err := s.pool.Exec(ctx, query,
		state.TotalTrades, state.RealizedPnL,
		state.Config.AutoExecuteThreshold, state.Config.MaxTradeSizeUSD,
		state.Config.MaxTokenLimit, state.Config.AutoTradingEnabled,
	)
	if err != nil {
		return fmt.Errorf("postgres: save ledger state: %w", err)
	}
	return nil
}

// LoadState reads the ledger-state row. A never-written database yields the
// zero snapshot without error.
func (s *PaperStore) LoadState(ctx context.Context) (domain.LedgerSnapshot, error) {
	const query = `
		SELECT total_trades, realized_pnl,
		       auto_execute_threshold, max_trade_size_usd, max_token_limit,
		       auto_trading_enabled
		FROM paper_ledger_state WHERE id = 1`

	var state domain.LedgerSnapshot
	err := s.pool.QueryRow(ctx, query).Scan(
		&state.TotalTrades, &state.RealizedPnL,
		&state.Config.AutoExecuteThreshold, &state.Config.MaxTradeSizeUSD,
		&state.Config.MaxTokenLimit, &state.Config.AutoTradingEnabled,
	)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return domain.LedgerSnapshot{}, nil
	case err != nil:
		return domain.LedgerSnapshot{}, fmt.Errorf("postgres: load ledger state: %w", err)
	}
	return state, nil
}

func scanTrades(rows pgx.Rows) ([]domain.PaperTrade, error) {
	var trades []domain.PaperTrade
	for rows.Next() {
		var t domain.PaperTrade
		if err := rows.Scan(
			&t.ID, &t.MarketID, &t.MarketName, &t.Strategy,
			&t.YesPrice, &t.NoPrice, &t.ProfitPercent, &t.Stake,
			&t.PotentialProfit, &t.ExpectedReturn, &t.SimulatedPnL,
			&t.Resolution, &t.Status, &t.OpenedAt, &t.ClosedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan paper trade: %w", err)
		}
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: paper trade rows: %w", err)
	}
	return trades, nil
}
