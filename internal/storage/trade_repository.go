package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/paper-trader/internal/models"
)

// TradeRepository handles the capped simulated trade history
type TradeRepository struct {
	db *PostgresDB
}

// NewTradeRepository creates a new trade repository
func NewTradeRepository(db *PostgresDB) *TradeRepository {
	return &TradeRepository{db: db}
}

// Append records a trade and prunes the history down to maxTrades rows,
// oldest first.
func (r *TradeRepository) Append(ctx context.Context, trade *models.Trade, maxTrades int) error {
	tx, err := r.db.Pool().Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin trade transaction: %w", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck // no-op after commit

	if err := appendTrade(ctx, tx, trade, maxTrades); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit trade: %w", err)
	}

	return nil
}

// appendTrade inserts a trade row and deletes everything beyond the cap
// inside an open transaction. Shared with the swap path so the trade lands
// in the same transaction as the ledger mutation.
func appendTrade(ctx context.Context, tx pgx.Tx, trade *models.Trade, maxTrades int) error {
	insert := `
		INSERT INTO trades (market, side, size, price, order_type, status, trade_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := tx.Exec(ctx, insert,
		trade.Market,
		trade.Side,
		trade.Size,
		trade.Price,
		trade.OrderType,
		trade.Status,
		trade.TradeID,
	)
	if err != nil {
		return fmt.Errorf("failed to insert trade: %w", err)
	}

	if maxTrades <= 0 {
		return nil
	}

	prune := `
		DELETE FROM trades
		WHERE id NOT IN (
			SELECT id FROM trades ORDER BY created_at DESC, id DESC LIMIT $1
		)
	`
	if _, err := tx.Exec(ctx, prune, maxTrades); err != nil {
		return fmt.Errorf("failed to prune trade history: %w", err)
	}

	return nil
}

// ListRecent retrieves the most recent trades, newest first
func (r *TradeRepository) ListRecent(ctx context.Context, limit int) ([]*models.Trade, error) {
	query := `
		SELECT id, market, side, size, price, order_type, status, trade_id, created_at
		FROM trades
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`

	rows, err := r.db.Pool().Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list trades: %w", err)
	}
	defer rows.Close()

	var trades []*models.Trade
	for rows.Next() {
		var t models.Trade
		err := rows.Scan(
			&t.ID,
			&t.Market,
			&t.Side,
			&t.Size,
			&t.Price,
			&t.OrderType,
			&t.Status,
			&t.TradeID,
			&t.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		trades = append(trades, &t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trades: %w", err)
	}

	return trades, nil
}

// Count returns the number of trades currently retained
func (r *TradeRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.Pool().QueryRow(ctx, `SELECT COUNT(*) FROM trades`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count trades: %w", err)
	}
	return count, nil
}
