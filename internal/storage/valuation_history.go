package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/paper-trader/internal/models"
)

// ValuationHistoryRepository appends portfolio valuation snapshots to
// ClickHouse for offline analysis. Writes are best-effort: callers log
// failures instead of failing the valuation itself.
type ValuationHistoryRepository struct {
	db *ClickHouseDB
}

// NewValuationHistoryRepository creates a new valuation history repository
func NewValuationHistoryRepository(db *ClickHouseDB) *ValuationHistoryRepository {
	return &ValuationHistoryRepository{db: db}
}

// AppendSnapshot writes one row per valued token plus the portfolio totals
func (r *ValuationHistoryRepository) AppendSnapshot(ctx context.Context, pnl *models.PortfolioPnL) error {
	batch, err := r.db.Conn().PrepareBatch(ctx, `
		INSERT INTO valuation_history
		(computed_at, token_symbol, balance, current_price, value_usd, unrealized_pnl, total_portfolio_value, total_pnl)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare valuation batch: %w", err)
	}

	totalValue, _ := pnl.TotalValue.Float64()
	totalPnl, _ := pnl.TotalPnl.Float64()

	for _, token := range pnl.Tokens {
		balance, _ := token.Balance.Float64()
		price, _ := token.CurrentPrice.Float64()
		value, _ := token.ValueUSD.Float64()
		unrealized, _ := token.UnrealizedPnl.Float64()

		err := batch.Append(
			pnl.ComputedAt,
			token.Token,
			balance,
			price,
			value,
			unrealized,
			totalValue,
			totalPnl,
		)
		if err != nil {
			return fmt.Errorf("failed to append valuation row: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send valuation batch: %w", err)
	}

	return nil
}

// RecentSnapshots retrieves portfolio totals since a cutoff, newest first
func (r *ValuationHistoryRepository) RecentSnapshots(ctx context.Context, since time.Time, limit int) ([]models.ValuationSnapshot, error) {
	query := `
		SELECT computed_at, max(total_portfolio_value), max(total_pnl)
		FROM valuation_history
		WHERE computed_at >= ?
		GROUP BY computed_at
		ORDER BY computed_at DESC
		LIMIT ?
	`

	rows, err := r.db.Conn().Query(ctx, query, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query valuation history: %w", err)
	}
	defer rows.Close()

	var snapshots []models.ValuationSnapshot
	for rows.Next() {
		var s models.ValuationSnapshot
		if err := rows.Scan(&s.ComputedAt, &s.TotalValue, &s.TotalPnl); err != nil {
			return nil, fmt.Errorf("failed to scan valuation snapshot: %w", err)
		}
		snapshots = append(snapshots, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating valuation history: %w", err)
	}

	return snapshots, nil
}
