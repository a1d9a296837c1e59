package storage

import (
	"context"
	"fmt"

	"github.com/paper-trader/internal/models"
)

// AllocationRepository handles target portfolio allocations
type AllocationRepository struct {
	db *PostgresDB
}

// NewAllocationRepository creates a new allocation repository
func NewAllocationRepository(db *PostgresDB) *AllocationRepository {
	return &AllocationRepository{db: db}
}

// ReplaceAll swaps the entire allocation set in one transaction. Either all
// targets are replaced or none are.
func (r *AllocationRepository) ReplaceAll(ctx context.Context, targets []*models.AllocationTarget) error {
	tx, err := r.db.Pool().Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin allocation transaction: %w", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck // no-op after commit

	if _, err := tx.Exec(ctx, `DELETE FROM allocation_targets`); err != nil {
		return fmt.Errorf("failed to clear allocation targets: %w", err)
	}

	insert := `
		INSERT INTO allocation_targets (token_symbol, target_percentage, notes)
		VALUES ($1, $2, $3)
	`
	for _, target := range targets {
		_, err := tx.Exec(ctx, insert,
			normalizeSymbol(target.TokenSymbol),
			target.TargetPercentage,
			target.Notes,
		)
		if err != nil {
			return fmt.Errorf("failed to insert allocation target %s: %w", target.TokenSymbol, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit allocation targets: %w", err)
	}

	return nil
}

// List retrieves all allocation targets ordered by target percentage descending
func (r *AllocationRepository) List(ctx context.Context) ([]*models.AllocationTarget, error) {
	query := `
		SELECT id, token_symbol, target_percentage, notes, updated_at
		FROM allocation_targets
		ORDER BY target_percentage DESC, token_symbol
	`

	rows, err := r.db.Pool().Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list allocation targets: %w", err)
	}
	defer rows.Close()

	var targets []*models.AllocationTarget
	for rows.Next() {
		var t models.AllocationTarget
		err := rows.Scan(&t.ID, &t.TokenSymbol, &t.TargetPercentage, &t.Notes, &t.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan allocation target: %w", err)
		}
		targets = append(targets, &t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating allocation targets: %w", err)
	}

	return targets, nil
}
