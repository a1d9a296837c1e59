package storage

import (
	"context"
	"fmt"

	"github.com/paper-trader/internal/models"
)

// NoteRepository handles agent explanations and the current strategy,
// both kept as small capped histories.
type NoteRepository struct {
	db *PostgresDB
}

// NewNoteRepository creates a new note repository
func NewNoteRepository(db *PostgresDB) *NoteRepository {
	return &NoteRepository{db: db}
}

// AddExplanation records a decision explanation and prunes the history to
// maxExplanations rows, oldest first.
func (r *NoteRepository) AddExplanation(ctx context.Context, explanation, market, decisionType string, maxExplanations int) error {
	tx, err := r.db.Pool().Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin explanation transaction: %w", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck // no-op after commit

	var marketArg, decisionArg *string
	if market != "" {
		marketArg = &market
	}
	if decisionType != "" {
		decisionArg = &decisionType
	}

	insert := `
		INSERT INTO agent_explanations (explanation, market, decision_type)
		VALUES ($1, $2, $3)
	`
	if _, err := tx.Exec(ctx, insert, explanation, marketArg, decisionArg); err != nil {
		return fmt.Errorf("failed to insert explanation: %w", err)
	}

	if maxExplanations > 0 {
		prune := `
			DELETE FROM agent_explanations
			WHERE id NOT IN (
				SELECT id FROM agent_explanations ORDER BY created_at DESC, id DESC LIMIT $1
			)
		`
		if _, err := tx.Exec(ctx, prune, maxExplanations); err != nil {
			return fmt.Errorf("failed to prune explanations: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit explanation: %w", err)
	}

	return nil
}

// ListExplanations retrieves the retained explanations, newest first
func (r *NoteRepository) ListExplanations(ctx context.Context) ([]*models.Explanation, error) {
	query := `
		SELECT id, explanation, market, decision_type, created_at
		FROM agent_explanations
		ORDER BY created_at DESC, id DESC
	`

	rows, err := r.db.Pool().Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list explanations: %w", err)
	}
	defer rows.Close()

	var explanations []*models.Explanation
	for rows.Next() {
		var e models.Explanation
		err := rows.Scan(&e.ID, &e.Explanation, &e.Market, &e.DecisionType, &e.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan explanation: %w", err)
		}
		explanations = append(explanations, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating explanations: %w", err)
	}

	return explanations, nil
}

// SaveStrategy records the current strategy text, keeping only the latest row
func (r *NoteRepository) SaveStrategy(ctx context.Context, strategyText string) error {
	tx, err := r.db.Pool().Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin strategy transaction: %w", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck // no-op after commit

	if _, err := tx.Exec(ctx, `INSERT INTO agent_strategies (strategy_text) VALUES ($1)`, strategyText); err != nil {
		return fmt.Errorf("failed to insert strategy: %w", err)
	}

	prune := `
		DELETE FROM agent_strategies
		WHERE id NOT IN (
			SELECT id FROM agent_strategies ORDER BY created_at DESC, id DESC LIMIT 1
		)
	`
	if _, err := tx.Exec(ctx, prune); err != nil {
		return fmt.Errorf("failed to prune strategies: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit strategy: %w", err)
	}

	return nil
}

// GetStrategy retrieves the current strategy, or nil if none has been saved
func (r *NoteRepository) GetStrategy(ctx context.Context) (*models.Strategy, error) {
	query := `
		SELECT id, strategy_text, created_at
		FROM agent_strategies
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`

	rows, err := r.db.Pool().Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get strategy: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("failed to get strategy: %w", err)
		}
		return nil, nil
	}

	var s models.Strategy
	if err := rows.Scan(&s.ID, &s.StrategyText, &s.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to scan strategy: %w", err)
	}

	return &s, nil
}
