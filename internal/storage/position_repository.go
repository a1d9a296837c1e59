package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/paper-trader/internal/models"
)

// PositionRepository handles the portfolio ledger: one row per held token.
type PositionRepository struct {
	db *PostgresDB
}

// NewPositionRepository creates a new position repository
func NewPositionRepository(db *PostgresDB) *PositionRepository {
	return &PositionRepository{db: db}
}

// ErrPositionNotFound is returned when a token has no ledger row
var ErrPositionNotFound = errors.New("position not found")

const positionColumns = `id, token_symbol, balance, entry_price, entry_timestamp, unrealized_pnl, pnl_percentage, updated_at`

func scanPosition(row pgx.Row) (*models.Position, error) {
	var p models.Position
	var entryPrice decimal.NullDecimal
	var entryTimestamp *time.Time

	err := row.Scan(
		&p.ID,
		&p.TokenSymbol,
		&p.Balance,
		&entryPrice,
		&entryTimestamp,
		&p.UnrealizedPnl,
		&p.PnlPercentage,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if entryPrice.Valid {
		p.EntryPrice = &entryPrice.Decimal
	}
	p.EntryTimestamp = entryTimestamp

	return &p, nil
}

// GetBySymbol retrieves the position for a token
func (r *PositionRepository) GetBySymbol(ctx context.Context, symbol string) (*models.Position, error) {
	query := fmt.Sprintf(`SELECT %s FROM positions WHERE token_symbol = $1`, positionColumns)

	p, err := scanPosition(r.db.Pool().QueryRow(ctx, query, normalizeSymbol(symbol)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPositionNotFound
		}
		return nil, fmt.Errorf("failed to get position: %w", err)
	}

	return p, nil
}

// List retrieves every position, held or not, ordered by symbol
func (r *PositionRepository) List(ctx context.Context) ([]*models.Position, error) {
	query := fmt.Sprintf(`SELECT %s FROM positions ORDER BY token_symbol`, positionColumns)

	rows, err := r.db.Pool().Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list positions: %w", err)
	}
	defer rows.Close()

	var positions []*models.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		positions = append(positions, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating positions: %w", err)
	}

	return positions, nil
}

// ListHeld retrieves positions with a positive balance
func (r *PositionRepository) ListHeld(ctx context.Context) ([]*models.Position, error) {
	query := fmt.Sprintf(`SELECT %s FROM positions WHERE balance > 0 ORDER BY token_symbol`, positionColumns)

	rows, err := r.db.Pool().Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list held positions: %w", err)
	}
	defer rows.Close()

	var positions []*models.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		positions = append(positions, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating positions: %w", err)
	}

	return positions, nil
}

// Seed inserts the base stablecoin row if the ledger is empty for it.
// Returns true if a row was inserted.
func (r *PositionRepository) Seed(ctx context.Context, baseToken string, balance decimal.Decimal) (bool, error) {
	one := decimal.NewFromInt(1)
	query := `
		INSERT INTO positions (token_symbol, balance, entry_price, entry_timestamp)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (token_symbol) DO NOTHING
	`

	result, err := r.db.Pool().Exec(ctx, query, normalizeSymbol(baseToken), balance, one)
	if err != nil {
		return false, fmt.Errorf("failed to seed portfolio: %w", err)
	}

	return result.RowsAffected() > 0, nil
}

// Reset deletes every position and reseeds the base stablecoin row
func (r *PositionRepository) Reset(ctx context.Context, baseToken string, balance decimal.Decimal) error {
	tx, err := r.db.Pool().Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin reset transaction: %w", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck // no-op after commit

	if _, err := tx.Exec(ctx, `DELETE FROM positions`); err != nil {
		return fmt.Errorf("failed to clear positions: %w", err)
	}

	one := decimal.NewFromInt(1)
	zero := decimal.Zero
	insert := `
		INSERT INTO positions (token_symbol, balance, entry_price, entry_timestamp, unrealized_pnl, pnl_percentage)
		VALUES ($1, $2, $3, NOW(), $4, $4)
	`
	if _, err := tx.Exec(ctx, insert, normalizeSymbol(baseToken), balance, one, zero); err != nil {
		return fmt.Errorf("failed to reseed base token: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit reset: %w", err)
	}

	return nil
}

// UpdatePnl persists the derived PnL columns for a token
func (r *PositionRepository) UpdatePnl(ctx context.Context, symbol string, unrealizedPnl, pnlPercentage decimal.Decimal) error {
	query := `
		UPDATE positions
		SET unrealized_pnl = $2, pnl_percentage = $3, updated_at = NOW()
		WHERE token_symbol = $1
	`

	result, err := r.db.Pool().Exec(ctx, query, normalizeSymbol(symbol), unrealizedPnl, pnlPercentage)
	if err != nil {
		return fmt.Errorf("failed to update pnl: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrPositionNotFound
	}

	return nil
}

// SwapParams describes an atomic two-leg ledger mutation: debit the source
// token and credit the destination token, recording one trade.
type SwapParams struct {
	FromToken  string
	FromAmount decimal.Decimal
	ToToken    string
	ToAmount   decimal.Decimal
	ToPrice    decimal.Decimal // acquisition price used for the weighted entry price
	Trade      *models.Trade
	MaxTrades  int // trade history cap applied after the append
}

// ErrInsufficientBalance is returned when the debit would drive the source
// balance negative. The transaction is rolled back.
var ErrInsufficientBalance = errors.New("insufficient balance")

// ExecuteSwap applies debit, credit and trade append in a single transaction.
// On any failure the ledger is left exactly as it was.
func (r *PositionRepository) ExecuteSwap(ctx context.Context, params *SwapParams) error {
	fromSymbol := normalizeSymbol(params.FromToken)
	toSymbol := normalizeSymbol(params.ToToken)

	tx, err := r.db.Pool().Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin swap transaction: %w", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck // no-op after commit

	// Lock the source row and re-check the balance inside the transaction.
	var fromBalance decimal.Decimal
	err = tx.QueryRow(ctx,
		`SELECT balance FROM positions WHERE token_symbol = $1 FOR UPDATE`,
		fromSymbol,
	).Scan(&fromBalance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrPositionNotFound
		}
		return fmt.Errorf("failed to lock source position: %w", err)
	}

	if fromBalance.LessThan(params.FromAmount) {
		return ErrInsufficientBalance
	}

	_, err = tx.Exec(ctx,
		`UPDATE positions SET balance = balance - $2, updated_at = NOW() WHERE token_symbol = $1`,
		fromSymbol, params.FromAmount,
	)
	if err != nil {
		return fmt.Errorf("failed to debit %s: %w", fromSymbol, err)
	}

	if err := creditPosition(ctx, tx, toSymbol, params.ToAmount, params.ToPrice); err != nil {
		return err
	}

	if params.Trade != nil {
		if err := appendTrade(ctx, tx, params.Trade, params.MaxTrades); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit swap: %w", err)
	}

	return nil
}

// Credit adds balance to a token outside of a swap, recomputing the weighted
// entry price. Used when seeding positions from external deposits.
func (r *PositionRepository) Credit(ctx context.Context, symbol string, amount, price decimal.Decimal) error {
	tx, err := r.db.Pool().Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin credit transaction: %w", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck // no-op after commit

	if err := creditPosition(ctx, tx, normalizeSymbol(symbol), amount, price); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit credit: %w", err)
	}

	return nil
}

// creditPosition upserts a position inside an open transaction. For an
// existing row the entry price becomes the volume-weighted average
// (oldBalance*oldEntry + amount*price) / newBalance; the entry timestamp is
// only set when previously null.
func creditPosition(ctx context.Context, tx pgx.Tx, symbol string, amount, price decimal.Decimal) error {
	var balance decimal.Decimal
	var entryPrice decimal.NullDecimal

	err := tx.QueryRow(ctx,
		`SELECT balance, entry_price FROM positions WHERE token_symbol = $1 FOR UPDATE`,
		symbol,
	).Scan(&balance, &entryPrice)

	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("failed to lock destination position: %w", err)
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO positions (token_symbol, balance, entry_price, entry_timestamp)
			 VALUES ($1, $2, $3, NOW())`,
			symbol, amount, price,
		)
		if err != nil {
			return fmt.Errorf("failed to insert position %s: %w", symbol, err)
		}
		return nil
	}

	newBalance := balance.Add(amount)

	var newEntryPrice decimal.Decimal
	if balance.Sign() <= 0 || !entryPrice.Valid {
		newEntryPrice = price
	} else {
		newEntryPrice = WeightedEntryPrice(balance, entryPrice.Decimal, amount, price)
	}

	_, err = tx.Exec(ctx,
		`UPDATE positions
		 SET balance = $2,
		     entry_price = $3,
		     entry_timestamp = COALESCE(entry_timestamp, NOW()),
		     updated_at = NOW()
		 WHERE token_symbol = $1`,
		symbol, newBalance, newEntryPrice,
	)
	if err != nil {
		return fmt.Errorf("failed to credit %s: %w", symbol, err)
	}

	return nil
}

// WeightedEntryPrice computes the volume-weighted average entry price after
// crediting amount at price onto an existing position.
func WeightedEntryPrice(balance, entryPrice, amount, price decimal.Decimal) decimal.Decimal {
	held := balance.Mul(entryPrice)
	added := amount.Mul(price)
	return held.Add(added).Div(balance.Add(amount))
}

// normalizeSymbol uppercases and trims a token symbol
func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
