package service

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/paper-trader/internal/errors"
	"github.com/paper-trader/internal/logging"
	"github.com/paper-trader/internal/models"
)

// TradeStore interface for trade history reads
type TradeStore interface {
	ListRecent(ctx context.Context, limit int) ([]*models.Trade, error)
}

// PortfolioService handles ledger lifecycle and read-side views
type PortfolioService struct {
	positions   PositionStore
	trades      TradeStore
	notes       NoteStore
	baseToken   string
	seedBalance decimal.Decimal
}

// NewPortfolioService creates a new portfolio service
func NewPortfolioService(
	positions PositionStore,
	trades TradeStore,
	notes NoteStore,
	baseToken string,
	seedBalance decimal.Decimal,
) *PortfolioService {
	return &PortfolioService{
		positions:   positions,
		trades:      trades,
		notes:       notes,
		baseToken:   normalizeToken(baseToken),
		seedBalance: seedBalance,
	}
}

// Initialize seeds the ledger with the base stablecoin if it has no row yet.
// Safe to call on every startup; returns whether a seed happened.
func (s *PortfolioService) Initialize(ctx context.Context) (bool, error) {
	seeded, err := s.positions.Seed(ctx, s.baseToken, s.seedBalance)
	if err != nil {
		return false, errors.NewDatabaseError("seed portfolio", err)
	}

	if seeded {
		logging.FromContext(ctx).WithFields(map[string]interface{}{
			"baseToken": s.baseToken,
			"balance":   s.seedBalance.String(),
		}).Info("Portfolio seeded with base stablecoin")
	}

	return seeded, nil
}

// Reset wipes every position and reseeds the base stablecoin row
func (s *PortfolioService) Reset(ctx context.Context) error {
	if err := s.positions.Reset(ctx, s.baseToken, s.seedBalance); err != nil {
		return errors.NewTransactionError("reset portfolio", err)
	}

	logging.FromContext(ctx).WithFields(map[string]interface{}{
		"baseToken": s.baseToken,
		"balance":   s.seedBalance.String(),
	}).Info("Portfolio reset")

	return nil
}

// Positions returns every held position
func (s *PortfolioService) Positions(ctx context.Context) ([]*models.Position, error) {
	positions, err := s.positions.ListHeld(ctx)
	if err != nil {
		return nil, errors.NewDatabaseError("list positions", err)
	}
	return positions, nil
}

// TradeHistory returns the retained trade records, newest first
func (s *PortfolioService) TradeHistory(ctx context.Context) ([]*models.Trade, error) {
	trades, err := s.trades.ListRecent(ctx, maxTradeHistory)
	if err != nil {
		return nil, errors.NewDatabaseError("list trades", err)
	}
	return trades, nil
}

// Explanations returns the retained decision explanations, newest first
func (s *PortfolioService) Explanations(ctx context.Context) ([]*models.Explanation, error) {
	explanations, err := s.notes.ListExplanations(ctx)
	if err != nil {
		return nil, errors.NewDatabaseError("list explanations", err)
	}
	return explanations, nil
}

// SaveStrategy replaces the current strategy document
func (s *PortfolioService) SaveStrategy(ctx context.Context, strategyText string) error {
	if strings.TrimSpace(strategyText) == "" {
		return errors.NewInvalidParameterError("strategy", "strategy text is required")
	}
	if err := s.notes.SaveStrategy(ctx, strategyText); err != nil {
		return errors.NewDatabaseError("save strategy", err)
	}
	return nil
}

// GetStrategy returns the current strategy, nil when none is set
func (s *PortfolioService) GetStrategy(ctx context.Context) (*models.Strategy, error) {
	strategy, err := s.notes.GetStrategy(ctx)
	if err != nil {
		return nil, errors.NewDatabaseError("get strategy", err)
	}
	return strategy, nil
}

// normalizeToken uppercases and trims a token symbol
func normalizeToken(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
