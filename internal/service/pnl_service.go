package service

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/paper-trader/internal/errors"
	"github.com/paper-trader/internal/logging"
	"github.com/paper-trader/internal/models"
)

// ValuationHistory interface for the analytics store
type ValuationHistory interface {
	AppendSnapshot(ctx context.Context, pnl *models.PortfolioPnL) error
}

var oneHundred = decimal.NewFromInt(100)

// PnLService recomputes unrealized PnL and portfolio value for every held
// token. A single unpriceable token degrades gracefully to its
// last-persisted figures instead of failing the whole computation.
type PnLService struct {
	positions PositionStore
	prices    PriceSource
	history   ValuationHistory
	reporter  Reporter
	gate      *FreshnessGate
	baseToken string
	now       func() time.Time
}

// NewPnLService creates a new PnL service. history may be nil when no
// analytics store is configured.
func NewPnLService(
	positions PositionStore,
	prices PriceSource,
	history ValuationHistory,
	reporter Reporter,
	gate *FreshnessGate,
	baseToken string,
	now func() time.Time,
) *PnLService {
	if now == nil {
		now = time.Now
	}
	return &PnLService{
		positions: positions,
		prices:    prices,
		history:   history,
		reporter:  reporter,
		gate:      gate,
		baseToken: baseToken,
		now:       now,
	}
}

// ComputePortfolioPnL values every held position at fresh market prices,
// persists the per-token PnL columns and returns the aggregate.
func (s *PnLService) ComputePortfolioPnL(ctx context.Context) (*models.PortfolioPnL, error) {
	logger := logging.FromContext(ctx)

	positions, err := s.positions.ListHeld(ctx)
	if err != nil {
		return nil, errors.NewDatabaseError("list held positions", err)
	}

	result := &models.PortfolioPnL{
		TotalValue: decimal.Zero,
		TotalPnl:   decimal.Zero,
		ComputedAt: s.now().UTC(),
	}

	for _, position := range positions {
		valuation := s.valuePosition(ctx, position)
		result.Tokens = append(result.Tokens, valuation)
		result.TotalValue = result.TotalValue.Add(valuation.ValueUSD)
		result.TotalPnl = result.TotalPnl.Add(valuation.UnrealizedPnl)
	}

	// Overall percentage is relative to the implied initial value. A
	// non-positive implied initial value has no meaningful percentage.
	initialValue := result.TotalValue.Sub(result.TotalPnl)
	if initialValue.Sign() > 0 {
		result.PnlPercentage = result.TotalPnl.Div(initialValue).Mul(oneHundred)
	} else {
		result.PnlPercentage = decimal.Zero
	}

	sort.SliceStable(result.Tokens, func(i, j int) bool {
		return result.Tokens[i].ValueUSD.GreaterThan(result.Tokens[j].ValueUSD)
	})

	s.gate.Mark()

	if s.history != nil {
		if err := s.history.AppendSnapshot(ctx, result); err != nil {
			logger.WithError(err).Warn("Failed to append valuation snapshot")
		}
	}

	s.reporter.ReportPnL(ctx, result)

	return result, nil
}

// valuePosition values one position. The base stablecoin is worth exactly
// its balance with zero PnL; other tokens price off a fresh quote, falling
// back to last-persisted figures when resolution fails.
func (s *PnLService) valuePosition(ctx context.Context, position *models.Position) models.TokenValuation {
	logger := logging.FromContext(ctx).WithField("token", position.TokenSymbol)

	valuation := models.TokenValuation{
		Token:          position.TokenSymbol,
		Balance:        position.Balance,
		EntryPrice:     position.EntryPrice,
		EntryTimestamp: position.EntryTimestamp,
	}

	if position.TokenSymbol == s.baseToken || s.prices.IsStable(position.TokenSymbol) {
		valuation.CurrentPrice = decimal.NewFromInt(1)
		valuation.ValueUSD = position.Balance
		valuation.UnrealizedPnl = decimal.Zero
		valuation.PnlPercentage = decimal.Zero
		return valuation
	}

	currentPrice, err := s.prices.ResolveFresh(ctx, position.TokenSymbol)
	if err != nil {
		// Unpriceable: reuse the last-persisted PnL figures and value the
		// position at its entry price so the total stays defensible.
		logger.WithError(err).Warn("Price unresolved, using last-persisted PnL")
		valuation.UnrealizedPnl = position.UnrealizedPnl
		valuation.PnlPercentage = position.PnlPercentage
		if position.EntryPrice != nil {
			valuation.CurrentPrice = *position.EntryPrice
			valuation.ValueUSD = position.Balance.Mul(*position.EntryPrice)
		}
		return valuation
	}

	valuation.CurrentPrice = currentPrice
	valuation.ValueUSD = position.Balance.Mul(currentPrice)

	if position.EntryPrice != nil && position.EntryPrice.Sign() > 0 {
		entryPrice := *position.EntryPrice
		valuation.UnrealizedPnl = position.Balance.Mul(currentPrice.Sub(entryPrice))
		valuation.PnlPercentage = currentPrice.Div(entryPrice).Sub(decimal.NewFromInt(1)).Mul(oneHundred)

		if err := s.positions.UpdatePnl(ctx, position.TokenSymbol, valuation.UnrealizedPnl, valuation.PnlPercentage); err != nil {
			logger.WithError(err).Warn("Failed to persist PnL columns")
		}
	}

	return valuation
}

// LastChecked returns when the PnL was last computed, zero if never
func (s *PnLService) LastChecked() time.Time {
	return s.gate.LastChecked()
}
