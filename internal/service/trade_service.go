package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/paper-trader/internal/errors"
	"github.com/paper-trader/internal/logging"
	"github.com/paper-trader/internal/models"
	"github.com/paper-trader/internal/storage"
)

// Repository interfaces for dependency injection

// PositionStore interface for portfolio ledger operations
type PositionStore interface {
	GetBySymbol(ctx context.Context, symbol string) (*models.Position, error)
	List(ctx context.Context) ([]*models.Position, error)
	ListHeld(ctx context.Context) ([]*models.Position, error)
	Seed(ctx context.Context, baseToken string, balance decimal.Decimal) (bool, error)
	Reset(ctx context.Context, baseToken string, balance decimal.Decimal) error
	UpdatePnl(ctx context.Context, symbol string, unrealizedPnl, pnlPercentage decimal.Decimal) error
	ExecuteSwap(ctx context.Context, params *storage.SwapParams) error
}

// PriceSource interface for price resolution
type PriceSource interface {
	Resolve(ctx context.Context, symbol string) (decimal.Decimal, error)
	ResolveFresh(ctx context.Context, symbol string) (decimal.Decimal, error)
	IsStable(symbol string) bool
}

// TokenValidator interface for tradability checks
type TokenValidator interface {
	IsSupported(ctx context.Context, symbol string) bool
}

// NoteStore interface for explanation and strategy records
type NoteStore interface {
	AddExplanation(ctx context.Context, explanation, market, decisionType string, maxExplanations int) error
	ListExplanations(ctx context.Context) ([]*models.Explanation, error)
	SaveStrategy(ctx context.Context, strategyText string) error
	GetStrategy(ctx context.Context) (*models.Strategy, error)
}

// Reporter interface for the best-effort reporting sink
type Reporter interface {
	ReportTrade(ctx context.Context, payload interface{})
	ReportPnL(ctx context.Context, payload interface{})
}

const (
	// maxTradeHistory is how many trade records are retained
	maxTradeHistory = 5
	// maxExplanations is how many decision explanations are retained
	maxExplanations = 3
	// pnlFreshnessWindow is the advisory window for "PnL checked recently"
	pnlFreshnessWindow = 5 * time.Minute
)

// TradeResult is the outcome of a simulated trade
type TradeResult struct {
	Success    bool            `json:"success"`
	Message    string          `json:"message"`
	FromToken  string          `json:"fromToken"`
	ToToken    string          `json:"toToken"`
	FromAmount decimal.Decimal `json:"fromAmount"`
	ToAmount   decimal.Decimal `json:"toAmount"`
	UsdValue   decimal.Decimal `json:"usdValue"`
	Trade      *models.Trade   `json:"trade,omitempty"`
}

// TradeService simulates two-leg token conversions against the ledger.
// Both legs are priced off fresh quotes and applied in one transaction.
type TradeService struct {
	positions PositionStore
	prices    PriceSource
	validator TokenValidator
	notes     NoteStore
	reporter  Reporter
	gate      *FreshnessGate
	baseToken string
}

// NewTradeService creates a new trade service
func NewTradeService(
	positions PositionStore,
	prices PriceSource,
	validator TokenValidator,
	notes NoteStore,
	reporter Reporter,
	gate *FreshnessGate,
	baseToken string,
) *TradeService {
	return &TradeService{
		positions: positions,
		prices:    prices,
		validator: validator,
		notes:     notes,
		reporter:  reporter,
		gate:      gate,
		baseToken: baseToken,
	}
}

// Trade converts fromAmount of fromToken into toToken at fresh market
// prices. The ledger mutation is atomic; nothing is written unless both
// legs resolve and the source balance covers the debit.
func (s *TradeService) Trade(ctx context.Context, fromToken, toToken string, fromAmount decimal.Decimal, explanation string) (*TradeResult, error) {
	logger := logging.FromContext(ctx).WithFields(map[string]interface{}{
		"fromToken": fromToken,
		"toToken":   toToken,
		"amount":    fromAmount.String(),
	})

	if fromAmount.Sign() <= 0 {
		return nil, errors.NewInvalidParameterError("fromAmount", "must be greater than zero")
	}

	fromToken = normalizeToken(fromToken)
	toToken = normalizeToken(toToken)

	if !s.gate.CheckedWithin(pnlFreshnessWindow) {
		logger.Warn("Portfolio PnL has not been computed in the last 5 minutes")
	}

	// Balance precheck before any pricing work.
	position, err := s.positions.GetBySymbol(ctx, fromToken)
	if err != nil {
		if err == storage.ErrPositionNotFound {
			return nil, errors.NewInsufficientBalanceError(fromToken, "0", fromAmount.String())
		}
		return nil, errors.NewDatabaseError("get position", err)
	}
	if position.Balance.LessThan(fromAmount) {
		return nil, errors.NewInsufficientBalanceError(fromToken, position.Balance.String(), fromAmount.String())
	}

	// Both tokens must be tradeable on the venue, the base stablecoin aside.
	for _, token := range []string{fromToken, toToken} {
		if token == s.baseToken || s.prices.IsStable(token) {
			continue
		}
		if !s.validator.IsSupported(ctx, token) {
			return nil, errors.NewTokenNotSupportedError(token, "no tradeable market listed on the venue")
		}
	}

	// Price both legs off fresh quotes before touching the ledger.
	fromPrice, err := s.legPrice(ctx, fromToken)
	if err != nil {
		return nil, err
	}
	toPrice, err := s.legPrice(ctx, toToken)
	if err != nil {
		return nil, err
	}

	usdAmount := fromAmount.Mul(fromPrice)
	toAmount := usdAmount.Div(toPrice)

	trade := s.buildTrade(fromToken, toToken, fromAmount, fromPrice, toPrice)

	err = s.positions.ExecuteSwap(ctx, &storage.SwapParams{
		FromToken:  fromToken,
		FromAmount: fromAmount,
		ToToken:    toToken,
		ToAmount:   toAmount,
		ToPrice:    toPrice,
		Trade:      trade,
		MaxTrades:  maxTradeHistory,
	})
	if err != nil {
		if err == storage.ErrInsufficientBalance {
			return nil, errors.NewInsufficientBalanceError(fromToken, position.Balance.String(), fromAmount.String())
		}
		return nil, errors.NewTransactionError("trade", err)
	}

	logger.WithFields(map[string]interface{}{
		"usdValue": usdAmount.String(),
		"toAmount": toAmount.String(),
	}).Info("Simulated trade executed")

	if explanation != "" {
		if err := s.notes.AddExplanation(ctx, explanation, trade.Market, "TRADE", maxExplanations); err != nil {
			logger.WithError(err).Warn("Failed to record trade explanation")
		}
	}

	// Best-effort telemetry, never fails the trade.
	s.reporter.ReportTrade(ctx, map[string]interface{}{
		"trade":       trade,
		"explanation": explanation,
	})

	return &TradeResult{
		Success:    true,
		Message:    fmt.Sprintf("converted %s %s into %s %s", fromAmount.String(), fromToken, toAmount.String(), toToken),
		FromToken:  fromToken,
		ToToken:    toToken,
		FromAmount: fromAmount,
		ToAmount:   toAmount,
		UsdValue:   usdAmount,
		Trade:      trade,
	}, nil
}

// Decline records an explicit decision not to trade, with its rationale.
// It exists so a hold decision leaves the same audit trail as a trade.
func (s *TradeService) Decline(ctx context.Context, explanation string) error {
	logger := logging.FromContext(ctx)

	if !s.gate.CheckedWithin(pnlFreshnessWindow) {
		logger.Warn("Portfolio PnL has not been computed in the last 5 minutes")
	}

	if explanation == "" {
		return errors.NewInvalidParameterError("explanation", "a hold decision needs a rationale")
	}

	if err := s.notes.AddExplanation(ctx, explanation, "", "HOLD", maxExplanations); err != nil {
		return errors.NewDatabaseError("record hold decision", err)
	}

	logger.Info("Recorded decision to hold")
	return nil
}

// legPrice resolves one leg of the conversion. The base stablecoin is
// pinned at 1.0 with no lookup; everything else prices off a fresh quote.
func (s *TradeService) legPrice(ctx context.Context, token string) (decimal.Decimal, error) {
	if token == s.baseToken || s.prices.IsStable(token) {
		return decimal.NewFromInt(1), nil
	}
	return s.prices.ResolveFresh(ctx, token)
}

// buildTrade constructs the trade record: a single-leg SELL when converting
// into the base stablecoin, otherwise a SWAP with the cross rate.
func (s *TradeService) buildTrade(fromToken, toToken string, fromAmount, fromPrice, toPrice decimal.Decimal) *models.Trade {
	tradeID := fmt.Sprintf("sim-%s", uuid.NewString())

	if toToken == s.baseToken {
		return &models.Trade{
			Market:    fromToken + "-USD",
			Side:      models.TradeSideSell,
			Size:      fromAmount,
			Price:     fromPrice,
			OrderType: models.OrderTypeMarket,
			Status:    "FILLED",
			TradeID:   &tradeID,
		}
	}

	return &models.Trade{
		Market:    fromToken + "/" + toToken,
		Side:      models.TradeSideSwap,
		Size:      fromAmount,
		Price:     fromPrice.Div(toPrice),
		OrderType: models.OrderTypeMarket,
		Status:    "FILLED",
		TradeID:   &tradeID,
	}
}
