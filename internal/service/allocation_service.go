package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/paper-trader/internal/errors"
	"github.com/paper-trader/internal/logging"
	"github.com/paper-trader/internal/models"
)

// AllocationStore interface for target allocation persistence
type AllocationStore interface {
	ReplaceAll(ctx context.Context, targets []*models.AllocationTarget) error
	List(ctx context.Context) ([]*models.AllocationTarget, error)
}

// allocationSumTolerance is how far from 100 the target percentages may sum
var allocationSumTolerance = decimal.NewFromFloat(0.01)

// deviationThreshold is the |current - target| percentage that flags a
// position as over- or under-weight
var deviationThreshold = decimal.NewFromInt(5)

// TargetInput is one requested allocation target
type TargetInput struct {
	Symbol     string          `json:"symbol"`
	Percentage decimal.Decimal `json:"percentage"`
}

// AllocationService stores target allocations and compares them against the
// live portfolio to flag rebalancing needs.
type AllocationService struct {
	targets AllocationStore
	notes   NoteStore
	pnl     *PnLService
}

// NewAllocationService creates a new allocation service
func NewAllocationService(targets AllocationStore, notes NoteStore, pnl *PnLService) *AllocationService {
	return &AllocationService{
		targets: targets,
		notes:   notes,
		pnl:     pnl,
	}
}

// SetTargets replaces the full target set. The percentages must sum to 100
// within tolerance; otherwise nothing is written and the prior targets stand.
func (s *AllocationService) SetTargets(ctx context.Context, inputs []TargetInput, reasoning string) error {
	logger := logging.FromContext(ctx)

	if len(inputs) == 0 {
		return errors.NewInvalidParameterError("allocations", "at least one target is required")
	}

	sum := decimal.Zero
	seen := make(map[string]bool, len(inputs))
	targets := make([]*models.AllocationTarget, 0, len(inputs))

	for _, input := range inputs {
		symbol := normalizeToken(input.Symbol)
		if symbol == "" {
			return errors.NewInvalidParameterError("allocations", "empty token symbol")
		}
		if seen[symbol] {
			return errors.NewInvalidParameterError("allocations", fmt.Sprintf("duplicate token %s", symbol))
		}
		seen[symbol] = true

		if input.Percentage.Sign() < 0 || input.Percentage.GreaterThan(oneHundred) {
			return errors.NewInvalidParameterError("allocations",
				fmt.Sprintf("percentage for %s must be between 0 and 100", symbol))
		}

		sum = sum.Add(input.Percentage)
		targets = append(targets, &models.AllocationTarget{
			TokenSymbol:      symbol,
			TargetPercentage: input.Percentage,
		})
	}

	if sum.Sub(oneHundred).Abs().GreaterThan(allocationSumTolerance) {
		return errors.NewInvalidParameterError("allocations",
			fmt.Sprintf("target percentages sum to %s, expected 100", sum.String()))
	}

	if err := s.targets.ReplaceAll(ctx, targets); err != nil {
		return errors.NewTransactionError("set allocation targets", err)
	}

	logger.WithField("targets", len(targets)).Info("Allocation targets replaced")

	if reasoning != "" {
		if err := s.notes.AddExplanation(ctx, reasoning, "", "ALLOCATION", maxExplanations); err != nil {
			logger.WithError(err).Warn("Failed to record allocation rationale")
		}
	}

	return nil
}

// GetTargets returns the stored allocation targets
func (s *AllocationService) GetTargets(ctx context.Context) ([]*models.AllocationTarget, error) {
	targets, err := s.targets.List(ctx)
	if err != nil {
		return nil, errors.NewDatabaseError("list allocation targets", err)
	}
	return targets, nil
}

// Deviations values the portfolio and flags every token whose current
// allocation differs from its target by more than the threshold. Tokens held
// without a target are measured against an implicit target of zero.
func (s *AllocationService) Deviations(ctx context.Context) ([]*models.AllocationDeviation, error) {
	targets, err := s.GetTargets(ctx)
	if err != nil {
		return nil, err
	}

	pnl, err := s.pnl.ComputePortfolioPnL(ctx)
	if err != nil {
		return nil, err
	}

	currentPct := make(map[string]decimal.Decimal, len(pnl.Tokens))
	if pnl.TotalValue.Sign() > 0 {
		for _, token := range pnl.Tokens {
			currentPct[token.Token] = token.ValueUSD.Div(pnl.TotalValue).Mul(oneHundred)
		}
	}

	targetPct := make(map[string]decimal.Decimal, len(targets))
	for _, target := range targets {
		targetPct[target.TokenSymbol] = target.TargetPercentage
	}

	symbols := make([]string, 0, len(currentPct)+len(targetPct))
	for symbol := range targetPct {
		symbols = append(symbols, symbol)
	}
	for symbol := range currentPct {
		if _, ok := targetPct[symbol]; !ok {
			symbols = append(symbols, symbol)
		}
	}

	var deviations []*models.AllocationDeviation
	for _, symbol := range symbols {
		current := currentPct[symbol]
		target := targetPct[symbol]
		deviation := current.Sub(target)

		if deviation.Abs().LessThanOrEqual(deviationThreshold) {
			continue
		}

		action := models.RebalanceReduce
		suggestion := fmt.Sprintf("%s is overweight: %s%% held vs %s%% target, reduce exposure",
			symbol, current.StringFixed(2), target.StringFixed(2))
		if deviation.Sign() < 0 {
			action = models.RebalanceIncrease
			suggestion = fmt.Sprintf("%s is underweight: %s%% held vs %s%% target, increase exposure",
				symbol, current.StringFixed(2), target.StringFixed(2))
		}

		deviations = append(deviations, &models.AllocationDeviation{
			TokenSymbol: symbol,
			CurrentPct:  current,
			TargetPct:   target,
			Deviation:   deviation,
			Action:      action,
			Suggestion:  suggestion,
		})
	}

	return deviations, nil
}
