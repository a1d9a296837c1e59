package service

import (
	"context"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paper-trader/internal/errors"
	"github.com/paper-trader/internal/models"
)

// fakeAllocations is an in-memory AllocationStore
type fakeAllocations struct {
	targets []*models.AllocationTarget
}

func (f *fakeAllocations) ReplaceAll(ctx context.Context, targets []*models.AllocationTarget) error {
	f.targets = targets
	return nil
}

func (f *fakeAllocations) List(ctx context.Context) ([]*models.AllocationTarget, error) {
	return f.targets, nil
}

func newTestAllocationService(positions *fakePositions) (*AllocationService, *fakeAllocations, *fakePrices, *fakeNotes) {
	store := &fakeAllocations{}
	notes := &fakeNotes{}
	prices := newFakePrices()
	gate := NewFreshnessGate(nil)
	pnl := NewPnLService(positions, prices, nil, &fakeReporter{}, gate, "USDC", nil)

	svc := NewAllocationService(store, notes, pnl)
	return svc, store, prices, notes
}

func TestSetTargetsStoresValidSet(t *testing.T) {
	svc, store, _, _ := newTestAllocationService(newFakePositions())

	err := svc.SetTargets(context.Background(), []TargetInput{
		{Symbol: "eth", Percentage: decimal.NewFromInt(60)},
		{Symbol: "USDC", Percentage: decimal.NewFromInt(40)},
	}, "")
	require.NoError(t, err)

	require.Len(t, store.targets, 2)
	assert.Equal(t, "ETH", store.targets[0].TokenSymbol, "symbols are normalized")
	assert.True(t, store.targets[0].TargetPercentage.Equal(decimal.NewFromInt(60)))
}

func TestSetTargetsRejectsBadSum(t *testing.T) {
	svc, store, _, _ := newTestAllocationService(newFakePositions())

	err := svc.SetTargets(context.Background(), []TargetInput{
		{Symbol: "ETH", Percentage: decimal.NewFromInt(60)},
		{Symbol: "USDC", Percentage: decimal.NewFromInt(30)},
	}, "")
	require.Error(t, err)
	assert.Equal(t, "INVALID_PARAMETER", errors.Categorize(err).Code)
	assert.Empty(t, store.targets, "prior targets must stand on rejection")
}

func TestSetTargetsRejectsDuplicateSymbol(t *testing.T) {
	svc, _, _, _ := newTestAllocationService(newFakePositions())

	err := svc.SetTargets(context.Background(), []TargetInput{
		{Symbol: "ETH", Percentage: decimal.NewFromInt(50)},
		{Symbol: "eth", Percentage: decimal.NewFromInt(50)},
	}, "")
	require.Error(t, err)
	assert.Equal(t, "INVALID_PARAMETER", errors.Categorize(err).Code)
}

func TestSetTargetsRejectsOutOfRangePercentage(t *testing.T) {
	svc, _, _, _ := newTestAllocationService(newFakePositions())

	err := svc.SetTargets(context.Background(), []TargetInput{
		{Symbol: "ETH", Percentage: decimal.NewFromInt(150)},
		{Symbol: "USDC", Percentage: decimal.NewFromInt(-50)},
	}, "")
	require.Error(t, err)
	assert.Equal(t, "INVALID_PARAMETER", errors.Categorize(err).Code)
}

func TestSetTargetsRejectsEmptySet(t *testing.T) {
	svc, _, _, _ := newTestAllocationService(newFakePositions())

	err := svc.SetTargets(context.Background(), nil, "")
	require.Error(t, err)
	assert.Equal(t, "INVALID_PARAMETER", errors.Categorize(err).Code)
}

func TestSetTargetsRecordsRationale(t *testing.T) {
	svc, _, _, notes := newTestAllocationService(newFakePositions())

	err := svc.SetTargets(context.Background(), []TargetInput{
		{Symbol: "ETH", Percentage: decimal.NewFromInt(100)},
	}, "concentrating into ETH ahead of the upgrade")
	require.NoError(t, err)

	require.Len(t, notes.explanations, 1)
	require.NotNil(t, notes.explanations[0].DecisionType)
	assert.Equal(t, "ALLOCATION", *notes.explanations[0].DecisionType)
}

func TestSetTargetsSumProperty(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("two-way splits of 100 are always accepted", prop.ForAll(
		func(p float64) bool {
			svc, _, _, _ := newTestAllocationService(newFakePositions())
			err := svc.SetTargets(context.Background(), []TargetInput{
				{Symbol: "ETH", Percentage: decimal.NewFromFloat(p)},
				{Symbol: "BTC", Percentage: decimal.NewFromFloat(100 - p)},
			}, "")
			return err == nil
		},
		gen.Float64Range(0.1, 99.9),
	))

	properties.Property("sums off by more than the tolerance are rejected", prop.ForAll(
		func(p, excess float64) bool {
			svc, _, _, _ := newTestAllocationService(newFakePositions())
			err := svc.SetTargets(context.Background(), []TargetInput{
				{Symbol: "ETH", Percentage: decimal.NewFromFloat(p)},
				{Symbol: "BTC", Percentage: decimal.NewFromFloat(100 - p - excess)},
			}, "")
			return err != nil
		},
		gen.Float64Range(0.1, 49.9),
		gen.Float64Range(0.1, 50),
	))

	properties.TestingRun(t)
}

func TestDeviationsFlagsOverAndUnderweight(t *testing.T) {
	positions := newFakePositions()
	positions.seed("USDC", 500, nil)
	entry := 2000.0
	positions.seed("ETH", 0.25, &entry)

	svc, _, prices, _ := newTestAllocationService(positions)
	prices.set("ETH", 3000)

	// Portfolio is 750 ETH / 500 USDC = 60% / 40%.
	err := svc.SetTargets(context.Background(), []TargetInput{
		{Symbol: "ETH", Percentage: decimal.NewFromInt(50)},
		{Symbol: "USDC", Percentage: decimal.NewFromInt(50)},
	}, "")
	require.NoError(t, err)

	deviations, err := svc.Deviations(context.Background())
	require.NoError(t, err)
	require.Len(t, deviations, 2)

	bySymbol := make(map[string]*models.AllocationDeviation, len(deviations))
	for _, d := range deviations {
		bySymbol[d.TokenSymbol] = d
	}

	eth := bySymbol["ETH"]
	require.NotNil(t, eth)
	assert.Equal(t, models.RebalanceReduce, eth.Action)
	assert.True(t, eth.Deviation.Equal(decimal.NewFromInt(10)), "got %s", eth.Deviation)
	assert.Contains(t, eth.Suggestion, "overweight")

	usdc := bySymbol["USDC"]
	require.NotNil(t, usdc)
	assert.Equal(t, models.RebalanceIncrease, usdc.Action)
	assert.True(t, usdc.Deviation.Equal(decimal.NewFromInt(-10)))
	assert.Contains(t, usdc.Suggestion, "underweight")
}

func TestDeviationsWithinThresholdAreQuiet(t *testing.T) {
	positions := newFakePositions()
	positions.seed("USDC", 480, nil)
	entry := 2000.0
	positions.seed("ETH", 0.26, &entry)

	svc, _, prices, _ := newTestAllocationService(positions)
	prices.set("ETH", 2000)

	// Portfolio is 520 ETH / 480 USDC = 52% / 48%, within 5 points of 50/50.
	err := svc.SetTargets(context.Background(), []TargetInput{
		{Symbol: "ETH", Percentage: decimal.NewFromInt(50)},
		{Symbol: "USDC", Percentage: decimal.NewFromInt(50)},
	}, "")
	require.NoError(t, err)

	deviations, err := svc.Deviations(context.Background())
	require.NoError(t, err)
	assert.Empty(t, deviations)
}

func TestDeviationsUntargetedHoldingMeasuredAgainstZero(t *testing.T) {
	positions := newFakePositions()
	positions.seed("USDC", 500, nil)
	entry := 100.0
	positions.seed("SOL", 5, &entry)

	svc, _, prices, _ := newTestAllocationService(positions)
	prices.set("SOL", 100)

	err := svc.SetTargets(context.Background(), []TargetInput{
		{Symbol: "USDC", Percentage: decimal.NewFromInt(100)},
	}, "")
	require.NoError(t, err)

	deviations, err := svc.Deviations(context.Background())
	require.NoError(t, err)

	var sol *models.AllocationDeviation
	for _, d := range deviations {
		if d.TokenSymbol == "SOL" {
			sol = d
		}
	}
	require.NotNil(t, sol, "held token without a target is still flagged")
	assert.Equal(t, models.RebalanceReduce, sol.Action)
	assert.True(t, sol.TargetPct.IsZero())
}
