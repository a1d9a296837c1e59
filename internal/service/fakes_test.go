package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/paper-trader/internal/models"
	"github.com/paper-trader/internal/storage"
)

// fakePositions is an in-memory PositionStore. ExecuteSwap applies the same
// debit/credit semantics as the real repository so post-state can be asserted.
type fakePositions struct {
	positions map[string]*models.Position
	swaps     []*storage.SwapParams
	swapErr   error
	pnlCalls  map[string][]decimal.Decimal
}

func newFakePositions() *fakePositions {
	return &fakePositions{
		positions: make(map[string]*models.Position),
		pnlCalls:  make(map[string][]decimal.Decimal),
	}
}

func (f *fakePositions) seed(symbol string, balance float64, entryPrice *float64) {
	p := &models.Position{
		TokenSymbol: symbol,
		Balance:     decimal.NewFromFloat(balance),
	}
	if entryPrice != nil {
		ep := decimal.NewFromFloat(*entryPrice)
		p.EntryPrice = &ep
		ts := time.Now()
		p.EntryTimestamp = &ts
	}
	f.positions[symbol] = p
}

func (f *fakePositions) GetBySymbol(ctx context.Context, symbol string) (*models.Position, error) {
	p, ok := f.positions[symbol]
	if !ok {
		return nil, storage.ErrPositionNotFound
	}
	copied := *p
	return &copied, nil
}

func (f *fakePositions) List(ctx context.Context) ([]*models.Position, error) {
	var out []*models.Position
	for _, p := range f.positions {
		copied := *p
		out = append(out, &copied)
	}
	return out, nil
}

func (f *fakePositions) ListHeld(ctx context.Context) ([]*models.Position, error) {
	var out []*models.Position
	for _, p := range f.positions {
		if p.Balance.Sign() > 0 {
			copied := *p
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *fakePositions) Seed(ctx context.Context, baseToken string, balance decimal.Decimal) (bool, error) {
	if _, ok := f.positions[baseToken]; ok {
		return false, nil
	}
	f.positions[baseToken] = &models.Position{TokenSymbol: baseToken, Balance: balance}
	return true, nil
}

func (f *fakePositions) Reset(ctx context.Context, baseToken string, balance decimal.Decimal) error {
	f.positions = map[string]*models.Position{
		baseToken: {TokenSymbol: baseToken, Balance: balance},
	}
	return nil
}

func (f *fakePositions) UpdatePnl(ctx context.Context, symbol string, unrealizedPnl, pnlPercentage decimal.Decimal) error {
	f.pnlCalls[symbol] = []decimal.Decimal{unrealizedPnl, pnlPercentage}
	if p, ok := f.positions[symbol]; ok {
		p.UnrealizedPnl = unrealizedPnl
		p.PnlPercentage = pnlPercentage
	}
	return nil
}

func (f *fakePositions) ExecuteSwap(ctx context.Context, params *storage.SwapParams) error {
	if f.swapErr != nil {
		return f.swapErr
	}

	from, ok := f.positions[params.FromToken]
	if !ok {
		return storage.ErrPositionNotFound
	}
	if from.Balance.LessThan(params.FromAmount) {
		return storage.ErrInsufficientBalance
	}

	from.Balance = from.Balance.Sub(params.FromAmount)

	to, ok := f.positions[params.ToToken]
	if !ok {
		entry := params.ToPrice
		ts := time.Now()
		f.positions[params.ToToken] = &models.Position{
			TokenSymbol:    params.ToToken,
			Balance:        params.ToAmount,
			EntryPrice:     &entry,
			EntryTimestamp: &ts,
		}
	} else {
		if to.Balance.Sign() > 0 && to.EntryPrice != nil {
			entry := storage.WeightedEntryPrice(to.Balance, *to.EntryPrice, params.ToAmount, params.ToPrice)
			to.EntryPrice = &entry
		} else {
			entry := params.ToPrice
			to.EntryPrice = &entry
		}
		to.Balance = to.Balance.Add(params.ToAmount)
		if to.EntryTimestamp == nil {
			ts := time.Now()
			to.EntryTimestamp = &ts
		}
	}

	f.swaps = append(f.swaps, params)
	return nil
}

func (f *fakePositions) balance(symbol string) decimal.Decimal {
	if p, ok := f.positions[symbol]; ok {
		return p.Balance
	}
	return decimal.Zero
}

// fakePrices is an in-memory PriceSource
type fakePrices struct {
	prices map[string]decimal.Decimal
	errs   map[string]error
	stable map[string]bool
}

func newFakePrices() *fakePrices {
	return &fakePrices{
		prices: make(map[string]decimal.Decimal),
		errs:   make(map[string]error),
		stable: map[string]bool{"USDC": true, "USDT": true, "DAI": true},
	}
}

func (f *fakePrices) set(symbol string, price float64) {
	f.prices[symbol] = decimal.NewFromFloat(price)
}

func (f *fakePrices) resolve(symbol string) (decimal.Decimal, error) {
	if f.stable[symbol] {
		return decimal.NewFromInt(1), nil
	}
	if err, ok := f.errs[symbol]; ok {
		return decimal.Decimal{}, err
	}
	if price, ok := f.prices[symbol]; ok {
		return price, nil
	}
	return decimal.Decimal{}, fmt.Errorf("no price configured for %s", symbol)
}

func (f *fakePrices) Resolve(ctx context.Context, symbol string) (decimal.Decimal, error) {
	return f.resolve(symbol)
}

func (f *fakePrices) ResolveFresh(ctx context.Context, symbol string) (decimal.Decimal, error) {
	return f.resolve(symbol)
}

func (f *fakePrices) IsStable(symbol string) bool {
	return f.stable[symbol]
}

// fakeValidator is a TokenValidator backed by a set
type fakeValidator struct {
	supported map[string]bool
}

func (f *fakeValidator) IsSupported(ctx context.Context, symbol string) bool {
	return f.supported[symbol]
}

// fakeNotes is an in-memory NoteStore
type fakeNotes struct {
	explanations []*models.Explanation
	strategy     *models.Strategy
}

func (f *fakeNotes) AddExplanation(ctx context.Context, explanation, market, decisionType string, maxExplanations int) error {
	entry := &models.Explanation{
		Explanation: explanation,
		CreatedAt:   time.Now(),
	}
	if market != "" {
		entry.Market = &market
	}
	if decisionType != "" {
		entry.DecisionType = &decisionType
	}
	f.explanations = append([]*models.Explanation{entry}, f.explanations...)
	if maxExplanations > 0 && len(f.explanations) > maxExplanations {
		f.explanations = f.explanations[:maxExplanations]
	}
	return nil
}

func (f *fakeNotes) ListExplanations(ctx context.Context) ([]*models.Explanation, error) {
	return f.explanations, nil
}

func (f *fakeNotes) SaveStrategy(ctx context.Context, strategyText string) error {
	f.strategy = &models.Strategy{StrategyText: strategyText, CreatedAt: time.Now()}
	return nil
}

func (f *fakeNotes) GetStrategy(ctx context.Context) (*models.Strategy, error) {
	return f.strategy, nil
}

// fakeTrades is an in-memory TradeStore
type fakeTrades struct {
	trades []*models.Trade
}

func (f *fakeTrades) ListRecent(ctx context.Context, limit int) ([]*models.Trade, error) {
	if len(f.trades) > limit {
		return f.trades[:limit], nil
	}
	return f.trades, nil
}

// fakeReporter counts reporting calls
type fakeReporter struct {
	trades int
	pnls   int
}

func (f *fakeReporter) ReportTrade(ctx context.Context, payload interface{}) { f.trades++ }
func (f *fakeReporter) ReportPnL(ctx context.Context, payload interface{})   { f.pnls++ }

// fakeHistory records valuation snapshots
type fakeHistory struct {
	snapshots []*models.PortfolioPnL
	err       error
}

func (f *fakeHistory) AppendSnapshot(ctx context.Context, pnl *models.PortfolioPnL) error {
	if f.err != nil {
		return f.err
	}
	f.snapshots = append(f.snapshots, pnl)
	return nil
}
