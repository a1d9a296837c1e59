package storage

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/paper-trader/internal/config"
	"github.com/paper-trader/internal/models"
)

// setupTestDB connects to a local Postgres, skipping the test when none is
// available. Tests using it reset the ledger to a known state first.
func setupTestDB(t *testing.T) *PostgresDB {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	cfg := &config.PostgresConfig{
		Host:           "localhost",
		Port:           "5432",
		Database:       "paper_trader",
		User:           "trader",
		Password:       "trader_dev_password",
		MaxConnections: 5,
	}

	db, err := NewPostgresDB(cfg)
	if err != nil {
		t.Skipf("Skipping test - Postgres not available: %v", err)
		return nil
	}
	t.Cleanup(db.Close)

	return db
}

func TestPositionRepository_SeedAndReset(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPositionRepository(db)
	ctx := testContext(t)

	if err := repo.Reset(ctx, "USDC", decimal.NewFromInt(1000)); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}

	// Seeding an already-seeded ledger is a no-op.
	inserted, err := repo.Seed(ctx, "USDC", decimal.NewFromInt(9999))
	if err != nil {
		t.Fatalf("Seed() error = %v", err)
	}
	if inserted {
		t.Error("Seed() inserted = true, want false for existing row")
	}

	p, err := repo.GetBySymbol(ctx, "usdc")
	if err != nil {
		t.Fatalf("GetBySymbol() error = %v", err)
	}
	if !p.Balance.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("Balance = %v, want 1000", p.Balance)
	}
}

func TestPositionRepository_GetBySymbolNotFound(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPositionRepository(db)
	ctx := testContext(t)

	if err := repo.Reset(ctx, "USDC", decimal.NewFromInt(1000)); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}

	_, err := repo.GetBySymbol(ctx, "NOPE")
	if err != ErrPositionNotFound {
		t.Errorf("GetBySymbol() error = %v, want ErrPositionNotFound", err)
	}
}

func TestPositionRepository_ExecuteSwap(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPositionRepository(db)
	trades := NewTradeRepository(db)
	ctx := testContext(t)

	if err := repo.Reset(ctx, "USDC", decimal.NewFromInt(1000)); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}

	tradeID := "sim-test-1"
	params := &SwapParams{
		FromToken:  "USDC",
		FromAmount: decimal.NewFromInt(500),
		ToToken:    "ETH",
		ToAmount:   decimal.NewFromFloat(0.25),
		ToPrice:    decimal.NewFromInt(2000),
		Trade: &models.Trade{
			Market:    "USDC/ETH",
			Side:      models.TradeSideSwap,
			Size:      decimal.NewFromInt(500),
			Price:     decimal.NewFromFloat(0.0005),
			OrderType: models.OrderTypeMarket,
			Status:    "FILLED",
			TradeID:   &tradeID,
		},
		MaxTrades: 5,
	}

	if err := repo.ExecuteSwap(ctx, params); err != nil {
		t.Fatalf("ExecuteSwap() error = %v", err)
	}

	usdc, err := repo.GetBySymbol(ctx, "USDC")
	if err != nil {
		t.Fatalf("GetBySymbol(USDC) error = %v", err)
	}
	if !usdc.Balance.Equal(decimal.NewFromInt(500)) {
		t.Errorf("USDC balance = %v, want 500", usdc.Balance)
	}

	eth, err := repo.GetBySymbol(ctx, "ETH")
	if err != nil {
		t.Fatalf("GetBySymbol(ETH) error = %v", err)
	}
	if !eth.Balance.Equal(decimal.NewFromFloat(0.25)) {
		t.Errorf("ETH balance = %v, want 0.25", eth.Balance)
	}
	if eth.EntryPrice == nil || !eth.EntryPrice.Equal(decimal.NewFromInt(2000)) {
		t.Errorf("ETH entry price = %v, want 2000", eth.EntryPrice)
	}
	if eth.EntryTimestamp == nil {
		t.Error("ETH entry timestamp not set")
	}

	count, err := trades.Count(ctx)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 1 {
		t.Errorf("trade count = %v, want 1", count)
	}
}

func TestPositionRepository_ExecuteSwapInsufficientBalance(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPositionRepository(db)
	ctx := testContext(t)

	if err := repo.Reset(ctx, "USDC", decimal.NewFromInt(100)); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}

	params := &SwapParams{
		FromToken:  "USDC",
		FromAmount: decimal.NewFromInt(500),
		ToToken:    "ETH",
		ToAmount:   decimal.NewFromFloat(0.25),
		ToPrice:    decimal.NewFromInt(2000),
	}

	if err := repo.ExecuteSwap(ctx, params); err != ErrInsufficientBalance {
		t.Fatalf("ExecuteSwap() error = %v, want ErrInsufficientBalance", err)
	}

	// Rolled back: source untouched, destination never created.
	usdc, err := repo.GetBySymbol(ctx, "USDC")
	if err != nil {
		t.Fatalf("GetBySymbol(USDC) error = %v", err)
	}
	if !usdc.Balance.Equal(decimal.NewFromInt(100)) {
		t.Errorf("USDC balance = %v, want 100 after rollback", usdc.Balance)
	}
	if _, err := repo.GetBySymbol(ctx, "ETH"); err != ErrPositionNotFound {
		t.Errorf("GetBySymbol(ETH) error = %v, want ErrPositionNotFound", err)
	}
}

func TestPositionRepository_WeightedEntryOnTopUp(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPositionRepository(db)
	ctx := testContext(t)

	if err := repo.Reset(ctx, "USDC", decimal.NewFromInt(10000)); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}

	if err := repo.Credit(ctx, "ETH", decimal.NewFromInt(1), decimal.NewFromInt(2000)); err != nil {
		t.Fatalf("Credit() error = %v", err)
	}
	if err := repo.Credit(ctx, "ETH", decimal.NewFromInt(1), decimal.NewFromInt(4000)); err != nil {
		t.Fatalf("Credit() error = %v", err)
	}

	eth, err := repo.GetBySymbol(ctx, "ETH")
	if err != nil {
		t.Fatalf("GetBySymbol(ETH) error = %v", err)
	}
	if !eth.Balance.Equal(decimal.NewFromInt(2)) {
		t.Errorf("ETH balance = %v, want 2", eth.Balance)
	}
	if eth.EntryPrice == nil || !eth.EntryPrice.Equal(decimal.NewFromInt(3000)) {
		t.Errorf("ETH entry price = %v, want 3000", eth.EntryPrice)
	}
}

func TestTradeRepository_PrunesHistory(t *testing.T) {
	db := setupTestDB(t)
	positions := NewPositionRepository(db)
	trades := NewTradeRepository(db)
	ctx := testContext(t)

	if err := positions.Reset(ctx, "USDC", decimal.NewFromInt(1000)); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}

	for i := 0; i < 8; i++ {
		trade := &models.Trade{
			Market:    "ETH-USD",
			Side:      models.TradeSideSell,
			Size:      decimal.NewFromInt(1),
			Price:     decimal.NewFromInt(2000 + int64(i)),
			OrderType: models.OrderTypeMarket,
			Status:    "FILLED",
		}
		if err := trades.Append(ctx, trade, 5); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	count, err := trades.Count(ctx)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 5 {
		t.Errorf("trade count = %v, want 5 after pruning", count)
	}

	recent, err := trades.ListRecent(ctx, 5)
	if err != nil {
		t.Fatalf("ListRecent() error = %v", err)
	}
	if len(recent) != 5 {
		t.Fatalf("ListRecent() returned %d trades, want 5", len(recent))
	}
	// Newest first; the oldest three inserts were pruned.
	if !recent[0].Price.Equal(decimal.NewFromInt(2007)) {
		t.Errorf("newest trade price = %v, want 2007", recent[0].Price)
	}
}
