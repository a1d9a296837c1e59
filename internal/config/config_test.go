package config

import (
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestLoadConfig(t *testing.T) {
	// Set some test environment variables
	if err := os.Setenv("SERVER_PORT", "9090"); err != nil {
		t.Fatalf("Failed to set SERVER_PORT: %v", err)
	}
	if err := os.Setenv("POSTGRES_HOST", "testhost"); err != nil {
		t.Fatalf("Failed to set POSTGRES_HOST: %v", err)
	}
	if err := os.Setenv("PRICE_CACHE_TTL", "15m"); err != nil {
		t.Fatalf("Failed to set PRICE_CACHE_TTL: %v", err)
	}
	if err := os.Setenv("PORTFOLIO_SEED_BALANCE", "2500"); err != nil {
		t.Fatalf("Failed to set PORTFOLIO_SEED_BALANCE: %v", err)
	}
	defer func() {
		_ = os.Unsetenv("SERVER_PORT")
		_ = os.Unsetenv("POSTGRES_HOST")
		_ = os.Unsetenv("PRICE_CACHE_TTL")
		_ = os.Unsetenv("PORTFOLIO_SEED_BALANCE")
	}()

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("Server.Port = %v, want %v", cfg.Server.Port, "9090")
	}

	if cfg.Database.Postgres.Host != "testhost" {
		t.Errorf("Database.Postgres.Host = %v, want %v", cfg.Database.Postgres.Host, "testhost")
	}

	if cfg.Pricing.CacheTTL != 15*time.Minute {
		t.Errorf("Pricing.CacheTTL = %v, want %v", cfg.Pricing.CacheTTL, 15*time.Minute)
	}

	if !cfg.Portfolio.SeedBalance.Equal(decimal.NewFromInt(2500)) {
		t.Errorf("Portfolio.SeedBalance = %v, want 2500", cfg.Portfolio.SeedBalance)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Portfolio.BaseToken != "USDC" {
		t.Errorf("Portfolio.BaseToken = %v, want USDC", cfg.Portfolio.BaseToken)
	}

	if cfg.Pricing.MaxRetries != 3 {
		t.Errorf("Pricing.MaxRetries = %v, want 3", cfg.Pricing.MaxRetries)
	}

	if cfg.Pricing.RetryDelay != time.Second {
		t.Errorf("Pricing.RetryDelay = %v, want 1s", cfg.Pricing.RetryDelay)
	}

	if !cfg.Pricing.GenericCap.Equal(decimal.NewFromInt(10000)) {
		t.Errorf("Pricing.GenericCap = %v, want 10000", cfg.Pricing.GenericCap)
	}

	btc, ok := cfg.Pricing.Ranges["BTC"]
	if !ok {
		t.Fatal("Pricing.Ranges missing BTC default")
	}
	if !btc.Min.Equal(decimal.NewFromInt(20000)) || !btc.Max.Equal(decimal.NewFromInt(200000)) {
		t.Errorf("BTC range = %v:%v, want 20000:200000", btc.Min, btc.Max)
	}

	wantStables := map[string]bool{"USDC": true, "USDT": true, "DAI": true}
	for _, s := range cfg.Pricing.StableTokens {
		if !wantStables[s] {
			t.Errorf("unexpected stable token %v", s)
		}
		delete(wantStables, s)
	}
	if len(wantStables) != 0 {
		t.Errorf("missing stable tokens: %v", wantStables)
	}
}

func TestLoadConfigPriceRangeOverride(t *testing.T) {
	if err := os.Setenv("PRICE_RANGE_PEPE", "0.000001:0.0001:0.00001"); err != nil {
		t.Fatalf("Failed to set PRICE_RANGE_PEPE: %v", err)
	}
	if err := os.Setenv("PRICE_RANGE_BTC", "30000:300000:120000"); err != nil {
		t.Fatalf("Failed to set PRICE_RANGE_BTC: %v", err)
	}
	defer func() {
		_ = os.Unsetenv("PRICE_RANGE_PEPE")
		_ = os.Unsetenv("PRICE_RANGE_BTC")
	}()

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	pepe, ok := cfg.Pricing.Ranges["PEPE"]
	if !ok {
		t.Fatal("PRICE_RANGE_PEPE override not applied")
	}
	if !pepe.Typical.Equal(decimal.NewFromFloat(0.00001)) {
		t.Errorf("PEPE typical = %v, want 0.00001", pepe.Typical)
	}

	btc := cfg.Pricing.Ranges["BTC"]
	if !btc.Min.Equal(decimal.NewFromInt(30000)) {
		t.Errorf("BTC min = %v, want 30000 (override beats default)", btc.Min)
	}
}

func TestParsePriceRange(t *testing.T) {
	tests := []struct {
		name    string
		spec    string
		wantErr bool
	}{
		{
			name: "valid range",
			spec: "1000:10000:3000",
		},
		{
			name: "valid with whitespace",
			spec: " 0.05 : 1 : 0.15 ",
		},
		{
			name:    "too few parts",
			spec:    "1000:10000",
			wantErr: true,
		},
		{
			name:    "non-numeric component",
			spec:    "1000:lots:3000",
			wantErr: true,
		},
		{
			name:    "min greater than max",
			spec:    "10000:1000:3000",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePriceRange(tt.spec)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParsePriceRange(%q) error = %v, wantErr %v", tt.spec, err, tt.wantErr)
			}
		})
	}
}

func TestGetEnvAsList(t *testing.T) {
	if err := os.Setenv("TEST_LIST", "usdc, usdt , ,dai"); err != nil {
		t.Fatalf("Failed to set TEST_LIST: %v", err)
	}
	defer func() {
		_ = os.Unsetenv("TEST_LIST")
	}()

	got := getEnvAsList("TEST_LIST", "")
	want := []string{"USDC", "USDT", "DAI"}
	if len(got) != len(want) {
		t.Fatalf("getEnvAsList() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("getEnvAsList()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}
