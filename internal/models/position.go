// Package models defines the data structures persisted by the ledger.
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position represents one held token in the portfolio ledger.
// There is exactly one row per token symbol; balance never goes negative.
type Position struct {
	ID             int64            `json:"id"`
	TokenSymbol    string           `json:"tokenSymbol"`
	Balance        decimal.Decimal  `json:"balance"`
	EntryPrice     *decimal.Decimal `json:"entryPrice,omitempty"`     // volume-weighted average acquisition price in USD
	EntryTimestamp *time.Time       `json:"entryTimestamp,omitempty"` // set on first acquisition, preserved across top-ups
	UnrealizedPnl  decimal.Decimal  `json:"unrealizedPnl"`
	PnlPercentage  decimal.Decimal  `json:"pnlPercentage"`
	UpdatedAt      time.Time        `json:"updatedAt"`
}

// TokenValuation is a position valued at the current market price
type TokenValuation struct {
	Token          string           `json:"token"`
	Balance        decimal.Decimal  `json:"balance"`
	CurrentPrice   decimal.Decimal  `json:"currentPrice"`
	ValueUSD       decimal.Decimal  `json:"valueUsd"`
	EntryPrice     *decimal.Decimal `json:"entryPrice,omitempty"`
	EntryTimestamp *time.Time       `json:"entryTimestamp,omitempty"`
	UnrealizedPnl  decimal.Decimal  `json:"unrealizedPnl"`
	PnlPercentage  decimal.Decimal  `json:"pnlPercentage"`
}

// ValuationSnapshot is one historical portfolio total from the analytics store
type ValuationSnapshot struct {
	ComputedAt time.Time `json:"computedAt"`
	TotalValue float64   `json:"totalPortfolioValue"`
	TotalPnl   float64   `json:"totalPnl"`
}

// PortfolioPnL aggregates the valuation of every held position
type PortfolioPnL struct {
	TotalValue    decimal.Decimal  `json:"totalPortfolioValue"`
	TotalPnl      decimal.Decimal  `json:"totalPnl"`
	PnlPercentage decimal.Decimal  `json:"portfolioPnlPercentage"`
	Tokens        []TokenValuation `json:"tokens"`
	ComputedAt    time.Time        `json:"computedAt"`
}
