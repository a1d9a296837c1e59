package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AllocationTarget is the desired share of portfolio value for one token.
// The full target set for a portfolio sums to 100.
type AllocationTarget struct {
	ID               int64           `json:"id"`
	TokenSymbol      string          `json:"symbol"`
	TargetPercentage decimal.Decimal `json:"percentage"`
	Notes            *string         `json:"notes,omitempty"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

// RebalanceAction indicates the direction of a suggested adjustment
type RebalanceAction string

const (
	RebalanceReduce   RebalanceAction = "REDUCE"
	RebalanceIncrease RebalanceAction = "INCREASE"
)

// AllocationDeviation compares a token's current allocation to its target
type AllocationDeviation struct {
	TokenSymbol string          `json:"symbol"`
	CurrentPct  decimal.Decimal `json:"currentPercentage"`
	TargetPct   decimal.Decimal `json:"targetPercentage"`
	Deviation   decimal.Decimal `json:"deviation"` // current - target
	Action      RebalanceAction `json:"action"`
	Suggestion  string          `json:"suggestion"`
}
