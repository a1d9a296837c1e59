package models

import "time"

// Explanation is a free-text rationale the agent recorded for a decision.
// Only the latest few are retained.
type Explanation struct {
	ID           int64     `json:"id"`
	Explanation  string    `json:"explanation"`
	Market       *string   `json:"market,omitempty"`
	DecisionType *string   `json:"decisionType,omitempty"`
	CreatedAt    time.Time `json:"timestamp"`
}

// Strategy is the agent's current strategy document. Only the most recent
// one is retained.
type Strategy struct {
	ID           int64     `json:"id"`
	StrategyText string    `json:"strategyText"`
	CreatedAt    time.Time `json:"timestamp"`
}
