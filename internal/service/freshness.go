// Package service implements trade simulation, portfolio valuation and
// allocation planning on top of the ledger and the price resolver.
package service

import (
	"sync"
	"time"
)

// FreshnessGate records when the portfolio PnL was last computed. Trading
// paths consult it as a soft advisory: a stale valuation produces a warning,
// never a hard failure.
type FreshnessGate struct {
	mu   sync.Mutex
	last time.Time
	now  func() time.Time
}

// NewFreshnessGate creates a freshness gate with an injectable clock.
// Pass nil for time.Now.
func NewFreshnessGate(now func() time.Time) *FreshnessGate {
	if now == nil {
		now = time.Now
	}
	return &FreshnessGate{now: now}
}

// Mark records that a PnL computation just ran
func (g *FreshnessGate) Mark() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.last = g.now()
}

// CheckedWithin reports whether a PnL computation ran inside the window
func (g *FreshnessGate) CheckedWithin(window time.Duration) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.last.IsZero() {
		return false
	}
	return g.now().Sub(g.last) <= window
}

// LastChecked returns the time of the last PnL computation, zero if never
func (g *FreshnessGate) LastChecked() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.last
}
