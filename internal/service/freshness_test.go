package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFreshnessGate(t *testing.T) {
	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	gate := NewFreshnessGate(func() time.Time { return current })

	assert.False(t, gate.CheckedWithin(5*time.Minute))
	assert.True(t, gate.LastChecked().IsZero())

	gate.Mark()
	assert.True(t, gate.CheckedWithin(5*time.Minute))
	assert.Equal(t, current, gate.LastChecked())

	current = current.Add(4 * time.Minute)
	assert.True(t, gate.CheckedWithin(5*time.Minute))

	current = current.Add(2 * time.Minute)
	assert.False(t, gate.CheckedWithin(5*time.Minute), "mark expires after the window")
}
