// Package testutil provides deterministic helpers for tests.
package testutil

import (
	"sync"
	"time"
)

// DeterministicClock is a thread-safe fixed clock for tests.
//
// Unlike the engine's wall clock it only moves when told to, so every
// stored timestamp in a test run is predictable and golden files stay
// stable across runs.
type DeterministicClock struct {
	mu  sync.Mutex
	now time.Time
}

// Epoch is the default starting instant for deterministic clocks.
var Epoch = time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

// NewDeterministicClock creates a clock frozen at Epoch.
func NewDeterministicClock() *DeterministicClock {
	return &DeterministicClock{now: Epoch}
}

// Now returns the current frozen instant.
func (c *DeterministicClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *DeterministicClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Set pins the clock to a specific instant.
func (c *DeterministicClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}
