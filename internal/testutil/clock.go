package testutil

import (
	"sync"
	"time"
)

// DefaultNow is the instant FixedClock starts at when none is given.
var DefaultNow = time.Date(2026, time.January, 15, 10, 0, 0, 0, time.UTC)

// FixedClock is a settable wall clock for deterministic skew checks.
//
// Unlike the system clock, FixedClock only moves when told to, so the same
// test produces the same ClockSkewExceeded decisions on every run.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type FixedClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFixedClock creates a clock frozen at now. A zero now uses DefaultNow.
func NewFixedClock(now time.Time) *FixedClock {
	if now.IsZero() {
		now = DefaultNow
	}
	return &FixedClock{now: now}
}

// Now returns the frozen instant.
func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d and returns the new instant.
func (c *FixedClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

// Set moves the clock to t.
func (c *FixedClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}
