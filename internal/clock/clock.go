// Package clock provides a time source that tests can control.
// Use Real in production and Mock in tests of schedule-dependent code.
package clock

import (
	"sync"
	"time"
)

// Clock is the time source used by the pseudo-cron and the integrations.
type Clock interface {
	// Now returns the current time
	Now() time.Time

	// Since returns the time elapsed since t
	Since(t time.Time) time.Duration
}

// Real implements Clock using the standard time package
type Real struct{}

// NewReal creates a wall-clock Clock
func NewReal() Real {
	return Real{}
}

func (Real) Now() time.Time                  { return time.Now() }
func (Real) Since(t time.Time) time.Duration { return time.Since(t) }

// Mock is a Clock whose time only moves when the test moves it.
type Mock struct {
	mu      sync.Mutex
	current time.Time
}

// NewMock creates a Mock starting at start
func NewMock(start time.Time) *Mock {
	return &Mock{current: start}
}

// Now returns the mock current time
func (c *Mock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Since returns the time elapsed since t using the mock current time
func (c *Mock) Since(t time.Time) time.Duration {
	return c.Now().Sub(t)
}

// Advance moves the clock forward by d
func (c *Mock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
}

// Set moves the clock to t, forwards or backwards
func (c *Mock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = t
}
