package testfixtures

import (
	"sync"
	"time"
)

// Clock is a deterministic time source the suites move by hand, so
// status derivation and cutoff checks are reproducible.
type Clock struct {
	mu      sync.Mutex
	current time.Time
}

// NewClock pins the clock to start, or to ReferenceTime when start is the
// zero value.
func NewClock(start time.Time) *Clock {
	if start.IsZero() {
		start = ReferenceTime()
	}
	return &Clock{current: start}
}

// Now returns the instant the clock currently reads.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// NowFunc adapts the clock to the `func() time.Time` shape the services
// take as a dependency. A nil clock degrades to time.Now.
func (c *Clock) NowFunc() func() time.Time {
	if c == nil {
		return time.Now
	}
	return c.Now
}

// Set jumps the clock to the given instant.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = t
}

// Advance moves the clock forward by d and returns the new reading.
func (c *Clock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
	return c.current
}

// Current reads the clock without implying any progression; assertions use
// it where Now would suggest the test advanced time.
func (c *Clock) Current() time.Time {
	return c.Now()
}
