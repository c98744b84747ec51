// Package budget provides explicit resource counters for reasoning runs.
//
// Every expansion loop in the engine, solver and search packages checks a
// Counter before doing work. Exceeding a bound yields a RESOURCE_EXHAUSTED
// error instead of a hang.
package budget

import (
	"github.com/roach88/koloss/internal/term"
)

// Counter tracks how many units of one resource a run has used and enforces
// a maximum.
//
// A Counter belongs to one run and is not safe for concurrent use. Parallel
// branches each own their own Counter.
type Counter struct {
	name    string // Limit name reported in errors, e.g. "steps"
	max     int64  // Maximum allowed units; <= 0 means unbounded
	current int64  // Units used so far
}

// New creates a counter with the given limit name and maximum.
// A maximum <= 0 disables the bound.
func New(name string, max int64) *Counter {
	return &Counter{name: name, max: max}
}

// Check spends one unit and validates against the limit.
//
// Returns a term.Error with CodeResourceExhausted once the limit is
// exceeded. Call it before each unit of work.
func (c *Counter) Check() error {
	return c.Spend(1)
}

// Spend spends n units and validates against the limit.
func (c *Counter) Spend(n int64) error {
	c.current += n
	if c.max > 0 && c.current > c.max {
		return term.NewResourceExhausted(c.name, c.max).
			WithDetail("used", itoa(c.current))
	}
	return nil
}

// Exceeded reports whether the limit has already been passed.
func (c *Counter) Exceeded() bool {
	return c.max > 0 && c.current > c.max
}

// Remaining returns the units left, or -1 when unbounded.
func (c *Counter) Remaining() int64 {
	if c.max <= 0 {
		return -1
	}
	if c.current >= c.max {
		return 0
	}
	return c.max - c.current
}

// Reset sets the counter back to 0.
func (c *Counter) Reset() {
	c.current = 0
}

// Current returns the units used so far.
// Used for logging and statistics.
func (c *Counter) Current() int64 {
	return c.current
}

// Max returns the configured limit.
func (c *Counter) Max() int64 {
	return c.max
}

// Name returns the limit name.
func (c *Counter) Name() string {
	return c.name
}
