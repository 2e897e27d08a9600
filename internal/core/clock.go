package core

import "sync/atomic"

// Clock hands out the seq numbers that order journaled steps. The zero value
// is ready to use and its first Next is 1.
type Clock struct {
	last atomic.Int64
}

// NewClock returns a clock whose first Next is 1.
func NewClock() *Clock {
	return new(Clock)
}

// NewClockAt returns a clock whose first Next is last+1, for appending to a
// session that already holds steps up to last.
func NewClockAt(last int64) *Clock {
	c := new(Clock)
	c.last.Store(last)
	return c
}

// Next stamps one step.
func (c *Clock) Next() int64 {
	return c.last.Add(1)
}

// Current is the seq of the most recent stamp, or the starting point if
// nothing has been stamped yet.
func (c *Clock) Current() int64 {
	return c.last.Load()
}
