package engine

import "sync/atomic"

// Sequencer hands out dispatch sequence numbers. Clock is the engine's
// implementation; tests may substitute their own.
type Sequencer interface {
	Next() int64
	Current() int64
}

// Clock is the engine's logical clock. Every committed dispatch is stamped
// with the next value; wall-clock time is never used for ordering.
//
// Clock is safe for concurrent use, though only the dispatching goroutine
// advances it.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock whose first Next returns 1.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock positioned at start, so the next dispatch gets
// start+1. Used when resuming a journaled session.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next advances the clock and returns the new value.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last value handed out without advancing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
