package engine

import "sync/atomic"

// Sequencer stamps trace events. Clock is the production implementation;
// tests may substitute testutil.DeterministicClock.
type Sequencer interface {
	Next() int64
}

// Clock is a monotonic logical clock for trace ordering.
//
// Every trace event of a compilation is stamped with a strictly increasing
// seq from a fresh Clock, so:
// - Ordering never depends on wall-clock time
// - Two runs of the same plan produce identical seqs
// - Replay can compare traces byte for byte
//
// Thread-safety: Clock is safe for concurrent use (atomic operations),
// though a compilation only calls it from its own goroutine.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a new clock starting at a specific sequence number.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
