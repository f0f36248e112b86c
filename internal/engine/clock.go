package engine

import "sync/atomic"

// Clock stamps every write with a seq. Seqs order record versions and
// change sets; wall-clock time never does.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock whose first seq is 1.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock that resumes after last.
func NewClockAt(last int64) *Clock {
	c := &Clock{}
	c.seq.Store(last)
	return c
}

// Next stamps one write.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last seq handed out, 0 before the first write.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}

// AdvanceTo moves the clock forward so the next seq is above last. A
// clock already past last is left alone.
func (c *Clock) AdvanceTo(last int64) {
	for {
		cur := c.seq.Load()
		if cur >= last || c.seq.CompareAndSwap(cur, last) {
			return
		}
	}
}
