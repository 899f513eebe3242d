package store

import (
	"sync"
	"sync/atomic"
	"time"
)

// seqClock hands out strictly increasing document sequence numbers.
type seqClock struct {
	seq atomic.Int64
}

func newSeqClockAt(start int64) *seqClock {
	c := &seqClock{}
	c.seq.Store(start)
	return c
}

// NextAfter returns a number greater than both floor and every number
// handed out before.
func (c *seqClock) NextAfter(floor int64) int64 {
	for {
		cur := c.seq.Load()
		next := max(cur, floor) + 1
		if c.seq.CompareAndSwap(cur, next) {
			return next
		}
	}
}

// stampClock resolves server timestamps. Readings never repeat or go
// backwards, even when the wall clock does.
type stampClock struct {
	now func() time.Time

	mu   sync.Mutex
	last time.Time
}

func (c *stampClock) Next() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now().UTC()
	if !t.After(c.last) {
		t = c.last.Add(time.Nanosecond)
	}
	c.last = t
	return t
}
