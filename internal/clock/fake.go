package clock

import (
	"sort"
	"sync"
	"time"
)

// Fake is a Clock whose time only moves when Advance is called. Due callbacks
// run inline, in time order, on the goroutine calling Advance.
type Fake struct {
	mu      sync.Mutex
	now     time.Time
	counter uint64
	pending []*fakeTimer // ordered by when, then seq
}

type fakeTimer struct {
	clock   *Fake
	seq     uint64
	when    time.Time
	f       func()
	stopped bool
	fired   bool
}

// NewFake creates a fake clock starting at start.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

// Now returns the current fake time.
func (c *Fake) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// AfterFunc registers f to run once the fake time reaches Now()+d.
func (c *Fake) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.counter++
	t := &fakeTimer{clock: c, seq: c.counter, when: c.now.Add(d), f: f}

	idx := sort.Search(len(c.pending), func(i int) bool {
		return c.pending[i].when.After(t.when)
	})
	c.pending = append(c.pending, nil)
	copy(c.pending[idx+1:], c.pending[idx:])
	c.pending[idx] = t
	return t
}

// Advance moves time forward by d and runs every callback that becomes due,
// including callbacks scheduled by other callbacks within the window.
func (c *Fake) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		next := c.popDueLocked(target)
		if next == nil {
			c.now = target
			c.mu.Unlock()
			return
		}
		c.now = next.when
		next.fired = true
		c.mu.Unlock()

		next.f()
	}
}

// Pending returns the number of timers that have neither fired nor been stopped.
func (c *Fake) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.pending {
		if !t.stopped {
			n++
		}
	}
	return n
}

// popDueLocked removes and returns the earliest live timer due at or before target.
// Caller must hold c.mu.
func (c *Fake) popDueLocked(target time.Time) *fakeTimer {
	for len(c.pending) > 0 {
		t := c.pending[0]
		if t.stopped {
			c.pending = c.pending[1:]
			continue
		}
		if t.when.After(target) {
			return nil
		}
		c.pending = c.pending[1:]
		return t
	}
	return nil
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}
