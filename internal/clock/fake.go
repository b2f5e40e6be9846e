package clock

import (
	"sort"
	"sync"
	"time"
)

// FakeClock stands still until Advance or Set is called. Due callbacks run
// synchronously inside Advance, in deadline order.
type FakeClock struct {
	mu      sync.Mutex
	now     time.Time
	waiters []*fakeTimer
}

func Fake(initial time.Time) *FakeClock {
	return &FakeClock{now: initial}
}

type fakeTimer struct {
	clock *FakeClock
	at    time.Time
	f     func()
	done  bool
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), f: f}
	if d <= 0 {
		t.done = true
		c.mu.Unlock()
		f()
		return t
	}
	c.waiters = append(c.waiters, t)
	c.mu.Unlock()
	return t
}

func (c *FakeClock) After(d time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	c.AfterFunc(d, func() { ch <- c.Now() })
	return ch
}

// Advance moves time forward by d and fires everything that became due.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()
	c.Set(target)
}

// Set jumps to t and fires everything due at or before t.
func (c *FakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	var due, rest []*fakeTimer
	for _, w := range c.waiters {
		if !w.at.After(t) {
			w.done = true
			due = append(due, w)
		} else {
			rest = append(rest, w)
		}
	}
	c.waiters = rest
	c.mu.Unlock()

	sort.SliceStable(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })
	for _, w := range due {
		w.f()
	}
}

// Pending returns the number of armed, unfired timers.
func (c *FakeClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.waiters)
}

func (t *fakeTimer) Stop() bool {
	c := t.clock
	c.mu.Lock()
	defer c.mu.Unlock()
	if t.done {
		return false
	}
	t.done = true
	for i, w := range c.waiters {
		if w == t {
			c.waiters = append(c.waiters[:i], c.waiters[i+1:]...)
			break
		}
	}
	return true
}
