package testutil

import (
	"sort"
	"sync"
	"time"
)

// Epoch is the default start time for test clocks.
var Epoch = time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC)

// Clock is a manually advanced wall clock for tests.
//
// It satisfies the store's Now/AfterFunc needs: timers registered with
// AfterFunc fire, in due order, only when Advance moves past them.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type Clock struct {
	mu     sync.Mutex
	now    time.Time
	seq    int
	timers []*timer
}

type timer struct {
	at  time.Time
	seq int
	fn  func()
}

// NewClock creates a clock frozen at start. A zero start uses Epoch.
func NewClock(start time.Time) *Clock {
	if start.IsZero() {
		start = Epoch
	}
	return &Clock{now: start}
}

// Now returns the current frozen time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// AfterFunc schedules fn to run once the clock has advanced by d.
func (c *Clock) AfterFunc(d time.Duration, fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	c.timers = append(c.timers, &timer{at: c.now.Add(d), seq: c.seq, fn: fn})
}

// Advance moves the clock forward and fires every timer that became due.
// Timers run outside the lock so they may schedule further timers.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due, keep []*timer
	for _, t := range c.timers {
		if !t.at.After(c.now) {
			due = append(due, t)
		} else {
			keep = append(keep, t)
		}
	}
	c.timers = keep
	c.mu.Unlock()

	sort.Slice(due, func(i, j int) bool {
		if due[i].at.Equal(due[j].at) {
			return due[i].seq < due[j].seq
		}
		return due[i].at.Before(due[j].at)
	})
	for _, t := range due {
		t.fn()
	}
}

// Pending returns the number of timers that have not fired yet.
func (c *Clock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}
