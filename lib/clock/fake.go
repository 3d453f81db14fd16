// Copyright 2026 The Casewire Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"sort"
	"sync"
	"time"
)

// Fake returns a FakeClock frozen at initial. Time moves only when
// Advance is called; pending timers and tickers whose deadlines fall
// inside the advance fire in deadline order.
//
// FakeClock is safe for concurrent use.
func Fake(initial time.Time) *FakeClock {
	c := &FakeClock{now: initial}
	c.changed = sync.NewCond(&c.mu)
	return c
}

// FakeClock is a deterministic Clock for tests. AfterFunc callbacks
// run synchronously inside Advance, so do not call Advance from a
// callback.
type FakeClock struct {
	mu      sync.Mutex
	now     time.Time
	pending []*pendingEvent
	changed *sync.Cond
}

// pendingEvent is one scheduled timer, ticker tick, or After send.
type pendingEvent struct {
	deadline time.Time
	fire     func(now time.Time)

	// period is non-zero for tickers; the event is rescheduled at
	// deadline+period after firing.
	period time.Duration

	cancelled bool
	fired     bool
}

// Now returns the frozen current time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// After returns a channel that receives once the clock advances past
// the deadline. Receives immediately for d <= 0.
func (c *FakeClock) After(d time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)

	c.mu.Lock()
	defer c.mu.Unlock()
	if d <= 0 {
		ch <- c.now
		return ch
	}
	c.add(&pendingEvent{
		deadline: c.now.Add(d),
		fire: func(now time.Time) {
			select {
			case ch <- now:
			default:
			}
		},
	})
	return ch
}

// AfterFunc schedules f to run when the clock advances past the
// deadline. For d <= 0, f runs synchronously before AfterFunc returns.
func (c *FakeClock) AfterFunc(d time.Duration, f func()) *Timer {
	if d <= 0 {
		f()
		return &Timer{stop: func() bool { return false }}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	event := &pendingEvent{
		deadline: c.now.Add(d),
		fire:     func(time.Time) { f() },
	}
	c.add(event)

	return &Timer{stop: func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		if event.cancelled || event.fired {
			return false
		}
		event.cancelled = true
		return true
	}}
}

// NewTicker delivers a tick for every period boundary the clock
// advances across. Panics if d <= 0.
func (c *FakeClock) NewTicker(d time.Duration) *Ticker {
	if d <= 0 {
		panic("clock: non-positive ticker interval")
	}

	ch := make(chan time.Time, 1)

	c.mu.Lock()
	defer c.mu.Unlock()
	event := &pendingEvent{
		deadline: c.now.Add(d),
		period:   d,
		fire: func(now time.Time) {
			select {
			case ch <- now:
			default:
			}
		},
	}
	c.add(event)

	return &Ticker{
		C: ch,
		stop: func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			event.cancelled = true
		},
	}
}

// Advance moves the clock forward by d, firing every pending event
// whose deadline falls within the new time, in deadline order.
// Callbacks run in the calling goroutine.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	target := c.now
	c.mu.Unlock()

	for {
		due := c.takeDue(target)
		if len(due) == 0 {
			return
		}
		sort.Slice(due, func(i, j int) bool {
			return due[i].deadline.Before(due[j].deadline)
		})
		for _, event := range due {
			event.fire(target)
		}
	}
}

// WaitForTimers blocks until at least n events are pending. Use this
// to close the race between a goroutine scheduling a timer and the
// test advancing the clock.
func (c *FakeClock) WaitForTimers(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.activeLocked() < n {
		c.changed.Wait()
	}
}

// PendingCount returns the number of active scheduled events.
func (c *FakeClock) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activeLocked()
}

// add registers an event and wakes WaitForTimers callers. Caller
// holds c.mu.
func (c *FakeClock) add(event *pendingEvent) {
	c.pending = append(c.pending, event)
	c.changed.Broadcast()
}

// takeDue removes events due at or before target and returns them.
// Tickers are rescheduled one period out. AfterFunc callbacks may
// schedule new events, so Advance loops until nothing more is due.
func (c *FakeClock) takeDue(target time.Time) []*pendingEvent {
	c.mu.Lock()
	defer c.mu.Unlock()

	var due, rest []*pendingEvent
	for _, event := range c.pending {
		if event.cancelled {
			continue
		}
		if !event.deadline.After(target) {
			due = append(due, event)
		} else {
			rest = append(rest, event)
		}
	}

	for _, event := range due {
		if event.period > 0 {
			event.deadline = event.deadline.Add(event.period)
			rest = append(rest, event)
		} else {
			event.fired = true
		}
	}

	c.pending = rest
	return due
}

// activeLocked counts non-cancelled pending events. Caller holds c.mu.
func (c *FakeClock) activeLocked() int {
	count := 0
	for _, event := range c.pending {
		if !event.cancelled {
			count++
		}
	}
	return count
}
