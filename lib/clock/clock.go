// Copyright 2026 The Casewire Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import "time"

// Clock is the time source for all scheduling in the engine. Any code
// that would call time.Now, time.After, time.AfterFunc, or
// time.NewTicker takes a Clock instead (usually as a struct field).
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// After returns a channel that receives the current time once d
	// has elapsed. If d <= 0 the channel receives immediately.
	After(d time.Duration) <-chan time.Time

	// AfterFunc schedules f to run after d. The returned Timer
	// cancels the pending call via Stop. If d <= 0, f runs
	// immediately: in a new goroutine on the real clock,
	// synchronously on the fake.
	AfterFunc(d time.Duration, f func()) *Timer

	// NewTicker delivers ticks on its C channel every d. Panics if
	// d <= 0.
	NewTicker(d time.Duration) *Ticker
}

// Timer is a pending AfterFunc call. Its only operation is Stop; the
// engine never resets timers — a cancelled deadline is rescheduled
// from scratch.
type Timer struct {
	stop func() bool
}

// Stop prevents the timer from firing. Returns true if the call
// stopped it, false if it already fired or was already stopped.
func (t *Timer) Stop() bool { return t.stop() }

// Ticker delivers periodic ticks on C. The channel has capacity 1;
// ticks are dropped, not queued, when the consumer falls behind.
type Ticker struct {
	C <-chan time.Time

	stop func()
}

// Stop turns the ticker off. C is not closed.
func (t *Ticker) Stop() { t.stop() }
