// Copyright 2026 The Flightlink Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import "time"

// Clock is the subset of the time package used by flightlink.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// After returns a channel that receives once d has elapsed. A
	// non-positive d yields a channel that is already ready.
	After(d time.Duration) <-chan time.Time

	// AfterFunc calls f once d has elapsed. The returned Timer can
	// cancel the call if it has not happened yet.
	AfterFunc(d time.Duration, f func()) *Timer

	// Sleep blocks the calling goroutine for d.
	Sleep(d time.Duration)
}

// Timer is a pending AfterFunc call.
type Timer struct {
	stop func() bool
}

// Stop cancels the pending call. It reports false if the call already
// ran or the timer was already stopped.
func (t *Timer) Stop() bool { return t.stop() }
