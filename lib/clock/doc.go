// Copyright 2026 The Flightlink Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock abstracts the timers that drive reconnect backoff and
// upload throttling.
//
// Components hold a Clock field and never call time.After, time.Sleep,
// or time.AfterFunc directly. Production wiring passes Real(); tests
// pass Fake() and move time forward explicitly:
//
//	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	manager := session.NewManager(session.Config{Clock: fake, ...})
//	// ... trigger a connection loss ...
//	fake.WaitForTimers(1)        // the backoff timer is registered
//	fake.Advance(5 * time.Second) // the reconnect attempt runs now
//
// WaitForTimers closes the race between a goroutine registering a
// timer and the test advancing past it.
package clock
