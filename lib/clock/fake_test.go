// Copyright 2026 The Flightlink Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"testing"
	"time"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFakeClockNowMovesOnlyOnAdvance(t *testing.T) {
	fake := Fake(epoch)
	if got := fake.Now(); !got.Equal(epoch) {
		t.Fatalf("Now() = %v, want %v", got, epoch)
	}
	fake.Advance(5 * time.Second)
	if got, want := fake.Now(), epoch.Add(5*time.Second); !got.Equal(want) {
		t.Fatalf("Now() after Advance = %v, want %v", got, want)
	}
}

func TestFakeClockAfter(t *testing.T) {
	fake := Fake(epoch)
	channel := fake.After(100 * time.Millisecond)

	fake.Advance(99 * time.Millisecond)
	select {
	case <-channel:
		t.Fatal("After fired before its deadline")
	default:
	}

	fake.Advance(time.Millisecond)
	select {
	case <-channel:
	default:
		t.Fatal("After did not fire at its deadline")
	}
	if fake.PendingCount() != 0 {
		t.Fatalf("PendingCount = %d after firing, want 0", fake.PendingCount())
	}
}

func TestFakeClockAfterNonPositive(t *testing.T) {
	fake := Fake(epoch)
	for _, d := range []time.Duration{0, -time.Second} {
		select {
		case <-fake.After(d):
		default:
			t.Fatalf("After(%v) should be ready immediately", d)
		}
	}
	if fake.PendingCount() != 0 {
		t.Fatalf("non-positive After registered a timer")
	}
}

func TestFakeClockAfterFuncRunsDuringAdvance(t *testing.T) {
	fake := Fake(epoch)
	calls := 0
	fake.AfterFunc(5*time.Second, func() { calls++ })

	fake.Advance(4 * time.Second)
	if calls != 0 {
		t.Fatalf("callback ran early")
	}
	fake.Advance(time.Second)
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
	fake.Advance(time.Minute)
	if calls != 1 {
		t.Fatalf("one-shot callback ran again: calls = %d", calls)
	}
}

func TestFakeClockAfterFuncStop(t *testing.T) {
	fake := Fake(epoch)
	ran := false
	timer := fake.AfterFunc(time.Second, func() { ran = true })

	if !timer.Stop() {
		t.Fatal("Stop on a pending timer returned false")
	}
	if timer.Stop() {
		t.Fatal("second Stop returned true")
	}
	fake.Advance(time.Second)
	if ran {
		t.Fatal("stopped callback ran")
	}
}

func TestFakeClockChainedCallbacksFireInsideWindow(t *testing.T) {
	fake := Fake(epoch)
	var order []int
	fake.AfterFunc(time.Second, func() {
		order = append(order, 1)
		fake.AfterFunc(time.Second, func() { order = append(order, 2) })
	})

	// The second callback is scheduled relative to the advanced
	// time, so it lands outside this window.
	fake.Advance(time.Second)
	if len(order) != 1 {
		t.Fatalf("order = %v after first advance", order)
	}
	fake.Advance(time.Second)
	if len(order) != 2 || order[1] != 2 {
		t.Fatalf("order = %v, want [1 2]", order)
	}
}

func TestFakeClockFiresInDeadlineOrder(t *testing.T) {
	fake := Fake(epoch)
	var order []time.Duration
	for _, d := range []time.Duration{3 * time.Second, time.Second, 2 * time.Second} {
		d := d
		fake.AfterFunc(d, func() { order = append(order, d) })
	}
	fake.Advance(10 * time.Second)

	want := []time.Duration{time.Second, 2 * time.Second, 3 * time.Second}
	for index := range want {
		if order[index] != want[index] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestFakeClockWaitForTimersAndSleep(t *testing.T) {
	fake := Fake(epoch)
	done := make(chan struct{})
	go func() {
		fake.Sleep(5 * time.Second)
		close(done)
	}()

	fake.WaitForTimers(1)
	fake.Advance(5 * time.Second)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Sleep did not return after Advance")
	}
}

func TestClockImplementations(t *testing.T) {
	var _ Clock = Real()
	var _ Clock = Fake(epoch)
}
