// Copyright 2026 The CodeShield Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"testing"
	"time"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFakeClockNowMovesOnlyOnAdvance(t *testing.T) {
	clock := Fake(epoch)
	if got := clock.Now(); !got.Equal(epoch) {
		t.Fatalf("Now() = %v, want %v", got, epoch)
	}
	clock.Advance(3 * time.Second)
	if got, want := clock.Now(), epoch.Add(3*time.Second); !got.Equal(want) {
		t.Fatalf("Now() after Advance = %v, want %v", got, want)
	}
}

func TestFakeClockAfter(t *testing.T) {
	clock := Fake(epoch)
	channel := clock.After(2 * time.Second)

	clock.Advance(time.Second)
	select {
	case <-channel:
		t.Fatal("After fired before its deadline")
	default:
	}

	clock.Advance(time.Second)
	select {
	case <-channel:
	default:
		t.Fatal("After did not fire at its deadline")
	}
}

func TestFakeClockAfterFuncRunsInDeadlineOrder(t *testing.T) {
	clock := Fake(epoch)
	var order []int
	clock.AfterFunc(6*time.Second, func() { order = append(order, 6) })
	clock.AfterFunc(2*time.Second, func() { order = append(order, 2) })
	clock.AfterFunc(4*time.Second, func() { order = append(order, 4) })

	clock.Advance(10 * time.Second)

	want := []int{2, 4, 6}
	if len(order) != len(want) {
		t.Fatalf("fired %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("fired %v, want %v", order, want)
		}
	}
}

func TestFakeClockAfterFuncStop(t *testing.T) {
	clock := Fake(epoch)
	fired := false
	timer := clock.AfterFunc(2*time.Second, func() { fired = true })

	if !timer.Stop() {
		t.Fatal("Stop on a pending timer returned false")
	}
	if timer.Stop() {
		t.Fatal("second Stop returned true")
	}
	if clock.PendingCount() != 0 {
		t.Fatalf("PendingCount = %d after Stop, want 0", clock.PendingCount())
	}

	clock.Advance(5 * time.Second)
	if fired {
		t.Fatal("stopped timer fired")
	}
}

func TestFakeClockAfterFuncRegisteredByCallback(t *testing.T) {
	clock := Fake(epoch)
	calls := 0
	clock.AfterFunc(time.Second, func() {
		calls++
		clock.AfterFunc(time.Second, func() { calls++ })
	})

	clock.Advance(2 * time.Second)
	if calls != 1 {
		t.Fatalf("calls after first Advance = %d, want 1", calls)
	}
	clock.Advance(time.Second)
	if calls != 2 {
		t.Fatalf("calls after second Advance = %d, want 2", calls)
	}
}

func TestFakeClockTicker(t *testing.T) {
	clock := Fake(epoch)
	ticker := clock.NewTicker(3 * time.Second)
	defer ticker.Stop()

	for i := 1; i <= 3; i++ {
		clock.Advance(3 * time.Second)
		select {
		case tick := <-ticker.C:
			if want := epoch.Add(time.Duration(i) * 3 * time.Second); !tick.Equal(want) {
				t.Fatalf("tick %d at %v, want %v", i, tick, want)
			}
		default:
			t.Fatalf("tick %d not delivered", i)
		}
	}

	ticker.Stop()
	clock.Advance(3 * time.Second)
	select {
	case <-ticker.C:
		t.Fatal("tick delivered after Stop")
	default:
	}
}

func TestFakeClockWaitForTimers(t *testing.T) {
	clock := Fake(epoch)
	done := make(chan struct{})
	go func() {
		<-clock.After(time.Second)
		close(done)
	}()

	clock.WaitForTimers(1)
	clock.Advance(time.Second)
	<-done
}
