// Copyright 2026 The GitChain Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"testing"
	"time"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFakeNowAdvance(t *testing.T) {
	fake := Fake(epoch)
	if !fake.Now().Equal(epoch) {
		t.Fatalf("Now = %v, want %v", fake.Now(), epoch)
	}

	fake.Advance(time.Minute)
	if !fake.Now().Equal(epoch.Add(time.Minute)) {
		t.Errorf("Now after Advance = %v", fake.Now())
	}
}

func TestFakeAfterFiresAtDeadline(t *testing.T) {
	fake := Fake(epoch)
	ch := fake.After(10 * time.Second)

	fake.Advance(9 * time.Second)
	select {
	case fired := <-ch:
		t.Fatalf("fired early at %v", fired)
	default:
	}

	fake.Advance(time.Second)
	select {
	case fired := <-ch:
		if !fired.Equal(epoch.Add(10 * time.Second)) {
			t.Errorf("fire time = %v", fired)
		}
	default:
		t.Fatal("After did not fire at its deadline")
	}
}

func TestFakeAfterNonPositiveFiresImmediately(t *testing.T) {
	fake := Fake(epoch)
	select {
	case <-fake.After(0):
	default:
		t.Fatal("After(0) must fire immediately")
	}
}

func TestFakeTickerRepeatsAndStops(t *testing.T) {
	fake := Fake(epoch)
	ticker := fake.NewTicker(time.Minute)

	fake.Advance(time.Minute)
	select {
	case <-ticker.C:
	default:
		t.Fatal("first tick missing")
	}

	fake.Advance(time.Minute)
	select {
	case <-ticker.C:
	default:
		t.Fatal("second tick missing")
	}

	ticker.Stop()
	fake.Advance(time.Hour)
	select {
	case <-ticker.C:
		t.Fatal("tick after Stop")
	default:
	}
}

func TestFakeTickerDropsWhenConsumerBehind(t *testing.T) {
	fake := Fake(epoch)
	ticker := fake.NewTicker(time.Second)
	defer ticker.Stop()

	// Three intervals with no reads: channel capacity is 1, so only
	// one tick is buffered.
	fake.Advance(3 * time.Second)

	received := 0
	for {
		select {
		case <-ticker.C:
			received++
			continue
		default:
		}
		break
	}
	if received != 1 {
		t.Errorf("buffered ticks = %d, want 1", received)
	}
}
