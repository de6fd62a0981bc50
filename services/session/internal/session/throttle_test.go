package session

import (
	"fmt"
	"testing"
	"time"
)

func TestThrottleGuardAllow(t *testing.T) {
	clock := newFakeClock()
	guard := NewThrottleGuard(200 * time.Millisecond)
	guard.now = clock.Now

	if !guard.Allow("add:burger") {
		t.Fatal("Allow() first call = false, want true")
	}

	clock.Advance(10 * time.Millisecond)
	if guard.Allow("add:burger") {
		t.Error("Allow() 10ms after accept = true, want false")
	}

	clock.Advance(10 * time.Millisecond)
	if !guard.Allow("add:soda") {
		t.Error("Allow() for a different key = false, want true")
	}

	clock.Advance(250 * time.Millisecond)
	if !guard.Allow("add:burger") {
		t.Error("Allow() past the interval = false, want true")
	}
}

func TestThrottleGuardRejectionDoesNotExtendWindow(t *testing.T) {
	clock := newFakeClock()
	guard := NewThrottleGuard(200 * time.Millisecond)
	guard.now = clock.Now

	guard.Allow("qty:item-1")

	// Hammering inside the window must not push the window forward.
	for i := 0; i < 5; i++ {
		clock.Advance(30 * time.Millisecond)
		if guard.Allow("qty:item-1") {
			t.Fatalf("Allow() %dms after accept = true, want false", (i+1)*30)
		}
	}

	clock.Advance(60 * time.Millisecond)
	if !guard.Allow("qty:item-1") {
		t.Error("Allow() 210ms after the accepted call = false, want true")
	}
}

func TestThrottleGuardPrune(t *testing.T) {
	clock := newFakeClock()
	guard := NewThrottleGuard(200 * time.Millisecond)
	guard.now = clock.Now

	for i := 0; i < pruneThreshold; i++ {
		guard.Allow(fmt.Sprintf("add:product-%d", i))
	}
	if len(guard.last) != pruneThreshold {
		t.Fatalf("guard entries = %d, want %d", len(guard.last), pruneThreshold)
	}

	clock.Advance(time.Second)
	guard.Allow("add:fresh")

	// Every stale entry is gone; only the newly accepted key remains.
	if len(guard.last) != 1 {
		t.Errorf("guard entries after prune = %d, want 1", len(guard.last))
	}
	if _, ok := guard.last["add:fresh"]; !ok {
		t.Error("prune should keep the freshly accepted key")
	}
}
