package assistant

import (
	"context"
	"testing"
)

func TestTurnRegistryNewTurnCancelsPrevious(t *testing.T) {
	r := NewTurnRegistry()

	first, releaseFirst := r.Begin(context.Background(), "u1", "p1")
	second, releaseSecond := r.Begin(context.Background(), "u1", "p1")
	defer releaseSecond()

	if first.Err() == nil {
		t.Fatal("first turn should be cancelled by the second")
	}
	if second.Err() != nil {
		t.Fatal("second turn should be live")
	}

	// releasing the replaced turn must not drop the live one
	releaseFirst()
	if r.Active() != 1 {
		t.Fatalf("Active() = %d, want 1", r.Active())
	}
}

func TestTurnRegistryScopesByProject(t *testing.T) {
	r := NewTurnRegistry()
	a, releaseA := r.Begin(context.Background(), "u1", "p1")
	defer releaseA()
	b, releaseB := r.Begin(context.Background(), "u1", "p2")
	defer releaseB()

	if a.Err() != nil || b.Err() != nil {
		t.Fatal("turns on different projects must not cancel each other")
	}
}

func TestTurnRegistryAbort(t *testing.T) {
	r := NewTurnRegistry()
	ctx, release := r.Begin(context.Background(), "u1", "p1")
	defer release()

	if !r.Abort("u1", "p1") {
		t.Fatal("Abort() = false, want true")
	}
	if ctx.Err() == nil {
		t.Fatal("aborted turn context not cancelled")
	}
	if r.Abort("u1", "p1") {
		t.Fatal("second Abort() should report nothing in flight")
	}
	if r.Active() != 0 {
		t.Fatalf("Active() = %d, want 0", r.Active())
	}
}
