package buffer

import (
	"testing"

	"github.com/pagedb/pagedb/types"
)

// TestLRUKEvictionOrder exercises the cap=7, k=2 scenario: frames with
// fewer than k accesses have infinite backward k-distance and are
// evicted before any frame with k or more accesses, oldest-access-first
// among the infinite-distance group.
func TestLRUKEvictionOrder(t *testing.T) {
	r := NewLRUKReplacer(7, 2)

	// Frames 0..4 each get one access (infinite k-distance).
	for f := types.FrameID(0); f < 5; f++ {
		r.RecordAccess(f)
		r.SetEvictable(f, true)
	}
	// Frame 5 gets two accesses (finite k-distance, not evicted first).
	r.RecordAccess(5)
	r.RecordAccess(5)
	r.SetEvictable(5, true)

	// Frame 1 gets a second access, removing it from the infinite group.
	r.RecordAccess(1)

	if got := r.Size(); got != 6 {
		t.Fatalf("Size() = %d, want 6", got)
	}

	// Remaining infinite-distance frames, oldest first: 0, 2, 3, 4.
	wantOrder := []types.FrameID{0, 2, 3, 4}
	for _, want := range wantOrder {
		got, ok := r.Evict()
		if !ok {
			t.Fatalf("Evict() ran out early, wanted frame %d", want)
		}
		if got != want {
			t.Fatalf("Evict() = %d, want %d", got, want)
		}
	}

	// Only frames 1 and 5 remain, both with finite k-distance (2
	// accesses each); 1's accesses are older so it has the larger
	// backward k-distance and is evicted first.
	got, ok := r.Evict()
	if !ok || got != 1 {
		t.Fatalf("Evict() = %v, %v, want 1, true", got, ok)
	}
	got, ok = r.Evict()
	if !ok || got != 5 {
		t.Fatalf("Evict() = %v, %v, want 5, true", got, ok)
	}
	if _, ok := r.Evict(); ok {
		t.Fatal("expected no evictable frames left")
	}
}

func TestRemoveRejectsEvictableFrame(t *testing.T) {
	r := NewLRUKReplacer(4, 2)
	r.RecordAccess(0)
	r.SetEvictable(0, true)

	if err := r.Remove(0); err == nil {
		t.Fatal("expected Remove to reject a currently evictable frame")
	}

	r.SetEvictable(0, false)
	if err := r.Remove(0); err != nil {
		t.Fatalf("Remove on non-evictable frame: %v", err)
	}
}
