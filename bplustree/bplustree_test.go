package bplustree

import (
	"sort"
	"sync"
	"testing"

	"github.com/pagedb/pagedb/buffer"
	"github.com/pagedb/pagedb/disk"
	"github.com/pagedb/pagedb/types"
)

func newTestPool(t *testing.T, poolSize int) *buffer.Pool {
	t.Helper()
	d, err := disk.Open("", true)
	if err != nil {
		t.Fatalf("disk.Open: %v", err)
	}
	return buffer.NewPool(d, poolSize, 2)
}

// TestInsertWithSplitsDescending covers max_size=4, inserting 99..1
// descending, then verifies every key is found and in-order traversal
// via RangeScan comes back sorted.
func TestInsertWithSplitsDescending(t *testing.T) {
	pool := newTestPool(t, 512)
	tree, err := New[int64](pool, Int64KeyCodec{}, 4)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	for i := int64(99); i >= 1; i-- {
		if err := tree.Insert(i, types.RecordID{PageID: types.PageID(i), SlotNum: 0}); err != nil {
			t.Fatalf("Insert(%d): %v", i, err)
		}
	}

	for i := int64(1); i <= 99; i++ {
		rid, ok, err := tree.Search(i)
		if err != nil {
			t.Fatalf("Search(%d): %v", i, err)
		}
		if !ok {
			t.Fatalf("Search(%d): not found", i)
		}
		if rid.PageID != types.PageID(i) {
			t.Fatalf("Search(%d) = %v, want PageID %d", i, rid, i)
		}
	}

	entries, err := tree.RangeScan(Included(int64(1)), Included(int64(99)))
	if err != nil {
		t.Fatalf("RangeScan: %v", err)
	}
	if len(entries) != 99 {
		t.Fatalf("RangeScan returned %d entries, want 99", len(entries))
	}
	if !sort.SliceIsSorted(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key }) {
		t.Fatal("RangeScan entries not sorted")
	}
}

// TestRangeScanOrderedInsertDescending covers inserting keys 1..999
// descending then range-scanning the whole key space, a sub-range, and
// an open/closed-mixed range — the three literal counts this exercises
// (999, 100, 899) mirror spec §8's search_range scenario.
func TestRangeScanOrderedInsertDescending(t *testing.T) {
	pool := newTestPool(t, 2048)
	tree, err := New[int64](pool, Int64KeyCodec{}, 8)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	for i := int64(999); i >= 1; i-- {
		if err := tree.Insert(i, types.RecordID{PageID: types.PageID(i)}); err != nil {
			t.Fatalf("Insert(%d): %v", i, err)
		}
	}

	entries, err := tree.RangeScan(Included(int64(1)), Included(int64(1000)))
	if err != nil {
		t.Fatalf("RangeScan: %v", err)
	}
	if len(entries) != 999 {
		t.Fatalf("RangeScan returned %d entries, want 999", len(entries))
	}
	for i, e := range entries {
		if e.Key != int64(i+1) {
			t.Fatalf("entries[%d].Key = %d, want %d", i, e.Key, i+1)
		}
	}

	sub, err := tree.RangeScan(Included(int64(801)), Included(int64(900)))
	if err != nil {
		t.Fatalf("RangeScan(801,900): %v", err)
	}
	if len(sub) != 100 {
		t.Fatalf("RangeScan(801,900) returned %d entries, want 100", len(sub))
	}

	openLow, err := tree.RangeScan(Excluded(int64(100)), Included(int64(1000)))
	if err != nil {
		t.Fatalf("RangeScan(Excluded(100),Included(1000)): %v", err)
	}
	if len(openLow) != 899 {
		t.Fatalf("RangeScan(Excluded(100),Included(1000)) returned %d entries, want 899", len(openLow))
	}
	if openLow[0].Key != 101 {
		t.Fatalf("RangeScan(Excluded(100),Included(1000))[0].Key = %d, want 101", openLow[0].Key)
	}

	all, err := tree.RangeScan(Unbounded[int64](), Unbounded[int64]())
	if err != nil {
		t.Fatalf("RangeScan(Unbounded,Unbounded): %v", err)
	}
	if len(all) != 999 {
		t.Fatalf("RangeScan(Unbounded,Unbounded) returned %d entries, want 999", len(all))
	}
}

// TestDeleteStealsBeforeMerging covers max_size=4: deleting enough keys
// to underflow a leaf first tries a steal from a sibling before any
// merge collapses pages. This test simply asserts delete correctness
// (presence/absence) across a sequence designed to trigger both steal
// and merge paths — a black-box check appropriate without page
// introspection.
func TestDeleteStealsBeforeMerging(t *testing.T) {
	pool := newTestPool(t, 256)
	tree, err := New[int64](pool, Int64KeyCodec{}, 4)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	for i := int64(1); i <= 20; i++ {
		if err := tree.Insert(i, types.RecordID{PageID: types.PageID(i)}); err != nil {
			t.Fatalf("Insert(%d): %v", i, err)
		}
	}

	toDelete := []int64{5, 6, 7, 8, 9, 10, 11, 12}
	for _, k := range toDelete {
		if err := tree.Delete(k); err != nil {
			t.Fatalf("Delete(%d): %v", k, err)
		}
	}

	deleted := make(map[int64]bool, len(toDelete))
	for _, k := range toDelete {
		deleted[k] = true
	}
	for i := int64(1); i <= 20; i++ {
		_, ok, err := tree.Search(i)
		if err != nil {
			t.Fatalf("Search(%d): %v", i, err)
		}
		if deleted[i] && ok {
			t.Fatalf("key %d should have been deleted", i)
		}
		if !deleted[i] && !ok {
			t.Fatalf("key %d should still be present", i)
		}
	}

	entries, err := tree.RangeScan(Included(int64(1)), Included(int64(20)))
	if err != nil {
		t.Fatalf("RangeScan: %v", err)
	}
	if len(entries) != 20-len(toDelete) {
		t.Fatalf("RangeScan returned %d entries, want %d", len(entries), 20-len(toDelete))
	}
}

// TestConcurrentInsertAndSearch covers pool_size=100, max_size=2: 10
// inserting goroutines race each other on disjoint key shards, and once
// they have all joined, 10 searching goroutines check every shard
// concurrently. Grounded on the fan-out/join shape of
// ryogrid-bltree-go-for-embedding's InsertAndFindConcurrently helper.
func TestConcurrentInsertAndSearch(t *testing.T) {
	pool := newTestPool(t, 100)
	tree, err := New[int64](pool, Int64KeyCodec{}, 2)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	const perRoutine = 20
	const routines = 10

	var wg sync.WaitGroup
	for r := 0; r < routines; r++ {
		wg.Add(1)
		go func(r int) {
			defer wg.Done()
			for i := 0; i < perRoutine; i++ {
				key := int64(r*perRoutine + i)
				_ = tree.Insert(key, types.RecordID{PageID: types.PageID(key + 1)})
			}
		}(r)
	}
	wg.Wait()

	var swg sync.WaitGroup
	for r := 0; r < routines; r++ {
		swg.Add(1)
		go func(r int) {
			defer swg.Done()
			for i := 0; i < perRoutine; i++ {
				key := int64(r*perRoutine + i)
				rid, ok, err := tree.Search(key)
				if err != nil {
					t.Errorf("Search(%d): %v", key, err)
					return
				}
				if !ok {
					t.Errorf("Search(%d): not found", key)
					return
				}
				if rid.PageID != types.PageID(key+1) {
					t.Errorf("Search(%d) = %v, want PageID %d", key, rid, key+1)
				}
			}
		}(r)
	}
	swg.Wait()
}
