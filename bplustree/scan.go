package bplustree

import (
	"github.com/pagedb/pagedb/buffer"
	"github.com/pagedb/pagedb/types"
)

const siblingTryAttempts = 4

// Entry is one (key, RecordID) pair yielded by a range scan.
type Entry[K any] struct {
	Key   K
	Value types.RecordID
}

// RangeScan returns every entry in [low, high] in ascending key order,
// honoring open/closed bounds independently on each end (spec §4.5.4);
// Unbounded on either side runs to that end of the key space. Sibling
// traversal uses try-lock-or-restart: a failed non-blocking attempt to
// latch the next leaf retries a bounded number of times before falling
// back to re-descending the tree for the first key after the last one
// seen — dberr.ErrWouldBlock never escapes this call.
func (t *BPlusTree[K]) RangeScan(low, high Bound[K]) ([]Entry[K], error) {
	var out []Entry[K]

	g, err := t.locateStart(low)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, errBufferInsufficient()
	}

	// resumeKey, once set by a restart, suppresses re-emitting entries at
	// or before the last key already output — a restart re-locates a leaf
	// by key, not by position, and that leaf may be the very one already
	// fully scanned.
	var resumeKey K
	haveResumeKey := false

	for {
		leaf, err := decodeLeaf(g.Page(), t.codec)
		if err != nil {
			g.Release()
			return nil, err
		}
		done := false
		var lastKey K
		haveLast := false
		for i, k := range leaf.keys {
			if !satisfiesLow(t.codec, k, low) {
				continue
			}
			if haveResumeKey && t.codec.Compare(k, resumeKey) <= 0 {
				continue
			}
			if pastHigh(t.codec, k, high) {
				done = true
				break
			}
			out = append(out, Entry[K]{Key: k, Value: leaf.values[i]})
			lastKey, haveLast = k, true
		}
		next := leaf.next
		g.Release()
		if done || !next.Valid() {
			return out, nil
		}
		if haveLast {
			resumeKey, haveResumeKey = lastKey, true
		}

		nextGuard, restarted, err := t.trySibling(next)
		if err != nil {
			return nil, err
		}
		if restarted {
			if !haveResumeKey {
				// Nothing matched anywhere yet; resume from low.
				nextGuard, err = t.locateStart(low)
			} else {
				nextGuard, err = t.locateLeafAfter(resumeKey)
			}
			if err != nil {
				return nil, err
			}
		}
		if nextGuard == nil {
			return out, nil
		}
		g = nextGuard
	}
}

// locateStart descends to the leaf a scan should begin at: the leftmost
// leaf when low is Unbounded, otherwise the leaf that would contain
// low.Key.
func (t *BPlusTree[K]) locateStart(low Bound[K]) (*buffer.OwnedReadGuard, error) {
	if low.Kind == BoundUnbounded {
		return t.locateLeftmost()
	}
	return t.locateLeaf(low.Key)
}

// trySibling attempts a non-blocking fetch+latch of id, retrying a bounded
// number of times. restarted=true tells the caller the attempt gave up
// and it must re-descend from the tree instead.
func (t *BPlusTree[K]) trySibling(id types.PageID) (guard *buffer.OwnedReadGuard, restarted bool, err error) {
	for attempt := 0; attempt < siblingTryAttempts; attempt++ {
		pg, ferr := t.pool.FetchPage(id)
		if ferr != nil {
			return nil, false, ferr
		}
		if pg == nil {
			return nil, false, errBufferInsufficient()
		}
		if pg.TryReadLock() {
			return t.pool.WrapReadGuard(pg), false, nil
		}
		t.pool.UnpinPage(id, false)
	}
	return nil, true, nil
}

// locateLeaf descends read-latched from the root to the leaf that would
// contain key.
func (t *BPlusTree[K]) locateLeaf(key K) (*buffer.OwnedReadGuard, error) {
	t.rootMu.RLock()
	rootID := t.rootID
	t.rootMu.RUnlock()

	g, err := t.pool.FetchReadGuard(rootID)
	if err != nil || g == nil {
		return g, err
	}
	for !isLeaf(g.Page()) {
		internal, err := decodeInternal(g.Page(), t.codec)
		if err != nil {
			g.Release()
			return nil, err
		}
		childID := internal.children[findChildIndex(internal, key, t.codec)]
		child, err := t.pool.FetchReadGuard(childID)
		g.Release()
		if err != nil || child == nil {
			return child, err
		}
		g = child
	}
	return g, nil
}

// locateLeafAfter re-descends to the leaf that would contain after —
// used when sibling try-lock gives up and the scan must resume without
// having held any latch across the attempt. RangeScan's resumeKey check
// skips the entries at or before after in that leaf.
func (t *BPlusTree[K]) locateLeafAfter(after K) (*buffer.OwnedReadGuard, error) {
	return t.locateLeaf(after)
}

// locateLeftmost descends read-latched from the root to the first leaf,
// always taking child 0 — used for scans with an Unbounded low end.
func (t *BPlusTree[K]) locateLeftmost() (*buffer.OwnedReadGuard, error) {
	t.rootMu.RLock()
	rootID := t.rootID
	t.rootMu.RUnlock()

	g, err := t.pool.FetchReadGuard(rootID)
	if err != nil || g == nil {
		return g, err
	}
	for !isLeaf(g.Page()) {
		internal, err := decodeInternal(g.Page(), t.codec)
		if err != nil {
			g.Release()
			return nil, err
		}
		child, err := t.pool.FetchReadGuard(internal.children[0])
		g.Release()
		if err != nil || child == nil {
			return child, err
		}
		g = child
	}
	return g, nil
}
