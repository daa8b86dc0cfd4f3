package bplustree

import (
	"sync"

	"github.com/pagedb/pagedb/buffer"
	"github.com/pagedb/pagedb/dberr"
	"github.com/pagedb/pagedb/types"
)

// BPlusTree is a concurrent B+Tree index over keys of type K and values
// of type types.RecordID, backed by a buffer.Pool. All structural
// operations latch top-down in pool→page order (the pool itself isn't a
// latch here; the root-id latch below stands in for spec's "root latch"
// ahead of any page latch).
type BPlusTree[K any] struct {
	pool    *buffer.Pool
	codec   KeyCodec[K]
	maxSize int

	rootMu sync.RWMutex
	rootID types.PageID
}

// New creates an empty B+Tree: a single empty leaf page as the root.
// maxSize bounds the number of entries an internal node's key array or a
// leaf's entry array may hold before it must split.
func New[K any](pool *buffer.Pool, kc KeyCodec[K], maxSize int) (*BPlusTree[K], error) {
	if maxSize < 3 {
		return nil, dberr.Wrapf(dberr.ErrEncoding, "max_size %d too small", maxSize)
	}
	g, err := pool.NewPageWriteGuard()
	if err != nil {
		return nil, err
	}
	leaf := newEmptyLeaf[K](g.Page().ID(), maxSize)
	encodeLeaf(g.Page(), leaf, kc)
	g.MarkDirty()
	rootID := g.Page().ID()
	g.Release()
	return &BPlusTree[K]{pool: pool, codec: kc, maxSize: maxSize, rootID: rootID}, nil
}

// Open attaches a BPlusTree to an existing root page, for reopening a
// table's index after process restart.
func Open[K any](pool *buffer.Pool, kc KeyCodec[K], maxSize int, rootID types.PageID) *BPlusTree[K] {
	return &BPlusTree[K]{pool: pool, codec: kc, maxSize: maxSize, rootID: rootID}
}

// RootID returns the current root page id, the value Open takes to
// reattach the tree.
func (t *BPlusTree[K]) RootID() types.PageID {
	t.rootMu.RLock()
	defer t.rootMu.RUnlock()
	return t.rootID
}

// minSize is the non-root minimum entry count for a leaf (spec §3:
// [⌈max_size/2⌉, max_size−1]).
func (t *BPlusTree[K]) minSize() int {
	return (t.maxSize + 1) / 2 // ceil(max_size/2)
}

// minInternalSize is the non-root minimum key count for an internal
// node. An internal node has one more child than it has keys, so its
// minimum child count (⌈max_size/2⌉, the same bound a leaf's entry
// count obeys) corresponds to one fewer key than minSize: splitting an
// overflowed internal node always promotes one key to the parent, so
// only max_size-1 keys remain to divide between the two siblings, and
// reconciling that with minSize on both sides is only possible for the
// weaker, one-less bound a node's child (not key) count must meet.
func (t *BPlusTree[K]) minInternalSize() int {
	return t.minSize() - 1
}

// Search performs a point lookup, crabbing read latches top-down:
// a child's read latch is acquired before its parent's is released,
// and the parent is always released immediately after since a read
// descent is never unsafe.
func (t *BPlusTree[K]) Search(key K) (types.RecordID, bool, error) {
	t.rootMu.RLock()
	rootID := t.rootID
	t.rootMu.RUnlock()

	g, err := t.pool.FetchReadGuard(rootID)
	if err != nil {
		return types.RecordID{}, false, err
	}
	if g == nil {
		return types.RecordID{}, false, dberr.ErrBufferInsufficient
	}
	for {
		if isLeaf(g.Page()) {
			leaf, err := decodeLeaf(g.Page(), t.codec)
			if err != nil {
				g.Release()
				return types.RecordID{}, false, err
			}
			idx, ok := findKeyIndex(leaf, key, t.codec)
			g.Release()
			if !ok {
				return types.RecordID{}, false, nil
			}
			return leaf.values[idx], true, nil
		}
		internal, err := decodeInternal(g.Page(), t.codec)
		if err != nil {
			g.Release()
			return types.RecordID{}, false, err
		}
		childID := internal.children[findChildIndex(internal, key, t.codec)]
		childGuard, err := t.pool.FetchReadGuard(childID)
		g.Release()
		if err != nil {
			return types.RecordID{}, false, err
		}
		if childGuard == nil {
			return types.RecordID{}, false, dberr.ErrBufferInsufficient
		}
		g = childGuard
	}
}
