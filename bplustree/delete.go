package bplustree

import (
	"github.com/pagedb/pagedb/buffer"
	"github.com/pagedb/pagedb/dberr"
	"github.com/pagedb/pagedb/types"
)

// Delete removes key from the tree, rebalancing via steal-then-merge
// (spec §4.5.6): an underflowing node first tries to borrow an entry
// from a sibling through the shared parent separator, and only merges
// with a sibling when neither can spare one. A root that becomes an
// internal node with a single child collapses, replacing the root with
// that child.
func (t *BPlusTree[K]) Delete(key K) error {
	t.rootMu.Lock()
	rootID := t.rootID
	t.rootMu.Unlock()

	cur, err := t.pool.FetchWriteGuard(rootID)
	if err != nil {
		return err
	}
	if cur == nil {
		return errBufferInsufficient()
	}

	var stack []*buffer.OwnedWriteGuard

	for !isLeaf(cur.Page()) {
		internal, err := decodeInternal(cur.Page(), t.codec)
		if err != nil {
			releaseAll(stack, cur)
			return err
		}
		childIdx := findChildIndex(internal, key, t.codec)
		childID := internal.children[childIdx]
		child, err := t.pool.FetchWriteGuard(childID)
		if err != nil {
			releaseAll(stack, cur)
			return err
		}
		if child == nil {
			releaseAll(stack, cur)
			return errBufferInsufficient()
		}

		// Safety is a property of the child about to be descended into,
		// not of cur: a child is safe from underflow propagation if
		// removing one entry still leaves it above the minimum size, in
		// which case it can absorb any rebalancing from below without
		// needing cur's help, and cur (and its own ancestors) can be
		// released.
		childSize, err := peekSize(child.Page())
		if err != nil {
			child.Release()
			releaseAll(stack, cur)
			return err
		}
		childMin := t.minSize()
		if !isLeaf(child.Page()) {
			childMin = t.minInternalSize()
		}
		safe := childSize > childMin
		if safe {
			releaseAll(stack, cur)
			stack = stack[:0]
		} else {
			stack = append(stack, cur)
		}
		cur = child
	}

	leaf, err := decodeLeaf(cur.Page(), t.codec)
	if err != nil {
		releaseAll(stack, cur)
		return err
	}
	idx, found := findKeyIndex(leaf, key, t.codec)
	if !found {
		releaseAll(stack, cur)
		return dberr.Wrap(dberr.ErrNotFound, "bplustree: delete")
	}
	leaf.keys = append(leaf.keys[:idx], leaf.keys[idx+1:]...)
	leaf.values = append(leaf.values[:idx], leaf.values[idx+1:]...)

	if len(stack) == 0 {
		// Leaf is the root (or was deemed globally safe); no
		// underflow handling applies to a rootless-parent leaf.
		encodeLeaf(cur.Page(), leaf, t.codec)
		cur.MarkDirty()
		cur.Release()
		return nil
	}

	if len(leaf.keys) >= t.minSize() {
		encodeLeaf(cur.Page(), leaf, t.codec)
		cur.MarkDirty()
		cur.Release()
		for _, g := range stack {
			g.Release()
		}
		return nil
	}

	return t.fixLeafUnderflow(cur, leaf, stack)
}

func (t *BPlusTree[K]) fixLeafUnderflow(leafGuard *buffer.OwnedWriteGuard, leaf *leafNode[K], stack []*buffer.OwnedWriteGuard) error {
	parentGuard := stack[len(stack)-1]
	stack = stack[:len(stack)-1]

	parent, err := decodeInternal(parentGuard.Page(), t.codec)
	if err != nil {
		leafGuard.Release()
		parentGuard.Release()
		for _, g := range stack {
			g.Release()
		}
		return err
	}
	myIdx := indexOfChild(parent.children, leaf.header.self)

	if myIdx > 0 {
		leftGuard, lerr := t.pool.FetchWriteGuard(parent.children[myIdx-1])
		if lerr == nil && leftGuard != nil {
			left, derr := decodeLeaf(leftGuard.Page(), t.codec)
			if derr == nil && len(left.keys) > t.minSize() {
				stolenKey := left.keys[len(left.keys)-1]
				stolenVal := left.values[len(left.values)-1]
				left.keys = left.keys[:len(left.keys)-1]
				left.values = left.values[:len(left.values)-1]
				leaf.keys = append([]K{stolenKey}, leaf.keys...)
				leaf.values = append([]types.RecordID{stolenVal}, leaf.values...)
				parent.keys[myIdx-1] = leaf.keys[0]

				encodeLeaf(leftGuard.Page(), left, t.codec)
				leftGuard.MarkDirty()
				encodeLeaf(leafGuard.Page(), leaf, t.codec)
				leafGuard.MarkDirty()
				encodeInternal(parentGuard.Page(), parent, t.codec)
				parentGuard.MarkDirty()
				leftGuard.Release()
				leafGuard.Release()
				parentGuard.Release()
				for _, g := range stack {
					g.Release()
				}
				return nil
			}
			leftGuard.Release()
		}
	}

	if myIdx < len(parent.children)-1 {
		rightGuard, rerr := t.pool.FetchWriteGuard(parent.children[myIdx+1])
		if rerr == nil && rightGuard != nil {
			right, derr := decodeLeaf(rightGuard.Page(), t.codec)
			if derr == nil && len(right.keys) > t.minSize() {
				stolenKey := right.keys[0]
				stolenVal := right.values[0]
				right.keys = right.keys[1:]
				right.values = right.values[1:]
				leaf.keys = append(leaf.keys, stolenKey)
				leaf.values = append(leaf.values, stolenVal)
				parent.keys[myIdx] = right.keys[0]

				encodeLeaf(rightGuard.Page(), right, t.codec)
				rightGuard.MarkDirty()
				encodeLeaf(leafGuard.Page(), leaf, t.codec)
				leafGuard.MarkDirty()
				encodeInternal(parentGuard.Page(), parent, t.codec)
				parentGuard.MarkDirty()
				rightGuard.Release()
				leafGuard.Release()
				parentGuard.Release()
				for _, g := range stack {
					g.Release()
				}
				return nil
			}
			rightGuard.Release()
		}
	}

	// Neither sibling can spare an entry: merge.
	if myIdx > 0 {
		leftGuard, err := t.pool.FetchWriteGuard(parent.children[myIdx-1])
		if err != nil {
			leafGuard.Release()
			parentGuard.Release()
			for _, g := range stack {
				g.Release()
			}
			return err
		}
		left, err := decodeLeaf(leftGuard.Page(), t.codec)
		if err != nil {
			leftGuard.Release()
			leafGuard.Release()
			parentGuard.Release()
			for _, g := range stack {
				g.Release()
			}
			return err
		}
		left.keys = append(left.keys, leaf.keys...)
		left.values = append(left.values, leaf.values...)
		left.next = leaf.next
		if left.next.Valid() {
			t.fixNextPrev(left.next, left.header.self)
		}
		encodeLeaf(leftGuard.Page(), left, t.codec)
		leftGuard.MarkDirty()
		leftGuard.Release()

		leafID := leaf.header.self
		parent.keys = append(parent.keys[:myIdx-1], parent.keys[myIdx:]...)
		parent.children = append(parent.children[:myIdx], parent.children[myIdx+1:]...)
		leafGuard.Release()
		_, _ = t.pool.DeletePage(leafID)

		return t.fixInternalAfterRemoval(parentGuard, parent, stack)
	}

	// myIdx == 0: merge right sibling into this leaf instead.
	rightGuard, err := t.pool.FetchWriteGuard(parent.children[myIdx+1])
	if err != nil {
		leafGuard.Release()
		parentGuard.Release()
		for _, g := range stack {
			g.Release()
		}
		return err
	}
	right, err := decodeLeaf(rightGuard.Page(), t.codec)
	if err != nil {
		rightGuard.Release()
		leafGuard.Release()
		parentGuard.Release()
		for _, g := range stack {
			g.Release()
		}
		return err
	}
	leaf.keys = append(leaf.keys, right.keys...)
	leaf.values = append(leaf.values, right.values...)
	leaf.next = right.next
	if leaf.next.Valid() {
		t.fixNextPrev(leaf.next, leaf.header.self)
	}
	encodeLeaf(leafGuard.Page(), leaf, t.codec)
	leafGuard.MarkDirty()
	leafGuard.Release()

	rightID := right.header.self
	parent.keys = append(parent.keys[:myIdx], parent.keys[myIdx+1:]...)
	parent.children = append(parent.children[:myIdx+1], parent.children[myIdx+2:]...)
	rightGuard.Release()
	_, _ = t.pool.DeletePage(rightID)

	return t.fixInternalAfterRemoval(parentGuard, parent, stack)
}

// fixNextPrev updates nodeID's leaf prev pointer to newPrev.
func (t *BPlusTree[K]) fixNextPrev(nodeID, newPrev types.PageID) {
	g, err := t.pool.FetchWriteGuard(nodeID)
	if err != nil || g == nil {
		return
	}
	n, derr := decodeLeaf(g.Page(), t.codec)
	if derr == nil {
		n.prev = newPrev
		encodeLeaf(g.Page(), n, t.codec)
		g.MarkDirty()
	}
	g.Release()
}

func (t *BPlusTree[K]) fixInternalAfterRemoval(guard *buffer.OwnedWriteGuard, n *internalNode[K], stack []*buffer.OwnedWriteGuard) error {
	if len(stack) == 0 {
		// n is root.
		if len(n.children) == 1 {
			newRootID := n.children[0]
			t.collapseRootTo(newRootID)
			guard.MarkDirty()
			guard.Release()
			_, _ = t.pool.DeletePage(n.header.self)
			return nil
		}
		encodeInternal(guard.Page(), n, t.codec)
		guard.MarkDirty()
		guard.Release()
		return nil
	}

	if len(n.keys) >= t.minInternalSize() {
		encodeInternal(guard.Page(), n, t.codec)
		guard.MarkDirty()
		guard.Release()
		for _, g := range stack {
			g.Release()
		}
		return nil
	}

	return t.fixInternalUnderflow(guard, n, stack)
}

func (t *BPlusTree[K]) collapseRootTo(newRootID types.PageID) {
	g, err := t.pool.FetchWriteGuard(newRootID)
	if err == nil && g != nil {
		if isLeaf(g.Page()) {
			leaf, derr := decodeLeaf(g.Page(), t.codec)
			if derr == nil {
				leaf.header.parent = types.NullPage
				encodeLeaf(g.Page(), leaf, t.codec)
				g.MarkDirty()
			}
		} else {
			internal, derr := decodeInternal(g.Page(), t.codec)
			if derr == nil {
				internal.header.parent = types.NullPage
				encodeInternal(g.Page(), internal, t.codec)
				g.MarkDirty()
			}
		}
		g.Release()
	}
	t.rootMu.Lock()
	t.rootID = newRootID
	t.rootMu.Unlock()
}

func (t *BPlusTree[K]) fixInternalUnderflow(guard *buffer.OwnedWriteGuard, n *internalNode[K], stack []*buffer.OwnedWriteGuard) error {
	parentGuard := stack[len(stack)-1]
	stack = stack[:len(stack)-1]
	parent, err := decodeInternal(parentGuard.Page(), t.codec)
	if err != nil {
		guard.Release()
		parentGuard.Release()
		for _, g := range stack {
			g.Release()
		}
		return err
	}
	myIdx := indexOfChild(parent.children, n.header.self)

	if myIdx > 0 {
		leftGuard, err := t.pool.FetchWriteGuard(parent.children[myIdx-1])
		if err == nil && leftGuard != nil {
			left, derr := decodeInternal(leftGuard.Page(), t.codec)
			if derr == nil && len(left.keys) > t.minInternalSize() {
				borrowedChild := left.children[len(left.children)-1]
				n.keys = append([]K{parent.keys[myIdx-1]}, n.keys...)
				n.children = append([]types.PageID{borrowedChild}, n.children...)
				parent.keys[myIdx-1] = left.keys[len(left.keys)-1]
				left.keys = left.keys[:len(left.keys)-1]
				left.children = left.children[:len(left.children)-1]

				t.reparentChildren([]types.PageID{borrowedChild}, n.header.self)
				encodeInternal(leftGuard.Page(), left, t.codec)
				leftGuard.MarkDirty()
				encodeInternal(guard.Page(), n, t.codec)
				guard.MarkDirty()
				encodeInternal(parentGuard.Page(), parent, t.codec)
				parentGuard.MarkDirty()
				leftGuard.Release()
				guard.Release()
				parentGuard.Release()
				for _, g := range stack {
					g.Release()
				}
				return nil
			}
			leftGuard.Release()
		}
	}

	if myIdx < len(parent.children)-1 {
		rightGuard, err := t.pool.FetchWriteGuard(parent.children[myIdx+1])
		if err == nil && rightGuard != nil {
			right, derr := decodeInternal(rightGuard.Page(), t.codec)
			if derr == nil && len(right.keys) > t.minInternalSize() {
				borrowedChild := right.children[0]
				n.keys = append(n.keys, parent.keys[myIdx])
				n.children = append(n.children, borrowedChild)
				parent.keys[myIdx] = right.keys[0]
				right.keys = right.keys[1:]
				right.children = right.children[1:]

				t.reparentChildren([]types.PageID{borrowedChild}, n.header.self)
				encodeInternal(rightGuard.Page(), right, t.codec)
				rightGuard.MarkDirty()
				encodeInternal(guard.Page(), n, t.codec)
				guard.MarkDirty()
				encodeInternal(parentGuard.Page(), parent, t.codec)
				parentGuard.MarkDirty()
				rightGuard.Release()
				guard.Release()
				parentGuard.Release()
				for _, g := range stack {
					g.Release()
				}
				return nil
			}
			rightGuard.Release()
		}
	}

	// Merge with a sibling through the parent separator.
	if myIdx > 0 {
		leftGuard, err := t.pool.FetchWriteGuard(parent.children[myIdx-1])
		if err != nil {
			guard.Release()
			parentGuard.Release()
			for _, g := range stack {
				g.Release()
			}
			return err
		}
		left, err := decodeInternal(leftGuard.Page(), t.codec)
		if err != nil {
			leftGuard.Release()
			guard.Release()
			parentGuard.Release()
			for _, g := range stack {
				g.Release()
			}
			return err
		}
		left.keys = append(left.keys, parent.keys[myIdx-1])
		left.keys = append(left.keys, n.keys...)
		left.children = append(left.children, n.children...)
		t.reparentChildren(n.children, left.header.self)
		encodeInternal(leftGuard.Page(), left, t.codec)
		leftGuard.MarkDirty()
		leftGuard.Release()

		nID := n.header.self
		parent.keys = append(parent.keys[:myIdx-1], parent.keys[myIdx:]...)
		parent.children = append(parent.children[:myIdx], parent.children[myIdx+1:]...)
		guard.Release()
		_, _ = t.pool.DeletePage(nID)
		return t.fixInternalAfterRemoval(parentGuard, parent, stack)
	}

	rightGuard, err := t.pool.FetchWriteGuard(parent.children[myIdx+1])
	if err != nil {
		guard.Release()
		parentGuard.Release()
		for _, g := range stack {
			g.Release()
		}
		return err
	}
	right, err := decodeInternal(rightGuard.Page(), t.codec)
	if err != nil {
		rightGuard.Release()
		guard.Release()
		parentGuard.Release()
		for _, g := range stack {
			g.Release()
		}
		return err
	}
	n.keys = append(n.keys, parent.keys[myIdx])
	n.keys = append(n.keys, right.keys...)
	n.children = append(n.children, right.children...)
	t.reparentChildren(right.children, n.header.self)
	encodeInternal(guard.Page(), n, t.codec)
	guard.MarkDirty()
	guard.Release()

	rightID := right.header.self
	parent.keys = append(parent.keys[:myIdx], parent.keys[myIdx+1:]...)
	parent.children = append(parent.children[:myIdx+1], parent.children[myIdx+2:]...)
	rightGuard.Release()
	_, _ = t.pool.DeletePage(rightID)
	return t.fixInternalAfterRemoval(parentGuard, parent, stack)
}

func indexOfChild(children []types.PageID, id types.PageID) int {
	for i, c := range children {
		if c == id {
			return i
		}
	}
	return -1
}
