package bplustree

import (
	"github.com/pagedb/pagedb/buffer"
	"github.com/pagedb/pagedb/types"
)

// Insert adds key→rid to the tree. Duplicate keys are rejected (spec
// §3: leaf keys are unique).
func (t *BPlusTree[K]) Insert(key K, rid types.RecordID) error {
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

	var stack []*buffer.OwnedWriteGuard // unsafe ancestors, root-to-leaf order

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
		// not of cur: cur is the node that would receive a promoted
		// separator if child splits, so it must stay latched whenever
		// child might overflow.
		childSize, err := peekSize(child.Page())
		if err != nil {
			child.Release()
			releaseAll(stack, cur)
			return err
		}
		safe := childSize < t.maxSize-1
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
	if found {
		releaseAll(stack, cur)
		return errDuplicateKey()
	}
	leaf.keys = insertAt(leaf.keys, idx, key)
	leaf.values = insertValueAt(leaf.values, idx, rid)

	if len(leaf.keys) <= t.maxSize-1 {
		encodeLeaf(cur.Page(), leaf, t.codec)
		cur.MarkDirty()
		cur.Release()
		for _, g := range stack {
			g.Release()
		}
		return nil
	}

	return t.splitLeafAndPropagate(cur, leaf, stack)
}

func (t *BPlusTree[K]) splitLeafAndPropagate(leafGuard *buffer.OwnedWriteGuard, leaf *leafNode[K], stack []*buffer.OwnedWriteGuard) error {
	splitIdx := t.maxSize / 2
	rightGuard, err := t.pool.NewPageWriteGuard()
	if err != nil {
		leafGuard.Release()
		for _, g := range stack {
			g.Release()
		}
		return err
	}
	right := newEmptyLeaf[K](rightGuard.Page().ID(), t.maxSize)
	right.keys = append([]K{}, leaf.keys[splitIdx:]...)
	right.values = append([]types.RecordID{}, leaf.values[splitIdx:]...)
	right.header.parent = leaf.header.parent
	leaf.keys = leaf.keys[:splitIdx]
	leaf.values = leaf.values[:splitIdx]

	right.next = leaf.next
	right.prev = leaf.header.self
	leaf.next = right.header.self

	if right.next.Valid() {
		nextGuard, err := t.pool.FetchWriteGuard(right.next)
		if err == nil && nextGuard != nil {
			nextLeaf, derr := decodeLeaf(nextGuard.Page(), t.codec)
			if derr == nil {
				nextLeaf.prev = right.header.self
				encodeLeaf(nextGuard.Page(), nextLeaf, t.codec)
				nextGuard.MarkDirty()
			}
			nextGuard.Release()
		}
	}

	separator := right.keys[0]

	encodeLeaf(leafGuard.Page(), leaf, t.codec)
	leafGuard.MarkDirty()
	encodeLeaf(rightGuard.Page(), right, t.codec)
	rightGuard.MarkDirty()

	leftID := leaf.header.self
	rightID := right.header.self
	leafGuard.Release()
	rightGuard.Release()

	return t.insertIntoParent(stack, leftID, separator, rightID)
}

// insertIntoParent inserts (separator, rightID) into the parent of
// leftID, creating a new root if leftID had none. stack holds the
// write-latched ancestor chain collected during descent, innermost last.
func (t *BPlusTree[K]) insertIntoParent(stack []*buffer.OwnedWriteGuard, leftID types.PageID, separator K, rightID types.PageID) error {
	if len(stack) == 0 {
		return t.newRoot(leftID, separator, rightID)
	}
	parentGuard := stack[len(stack)-1]
	stack = stack[:len(stack)-1]

	parent, err := decodeInternal(parentGuard.Page(), t.codec)
	if err != nil {
		parentGuard.Release()
		for _, g := range stack {
			g.Release()
		}
		return err
	}
	idx := findChildIndex(parent, separator, t.codec)
	parent.keys = insertAt(parent.keys, idx, separator)
	parent.children = insertPageIDAt(parent.children, idx+1, rightID)

	if len(parent.keys) <= t.maxSize-1 {
		encodeInternal(parentGuard.Page(), parent, t.codec)
		parentGuard.MarkDirty()
		parentGuard.Release()
		for _, g := range stack {
			g.Release()
		}
		return nil
	}

	return t.splitInternalAndPropagate(parentGuard, parent, stack)
}

func (t *BPlusTree[K]) splitInternalAndPropagate(guard *buffer.OwnedWriteGuard, n *internalNode[K], stack []*buffer.OwnedWriteGuard) error {
	// n holds maxSize keys (one more than a non-root internal node's
	// steady-state max). medianIdx = maxSize/2 (floor) leaves
	// medianIdx keys on the left and maxSize-1-medianIdx on the right
	// after the median is promoted; both meet minInternalSize for every
	// maxSize >= 3, since promoting a key costs the split one fewer key
	// than a leaf split has to divide.
	medianIdx := t.maxSize / 2
	median := n.keys[medianIdx]

	rightGuard, err := t.pool.NewPageWriteGuard()
	if err != nil {
		guard.Release()
		for _, g := range stack {
			g.Release()
		}
		return err
	}
	right := newEmptyInternal[K](rightGuard.Page().ID(), t.maxSize)
	right.keys = append([]K{}, n.keys[medianIdx+1:]...)
	right.children = append([]types.PageID{}, n.children[medianIdx+1:]...)
	right.header.parent = n.header.parent

	n.keys = n.keys[:medianIdx]
	n.children = n.children[:medianIdx+1]

	t.reparentChildren(right.children, right.header.self)

	leftID := n.header.self
	rightID := right.header.self
	encodeInternal(guard.Page(), n, t.codec)
	guard.MarkDirty()
	encodeInternal(rightGuard.Page(), right, t.codec)
	rightGuard.MarkDirty()
	guard.Release()
	rightGuard.Release()

	return t.insertIntoParent(stack, leftID, median, rightID)
}

// reparentChildren fixes up the parent pointer stored in each of a newly
// split internal node's children.
func (t *BPlusTree[K]) reparentChildren(children []types.PageID, newParent types.PageID) {
	for _, childID := range children {
		g, err := t.pool.FetchWriteGuard(childID)
		if err != nil || g == nil {
			continue
		}
		if isLeaf(g.Page()) {
			leaf, derr := decodeLeaf(g.Page(), t.codec)
			if derr == nil {
				leaf.header.parent = newParent
				encodeLeaf(g.Page(), leaf, t.codec)
				g.MarkDirty()
			}
		} else {
			internal, derr := decodeInternal(g.Page(), t.codec)
			if derr == nil {
				internal.header.parent = newParent
				encodeInternal(g.Page(), internal, t.codec)
				g.MarkDirty()
			}
		}
		g.Release()
	}
}

// newRoot creates a fresh internal root with two children, used both
// when a leaf root splits and when an internal root splits.
func (t *BPlusTree[K]) newRoot(leftID types.PageID, separator K, rightID types.PageID) error {
	g, err := t.pool.NewPageWriteGuard()
	if err != nil {
		return err
	}
	root := newEmptyInternal[K](g.Page().ID(), t.maxSize)
	root.keys = []K{separator}
	root.children = []types.PageID{leftID, rightID}
	encodeInternal(g.Page(), root, t.codec)
	g.MarkDirty()
	newRootID := g.Page().ID()
	g.Release()

	t.reparentChildren(root.children, newRootID)

	t.rootMu.Lock()
	t.rootID = newRootID
	t.rootMu.Unlock()
	return nil
}

func releaseAll(stack []*buffer.OwnedWriteGuard, cur *buffer.OwnedWriteGuard) {
	if cur != nil {
		cur.Release()
	}
	for _, g := range stack {
		g.Release()
	}
}

func insertAt[K any](s []K, idx int, v K) []K {
	s = append(s, v)
	copy(s[idx+1:], s[idx:len(s)-1])
	s[idx] = v
	return s
}

func insertValueAt(s []types.RecordID, idx int, v types.RecordID) []types.RecordID {
	s = append(s, v)
	copy(s[idx+1:], s[idx:len(s)-1])
	s[idx] = v
	return s
}

func insertPageIDAt(s []types.PageID, idx int, v types.PageID) []types.PageID {
	s = append(s, v)
	copy(s[idx+1:], s[idx:len(s)-1])
	s[idx] = v
	return s
}
