// Package bplustree implements the concurrent B+Tree secondary index:
// fixed max_size internal/leaf nodes, latch crabbing for search, range
// scan, insert-with-split, and delete-with-steal-or-merge. Generalizes
// the teacher's kv.go (Set/splitPage/parentInsert/getLeafPage), which
// always splits top-down without a safety check and never merges on
// delete, to the safety-checked crabbing and steal-before-merge delete
// spec §4.5 requires.
package bplustree

import (
	"github.com/pagedb/pagedb/codec"
	"github.com/pagedb/pagedb/dberr"
	"github.com/pagedb/pagedb/page"
	"github.com/pagedb/pagedb/types"
)

type nodeHeader struct {
	tag     byte
	size    uint16 // number of keys
	maxSize uint16
	parent  types.PageID
	self    types.PageID
}

type internalNode[K any] struct {
	header   nodeHeader
	keys     []K        // len == size
	children []types.PageID // len == size+1
}

type leafNode[K any] struct {
	header nodeHeader
	prev   types.PageID
	next   types.PageID
	keys   []K
	values []types.RecordID
}

func isLeaf(pg *page.Page) bool { return pg.Tag() == page.TagLeaf }

// peekSize reads just a node's key count from its header, without
// decoding its keys or children/values — enough for a latch-crabbing
// safety check on a node the caller does not otherwise need to decode.
func peekSize(pg *page.Page) (int, error) {
	r := codec.NewReader(pg.Data[:])
	h, err := decodeHeader(r)
	if err != nil {
		return 0, dberr.Wrap(err, "peek node size")
	}
	return int(h.size), nil
}

func decodeHeader(r *codec.Reader) (nodeHeader, error) {
	var h nodeHeader
	tag, err := r.Uint8()
	if err != nil {
		return h, err
	}
	size, err := r.Uint16()
	if err != nil {
		return h, err
	}
	maxSize, err := r.Uint16()
	if err != nil {
		return h, err
	}
	parent, err := r.OptionPageID()
	if err != nil {
		return h, err
	}
	self, err := r.PageID()
	if err != nil {
		return h, err
	}
	h.tag, h.size, h.maxSize, h.parent, h.self = tag, size, maxSize, parent, self
	return h, nil
}

func encodeHeader(w *codec.Writer, h nodeHeader) {
	w.PutUint8(h.tag)
	w.PutUint16(h.size)
	w.PutUint16(h.maxSize)
	w.PutOptionPageID(h.parent)
	w.PutPageID(h.self)
}

func decodeInternal[K any](pg *page.Page, kc KeyCodec[K]) (*internalNode[K], error) {
	r := codec.NewReader(pg.Data[:])
	h, err := decodeHeader(r)
	if err != nil {
		return nil, dberr.Wrap(err, "decode internal header")
	}
	n := &internalNode[K]{header: h, keys: make([]K, h.size), children: make([]types.PageID, h.size+1)}
	for i := 0; i < int(h.size); i++ {
		n.keys[i], err = kc.Decode(r)
		if err != nil {
			return nil, dberr.Wrap(err, "decode internal key")
		}
	}
	for i := 0; i < int(h.size)+1; i++ {
		n.children[i], err = r.PageID()
		if err != nil {
			return nil, dberr.Wrap(err, "decode internal child")
		}
	}
	return n, nil
}

func encodeInternal[K any](pg *page.Page, n *internalNode[K], kc KeyCodec[K]) {
	n.header.tag = page.TagInternal
	n.header.size = uint16(len(n.keys))
	w := codec.NewWriter(page.Size)
	encodeHeader(w, n.header)
	for _, k := range n.keys {
		kc.Encode(w, k)
	}
	for _, c := range n.children {
		w.PutPageID(c)
	}
	copy(pg.Data[:], w.Bytes())
	pg.SetTag(page.TagInternal)
}

func decodeLeaf[K any](pg *page.Page, kc KeyCodec[K]) (*leafNode[K], error) {
	r := codec.NewReader(pg.Data[:])
	h, err := decodeHeader(r)
	if err != nil {
		return nil, dberr.Wrap(err, "decode leaf header")
	}
	prev, err := r.OptionPageID()
	if err != nil {
		return nil, err
	}
	next, err := r.OptionPageID()
	if err != nil {
		return nil, err
	}
	n := &leafNode[K]{header: h, prev: prev, next: next, keys: make([]K, h.size), values: make([]types.RecordID, h.size)}
	for i := 0; i < int(h.size); i++ {
		n.keys[i], err = kc.Decode(r)
		if err != nil {
			return nil, dberr.Wrap(err, "decode leaf key")
		}
	}
	for i := 0; i < int(h.size); i++ {
		n.values[i], err = r.RecordID()
		if err != nil {
			return nil, dberr.Wrap(err, "decode leaf value")
		}
	}
	return n, nil
}

func encodeLeaf[K any](pg *page.Page, n *leafNode[K], kc KeyCodec[K]) {
	n.header.tag = page.TagLeaf
	n.header.size = uint16(len(n.keys))
	w := codec.NewWriter(page.Size)
	encodeHeader(w, n.header)
	w.PutOptionPageID(n.prev)
	w.PutOptionPageID(n.next)
	for _, k := range n.keys {
		kc.Encode(w, k)
	}
	for _, v := range n.values {
		w.PutRecordID(v)
	}
	copy(pg.Data[:], w.Bytes())
	pg.SetTag(page.TagLeaf)
}

func newEmptyLeaf[K any](id types.PageID, maxSize int) *leafNode[K] {
	return &leafNode[K]{
		header: nodeHeader{tag: page.TagLeaf, maxSize: uint16(maxSize), parent: types.NullPage, self: id},
		prev:   types.NullPage,
		next:   types.NullPage,
	}
}

func newEmptyInternal[K any](id types.PageID, maxSize int) *internalNode[K] {
	return &internalNode[K]{
		header: nodeHeader{tag: page.TagInternal, maxSize: uint16(maxSize), parent: types.NullPage, self: id},
	}
}

// findChildIndex returns the index of the child to descend to for key in
// an internal node: the number of keys <= key, i.e. one past the last i
// such that keys[i] <= key, or 0 when every key is greater.
func findChildIndex[K any](n *internalNode[K], key K, kc KeyCodec[K]) int {
	lo, hi := 0, len(n.keys)
	for lo < hi {
		mid := (lo + hi) / 2
		if kc.Compare(n.keys[mid], key) <= 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// findKeyIndex returns the index of key in a leaf's keys, and whether it
// was found.
func findKeyIndex[K any](n *leafNode[K], key K, kc KeyCodec[K]) (int, bool) {
	lo, hi := 0, len(n.keys)
	for lo < hi {
		mid := (lo + hi) / 2
		c := kc.Compare(n.keys[mid], key)
		switch {
		case c < 0:
			lo = mid + 1
		case c > 0:
			hi = mid
		default:
			return mid, true
		}
	}
	return lo, false
}
