// Package heap implements the table heap: a descriptor page plus a
// singly linked list of tuple-node pages holding a table's actual row
// data. Generalizes the teacher's single-structure kv.go B-tree (which
// stores row bytes as B-tree values directly) into the separate
// heap-plus-index split spec §3/§4.6 describes, grounded where the
// teacher is silent on Rust original_source's storage/table.rs and
// storage/page/table.rs (descriptor start/end/next_table + tuple array).
package heap

import (
	"github.com/pagedb/pagedb/buffer"
	"github.com/pagedb/pagedb/codec"
	"github.com/pagedb/pagedb/dberr"
	"github.com/pagedb/pagedb/page"
	"github.com/pagedb/pagedb/types"
)

// Heap is a table's tuple storage: one descriptor page, N tuple-node
// pages linked start→...→end.
type Heap struct {
	pool        *buffer.Pool
	schema      types.Schema
	descriptorID types.PageID
}

// descriptor is the decoded form of the heap's descriptor page.
type descriptor struct {
	start, end, nextTable types.PageID
}

// Create allocates a fresh, empty heap: one descriptor page pointing to
// one empty tuple-node page.
func Create(pool *buffer.Pool, schema types.Schema) (*Heap, error) {
	nodeGuard, err := pool.NewPageWriteGuard()
	if err != nil {
		return nil, err
	}
	node := &tupleNode{self: nodeGuard.Page().ID(), next: types.NullPage}
	encodeTupleNode(nodeGuard.Page(), node, schema)
	nodeGuard.MarkDirty()
	nodeID := nodeGuard.Page().ID()
	nodeGuard.Release()

	descGuard, err := pool.NewPageWriteGuard()
	if err != nil {
		return nil, err
	}
	d := descriptor{start: nodeID, end: nodeID, nextTable: types.NullPage}
	encodeDescriptor(descGuard.Page(), d)
	descGuard.MarkDirty()
	descID := descGuard.Page().ID()
	descGuard.Release()

	return &Heap{pool: pool, schema: schema, descriptorID: descID}, nil
}

// Open attaches to an existing heap by its descriptor page id.
func Open(pool *buffer.Pool, schema types.Schema, descriptorID types.PageID) *Heap {
	return &Heap{pool: pool, schema: schema, descriptorID: descriptorID}
}

// DescriptorID returns this heap's descriptor page id, the value Open
// takes to reattach the heap.
func (h *Heap) DescriptorID() types.PageID { return h.descriptorID }

func (h *Heap) readDescriptor() (descriptor, error) {
	g, err := h.pool.FetchReadGuard(h.descriptorID)
	if err != nil {
		return descriptor{}, err
	}
	if g == nil {
		return descriptor{}, dberr.ErrBufferInsufficient
	}
	defer g.Release()
	return decodeDescriptor(g.Page())
}

// Insert appends tuple to the end tuple-node page, allocating a new node
// if the current end page is full, and returns its assigned RecordID.
func (h *Heap) Insert(tuple types.Tuple) (types.RecordID, error) {
	descGuard, err := h.pool.FetchWriteGuard(h.descriptorID)
	if err != nil {
		return types.RecordID{}, err
	}
	if descGuard == nil {
		return types.RecordID{}, dberr.ErrBufferInsufficient
	}
	d, err := decodeDescriptor(descGuard.Page())
	if err != nil {
		descGuard.Release()
		return types.RecordID{}, err
	}

	endGuard, err := h.pool.FetchWriteGuard(d.end)
	if err != nil {
		descGuard.Release()
		return types.RecordID{}, err
	}
	node, err := decodeTupleNode(endGuard.Page(), h.schema)
	if err != nil {
		endGuard.Release()
		descGuard.Release()
		return types.RecordID{}, err
	}

	if !canFit(endGuard.Page(), node, tuple) {
		newGuard, err := h.pool.NewPageWriteGuard()
		if err != nil {
			endGuard.Release()
			descGuard.Release()
			return types.RecordID{}, err
		}
		node.next = newGuard.Page().ID()
		encodeTupleNode(endGuard.Page(), node, h.schema)
		endGuard.MarkDirty()
		endGuard.Release()

		newNode := &tupleNode{self: newGuard.Page().ID(), next: types.NullPage}
		d.end = newNode.self
		encodeDescriptor(descGuard.Page(), d)
		descGuard.MarkDirty()
		descGuard.Release()

		endGuard = newGuard
		node = newNode
	} else {
		descGuard.Release()
	}

	slot := uint32(len(node.tuples))
	node.tuples = append(node.tuples, tupleSlot{tuple: tuple, deleted: false})
	encodeTupleNode(endGuard.Page(), node, h.schema)
	endGuard.MarkDirty()
	rid := types.RecordID{PageID: node.self, SlotNum: slot}
	endGuard.Release()
	return rid, nil
}

// Read returns the tuple at rid, or ErrNotFound if it was deleted.
func (h *Heap) Read(rid types.RecordID) (types.Tuple, error) {
	g, err := h.pool.FetchReadGuard(rid.PageID)
	if err != nil {
		return types.Tuple{}, err
	}
	if g == nil {
		return types.Tuple{}, dberr.ErrBufferInsufficient
	}
	defer g.Release()
	node, err := decodeTupleNode(g.Page(), h.schema)
	if err != nil {
		return types.Tuple{}, err
	}
	if int(rid.SlotNum) >= len(node.tuples) || node.tuples[rid.SlotNum].deleted {
		return types.Tuple{}, dberr.Wrapf(dberr.ErrNotFound, "tuple %s", rid)
	}
	return node.tuples[rid.SlotNum].tuple, nil
}

// Delete tombstones the tuple at rid, returning it. It is a logical
// delete only — no compaction happens, per spec.
func (h *Heap) Delete(rid types.RecordID) (types.Tuple, error) {
	g, err := h.pool.FetchWriteGuard(rid.PageID)
	if err != nil {
		return types.Tuple{}, err
	}
	if g == nil {
		return types.Tuple{}, dberr.ErrBufferInsufficient
	}
	defer g.Release()
	node, err := decodeTupleNode(g.Page(), h.schema)
	if err != nil {
		return types.Tuple{}, err
	}
	if int(rid.SlotNum) >= len(node.tuples) || node.tuples[rid.SlotNum].deleted {
		return types.Tuple{}, dberr.Wrapf(dberr.ErrNotFound, "tuple %s", rid)
	}
	old := node.tuples[rid.SlotNum].tuple
	node.tuples[rid.SlotNum].deleted = true
	encodeTupleNode(g.Page(), node, h.schema)
	g.MarkDirty()
	return old, nil
}

// Update overwrites the tuple at rid in place. RecordID never changes.
func (h *Heap) Update(rid types.RecordID, tuple types.Tuple) error {
	g, err := h.pool.FetchWriteGuard(rid.PageID)
	if err != nil {
		return err
	}
	if g == nil {
		return dberr.ErrBufferInsufficient
	}
	defer g.Release()
	node, err := decodeTupleNode(g.Page(), h.schema)
	if err != nil {
		return err
	}
	if int(rid.SlotNum) >= len(node.tuples) || node.tuples[rid.SlotNum].deleted {
		return dberr.Wrapf(dberr.ErrNotFound, "tuple %s", rid)
	}
	node.tuples[rid.SlotNum].tuple = tuple
	encodeTupleNode(g.Page(), node, h.schema)
	g.MarkDirty()
	return nil
}

// Scan yields every non-tombstoned (RecordID, Tuple) pair in heap order:
// start → next → ... → end.
func (h *Heap) Scan() ([]ScannedTuple, error) {
	d, err := h.readDescriptor()
	if err != nil {
		return nil, err
	}
	var out []ScannedTuple
	cur := d.start
	for cur.Valid() {
		g, err := h.pool.FetchReadGuard(cur)
		if err != nil {
			return nil, err
		}
		if g == nil {
			return nil, dberr.ErrBufferInsufficient
		}
		node, err := decodeTupleNode(g.Page(), h.schema)
		if err != nil {
			g.Release()
			return nil, err
		}
		for i, slot := range node.tuples {
			if slot.deleted {
				continue
			}
			out = append(out, ScannedTuple{
				RecordID: types.RecordID{PageID: cur, SlotNum: uint32(i)},
				Tuple:    slot.tuple,
			})
		}
		next := node.next
		g.Release()
		cur = next
	}
	return out, nil
}

// ScannedTuple pairs a tuple with the RecordID it was read from.
type ScannedTuple struct {
	RecordID types.RecordID
	Tuple    types.Tuple
}

// canFit is a conservative estimate of whether tuple still fits in
// node's page: sum of already-encoded tuple sizes plus the new tuple's
// size against page.Size, leaving room for the node header.
func canFit(pg *page.Page, node *tupleNode, tuple types.Tuple) bool {
	const headerBudget = 64
	used := headerBudget
	for _, s := range node.tuples {
		for _, v := range s.tuple.Values {
			used += codec.EncodedSize(v)
		}
		used += 2
	}
	for _, v := range tuple.Values {
		used += codec.EncodedSize(v)
	}
	used += 2
	return used <= page.Size
}
