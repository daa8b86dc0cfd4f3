package heap

import (
	"github.com/pagedb/pagedb/codec"
	"github.com/pagedb/pagedb/dberr"
	"github.com/pagedb/pagedb/page"
	"github.com/pagedb/pagedb/types"
)

type tupleSlot struct {
	tuple   types.Tuple
	deleted bool
}

type tupleNode struct {
	self   types.PageID
	next   types.PageID
	tuples []tupleSlot
}

func encodeTupleNode(pg *page.Page, n *tupleNode, schema types.Schema) {
	w := codec.NewWriter(page.Size)
	w.PutPageID(n.self)
	w.PutOptionPageID(n.next)
	w.PutUint32(uint32(len(n.tuples)))
	for _, s := range n.tuples {
		w.PutBool(s.deleted)
		for i, v := range s.tuple.Values {
			_ = i
			w.PutValue(v)
		}
	}
	copy(pg.Data[:], w.Bytes())
}

func decodeTupleNode(pg *page.Page, schema types.Schema) (*tupleNode, error) {
	r := codec.NewReader(pg.Data[:])
	self, err := r.PageID()
	if err != nil {
		return nil, dberr.Wrap(err, "decode tuple node")
	}
	next, err := r.OptionPageID()
	if err != nil {
		return nil, err
	}
	count, err := r.Uint32()
	if err != nil {
		return nil, err
	}
	n := &tupleNode{self: self, next: next, tuples: make([]tupleSlot, 0, count)}
	for i := uint32(0); i < count; i++ {
		deleted, err := r.Bool()
		if err != nil {
			return nil, err
		}
		values := make([]types.Value, len(schema.Columns))
		for c := range schema.Columns {
			v, err := r.Value()
			if err != nil {
				return nil, dberr.Wrap(err, "decode tuple value")
			}
			values[c] = v
		}
		n.tuples = append(n.tuples, tupleSlot{tuple: types.Tuple{Values: values}, deleted: deleted})
	}
	return n, nil
}

func encodeDescriptor(pg *page.Page, d descriptor) {
	w := codec.NewWriter(page.Size)
	w.PutOptionPageID(d.start)
	w.PutOptionPageID(d.end)
	w.PutOptionPageID(d.nextTable)
	copy(pg.Data[:], w.Bytes())
}

func decodeDescriptor(pg *page.Page) (descriptor, error) {
	r := codec.NewReader(pg.Data[:])
	start, err := r.OptionPageID()
	if err != nil {
		return descriptor{}, dberr.Wrap(err, "decode descriptor")
	}
	end, err := r.OptionPageID()
	if err != nil {
		return descriptor{}, err
	}
	next, err := r.OptionPageID()
	if err != nil {
		return descriptor{}, err
	}
	return descriptor{start: start, end: end, nextTable: next}, nil
}
