package bplustree

import (
	"github.com/pagedb/pagedb/codec"
	"github.com/pagedb/pagedb/types"
)

// ValueKeyCodec is the KeyCodec used for primary-key indexes, where the
// key is whatever types.Value the schema's primary key column holds.
type ValueKeyCodec struct{}

func (ValueKeyCodec) Compare(a, b types.Value) int { return a.Compare(b) }

func (ValueKeyCodec) Encode(w *codec.Writer, k types.Value) { w.PutValue(k) }

func (ValueKeyCodec) Decode(r *codec.Reader) (types.Value, error) { return r.Value() }

// Int64KeyCodec is a lightweight codec for plain int64 keys, used by
// tests that want a fixed-width key independent of the Value machinery
// (spec §8's literal scenarios key on plain integers).
type Int64KeyCodec struct{}

func (Int64KeyCodec) Compare(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func (Int64KeyCodec) Encode(w *codec.Writer, k int64) { w.PutInt64(k) }

func (Int64KeyCodec) Decode(r *codec.Reader) (int64, error) { return r.Int64() }
