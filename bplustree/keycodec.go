package bplustree

import (
	"github.com/pagedb/pagedb/codec"
)

// KeyCodec lets BPlusTree stay generic over its key type: it needs to
// compare two keys and to encode/decode them to the page's byte layout.
// Generalizes the teacher's kv.go, which hard-codes []byte keys compared
// with bytes.Compare, to the typed key space spec §4.5 describes.
type KeyCodec[K any] interface {
	Compare(a, b K) int
	Encode(w *codec.Writer, k K)
	Decode(r *codec.Reader) (K, error)
}
