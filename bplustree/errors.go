package bplustree

import "github.com/pagedb/pagedb/dberr"

// ErrDuplicateKey is returned by Insert when the key already exists —
// leaf entries are unique, per the tree's invariants.
var ErrDuplicateKey = dberr.Wrap(dberr.ErrEncoding, "bplustree: duplicate key")

func errBufferInsufficient() error {
	return dberr.Wrap(dberr.ErrBufferInsufficient, "bplustree")
}

func errDuplicateKey() error {
	return ErrDuplicateKey
}
