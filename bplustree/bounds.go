package bplustree

// BoundKind tags a Bound as unbounded, inclusive, or exclusive, mirroring
// the open/closed endpoints a range scan must honor independently on
// each side (spec §4.5.4).
type BoundKind int

const (
	BoundUnbounded BoundKind = iota
	BoundIncluded
	BoundExcluded
)

// Bound is one endpoint of a RangeScan.
type Bound[K any] struct {
	Kind BoundKind
	Key  K
}

// Included returns a closed bound at key: key itself is part of the range.
func Included[K any](key K) Bound[K] { return Bound[K]{Kind: BoundIncluded, Key: key} }

// Excluded returns an open bound at key: key itself is not part of the range.
func Excluded[K any](key K) Bound[K] { return Bound[K]{Kind: BoundExcluded, Key: key} }

// Unbounded returns a side with no limit: the scan runs to the first or
// last key in the tree on that side.
func Unbounded[K any]() Bound[K] { return Bound[K]{Kind: BoundUnbounded} }

func satisfiesLow[K any](kc KeyCodec[K], k K, low Bound[K]) bool {
	switch low.Kind {
	case BoundIncluded:
		return kc.Compare(k, low.Key) >= 0
	case BoundExcluded:
		return kc.Compare(k, low.Key) > 0
	default:
		return true
	}
}

// pastHigh reports whether k has gone beyond high — the scan may stop.
func pastHigh[K any](kc KeyCodec[K], k K, high Bound[K]) bool {
	switch high.Kind {
	case BoundIncluded:
		return kc.Compare(k, high.Key) > 0
	case BoundExcluded:
		return kc.Compare(k, high.Key) >= 0
	default:
		return false
	}
}
