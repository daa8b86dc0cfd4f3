package types

import "fmt"

// DataType is the canonical scalar type tag stored alongside every Column
// and carried by every Value. This is the richer set named in the spec's
// Open Questions as authoritative, not the narrower teacher set.
type DataType uint8

const (
	Boolean DataType = iota
	Tinyint          // int16
	Smallint         // int32
	Integer          // int64
	Bigint           // Int128
	Float            // float32
	Double           // float64
	String
)

func (d DataType) String() string {
	switch d {
	case Boolean:
		return "BOOLEAN"
	case Tinyint:
		return "TINYINT"
	case Smallint:
		return "SMALLINT"
	case Integer:
		return "INTEGER"
	case Bigint:
		return "BIGINT"
	case Float:
		return "FLOAT"
	case Double:
		return "DOUBLE"
	case String:
		return "STRING"
	default:
		return fmt.Sprintf("DATATYPE(%d)", uint8(d))
	}
}

// Int128 models a 128-bit signed integer as two 64-bit halves; Go has no
// native int128, and the wire format (spec §4.2) requires exactly 16 bytes.
type Int128 struct {
	Hi int64
	Lo uint64
}

// Value is a tagged scalar. Exactly one of the typed fields is meaningful,
// selected by Type; IsNull overrides all of them.
type Value struct {
	Type    DataType
	IsNull  bool
	Bool    bool
	Int16   int16
	Int32   int32
	Int64   int64
	Int128  Int128
	Float32 float32
	Float64 float64
	Str     string
}

// NullValue returns the Null value for the given declared column type —
// NULL still carries a type tag so the codec knows how much space a
// non-null value of that column would have occupied.
func NullValue(t DataType) Value { return Value{Type: t, IsNull: true} }

func NewBool(b bool) Value          { return Value{Type: Boolean, Bool: b} }
func NewTinyint(v int16) Value      { return Value{Type: Tinyint, Int16: v} }
func NewSmallint(v int32) Value     { return Value{Type: Smallint, Int32: v} }
func NewInteger(v int64) Value      { return Value{Type: Integer, Int64: v} }
func NewBigint(v Int128) Value      { return Value{Type: Bigint, Int128: v} }
func NewFloat(v float32) Value      { return Value{Type: Float, Float32: v} }
func NewDouble(v float64) Value     { return Value{Type: Double, Float64: v} }
func NewString(v string) Value      { return Value{Type: String, Str: v} }

func (v Value) String() string {
	if v.IsNull {
		return "NULL"
	}
	switch v.Type {
	case Boolean:
		return fmt.Sprintf("%v", v.Bool)
	case Tinyint:
		return fmt.Sprintf("%d", v.Int16)
	case Smallint:
		return fmt.Sprintf("%d", v.Int32)
	case Integer:
		return fmt.Sprintf("%d", v.Int64)
	case Bigint:
		return fmt.Sprintf("%d:%d", v.Int128.Hi, v.Int128.Lo)
	case Float:
		return fmt.Sprintf("%g", v.Float32)
	case Double:
		return fmt.Sprintf("%g", v.Float64)
	case String:
		return v.Str
	default:
		return "<invalid>"
	}
}

// Compare orders two non-null values of the same DataType. It panics on a
// type mismatch — the B+Tree only ever compares keys of one declared
// column type, so a mismatch is a caller bug, not a runtime condition.
func (v Value) Compare(o Value) int {
	if v.Type != o.Type {
		panic("types: Compare on mismatched DataType")
	}
	switch v.Type {
	case Boolean:
		return boolCompare(v.Bool, o.Bool)
	case Tinyint:
		return intCompare(int64(v.Int16), int64(o.Int16))
	case Smallint:
		return intCompare(int64(v.Int32), int64(o.Int32))
	case Integer:
		return intCompare(v.Int64, o.Int64)
	case Bigint:
		return int128Compare(v.Int128, o.Int128)
	case Float:
		return float64Compare(float64(v.Float32), float64(o.Float32))
	case Double:
		return float64Compare(v.Float64, o.Float64)
	case String:
		switch {
		case v.Str < o.Str:
			return -1
		case v.Str > o.Str:
			return 1
		default:
			return 0
		}
	default:
		panic("types: Compare on unknown DataType")
	}
}

func boolCompare(a, b bool) int {
	if a == b {
		return 0
	}
	if !a {
		return -1
	}
	return 1
}

func intCompare(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func float64Compare(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func int128Compare(a, b Int128) int {
	if a.Hi != b.Hi {
		return intCompare(a.Hi, b.Hi)
	}
	switch {
	case a.Lo < b.Lo:
		return -1
	case a.Lo > b.Lo:
		return 1
	default:
		return 0
	}
}
