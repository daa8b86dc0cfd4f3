// Package codec implements the fixed-width, big-endian binary encoding
// used for every on-disk byte layout in this module: page headers, index
// entries, table tuples, and RecordID/PageID references. The approach
// mirrors the teacher's own hand-rolled byte manipulation in
// pager.Page (GetNumberAsBytes, tuple layout) and kv.EncodeKey/DecodeKey,
// generalized to a reusable cursor instead of one-off helpers, and
// corrected to the big-endian, fixed-width contract this module requires.
package codec

import (
	"encoding/binary"
	"math"

	"github.com/pagedb/pagedb/dberr"
	"github.com/pagedb/pagedb/types"
)

// optionPresent/optionAbsent are the Option[T] sentinel bytes.
const (
	optionAbsent  byte = 0xFF
	optionPresent byte = 0x00
)

// Writer appends encoded values to a growable byte buffer.
type Writer struct {
	buf []byte
}

// NewWriter returns a Writer with capacity hinted by cap.
func NewWriter(cap int) *Writer { return &Writer{buf: make([]byte, 0, cap)} }

// Bytes returns the accumulated buffer.
func (w *Writer) Bytes() []byte { return w.buf }

func (w *Writer) PutUint8(v uint8)   { w.buf = append(w.buf, v) }
func (w *Writer) PutInt8(v int8)     { w.buf = append(w.buf, byte(v)) }
func (w *Writer) PutBool(v bool) {
	if v {
		w.PutUint8(1)
	} else {
		w.PutUint8(0)
	}
}

func (w *Writer) PutUint16(v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	w.buf = append(w.buf, b[:]...)
}
func (w *Writer) PutInt16(v int16) { w.PutUint16(uint16(v)) }

func (w *Writer) PutUint32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
}
func (w *Writer) PutInt32(v int32) { w.PutUint32(uint32(v)) }

func (w *Writer) PutUint64(v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	w.buf = append(w.buf, b[:]...)
}
func (w *Writer) PutInt64(v int64) { w.PutUint64(uint64(v)) }

// PutInt128 writes the high signed half then the low unsigned half, 16
// bytes total.
func (w *Writer) PutInt128(v types.Int128) {
	w.PutInt64(v.Hi)
	w.PutUint64(v.Lo)
}

func (w *Writer) PutFloat32(v float32) { w.PutUint32(math.Float32bits(v)) }
func (w *Writer) PutFloat64(v float64) { w.PutUint64(math.Float64bits(v)) }

// PutString writes a 4-byte big-endian length prefix followed by the UTF-8
// bytes of s.
func (w *Writer) PutString(s string) {
	w.PutUint32(uint32(len(s)))
	w.buf = append(w.buf, s...)
}

// PutPageID writes an 8-byte big-endian PageID.
func (w *Writer) PutPageID(id types.PageID) { w.PutUint64(uint64(id)) }

// PutRecordID writes the on-disk 12-byte RecordID: 8-byte PageID + 4-byte
// slot number.
func (w *Writer) PutRecordID(r types.RecordID) {
	w.PutPageID(r.PageID)
	w.PutUint32(r.SlotNum)
}

// PutOptionPageID writes the Option sentinel followed by the PageID only
// when present; absent writes just the sentinel byte padded to the fixed
// width so optional PageID fields remain fixed-size in a page header.
func (w *Writer) PutOptionPageID(id types.PageID) {
	if !id.Valid() {
		w.PutUint8(optionAbsent)
		w.buf = append(w.buf, make([]byte, 8)...)
		return
	}
	w.PutUint8(optionPresent)
	w.PutPageID(id)
}

// PutValue encodes a typed Value: the DataType tag, an Option-style
// null flag, then the payload (absent entirely when null, since a null's
// width is determined by its tag alone).
func (w *Writer) PutValue(v types.Value) {
	w.PutUint8(uint8(v.Type))
	if v.IsNull {
		w.PutUint8(optionAbsent)
		return
	}
	w.PutUint8(optionPresent)
	switch v.Type {
	case types.Boolean:
		w.PutBool(v.Bool)
	case types.Tinyint:
		w.PutInt16(v.Int16)
	case types.Smallint:
		w.PutInt32(v.Int32)
	case types.Integer:
		w.PutInt64(v.Int64)
	case types.Bigint:
		w.PutInt128(v.Int128)
	case types.Float:
		w.PutFloat32(v.Float32)
	case types.Double:
		w.PutFloat64(v.Float64)
	case types.String:
		w.PutString(v.Str)
	}
}

// Reader pops encoded values off a byte slice, advancing an internal
// offset. Reader never copies the backing slice.
type Reader struct {
	buf []byte
	off int
}

// NewReader wraps buf for sequential decode.
func NewReader(buf []byte) *Reader { return &Reader{buf: buf} }

// Offset returns the current read position.
func (r *Reader) Offset() int { return r.off }

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int { return len(r.buf) - r.off }

func (r *Reader) need(n int) error {
	if r.Remaining() < n {
		return dberr.Wrapf(dberr.ErrEncoding, "need %d bytes, have %d", n, r.Remaining())
	}
	return nil
}

func (r *Reader) Uint8() (uint8, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := r.buf[r.off]
	r.off++
	return v, nil
}

func (r *Reader) Int8() (int8, error) {
	v, err := r.Uint8()
	return int8(v), err
}

func (r *Reader) Bool() (bool, error) {
	v, err := r.Uint8()
	return v != 0, err
}

func (r *Reader) Uint16() (uint16, error) {
	if err := r.need(2); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint16(r.buf[r.off:])
	r.off += 2
	return v, nil
}
func (r *Reader) Int16() (int16, error) {
	v, err := r.Uint16()
	return int16(v), err
}

func (r *Reader) Uint32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(r.buf[r.off:])
	r.off += 4
	return v, nil
}
func (r *Reader) Int32() (int32, error) {
	v, err := r.Uint32()
	return int32(v), err
}

func (r *Reader) Uint64() (uint64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint64(r.buf[r.off:])
	r.off += 8
	return v, nil
}
func (r *Reader) Int64() (int64, error) {
	v, err := r.Uint64()
	return int64(v), err
}

func (r *Reader) Int128() (types.Int128, error) {
	hi, err := r.Int64()
	if err != nil {
		return types.Int128{}, err
	}
	lo, err := r.Uint64()
	if err != nil {
		return types.Int128{}, err
	}
	return types.Int128{Hi: hi, Lo: lo}, nil
}

func (r *Reader) Float32() (float32, error) {
	v, err := r.Uint32()
	return math.Float32frombits(v), err
}
func (r *Reader) Float64() (float64, error) {
	v, err := r.Uint64()
	return math.Float64frombits(v), err
}

func (r *Reader) String() (string, error) {
	n, err := r.Uint32()
	if err != nil {
		return "", err
	}
	if err := r.need(int(n)); err != nil {
		return "", err
	}
	s := string(r.buf[r.off : r.off+int(n)])
	r.off += int(n)
	return s, nil
}

func (r *Reader) PageID() (types.PageID, error) {
	v, err := r.Uint64()
	return types.PageID(v), err
}

func (r *Reader) RecordID() (types.RecordID, error) {
	pid, err := r.PageID()
	if err != nil {
		return types.RecordID{}, err
	}
	slot, err := r.Uint32()
	if err != nil {
		return types.RecordID{}, err
	}
	return types.RecordID{PageID: pid, SlotNum: slot}, nil
}

func (r *Reader) OptionPageID() (types.PageID, error) {
	tag, err := r.Uint8()
	if err != nil {
		return 0, err
	}
	if tag == optionAbsent {
		if err := r.need(8); err != nil {
			return 0, err
		}
		r.off += 8
		return types.NullPage, nil
	}
	return r.PageID()
}

// Value decodes a typed Value previously written by Writer.PutValue.
func (r *Reader) Value() (types.Value, error) {
	tagByte, err := r.Uint8()
	if err != nil {
		return types.Value{}, err
	}
	dt := types.DataType(tagByte)
	present, err := r.Uint8()
	if err != nil {
		return types.Value{}, err
	}
	if present == optionAbsent {
		return types.NullValue(dt), nil
	}
	switch dt {
	case types.Boolean:
		b, err := r.Bool()
		return types.NewBool(b), err
	case types.Tinyint:
		v, err := r.Int16()
		return types.NewTinyint(v), err
	case types.Smallint:
		v, err := r.Int32()
		return types.NewSmallint(v), err
	case types.Integer:
		v, err := r.Int64()
		return types.NewInteger(v), err
	case types.Bigint:
		v, err := r.Int128()
		return types.NewBigint(v), err
	case types.Float:
		v, err := r.Float32()
		return types.NewFloat(v), err
	case types.Double:
		v, err := r.Float64()
		return types.NewDouble(v), err
	case types.String:
		v, err := r.String()
		return types.NewString(v), err
	default:
		return types.Value{}, dberr.Wrapf(dberr.ErrEncoding, "unknown data type tag %d", tagByte)
	}
}

// EncodedSize returns the number of bytes Writer.PutValue would produce
// for v, without encoding it.
func EncodedSize(v types.Value) int {
	const tagAndFlag = 2
	if v.IsNull {
		return tagAndFlag
	}
	switch v.Type {
	case types.Boolean:
		return tagAndFlag + 1
	case types.Tinyint:
		return tagAndFlag + 2
	case types.Smallint:
		return tagAndFlag + 4
	case types.Integer:
		return tagAndFlag + 8
	case types.Bigint:
		return tagAndFlag + 16
	case types.Float:
		return tagAndFlag + 4
	case types.Double:
		return tagAndFlag + 8
	case types.String:
		return tagAndFlag + 4 + len(v.Str)
	default:
		return tagAndFlag
	}
}
