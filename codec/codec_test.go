package codec

import (
	"testing"

	"github.com/pagedb/pagedb/types"
)

func TestWriterReaderRoundTrip(t *testing.T) {
	w := NewWriter(64)
	w.PutInt8(-5)
	w.PutUint16(1234)
	w.PutInt32(-999999)
	w.PutUint64(123456789012345)
	w.PutBool(true)
	w.PutFloat32(3.5)
	w.PutFloat64(2.71828)
	w.PutString("hello, pagedb")
	w.PutPageID(types.PageID(42))
	w.PutRecordID(types.RecordID{PageID: 7, SlotNum: 3})

	r := NewReader(w.Bytes())

	if v, err := r.Int8(); err != nil || v != -5 {
		t.Fatalf("Int8 = %v, %v", v, err)
	}
	if v, err := r.Uint16(); err != nil || v != 1234 {
		t.Fatalf("Uint16 = %v, %v", v, err)
	}
	if v, err := r.Int32(); err != nil || v != -999999 {
		t.Fatalf("Int32 = %v, %v", v, err)
	}
	if v, err := r.Uint64(); err != nil || v != 123456789012345 {
		t.Fatalf("Uint64 = %v, %v", v, err)
	}
	if v, err := r.Bool(); err != nil || v != true {
		t.Fatalf("Bool = %v, %v", v, err)
	}
	if v, err := r.Float32(); err != nil || v != 3.5 {
		t.Fatalf("Float32 = %v, %v", v, err)
	}
	if v, err := r.Float64(); err != nil || v != 2.71828 {
		t.Fatalf("Float64 = %v, %v", v, err)
	}
	if v, err := r.String(); err != nil || v != "hello, pagedb" {
		t.Fatalf("String = %v, %v", v, err)
	}
	if v, err := r.PageID(); err != nil || v != types.PageID(42) {
		t.Fatalf("PageID = %v, %v", v, err)
	}
	if v, err := r.RecordID(); err != nil || v != (types.RecordID{PageID: 7, SlotNum: 3}) {
		t.Fatalf("RecordID = %v, %v", v, err)
	}
	if r.Remaining() != 0 {
		t.Fatalf("expected no remaining bytes, got %d", r.Remaining())
	}
}

func TestOptionPageIDRoundTrip(t *testing.T) {
	w := NewWriter(16)
	w.PutOptionPageID(types.NullPage)
	w.PutOptionPageID(types.PageID(9))

	r := NewReader(w.Bytes())
	v, err := r.OptionPageID()
	if err != nil || v != types.NullPage {
		t.Fatalf("expected NullPage, got %v, %v", v, err)
	}
	v, err = r.OptionPageID()
	if err != nil || v != types.PageID(9) {
		t.Fatalf("expected 9, got %v, %v", v, err)
	}
}

func TestValueRoundTripAndEncodedSize(t *testing.T) {
	cases := []types.Value{
		types.NewBool(true),
		types.NewTinyint(-12),
		types.NewSmallint(4000),
		types.NewInteger(-123456789),
		types.NewBigint(types.Int128{Hi: 1, Lo: 2}),
		types.NewFloat(1.5),
		types.NewDouble(6.02214076e23),
		types.NewString("row value"),
		types.NullValue(types.Integer),
	}
	for _, v := range cases {
		w := NewWriter(32)
		w.PutValue(v)
		if got, want := len(w.Bytes()), EncodedSize(v); got != want {
			t.Fatalf("EncodedSize(%v) = %d, wrote %d bytes", v, want, got)
		}
		r := NewReader(w.Bytes())
		got, err := r.Value()
		if err != nil {
			t.Fatalf("decode %v: %v", v, err)
		}
		if got.IsNull != v.IsNull || got.Type != v.Type {
			t.Fatalf("decode %v -> %v", v, got)
		}
		if !v.IsNull && got.Compare(v) != 0 {
			t.Fatalf("decode %v -> %v, not equal", v, got)
		}
	}
}

func TestReaderErrorsOnShortBuffer(t *testing.T) {
	r := NewReader([]byte{1, 2})
	if _, err := r.Uint64(); err == nil {
		t.Fatal("expected an encoding error on short buffer")
	}
}
