package heap

import (
	"testing"

	"github.com/pagedb/pagedb/buffer"
	"github.com/pagedb/pagedb/disk"
	"github.com/pagedb/pagedb/types"
)

func newTestPool(t *testing.T) *buffer.Pool {
	t.Helper()
	d, err := disk.Open("", true)
	if err != nil {
		t.Fatalf("disk.Open: %v", err)
	}
	return buffer.NewPool(d, 64, 2)
}

func testSchema() types.Schema {
	return types.Schema{Columns: []types.Column{
		{Name: "id", DataType: types.Integer, PrimaryKey: true},
		{Name: "name", DataType: types.String},
	}}
}

func TestInsertReadDeleteUpdate(t *testing.T) {
	pool := newTestPool(t)
	h, err := Create(pool, testSchema())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	rid, err := h.Insert(types.Tuple{Values: []types.Value{types.NewInteger(1), types.NewString("a")}})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}

	got, err := h.Read(rid)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got.Values[1].Str != "a" {
		t.Fatalf("Read got %v", got)
	}

	if err := h.Update(rid, types.Tuple{Values: []types.Value{types.NewInteger(1), types.NewString("b")}}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, err = h.Read(rid)
	if err != nil {
		t.Fatalf("Read after update: %v", err)
	}
	if got.Values[1].Str != "b" {
		t.Fatalf("Read after update got %v", got)
	}
	if rid.SlotNum != 0 || got.Values[0].Int64 != 1 {
		t.Fatalf("RecordID must stay stable across Update")
	}

	if _, err := h.Delete(rid); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := h.Read(rid); err == nil {
		t.Fatal("expected Read to fail on a tombstoned tuple")
	}
}

func TestScanSkipsTombstones(t *testing.T) {
	pool := newTestPool(t)
	h, err := Create(pool, testSchema())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	var rids []types.RecordID
	for i := int64(0); i < 5; i++ {
		rid, err := h.Insert(types.Tuple{Values: []types.Value{types.NewInteger(i), types.NewString("x")}})
		if err != nil {
			t.Fatalf("Insert(%d): %v", i, err)
		}
		rids = append(rids, rid)
	}
	if _, err := h.Delete(rids[2]); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	scanned, err := h.Scan()
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(scanned) != 4 {
		t.Fatalf("Scan returned %d tuples, want 4", len(scanned))
	}
	for _, s := range scanned {
		if s.Tuple.Values[0].Int64 == 2 {
			t.Fatal("tombstoned tuple should not appear in Scan")
		}
	}
}

func TestInsertAllocatesNewNodeWhenFull(t *testing.T) {
	pool := newTestPool(t)
	h, err := Create(pool, testSchema())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	var last types.PageID
	distinctPages := map[types.PageID]bool{}
	for i := int64(0); i < 500; i++ {
		rid, err := h.Insert(types.Tuple{Values: []types.Value{
			types.NewInteger(i),
			types.NewString("some moderately sized row value to fill pages faster"),
		}})
		if err != nil {
			t.Fatalf("Insert(%d): %v", i, err)
		}
		distinctPages[rid.PageID] = true
		last = rid.PageID
	}
	if len(distinctPages) < 2 {
		t.Fatalf("expected heap to span multiple tuple-node pages, got %d", len(distinctPages))
	}
	_ = last
}
