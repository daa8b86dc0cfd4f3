package engine

import (
	"testing"

	"github.com/pagedb/pagedb/bplustree"
	"github.com/pagedb/pagedb/dberr"
	"github.com/pagedb/pagedb/types"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := New(Options{PoolSize: 64, UseMemory: true, IndexMaxSize: 4})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func usersSchema() types.Schema {
	return types.Schema{Columns: []types.Column{
		{Name: "id", DataType: types.Integer, PrimaryKey: true},
		{Name: "name", DataType: types.String},
	}}
}

func TestCreateTableRequiresExactlyOnePrimaryKey(t *testing.T) {
	e := newTestEngine(t)

	noKey := types.Schema{Columns: []types.Column{{Name: "id", DataType: types.Integer}}}
	if err := e.CreateTable("t1", noKey); err == nil {
		t.Fatal("expected CreateTable to reject a schema with no primary key")
	}

	twoKeys := types.Schema{Columns: []types.Column{
		{Name: "id", DataType: types.Integer, PrimaryKey: true},
		{Name: "code", DataType: types.Integer, PrimaryKey: true},
	}}
	if err := e.CreateTable("t2", twoKeys); err == nil {
		t.Fatal("expected CreateTable to reject a schema with two primary keys")
	}

	if err := e.CreateTable("users", usersSchema()); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	if err := e.CreateTable("users", usersSchema()); err == nil {
		t.Fatal("expected CreateTable to reject a duplicate table name")
	}
}

func TestReadTableNotFound(t *testing.T) {
	e := newTestEngine(t)
	if _, err := e.ReadTable("ghost"); !dberr.Is(err, dberr.ErrNotFound) {
		t.Fatalf("ReadTable(ghost) err = %v, want ErrNotFound", err)
	}
}

func TestCRUDRoundTrip(t *testing.T) {
	e := newTestEngine(t)
	if err := e.CreateTable("users", usersSchema()); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}

	if _, err := e.Insert("users", types.Tuple{Values: []types.Value{types.NewInteger(1), types.NewString("ada")}}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	got, err := e.Read("users", types.NewInteger(1))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got.Values[1].Str != "ada" {
		t.Fatalf("Read got %v", got)
	}

	if err := e.Update("users", types.Tuple{Values: []types.Value{types.NewInteger(1), types.NewString("lovelace")}}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, err = e.Read("users", types.NewInteger(1))
	if err != nil {
		t.Fatalf("Read after update: %v", err)
	}
	if got.Values[1].Str != "lovelace" {
		t.Fatalf("Read after update got %v", got)
	}

	if _, err := e.Delete("users", types.NewInteger(1)); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := e.Read("users", types.NewInteger(1)); !dberr.Is(err, dberr.ErrNotFound) {
		t.Fatalf("Read after delete err = %v, want ErrNotFound", err)
	}
	if _, err := e.Delete("users", types.NewInteger(1)); !dberr.Is(err, dberr.ErrNotFound) {
		t.Fatalf("double Delete err = %v, want ErrNotFound", err)
	}
}

func TestScanAndRangeScan(t *testing.T) {
	e := newTestEngine(t)
	if err := e.CreateTable("users", usersSchema()); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}

	for i := int64(1); i <= 30; i++ {
		if _, err := e.Insert("users", types.Tuple{Values: []types.Value{
			types.NewInteger(i), types.NewString("row"),
		}}); err != nil {
			t.Fatalf("Insert(%d): %v", i, err)
		}
	}
	if _, err := e.Delete("users", types.NewInteger(15)); err != nil {
		t.Fatalf("Delete(15): %v", err)
	}

	scanned, err := e.Scan("users")
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(scanned) != 29 {
		t.Fatalf("Scan returned %d tuples, want 29", len(scanned))
	}

	rangeTuples, err := e.RangeScan("users", bplustree.Included(types.NewInteger(10)), bplustree.Included(types.NewInteger(20)))
	if err != nil {
		t.Fatalf("RangeScan: %v", err)
	}
	// [10,20] is 11 keys; 15 was deleted, so 10 live tuples, in ascending
	// primary-key order and skipping the tombstone transparently.
	if len(rangeTuples) != 10 {
		t.Fatalf("RangeScan returned %d tuples, want 10", len(rangeTuples))
	}
	prev := int64(9)
	for _, tup := range rangeTuples {
		if tup.Values[0].Int64 <= prev {
			t.Fatalf("RangeScan not ascending: got %d after %d", tup.Values[0].Int64, prev)
		}
		if tup.Values[0].Int64 == 15 {
			t.Fatal("RangeScan returned a tombstoned key")
		}
		prev = tup.Values[0].Int64
	}

	openLow, err := e.RangeScan("users", bplustree.Excluded(types.NewInteger(15)), bplustree.Included(types.NewInteger(20)))
	if err != nil {
		t.Fatalf("RangeScan(Excluded(15),Included(20)): %v", err)
	}
	// 15 is both tombstoned and excluded, so [16,20] all five survive.
	if len(openLow) != 5 {
		t.Fatalf("RangeScan(Excluded(15),Included(20)) returned %d tuples, want 5", len(openLow))
	}
	if openLow[0].Values[0].Int64 != 16 {
		t.Fatalf("RangeScan(Excluded(15),Included(20))[0] key = %d, want 16", openLow[0].Values[0].Int64)
	}
}

func TestInsertRollsBackHeapOnDuplicateKey(t *testing.T) {
	e := newTestEngine(t)
	if err := e.CreateTable("users", usersSchema()); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	if _, err := e.Insert("users", types.Tuple{Values: []types.Value{types.NewInteger(1), types.NewString("a")}}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if _, err := e.Insert("users", types.Tuple{Values: []types.Value{types.NewInteger(1), types.NewString("b")}}); err == nil {
		t.Fatal("expected Insert to reject a duplicate primary key")
	}

	scanned, err := e.Scan("users")
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(scanned) != 1 {
		t.Fatalf("Scan returned %d tuples after failed duplicate insert, want 1", len(scanned))
	}
}

func TestDropTableThenOperationsNotFound(t *testing.T) {
	e := newTestEngine(t)
	if err := e.CreateTable("users", usersSchema()); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	if err := e.DropTable("users"); err != nil {
		t.Fatalf("DropTable: %v", err)
	}
	if err := e.DropTable("users"); !dberr.Is(err, dberr.ErrNotFound) {
		t.Fatalf("second DropTable err = %v, want ErrNotFound", err)
	}
	if _, err := e.Insert("users", types.Tuple{Values: []types.Value{types.NewInteger(1), types.NewString("a")}}); !dberr.Is(err, dberr.ErrNotFound) {
		t.Fatalf("Insert after DropTable err = %v, want ErrNotFound", err)
	}
}

func TestClose(t *testing.T) {
	e := newTestEngine(t)
	if err := e.CreateTable("users", usersSchema()); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	if _, err := e.Insert("users", types.Tuple{Values: []types.Value{types.NewInteger(1), types.NewString("a")}}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := e.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
