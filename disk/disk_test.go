package disk

import (
	"path/filepath"
	"testing"

	"github.com/pagedb/pagedb/page"
	"github.com/pagedb/pagedb/types"
)

func TestReadWritePageRoundTripMemory(t *testing.T) {
	m, err := Open("", true)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer m.Close()

	var src [page.Size]byte
	for i := range src {
		src[i] = byte(i)
	}
	if err := m.WritePage(3, src); err != nil {
		t.Fatalf("WritePage: %v", err)
	}

	var dst [page.Size]byte
	if err := m.ReadPage(3, &dst); err != nil {
		t.Fatalf("ReadPage: %v", err)
	}
	if dst != src {
		t.Fatal("ReadPage did not return what WritePage wrote")
	}

	reads, writes := m.Stats()
	if reads != 1 || writes != 1 {
		t.Fatalf("Stats() = (%d,%d), want (1,1)", reads, writes)
	}
}

func TestReadPageBeyondEndOfMemoryStoreErrors(t *testing.T) {
	m, err := Open("", true)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer m.Close()

	var dst [page.Size]byte
	if err := m.ReadPage(types.PageID(100), &dst); err == nil {
		t.Fatal("expected ReadPage past end of memory store to fail")
	}
}

func TestReadWritePageRoundTripFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pagedb.db")

	m, err := Open(path, false)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	var src [page.Size]byte
	for i := range src {
		src[i] = byte(255 - i%256)
	}
	if err := m.WritePage(0, src); err != nil {
		t.Fatalf("WritePage: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// A second Open of the same path while the first is closed should
	// see the previously written page.
	m2, err := Open(path, false)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer m2.Close()

	var dst [page.Size]byte
	if err := m2.ReadPage(0, &dst); err != nil {
		t.Fatalf("ReadPage after reopen: %v", err)
	}
	if dst != src {
		t.Fatal("page contents did not survive close/reopen")
	}
}
