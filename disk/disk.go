// Package disk implements fixed-page I/O against a single backing file,
// generalizing the teacher's pager/storage.go (fileStorage/memoryStorage
// split) and pager/filelock.go (exclusive-lock-on-open) to the page
// size and layout this module's spec mandates: no file header, page N at
// offset N*page.Size, no retries on I/O failure.
package disk

import (
	"log"
	"os"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/pagedb/pagedb/dberr"
	"github.com/pagedb/pagedb/page"
	"github.com/pagedb/pagedb/types"
)

// Manager is the disk manager: it knows only about fixed pages, never
// about what they contain.
type Manager struct {
	mu     sync.Mutex
	file   *os.File
	memory []byte // used instead of file when backed in-memory

	reads  uint64
	writes uint64
}

// Open opens (creating if needed) the database file at path and takes an
// exclusive advisory lock on it for the lifetime of the process, the way
// the teacher's linuxOrDarwinLock does with syscall.Flock. useMemory
// bypasses the filesystem entirely, grounded on pager/storage.go's
// memoryStorage, for tests that should not touch disk.
func Open(path string, useMemory bool) (*Manager, error) {
	if useMemory {
		return &Manager{memory: make([]byte, 0, page.Size*16)}, nil
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, dberr.Wrapf(dberr.ErrIO, "open %s", path)
	}
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		f.Close()
		return nil, dberr.Wrapf(dberr.ErrIO, "lock %s", path)
	}
	log.Printf("disk: opened %s", path)
	return &Manager{file: f}, nil
}

// Close releases the file lock and handle. A no-op for in-memory managers.
func (m *Manager) Close() error {
	if m.file == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	_ = syscall.Flock(int(m.file.Fd()), syscall.LOCK_UN)
	return m.file.Close()
}

func offsetOf(id types.PageID) int64 { return int64(id) * int64(page.Size) }

// ReadPage reads page id into dst, which must be page.Size bytes. Reading
// a page past the current end of file is a read of a page that was never
// written — spec does not define this case as recoverable, so it is
// surfaced as ErrIO rather than silently zero-filled.
func (m *Manager) ReadPage(id types.PageID, dst *[page.Size]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	atomic.AddUint64(&m.reads, 1)

	off := offsetOf(id)
	if m.file == nil {
		if off+int64(page.Size) > int64(len(m.memory)) {
			return dberr.Wrapf(dberr.ErrIO, "read page %s: beyond end of memory store", id)
		}
		copy(dst[:], m.memory[off:off+int64(page.Size)])
		return nil
	}
	n, err := m.file.ReadAt(dst[:], off)
	if err != nil || n != page.Size {
		return dberr.Wrapf(dberr.ErrIO, "read page %s", id)
	}
	return nil
}

// WritePage writes src to page id, growing the backing store if
// necessary, and fsyncs before returning (no write-behind, no retries).
func (m *Manager) WritePage(id types.PageID, src [page.Size]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	atomic.AddUint64(&m.writes, 1)

	off := offsetOf(id)
	if m.file == nil {
		need := off + int64(page.Size)
		if need > int64(len(m.memory)) {
			grown := make([]byte, need)
			copy(grown, m.memory)
			m.memory = grown
			log.Printf("disk: grew memory store to %d bytes", need)
		}
		copy(m.memory[off:off+int64(page.Size)], src[:])
		return nil
	}
	n, err := m.file.WriteAt(src[:], off)
	if err != nil || n != page.Size {
		return dberr.Wrapf(dberr.ErrIO, "write page %s", id)
	}
	if err := m.file.Sync(); err != nil {
		return dberr.Wrapf(dberr.ErrIO, "sync page %s", id)
	}
	return nil
}

// Stats returns cumulative read/write counts, mirroring the teacher
// BLTree's reads/writes counters.
func (m *Manager) Stats() (reads, writes uint64) {
	return atomic.LoadUint64(&m.reads), atomic.LoadUint64(&m.writes)
}
