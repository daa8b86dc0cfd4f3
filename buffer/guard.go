package buffer

import (
	"github.com/pagedb/pagedb/dberr"
	"github.com/pagedb/pagedb/page"
	"github.com/pagedb/pagedb/types"
)

// ReadGuard and WriteGuard are borrowed guards (spec §9): they hold a
// page's latch for exactly one short, non-suspending critical section.
// They do not pin/unpin — the caller is expected to already hold a pin
// from FetchPage/NewPage and to Unpin after releasing the guard.

type ReadGuard struct{ pg *page.Page }

func NewReadGuard(pg *page.Page) ReadGuard {
	pg.ReadLock()
	return ReadGuard{pg: pg}
}
func (g ReadGuard) Page() *page.Page { return g.pg }
func (g ReadGuard) Release()         { g.pg.ReadUnlock() }

type WriteGuard struct{ pg *page.Page }

func NewWriteGuard(pg *page.Page) WriteGuard {
	pg.WriteLock()
	return WriteGuard{pg: pg}
}
func (g WriteGuard) Page() *page.Page { return g.pg }
func (g WriteGuard) Release()         { g.pg.WriteUnlock() }

// OwnedReadGuard and OwnedWriteGuard additionally carry the pin and the
// pool reference, so they can be stored across a suspension point (e.g.
// while the B+Tree fetches a child before releasing a parent latch
// during crabbing) and release both latch and pin together.

type OwnedReadGuard struct {
	pool *Pool
	pg   *page.Page
}

// FetchReadGuard pins id and read-latches it in one step.
func (pool *Pool) FetchReadGuard(id types.PageID) (*OwnedReadGuard, error) {
	pg, err := pool.FetchPage(id)
	if err != nil || pg == nil {
		return nil, err
	}
	pg.ReadLock()
	return &OwnedReadGuard{pool: pool, pg: pg}, nil
}

// WrapReadGuard builds an OwnedReadGuard around a page that the caller
// has already pinned (via FetchPage) and read-latched (via
// page.TryReadLock), used by the non-blocking sibling-traversal path of
// range scans.
func (pool *Pool) WrapReadGuard(pg *page.Page) *OwnedReadGuard {
	return &OwnedReadGuard{pool: pool, pg: pg}
}

func (g *OwnedReadGuard) Page() *page.Page { return g.pg }

// Release unlatches and unpins, in that order — a page must never be
// flushed out from under a held latch.
func (g *OwnedReadGuard) Release() {
	g.pg.ReadUnlock()
	g.pool.UnpinPage(g.pg.ID(), false)
}

type OwnedWriteGuard struct {
	pool  *Pool
	pg    *page.Page
	dirty bool
}

// FetchWriteGuard pins id and write-latches it in one step.
func (pool *Pool) FetchWriteGuard(id types.PageID) (*OwnedWriteGuard, error) {
	pg, err := pool.FetchPage(id)
	if err != nil || pg == nil {
		return nil, err
	}
	pg.WriteLock()
	return &OwnedWriteGuard{pool: pool, pg: pg}, nil
}

// NewPageWriteGuard allocates a fresh page already write-latched. A pool
// with no frame to spare is reported as ErrBufferInsufficient.
func (pool *Pool) NewPageWriteGuard() (*OwnedWriteGuard, error) {
	pg, err := pool.NewPage()
	if err != nil {
		return nil, err
	}
	if pg == nil {
		return nil, dberr.Wrap(dberr.ErrBufferInsufficient, "new page")
	}
	pg.WriteLock()
	return &OwnedWriteGuard{pool: pool, pg: pg}, nil
}

func (g *OwnedWriteGuard) Page() *page.Page { return g.pg }

// MarkDirty records that this guard's holder mutated the page; Release
// will pass that through to UnpinPage.
func (g *OwnedWriteGuard) MarkDirty() { g.dirty = true }

func (g *OwnedWriteGuard) Release() {
	g.pg.WriteUnlock()
	g.pool.UnpinPage(g.pg.ID(), g.dirty)
}
