// Package buffer implements the fixed-size buffer cache: a pool of
// page.Page frames, a page table mapping PageID to frame, a free list,
// and an LRU-K replacer for choosing eviction victims once the free list
// is empty. Generalizes the teacher's pager.Pager (which caches whole
// pages keyed by number behind a single lock, pager/cache/cache.go's
// plain LRU) into the explicit pin/evictable frame model spec §4.4
// requires.
package buffer

import (
	"sync"

	"github.com/pagedb/pagedb/dberr"
	"github.com/pagedb/pagedb/disk"
	"github.com/pagedb/pagedb/page"
	"github.com/pagedb/pagedb/types"
)

// Pool is the buffer pool manager. Lock order: the replacer's own mutex
// is only taken inside the pool mutex. The pool mutex is never held while
// a page latch is acquired; callers such as the B+Tree do hold page
// latches when they call FetchPage or UnpinPage.
type Pool struct {
	mu sync.Mutex

	disk   *disk.Manager
	frames []*page.Page
	pageTable map[types.PageID]types.FrameID
	freeList  []types.FrameID
	replacer  *LRUKReplacer

	nextPageID types.PageID // monotonic counter, not persisted (spec §9)
}

// NewPool allocates poolSize frames backed by disk, with an LRU-K
// replacer tracking the last k accesses per frame.
func NewPool(disk *disk.Manager, poolSize, k int) *Pool {
	p := &Pool{
		disk:      disk,
		frames:    make([]*page.Page, poolSize),
		pageTable: make(map[types.PageID]types.FrameID, poolSize),
		freeList:  make([]types.FrameID, poolSize),
		replacer:  NewLRUKReplacer(poolSize, k),
	}
	for i := 0; i < poolSize; i++ {
		p.frames[i] = page.New()
		p.freeList[i] = types.FrameID(i)
	}
	return p
}

// acquireFrame returns a frame to use for a new or fetched page, evicting
// if necessary. Caller holds p.mu. Returns ErrBufferInsufficient if every
// frame is pinned.
func (p *Pool) acquireFrame() (types.FrameID, error) {
	if n := len(p.freeList); n > 0 {
		f := p.freeList[n-1]
		p.freeList = p.freeList[:n-1]
		return f, nil
	}
	frame, ok := p.replacer.Evict()
	if !ok {
		return 0, dberr.ErrBufferInsufficient
	}
	victim := p.frames[frame]
	if victim.Dirty() {
		if err := p.flushFrameLocked(frame); err != nil {
			return 0, err
		}
	}
	delete(p.pageTable, victim.ID())
	victim.Reset()
	return frame, nil
}

// NewPage allocates a fresh page, assigns it the next PageID, pins it
// once, and registers it in the page table. A nil, nil result (not an
// error) means every frame is pinned and none could be freed — the
// caller decides whether to retry, back off, or fail the containing
// operation.
func (p *Pool) NewPage() (*page.Page, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	frame, err := p.acquireFrame()
	if err != nil {
		if dberr.Is(err, dberr.ErrBufferInsufficient) {
			return nil, nil // buffer insufficient: not an error, a "try again" signal
		}
		return nil, err
	}
	id := p.nextPageID
	p.nextPageID++

	pg := p.frames[frame]
	pg.SetID(id)
	pg.Pin()
	p.pageTable[id] = frame
	p.replacer.RecordAccess(frame)
	p.replacer.SetEvictable(frame, false)
	return pg, nil
}

// FetchPage returns the page for id, pinning it, loading it from disk
// first if it is not already resident. A nil, nil result (not an error)
// means every frame is pinned and none could be freed — the caller
// decides whether to retry, back off, or fail the containing operation.
func (p *Pool) FetchPage(id types.PageID) (*page.Page, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if frame, ok := p.pageTable[id]; ok {
		pg := p.frames[frame]
		pg.Pin()
		p.replacer.RecordAccess(frame)
		p.replacer.SetEvictable(frame, false)
		return pg, nil
	}

	frame, err := p.acquireFrame()
	if err != nil {
		if dberr.Is(err, dberr.ErrBufferInsufficient) {
			return nil, nil // buffer insufficient: not an error, a "try again" signal
		}
		return nil, err
	}
	pg := p.frames[frame]
	pg.SetID(id)
	if err := p.disk.ReadPage(id, &pg.Data); err != nil {
		p.freeList = append(p.freeList, frame)
		pg.Reset()
		return nil, err
	}
	pg.Pin()
	p.pageTable[id] = frame
	p.replacer.RecordAccess(frame)
	p.replacer.SetEvictable(frame, false)
	return pg, nil
}

// UnpinPage decrements id's pin count and, per the resolved open
// question, unconditionally ORs isDirty into the page's dirty flag
// rather than skipping the OR when the page is already dirty. Once the
// pin count reaches zero the frame becomes evictable.
func (p *Pool) UnpinPage(id types.PageID, isDirty bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	frame, ok := p.pageTable[id]
	if !ok {
		return
	}
	pg := p.frames[frame]
	pg.SetDirty(isDirty)
	pg.Unpin()
	if pg.PinCount() == 0 {
		p.replacer.SetEvictable(frame, true)
	}
}

// flushFrameLocked writes frame's page to disk. Caller holds p.mu.
func (p *Pool) flushFrameLocked(frame types.FrameID) error {
	pg := p.frames[frame]
	if err := p.disk.WritePage(pg.ID(), pg.Data); err != nil {
		return err
	}
	pg.ClearDirty()
	return nil
}

// FlushPage writes id's page to disk regardless of its dirty flag.
func (p *Pool) FlushPage(id types.PageID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	frame, ok := p.pageTable[id]
	if !ok {
		return dberr.Wrapf(dberr.ErrNotFound, "flush page %s", id)
	}
	return p.flushFrameLocked(frame)
}

// FlushAllPages writes every resident page to disk.
func (p *Pool) FlushAllPages() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, frame := range p.pageTable {
		_ = id
		if err := p.flushFrameLocked(frame); err != nil {
			return err
		}
	}
	return nil
}

// DeletePage removes id from the pool, freeing its frame, refusing if
// the page is still pinned.
func (p *Pool) DeletePage(id types.PageID) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	frame, ok := p.pageTable[id]
	if !ok {
		return true, nil
	}
	pg := p.frames[frame]
	if pg.PinCount() > 0 {
		return false, nil
	}
	// A page with no pins was already marked evictable by UnpinPage;
	// Remove only accepts a non-evictable frame (see LRUKReplacer.Remove),
	// so un-mark it first — this frame is being retired outright, not
	// chosen as a victim by the replacer.
	p.replacer.SetEvictable(frame, false)
	if err := p.replacer.Remove(frame); err != nil {
		return false, err
	}
	delete(p.pageTable, id)
	pg.Reset()
	p.freeList = append(p.freeList, frame)
	return true, nil
}
