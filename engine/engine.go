// Package engine is the storage core's façade: a table registry mapping
// name to (table heap, primary-key index), with CRUD and scan operations
// over typed tuples. Generalizes the teacher's db/db.go + kv/catalog.go
// (which route through a SQL VM and a schema-object catalog keyed by
// page 1) directly to the spec's map[name]→(heap, index) model, with no
// SQL compiler in between.
package engine

import (
	"sync"

	"github.com/pagedb/pagedb/bplustree"
	"github.com/pagedb/pagedb/buffer"
	"github.com/pagedb/pagedb/dberr"
	"github.com/pagedb/pagedb/disk"
	"github.com/pagedb/pagedb/heap"
	"github.com/pagedb/pagedb/types"
)

// DefaultIndexMaxSize is the B+Tree order used for every table's
// primary-key index unless the caller overrides it with Options.
const DefaultIndexMaxSize = 64

type tableHandle struct {
	schema types.Schema
	pkIdx  int
	heap   *heap.Heap
	index  *bplustree.BPlusTree[types.Value]
}

// Engine is the table registry façade over the buffer pool.
type Engine struct {
	mu     sync.RWMutex
	disk   *disk.Manager
	pool   *buffer.Pool
	tables map[string]*tableHandle

	indexMaxSize int
}

// Options configures Engine construction.
type Options struct {
	PoolSize     int
	ReplacerK    int
	IndexMaxSize int
	UseMemory    bool
	Path         string
}

// New opens (or creates) the backing file named by opts.Path (or an
// in-memory store when opts.UseMemory) and returns an Engine with an
// empty table registry.
func New(opts Options) (*Engine, error) {
	if opts.PoolSize <= 0 {
		opts.PoolSize = 128
	}
	if opts.ReplacerK <= 0 {
		opts.ReplacerK = 2
	}
	if opts.IndexMaxSize <= 0 {
		opts.IndexMaxSize = DefaultIndexMaxSize
	}
	d, err := disk.Open(opts.Path, opts.UseMemory)
	if err != nil {
		return nil, err
	}
	pool := buffer.NewPool(d, opts.PoolSize, opts.ReplacerK)
	return &Engine{
		disk:         d,
		pool:         pool,
		tables:       make(map[string]*tableHandle),
		indexMaxSize: opts.IndexMaxSize,
	}, nil
}

// CreateTable registers a new table with the given schema, which must
// name exactly one primary-key column.
func (e *Engine) CreateTable(name string, schema types.Schema) error {
	pkIdx := schema.PrimaryKeyIndex()
	pkCount := 0
	for _, c := range schema.Columns {
		if c.PrimaryKey {
			pkCount++
		}
	}
	if pkCount != 1 {
		return dberr.Wrapf(dberr.ErrEncoding, "table %q: exactly one primary key column required", name)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.tables[name]; exists {
		return dberr.Wrapf(dberr.ErrEncoding, "table %q already exists", name)
	}

	h, err := heap.Create(e.pool, schema)
	if err != nil {
		return err
	}
	idx, err := bplustree.New[types.Value](e.pool, bplustree.ValueKeyCodec{}, e.indexMaxSize)
	if err != nil {
		return err
	}
	e.tables[name] = &tableHandle{schema: schema, pkIdx: pkIdx, heap: h, index: idx}
	return nil
}

// ReadTable returns the schema registered for name.
func (e *Engine) ReadTable(name string) (types.Schema, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	h, ok := e.tables[name]
	if !ok {
		return types.Schema{}, dberr.Wrapf(dberr.ErrNotFound, "table %q", name)
	}
	return h.schema, nil
}

// DropTable removes name from the registry. The heap/index pages
// themselves are not reclaimed (no free-space map in scope).
func (e *Engine) DropTable(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.tables[name]; !ok {
		return dberr.Wrapf(dberr.ErrNotFound, "table %q", name)
	}
	delete(e.tables, name)
	return nil
}

func (e *Engine) handle(name string) (*tableHandle, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	h, ok := e.tables[name]
	if !ok {
		return nil, dberr.Wrapf(dberr.ErrNotFound, "table %q", name)
	}
	return h, nil
}

// Insert appends tuple to the named table's heap and indexes its primary
// key, returning the assigned RecordID.
func (e *Engine) Insert(name string, tuple types.Tuple) (types.RecordID, error) {
	h, err := e.handle(name)
	if err != nil {
		return types.RecordID{}, err
	}
	rid, err := h.heap.Insert(tuple)
	if err != nil {
		return types.RecordID{}, err
	}
	pk := tuple.PrimaryKey(h.pkIdx)
	if err := h.index.Insert(pk, rid); err != nil {
		_, _ = h.heap.Delete(rid)
		return types.RecordID{}, err
	}
	return rid, nil
}

// Read looks up the tuple whose primary key is key.
func (e *Engine) Read(name string, key types.Value) (types.Tuple, error) {
	h, err := e.handle(name)
	if err != nil {
		return types.Tuple{}, err
	}
	rid, ok, err := h.index.Search(key)
	if err != nil {
		return types.Tuple{}, err
	}
	if !ok {
		return types.Tuple{}, dberr.Wrapf(dberr.ErrNotFound, "table %q key %s", name, key)
	}
	return h.heap.Read(rid)
}

// Delete removes the tuple whose primary key is key from both the index
// and the heap (logical delete), returning the tuple that was removed.
func (e *Engine) Delete(name string, key types.Value) (types.Tuple, error) {
	h, err := e.handle(name)
	if err != nil {
		return types.Tuple{}, err
	}
	rid, ok, err := h.index.Search(key)
	if err != nil {
		return types.Tuple{}, err
	}
	if !ok {
		return types.Tuple{}, dberr.Wrapf(dberr.ErrNotFound, "table %q key %s", name, key)
	}
	tuple, err := h.heap.Delete(rid)
	if err != nil {
		return types.Tuple{}, err
	}
	if err := h.index.Delete(key); err != nil {
		return types.Tuple{}, err
	}
	return tuple, nil
}

// Update overwrites the tuple whose primary key is tuple's own primary
// key value. The primary key itself cannot change through Update — that
// would require a Delete+Insert, which callers can compose themselves.
func (e *Engine) Update(name string, tuple types.Tuple) error {
	h, err := e.handle(name)
	if err != nil {
		return err
	}
	key := tuple.PrimaryKey(h.pkIdx)
	rid, ok, err := h.index.Search(key)
	if err != nil {
		return err
	}
	if !ok {
		return dberr.Wrapf(dberr.ErrNotFound, "table %q key %s", name, key)
	}
	return h.heap.Update(rid, tuple)
}

// ScannedTuple pairs a tuple with the RecordID it lives at.
type ScannedTuple = heap.ScannedTuple

// Scan returns every live tuple in name's heap, in heap (insertion)
// order — not primary-key order. Use RangeScan for primary-key order.
func (e *Engine) Scan(name string) ([]ScannedTuple, error) {
	h, err := e.handle(name)
	if err != nil {
		return nil, err
	}
	return h.heap.Scan()
}

// RangeScan returns every live tuple whose primary key falls within
// [low, high] in ascending primary-key order, via the table's index.
// low and high are bplustree.Bound values, so each end can be open
// (Excluded), closed (Included), or unlimited (Unbounded).
func (e *Engine) RangeScan(name string, low, high bplustree.Bound[types.Value]) ([]types.Tuple, error) {
	h, err := e.handle(name)
	if err != nil {
		return nil, err
	}
	entries, err := h.index.RangeScan(low, high)
	if err != nil {
		return nil, err
	}
	out := make([]types.Tuple, 0, len(entries))
	for _, e2 := range entries {
		t, err := h.heap.Read(e2.Value)
		if err != nil {
			if dberr.Is(err, dberr.ErrNotFound) {
				continue // tombstoned between index lookup and heap read
			}
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// Close flushes every dirty page and releases the backing file.
func (e *Engine) Close() error {
	if err := e.pool.FlushAllPages(); err != nil {
		return err
	}
	return e.disk.Close()
}
