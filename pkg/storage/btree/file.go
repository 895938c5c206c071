package btree

import (
	"sync"
	"sync/atomic"

	"clustore/pkg/concurrency/transaction"
	"clustore/pkg/dberror"
	"clustore/pkg/logging"
	"clustore/pkg/memory"
	"clustore/pkg/primitives"
	"clustore/pkg/storage/page"
	"clustore/pkg/tuple"
	"clustore/pkg/types"
)

// File is a table stored as a clustered B+Tree: rows live in the leaves,
// ordered by the key field. Every page access goes through the buffer pool
// with an explicit transaction context.
type File struct {
	file      *page.BaseFile
	tableID   primitives.TableID
	layout    *layout
	pool      *memory.BufferPool
	initMutex sync.Mutex
	ready     atomic.Bool
}

// Open opens (creating if needed) the table file at path and registers it
// with pool under the file's base name.
func Open(path primitives.Filepath, td *tuple.TupleDescription, keyField int, pool *memory.BufferPool, cfg Config) (*File, error) {
	l, err := newLayout(cfg.PageSize, td, keyField)
	if err != nil {
		logging.WithComponent("BTreeFile").Error("invalid table configuration", "path", path.String(), "error", err)
		return nil, err
	}
	if pool == nil {
		return nil, dberror.New(dberror.ErrCategoryConfig, dberror.CodeInvalidConfig, "buffer pool cannot be nil")
	}

	base, err := page.NewBaseFile(path, page.FileOptions{
		PageSize:    cfg.PageSize,
		HeaderSize:  RootPtrSize,
		CacheBytes:  cfg.BlockCacheBytes,
		SyncOnWrite: cfg.SyncOnWrite,
	})
	if err != nil {
		return nil, err
	}

	f := &File{
		file:    base,
		tableID: base.GetID().AsTableID(),
		layout:  l,
		pool:    pool,
	}
	if err := pool.Tables().AddTable(path.Base(), f); err != nil {
		base.Close()
		return nil, err
	}

	if need := l.internalSlots + 16; pool.Capacity() < need {
		logging.WithTable(f.tableID).Warn("buffer pool may be too small for an internal split",
			"capacity", pool.Capacity(), "recommended", need)
	}
	logging.WithTable(f.tableID).Debug("opened table file",
		"path", path.String(),
		"page_size", cfg.PageSize,
		"leaf_slots", l.leafSlots,
		"internal_slots", l.internalSlots)
	return f, nil
}

// GetID returns the table id derived from the file path.
func (f *File) GetID() primitives.TableID {
	return f.tableID
}

// TupleDesc returns the row schema.
func (f *File) TupleDesc() *tuple.TupleDescription {
	return f.layout.td
}

// KeyField returns the index of the key column.
func (f *File) KeyField() int {
	return f.layout.keyField
}

// PageSize returns the size of numbered pages in bytes.
func (f *File) PageSize() int {
	return f.layout.pageSize
}

// LeafCapacity returns the number of rows a leaf page holds.
func (f *File) LeafCapacity() int {
	return f.layout.leafSlots
}

// InternalCapacity returns the number of keys an internal page holds.
func (f *File) InternalCapacity() int {
	return f.layout.internalSlots
}

// HeaderCapacity returns the number of page numbers one header page tracks.
func (f *File) HeaderCapacity() int {
	return f.layout.headerSlots
}

// NumPages returns the number of numbered pages in the file.
func (f *File) NumPages() (primitives.PageNumber, error) {
	return f.file.NumPages()
}

// BlockCacheMetrics returns hits and misses of the block cache under the
// buffer pool.
func (f *File) BlockCacheMetrics() (hits, misses uint64) {
	return f.file.CacheMetrics()
}

// ReadPage reads and decodes the page named by pid.
func (f *File) ReadPage(pid page.PageID) (page.Page, error) {
	if pid.GetTableID() != f.tableID {
		return nil, dberror.Newf(dberror.ErrCategoryUser, dberror.CodeInvalidArgument,
			"page %s does not belong to table %s", pid, f.tableID)
	}

	data, err := f.file.ReadPageData(pid.PageNo())
	if err != nil {
		return nil, err
	}

	switch pid.Category() {
	case page.CategoryRootPtr:
		return parseRootPointerPage(f.tableID, data)
	case page.CategoryHeader:
		return parseHeaderPage(pid, data)
	case page.CategoryInternal:
		return parseInternalPage(pid, f.layout, data)
	case page.CategoryLeaf:
		return parseLeafPage(pid, f.layout, data)
	default:
		return nil, corruptPage("unknown page category %s", pid.Category())
	}
}

// WritePage overwrites the page at its offset in the file.
func (f *File) WritePage(p page.Page) error {
	return f.file.WritePageData(p.GetID().PageNo(), p.GetPageData())
}

// Close releases the underlying file. Cached pages are not flushed; close
// the buffer pool for that.
func (f *File) Close() error {
	return f.file.Close()
}

// ensureInitialized writes the root pointer and an empty root leaf to an
// empty file. It reports whether the file holds a tree.
func (f *File) ensureInitialized(create bool) (bool, error) {
	if f.ready.Load() {
		return true, nil
	}
	f.initMutex.Lock()
	defer f.initMutex.Unlock()

	size, err := f.file.Size()
	if err != nil {
		return false, err
	}
	if size > 0 {
		f.ready.Store(true)
		return true, nil
	}
	if !create {
		return false, nil
	}

	rp := NewRootPointerPage(f.tableID)
	rp.root = 1
	rp.rootCategory = page.CategoryLeaf
	if err := f.file.WritePageData(primitives.InvalidPageNumber, rp.GetPageData()); err != nil {
		return false, err
	}
	if _, err := f.file.AllocateNewPage(); err != nil {
		return false, err
	}
	f.ready.Store(true)
	logging.WithTable(f.tableID).Debug("initialized empty table file")
	return true, nil
}

// keyOf returns the key field of row, checking the row against the schema.
func (f *File) keyOf(row *tuple.Tuple) (types.Field, error) {
	if row == nil {
		return nil, dberror.New(dberror.ErrCategoryUser, dberror.CodeInvalidArgument, "row cannot be nil")
	}
	if !row.TupleDesc.Equals(f.layout.td) {
		return nil, dberror.New(dberror.ErrCategoryUser, dberror.CodeTypeMismatch, "row schema does not match table").
			WithDetail("table %s, row %s", f.layout.td, row.TupleDesc)
	}
	for i := range f.layout.td.NumFields() {
		field, _ := row.GetField(i)
		if field == nil {
			return nil, dberror.Newf(dberror.ErrCategoryUser, dberror.CodeTypeMismatch, "field %d is not set", i)
		}
		if err := checkFieldSize(field); err != nil {
			return nil, err.WithDetail("field %d", i)
		}
	}
	key, _ := row.GetField(f.layout.keyField)
	return key, nil
}

func (f *File) checkKey(key types.Field) error {
	if key == nil || key.Type() != f.layout.keyType {
		return dberror.Newf(dberror.ErrCategoryUser, dberror.CodeTypeMismatch,
			"key must be of type %s", f.layout.keyType)
	}
	if err := checkFieldSize(key); err != nil {
		return err
	}
	return nil
}

// checkFieldSize rejects string values longer than their fixed on-disk slot.
func checkFieldSize(field types.Field) *dberror.DBError {
	if sf, ok := field.(*types.StringField); ok && len(sf.Value) > types.StringMaxSize {
		return dberror.Newf(dberror.ErrCategoryUser, dberror.CodeInvalidArgument,
			"string of %d bytes exceeds the %d-byte limit", len(sf.Value), types.StringMaxSize)
	}
	return nil
}

func (f *File) checkTx(tx *transaction.TransactionContext) error {
	if tx == nil {
		return dberror.New(dberror.ErrCategoryUser, dberror.CodeInvalidArgument, "transaction context cannot be nil")
	}
	if !tx.IsActive() {
		return dberror.Newf(dberror.ErrCategoryUser, dberror.CodeInvalidArgument, "transaction %s is %s", tx.ID, tx.GetStatus())
	}
	return nil
}
