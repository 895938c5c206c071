package memory

import (
	"sync"

	"golang.org/x/sync/errgroup"

	"clustore/pkg/concurrency/transaction"
	"clustore/pkg/dberror"
	"clustore/pkg/logging"
	"clustore/pkg/primitives"
	"clustore/pkg/storage/page"
)

// DefaultCapacity must hold every page pinned by one internal split at the
// default page size, re-parented children included.
const DefaultCapacity = 1024

// PageLocker is the page-level locking protocol consulted on every fetch.
// lock.LockManager implements it.
type PageLocker interface {
	LockPage(tid *primitives.TransactionID, pid page.PageID, exclusive bool) error
	UnlockAllPages(tid *primitives.TransactionID)
}

// PageImageLogger records a page's before and after images before the pool
// writes an uncommitted or not-yet-flushed page to disk outside of commit.
type PageImageLogger interface {
	LogPageImage(tid *primitives.TransactionID, pid page.PageID, before, after []byte) error
}

// Config configures a BufferPool.
type Config struct {
	// Capacity is the maximum number of resident pages.
	Capacity int

	// FlushOnCommit writes a transaction's dirty pages at commit. When false
	// committed pages stay dirty in memory until evicted or flushed.
	FlushOnCommit bool

	// Locker is optional. Without one no page locks are taken.
	Locker PageLocker

	// ImageLogger is optional.
	ImageLogger PageImageLogger
}

func DefaultConfig() Config {
	return Config{
		Capacity:      DefaultCapacity,
		FlushOnCommit: true,
	}
}

// Stats is a snapshot of buffer pool counters.
type Stats struct {
	Hits      int
	Misses    int
	Evictions int
	Cached    int
	Pinned    int
}

// BufferPool caches pages of every registered table file and is the only way
// the tree reads, creates or writes pages.
//
// A page object handed out stays the cached object for that PageID until it
// is evicted or discarded, so every fetch of the same page within a mutation
// sees the same in-memory page. ReadWrite fetches pin the page for the
// transaction until it commits or aborts, and pinned pages are never evicted.
type BufferPool struct {
	config Config
	tables *TableManager
	txs    *transaction.TransactionRegistry
	cache  PageCache

	mutex  sync.Mutex
	pins   map[page.PageID]int                       // pin count across transactions
	owners map[page.PageID]*primitives.TransactionID // uncommitted writer of a dirty page
	stale  map[page.PageID]bool                      // disk differs from the committed image

	hits      int
	misses    int
	evictions int
}

// NewBufferPool creates a buffer pool over the given table registry.
func NewBufferPool(tables *TableManager, config Config) (*BufferPool, error) {
	if config.Capacity <= 0 {
		return nil, dberror.Newf(dberror.ErrCategoryConfig, dberror.CodeInvalidConfig,
			"buffer pool capacity must be positive, got %d", config.Capacity)
	}
	if tables == nil {
		tables = NewTableManager()
	}

	return &BufferPool{
		config: config,
		tables: tables,
		txs:    transaction.NewTransactionRegistry(),
		cache:  NewLRUPageCache(config.Capacity),
		pins:   make(map[page.PageID]int),
		owners: make(map[page.PageID]*primitives.TransactionID),
		stale:  make(map[page.PageID]bool),
	}, nil
}

// Tables returns the table registry backing this pool.
func (bp *BufferPool) Tables() *TableManager {
	return bp.tables
}

// BeginTransaction starts a transaction tracked by this pool.
func (bp *BufferPool) BeginTransaction() *transaction.TransactionContext {
	return bp.txs.Begin()
}

// Capacity returns the maximum number of resident pages.
func (bp *BufferPool) Capacity() int {
	return bp.config.Capacity
}

// ActiveTransactions returns the number of transactions begun and not yet
// committed or aborted.
func (bp *BufferPool) ActiveTransactions() int {
	return bp.txs.Count()
}

// GetPage retrieves a page with the given permissions for a transaction.
// This is the main entry point for all page access.
func (bp *BufferPool) GetPage(tx *transaction.TransactionContext, pid page.PageID, perm transaction.Permissions) (page.Page, error) {
	if err := bp.lockPage(tx, pid, perm); err != nil {
		return nil, err
	}
	tx.RecordPageAccess(pid, perm)

	bp.mutex.Lock()
	defer bp.mutex.Unlock()

	if p, exists := bp.cache.Get(pid); exists {
		bp.hits++
		bp.pinLocked(tx, pid, perm)
		return p, nil
	}
	bp.misses++

	if err := bp.makeRoomLocked(); err != nil {
		return nil, err
	}

	dbFile, err := bp.tables.GetDbFile(pid.GetTableID())
	if err != nil {
		return nil, err
	}

	p, err := dbFile.ReadPage(pid)
	if err != nil {
		return nil, dberror.Wrap(err, dberror.CodeIOFailure, "GetPage", "BufferPool")
	}

	if err := bp.cache.Put(pid, p); err != nil {
		return nil, err
	}
	bp.pinLocked(tx, pid, perm)
	return p, nil
}

// AddNewPage installs a freshly built page, replacing any cached page with
// the same id. The page is locked exclusively, pinned and marked dirty by tx.
func (bp *BufferPool) AddNewPage(tx *transaction.TransactionContext, p page.Page) error {
	pid := p.GetID()
	if err := bp.lockPage(tx, pid, transaction.ReadWrite); err != nil {
		return err
	}
	tx.RecordPageAccess(pid, transaction.ReadWrite)

	bp.mutex.Lock()
	defer bp.mutex.Unlock()

	if _, exists := bp.cache.Peek(pid); exists {
		bp.cache.Remove(pid)
	} else if err := bp.makeRoomLocked(); err != nil {
		return err
	}

	if err := bp.cache.Put(pid, p); err != nil {
		return err
	}
	bp.pinLocked(tx, pid, transaction.ReadWrite)
	bp.markDirtyLocked(tx, p)
	return nil
}

// MarkDirty marks a page modified by tx and records it in tx's dirty
// registry.
func (bp *BufferPool) MarkDirty(tx *transaction.TransactionContext, p page.Page) error {
	bp.mutex.Lock()
	defer bp.mutex.Unlock()

	if err := bp.cache.Put(p.GetID(), p); err != nil {
		return err
	}
	bp.markDirtyLocked(tx, p)
	return nil
}

func (bp *BufferPool) markDirtyLocked(tx *transaction.TransactionContext, p page.Page) {
	pid := p.GetID()
	p.MarkDirty(true, tx.ID)
	tx.MarkPageDirty(pid)
	bp.owners[pid] = tx.ID
}

// DiscardPage drops a page from the cache without writing it. If the disk
// copy is behind the page's committed image, the committed image is written
// first so that nothing committed is lost.
func (bp *BufferPool) DiscardPage(pid page.PageID) error {
	bp.mutex.Lock()
	defer bp.mutex.Unlock()

	p, exists := bp.cache.Peek(pid)
	if !exists {
		return nil
	}

	if bp.stale[pid] {
		if before := p.GetBeforeImage(); before != nil {
			if err := bp.writeLocked(before, false); err != nil {
				return err
			}
		}
	}

	bp.cache.Remove(pid)
	delete(bp.owners, pid)
	delete(bp.stale, pid)
	return nil
}

// CommitTransaction makes tx's before images current, writes its dirty pages
// when FlushOnCommit is set, then releases its pins and locks.
func (bp *BufferPool) CommitTransaction(tx *transaction.TransactionContext) error {
	if tx == nil {
		return dberror.New(dberror.ErrCategoryUser, dberror.CodeInvalidArgument, "transaction context cannot be nil")
	}
	tx.SetStatus(transaction.TxCommitting)

	bp.mutex.Lock()
	for _, pid := range tx.GetDirtyPages() {
		p, exists := bp.cache.Peek(pid)
		if !exists {
			continue
		}

		p.SetBeforeImage()
		delete(bp.owners, pid)

		if !bp.config.FlushOnCommit {
			bp.stale[pid] = true
			continue
		}
		if p.IsDirty() == nil {
			delete(bp.stale, pid)
			continue
		}
		if err := bp.writeLocked(p, false); err != nil {
			bp.mutex.Unlock()
			return dberror.Wrap(err, dberror.CodeIOFailure, "CommitTransaction", "BufferPool").
				WithDetail("flush of %s failed, transaction must be aborted", pid)
		}
	}
	bp.releaseLocked(tx)
	bp.mutex.Unlock()

	bp.unlockAll(tx)
	tx.SetStatus(transaction.TxCommitted)
	logging.WithTx(tx.ID).Debug("transaction committed", "stats", tx.GetStatistics())
	return nil
}

// AbortTransaction replaces every page tx dirtied with its before image and
// releases its pins and locks.
func (bp *BufferPool) AbortTransaction(tx *transaction.TransactionContext) error {
	if tx == nil {
		return dberror.New(dberror.ErrCategoryUser, dberror.CodeInvalidArgument, "transaction context cannot be nil")
	}
	tx.SetStatus(transaction.TxAborting)

	bp.mutex.Lock()
	for _, pid := range tx.GetDirtyPages() {
		p, exists := bp.cache.Peek(pid)
		if !exists {
			continue
		}
		delete(bp.owners, pid)

		before := p.GetBeforeImage()
		if before == nil {
			logging.WithPage(pid.String()).Warn("no before image during abort, dropping page", "tx_id", tx.ID.ID())
			bp.cache.Remove(pid)
			delete(bp.stale, pid)
			continue
		}

		before.MarkDirty(bp.stale[pid], tx.ID)
		_ = bp.cache.Put(pid, before)
	}
	bp.releaseLocked(tx)
	bp.mutex.Unlock()

	bp.unlockAll(tx)
	tx.SetStatus(transaction.TxAborted)
	logging.WithTx(tx.ID).Debug("transaction aborted")
	return nil
}

// FlushAllPages writes every dirty page. Pages are grouped by table file and
// the files are written concurrently. Callers quiesce writers first.
func (bp *BufferPool) FlushAllPages() error {
	if writers := bp.txs.Writers(); len(writers) > 0 && bp.config.ImageLogger == nil {
		logging.WithComponent("buffer_pool").Warn("flushing uncommitted pages without an image logger",
			"writers", len(writers))
	}

	bp.mutex.Lock()
	defer bp.mutex.Unlock()

	byTable := make(map[primitives.TableID][]page.Page)
	for _, pid := range bp.cache.GetAll() {
		p, _ := bp.cache.Peek(pid)
		if p.IsDirty() != nil {
			byTable[pid.GetTableID()] = append(byTable[pid.GetTableID()], p)
		}
	}
	return bp.flushGroupsLocked(byTable)
}

// FlushPages writes the dirty pages of one transaction without committing it.
func (bp *BufferPool) FlushPages(tx *transaction.TransactionContext) error {
	bp.mutex.Lock()
	defer bp.mutex.Unlock()

	byTable := make(map[primitives.TableID][]page.Page)
	for _, pid := range tx.GetDirtyPages() {
		p, exists := bp.cache.Peek(pid)
		if exists && p.IsDirty() != nil {
			byTable[pid.GetTableID()] = append(byTable[pid.GetTableID()], p)
		}
	}
	return bp.flushGroupsLocked(byTable)
}

func (bp *BufferPool) flushGroupsLocked(byTable map[primitives.TableID][]page.Page) error {
	var g errgroup.Group
	for tableID, pages := range byTable {
		dbFile, err := bp.tables.GetDbFile(tableID)
		if err != nil {
			return err
		}

		g.Go(func() error {
			for _, p := range pages {
				if err := bp.logImage(p); err != nil {
					return err
				}
				if err := dbFile.WritePage(p); err != nil {
					return dberror.Wrap(err, dberror.CodeIOFailure, "FlushAllPages", "BufferPool")
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	for _, pages := range byTable {
		for _, p := range pages {
			pid := p.GetID()
			p.MarkDirty(false, nil)
			if bp.owners[pid] != nil {
				bp.stale[pid] = true
			} else {
				delete(bp.stale, pid)
			}
		}
	}

	logging.WithComponent("buffer_pool").Debug("flushed dirty pages", "tables", len(byTable))
	return nil
}

// Stats returns a snapshot of the pool counters.
func (bp *BufferPool) Stats() Stats {
	bp.mutex.Lock()
	defer bp.mutex.Unlock()

	return Stats{
		Hits:      bp.hits,
		Misses:    bp.misses,
		Evictions: bp.evictions,
		Cached:    bp.cache.Size(),
		Pinned:    len(bp.pins),
	}
}

// IsCached reports whether pid is resident.
func (bp *BufferPool) IsCached(pid page.PageID) bool {
	bp.mutex.Lock()
	defer bp.mutex.Unlock()
	_, ok := bp.cache.Peek(pid)
	return ok
}

// PinCount returns the number of transactions pinning pid.
func (bp *BufferPool) PinCount(pid page.PageID) int {
	bp.mutex.Lock()
	defer bp.mutex.Unlock()
	return bp.pins[pid]
}

// Close flushes every dirty page and closes the registered table files.
func (bp *BufferPool) Close() error {
	if err := bp.FlushAllPages(); err != nil {
		return err
	}

	bp.mutex.Lock()
	bp.cache.Clear()
	clear(bp.pins)
	clear(bp.owners)
	clear(bp.stale)
	bp.mutex.Unlock()

	bp.tables.Clear()
	return nil
}

func (bp *BufferPool) lockPage(tx *transaction.TransactionContext, pid page.PageID, perm transaction.Permissions) error {
	if bp.config.Locker == nil {
		return nil
	}
	if err := bp.config.Locker.LockPage(tx.ID, pid, perm == transaction.ReadWrite); err != nil {
		return dberror.Wrap(err, dberror.CodeLockTimeout, "GetPage", "BufferPool")
	}
	return nil
}

func (bp *BufferPool) unlockAll(tx *transaction.TransactionContext) {
	if bp.config.Locker != nil {
		bp.config.Locker.UnlockAllPages(tx.ID)
	}
	bp.txs.Remove(tx.ID)
}

func (bp *BufferPool) pinLocked(tx *transaction.TransactionContext, pid page.PageID, perm transaction.Permissions) {
	if perm == transaction.ReadWrite && tx.RecordPin(pid) {
		bp.pins[pid]++
	}
}

func (bp *BufferPool) releaseLocked(tx *transaction.TransactionContext) {
	for _, pid := range tx.GetPinnedPages() {
		if bp.pins[pid] <= 1 {
			delete(bp.pins, pid)
		} else {
			bp.pins[pid]--
		}
	}
	tx.ClearPins()
	tx.ClearDirtyPages()
}

// makeRoomLocked evicts one page if the pool is at capacity.
func (bp *BufferPool) makeRoomLocked() error {
	if bp.cache.Size() < bp.config.Capacity {
		return nil
	}

	pid, victim, ok := bp.cache.Victim(func(pid page.PageID, _ page.Page) bool {
		return bp.pins[pid] == 0
	})
	if !ok {
		return dberror.Newf(dberror.ErrCategoryTransient, dberror.CodeBufferPoolFull,
			"all %d pages are pinned", bp.config.Capacity).
			WithOperation("GetPage", "BufferPool")
	}

	dirty := victim.IsDirty() != nil
	if dirty {
		if err := bp.writeLocked(victim, true); err != nil {
			return err
		}
	}

	bp.cache.Remove(pid)
	delete(bp.stale, pid)
	bp.evictions++
	logging.WithPage(pid.String()).Debug("evicted page", "dirty", dirty)
	return nil
}

// writeLocked writes p to its file and marks it clean.
func (bp *BufferPool) writeLocked(p page.Page, logImage bool) error {
	pid := p.GetID()
	dbFile, err := bp.tables.GetDbFile(pid.GetTableID())
	if err != nil {
		return err
	}

	if logImage {
		if err := bp.logImage(p); err != nil {
			return err
		}
	}

	if err := dbFile.WritePage(p); err != nil {
		return dberror.Wrap(err, dberror.CodeIOFailure, "WritePage", "BufferPool")
	}
	p.MarkDirty(false, nil)

	if bp.owners[pid] != nil {
		bp.stale[pid] = true
	} else {
		delete(bp.stale, pid)
	}
	return nil
}

func (bp *BufferPool) logImage(p page.Page) error {
	if bp.config.ImageLogger == nil {
		return nil
	}

	var before []byte
	if img := p.GetBeforeImage(); img != nil {
		before = img.GetPageData()
	}
	if err := bp.config.ImageLogger.LogPageImage(p.IsDirty(), p.GetID(), before, p.GetPageData()); err != nil {
		return dberror.Wrap(err, dberror.CodeIOFailure, "LogPageImage", "BufferPool")
	}
	return nil
}
