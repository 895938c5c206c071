package transaction

import (
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"clustore/pkg/primitives"
	"clustore/pkg/storage/page"
)

// TransactionStatus represents the current state of a transaction
type TransactionStatus int

const (
	TxActive TransactionStatus = iota
	TxCommitting
	TxAborting
	TxCommitted
	TxAborted
)

// Permissions represents the access level requested when fetching a page
type Permissions int

const (
	ReadOnly Permissions = iota
	ReadWrite
)

func (p Permissions) String() string {
	if p == ReadWrite {
		return "READ_WRITE"
	}
	return "READ_ONLY"
}

func (ts TransactionStatus) String() string {
	switch ts {
	case TxActive:
		return "ACTIVE"
	case TxCommitting:
		return "COMMITTING"
	case TxAborting:
		return "ABORTING"
	case TxCommitted:
		return "COMMITTED"
	case TxAborted:
		return "ABORTED"
	default:
		return "UNKNOWN"
	}
}

type TransactionStats struct {
	PagesRead   int
	PagesDirty  int
	RowsRead    int
	RowsWritten int
	RowsDeleted int
	LockedPages int
	PinnedPages int
}

// TransactionContext is the explicit per-operation context threaded through
// every tree and buffer pool call. It records which pages the transaction
// touched, which it pinned and which it dirtied, so that commit and abort
// know exactly what to flush, restore and release.
type TransactionContext struct {
	ID *primitives.TransactionID

	status    TransactionStatus
	startTime time.Time
	endTime   time.Time
	mutex     sync.RWMutex

	// Maps PageID to the strongest permission requested
	lockedPages map[page.PageID]Permissions
	dirtyPages  map[page.PageID]bool
	pinnedPages map[page.PageID]bool

	pagesRead   int
	rowsRead    int
	rowsWritten int
	rowsDeleted int
}

func NewTransactionContext(tid *primitives.TransactionID) *TransactionContext {
	return &TransactionContext{
		ID:          tid,
		status:      TxActive,
		startTime:   time.Now(),
		lockedPages: make(map[page.PageID]Permissions),
		dirtyPages:  make(map[page.PageID]bool),
		pinnedPages: make(map[page.PageID]bool),
	}
}

// IsActive returns true if the transaction is still active
func (tc *TransactionContext) IsActive() bool {
	tc.mutex.RLock()
	defer tc.mutex.RUnlock()
	return tc.status == TxActive
}

func (tc *TransactionContext) GetStatus() TransactionStatus {
	tc.mutex.RLock()
	defer tc.mutex.RUnlock()
	return tc.status
}

// SetStatus updates the transaction status
func (tc *TransactionContext) SetStatus(status TransactionStatus) {
	tc.mutex.Lock()
	defer tc.mutex.Unlock()
	tc.status = status
	if status == TxCommitted || status == TxAborted {
		tc.endTime = time.Now()
	}
}

// RecordPageAccess records that this transaction has accessed a page.
// A ReadWrite record is never downgraded.
func (tc *TransactionContext) RecordPageAccess(pid page.PageID, perm Permissions) {
	tc.mutex.Lock()
	defer tc.mutex.Unlock()

	if existing, exists := tc.lockedPages[pid]; exists && existing == ReadWrite {
		return
	}

	tc.lockedPages[pid] = perm
	if perm == ReadOnly {
		tc.pagesRead++
	}
}

// RecordPin records that the transaction holds a pin on pid. It returns
// false when the page was already pinned by this transaction, so each
// transaction contributes at most one pin per page.
func (tc *TransactionContext) RecordPin(pid page.PageID) bool {
	tc.mutex.Lock()
	defer tc.mutex.Unlock()

	if tc.pinnedPages[pid] {
		return false
	}
	tc.pinnedPages[pid] = true
	return true
}

// GetPinnedPages returns the pages pinned by this transaction
func (tc *TransactionContext) GetPinnedPages() []page.PageID {
	tc.mutex.RLock()
	defer tc.mutex.RUnlock()
	return slices.Collect(maps.Keys(tc.pinnedPages))
}

// ClearPins forgets every pin. Called once the buffer pool has released them.
func (tc *TransactionContext) ClearPins() {
	tc.mutex.Lock()
	defer tc.mutex.Unlock()
	clear(tc.pinnedPages)
}

// MarkPageDirty marks a page as dirty (modified) by this transaction
func (tc *TransactionContext) MarkPageDirty(pid page.PageID) {
	tc.mutex.Lock()
	defer tc.mutex.Unlock()
	tc.dirtyPages[pid] = true
}

// IsPageDirty reports whether this transaction dirtied pid.
func (tc *TransactionContext) IsPageDirty(pid page.PageID) bool {
	tc.mutex.RLock()
	defer tc.mutex.RUnlock()
	return tc.dirtyPages[pid]
}

// GetDirtyPages returns a copy of all dirty pages
func (tc *TransactionContext) GetDirtyPages() []page.PageID {
	tc.mutex.RLock()
	defer tc.mutex.RUnlock()
	return slices.Collect(maps.Keys(tc.dirtyPages))
}

// ClearDirtyPages empties the dirty registry after commit or abort.
func (tc *TransactionContext) ClearDirtyPages() {
	tc.mutex.Lock()
	defer tc.mutex.Unlock()
	clear(tc.dirtyPages)
}

// GetLockedPages returns a copy of all accessed pages
func (tc *TransactionContext) GetLockedPages() []page.PageID {
	tc.mutex.RLock()
	defer tc.mutex.RUnlock()
	return slices.Collect(maps.Keys(tc.lockedPages))
}

func (tc *TransactionContext) GetPagePermission(pid page.PageID) (perm Permissions, exists bool) {
	tc.mutex.RLock()
	defer tc.mutex.RUnlock()
	perm, exists = tc.lockedPages[pid]
	return
}

// RecordRowRead increments the rows read counter
func (tc *TransactionContext) RecordRowRead() {
	tc.mutex.Lock()
	defer tc.mutex.Unlock()
	tc.rowsRead++
}

// RecordRowWrite increments the rows written counter
func (tc *TransactionContext) RecordRowWrite() {
	tc.mutex.Lock()
	defer tc.mutex.Unlock()
	tc.rowsWritten++
}

// RecordRowDelete increments the rows deleted counter
func (tc *TransactionContext) RecordRowDelete() {
	tc.mutex.Lock()
	defer tc.mutex.Unlock()
	tc.rowsDeleted++
}

// GetStatistics returns a snapshot of transaction statistics
func (tc *TransactionContext) GetStatistics() TransactionStats {
	tc.mutex.RLock()
	defer tc.mutex.RUnlock()

	return TransactionStats{
		PagesRead:   tc.pagesRead,
		PagesDirty:  len(tc.dirtyPages),
		RowsRead:    tc.rowsRead,
		RowsWritten: tc.rowsWritten,
		RowsDeleted: tc.rowsDeleted,
		LockedPages: len(tc.lockedPages),
		PinnedPages: len(tc.pinnedPages),
	}
}

// Duration returns how long the transaction has been running
func (tc *TransactionContext) Duration() time.Duration {
	tc.mutex.RLock()
	defer tc.mutex.RUnlock()
	return tc.durationLocked()
}

func (tc *TransactionContext) durationLocked() time.Duration {
	endTime := tc.endTime
	if endTime.IsZero() {
		endTime = time.Now()
	}
	return endTime.Sub(tc.startTime)
}

func (tc *TransactionContext) String() string {
	tc.mutex.RLock()
	defer tc.mutex.RUnlock()

	return fmt.Sprintf("Transaction %s [Status=%s, Duration=%v, Dirty=%d, Locked=%d, Pinned=%d]",
		tc.ID.String(), tc.status.String(), tc.durationLocked(),
		len(tc.dirtyPages), len(tc.lockedPages), len(tc.pinnedPages))
}
