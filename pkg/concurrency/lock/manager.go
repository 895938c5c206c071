package lock

import (
	"sync"
	"time"

	"clustore/pkg/dberror"
	"clustore/pkg/logging"
	"clustore/pkg/primitives"
	"clustore/pkg/storage/page"
)

type LockManager struct {
	pageLocks  map[page.PageID][]*Lock                                // Page -> granted locks
	txLocks    map[*primitives.TransactionID]map[page.PageID]LockType // Transaction -> pages it has locked
	waitingFor map[*primitives.TransactionID]map[page.PageID]bool     // Transaction -> pages it's waiting for
	waitQueue  map[page.PageID][]*LockRequest                         // Page -> waiting requests, FIFO
	depGraph   *DependencyGraph
	mutex      sync.Mutex
	config     Config
}

func NewLockManager() *LockManager {
	return NewLockManagerWithConfig(DefaultConfig())
}

func NewLockManagerWithConfig(config Config) *LockManager {
	return &LockManager{
		pageLocks:  make(map[page.PageID][]*Lock),
		txLocks:    make(map[*primitives.TransactionID]map[page.PageID]LockType),
		waitingFor: make(map[*primitives.TransactionID]map[page.PageID]bool),
		waitQueue:  make(map[page.PageID][]*LockRequest),
		depGraph:   NewDependencyGraph(),
		config:     config,
	}
}

// LockPage blocks until tid holds a lock on pid of at least the requested
// strength. It fails with a DEADLOCK error as soon as waiting would close a
// cycle in the wait-for graph, and with LOCK_TIMEOUT once the retry budget
// is spent.
func (lm *LockManager) LockPage(tid *primitives.TransactionID, pid page.PageID, exclusive bool) error {
	if tid == nil {
		return dberror.New(dberror.ErrCategoryUser, dberror.CodeInvalidArgument, "transaction ID cannot be nil")
	}

	lockType := SharedLock
	if exclusive {
		lockType = ExclusiveLock
	}

	retryDelay := lm.config.RetryDelay
	for attempt := 0; attempt < lm.config.MaxRetries; attempt++ {
		lm.mutex.Lock()

		if lm.alreadyHasLock(tid, pid, lockType) {
			lm.stopWaiting(tid, pid)
			lm.mutex.Unlock()
			return nil
		}

		if lockType == ExclusiveLock && lm.holdsLockType(tid, pid, SharedLock) && lm.soleHolder(tid, pid) {
			lm.upgradeLock(tid, pid)
			lm.stopWaiting(tid, pid)
			lm.mutex.Unlock()
			return nil
		}

		if !lm.hasQueuedAhead(tid, pid) && lm.canGrantLockImmediately(tid, pid, lockType) {
			lm.grantLock(tid, pid, lockType)
			lm.stopWaiting(tid, pid)
			lm.mutex.Unlock()
			return nil
		}

		lm.addToWaitQueue(tid, pid, lockType)
		lm.updateDependencies(tid, pid, lockType)

		if lm.depGraph.HasCycle() {
			lm.stopWaiting(tid, pid)
			lm.mutex.Unlock()
			logging.WithLock(tid, pid.String()).Debug("deadlock detected", "lock_type", lockType.String())
			return dberror.New(dberror.ErrCategoryConcurrency, dberror.CodeDeadlock, "deadlock detected").
				WithDetail("%s waiting for %s on %s", tid, lockType, pid).
				WithOperation("LockPage", "LockManager")
		}

		lm.mutex.Unlock()
		time.Sleep(retryDelay)
		retryDelay = min(retryDelay*2, lm.config.MaxRetryDelay)
	}

	lm.mutex.Lock()
	lm.stopWaiting(tid, pid)
	lm.mutex.Unlock()

	return dberror.New(dberror.ErrCategoryConcurrency, dberror.CodeLockTimeout, "timeout waiting for lock").
		WithDetail("%s waiting for %s on %s", tid, lockType, pid).
		WithOperation("LockPage", "LockManager")
}

func (lm *LockManager) alreadyHasLock(tid *primitives.TransactionID, pid page.PageID, reqLockType LockType) bool {
	current, ok := lm.txLocks[tid][pid]
	if !ok {
		return false
	}
	return current == ExclusiveLock || reqLockType == SharedLock
}

func (lm *LockManager) holdsLockType(tid *primitives.TransactionID, pid page.PageID, lockType LockType) bool {
	current, ok := lm.txLocks[tid][pid]
	return ok && current == lockType
}

func (lm *LockManager) soleHolder(tid *primitives.TransactionID, pid page.PageID) bool {
	for _, lock := range lm.pageLocks[pid] {
		if lock.TID != tid {
			return false
		}
	}
	return true
}

// hasQueuedAhead reports whether another transaction queued for pid before
// tid. Honouring the queue keeps a stream of shared requests from starving
// an exclusive waiter.
func (lm *LockManager) hasQueuedAhead(tid *primitives.TransactionID, pid page.PageID) bool {
	for _, req := range lm.waitQueue[pid] {
		if req.TID == tid {
			return false
		}
		return true
	}
	return false
}

func (lm *LockManager) canGrantLockImmediately(tid *primitives.TransactionID, pid page.PageID, lockType LockType) bool {
	for _, lock := range lm.pageLocks[pid] {
		if lock.TID == tid {
			continue
		}
		if lockType == ExclusiveLock || lock.LockType == ExclusiveLock {
			return false
		}
	}
	return true
}

func (lm *LockManager) grantLock(tid *primitives.TransactionID, pid page.PageID, lockType LockType) {
	lm.pageLocks[pid] = append(lm.pageLocks[pid], NewLock(tid, lockType))

	if lm.txLocks[tid] == nil {
		lm.txLocks[tid] = make(map[page.PageID]LockType)
	}
	lm.txLocks[tid][pid] = lockType
}

func (lm *LockManager) upgradeLock(tid *primitives.TransactionID, pid page.PageID) {
	for _, lock := range lm.pageLocks[pid] {
		if lock.TID == tid {
			lock.LockType = ExclusiveLock
		}
	}
	lm.txLocks[tid][pid] = ExclusiveLock
}

func (lm *LockManager) addToWaitQueue(tid *primitives.TransactionID, pid page.PageID, lockType LockType) {
	if lm.waitingFor[tid][pid] {
		return
	}

	lm.waitQueue[pid] = append(lm.waitQueue[pid], &LockRequest{TID: tid, LockType: lockType})
	if lm.waitingFor[tid] == nil {
		lm.waitingFor[tid] = make(map[page.PageID]bool)
	}
	lm.waitingFor[tid][pid] = true
}

// stopWaiting removes tid's request for pid and its wait-for edges.
func (lm *LockManager) stopWaiting(tid *primitives.TransactionID, pid page.PageID) {
	if queue, ok := lm.waitQueue[pid]; ok {
		remaining := queue[:0]
		for _, req := range queue {
			if req.TID != tid {
				remaining = append(remaining, req)
			}
		}
		if len(remaining) > 0 {
			lm.waitQueue[pid] = remaining
		} else {
			delete(lm.waitQueue, pid)
		}
	}

	if pages, ok := lm.waitingFor[tid]; ok {
		delete(pages, pid)
		if len(pages) == 0 {
			delete(lm.waitingFor, tid)
		}
	}

	lm.depGraph.RemoveTransaction(tid)
}

func (lm *LockManager) updateDependencies(tid *primitives.TransactionID, pid page.PageID, lockType LockType) {
	for _, lock := range lm.pageLocks[pid] {
		if lock.TID == tid {
			continue
		}
		if lockType == ExclusiveLock || lock.LockType == ExclusiveLock {
			lm.depGraph.AddEdge(tid, lock.TID)
		}
	}

	for _, req := range lm.waitQueue[pid] {
		if req.TID == tid {
			break
		}
		if lockType == ExclusiveLock || req.LockType == ExclusiveLock {
			lm.depGraph.AddEdge(tid, req.TID)
		}
	}
}

// IsPageLocked reports whether any transaction holds a lock on pid.
func (lm *LockManager) IsPageLocked(pid page.PageID) bool {
	lm.mutex.Lock()
	defer lm.mutex.Unlock()
	return len(lm.pageLocks[pid]) > 0
}

// HoldsLock reports whether tid holds a lock on pid of at least the given strength.
func (lm *LockManager) HoldsLock(tid *primitives.TransactionID, pid page.PageID, exclusive bool) bool {
	lm.mutex.Lock()
	defer lm.mutex.Unlock()

	lockType := SharedLock
	if exclusive {
		lockType = ExclusiveLock
	}
	return lm.alreadyHasLock(tid, pid, lockType)
}

// UnlockPage releases tid's lock on a single page.
func (lm *LockManager) UnlockPage(tid *primitives.TransactionID, pid page.PageID) {
	lm.mutex.Lock()
	defer lm.mutex.Unlock()

	lm.releaseLocked(tid, pid)
	if pages, ok := lm.txLocks[tid]; ok && len(pages) == 0 {
		delete(lm.txLocks, tid)
	}
	lm.depGraph.RemoveTransaction(tid)
}

// UnlockAllPages releases every lock and pending request of tid. Called at
// commit and abort.
func (lm *LockManager) UnlockAllPages(tid *primitives.TransactionID) {
	lm.mutex.Lock()
	defer lm.mutex.Unlock()

	for pid := range lm.txLocks[tid] {
		lm.releaseLocked(tid, pid)
	}
	delete(lm.txLocks, tid)

	for pid := range lm.waitingFor[tid] {
		lm.stopWaiting(tid, pid)
	}
	delete(lm.waitingFor, tid)
	lm.depGraph.RemoveTransaction(tid)
}

func (lm *LockManager) releaseLocked(tid *primitives.TransactionID, pid page.PageID) {
	if locks, exists := lm.pageLocks[pid]; exists {
		remaining := locks[:0]
		for _, lock := range locks {
			if lock.TID != tid {
				remaining = append(remaining, lock)
			}
		}
		if len(remaining) > 0 {
			lm.pageLocks[pid] = remaining
		} else {
			delete(lm.pageLocks, pid)
		}
	}

	if pages, ok := lm.txLocks[tid]; ok {
		delete(pages, pid)
	}
}
