// Package lock implements page-level strict two-phase locking.
//
// A transaction acquires locks as it touches pages and releases all of them
// at commit or abort. Locks are never released mid-transaction by the tree.
//
// Two lock modes are supported:
//
//   - [SharedLock] is taken to read a page and is compatible with other
//     shared locks.
//   - [ExclusiveLock] is taken to write a page and conflicts with every
//     other lock.
//
// A shared lock is upgraded in place when its holder is the only
// transaction holding the page. Exclusive locks are never downgraded.
//
// # Waiting
//
// [LockManager.LockPage] does not park goroutines on condition variables.
// A request that cannot be granted is queued in FIFO order for the page and
// retried with exponential backoff bounded by [Config]. A queued request is
// granted only once no earlier request for the same page is still waiting.
//
// # Deadlocks
//
// While waiting, the requester adds edges to a [DependencyGraph]: one to each
// conflicting holder and one to each conflicting request queued ahead of it.
// If the graph then contains a cycle the requester gives up immediately with
// a DEADLOCK error and its pending request is withdrawn. The caller is
// expected to abort the transaction, which releases its locks through
// [LockManager.UnlockAllPages].
package lock
