package lock

import (
	"time"

	"clustore/pkg/primitives"
)

type LockType int

const (
	SharedLock LockType = iota
	ExclusiveLock
)

func (lt LockType) String() string {
	if lt == ExclusiveLock {
		return "X"
	}
	return "S"
}

// Lock is one granted lock on a page.
type Lock struct {
	TID       *primitives.TransactionID
	LockType  LockType
	GrantTime time.Time
}

// LockRequest is a pending request queued behind conflicting holders.
type LockRequest struct {
	TID      *primitives.TransactionID
	LockType LockType
}

func NewLock(tid *primitives.TransactionID, lockType LockType) *Lock {
	return &Lock{
		TID:       tid,
		LockType:  lockType,
		GrantTime: time.Now(),
	}
}

// Config bounds how long LockPage waits for a conflicting lock.
type Config struct {
	MaxRetries    int
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration
}

// DefaultConfig waits up to roughly a minute with exponential backoff
// capped at 100ms between attempts.
func DefaultConfig() Config {
	return Config{
		MaxRetries:    1000,
		RetryDelay:    time.Millisecond,
		MaxRetryDelay: 100 * time.Millisecond,
	}
}
