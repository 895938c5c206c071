package transaction

import (
	"sync"

	"clustore/pkg/primitives"
)

// TransactionRegistry tracks the contexts of transactions that have begun
// and not yet committed or aborted.
type TransactionRegistry struct {
	mutex    sync.RWMutex
	contexts map[*primitives.TransactionID]*TransactionContext
}

func NewTransactionRegistry() *TransactionRegistry {
	return &TransactionRegistry{
		contexts: make(map[*primitives.TransactionID]*TransactionContext),
	}
}

// Begin starts and registers a new transaction.
func (tr *TransactionRegistry) Begin() *TransactionContext {
	tx := NewTransactionContext(primitives.NewTransactionID())

	tr.mutex.Lock()
	tr.contexts[tx.ID] = tx
	tr.mutex.Unlock()
	return tx
}

func (tr *TransactionRegistry) Get(tid *primitives.TransactionID) (*TransactionContext, bool) {
	tr.mutex.RLock()
	defer tr.mutex.RUnlock()
	tx, ok := tr.contexts[tid]
	return tx, ok
}

func (tr *TransactionRegistry) Remove(tid *primitives.TransactionID) {
	tr.mutex.Lock()
	defer tr.mutex.Unlock()
	delete(tr.contexts, tid)
}

// Writers returns the registered transactions that still hold uncommitted
// dirty pages.
func (tr *TransactionRegistry) Writers() []*TransactionContext {
	tr.mutex.RLock()
	defer tr.mutex.RUnlock()

	var writers []*TransactionContext
	for _, tx := range tr.contexts {
		if tx.IsActive() && len(tx.GetDirtyPages()) > 0 {
			writers = append(writers, tx)
		}
	}
	return writers
}

func (tr *TransactionRegistry) Count() int {
	tr.mutex.RLock()
	defer tr.mutex.RUnlock()
	return len(tr.contexts)
}
