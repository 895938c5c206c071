package lock

import (
	"clustore/pkg/primitives"
)

// DependencyGraph is the wait-for graph used for deadlock detection. An edge
// A->B means transaction A is waiting for a lock held by B; a cycle is a
// deadlock. It is only accessed under the LockManager mutex.
type DependencyGraph struct {
	edges      map[*primitives.TransactionID]map[*primitives.TransactionID]bool
	cacheValid bool
	lastResult bool
}

func NewDependencyGraph() *DependencyGraph {
	return &DependencyGraph{
		edges: make(map[*primitives.TransactionID]map[*primitives.TransactionID]bool),
	}
}

// AddEdge records that waiter is blocked behind holder.
func (dg *DependencyGraph) AddEdge(waiter, holder *primitives.TransactionID) {
	if dg.edges[waiter] == nil {
		dg.edges[waiter] = make(map[*primitives.TransactionID]bool)
	}
	if !dg.edges[waiter][holder] {
		dg.edges[waiter][holder] = true
		dg.cacheValid = false
	}
}

// RemoveTransaction removes every edge into or out of tid.
func (dg *DependencyGraph) RemoveTransaction(tid *primitives.TransactionID) {
	delete(dg.edges, tid)
	for waiter, holders := range dg.edges {
		delete(holders, tid)
		if len(holders) == 0 {
			delete(dg.edges, waiter)
		}
	}
	dg.cacheValid = false
}

// HasCycle reports whether the graph contains a cycle. The result is cached
// until the graph changes.
func (dg *DependencyGraph) HasCycle() bool {
	if dg.cacheValid {
		return dg.lastResult
	}

	visited := make(map[*primitives.TransactionID]bool)
	onStack := make(map[*primitives.TransactionID]bool)

	dg.lastResult = false
	for tid := range dg.edges {
		if !visited[tid] && dg.hasCycleDFS(tid, visited, onStack) {
			dg.lastResult = true
			break
		}
	}
	dg.cacheValid = true
	return dg.lastResult
}

func (dg *DependencyGraph) hasCycleDFS(tid *primitives.TransactionID, visited, onStack map[*primitives.TransactionID]bool) bool {
	visited[tid] = true
	onStack[tid] = true

	for neighbor := range dg.edges[tid] {
		if onStack[neighbor] {
			return true
		}
		if !visited[neighbor] && dg.hasCycleDFS(neighbor, visited, onStack) {
			return true
		}
	}

	onStack[tid] = false
	return false
}

// WaitingTransactions returns the transactions with outgoing edges.
func (dg *DependencyGraph) WaitingTransactions() []*primitives.TransactionID {
	waiters := make([]*primitives.TransactionID, 0, len(dg.edges))
	for tid := range dg.edges {
		waiters = append(waiters, tid)
	}
	return waiters
}
