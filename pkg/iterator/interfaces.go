// Package iterator defines the pull-style iteration contract shared by the
// table file scans, plus helpers that drain any such iterator.
package iterator

import "clustore/pkg/tuple"

// TupleIterator is a minimal interface that captures the common iteration
// methods. Helpers in this package accept any TupleIterator.
type TupleIterator interface {
	// HasNext checks if there are more tuples available without consuming them.
	HasNext() (bool, error)

	// Next retrieves and returns the next tuple from the iterator.
	Next() (*tuple.Tuple, error)
}

// DbFileIterator is the iterator returned by table files. It is lazy and
// finite, and can be restarted with Rewind.
type DbFileIterator interface {
	TupleIterator

	// Open prepares the iterator for use. It must be called before any other
	// iterator operations.
	Open() error

	// Rewind resets the iterator to the beginning of the sequence. After
	// Rewind the iterator behaves as if it was just opened.
	Rewind() error

	// Close releases any resources held by the iterator. Calling Close twice
	// is safe.
	Close() error
}
