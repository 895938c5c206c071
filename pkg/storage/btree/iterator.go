package btree

import (
	"clustore/pkg/concurrency/transaction"
	"clustore/pkg/dberror"
	"clustore/pkg/iterator"
	"clustore/pkg/primitives"
	"clustore/pkg/tuple"
	"clustore/pkg/types"
)

// IndexPredicate selects rows by comparing their key with Value.
type IndexPredicate struct {
	Op    primitives.Predicate
	Value types.Field
}

// FileIterator walks the leaf chain in key order, optionally filtered by an
// IndexPredicate. It returns copies of the stored rows, RecordIDs included.
type FileIterator struct {
	*iterator.BaseIterator
	file *File
	tx   *transaction.TransactionContext
	pred *IndexPredicate

	leaf *LeafPage
	slot int
	done bool
}

// Iterator returns an iterator over every row in key order.
func (f *File) Iterator(tx *transaction.TransactionContext) iterator.DbFileIterator {
	it := &FileIterator{file: f, tx: tx}
	it.BaseIterator = iterator.NewBaseIterator(it.readNext)
	return it
}

// IndexIterator returns an iterator over the rows whose key satisfies pred.
func (f *File) IndexIterator(tx *transaction.TransactionContext, pred IndexPredicate) iterator.DbFileIterator {
	it := &FileIterator{file: f, tx: tx, pred: &pred}
	it.BaseIterator = iterator.NewBaseIterator(it.readNext)
	return it
}

// Open positions the iterator at the first leaf the predicate can match.
func (it *FileIterator) Open() error {
	if err := it.file.checkTx(it.tx); err != nil {
		return err
	}
	if it.pred != nil {
		if err := it.file.checkKey(it.pred.Value); err != nil {
			return err
		}
	}

	it.leaf, it.slot, it.done = nil, 0, false

	rootPtr, err := it.file.getRootPtr(it.tx, transaction.ReadOnly)
	if err != nil {
		return err
	}
	if rootPtr != nil {
		if root, ok := rootPtr.RootID(); ok {
			var start types.Field
			if it.pred != nil {
				switch it.pred.Op {
				case primitives.Equals, primitives.GreaterThan, primitives.GreaterThanOrEqual:
					start = it.pred.Value
				}
			}
			if it.leaf, err = it.file.findLeaf(it.tx, root, transaction.ReadOnly, start); err != nil {
				return err
			}
		}
	}

	it.MarkOpened()
	return nil
}

// Rewind restarts the scan.
func (it *FileIterator) Rewind() error {
	if err := it.Close(); err != nil {
		return err
	}
	return it.Open()
}

// Close drops the current leaf. The iterator can be reopened.
func (it *FileIterator) Close() error {
	it.leaf = nil
	return it.BaseIterator.Close()
}

func (it *FileIterator) readNext() (*tuple.Tuple, error) {
	for !it.done && it.leaf != nil {
		if it.slot >= it.leaf.Capacity() {
			next := it.leaf.NextLeaf
			if next == primitives.InvalidPageNumber {
				it.leaf = nil
				return nil, nil
			}
			leaf, err := it.file.getLeaf(it.tx, next, transaction.ReadOnly)
			if err != nil {
				return nil, err
			}
			it.leaf, it.slot = leaf, 0
			continue
		}

		row := it.leaf.slots[it.slot]
		it.slot++
		if row == nil {
			continue
		}

		match, stop, err := it.test(row)
		if err != nil {
			return nil, err
		}
		if stop {
			it.done = true
			return nil, nil
		}
		if match {
			it.tx.RecordRowRead()
			return row.Clone(), nil
		}
	}
	return nil, nil
}

// test reports whether row matches the predicate and whether no later row
// can match.
func (it *FileIterator) test(row *tuple.Tuple) (match, stop bool, err error) {
	if it.pred == nil {
		return true, false, nil
	}
	c, err := types.CompareFields(it.leaf.keyOf(row), it.pred.Value)
	if err != nil {
		return false, false, err
	}

	switch it.pred.Op {
	case primitives.Equals:
		return c == 0, c > 0, nil
	case primitives.GreaterThan:
		return c > 0, false, nil
	case primitives.GreaterThanOrEqual:
		return c >= 0, false, nil
	case primitives.LessThan:
		return c < 0, c >= 0, nil
	case primitives.LessThanOrEqual:
		return c <= 0, c > 0, nil
	case primitives.NotEqual:
		return c != 0, false, nil
	default:
		return false, false, dberror.Newf(dberror.ErrCategoryUser, dberror.CodeInvalidArgument, "unsupported predicate %s", it.pred.Op)
	}
}
