package btree

import (
	"slices"

	"clustore/pkg/concurrency/transaction"
	"clustore/pkg/dberror"
	"clustore/pkg/logging"
	"clustore/pkg/primitives"
	"clustore/pkg/storage/page"
	"clustore/pkg/tuple"
)

// DeleteRow removes the stored row with row's key and clears
// row.RecordID. A missing key fails with ROW_NOT_FOUND.
func (f *File) DeleteRow(tx *transaction.TransactionContext, row *tuple.Tuple) error {
	if err := f.checkTx(tx); err != nil {
		return err
	}
	key, err := f.keyOf(row)
	if err != nil {
		return err
	}

	rootPtr, err := f.getRootPtr(tx, transaction.ReadWrite)
	if err != nil {
		return err
	}
	root, ok := rootPtr.RootID()
	if !ok {
		return structureViolation("DeleteRow", "table %s has no root page", f.tableID)
	}

	_, leaf, err := f.locate(tx, root, transaction.ReadWrite, key)
	if err != nil {
		return err
	}
	if leaf == nil {
		return dberror.New(dberror.ErrCategoryUser, dberror.CodeRowNotFound, "row not found").
			WithDetail("key %s", key).
			WithOperation("DeleteRow", "BTreeFile")
	}

	stored, err := leaf.findRow(key)
	if err != nil {
		return err
	}
	if err := leaf.DeleteRow(stored); err != nil {
		return err
	}
	if err := f.pool.MarkDirty(tx, leaf); err != nil {
		return err
	}
	row.RecordID = nil
	tx.RecordRowDelete()

	return f.rebalance(tx, leaf)
}

// rebalance restores minimum occupancy from p upward. Each merge may leave
// the parent underfull, so the loop climbs until a page is full enough, a
// steal settles it, or the root is reached.
func (f *File) rebalance(tx *transaction.TransactionContext, p page.Page) error {
	for {
		var parentNo primitives.PageNumber
		switch tp := p.(type) {
		case *LeafPage:
			if tp.IsRoot() || tp.NumRows() >= f.layout.minLeafRows() {
				return nil
			}
			parentNo = tp.ParentPage
		case *InternalPage:
			if tp.IsRoot() {
				if tp.NumEntries() == 0 {
					return f.collapseRoot(tx, tp)
				}
				return nil
			}
			if tp.NumEntries() >= f.layout.minInternalKeys() {
				return nil
			}
			parentNo = tp.ParentPage
		default:
			return structureViolation("rebalance", "page %s is not a tree page", p.GetID())
		}

		parent, err := f.getInternal(tx, parentNo, transaction.ReadWrite)
		if err != nil {
			return err
		}
		idx := parent.childIndex(p.GetID().PageNo())
		if idx < 0 {
			return structureViolation("rebalance", "page %s missing from parent %s", p.GetID(), parent.pid)
		}

		sibIdx := idx - 1
		if idx == 0 {
			sibIdx = 1
		}
		if sibIdx >= len(parent.children) {
			return structureViolation("rebalance", "page %s has no sibling under %s", p.GetID(), parent.pid)
		}

		merged := false
		switch tp := p.(type) {
		case *LeafPage:
			sib, err := f.getLeaf(tx, parent.children[sibIdx].Child, transaction.ReadWrite)
			if err != nil {
				return err
			}
			if sib.NumRows() <= f.layout.minLeafRows() {
				err = f.mergeLeaves(tx, parent, tp, sib, idx, sibIdx)
				merged = true
			} else {
				err = f.stealRows(tx, parent, tp, sib, idx, sibIdx)
			}
			if err != nil {
				return err
			}
		case *InternalPage:
			sib, err := f.getInternal(tx, parent.children[sibIdx].Child, transaction.ReadWrite)
			if err != nil {
				return err
			}
			if sib.NumEntries() <= f.layout.minInternalKeys() {
				err = f.mergeInternal(tx, parent, tp, sib, idx, sibIdx)
				merged = true
			} else {
				err = f.stealEntries(tx, parent, tp, sib, idx, sibIdx)
			}
			if err != nil {
				return err
			}
		}

		if !merged {
			return nil
		}
		p = parent
	}
}

// mergeLeaves moves every row of sib into leaf, unlinks sib from the sibling
// chain and the parent, and frees it.
func (f *File) mergeLeaves(tx *transaction.TransactionContext, parent *InternalPage, leaf, sib *LeafPage, idx, sibIdx int) error {
	if sibIdx < idx {
		leaf.setRows(append(sib.Rows(), leaf.Rows()...))
		leaf.PrevLeaf = sib.PrevLeaf
		if sib.PrevLeaf != primitives.InvalidPageNumber {
			prev, err := f.getLeaf(tx, sib.PrevLeaf, transaction.ReadWrite)
			if err != nil {
				return err
			}
			prev.NextLeaf = leaf.pid.PageNo()
			if err := f.pool.MarkDirty(tx, prev); err != nil {
				return err
			}
		}
		parent.deleteKeyAndLeftChild(idx)
	} else {
		leaf.setRows(append(leaf.Rows(), sib.Rows()...))
		leaf.NextLeaf = sib.NextLeaf
		if sib.NextLeaf != primitives.InvalidPageNumber {
			next, err := f.getLeaf(tx, sib.NextLeaf, transaction.ReadWrite)
			if err != nil {
				return err
			}
			next.PrevLeaf = leaf.pid.PageNo()
			if err := f.pool.MarkDirty(tx, next); err != nil {
				return err
			}
		}
		parent.deleteKeyAndRightChild(sibIdx)
	}

	clear(sib.slots)
	sib.numRows = 0
	sib.ParentPage, sib.PrevLeaf, sib.NextLeaf = 0, 0, 0
	if err := f.markDirty(tx, leaf, sib, parent); err != nil {
		return err
	}

	logging.WithTableTx(tx.ID, f.tableID).Debug("merged leaves",
		"into", leaf.pid.PageNo(), "freed", sib.pid.PageNo(), "rows", leaf.NumRows())
	return f.freePage(tx, sib.pid.PageNo())
}

// mergeInternal moves every entry of sib into ip, pulling the parent
// separator down between them, and frees sib.
func (f *File) mergeInternal(tx *transaction.TransactionContext, parent, ip, sib *InternalPage, idx, sibIdx int) error {
	moved := slices.Clone(sib.children)
	if sibIdx < idx {
		sep := parent.children[idx].Key
		all := slices.Clone(sib.children)
		all = append(all, &ChildPtr{Key: sep, Child: ip.children[0].Child})
		all = append(all, ip.children[1:]...)
		ip.setChildren(all)
		parent.deleteKeyAndLeftChild(idx)
	} else {
		sep := parent.children[sibIdx].Key
		all := slices.Clone(ip.children)
		all = append(all, &ChildPtr{Key: sep, Child: sib.children[0].Child})
		all = append(all, sib.children[1:]...)
		ip.setChildren(all)
		parent.deleteKeyAndRightChild(sibIdx)
	}

	for _, c := range moved {
		if err := f.setParent(tx, ip.ChildID(0), c.Child, ip.pid.PageNo()); err != nil {
			return err
		}
	}

	sib.children = sib.children[:0]
	sib.ParentPage = 0
	if err := f.markDirty(tx, ip, sib, parent); err != nil {
		return err
	}

	logging.WithTableTx(tx.ID, f.tableID).Debug("merged internal pages",
		"into", ip.pid.PageNo(), "freed", sib.pid.PageNo(), "entries", ip.NumEntries())
	return f.freePage(tx, sib.pid.PageNo())
}

// stealRows moves (sibling - leaf)/2 rows from sib into leaf and resets the
// separator between them.
func (f *File) stealRows(tx *transaction.TransactionContext, parent *InternalPage, leaf, sib *LeafPage, idx, sibIdx int) error {
	sibRows := sib.Rows()
	curRows := leaf.Rows()
	k := (len(sibRows) - len(curRows)) / 2

	if sibIdx < idx {
		cut := len(sibRows) - k
		leaf.setRows(append(slices.Clone(sibRows[cut:]), curRows...))
		sib.setRows(sibRows[:cut])
		parent.children[idx].Key = leaf.keyOf(leaf.FirstRow())
	} else {
		leaf.setRows(append(curRows, sibRows[:k]...))
		sib.setRows(slices.Clone(sibRows[k:]))
		parent.children[sibIdx].Key = sib.keyOf(sib.FirstRow())
	}

	logging.WithTableTx(tx.ID, f.tableID).Debug("redistributed leaf rows",
		"to", leaf.pid.PageNo(), "from", sib.pid.PageNo(), "moved", k)
	return f.markDirty(tx, leaf, sib, parent)
}

// stealEntries rotates (sibling - ip)/2 entries from sib through the parent
// into ip, re-parenting the children that move.
func (f *File) stealEntries(tx *transaction.TransactionContext, parent, ip, sib *InternalPage, idx, sibIdx int) error {
	k := (sib.NumEntries() - ip.NumEntries()) / 2
	moved := make([]primitives.PageNumber, 0, k)

	if sibIdx < idx {
		sep := parent.children[idx]
		for range k {
			last := sib.children[len(sib.children)-1]
			sib.children = sib.children[:len(sib.children)-1]

			ip.children[0].Key = sep.Key
			ip.children = slices.Insert(ip.children, 0, &ChildPtr{Child: last.Child})
			sep.Key = last.Key
			moved = append(moved, last.Child)
		}
	} else {
		sep := parent.children[sibIdx]
		for range k {
			first := sib.children[0]
			ip.children = append(ip.children, &ChildPtr{Key: sep.Key, Child: first.Child})
			sep.Key = sib.children[1].Key
			sib.children = slices.Delete(sib.children, 0, 1)
			sib.children[0].Key = nil
			moved = append(moved, first.Child)
		}
	}

	for _, child := range moved {
		if err := f.setParent(tx, ip.ChildID(0), child, ip.pid.PageNo()); err != nil {
			return err
		}
	}

	logging.WithTableTx(tx.ID, f.tableID).Debug("rotated internal entries",
		"to", ip.pid.PageNo(), "from", sib.pid.PageNo(), "moved", k)
	return f.markDirty(tx, ip, sib, parent)
}

// collapseRoot replaces an internal root with no keys by its only child.
func (f *File) collapseRoot(tx *transaction.TransactionContext, root *InternalPage) error {
	if len(root.children) != 1 {
		return structureViolation("collapseRoot", "root %s has %d children and no keys", root.pid, len(root.children))
	}
	child := root.ChildID(0)

	if err := f.setParent(tx, child, child.PageNo(), primitives.InvalidPageNumber); err != nil {
		return err
	}

	rootPtr, err := f.getRootPtr(tx, transaction.ReadWrite)
	if err != nil {
		return err
	}
	if err := rootPtr.SetRootID(child); err != nil {
		return err
	}

	root.children = root.children[:0]
	if err := f.markDirty(tx, rootPtr, root); err != nil {
		return err
	}

	logging.WithTableTx(tx.ID, f.tableID).Debug("collapsed root", "old_root", root.pid.PageNo(), "new_root", child.PageNo())
	return f.freePage(tx, root.pid.PageNo())
}
