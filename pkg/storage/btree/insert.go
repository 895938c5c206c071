package btree

import (
	"slices"

	"clustore/pkg/concurrency/transaction"
	"clustore/pkg/dberror"
	"clustore/pkg/logging"
	"clustore/pkg/primitives"
	"clustore/pkg/storage/page"
	"clustore/pkg/tuple"
	"clustore/pkg/types"
)

// promotion is a separator waiting to be placed in parent after left split
// into left and right.
type promotion struct {
	key    types.Field
	left   page.PageID
	right  page.PageID
	parent primitives.PageNumber
}

// InsertRow stores a copy of row in key order and sets row.RecordID to its
// location. A row whose key is already present fails with DUPLICATE_KEY.
func (f *File) InsertRow(tx *transaction.TransactionContext, row *tuple.Tuple) error {
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
		return structureViolation("InsertRow", "table %s has no root page", f.tableID)
	}

	leaf, holder, err := f.locate(tx, root, transaction.ReadWrite, key)
	if err != nil {
		return err
	}
	if holder != nil {
		return dberror.New(dberror.ErrCategoryUser, dberror.CodeDuplicateKey, "duplicate key").
			WithDetail("key %s already stored in %s", key, holder.GetID()).
			WithOperation("InsertRow", "BTreeFile")
	}

	stored := row.Clone()
	stored.RecordID = nil
	if leaf.IsFull() {
		if err := f.splitLeaf(tx, leaf, stored); err != nil {
			return err
		}
	} else {
		if err := leaf.InsertRow(stored); err != nil {
			return err
		}
		if err := f.pool.MarkDirty(tx, leaf); err != nil {
			return err
		}
	}

	rid := *stored.RecordID
	row.RecordID = &rid
	tx.RecordRowWrite()
	return nil
}

// splitLeaf splits a full leaf while inserting pending. The new leaf becomes
// the right sibling and takes the upper half of the rows.
func (f *File) splitLeaf(tx *transaction.TransactionContext, leaf *LeafPage, pending *tuple.Tuple) error {
	rows := leaf.Rows()
	pendingKey := leaf.keyOf(pending)

	pos, err := insertPosition(rows, leaf.keyOf, pendingKey)
	if err != nil {
		return err
	}

	half := (len(rows) + 1) / 2
	var left, right []*tuple.Tuple
	var sep types.Field
	if pos < half {
		left = slices.Insert(slices.Clone(rows[:half-1]), pos, pending)
		right = slices.Clone(rows[half-1:])
		sep = leaf.keyOf(rows[half-1])
	} else {
		left = slices.Clone(rows[:half])
		right = slices.Insert(slices.Clone(rows[half:]), pos-half, pending)
		sep = leaf.keyOf(right[0])
	}

	np, err := f.allocatePage(tx, page.CategoryLeaf)
	if err != nil {
		return err
	}
	newLeaf := np.(*LeafPage)

	newLeaf.ParentPage = leaf.ParentPage
	newLeaf.PrevLeaf = leaf.pid.PageNo()
	newLeaf.NextLeaf = leaf.NextLeaf
	if leaf.NextLeaf != primitives.InvalidPageNumber {
		next, err := f.getLeaf(tx, leaf.NextLeaf, transaction.ReadWrite)
		if err != nil {
			return err
		}
		next.PrevLeaf = newLeaf.pid.PageNo()
		if err := f.pool.MarkDirty(tx, next); err != nil {
			return err
		}
	}
	leaf.NextLeaf = newLeaf.pid.PageNo()

	leaf.setRows(left)
	newLeaf.setRows(right)
	if err := f.markDirty(tx, leaf, newLeaf); err != nil {
		return err
	}

	logging.WithTableTx(tx.ID, f.tableID).Debug("split leaf",
		"left", leaf.pid.PageNo(), "right", newLeaf.pid.PageNo(),
		"left_rows", len(left), "right_rows", len(right), "separator", sep.String())

	return f.promote(tx, promotion{
		key:    sep,
		left:   leaf.pid,
		right:  newLeaf.pid,
		parent: leaf.ParentPage,
	})
}

// insertPosition returns the number of rows whose key sorts before key.
func insertPosition(rows []*tuple.Tuple, keyOf func(*tuple.Tuple) types.Field, key types.Field) (int, error) {
	for i, r := range rows {
		c, err := types.CompareFields(key, keyOf(r))
		if err != nil {
			return 0, err
		}
		if c < 0 {
			return i, nil
		}
	}
	return len(rows), nil
}

// promote places separators into parents, splitting full internal pages and
// growing a new root as needed.
func (f *File) promote(tx *transaction.TransactionContext, p promotion) error {
	for {
		if p.parent == primitives.InvalidPageNumber {
			return f.growRoot(tx, p)
		}

		parent, err := f.getInternal(tx, p.parent, transaction.ReadWrite)
		if err != nil {
			return err
		}
		if !parent.IsFull() {
			if err := parent.InsertEntry(p.key, p.left.PageNo(), p.right.PageNo()); err != nil {
				return err
			}
			return f.pool.MarkDirty(tx, parent)
		}

		next, err := f.splitInternal(tx, parent, p)
		if err != nil {
			return err
		}
		p = next
	}
}

// splitInternal splits a full internal page while adding p's entry. The
// middle entry moves up to the returned promotion and is not kept in either
// half.
func (f *File) splitInternal(tx *transaction.TransactionContext, parent *InternalPage, p promotion) (promotion, error) {
	i := parent.childIndex(p.left.PageNo())
	if i < 0 {
		return promotion{}, structureViolation("splitInternal", "child %d not found in internal page %s", p.left.PageNo(), parent.pid)
	}
	all := slices.Insert(slices.Clone(parent.children), i+1, &ChildPtr{Key: p.key, Child: p.right.PageNo()})

	np, err := f.allocatePage(tx, page.CategoryInternal)
	if err != nil {
		return promotion{}, err
	}
	sibling := np.(*InternalPage)
	sibling.ParentPage = parent.ParentPage
	sibling.childCategory = parent.childCategory

	mid := len(all) / 2
	up := all[mid].Key
	parent.setChildren(all[:mid])
	sibling.setChildren(all[mid:])

	for _, c := range sibling.children {
		if err := f.setParent(tx, sibling.ChildID(0), c.Child, sibling.pid.PageNo()); err != nil {
			return promotion{}, err
		}
	}
	if err := f.markDirty(tx, parent, sibling); err != nil {
		return promotion{}, err
	}

	logging.WithTableTx(tx.ID, f.tableID).Debug("split internal page",
		"left", parent.pid.PageNo(), "right", sibling.pid.PageNo(), "promoted", up.String())

	return promotion{
		key:    up,
		left:   parent.pid,
		right:  sibling.pid,
		parent: parent.ParentPage,
	}, nil
}

// growRoot installs a new internal root above the two halves of a split root.
func (f *File) growRoot(tx *transaction.TransactionContext, p promotion) error {
	np, err := f.allocatePage(tx, page.CategoryInternal)
	if err != nil {
		return err
	}
	root := np.(*InternalPage)
	root.childCategory = p.left.Category()
	if err := root.InsertEntry(p.key, p.left.PageNo(), p.right.PageNo()); err != nil {
		return err
	}
	if err := f.pool.MarkDirty(tx, root); err != nil {
		return err
	}

	for _, child := range []page.PageID{p.left, p.right} {
		if err := f.setParent(tx, child, child.PageNo(), root.pid.PageNo()); err != nil {
			return err
		}
	}

	rootPtr, err := f.getRootPtr(tx, transaction.ReadWrite)
	if err != nil {
		return err
	}
	if err := rootPtr.SetRootID(root.pid); err != nil {
		return err
	}
	if err := f.pool.MarkDirty(tx, rootPtr); err != nil {
		return err
	}

	logging.WithTableTx(tx.ID, f.tableID).Debug("new root", "root", root.pid.PageNo(), "separator", p.key.String())
	return nil
}

// setParent points the parent pointer of child pageNo, whose category is
// taken from like, at parentNo.
func (f *File) setParent(tx *transaction.TransactionContext, like page.PageID, pageNo, parentNo primitives.PageNumber) error {
	pid := page.NewPageID(f.tableID, pageNo, like.Category())
	p, err := f.getTreePage(tx, pid, transaction.ReadWrite)
	if err != nil {
		return err
	}

	switch tp := p.(type) {
	case *LeafPage:
		if tp.ParentPage == parentNo {
			return nil
		}
		tp.ParentPage = parentNo
	case *InternalPage:
		if tp.ParentPage == parentNo {
			return nil
		}
		tp.ParentPage = parentNo
	}
	return f.pool.MarkDirty(tx, p)
}

func (f *File) markDirty(tx *transaction.TransactionContext, pages ...page.Page) error {
	for _, p := range pages {
		if err := f.pool.MarkDirty(tx, p); err != nil {
			return err
		}
	}
	return nil
}
