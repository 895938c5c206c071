package btree

import (
	"clustore/pkg/concurrency/transaction"
	"clustore/pkg/logging"
	"clustore/pkg/primitives"
	"clustore/pkg/storage/page"
)

// allocatePage returns an empty page of the given category, reusing a free
// page number from the header list or appending a page to the file. Any
// cached page with that number is discarded first, whatever its category.
func (f *File) allocatePage(tx *transaction.TransactionContext, category page.Category) (page.Page, error) {
	pageNo, err := f.takeFreePage(tx)
	if err != nil {
		return nil, err
	}
	if pageNo == primitives.InvalidPageNumber {
		if pageNo, err = f.file.AllocateNewPage(); err != nil {
			return nil, err
		}
	}

	for _, c := range []page.Category{page.CategoryInternal, page.CategoryLeaf, page.CategoryHeader} {
		if err := f.pool.DiscardPage(page.NewPageID(f.tableID, pageNo, c)); err != nil {
			return nil, err
		}
	}

	pid := page.NewPageID(f.tableID, pageNo, category)
	var p page.Page
	switch category {
	case page.CategoryLeaf:
		p = NewLeafPage(pid, f.layout, primitives.InvalidPageNumber)
	case page.CategoryInternal:
		p = NewInternalPage(pid, f.layout, primitives.InvalidPageNumber)
	case page.CategoryHeader:
		p = NewHeaderPage(pid, f.layout.pageSize)
	default:
		return nil, structureViolation("allocatePage", "cannot allocate a %s page", category)
	}

	if err := f.pool.AddNewPage(tx, p); err != nil {
		return nil, err
	}
	logging.WithTableTx(tx.ID, f.tableID).Debug("allocated page", "page", pageNo, "category", category.String())
	return p, nil
}

// takeFreePage claims the lowest page number that was already free at the
// last commit, or returns InvalidPageNumber when there is none. Numbers freed
// by tx itself stay unused until tx commits.
func (f *File) takeFreePage(tx *transaction.TransactionContext) (primitives.PageNumber, error) {
	rootPtr, err := f.getRootPtr(tx, transaction.ReadWrite)
	if err != nil {
		return 0, err
	}

	slots := f.layout.headerSlots
	next := rootPtr.header
	for k := 0; next != primitives.InvalidPageNumber; k++ {
		hp, err := f.getHeader(tx, next, transaction.ReadWrite)
		if err != nil {
			return 0, err
		}
		if slot := hp.FirstReusableSlot(); slot >= 0 {
			hp.MarkSlotUsed(slot, true)
			if err := f.pool.MarkDirty(tx, hp); err != nil {
				return 0, err
			}
			return primitives.PageNumber(k*slots + slot), nil
		}
		next = hp.Next()
	}
	return primitives.InvalidPageNumber, nil
}

// freePage returns pageNo to the free list, creating and linking header
// pages up to the one that covers it.
func (f *File) freePage(tx *transaction.TransactionContext, pageNo primitives.PageNumber) error {
	rootPtr, err := f.getRootPtr(tx, transaction.ReadWrite)
	if err != nil {
		return err
	}

	if rootPtr.header == primitives.InvalidPageNumber {
		hp, err := f.newHeaderPage(tx)
		if err != nil {
			return err
		}
		rootPtr.SetHeaderPageNo(hp.pid.PageNo())
		if err := f.pool.MarkDirty(tx, rootPtr); err != nil {
			return err
		}
	}

	slots := f.layout.headerSlots
	target := int(pageNo) / slots

	hp, err := f.getHeader(tx, rootPtr.header, transaction.ReadWrite)
	if err != nil {
		return err
	}
	for k := 0; k < target; k++ {
		if hp.Next() == primitives.InvalidPageNumber {
			next, err := f.newHeaderPage(tx)
			if err != nil {
				return err
			}
			next.SetPrev(hp.pid.PageNo())
			hp.SetNext(next.pid.PageNo())
			if err := f.markDirty(tx, hp, next); err != nil {
				return err
			}
			hp = next
			continue
		}
		if hp, err = f.getHeader(tx, hp.Next(), transaction.ReadWrite); err != nil {
			return err
		}
	}

	hp.MarkSlotUsed(int(pageNo)%slots, false)
	if err := f.pool.MarkDirty(tx, hp); err != nil {
		return err
	}
	logging.WithTableTx(tx.ID, f.tableID).Debug("freed page", "page", pageNo)
	return nil
}

// newHeaderPage allocates a header page with every slot marked in use. The
// all-used bitmap is also its before image, so slots freed later in the
// same transaction are not reusable before commit.
func (f *File) newHeaderPage(tx *transaction.TransactionContext) (*HeaderPage, error) {
	p, err := f.allocatePage(tx, page.CategoryHeader)
	if err != nil {
		return nil, err
	}
	hp := p.(*HeaderPage)
	hp.MarkAllUsed()
	hp.SetBeforeImage()
	if err := f.pool.MarkDirty(tx, hp); err != nil {
		return nil, err
	}
	return hp, nil
}
