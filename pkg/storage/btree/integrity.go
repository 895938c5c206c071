package btree

import (
	"github.com/RoaringBitmap/roaring/v2"

	"clustore/pkg/concurrency/transaction"
	"clustore/pkg/primitives"
	"clustore/pkg/storage/page"
	"clustore/pkg/types"
)

// CheckOptions tunes CheckIntegrity.
type CheckOptions struct {
	// Occupancy also requires every non-root page to be at least half full.
	Occupancy bool
}

// IntegrityReport summarizes a successful integrity check.
type IntegrityReport struct {
	LivePages *roaring.Bitmap
	FreePages *roaring.Bitmap
	Leaves    int
	Internals int
	Headers   int
	Height    int
	Rows      int
}

type checkFrame struct {
	pid    page.PageID
	parent primitives.PageNumber
	lower  types.Field
	upper  types.Field
	depth  int
}

// CheckIntegrity walks the whole tree and the free list and returns a
// STRUCTURE_VIOLATION error naming the first broken invariant.
func (f *File) CheckIntegrity(tx *transaction.TransactionContext, opts CheckOptions) (*IntegrityReport, error) {
	if err := f.checkTx(tx); err != nil {
		return nil, err
	}

	report := &IntegrityReport{
		LivePages: roaring.New(),
		FreePages: roaring.New(),
	}

	rootPtr, err := f.getRootPtr(tx, transaction.ReadOnly)
	if err != nil || rootPtr == nil {
		return report, err
	}
	root, ok := rootPtr.RootID()
	if !ok {
		return nil, structureViolation("CheckIntegrity", "root pointer names no root page")
	}

	var leaves []*LeafPage
	stack := []checkFrame{{pid: root, depth: 1}}
	for len(stack) > 0 {
		fr := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if !report.LivePages.CheckedAdd(uint32(fr.pid.PageNo())) {
			return nil, structureViolation("CheckIntegrity", "page %d reached twice", fr.pid.PageNo())
		}

		p, err := f.getTreePage(tx, fr.pid, transaction.ReadOnly)
		if err != nil {
			return nil, err
		}

		switch tp := p.(type) {
		case *LeafPage:
			if err := f.checkLeaf(tp, fr, opts); err != nil {
				return nil, err
			}
			if report.Height == 0 {
				report.Height = fr.depth
			} else if report.Height != fr.depth {
				return nil, structureViolation("CheckIntegrity", "leaf %s at depth %d, expected %d", tp.pid, fr.depth, report.Height)
			}
			leaves = append(leaves, tp)
			report.Leaves++
			report.Rows += tp.NumRows()

		case *InternalPage:
			if err := f.checkInternal(tp, fr, opts); err != nil {
				return nil, err
			}
			report.Internals++

			// push right to left so leaves are visited in key order
			for i := len(tp.children) - 1; i >= 0; i-- {
				child := checkFrame{
					pid:    tp.ChildID(i),
					parent: tp.pid.PageNo(),
					lower:  fr.lower,
					upper:  fr.upper,
					depth:  fr.depth + 1,
				}
				if i > 0 {
					child.lower = tp.children[i].Key
				}
				if i+1 < len(tp.children) {
					child.upper = tp.children[i+1].Key
				}
				stack = append(stack, child)
			}
		}
	}

	if err := checkLeafChain(leaves); err != nil {
		return nil, err
	}
	if err := f.checkFreeList(tx, rootPtr, report); err != nil {
		return nil, err
	}
	return report, nil
}

func (f *File) checkLeaf(lp *LeafPage, fr checkFrame, opts CheckOptions) error {
	if lp.ParentPage != fr.parent {
		return structureViolation("CheckIntegrity", "leaf %s has parent %d, expected %d", lp.pid, lp.ParentPage, fr.parent)
	}

	used := 0
	for _, row := range lp.slots {
		if row != nil {
			used++
		}
	}
	if used != lp.numRows {
		return structureViolation("CheckIntegrity", "leaf %s counts %d rows but %d slots are used", lp.pid, lp.numRows, used)
	}

	if sorted, err := lp.isSorted(); err != nil {
		return err
	} else if !sorted {
		return structureViolation("CheckIntegrity", "leaf %s rows not strictly ascending", lp.pid)
	}

	for _, row := range lp.Rows() {
		if err := checkBounds(lp.keyOf(row), fr); err != nil {
			return structureViolation("CheckIntegrity", "leaf %s: %v", lp.pid, err)
		}
	}

	if opts.Occupancy && fr.parent != primitives.InvalidPageNumber && lp.numRows < f.layout.minLeafRows() {
		return structureViolation("CheckIntegrity", "leaf %s holds %d rows, minimum is %d", lp.pid, lp.numRows, f.layout.minLeafRows())
	}
	return nil
}

func (f *File) checkInternal(ip *InternalPage, fr checkFrame, opts CheckOptions) error {
	if ip.ParentPage != fr.parent {
		return structureViolation("CheckIntegrity", "internal page %s has parent %d, expected %d", ip.pid, ip.ParentPage, fr.parent)
	}
	if ip.NumEntries() == 0 {
		return structureViolation("CheckIntegrity", "internal page %s has no keys", ip.pid)
	}

	for i := 1; i < len(ip.children); i++ {
		key := ip.children[i].Key
		if err := checkBounds(key, fr); err != nil {
			return structureViolation("CheckIntegrity", "internal page %s: %v", ip.pid, err)
		}
		if i == 1 {
			continue
		}
		c, err := types.CompareFields(ip.children[i-1].Key, key)
		if err != nil {
			return err
		}
		if c >= 0 {
			return structureViolation("CheckIntegrity", "internal page %s keys %s and %s not ascending", ip.pid, ip.children[i-1].Key, key)
		}
	}

	if opts.Occupancy && fr.parent != primitives.InvalidPageNumber && ip.NumEntries() < f.layout.minInternalKeys() {
		return structureViolation("CheckIntegrity", "internal page %s holds %d keys, minimum is %d", ip.pid, ip.NumEntries(), f.layout.minInternalKeys())
	}
	return nil
}

// checkBounds requires lower <= key < upper, a nil bound being open.
func checkBounds(key types.Field, fr checkFrame) error {
	if fr.lower != nil {
		if c, err := types.CompareFields(key, fr.lower); err != nil {
			return err
		} else if c < 0 {
			return structureViolation("CheckIntegrity", "key %s below separator %s", key, fr.lower)
		}
	}
	if fr.upper != nil {
		if c, err := types.CompareFields(key, fr.upper); err != nil {
			return err
		} else if c >= 0 {
			return structureViolation("CheckIntegrity", "key %s not below separator %s", key, fr.upper)
		}
	}
	return nil
}

// checkLeafChain verifies that the sibling pointers link leaves in the order
// the tree walk found them and that keys increase across the chain.
func checkLeafChain(leaves []*LeafPage) error {
	for i, lp := range leaves {
		wantPrev, wantNext := primitives.InvalidPageNumber, primitives.InvalidPageNumber
		if i > 0 {
			wantPrev = leaves[i-1].pid.PageNo()
		}
		if i+1 < len(leaves) {
			wantNext = leaves[i+1].pid.PageNo()
		}
		if lp.PrevLeaf != wantPrev || lp.NextLeaf != wantNext {
			return structureViolation("CheckIntegrity", "leaf %s links (%d, %d), expected (%d, %d)",
				lp.pid, lp.PrevLeaf, lp.NextLeaf, wantPrev, wantNext)
		}

		if i == 0 {
			continue
		}
		prev, first := leaves[i-1].LastRow(), lp.FirstRow()
		if prev == nil || first == nil {
			continue
		}
		c, err := types.CompareFields(leaves[i-1].keyOf(prev), lp.keyOf(first))
		if err != nil {
			return err
		}
		if c >= 0 {
			return structureViolation("CheckIntegrity", "leaf %s starts at or below the end of leaf %s", lp.pid, leaves[i-1].pid)
		}
	}
	return nil
}

// checkFreeList collects free page numbers from the header list and rejects
// any that the tree still uses.
func (f *File) checkFreeList(tx *transaction.TransactionContext, rootPtr *RootPointerPage, report *IntegrityReport) error {
	numPages, err := f.NumPages()
	if err != nil {
		return err
	}

	slots := f.layout.headerSlots
	prev := primitives.InvalidPageNumber
	next := rootPtr.header
	for k := 0; next != primitives.InvalidPageNumber; k++ {
		if !report.LivePages.CheckedAdd(uint32(next)) {
			return structureViolation("CheckIntegrity", "header page %d is also a tree page or repeats", next)
		}
		hp, err := f.getHeader(tx, next, transaction.ReadOnly)
		if err != nil {
			return err
		}
		if hp.Prev() != prev {
			return structureViolation("CheckIntegrity", "header page %d has prev %d, expected %d", next, hp.Prev(), prev)
		}
		report.Headers++

		for s := range slots {
			n := k*slots + s
			if n == 0 || n > int(numPages) {
				continue
			}
			if !hp.IsSlotUsed(s) {
				report.FreePages.Add(uint32(n))
			}
		}
		prev, next = next, hp.Next()
	}

	if overlap := roaring.And(report.LivePages, report.FreePages); !overlap.IsEmpty() {
		return structureViolation("CheckIntegrity", "pages %v are both free and in use", overlap.ToArray())
	}
	return nil
}
