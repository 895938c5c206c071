package btree

import (
	"slices"

	"clustore/pkg/concurrency/transaction"
	"clustore/pkg/primitives"
	"clustore/pkg/storage/page"
	"clustore/pkg/tuple"
	"clustore/pkg/types"
)

// PageSummary describes one numbered page for tools that display a table
// file. Only the fields of its category are set.
type PageSummary struct {
	PageNo   primitives.PageNumber
	Category page.Category
	Free     bool
	Depth    int

	Parent primitives.PageNumber
	Prev   primitives.PageNumber
	Next   primitives.PageNumber

	Rows     []*tuple.Tuple
	Keys     []types.Field
	Children []primitives.PageNumber

	FreeSlots int
}

// FileSummary is a page-by-page view of a table file.
type FileSummary struct {
	Root         primitives.PageNumber
	RootCategory page.Category
	FirstHeader  primitives.PageNumber
	NumPages     primitives.PageNumber
	Pages        []PageSummary
}

// UnreachableCategory marks a page that neither the tree nor the header list
// reaches. Such a page is either free or leaked by an aborted append.
const UnreachableCategory page.Category = 0xff

// Describe reads every page reachable from the root pointer and the header
// list, sorted by page number.
func (f *File) Describe(tx *transaction.TransactionContext) (*FileSummary, error) {
	if err := f.checkTx(tx); err != nil {
		return nil, err
	}

	numPages, err := f.NumPages()
	if err != nil {
		return nil, err
	}
	summary := &FileSummary{NumPages: numPages}

	rootPtr, err := f.getRootPtr(tx, transaction.ReadOnly)
	if err != nil || rootPtr == nil {
		return summary, err
	}
	root, ok := rootPtr.RootID()
	if !ok {
		return summary, nil
	}
	summary.Root, summary.RootCategory, summary.FirstHeader = root.PageNo(), root.Category(), rootPtr.header

	seen := make(map[primitives.PageNumber]bool)
	type frame struct {
		pid   page.PageID
		depth int
	}
	stack := []frame{{root, 1}}
	for len(stack) > 0 {
		fr := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[fr.pid.PageNo()] {
			continue
		}
		seen[fr.pid.PageNo()] = true

		p, err := f.getTreePage(tx, fr.pid, transaction.ReadOnly)
		if err != nil {
			return nil, err
		}
		ps := PageSummary{PageNo: fr.pid.PageNo(), Category: fr.pid.Category(), Depth: fr.depth}
		switch tp := p.(type) {
		case *LeafPage:
			ps.Parent, ps.Prev, ps.Next = tp.ParentPage, tp.PrevLeaf, tp.NextLeaf
			ps.Rows = tp.Rows()
		case *InternalPage:
			ps.Parent = tp.ParentPage
			for i, c := range tp.children {
				if i > 0 {
					ps.Keys = append(ps.Keys, c.Key)
				}
				ps.Children = append(ps.Children, c.Child)
			}
			for i := len(tp.children) - 1; i >= 0; i-- {
				stack = append(stack, frame{tp.ChildID(i), fr.depth + 1})
			}
		}
		summary.Pages = append(summary.Pages, ps)
	}

	slots := f.layout.headerSlots
	free := make(map[primitives.PageNumber]bool)
	next := rootPtr.header
	for k := 0; next != primitives.InvalidPageNumber && !seen[next]; k++ {
		seen[next] = true
		hp, err := f.getHeader(tx, next, transaction.ReadOnly)
		if err != nil {
			return nil, err
		}
		summary.Pages = append(summary.Pages, PageSummary{
			PageNo:    next,
			Category:  page.CategoryHeader,
			Prev:      hp.Prev(),
			Next:      hp.Next(),
			FreeSlots: hp.NumFree(),
		})
		for s := range slots {
			if n := primitives.PageNumber(k*slots + s); n != 0 && n <= numPages && !hp.IsSlotUsed(s) {
				free[n] = true
			}
		}
		next = hp.Next()
	}

	for n := primitives.PageNumber(1); n <= numPages; n++ {
		if !seen[n] {
			summary.Pages = append(summary.Pages, PageSummary{PageNo: n, Category: UnreachableCategory, Free: free[n]})
		}
	}

	slices.SortFunc(summary.Pages, func(a, b PageSummary) int {
		return int(a.PageNo) - int(b.PageNo)
	})
	return summary, nil
}
