package btree

import (
	"clustore/pkg/concurrency/transaction"
	"clustore/pkg/primitives"
	"clustore/pkg/storage/page"
	"clustore/pkg/types"
)

// getRootPtr fetches the root pointer page. A ReadWrite fetch creates the
// tree in an empty file; a ReadOnly fetch of an empty file returns nil.
func (f *File) getRootPtr(tx *transaction.TransactionContext, perm transaction.Permissions) (*RootPointerPage, error) {
	ok, err := f.ensureInitialized(perm == transaction.ReadWrite)
	if err != nil || !ok {
		return nil, err
	}

	p, err := f.pool.GetPage(tx, page.RootPtrID(f.tableID), perm)
	if err != nil {
		return nil, err
	}
	rp, ok := p.(*RootPointerPage)
	if !ok {
		return nil, structureViolation("getRootPtr", "page %s is a %T, not a root pointer page", p.GetID(), p)
	}
	return rp, nil
}

func (f *File) getLeaf(tx *transaction.TransactionContext, pageNo primitives.PageNumber, perm transaction.Permissions) (*LeafPage, error) {
	p, err := f.pool.GetPage(tx, f.leafID(pageNo), perm)
	if err != nil {
		return nil, err
	}
	lp, ok := p.(*LeafPage)
	if !ok {
		return nil, structureViolation("getLeaf", "page %s is a %T, not a leaf page", p.GetID(), p)
	}
	return lp, nil
}

func (f *File) getInternal(tx *transaction.TransactionContext, pageNo primitives.PageNumber, perm transaction.Permissions) (*InternalPage, error) {
	p, err := f.pool.GetPage(tx, f.internalID(pageNo), perm)
	if err != nil {
		return nil, err
	}
	ip, ok := p.(*InternalPage)
	if !ok {
		return nil, structureViolation("getInternal", "page %s is a %T, not an internal page", p.GetID(), p)
	}
	return ip, nil
}

func (f *File) getHeader(tx *transaction.TransactionContext, pageNo primitives.PageNumber, perm transaction.Permissions) (*HeaderPage, error) {
	p, err := f.pool.GetPage(tx, f.headerID(pageNo), perm)
	if err != nil {
		return nil, err
	}
	hp, ok := p.(*HeaderPage)
	if !ok {
		return nil, structureViolation("getHeader", "page %s is a %T, not a header page", p.GetID(), p)
	}
	return hp, nil
}

// getTreePage fetches a leaf or internal page.
func (f *File) getTreePage(tx *transaction.TransactionContext, pid page.PageID, perm transaction.Permissions) (page.Page, error) {
	switch pid.Category() {
	case page.CategoryLeaf:
		return f.getLeaf(tx, pid.PageNo(), perm)
	case page.CategoryInternal:
		return f.getInternal(tx, pid.PageNo(), perm)
	default:
		return nil, structureViolation("getTreePage", "page %s is not a tree page", pid)
	}
}

func (f *File) leafID(n primitives.PageNumber) page.PageID {
	return page.NewPageID(f.tableID, n, page.CategoryLeaf)
}

func (f *File) internalID(n primitives.PageNumber) page.PageID {
	return page.NewPageID(f.tableID, n, page.CategoryInternal)
}

func (f *File) headerID(n primitives.PageNumber) page.PageID {
	return page.NewPageID(f.tableID, n, page.CategoryHeader)
}

// findLeaf descends from pid to the leaf that search for key lands on. A key
// equal to a separator goes left; a nil key follows the leftmost path.
// Internal pages are read-only; the leaf is fetched with perm.
func (f *File) findLeaf(tx *transaction.TransactionContext, pid page.PageID, perm transaction.Permissions, key types.Field) (*LeafPage, error) {
	leaf, _, err := f.descend(tx, pid, perm, key)
	return leaf, err
}

// descend is findLeaf that also reports whether key equalled a separator on
// the way down. Such a key is stored in the leaf right of the one returned.
func (f *File) descend(tx *transaction.TransactionContext, pid page.PageID, perm transaction.Permissions, key types.Field) (*LeafPage, bool, error) {
	onSeparator := false
	for pid.Category() == page.CategoryInternal {
		ip, err := f.getInternal(tx, pid.PageNo(), transaction.ReadOnly)
		if err != nil {
			return nil, false, err
		}
		if len(ip.children) == 0 {
			return nil, false, structureViolation("findLeaf", "internal page %s has no children", pid)
		}

		next, equal, err := ip.route(key)
		if err != nil {
			return nil, false, err
		}
		onSeparator = onSeparator || equal
		pid = ip.ChildID(next)
	}

	if pid.Category() != page.CategoryLeaf {
		return nil, false, structureViolation("findLeaf", "page %s is not a tree page", pid)
	}
	leaf, err := f.getLeaf(tx, pid.PageNo(), perm)
	return leaf, onSeparator, err
}

// route returns the index of the child that key descends into and whether
// key equals the separator that sent it there.
func (ip *InternalPage) route(key types.Field) (int, bool, error) {
	if key == nil {
		return 0, false, nil
	}
	for i := 1; i < len(ip.children); i++ {
		c, err := types.CompareFields(key, ip.children[i].Key)
		if err != nil {
			return 0, false, err
		}
		if c <= 0 {
			return i - 1, c == 0, nil
		}
	}
	return len(ip.children) - 1, false, nil
}

// locate returns the leaf that holds key, or would hold it, together with
// the stored row's leaf (nil when key is absent). Separators are the first
// key of their right subtree, so a key equal to one lives in the right
// sibling of the leaf search lands on.
func (f *File) locate(tx *transaction.TransactionContext, root page.PageID, perm transaction.Permissions, key types.Field) (*LeafPage, *LeafPage, error) {
	leaf, onSeparator, err := f.descend(tx, root, perm, key)
	if err != nil {
		return nil, nil, err
	}
	if onSeparator {
		if leaf.NextLeaf == primitives.InvalidPageNumber {
			return nil, nil, structureViolation("locate", "key %s equals a separator but leaf %s has no right sibling", key, leaf.pid)
		}
		if leaf, err = f.getLeaf(tx, leaf.NextLeaf, perm); err != nil {
			return nil, nil, err
		}
	}

	row, err := leaf.findRow(key)
	if err != nil || row == nil {
		return leaf, nil, err
	}
	return leaf, leaf, nil
}
