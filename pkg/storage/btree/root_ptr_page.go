package btree

import (
	"fmt"

	"clustore/pkg/primitives"
	"clustore/pkg/storage/page"
)

// RootPointerPage is the fixed region at offset 0 of a table file. It names
// the current root page and the first header page of the free list.
type RootPointerPage struct {
	pageState
	tableID      primitives.TableID
	root         primitives.PageNumber
	rootCategory page.Category
	header       primitives.PageNumber
}

// NewRootPointerPage returns a root pointer naming no root and no header.
func NewRootPointerPage(tableID primitives.TableID) *RootPointerPage {
	rp := &RootPointerPage{tableID: tableID, rootCategory: page.CategoryLeaf}
	rp.oldData = rp.GetPageData()
	return rp
}

func parseRootPointerPage(tableID primitives.TableID, data []byte) (*RootPointerPage, error) {
	if len(data) != RootPtrSize {
		return nil, corruptPage("root pointer page must be %d bytes, got %d", RootPtrSize, len(data))
	}

	rp := &RootPointerPage{
		tableID:      tableID,
		root:         getPageNo(data[0:4]),
		rootCategory: page.Category(data[4]),
		header:       getPageNo(data[5:9]),
	}
	if rp.root != primitives.InvalidPageNumber &&
		rp.rootCategory != page.CategoryLeaf && rp.rootCategory != page.CategoryInternal {
		return nil, corruptPage("root pointer names a %s page as root", rp.rootCategory)
	}
	if rp.root == primitives.InvalidPageNumber {
		rp.rootCategory = page.CategoryLeaf
	}
	rp.oldData = append([]byte(nil), data...)
	return rp, nil
}

// GetID returns the id of page 0.
func (rp *RootPointerPage) GetID() page.PageID {
	return page.RootPtrID(rp.tableID)
}

// RootID returns the root page id, or false when the tree has no root yet.
func (rp *RootPointerPage) RootID() (page.PageID, bool) {
	if rp.root == primitives.InvalidPageNumber {
		return page.PageID{}, false
	}
	return page.NewPageID(rp.tableID, rp.root, rp.rootCategory), true
}

// SetRootID points the tree at pid, which must be a leaf or internal page.
func (rp *RootPointerPage) SetRootID(pid page.PageID) error {
	if pid.Category() != page.CategoryLeaf && pid.Category() != page.CategoryInternal {
		return fmt.Errorf("root must be a leaf or internal page, got %s", pid.Category())
	}
	rp.root = pid.PageNo()
	rp.rootCategory = pid.Category()
	return nil
}

// HeaderID returns the first header page id, or false when no page has ever
// been freed.
func (rp *RootPointerPage) HeaderID() (page.PageID, bool) {
	if rp.header == primitives.InvalidPageNumber {
		return page.PageID{}, false
	}
	return page.NewPageID(rp.tableID, rp.header, page.CategoryHeader), true
}

// SetHeaderPageNo sets the first header page.
func (rp *RootPointerPage) SetHeaderPageNo(n primitives.PageNumber) {
	rp.header = n
}

// GetPageData encodes the 9-byte root pointer.
func (rp *RootPointerPage) GetPageData() []byte {
	data := make([]byte, RootPtrSize)
	putPageNo(data[0:4], rp.root)
	data[4] = byte(rp.rootCategory)
	putPageNo(data[5:9], rp.header)
	return data
}

// GetBeforeImage decodes the image saved by the last SetBeforeImage.
func (rp *RootPointerPage) GetBeforeImage() page.Page {
	before, err := parseRootPointerPage(rp.tableID, rp.oldData)
	if err != nil {
		return nil
	}
	return before
}

// SetBeforeImage snapshots the current contents.
func (rp *RootPointerPage) SetBeforeImage() {
	rp.oldData = rp.GetPageData()
}
