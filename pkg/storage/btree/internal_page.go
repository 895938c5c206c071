package btree

import (
	"bytes"
	"slices"

	"clustore/pkg/primitives"
	"clustore/pkg/storage/page"
	"clustore/pkg/types"
)

// ChildPtr is one child reference of an internal page. Key separates this
// child from the one before it; the first child carries no key.
type ChildPtr struct {
	Key   types.Field
	Child primitives.PageNumber
}

// InternalPage routes searches to its children. Layout:
//
//	[bitmap: M+1 bytes][parent u32][child category u8]
//	[keys: M * keySize][children: (M+1) * u32]
//
// Slot 0 holds only a child; slot i >= 1 holds key i and child i. Keys are
// packed into the leading slots when serialized.
type InternalPage struct {
	pageState
	pid    page.PageID
	layout *layout

	ParentPage    primitives.PageNumber
	childCategory page.Category
	children      []*ChildPtr
}

// NewInternalPage returns an internal page with no entries.
func NewInternalPage(pid page.PageID, l *layout, parent primitives.PageNumber) *InternalPage {
	ip := &InternalPage{
		pid:           pid,
		layout:        l,
		ParentPage:    parent,
		childCategory: page.CategoryLeaf,
		children:      make([]*ChildPtr, 0, l.internalSlots+1),
	}
	ip.oldData = ip.GetPageData()
	return ip
}

func parseInternalPage(pid page.PageID, l *layout, data []byte) (*InternalPage, error) {
	if len(data) != l.pageSize {
		return nil, corruptPage("internal page %s: expected %d bytes, got %d", pid, l.pageSize, len(data))
	}

	m := l.internalSlots
	bitmap := data[:m+1]
	pointers := data[m+1:]
	keysOff := internalPointerBytes
	childrenOff := keysOff + m*l.keySize

	ip := &InternalPage{
		pid:           pid,
		layout:        l,
		ParentPage:    getPageNo(pointers[0:4]),
		childCategory: page.Category(pointers[4]),
		children:      make([]*ChildPtr, 0, m+1),
	}

	for i := 0; i <= m; i++ {
		if bitmap[i] == 0 {
			continue
		}
		child := getPageNo(pointers[childrenOff+4*i:])
		if len(ip.children) == 0 {
			ip.children = append(ip.children, &ChildPtr{Child: child})
			continue
		}
		off := keysOff + (i-1)*l.keySize
		key, err := types.ParseField(bytes.NewReader(pointers[off:off+l.keySize]), l.keyType)
		if err != nil {
			return nil, corruptPage("internal page %s slot %d: %v", pid, i, err)
		}
		ip.children = append(ip.children, &ChildPtr{Key: key, Child: child})
	}

	if len(ip.children) > 0 && ip.childCategory != page.CategoryLeaf && ip.childCategory != page.CategoryInternal {
		return nil, corruptPage("internal page %s has children of category %s", pid, ip.childCategory)
	}
	if ip.childCategory != page.CategoryInternal {
		ip.childCategory = page.CategoryLeaf
	}

	ip.oldData = append([]byte(nil), data...)
	return ip, nil
}

// GetID returns the page id.
func (ip *InternalPage) GetID() page.PageID {
	return ip.pid
}

// GetPageData encodes the page, packing entries into the lowest slots.
func (ip *InternalPage) GetPageData() []byte {
	m := ip.layout.internalSlots
	data := make([]byte, ip.layout.pageSize)
	pointers := data[m+1:]
	keysOff := internalPointerBytes
	childrenOff := keysOff + m*ip.layout.keySize

	putPageNo(pointers[0:4], ip.ParentPage)
	pointers[4] = byte(ip.childCategory)

	for i, c := range ip.children {
		data[i] = 1
		putPageNo(pointers[childrenOff+4*i:], c.Child)
		if i == 0 {
			continue
		}
		var buf bytes.Buffer
		if err := c.Key.Serialize(&buf); err != nil {
			// keys are validated against the schema before they reach a page
			panic(err)
		}
		copy(pointers[keysOff+(i-1)*ip.layout.keySize:], buf.Bytes())
	}
	return data
}

// GetBeforeImage decodes the image saved by the last SetBeforeImage.
func (ip *InternalPage) GetBeforeImage() page.Page {
	before, err := parseInternalPage(ip.pid, ip.layout, ip.oldData)
	if err != nil {
		return nil
	}
	return before
}

// SetBeforeImage snapshots the current contents.
func (ip *InternalPage) SetBeforeImage() {
	ip.oldData = ip.GetPageData()
}

// IsRoot reports whether the page has no parent.
func (ip *InternalPage) IsRoot() bool {
	return ip.ParentPage == primitives.InvalidPageNumber
}

// NumEntries returns the number of keys.
func (ip *InternalPage) NumEntries() int {
	if len(ip.children) == 0 {
		return 0
	}
	return len(ip.children) - 1
}

// NumEmptySlots returns how many more keys fit.
func (ip *InternalPage) NumEmptySlots() int {
	return ip.layout.internalSlots - ip.NumEntries()
}

// IsFull reports whether no key slot is free.
func (ip *InternalPage) IsFull() bool {
	return ip.NumEntries() >= ip.layout.internalSlots
}

// Capacity returns the maximum number of keys.
func (ip *InternalPage) Capacity() int {
	return ip.layout.internalSlots
}

// Children returns the child pointers; entry 0 carries no key.
func (ip *InternalPage) Children() []*ChildPtr {
	return ip.children
}

// ChildCategory returns whether the children are leaves or internal pages.
func (ip *InternalPage) ChildCategory() page.Category {
	return ip.childCategory
}

// SetChildCategory records the category of the children.
func (ip *InternalPage) SetChildCategory(c page.Category) {
	ip.childCategory = c
}

// ChildID returns the page id of child i.
func (ip *InternalPage) ChildID(i int) page.PageID {
	return page.NewPageID(ip.pid.GetTableID(), ip.children[i].Child, ip.childCategory)
}

// childIndex returns the position of child pageNo, or -1.
func (ip *InternalPage) childIndex(pageNo primitives.PageNumber) int {
	return slices.IndexFunc(ip.children, func(c *ChildPtr) bool {
		return c.Child == pageNo
	})
}

// InsertEntry adds key with right as the child following left. On an empty
// page it installs both children.
func (ip *InternalPage) InsertEntry(key types.Field, left, right primitives.PageNumber) error {
	if ip.IsFull() {
		return structureViolation("InsertEntry", "internal page %s has no free slot", ip.pid)
	}
	if len(ip.children) == 0 {
		ip.children = append(ip.children, &ChildPtr{Child: left}, &ChildPtr{Key: key, Child: right})
		return nil
	}

	i := ip.childIndex(left)
	if i < 0 {
		return structureViolation("InsertEntry", "child %d not found in internal page %s", left, ip.pid)
	}
	if i > 0 {
		if c, err := types.CompareFields(ip.children[i].Key, key); err != nil {
			return err
		} else if c > 0 {
			return structureViolation("InsertEntry", "key %s sorts before separator %s in %s", key, ip.children[i].Key, ip.pid)
		}
	}
	if i+1 < len(ip.children) {
		if c, err := types.CompareFields(key, ip.children[i+1].Key); err != nil {
			return err
		} else if c > 0 {
			return structureViolation("InsertEntry", "key %s sorts after separator %s in %s", key, ip.children[i+1].Key, ip.pid)
		}
	}

	ip.children = slices.Insert(ip.children, i+1, &ChildPtr{Key: key, Child: right})
	return nil
}

// deleteKeyAndRightChild removes key i and the child to its right.
func (ip *InternalPage) deleteKeyAndRightChild(i int) {
	ip.children = slices.Delete(ip.children, i, i+1)
}

// deleteKeyAndLeftChild removes key i and the child to its left.
func (ip *InternalPage) deleteKeyAndLeftChild(i int) {
	ip.children[i].Key = ip.children[i-1].Key
	ip.children = slices.Delete(ip.children, i-1, i)
}

func (ip *InternalPage) setChildren(children []*ChildPtr) {
	ip.children = append(ip.children[:0:0], children...)
	if len(ip.children) > 0 {
		ip.children[0].Key = nil
	}
}
