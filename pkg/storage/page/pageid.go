package page

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"

	"clustore/pkg/primitives"
)

// Category tells which page variant a page number holds. Page numbers are
// unique within a file, the category only selects the decoder.
type Category uint8

const (
	CategoryRootPtr Category = iota
	CategoryInternal
	CategoryLeaf
	CategoryHeader
)

func (c Category) String() string {
	switch c {
	case CategoryRootPtr:
		return "ROOT_PTR"
	case CategoryInternal:
		return "INTERNAL"
	case CategoryLeaf:
		return "LEAF"
	case CategoryHeader:
		return "HEADER"
	default:
		return fmt.Sprintf("CATEGORY(%d)", uint8(c))
	}
}

// IsValid reports whether c is one of the four known categories.
func (c Category) IsValid() bool {
	return c <= CategoryHeader
}

// PageID identifies a page: the table it belongs to, its page number in the
// table file and its category. It is a comparable value and is used directly
// as a map key by the buffer pool and the lock manager.
type PageID struct {
	tableID  primitives.TableID
	pageNo   primitives.PageNumber
	category Category
}

// NewPageID creates a page id.
func NewPageID(tableID primitives.TableID, pageNo primitives.PageNumber, category Category) PageID {
	return PageID{
		tableID:  tableID,
		pageNo:   pageNo,
		category: category,
	}
}

// RootPtrID returns the id of the root pointer page of a table.
func RootPtrID(tableID primitives.TableID) PageID {
	return NewPageID(tableID, primitives.InvalidPageNumber, CategoryRootPtr)
}

func (pid PageID) GetTableID() primitives.TableID {
	return pid.tableID
}

func (pid PageID) PageNo() primitives.PageNumber {
	return pid.pageNo
}

func (pid PageID) Category() Category {
	return pid.category
}

// Serialize encodes the id as tableID (8) | pageNo (4) | category (1).
func (pid PageID) Serialize() []byte {
	buf := make([]byte, 13)
	binary.BigEndian.PutUint64(buf[0:8], uint64(pid.tableID))
	binary.BigEndian.PutUint32(buf[8:12], uint32(pid.pageNo))
	buf[12] = byte(pid.category)
	return buf
}

func (pid PageID) String() string {
	return fmt.Sprintf("PageID(table=%d, page=%d, %s)", pid.tableID, pid.pageNo, pid.category)
}

func (pid PageID) HashCode() primitives.HashCode {
	h := fnv.New64a()
	_, _ = h.Write(pid.Serialize())
	return primitives.HashCode(h.Sum64())
}
