package btree

import (
	"encoding/binary"

	"clustore/pkg/dberror"
	"clustore/pkg/primitives"
)

// pageState carries the dirty marker and the before image shared by every
// page variant.
type pageState struct {
	dirtyTid *primitives.TransactionID
	oldData  []byte
}

// IsDirty returns the transaction that dirtied the page, or nil.
func (s *pageState) IsDirty() *primitives.TransactionID {
	return s.dirtyTid
}

// MarkDirty sets or clears the dirtying transaction.
func (s *pageState) MarkDirty(dirty bool, tid *primitives.TransactionID) {
	if dirty {
		s.dirtyTid = tid
	} else {
		s.dirtyTid = nil
	}
}

func putPageNo(buf []byte, n primitives.PageNumber) {
	binary.BigEndian.PutUint32(buf, uint32(n))
}

func getPageNo(buf []byte) primitives.PageNumber {
	return primitives.PageNumber(binary.BigEndian.Uint32(buf))
}

func corruptPage(format string, args ...any) *dberror.DBError {
	return dberror.Newf(dberror.ErrCategoryData, dberror.CodeCorruptPage, format, args...)
}

func structureViolation(operation, format string, args ...any) *dberror.DBError {
	return dberror.Newf(dberror.ErrCategoryData, dberror.CodeStructureViolation, format, args...).
		WithOperation(operation, "BTreeFile")
}
