package btree

import (
	"clustore/pkg/dberror"
	"clustore/pkg/storage/page"
	"clustore/pkg/tuple"
	"clustore/pkg/types"
)

// RootPtrSize is the size of the root pointer region at offset 0:
// root page number (4) | root category (1) | first header page number (4).
const RootPtrSize = 9

const (
	leafPointerBytes     = 12 // parent | left | right
	internalPointerBytes = 5  // parent | child category
	headerPointerBytes   = 8  // next | prev

	minLeafSlots     = 2
	minInternalSlots = 4
)

// Config configures a table file.
type Config struct {
	// PageSize is the size of every numbered page.
	PageSize int

	// BlockCacheBytes bounds the clean page-image cache kept below the buffer
	// pool. Zero disables it.
	BlockCacheBytes int64

	// SyncOnWrite fsyncs after every page write.
	SyncOnWrite bool
}

// DefaultConfig returns 4096-byte pages with a 4 MiB block cache.
func DefaultConfig() Config {
	return Config{
		PageSize:        page.DefaultPageSize,
		BlockCacheBytes: 4 << 20,
	}
}

// layout holds everything derived from the page size and row schema.
type layout struct {
	pageSize int
	td       *tuple.TupleDescription
	keyField int
	keyType  types.Type
	rowSize  int
	keySize  int

	leafSlots     int
	internalSlots int
	headerSlots   int
}

func newLayout(pageSize int, td *tuple.TupleDescription, keyField int) (*layout, error) {
	if td == nil || td.NumFields() == 0 {
		return nil, dberror.New(dberror.ErrCategoryConfig, dberror.CodeInvalidSchema, "row schema cannot be empty")
	}
	keyType, err := td.TypeAtIndex(keyField)
	if err != nil {
		return nil, dberror.New(dberror.ErrCategoryConfig, dberror.CodeInvalidSchema, "key field out of range").
			WithDetail("key field %d, schema has %d fields", keyField, td.NumFields())
	}

	l := &layout{
		pageSize: pageSize,
		td:       td,
		keyField: keyField,
		keyType:  keyType,
		rowSize:  int(td.GetSize()),
		keySize:  int(keyType.Size()),
	}

	if pageSize > leafPointerBytes {
		l.leafSlots = (pageSize - leafPointerBytes) / (l.rowSize + 1)
	}
	if pageSize > internalPointerBytes*2 {
		l.internalSlots = (pageSize - 2*internalPointerBytes) / (l.keySize + 5)
	}
	if pageSize > headerPointerBytes {
		l.headerSlots = (pageSize - headerPointerBytes) * 8
	}

	if l.leafSlots < minLeafSlots || l.internalSlots < minInternalSlots {
		return nil, dberror.Newf(dberror.ErrCategoryConfig, dberror.CodePageSizeTooSmall,
			"page size %d too small: leaf holds %d rows (need %d), internal page holds %d keys (need %d)",
			pageSize, l.leafSlots, minLeafSlots, l.internalSlots, minInternalSlots)
	}
	return l, nil
}

// minLeafRows is the occupancy below which a non-root leaf is rebalanced.
func (l *layout) minLeafRows() int {
	return l.leafSlots / 2
}

// minInternalKeys is the occupancy below which a non-root internal page is
// rebalanced.
func (l *layout) minInternalKeys() int {
	return l.internalSlots / 2
}
