// Package primitives holds the small identifier types shared by every layer
// of the storage engine: table ids, page numbers, slot ids and the comparison
// predicates used by scans.
package primitives

// HashCode represents a hash value (e.g., for keys, page IDs, etc.)
type HashCode uint64

// FileID identifies a physical table file. It is derived from the file path
// with FNV-1a, so the same path always maps to the same id.
type FileID uint64

// TableID identifies a table. Every table lives in exactly one file, so a
// TableID and the FileID of that file share the same value.
type TableID uint64

// PageNumber is the position of a page within a table file. It is stored
// on disk as a 4-byte big-endian integer.
type PageNumber uint32

// SlotID represents a slot number within a page.
type SlotID uint16

const (
	// InvalidPageNumber means "no page": no parent, no sibling, no root.
	// Page number 0 is reserved for the root pointer page.
	InvalidPageNumber PageNumber = 0

	// InvalidFileID represents an invalid or unset file ID
	InvalidFileID FileID = 0
)
