package primitives

import "fmt"

// IsValid checks if the FileID is a valid non-zero identifier.
func (f FileID) IsValid() bool {
	return f != 0
}

// AsUint64 returns the FileID as a uint64 for serialization or storage.
func (f FileID) AsUint64() uint64 {
	return uint64(f)
}

func (f FileID) String() string {
	return fmt.Sprintf("FileID(%d)", f)
}

// AsTableID reinterprets the file id as the id of the table stored in it.
func (f FileID) AsTableID() TableID {
	return TableID(f)
}

func (t TableID) IsValid() bool {
	return t != 0
}

func (t TableID) AsUint64() uint64 {
	return uint64(t)
}

func (t TableID) String() string {
	return fmt.Sprintf("TableID(%d)", t)
}

// ToFileID returns the id of the file backing this table.
func (t TableID) ToFileID() FileID {
	return FileID(t)
}

// IsValid reports whether p refers to a real page. Page 0 is the root
// pointer and never a tree page, so it is treated as "none".
func (p PageNumber) IsValid() bool {
	return p != InvalidPageNumber
}
