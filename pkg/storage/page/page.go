package page

import (
	"clustore/pkg/primitives"
)

const (
	// DefaultPageSize is the size of each tree page in bytes (4KB)
	DefaultPageSize = 4096
)

// Page represents a page that is resident in the buffer pool.
// Pages may be "dirty", indicating they have been modified since last written to disk.
type Page interface {
	// GetID returns the ID of this page
	GetID() PageID

	// IsDirty returns the transaction ID that last dirtied this page, or nil if clean
	IsDirty() *primitives.TransactionID

	// MarkDirty sets the dirty state of this page
	MarkDirty(dirty bool, tid *primitives.TransactionID)

	// GetPageData returns the serialized contents of this page
	GetPageData() []byte

	// GetBeforeImage returns a copy of this page as of the last commit or load
	GetBeforeImage() Page

	// SetBeforeImage copies current content to the before image.
	// Called when a transaction that wrote this page commits.
	SetBeforeImage()
}

// DbFile is a table file that the buffer pool reads pages from and writes
// pages back to.
type DbFile interface {
	ReadPage(pid PageID) (Page, error)
	WritePage(p Page) error
	GetID() primitives.TableID
	Close() error
}
