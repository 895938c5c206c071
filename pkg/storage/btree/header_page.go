package btree

import (
	"math/bits"

	"clustore/pkg/primitives"
	"clustore/pkg/storage/page"
)

// HeaderPage is one node of the free-list: a bitmap with one bit per page
// number (1 = in use) followed by next and prev header page numbers. Header
// k along the list covers page numbers [k*slots, (k+1)*slots).
type HeaderPage struct {
	pageState
	pid      page.PageID
	pageSize int
	bitmap   []byte
	next     primitives.PageNumber
	prev     primitives.PageNumber
}

// NewHeaderPage returns a header with every slot free. Callers that link a
// new header into the list mark it all-used first with MarkAllUsed.
func NewHeaderPage(pid page.PageID, pageSize int) *HeaderPage {
	hp := &HeaderPage{
		pid:      pid,
		pageSize: pageSize,
		bitmap:   make([]byte, pageSize-headerPointerBytes),
	}
	hp.oldData = hp.GetPageData()
	return hp
}

func parseHeaderPage(pid page.PageID, data []byte) (*HeaderPage, error) {
	if len(data) <= headerPointerBytes {
		return nil, corruptPage("header page %s too short: %d bytes", pid, len(data))
	}

	n := len(data) - headerPointerBytes
	hp := &HeaderPage{
		pid:      pid,
		pageSize: len(data),
		bitmap:   append([]byte(nil), data[:n]...),
		next:     getPageNo(data[n : n+4]),
		prev:     getPageNo(data[n+4 : n+8]),
	}
	hp.oldData = append([]byte(nil), data...)
	return hp, nil
}

// GetID returns the page id.
func (hp *HeaderPage) GetID() page.PageID {
	return hp.pid
}

// NumSlots returns the number of page numbers this header covers.
func (hp *HeaderPage) NumSlots() int {
	return len(hp.bitmap) * 8
}

// IsSlotUsed reports whether page number slot i is in use.
func (hp *HeaderPage) IsSlotUsed(i int) bool {
	return hp.bitmap[i/8]&(1<<(i%8)) != 0
}

// MarkSlotUsed sets or clears the bit for slot i.
func (hp *HeaderPage) MarkSlotUsed(i int, used bool) {
	if used {
		hp.bitmap[i/8] |= 1 << (i % 8)
	} else {
		hp.bitmap[i/8] &^= 1 << (i % 8)
	}
}

// MarkAllUsed sets every bit.
func (hp *HeaderPage) MarkAllUsed() {
	for i := range hp.bitmap {
		hp.bitmap[i] = 0xff
	}
}

// FirstFreeSlot returns the lowest free slot, or -1.
func (hp *HeaderPage) FirstFreeSlot() int {
	for i, b := range hp.bitmap {
		if b != 0xff {
			return i*8 + bits.TrailingZeros8(^b)
		}
	}
	return -1
}

// FirstReusableSlot returns the lowest slot that is free both now and in the
// before image, or -1. A number freed by the transaction that still owns this
// page is not reusable: its page holds the committed contents an abort
// must restore.
func (hp *HeaderPage) FirstReusableSlot() int {
	committed := hp.oldData[:len(hp.bitmap)]
	for i, b := range hp.bitmap {
		if b |= committed[i]; b != 0xff {
			return i*8 + bits.TrailingZeros8(^b)
		}
	}
	return -1
}

// NumFree returns the number of free slots.
func (hp *HeaderPage) NumFree() int {
	used := 0
	for _, b := range hp.bitmap {
		used += bits.OnesCount8(b)
	}
	return hp.NumSlots() - used
}

// Next and Prev link the header list; zero ends it.
func (hp *HeaderPage) Next() primitives.PageNumber { return hp.next }
func (hp *HeaderPage) Prev() primitives.PageNumber { return hp.prev }

// SetNext and SetPrev relink the header list.
func (hp *HeaderPage) SetNext(n primitives.PageNumber) { hp.next = n }
func (hp *HeaderPage) SetPrev(n primitives.PageNumber) { hp.prev = n }

// GetPageData serializes the bitmap and list pointers.
func (hp *HeaderPage) GetPageData() []byte {
	data := make([]byte, hp.pageSize)
	n := copy(data, hp.bitmap)
	putPageNo(data[n:n+4], hp.next)
	putPageNo(data[n+4:n+8], hp.prev)
	return data
}

// GetBeforeImage decodes the image saved by the last SetBeforeImage.
func (hp *HeaderPage) GetBeforeImage() page.Page {
	before, err := parseHeaderPage(hp.pid, hp.oldData)
	if err != nil {
		return nil
	}
	return before
}

// SetBeforeImage snapshots the current contents.
func (hp *HeaderPage) SetBeforeImage() {
	hp.oldData = hp.GetPageData()
}
