package btree

import (
	"bytes"

	"clustore/pkg/primitives"
	"clustore/pkg/storage/page"
	"clustore/pkg/tuple"
	"clustore/pkg/types"
)

// LeafPage holds rows in key order. Layout:
//
//	[bitmap: N bytes][parent u32][left u32][right u32][rows: N * rowSize]
//
// Occupied slots are key-sorted but need not be contiguous: a delete clears
// its slot in place and an insert shifts rows toward the first free slot.
type LeafPage struct {
	pageState
	pid    page.PageID
	layout *layout

	ParentPage primitives.PageNumber
	PrevLeaf   primitives.PageNumber
	NextLeaf   primitives.PageNumber

	slots   []*tuple.Tuple
	numRows int
}

// NewLeafPage returns an empty leaf with no siblings.
func NewLeafPage(pid page.PageID, l *layout, parent primitives.PageNumber) *LeafPage {
	lp := &LeafPage{
		pid:        pid,
		layout:     l,
		ParentPage: parent,
		slots:      make([]*tuple.Tuple, l.leafSlots),
	}
	lp.oldData = lp.GetPageData()
	return lp
}

func parseLeafPage(pid page.PageID, l *layout, data []byte) (*LeafPage, error) {
	if len(data) != l.pageSize {
		return nil, corruptPage("leaf page %s: expected %d bytes, got %d", pid, l.pageSize, len(data))
	}

	n := l.leafSlots
	lp := &LeafPage{
		pid:        pid,
		layout:     l,
		ParentPage: getPageNo(data[n : n+4]),
		PrevLeaf:   getPageNo(data[n+4 : n+8]),
		NextLeaf:   getPageNo(data[n+8 : n+12]),
		slots:      make([]*tuple.Tuple, n),
	}

	rows := data[n+leafPointerBytes:]
	for i := range n {
		if data[i] == 0 {
			continue
		}
		off := i * l.rowSize
		row, err := tuple.ParseTuple(bytes.NewReader(rows[off:off+l.rowSize]), l.td)
		if err != nil {
			return nil, corruptPage("leaf page %s slot %d: %v", pid, i, err)
		}
		row.RecordID = tuple.NewRecordID(pid, primitives.SlotID(i))
		lp.slots[i] = row
		lp.numRows++
	}

	lp.oldData = append([]byte(nil), data...)
	return lp, nil
}

// GetID returns the page id.
func (lp *LeafPage) GetID() page.PageID {
	return lp.pid
}

// GetPageData encodes the page; unused slots are zero.
func (lp *LeafPage) GetPageData() []byte {
	n := lp.layout.leafSlots
	data := make([]byte, lp.layout.pageSize)
	putPageNo(data[n:n+4], lp.ParentPage)
	putPageNo(data[n+4:n+8], lp.PrevLeaf)
	putPageNo(data[n+8:n+12], lp.NextLeaf)

	rows := data[n+leafPointerBytes:]
	for i, row := range lp.slots {
		if row == nil {
			continue
		}
		b, err := row.Bytes()
		if err != nil {
			// rows are validated against the schema before they reach a page
			panic(err)
		}
		data[i] = 1
		copy(rows[i*lp.layout.rowSize:], b)
	}
	return data
}

// GetBeforeImage decodes the image saved by the last SetBeforeImage.
func (lp *LeafPage) GetBeforeImage() page.Page {
	before, err := parseLeafPage(lp.pid, lp.layout, lp.oldData)
	if err != nil {
		return nil
	}
	return before
}

// SetBeforeImage snapshots the current contents.
func (lp *LeafPage) SetBeforeImage() {
	lp.oldData = lp.GetPageData()
}

// IsRoot reports whether the leaf has no parent.
func (lp *LeafPage) IsRoot() bool {
	return lp.ParentPage == primitives.InvalidPageNumber
}

// NumRows returns the number of occupied slots.
func (lp *LeafPage) NumRows() int {
	return lp.numRows
}

// NumEmptySlots returns how many more rows fit.
func (lp *LeafPage) NumEmptySlots() int {
	return len(lp.slots) - lp.numRows
}

// IsFull reports whether every slot is occupied.
func (lp *LeafPage) IsFull() bool {
	return lp.numRows == len(lp.slots)
}

// Capacity returns the number of row slots.
func (lp *LeafPage) Capacity() int {
	return len(lp.slots)
}

// IsSlotUsed reports whether slot i holds a row.
func (lp *LeafPage) IsSlotUsed(i int) bool {
	return i >= 0 && i < len(lp.slots) && lp.slots[i] != nil
}

// Rows returns the stored rows in key order. The rows are the page's own
// values; callers that hand them out clone them first.
func (lp *LeafPage) Rows() []*tuple.Tuple {
	rows := make([]*tuple.Tuple, 0, lp.numRows)
	for _, row := range lp.slots {
		if row != nil {
			rows = append(rows, row)
		}
	}
	return rows
}

// FirstRow returns the row with the smallest key, or nil.
func (lp *LeafPage) FirstRow() *tuple.Tuple {
	for _, row := range lp.slots {
		if row != nil {
			return row
		}
	}
	return nil
}

// LastRow returns the row with the largest key, or nil.
func (lp *LeafPage) LastRow() *tuple.Tuple {
	for i := len(lp.slots) - 1; i >= 0; i-- {
		if lp.slots[i] != nil {
			return lp.slots[i]
		}
	}
	return nil
}

func (lp *LeafPage) keyOf(row *tuple.Tuple) types.Field {
	key, _ := row.GetField(lp.layout.keyField)
	return key
}

// InsertRow places row in key order and sets its RecordID. Rows between the
// target position and the lowest-numbered free slot shift by one and get new
// RecordIDs.
func (lp *LeafPage) InsertRow(row *tuple.Tuple) error {
	if lp.IsFull() {
		return structureViolation("InsertRow", "leaf page %s has no free slot", lp.pid)
	}
	key := lp.keyOf(row)

	emptySlot := -1
	for i, r := range lp.slots {
		if r == nil {
			emptySlot = i
			break
		}
	}

	lessOrEq := -1
	for i, r := range lp.slots {
		if r == nil {
			continue
		}
		c, err := types.CompareFields(lp.keyOf(r), key)
		if err != nil {
			return err
		}
		if c > 0 {
			break
		}
		lessOrEq = i
	}

	var target int
	if emptySlot < lessOrEq {
		for i := emptySlot; i < lessOrEq; i++ {
			lp.moveSlot(i+1, i)
		}
		target = lessOrEq
	} else {
		for i := emptySlot; i > lessOrEq+1; i-- {
			lp.moveSlot(i-1, i)
		}
		target = lessOrEq + 1
	}

	lp.setSlot(target, row)
	lp.numRows++
	return nil
}

// moveSlot moves the row in slot from into slot to, which must be free.
func (lp *LeafPage) moveSlot(from, to int) {
	row := lp.slots[from]
	lp.slots[from] = nil
	if row != nil {
		lp.setSlot(to, row)
	}
}

func (lp *LeafPage) setSlot(i int, row *tuple.Tuple) {
	row.RecordID = tuple.NewRecordID(lp.pid, primitives.SlotID(i))
	lp.slots[i] = row
}

// DeleteRow clears the slot named by row's RecordID.
func (lp *LeafPage) DeleteRow(row *tuple.Tuple) error {
	rid := row.RecordID
	if rid == nil || rid.PageID != lp.pid {
		return structureViolation("DeleteRow", "row does not belong to leaf page %s", lp.pid)
	}
	slot := int(rid.Slot)
	if !lp.IsSlotUsed(slot) {
		return structureViolation("DeleteRow", "slot %d of leaf page %s is empty", slot, lp.pid)
	}

	lp.slots[slot].RecordID = nil
	lp.slots[slot] = nil
	lp.numRows--
	row.RecordID = nil
	return nil
}

// findRow returns the stored row whose key equals key, or nil.
func (lp *LeafPage) findRow(key types.Field) (*tuple.Tuple, error) {
	for _, r := range lp.slots {
		if r == nil {
			continue
		}
		c, err := types.CompareFields(lp.keyOf(r), key)
		if err != nil {
			return nil, err
		}
		if c == 0 {
			return r, nil
		}
		if c > 0 {
			return nil, nil
		}
	}
	return nil, nil
}

// setRows replaces the page contents with rows, which must be key-sorted,
// packed into the leading slots.
func (lp *LeafPage) setRows(rows []*tuple.Tuple) {
	clear(lp.slots)
	for i, row := range rows {
		lp.setSlot(i, row)
	}
	lp.numRows = len(rows)
}

// isSorted reports whether the occupied slots are in strictly ascending key
// order.
func (lp *LeafPage) isSorted() (bool, error) {
	rows := lp.Rows()
	for i := 1; i < len(rows); i++ {
		c, err := types.CompareFields(lp.keyOf(rows[i-1]), lp.keyOf(rows[i]))
		if err != nil || c >= 0 {
			return false, err
		}
	}
	return true, nil
}
