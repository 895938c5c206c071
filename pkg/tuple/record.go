package tuple

import (
	"fmt"

	"clustore/pkg/primitives"
	"clustore/pkg/storage/page"
)

// RecordID locates a stored tuple: the leaf page holding it and its slot.
type RecordID struct {
	PageID page.PageID
	Slot   primitives.SlotID
}

// NewRecordID creates a new RecordID
func NewRecordID(pageID page.PageID, slot primitives.SlotID) *RecordID {
	return &RecordID{
		PageID: pageID,
		Slot:   slot,
	}
}

func (rid *RecordID) Equals(other *RecordID) bool {
	if other == nil {
		return false
	}
	return rid.PageID == other.PageID && rid.Slot == other.Slot
}

func (rid *RecordID) String() string {
	return fmt.Sprintf("RecordID(page=%s, slot=%d)", rid.PageID.String(), rid.Slot)
}
