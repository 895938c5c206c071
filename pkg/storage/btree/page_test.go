package btree

import (
	"bytes"
	"testing"

	"clustore/pkg/primitives"
	"clustore/pkg/storage/page"
	"clustore/pkg/tuple"
	"clustore/pkg/types"
)

const testTableID primitives.TableID = 7

func testLayout(t *testing.T) *layout {
	t.Helper()
	l, err := newLayout(testPageSize, testSchema(t), 0)
	if err != nil {
		t.Fatalf("newLayout: %v", err)
	}
	return l
}

func testRow(t *testing.T, l *layout, key int64) *tuple.Tuple {
	t.Helper()
	row := tuple.NewTuple(l.td)
	_ = row.SetField(0, types.NewIntField(key))
	_ = row.SetField(1, types.NewIntField(-key))
	return row
}

func leafKeys(lp *LeafPage) []int64 {
	var keys []int64
	for _, row := range lp.Rows() {
		keys = append(keys, lp.keyOf(row).(*types.IntField).Value)
	}
	return keys
}

func TestLayout_Capacities(t *testing.T) {
	l := testLayout(t)
	if l.leafSlots != 4 {
		t.Errorf("leaf slots = %d, want 4", l.leafSlots)
	}
	if l.internalSlots != 5 {
		t.Errorf("internal slots = %d, want 5", l.internalSlots)
	}
	if l.headerSlots != (testPageSize-8)*8 {
		t.Errorf("header slots = %d, want %d", l.headerSlots, (testPageSize-8)*8)
	}
	if l.minLeafRows() != 2 || l.minInternalKeys() != 2 {
		t.Errorf("minimums = %d/%d, want 2/2", l.minLeafRows(), l.minInternalKeys())
	}
}

func TestRootPointerPage_RoundTrip(t *testing.T) {
	rp := NewRootPointerPage(testTableID)
	if _, ok := rp.RootID(); ok {
		t.Fatal("new root pointer should name no root")
	}

	if err := rp.SetRootID(page.NewPageID(testTableID, 12, page.CategoryInternal)); err != nil {
		t.Fatalf("SetRootID: %v", err)
	}
	rp.SetHeaderPageNo(3)

	data := rp.GetPageData()
	if len(data) != RootPtrSize {
		t.Fatalf("serialized size = %d, want %d", len(data), RootPtrSize)
	}

	parsed, err := parseRootPointerPage(testTableID, data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	root, ok := parsed.RootID()
	if !ok || root.PageNo() != 12 || root.Category() != page.CategoryInternal {
		t.Errorf("root = %v, %v", root, ok)
	}
	header, ok := parsed.HeaderID()
	if !ok || header.PageNo() != 3 {
		t.Errorf("header = %v, %v", header, ok)
	}
	if !bytes.Equal(parsed.GetPageData(), data) {
		t.Error("re-serialized image differs")
	}
}

func TestRootPointerPage_RejectsBadRoot(t *testing.T) {
	rp := NewRootPointerPage(testTableID)
	if err := rp.SetRootID(page.NewPageID(testTableID, 1, page.CategoryHeader)); err == nil {
		t.Error("header page accepted as root")
	}

	data := []byte{0, 0, 0, 5, byte(page.CategoryHeader), 0, 0, 0, 0}
	if _, err := parseRootPointerPage(testTableID, data); err == nil {
		t.Error("parsed a root pointer naming a header page")
	}
}

func TestHeaderPage_Bits(t *testing.T) {
	hp := NewHeaderPage(page.NewPageID(testTableID, 4, page.CategoryHeader), testPageSize)
	if hp.NumSlots() != (testPageSize-8)*8 {
		t.Fatalf("slots = %d", hp.NumSlots())
	}
	if hp.FirstFreeSlot() != 0 {
		t.Errorf("first free = %d, want 0", hp.FirstFreeSlot())
	}

	hp.MarkAllUsed()
	if hp.FirstFreeSlot() != -1 || hp.NumFree() != 0 {
		t.Errorf("after MarkAllUsed: first free %d, free %d", hp.FirstFreeSlot(), hp.NumFree())
	}

	hp.MarkSlotUsed(13, false)
	hp.MarkSlotUsed(200, false)
	if hp.FirstFreeSlot() != 13 {
		t.Errorf("first free = %d, want 13", hp.FirstFreeSlot())
	}
	if hp.NumFree() != 2 {
		t.Errorf("free = %d, want 2", hp.NumFree())
	}

	// LSB-first within each byte
	if data := hp.GetPageData(); data[1] != 0xff&^(1<<5) {
		t.Errorf("byte 1 = %08b", data[1])
	}
}

func TestHeaderPage_FirstReusableSlot(t *testing.T) {
	hp := NewHeaderPage(page.NewPageID(testTableID, 4, page.CategoryHeader), testPageSize)
	hp.MarkAllUsed()
	hp.MarkSlotUsed(9, false)
	hp.SetBeforeImage()

	// freed after the before image was taken
	hp.MarkSlotUsed(3, false)
	if got := hp.FirstFreeSlot(); got != 3 {
		t.Errorf("first free = %d, want 3", got)
	}
	if got := hp.FirstReusableSlot(); got != 9 {
		t.Errorf("first reusable = %d, want 9", got)
	}

	hp.MarkSlotUsed(9, true)
	if got := hp.FirstReusableSlot(); got != -1 {
		t.Errorf("first reusable = %d, want -1", got)
	}

	hp.SetBeforeImage()
	if got := hp.FirstReusableSlot(); got != 3 {
		t.Errorf("after SetBeforeImage: first reusable = %d, want 3", got)
	}
}

func TestHeaderPage_RoundTrip(t *testing.T) {
	pid := page.NewPageID(testTableID, 4, page.CategoryHeader)
	hp := NewHeaderPage(pid, testPageSize)
	hp.MarkAllUsed()
	hp.MarkSlotUsed(9, false)
	hp.SetNext(11)
	hp.SetPrev(2)

	parsed, err := parseHeaderPage(pid, hp.GetPageData())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed.Next() != 11 || parsed.Prev() != 2 {
		t.Errorf("links = %d/%d", parsed.Next(), parsed.Prev())
	}
	if parsed.IsSlotUsed(9) || !parsed.IsSlotUsed(8) {
		t.Error("slot bits not preserved")
	}
	if !bytes.Equal(parsed.GetPageData(), hp.GetPageData()) {
		t.Error("re-serialized image differs")
	}
}

func TestLeafPage_RoundTrip(t *testing.T) {
	l := testLayout(t)
	pid := page.NewPageID(testTableID, 3, page.CategoryLeaf)

	tests := []struct {
		name string
		keys []int64
	}{
		{"empty", nil},
		{"partial", []int64{5, 1}},
		{"full", []int64{40, 10, 30, 20}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lp := NewLeafPage(pid, l, 9)
			lp.PrevLeaf, lp.NextLeaf = 2, 4
			for _, k := range tt.keys {
				if err := lp.InsertRow(testRow(t, l, k)); err != nil {
					t.Fatalf("InsertRow(%d): %v", k, err)
				}
			}

			data := lp.GetPageData()
			if len(data) != testPageSize {
				t.Fatalf("size = %d", len(data))
			}

			parsed, err := parseLeafPage(pid, l, data)
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if parsed.ParentPage != 9 || parsed.PrevLeaf != 2 || parsed.NextLeaf != 4 {
				t.Errorf("pointers = %d/%d/%d", parsed.ParentPage, parsed.PrevLeaf, parsed.NextLeaf)
			}
			if parsed.NumRows() != len(tt.keys) {
				t.Errorf("rows = %d, want %d", parsed.NumRows(), len(tt.keys))
			}
			if !equalKeys(leafKeys(parsed), leafKeys(lp)) {
				t.Errorf("keys = %v, want %v", leafKeys(parsed), leafKeys(lp))
			}
			for i, row := range parsed.slots {
				if row != nil && (row.RecordID == nil || int(row.RecordID.Slot) != i || row.RecordID.PageID != pid) {
					t.Errorf("slot %d has record id %v", i, row.RecordID)
				}
			}
			if !bytes.Equal(parsed.GetPageData(), data) {
				t.Error("re-serialized image differs")
			}
		})
	}
}

func TestLeafPage_InsertKeepsOrderAcrossGaps(t *testing.T) {
	l := testLayout(t)
	lp := NewLeafPage(page.NewPageID(testTableID, 3, page.CategoryLeaf), l, 0)

	for _, k := range []int64{10, 20, 30, 40} {
		if err := lp.InsertRow(testRow(t, l, k)); err != nil {
			t.Fatal(err)
		}
	}
	if !lp.IsFull() {
		t.Fatal("page should be full")
	}
	if err := lp.InsertRow(testRow(t, l, 50)); err == nil {
		t.Error("insert into a full page succeeded")
	}

	// open a hole at the front and one at the back, then fill each from the
	// opposite side so rows have to shift
	for _, slot := range []int{0, 3} {
		if err := lp.DeleteRow(lp.slots[slot]); err != nil {
			t.Fatal(err)
		}
	}
	if lp.IsSlotUsed(0) || !lp.IsSlotUsed(1) {
		t.Fatal("delete must clear in place")
	}

	if err := lp.InsertRow(testRow(t, l, 35)); err != nil {
		t.Fatal(err)
	}
	if err := lp.InsertRow(testRow(t, l, 15)); err != nil {
		t.Fatal(err)
	}

	if got := leafKeys(lp); !equalKeys(got, []int64{15, 20, 30, 35}) {
		t.Errorf("keys = %v", got)
	}
	if sorted, err := lp.isSorted(); err != nil || !sorted {
		t.Errorf("slots not sorted: %v", err)
	}
	for i, row := range lp.slots {
		if row.RecordID == nil || int(row.RecordID.Slot) != i {
			t.Errorf("slot %d has record id %v after shift", i, row.RecordID)
		}
	}
}

func TestLeafPage_DeleteRejectsForeignRow(t *testing.T) {
	l := testLayout(t)
	lp := NewLeafPage(page.NewPageID(testTableID, 3, page.CategoryLeaf), l, 0)
	row := testRow(t, l, 1)
	if err := lp.InsertRow(row); err != nil {
		t.Fatal(err)
	}

	other := testRow(t, l, 1)
	other.RecordID = tuple.NewRecordID(page.NewPageID(testTableID, 4, page.CategoryLeaf), 0)
	if err := lp.DeleteRow(other); err == nil {
		t.Error("deleted a row through another page's record id")
	}

	stored := lp.FirstRow()
	if err := lp.DeleteRow(stored); err != nil {
		t.Fatal(err)
	}
	if stored.RecordID != nil {
		t.Error("record id not cleared by delete")
	}
	if err := lp.DeleteRow(testRow(t, l, 1)); err == nil {
		t.Error("deleted a row with no record id")
	}
}

func TestInternalPage_RoundTrip(t *testing.T) {
	l := testLayout(t)
	pid := page.NewPageID(testTableID, 6, page.CategoryInternal)

	tests := []struct {
		name string
		keys []int64
	}{
		{"empty", nil},
		{"one entry", []int64{100}},
		{"full", []int64{100, 200, 300, 400, 500}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ip := NewInternalPage(pid, l, 2)
			ip.SetChildCategory(page.CategoryInternal)
			left := primitives.PageNumber(20)
			for i, k := range tt.keys {
				right := primitives.PageNumber(21 + i)
				if err := ip.InsertEntry(types.NewIntField(k), left, right); err != nil {
					t.Fatalf("InsertEntry(%d): %v", k, err)
				}
				left = right
			}

			data := ip.GetPageData()
			parsed, err := parseInternalPage(pid, l, data)
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if parsed.ParentPage != 2 {
				t.Errorf("parent = %d", parsed.ParentPage)
			}
			if parsed.NumEntries() != len(tt.keys) {
				t.Fatalf("entries = %d, want %d", parsed.NumEntries(), len(tt.keys))
			}
			if len(tt.keys) > 0 && parsed.ChildCategory() != page.CategoryInternal {
				t.Errorf("child category = %s", parsed.ChildCategory())
			}
			for i, c := range parsed.Children() {
				if c.Child != ip.children[i].Child {
					t.Errorf("child %d = %d, want %d", i, c.Child, ip.children[i].Child)
				}
				if i > 0 && !c.Key.Equals(ip.children[i].Key) {
					t.Errorf("key %d = %s, want %s", i, c.Key, ip.children[i].Key)
				}
			}
			if !bytes.Equal(parsed.GetPageData(), data) {
				t.Error("re-serialized image differs")
			}
		})
	}
}

func TestInternalPage_ParseToleratesGaps(t *testing.T) {
	l := testLayout(t)
	pid := page.NewPageID(testTableID, 6, page.CategoryInternal)
	ip := NewInternalPage(pid, l, 0)
	_ = ip.InsertEntry(types.NewIntField(10), 1, 2)
	_ = ip.InsertEntry(types.NewIntField(20), 2, 3)
	data := ip.GetPageData()

	// move slot 1 (key 10, child 2) to slot 3 and clear slot 0's bit,
	// leaving the first used slot to supply only a child
	m := l.internalSlots
	keys := m + 1 + internalPointerBytes
	children := keys + m*l.keySize
	copy(data[keys+2*l.keySize:keys+3*l.keySize], data[keys:keys+l.keySize])
	copy(data[children+4*3:children+4*4], data[children+4:children+8])
	data[1], data[3] = 0, 1
	data[0] = 0

	parsed, err := parseInternalPage(pid, l, data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	// used slots are now 2 (key 20, child 3) and 3 (key 10, child 2):
	// slot 2 provides the first child only
	if parsed.NumEntries() != 1 {
		t.Fatalf("entries = %d, want 1", parsed.NumEntries())
	}
	if parsed.children[0].Child != 3 || parsed.children[1].Child != 2 {
		t.Errorf("children = %d, %d", parsed.children[0].Child, parsed.children[1].Child)
	}
}

func TestInternalPage_DeleteEntries(t *testing.T) {
	l := testLayout(t)
	ip := NewInternalPage(page.NewPageID(testTableID, 6, page.CategoryInternal), l, 0)
	for i, k := range []int64{10, 20, 30} {
		if err := ip.InsertEntry(types.NewIntField(k), primitives.PageNumber(i+1), primitives.PageNumber(i+2)); err != nil {
			t.Fatal(err)
		}
	}
	// children 1 |10| 2 |20| 3 |30| 4

	ip.deleteKeyAndRightChild(2) // drop 20 and child 3
	ip.deleteKeyAndLeftChild(1)  // drop 10 and child 1

	if ip.NumEntries() != 1 {
		t.Fatalf("entries = %d", ip.NumEntries())
	}
	if ip.children[0].Child != 2 || ip.children[0].Key != nil {
		t.Errorf("first child = %+v", ip.children[0])
	}
	if ip.children[1].Child != 4 || ip.children[1].Key.(*types.IntField).Value != 30 {
		t.Errorf("second child = %+v", ip.children[1])
	}
}

func TestInternalPage_InsertEntryChecksOrder(t *testing.T) {
	l := testLayout(t)
	ip := NewInternalPage(page.NewPageID(testTableID, 6, page.CategoryInternal), l, 0)
	_ = ip.InsertEntry(types.NewIntField(10), 1, 2)
	_ = ip.InsertEntry(types.NewIntField(20), 2, 3)

	if err := ip.InsertEntry(types.NewIntField(5), 2, 9); err == nil {
		t.Error("accepted a key below its left separator")
	}
	if err := ip.InsertEntry(types.NewIntField(15), 42, 9); err == nil {
		t.Error("accepted an entry for an unknown child")
	}
	if err := ip.InsertEntry(types.NewIntField(15), 2, 9); err != nil {
		t.Errorf("InsertEntry: %v", err)
	}
}

func TestBeforeImage(t *testing.T) {
	l := testLayout(t)
	lp := NewLeafPage(page.NewPageID(testTableID, 3, page.CategoryLeaf), l, 0)
	_ = lp.InsertRow(testRow(t, l, 1))
	lp.SetBeforeImage()
	_ = lp.InsertRow(testRow(t, l, 2))

	before := lp.GetBeforeImage().(*LeafPage)
	if got := leafKeys(before); !equalKeys(got, []int64{1}) {
		t.Errorf("before image keys = %v", got)
	}
	if got := leafKeys(lp); !equalKeys(got, []int64{1, 2}) {
		t.Errorf("current keys = %v", got)
	}
}
