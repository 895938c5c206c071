package btree

import (
	"fmt"
	"math/rand"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"clustore/pkg/concurrency/transaction"
	"clustore/pkg/dberror"
	"clustore/pkg/iterator"
	"clustore/pkg/memory"
	"clustore/pkg/primitives"
	"clustore/pkg/storage/page"
	"clustore/pkg/tuple"
	"clustore/pkg/types"
)

func TestOpen_ConfigErrors(t *testing.T) {
	pool, err := memory.NewBufferPool(nil, memory.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	defer pool.Close()

	wide, _ := tuple.NewTupleDesc([]types.Type{types.StringType, types.StringType}, nil)

	tests := []struct {
		name     string
		td       *tuple.TupleDescription
		keyField int
		pageSize int
		code     string
	}{
		{"leaf holds one row", wide, 0, 600, dberror.CodePageSizeTooSmall},
		{"internal holds three keys", testSchema(t), 0, 50, dberror.CodePageSizeTooSmall},
		{"tiny page", testSchema(t), 0, 8, dberror.CodePageSizeTooSmall},
		{"key out of range", testSchema(t), 2, 4096, dberror.CodeInvalidSchema},
		{"no schema", nil, 0, 4096, dberror.CodeInvalidSchema},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := primitives.Filepath(filepath.Join(t.TempDir(), "t.dat"))
			_, err := Open(path, tt.td, tt.keyField, pool, Config{PageSize: tt.pageSize})
			if !dberror.HasCode(err, tt.code) {
				t.Fatalf("expected %s, got %v", tt.code, err)
			}
			if cat, _ := dberror.CategoryOf(err); cat != dberror.ErrCategoryConfig {
				t.Errorf("category = %s, want config", cat)
			}
			if path.Exists() {
				t.Error("file created despite configuration error")
			}
		})
	}
}

func TestFile_EmptyTable(t *testing.T) {
	tt := newDefaultTestTable(t)

	if keys := tt.keys(); len(keys) != 0 {
		t.Errorf("keys = %v, want none", keys)
	}
	if n, _ := tt.file.NumPages(); n != 0 {
		t.Errorf("read-only access created %d pages", n)
	}

	report := tt.check(CheckOptions{Occupancy: true})
	if report.Rows != 0 || !report.LivePages.IsEmpty() {
		t.Errorf("report = %+v", report)
	}
}

func TestFile_Scenario(t *testing.T) {
	tt := newDefaultTestTable(t)
	tt.insert(1, 2, 3, 4, 5)

	tt.inTx(func(tx *transaction.TransactionContext) {
		rootPtr, err := tt.file.getRootPtr(tx, transaction.ReadOnly)
		if err != nil {
			t.Fatal(err)
		}
		rootID, _ := rootPtr.RootID()
		if rootID.Category() != page.CategoryInternal {
			t.Fatalf("root is a %s page", rootID.Category())
		}

		root, err := tt.file.getInternal(tx, rootID.PageNo(), transaction.ReadOnly)
		if err != nil {
			t.Fatal(err)
		}
		if root.NumEntries() != 1 {
			t.Fatalf("root has %d keys, want 1", root.NumEntries())
		}
		if sep := root.children[1].Key.(*types.IntField).Value; sep != 3 {
			t.Errorf("separator = %d, want 3", sep)
		}

		left, err := tt.file.getLeaf(tx, root.children[0].Child, transaction.ReadOnly)
		if err != nil {
			t.Fatal(err)
		}
		right, err := tt.file.getLeaf(tx, root.children[1].Child, transaction.ReadOnly)
		if err != nil {
			t.Fatal(err)
		}
		if got := leafKeys(left); !equalKeys(got, []int64{1, 2}) {
			t.Errorf("left leaf = %v", got)
		}
		if got := leafKeys(right); !equalKeys(got, []int64{3, 4, 5}) {
			t.Errorf("right leaf = %v", got)
		}
		if left.ParentPage != rootID.PageNo() || right.ParentPage != rootID.PageNo() {
			t.Errorf("parents = %d, %d, want %d", left.ParentPage, right.ParentPage, rootID.PageNo())
		}
		if left.NextLeaf != right.pid.PageNo() || right.PrevLeaf != left.pid.PageNo() {
			t.Error("leaves are not linked")
		}
	})

	report := tt.check(CheckOptions{Occupancy: true})
	if report.Leaves != 2 || report.Internals != 1 || report.Height != 2 || report.Rows != 5 {
		t.Errorf("report = %+v", report)
	}
}

func TestFile_SplitCorrectness(t *testing.T) {
	for _, n := range []int{2, 4, 7} {
		// internal pages need at least 62 bytes for four keys
		pageSize := max(n*17+12, 62)
		t.Run(fmt.Sprintf("leaf capacity %d", n), func(t *testing.T) {
			pool, err := memory.NewBufferPool(nil, memory.DefaultConfig())
			if err != nil {
				t.Fatal(err)
			}
			defer pool.Close()
			path := primitives.Filepath(filepath.Join(t.TempDir(), "t.dat"))
			f, err := Open(path, testSchema(t), 0, pool, Config{PageSize: pageSize})
			if err != nil {
				t.Fatal(err)
			}
			if f.LeafCapacity() != n {
				t.Fatalf("leaf capacity = %d, want %d", f.LeafCapacity(), n)
			}
			tt := &testTable{t: t, file: f, pool: pool, path: path}
			tt.insert(seq(1, int64(n+1))...)

			report := tt.check(CheckOptions{Occupancy: true})
			if report.Leaves != 2 || report.Internals != 1 {
				t.Fatalf("report = %+v", report)
			}

			tt.inTx(func(tx *transaction.TransactionContext) {
				rootPtr, _ := f.getRootPtr(tx, transaction.ReadOnly)
				rootID, _ := rootPtr.RootID()
				root, err := f.getInternal(tx, rootID.PageNo(), transaction.ReadOnly)
				if err != nil {
					t.Fatal(err)
				}
				left, _ := f.getLeaf(tx, root.children[0].Child, transaction.ReadOnly)
				right, _ := f.getLeaf(tx, root.children[1].Child, transaction.ReadOnly)

				if d := left.NumRows() - right.NumRows(); d < -1 || d > 1 {
					t.Errorf("leaf counts %d and %d differ by more than one", left.NumRows(), right.NumRows())
				}
				if !root.children[1].Key.Equals(right.keyOf(right.FirstRow())) {
					t.Errorf("separator %s is not the right leaf's first key", root.children[1].Key)
				}
			})
		})
	}
}

func TestFile_DuplicateKey(t *testing.T) {
	tt := newDefaultTestTable(t)
	tt.insert(seq(1, 20)...)

	tx := tt.pool.BeginTransaction()
	err := tt.file.InsertRow(tx, tt.row(7))
	if !dberror.HasCode(err, dberror.CodeDuplicateKey) {
		t.Fatalf("expected DUPLICATE_KEY, got %v", err)
	}
	_ = tt.pool.AbortTransaction(tx)

	if keys := tt.keys(); !equalKeys(keys, seq(1, 20)) {
		t.Errorf("keys = %v", keys)
	}
}

func TestFile_DuplicateOfSeparator(t *testing.T) {
	tt := newDefaultTestTable(t)
	tt.insert(1, 2, 3, 4, 5)

	// 3 is the separator and lives first in the right leaf
	tx := tt.pool.BeginTransaction()
	if err := tt.file.InsertRow(tx, tt.row(3)); !dberror.HasCode(err, dberror.CodeDuplicateKey) {
		t.Fatalf("expected DUPLICATE_KEY, got %v", err)
	}
	_ = tt.pool.AbortTransaction(tx)

	// 3 stays the separator, so the reinsert must land in the right leaf
	tt.delete(3)
	tt.insert(3)
	if keys := tt.keys(); !equalKeys(keys, seq(1, 5)) {
		t.Errorf("keys = %v", keys)
	}
	tt.check(CheckOptions{Occupancy: true})
}

func TestFile_RowValidation(t *testing.T) {
	tt := newDefaultTestTable(t)
	tx := tt.pool.BeginTransaction()
	defer tt.pool.AbortTransaction(tx)

	other, _ := tuple.NewTupleDesc([]types.Type{types.IntType}, nil)
	short := tuple.NewTuple(other)
	_ = short.SetField(0, types.NewIntField(1))
	if err := tt.file.InsertRow(tx, short); !dberror.HasCode(err, dberror.CodeTypeMismatch) {
		t.Errorf("expected TYPE_MISMATCH, got %v", err)
	}

	partial := tuple.NewTuple(tt.file.TupleDesc())
	_ = partial.SetField(0, types.NewIntField(1))
	if err := tt.file.InsertRow(tx, partial); !dberror.HasCode(err, dberror.CodeTypeMismatch) {
		t.Errorf("expected TYPE_MISMATCH, got %v", err)
	}

	if err := tt.file.InsertRow(nil, tt.row(1)); !dberror.HasCode(err, dberror.CodeInvalidArgument) {
		t.Errorf("expected INVALID_ARGUMENT, got %v", err)
	}
}

func TestFile_RejectsOversizedStrings(t *testing.T) {
	pool, err := memory.NewBufferPool(nil, memory.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	defer pool.Close()

	td, err := tuple.NewTupleDesc([]types.Type{types.StringType, types.StringType}, []string{"name", "note"})
	if err != nil {
		t.Fatal(err)
	}
	path := primitives.Filepath(filepath.Join(t.TempDir(), "names.dat"))
	f, err := Open(path, td, 0, pool, DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}

	prefix := strings.Repeat("k", types.StringMaxSize)
	newRow := func(key, note string) *tuple.Tuple {
		return tuple.NewBuilder(td).
			AddField(&types.StringField{Value: key}).
			AddField(&types.StringField{Value: note}).
			MustBuild()
	}

	tx := pool.BeginTransaction()
	defer pool.AbortTransaction(tx)

	if err := f.InsertRow(tx, newRow(prefix, "fits")); err != nil {
		t.Fatalf("key of exactly %d bytes: %v", types.StringMaxSize, err)
	}

	tests := []struct {
		name string
		row  *tuple.Tuple
	}{
		{"long key sharing a stored prefix", newRow(prefix+"a", "x")},
		{"long non-key field", newRow("short", prefix+"b")},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if err := f.InsertRow(tx, tc.row); !dberror.HasCode(err, dberror.CodeInvalidArgument) {
				t.Errorf("expected INVALID_ARGUMENT, got %v", err)
			}
		})
	}

	it := f.IndexIterator(tx, IndexPredicate{Op: primitives.Equals, Value: &types.StringField{Value: prefix + "a"}})
	if err := it.Open(); !dberror.HasCode(err, dberror.CodeInvalidArgument) {
		t.Errorf("oversized predicate value: expected INVALID_ARGUMENT, got %v", err)
	}

	keys := 0
	all := f.Iterator(tx)
	if err := all.Open(); err != nil {
		t.Fatal(err)
	}
	defer all.Close()
	if keys, err = iterator.Count(all); err != nil || keys != 1 {
		t.Errorf("stored rows = %d, %v; want 1", keys, err)
	}
}

func TestFile_InsertSetsRecordID(t *testing.T) {
	tt := newDefaultTestTable(t)
	row := tt.row(42)
	tt.inTx(func(tx *transaction.TransactionContext) {
		if err := tt.file.InsertRow(tx, row); err != nil {
			t.Fatal(err)
		}
	})
	if row.RecordID == nil || row.RecordID.PageID.Category() != page.CategoryLeaf {
		t.Fatalf("record id = %v", row.RecordID)
	}

	tt.inTx(func(tx *transaction.TransactionContext) {
		it := tt.file.Iterator(tx)
		if err := it.Open(); err != nil {
			t.Fatal(err)
		}
		defer it.Close()
		got, err := it.Next()
		if err != nil {
			t.Fatal(err)
		}
		if !got.RecordID.Equals(row.RecordID) {
			t.Errorf("iterator record id %v, insert returned %v", got.RecordID, row.RecordID)
		}
	})
}

func TestFile_GlobalOrderRandomInserts(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	tt := newDefaultTestTable(t)

	want := seq(1, 300)
	for _, k := range shuffled(r, want) {
		tt.insert(k)
	}

	if keys := tt.keys(); !equalKeys(keys, want) {
		t.Fatalf("iteration order broken: %v", keys)
	}
	report := tt.check(CheckOptions{Occupancy: true})
	if report.Rows != len(want) {
		t.Errorf("rows = %d, want %d", report.Rows, len(want))
	}
	if report.Height < 3 {
		t.Errorf("height = %d, expected internal splits", report.Height)
	}
}

func TestFile_DescendingInserts(t *testing.T) {
	tt := newDefaultTestTable(t)
	for k := int64(120); k >= 1; k-- {
		tt.insert(k)
	}
	if keys := tt.keys(); !equalKeys(keys, seq(1, 120)) {
		t.Fatalf("keys = %v", keys)
	}
	tt.check(CheckOptions{Occupancy: true})
}

func TestFile_DeleteMergesAndCollapses(t *testing.T) {
	tt := newDefaultTestTable(t)
	tt.insert(seq(1, 100)...)
	before := tt.check(CheckOptions{Occupancy: true})
	if before.Height < 3 {
		t.Fatalf("height = %d, want at least 3", before.Height)
	}

	for k := int64(1); k <= 100; k++ {
		tt.delete(k)
		report := tt.check(CheckOptions{Occupancy: true})
		if report.Rows != int(100-k) {
			t.Fatalf("after deleting %d: rows = %d", k, report.Rows)
		}
	}

	report := tt.check(CheckOptions{Occupancy: true})
	if report.Internals != 0 || report.Leaves != 1 || report.Height != 1 {
		t.Errorf("tree did not collapse to a single leaf: %+v", report)
	}
	if report.FreePages.IsEmpty() {
		t.Error("merged pages were not returned to the free list")
	}
}

func TestFile_RandomDeletesKeepInvariants(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	tt := newDefaultTestTable(t)

	all := seq(1, 200)
	tt.insert(shuffled(r, all)...)

	live := make(map[int64]bool, len(all))
	for _, k := range all {
		live[k] = true
	}

	for i, k := range shuffled(r, all)[:150] {
		tt.delete(k)
		delete(live, k)
		if i%10 == 0 {
			tt.check(CheckOptions{Occupancy: true})
		}
	}

	var want []int64
	for _, k := range all {
		if live[k] {
			want = append(want, k)
		}
	}
	if keys := tt.keys(); !equalKeys(keys, want) {
		t.Fatalf("keys = %v, want %v", keys, want)
	}
	tt.check(CheckOptions{Occupancy: true})
}

func TestFile_StealFromSibling(t *testing.T) {
	tt := newDefaultTestTable(t)
	// {1,2} | {3,4,5}, then fill the right leaf: {1,2} | {3,4,5,6}
	tt.insert(1, 2, 3, 4, 5, 6)
	tt.delete(1)

	tt.inTx(func(tx *transaction.TransactionContext) {
		rootPtr, _ := tt.file.getRootPtr(tx, transaction.ReadOnly)
		rootID, _ := rootPtr.RootID()
		root, err := tt.file.getInternal(tx, rootID.PageNo(), transaction.ReadOnly)
		if err != nil {
			t.Fatal(err)
		}
		left, _ := tt.file.getLeaf(tx, root.children[0].Child, transaction.ReadOnly)
		right, _ := tt.file.getLeaf(tx, root.children[1].Child, transaction.ReadOnly)

		if got := leafKeys(left); !equalKeys(got, []int64{2, 3}) {
			t.Errorf("left = %v, want [2 3]", got)
		}
		if got := leafKeys(right); !equalKeys(got, []int64{4, 5, 6}) {
			t.Errorf("right = %v, want [4 5 6]", got)
		}
		if sep := root.children[1].Key.(*types.IntField).Value; sep != 4 {
			t.Errorf("separator = %d, want 4", sep)
		}
	})
	tt.check(CheckOptions{Occupancy: true})
}

func TestFile_DeleteNotFound(t *testing.T) {
	tt := newDefaultTestTable(t)
	tt.insert(1, 2, 3)

	tx := tt.pool.BeginTransaction()
	defer tt.pool.AbortTransaction(tx)
	err := tt.file.DeleteRow(tx, tt.row(9))
	if !dberror.HasCode(err, dberror.CodeRowNotFound) {
		t.Fatalf("expected ROW_NOT_FOUND, got %v", err)
	}
}

func TestFile_DeleteClearsRecordID(t *testing.T) {
	tt := newDefaultTestTable(t)
	row := tt.row(5)
	tt.inTx(func(tx *transaction.TransactionContext) {
		if err := tt.file.InsertRow(tx, row); err != nil {
			t.Fatal(err)
		}
		if err := tt.file.DeleteRow(tx, row); err != nil {
			t.Fatal(err)
		}
	})
	if row.RecordID != nil {
		t.Errorf("record id = %v after delete", row.RecordID)
	}
}

func TestFile_FreeListReuse(t *testing.T) {
	tt := newDefaultTestTable(t)
	tt.insert(seq(1, 100)...)
	grown, err := tt.file.NumPages()
	if err != nil {
		t.Fatal(err)
	}

	tt.delete(seq(1, 100)...)
	report := tt.check(CheckOptions{Occupancy: true})
	freed := report.FreePages.GetCardinality()
	if freed == 0 {
		t.Fatal("no pages freed")
	}

	tt.insert(seq(1, 100)...)
	after, err := tt.file.NumPages()
	if err != nil {
		t.Fatal(err)
	}
	// header pages may add a page or two; everything else must be reused
	if after > grown+2 {
		t.Errorf("file grew from %d to %d pages despite %d free pages", grown, after, freed)
	}
	tt.check(CheckOptions{Occupancy: true})
}

func TestFile_FreePageCreatesHeaders(t *testing.T) {
	tt := newDefaultTestTable(t)
	slots := tt.file.HeaderCapacity()

	tt.inTx(func(tx *transaction.TransactionContext) {
		// a page number covered by the third header page
		target := primitives.PageNumber(2*slots + 5)
		if err := tt.file.freePage(tx, target); err != nil {
			t.Fatal(err)
		}

		rootPtr, err := tt.file.getRootPtr(tx, transaction.ReadOnly)
		if err != nil {
			t.Fatal(err)
		}
		next := rootPtr.header
		var chain []*HeaderPage
		for next != primitives.InvalidPageNumber {
			hp, err := tt.file.getHeader(tx, next, transaction.ReadOnly)
			if err != nil {
				t.Fatal(err)
			}
			chain = append(chain, hp)
			next = hp.Next()
		}
		if len(chain) != 3 {
			t.Fatalf("header chain length = %d, want 3", len(chain))
		}
		for i, hp := range chain {
			free := hp.NumFree()
			if i < 2 && free != 0 {
				t.Errorf("header %d has %d free slots, want 0", i, free)
			}
			if i == 2 && (free != 1 || hp.IsSlotUsed(5)) {
				t.Errorf("last header: %d free, slot 5 used = %v", free, hp.IsSlotUsed(5))
			}
			if i > 0 && hp.Prev() != chain[i-1].pid.PageNo() {
				t.Errorf("header %d prev = %d", i, hp.Prev())
			}
		}
	})
}

func TestFile_AbortRestoresTree(t *testing.T) {
	tt := newDefaultTestTable(t)
	tt.insert(seq(1, 10)...)

	tx := tt.pool.BeginTransaction()
	for _, k := range seq(11, 60) {
		if err := tt.file.InsertRow(tx, tt.row(k)); err != nil {
			t.Fatal(err)
		}
	}
	for _, k := range seq(1, 5) {
		if err := tt.file.DeleteRow(tx, tt.row(k)); err != nil {
			t.Fatal(err)
		}
	}
	if err := tt.pool.AbortTransaction(tx); err != nil {
		t.Fatal(err)
	}

	if keys := tt.keys(); !equalKeys(keys, seq(1, 10)) {
		t.Fatalf("keys after abort = %v", keys)
	}
	tt.check(CheckOptions{})

	tt.insert(seq(11, 30)...)
	tt.check(CheckOptions{Occupancy: true})
}

func TestFile_AbortAfterReusingFreedPages(t *testing.T) {
	tt := newDefaultTestTable(t)
	tt.insert(seq(1, 5)...)

	tx := tt.pool.BeginTransaction()
	// merges the two leaves and collapses the root, freeing two pages
	for _, k := range []int64{1, 2} {
		if err := tt.file.DeleteRow(tx, tt.row(k)); err != nil {
			t.Fatal(err)
		}
	}
	// splits the leaf and grows a new root
	for _, k := range []int64{10, 11, 12} {
		if err := tt.file.InsertRow(tx, tt.row(k)); err != nil {
			t.Fatal(err)
		}
	}
	if err := tt.pool.AbortTransaction(tx); err != nil {
		t.Fatal(err)
	}

	if keys := tt.keys(); !equalKeys(keys, seq(1, 5)) {
		t.Fatalf("keys after abort = %v", keys)
	}
	tt.check(CheckOptions{Occupancy: true})

	tt.delete(1, 2)
	tt.insert(10, 11, 12)
	if keys := tt.keys(); !equalKeys(keys, []int64{3, 4, 5, 10, 11, 12}) {
		t.Fatalf("keys = %v", keys)
	}
	tt.check(CheckOptions{Occupancy: true})
}

func TestFile_RandomAbortsKeepCommittedRows(t *testing.T) {
	tt := newDefaultTestTable(t)
	r := rand.New(rand.NewSource(11))
	committed := make(map[int64]bool)

	for op := 0; op < 150; op++ {
		pending := make(map[int64]bool, len(committed))
		for k := range committed {
			pending[k] = true
		}

		tx := tt.pool.BeginTransaction()
		for i := 0; i < 1+r.Intn(8); i++ {
			k := int64(r.Intn(120))
			var err error
			if pending[k] {
				err = tt.file.DeleteRow(tx, tt.row(k))
				delete(pending, k)
			} else {
				err = tt.file.InsertRow(tx, tt.row(k))
				pending[k] = true
			}
			if err != nil {
				t.Fatalf("op %d key %d: %v", op, k, err)
			}
		}

		if r.Intn(10) < 3 {
			if err := tt.pool.AbortTransaction(tx); err != nil {
				t.Fatal(err)
			}
		} else {
			if err := tt.pool.CommitTransaction(tx); err != nil {
				t.Fatal(err)
			}
			committed = pending
		}

		want := make([]int64, 0, len(committed))
		for k := range committed {
			want = append(want, k)
		}
		slices.Sort(want)
		if keys := tt.keys(); !equalKeys(keys, want) {
			t.Fatalf("op %d: got %d keys, want %d", op, len(keys), len(want))
		}
	}
	tt.check(CheckOptions{Occupancy: true})
}

func TestFile_Persistence(t *testing.T) {
	tt := newDefaultTestTable(t)
	r := rand.New(rand.NewSource(3))
	tt.insert(shuffled(r, seq(1, 80))...)
	tt.delete(seq(20, 40)...)
	if err := tt.pool.Close(); err != nil {
		t.Fatal(err)
	}

	pool, err := memory.NewBufferPool(nil, memory.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	defer pool.Close()
	f, err := Open(tt.path, testSchema(t), 0, pool, testConfig())
	if err != nil {
		t.Fatal(err)
	}
	reopened := &testTable{t: t, file: f, pool: pool, path: tt.path}

	want := append(seq(1, 19), seq(41, 80)...)
	if keys := reopened.keys(); !equalKeys(keys, want) {
		t.Fatalf("keys after reopen = %v", keys)
	}
	reopened.check(CheckOptions{Occupancy: true})
}

func TestFile_SmallPoolEvicts(t *testing.T) {
	cfg := memory.DefaultConfig()
	cfg.Capacity = 24
	tt := newTestTable(t, cfg)

	for _, k := range seq(1, 200) {
		tt.insert(k)
	}
	if keys := tt.keys(); !equalKeys(keys, seq(1, 200)) {
		t.Fatal("keys lost across evictions")
	}
	if tt.pool.Stats().Evictions == 0 {
		t.Error("expected evictions with a 24 page pool")
	}
	tt.check(CheckOptions{Occupancy: true})
}

func TestFile_ReadPageShortRead(t *testing.T) {
	tt := newDefaultTestTable(t)
	tt.insert(1)

	_, err := tt.file.ReadPage(page.NewPageID(tt.file.GetID(), 50, page.CategoryLeaf))
	if !dberror.HasCode(err, dberror.CodeShortRead) {
		t.Fatalf("expected SHORT_READ, got %v", err)
	}
}
