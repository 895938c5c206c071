package btree

import (
	"math/rand"
	"path/filepath"
	"testing"

	"clustore/pkg/concurrency/transaction"
	"clustore/pkg/iterator"
	"clustore/pkg/memory"
	"clustore/pkg/primitives"
	"clustore/pkg/tuple"
	"clustore/pkg/types"
)

// testPageSize gives leaves of 4 (int, int) rows and internal pages of 5
// keys, so small inserts exercise every split and merge path.
const testPageSize = 80

func testSchema(t *testing.T) *tuple.TupleDescription {
	t.Helper()
	td, err := tuple.NewTupleDesc([]types.Type{types.IntType, types.IntType}, []string{"id", "value"})
	if err != nil {
		t.Fatalf("NewTupleDesc: %v", err)
	}
	return td
}

func testConfig() Config {
	return Config{PageSize: testPageSize}
}

type testTable struct {
	t    *testing.T
	file *File
	pool *memory.BufferPool
	path primitives.Filepath
}

func newTestTable(t *testing.T, poolCfg memory.Config) *testTable {
	t.Helper()
	pool, err := memory.NewBufferPool(nil, poolCfg)
	if err != nil {
		t.Fatalf("NewBufferPool: %v", err)
	}
	path := primitives.Filepath(filepath.Join(t.TempDir(), "table.dat"))
	f, err := Open(path, testSchema(t), 0, pool, testConfig())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = pool.Close() })
	return &testTable{t: t, file: f, pool: pool, path: path}
}

func newDefaultTestTable(t *testing.T) *testTable {
	return newTestTable(t, memory.DefaultConfig())
}

func (tt *testTable) row(key int64) *tuple.Tuple {
	tt.t.Helper()
	row, err := tuple.NewBuilder(tt.file.TupleDesc()).AddInt(key).AddInt(key * 10).Build()
	if err != nil {
		tt.t.Fatalf("Build: %v", err)
	}
	return row
}

// inTx runs fn in a new transaction and commits it.
func (tt *testTable) inTx(fn func(tx *transaction.TransactionContext)) {
	tt.t.Helper()
	tx := tt.pool.BeginTransaction()
	fn(tx)
	if err := tt.pool.CommitTransaction(tx); err != nil {
		tt.t.Fatalf("CommitTransaction: %v", err)
	}
}

func (tt *testTable) insert(keys ...int64) {
	tt.t.Helper()
	tt.inTx(func(tx *transaction.TransactionContext) {
		for _, k := range keys {
			if err := tt.file.InsertRow(tx, tt.row(k)); err != nil {
				tt.t.Fatalf("InsertRow(%d): %v", k, err)
			}
		}
	})
}

func (tt *testTable) delete(keys ...int64) {
	tt.t.Helper()
	tt.inTx(func(tx *transaction.TransactionContext) {
		for _, k := range keys {
			if err := tt.file.DeleteRow(tx, tt.row(k)); err != nil {
				tt.t.Fatalf("DeleteRow(%d): %v", k, err)
			}
		}
	})
}

func (tt *testTable) check(opts CheckOptions) *IntegrityReport {
	tt.t.Helper()
	var report *IntegrityReport
	tt.inTx(func(tx *transaction.TransactionContext) {
		var err error
		if report, err = tt.file.CheckIntegrity(tx, opts); err != nil {
			tt.t.Fatalf("CheckIntegrity: %v", err)
		}
	})
	return report
}

// keys returns every key in iteration order.
func (tt *testTable) keys() []int64 {
	tt.t.Helper()
	var out []int64
	tt.inTx(func(tx *transaction.TransactionContext) {
		out = collectKeys(tt.t, tt.file.Iterator(tx))
	})
	return out
}

func collectKeys(t *testing.T, it iterator.DbFileIterator) []int64 {
	t.Helper()
	if err := it.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer it.Close()

	rows, err := iterator.Collect(it)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	keys := make([]int64, 0, len(rows))
	for _, row := range rows {
		keys = append(keys, intKey(t, row))
	}
	return keys
}

func intKey(t *testing.T, row *tuple.Tuple) int64 {
	t.Helper()
	f, err := row.GetField(0)
	if err != nil {
		t.Fatalf("GetField: %v", err)
	}
	return f.(*types.IntField).Value
}

func seq(from, to int64) []int64 {
	out := make([]int64, 0, to-from+1)
	for k := from; k <= to; k++ {
		out = append(out, k)
	}
	return out
}

func shuffled(r *rand.Rand, keys []int64) []int64 {
	out := append([]int64(nil), keys...)
	r.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

func equalKeys(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
