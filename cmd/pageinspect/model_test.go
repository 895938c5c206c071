package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"clustore/pkg/memory"
	"clustore/pkg/primitives"
	"clustore/pkg/storage/btree"
	"clustore/pkg/storage/page"
	"clustore/pkg/tuple"
	"clustore/pkg/types"

	tea "github.com/charmbracelet/bubbletea"
)

func TestPageRow(t *testing.T) {
	tests := []struct {
		name string
		ps   btree.PageSummary
		want []string
	}{
		{
			name: "internal root",
			ps: btree.PageSummary{PageNo: 3, Category: page.CategoryInternal, Depth: 1,
				Keys: []types.Field{types.NewIntField(5)}, Children: []primitives.PageNumber{1, 2}},
			want: []string{"3", "INTERNAL", "1", "-", "-", "-", "1 keys"},
		},
		{
			name: "header",
			ps:   btree.PageSummary{PageNo: 4, Category: page.CategoryHeader, FreeSlots: 2, Next: 9},
			want: []string{"4", "HEADER", "-", "-", "-", "9", "2 free slots"},
		},
		{
			name: "free",
			ps:   btree.PageSummary{PageNo: 5, Category: btree.UnreachableCategory, Free: true},
			want: []string{"5", "-", "-", "-", "-", "-", "free"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := pageRow(tt.ps)
			if strings.Join(got, "|") != strings.Join(tt.want, "|") {
				t.Errorf("pageRow = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestInspectModel(t *testing.T) {
	pool, err := memory.NewBufferPool(nil, memory.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	defer pool.Close()

	td, err := tuple.ParseSchema("int,string")
	if err != nil {
		t.Fatal(err)
	}
	path := primitives.Filepath(filepath.Join(t.TempDir(), "t.dat"))
	file, err := btree.Open(path, td, 0, pool, btree.Config{PageSize: 1024})
	if err != nil {
		t.Fatal(err)
	}

	tx := pool.BeginTransaction()
	for k := int64(1); k <= 10; k++ {
		row := newRow(t, td, k)
		if err := file.InsertRow(tx, row); err != nil {
			t.Fatal(err)
		}
	}
	if err := pool.CommitTransaction(tx); err != nil {
		t.Fatal(err)
	}

	m := newInspectModel(file, pool)
	msg := m.Init()()
	next, _ := m.Update(msg)
	m = next.(inspectModel)
	if m.view != viewPages || m.summary == nil {
		t.Fatalf("view = %v, err = %v", m.view, m.err)
	}
	if !strings.Contains(m.View(), "LEAF") {
		t.Error("page list does not show any leaf")
	}

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(inspectModel)
	if m.view != viewDetail {
		t.Fatalf("enter did not open the page, view = %v", m.view)
	}
	if !strings.Contains(m.renderDetail(), "row-1") {
		t.Error("detail view does not show the stored rows")
	}

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if next.(inspectModel).view != viewPages {
		t.Error("esc did not return to the page list")
	}
}

func newRow(t *testing.T, td *tuple.TupleDescription, k int64) *tuple.Tuple {
	t.Helper()
	row, err := tuple.NewBuilder(td).AddInt(k).AddString(fmt.Sprintf("row-%d", k)).Build()
	if err != nil {
		t.Fatal(err)
	}
	return row
}
