package main

import (
	"fmt"
	"strings"

	"clustore/pkg/debug/ui"
	"clustore/pkg/memory"
	"clustore/pkg/primitives"
	"clustore/pkg/storage/btree"
	"clustore/pkg/storage/page"
	"clustore/pkg/tuple"
	"clustore/pkg/types"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

type inspectKeyMap struct {
	ui.CommonKeyMap
	ui.NavigationKeyMap
}

var inspectKeys = inspectKeyMap{
	CommonKeyMap:     ui.CommonKeys,
	NavigationKeyMap: ui.NavigationKeys,
}

type view int

const (
	viewLoading view = iota
	viewPages
	viewDetail
)

type inspectModel struct {
	file *btree.File
	pool *memory.BufferPool

	view     view
	summary  *btree.FileSummary
	cursor   int
	viewport viewport.Model
	width    int
	height   int
	err      error
}

func newInspectModel(file *btree.File, pool *memory.BufferPool) inspectModel {
	return inspectModel{
		file:     file,
		pool:     pool,
		view:     viewLoading,
		viewport: viewport.New(80, 20),
	}
}

type summaryLoadedMsg struct {
	summary *btree.FileSummary
	err     error
}

func (m inspectModel) Init() tea.Cmd {
	return loadSummary(m.file, m.pool)
}

func loadSummary(file *btree.File, pool *memory.BufferPool) tea.Cmd {
	return func() tea.Msg {
		tx := pool.BeginTransaction()
		summary, err := file.Describe(tx)
		if cerr := pool.CommitTransaction(tx); err == nil {
			err = cerr
		}
		return summaryLoadedMsg{summary: summary, err: err}
	}
}

func (m inspectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case summaryLoadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.summary = msg.summary
		m.view = viewPages
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = max(msg.Width-4, 20)
		m.viewport.Height = max(msg.Height-10, 5)
		if m.view == viewDetail {
			m.viewport.SetContent(m.renderDetail())
		}
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, inspectKeys.Quit) {
			return m, tea.Quit
		}
		if m.err != nil || m.summary == nil {
			return m, nil
		}
		last := len(m.summary.Pages) - 1

		switch m.view {
		case viewPages:
			switch {
			case key.Matches(msg, inspectKeys.Up):
				m.cursor = max(m.cursor-1, 0)
			case key.Matches(msg, inspectKeys.Down):
				m.cursor = min(m.cursor+1, max(last, 0))
			case key.Matches(msg, inspectKeys.FirstPage):
				m.cursor = 0
			case key.Matches(msg, inspectKeys.LastPage):
				m.cursor = max(last, 0)
			case key.Matches(msg, inspectKeys.Select):
				if last >= 0 {
					m.view = viewDetail
					m.viewport.SetContent(m.renderDetail())
					m.viewport.GotoTop()
				}
			}
			return m, nil

		case viewDetail:
			switch {
			case key.Matches(msg, inspectKeys.Back):
				m.view = viewPages
				return m, nil
			case key.Matches(msg, inspectKeys.NextPage):
				if m.cursor < last {
					m.cursor++
					m.viewport.SetContent(m.renderDetail())
					m.viewport.GotoTop()
				}
				return m, nil
			case key.Matches(msg, inspectKeys.PrevPage):
				if m.cursor > 0 {
					m.cursor--
					m.viewport.SetContent(m.renderDetail())
					m.viewport.GotoTop()
				}
				return m, nil
			}
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m inspectModel) View() string {
	if m.err != nil {
		return ui.RenderError(m.err)
	}

	var b strings.Builder
	b.WriteString(ui.RenderTitle("Table Page Inspector") + "\n")

	switch m.view {
	case viewLoading:
		b.WriteString("Reading table file...\n")
	case viewPages:
		b.WriteString(m.renderPages())
	case viewDetail:
		b.WriteString(m.viewport.View() + "\n")
		b.WriteString(ui.HelpStyle.Render("↑/↓: scroll | n/p: next/prev page | esc: back | q: quit"))
	}

	b.WriteString("\n" + ui.RenderStatusBar(m.statusText()))
	return b.String()
}

func (m inspectModel) statusText() string {
	if m.summary == nil {
		return " Loading... "
	}
	s := m.summary
	status := fmt.Sprintf(" %d-byte pages | %d pages | root %d (%s) | headers from %d ",
		m.file.PageSize(), s.NumPages, s.Root, s.RootCategory, s.FirstHeader)
	if m.view == viewDetail && len(s.Pages) > 0 {
		status += fmt.Sprintf("| page %d/%d ", m.cursor+1, len(s.Pages))
	}
	return status
}

func (m inspectModel) renderPages() string {
	var b strings.Builder
	b.WriteString(ui.RenderHeaderWithCount("Pages", len(m.summary.Pages)) + "\n\n")

	if len(m.summary.Pages) == 0 {
		b.WriteString("The table file has no pages yet.\n")
		b.WriteString(ui.HelpStyle.Render("q: quit"))
		return b.String()
	}

	headers := []string{"page", "category", "depth", "parent", "prev", "next", "entries"}
	rows := make([][]string, 0, len(m.summary.Pages))
	for _, ps := range m.summary.Pages {
		rows = append(rows, pageRow(ps))
	}

	height := max(m.height-12, 10)
	start := max(0, min(m.cursor-height/2, len(rows)-height))
	end := min(len(rows), start+height)

	widths := ui.ColumnWidths(headers, rows, 20)
	b.WriteString(ui.RenderTable(headers, rows[start:end], widths, m.cursor-start))
	b.WriteString(ui.HelpStyle.Render("↑/↓: navigate | g/G: first/last | enter: open page | q: quit"))
	return b.String()
}

func (m inspectModel) renderDetail() string {
	if m.summary == nil || m.cursor >= len(m.summary.Pages) {
		return ""
	}
	return describePage(m.summary.Pages[m.cursor], m.file.TupleDesc(), m.file.KeyField())
}

func categoryName(c page.Category) string {
	if c == btree.UnreachableCategory {
		return "-"
	}
	return c.String()
}

func pageNo(n primitives.PageNumber) string {
	if n == primitives.InvalidPageNumber {
		return "-"
	}
	return fmt.Sprintf("%d", n)
}

// pageRow summarizes a page as one line of the page list.
func pageRow(ps btree.PageSummary) []string {
	var entries string
	switch ps.Category {
	case page.CategoryLeaf:
		entries = fmt.Sprintf("%d rows", len(ps.Rows))
	case page.CategoryInternal:
		entries = fmt.Sprintf("%d keys", len(ps.Keys))
	case page.CategoryHeader:
		entries = fmt.Sprintf("%d free slots", ps.FreeSlots)
	default:
		if ps.Free {
			entries = "free"
		} else {
			entries = "unreachable"
		}
	}

	depth := "-"
	if ps.Depth > 0 {
		depth = fmt.Sprintf("%d", ps.Depth)
	}
	return []string{
		fmt.Sprintf("%d", ps.PageNo),
		categoryName(ps.Category),
		depth,
		pageNo(ps.Parent),
		pageNo(ps.Prev),
		pageNo(ps.Next),
		entries,
	}
}

// describePage renders the full contents of one page.
func describePage(ps btree.PageSummary, td *tuple.TupleDescription, keyField int) string {
	var b strings.Builder
	b.WriteString(ui.RenderHeaderWithCount(fmt.Sprintf("Page %d: %s", ps.PageNo, categoryName(ps.Category)), -1) + "\n\n")

	switch ps.Category {
	case page.CategoryLeaf:
		b.WriteString(ui.RenderField("parent", pageNo(ps.Parent)) + "\n")
		b.WriteString(ui.RenderField("siblings", pageNo(ps.Prev)+" <-> "+pageNo(ps.Next)) + "\n\n")

		headers := make([]string, td.NumFields())
		for i := range headers {
			name, _ := td.GetFieldName(i)
			if name == "" {
				name = fmt.Sprintf("f%d", i)
			}
			if i == keyField {
				name += "*"
			}
			headers[i] = name
		}
		b.WriteString(ui.RenderTable(headers, rowCells(ps.Rows), ui.ColumnWidths(headers, rowCells(ps.Rows), 30), -1))

	case page.CategoryInternal:
		b.WriteString(ui.RenderField("parent", pageNo(ps.Parent)) + "\n\n")
		data := make([][]string, 0, len(ps.Children))
		for i, child := range ps.Children {
			sep := "-inf"
			if i > 0 {
				sep = formatField(ps.Keys[i-1])
			}
			data = append(data, []string{sep, fmt.Sprintf("%d", child)})
		}
		headers := []string{"from key", "child"}
		b.WriteString(ui.RenderTable(headers, data, ui.ColumnWidths(headers, data, 30), -1))

	case page.CategoryHeader:
		b.WriteString(ui.RenderField("prev", pageNo(ps.Prev)) + "\n")
		b.WriteString(ui.RenderField("next", pageNo(ps.Next)) + "\n")
		b.WriteString(ui.RenderField("free slots", ps.FreeSlots) + "\n")

	default:
		if ps.Free {
			b.WriteString(ui.SuccessStyle.Render("On the free list.") + "\n")
		} else {
			b.WriteString(ui.WarningStyle.Render("Not reachable from the tree or the free list.") + "\n")
		}
	}
	return b.String()
}

func rowCells(rows []*tuple.Tuple) [][]string {
	out := make([][]string, 0, len(rows))
	for _, row := range rows {
		cells := make([]string, row.TupleDesc.NumFields())
		for i := range cells {
			field, err := row.GetField(i)
			if err != nil {
				cells[i] = "ERROR"
				continue
			}
			cells[i] = formatField(field)
		}
		out = append(out, cells)
	}
	return out
}

func formatField(field types.Field) string {
	if field == nil {
		return "NULL"
	}
	switch f := field.(type) {
	case *types.IntField:
		return fmt.Sprintf("%d", f.Value)
	case *types.StringField:
		return strings.TrimSpace(f.Value)
	case *types.BoolField:
		return fmt.Sprintf("%t", f.Value)
	default:
		return field.String()
	}
}
