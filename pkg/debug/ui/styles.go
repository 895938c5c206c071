// Package ui holds the lipgloss styles, key bindings and table rendering
// shared by the terminal inspection tools.
package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"
)

var (
	accent = lipgloss.AdaptiveColor{Light: "#5A56E0", Dark: "#7C3AED"}
	info   = lipgloss.AdaptiveColor{Light: "#EE6FF8", Dark: "#06B6D4"}
	good   = lipgloss.AdaptiveColor{Light: "#02BA84", Dark: "#10B981"}
	warn   = lipgloss.AdaptiveColor{Light: "#FF8C00", Dark: "#F59E0B"}
	bad    = lipgloss.AdaptiveColor{Light: "#FF5F56", Dark: "#EF4444"}
	muted  = lipgloss.AdaptiveColor{Light: "#9B9B9B", Dark: "#94A3B8"}
	text   = lipgloss.AdaptiveColor{Light: "#1E1E2E", Dark: "#CDD6F4"}
	white  = lipgloss.Color("#FFFFFF")
)

// Exported styles used directly by tools.
var (
	HelpStyle    = lipgloss.NewStyle().Foreground(muted).MarginTop(1).Padding(0, 1)
	WarningStyle = lipgloss.NewStyle().Foreground(warn).Bold(true).Padding(0, 1)
	SuccessStyle = lipgloss.NewStyle().Foreground(good).Bold(true).Padding(0, 1)
)

var (
	titleStyle  = lipgloss.NewStyle().Foreground(accent).Bold(true).Padding(0, 1).MarginBottom(1)
	statusStyle = lipgloss.NewStyle().Foreground(white).Background(accent).Padding(0, 1).MarginTop(1)
	errorStyle  = lipgloss.NewStyle().Foreground(bad).Bold(true).Padding(1)
	labelStyle  = lipgloss.NewStyle().Foreground(info).Bold(true)
	valueStyle  = lipgloss.NewStyle().Foreground(text)
	cellStyle   = lipgloss.NewStyle().Foreground(text).Padding(0, 1)
	ruleStyle   = lipgloss.NewStyle().Foreground(muted)

	headerStyle = lipgloss.NewStyle().
			Foreground(info).
			Bold(true).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(accent).
			Padding(0, 1)

	columnStyle   = lipgloss.NewStyle().Foreground(white).Background(info).Bold(true).Padding(0, 1)
	selectedStyle = lipgloss.NewStyle().Foreground(white).Background(accent).Bold(true).Padding(0, 1)
)

func binding(help, desc string, keys ...string) key.Binding {
	return key.NewBinding(key.WithKeys(keys...), key.WithHelp(help, desc))
}

// CommonKeyMap covers list movement, selection and exit.
type CommonKeyMap struct {
	Up, Down, Select, Back, Quit key.Binding
}

var CommonKeys = CommonKeyMap{
	Up:     binding("↑/k", "move up", "up", "k"),
	Down:   binding("↓/j", "move down", "down", "j"),
	Select: binding("enter", "select", "enter", " "),
	Back:   binding("esc", "back", "esc", "backspace"),
	Quit:   binding("q", "quit", "q", "ctrl+c"),
}

// NavigationKeyMap moves between pages of the inspected file.
type NavigationKeyMap struct {
	NextPage, PrevPage, FirstPage, LastPage key.Binding
}

var NavigationKeys = NavigationKeyMap{
	NextPage:  binding("n/pgdn", "next page", "n", "pgdown"),
	PrevPage:  binding("p/pgup", "prev page", "p", "pgup"),
	FirstPage: binding("g/home", "first page", "g", "home"),
	LastPage:  binding("G/end", "last page", "G", "end"),
}

// fit truncates s to width, ending in "...", then right-pads it with spaces.
func fit(s string, width int) string {
	if len(s) > width {
		if width < 3 {
			s = s[:width]
		} else {
			s = s[:width-3] + "..."
		}
	}
	return s + strings.Repeat(" ", width-len(s))
}

func RenderError(err error) string {
	return errorStyle.Render("Error: " + err.Error() + "\n\nPress q to quit.")
}

func RenderStatusBar(s string) string { return statusStyle.Render(s) }

func RenderTitle(s string) string { return titleStyle.Render(s) }

// RenderHeaderWithCount renders a boxed header. A negative count is omitted.
func RenderHeaderWithCount(s string, count int) string {
	if count < 0 {
		return headerStyle.Render(" " + s + " ")
	}
	return headerStyle.Render(fmt.Sprintf(" %s (%d) ", s, count))
}

// RenderField renders "label: value".
func RenderField(label string, value any) string {
	return labelStyle.Render(label+":") + " " + valueStyle.Render(fmt.Sprint(value))
}

// RenderTable lays out rows under headers using widths, highlighting the
// selected row (-1 for none).
func RenderTable(headers []string, rows [][]string, widths []int, selected int) string {
	line := func(cells []string, style lipgloss.Style) string {
		out := make([]string, len(cells))
		for i, c := range cells {
			out[i] = style.Render(fit(c, widths[i]))
		}
		return strings.Join(out, " ")
	}

	rule := make([]string, len(widths))
	for i, w := range widths {
		rule[i] = strings.Repeat("─", w+2)
	}

	var b strings.Builder
	b.WriteString(line(headers, columnStyle) + "\n")
	b.WriteString(ruleStyle.Render(strings.Join(rule, "┼")) + "\n")
	for i, r := range rows {
		style := cellStyle
		if i == selected {
			style = selectedStyle
		}
		b.WriteString(line(r, style) + "\n")
	}
	return b.String()
}

// ColumnWidths sizes each column to its widest cell or header, capped at
// limit.
func ColumnWidths(headers []string, rows [][]string, limit int) []int {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = min(len(h), limit)
	}
	for _, r := range rows {
		for i := 0; i < len(r) && i < len(widths); i++ {
			widths[i] = min(max(widths[i], len(r[i])), limit)
		}
	}
	return widths
}
