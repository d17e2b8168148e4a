package report

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

// table is a bordered text table. The first column is left-aligned and the
// rest are right-aligned.
type table struct {
	title   string
	headers []string
	rows    [][]string
}

type tableStyles struct {
	title  lipgloss.Style
	header lipgloss.Style
	border lipgloss.Style
	label  lipgloss.Style
}

func (t table) render(s tableStyles) string {
	cols := len(t.headers)
	if cols == 0 {
		return ""
	}
	widths := make([]int, cols)
	for i, h := range t.headers {
		widths[i] = runewidth.StringWidth(h)
	}
	for _, row := range t.rows {
		for i := 0; i < cols && i < len(row); i++ {
			widths[i] = max(widths[i], runewidth.StringWidth(row[i]))
		}
	}

	var b strings.Builder
	if t.title != "" {
		b.WriteString(s.title.Render(t.title))
		b.WriteString("\n")
	}
	b.WriteString(t.rule(s, widths, "╭", "┬", "╮"))

	b.WriteString(s.border.Render("│"))
	for i, h := range t.headers {
		b.WriteString(s.header.Render(" " + runewidth.FillRight(h, widths[i]) + " "))
		b.WriteString(s.border.Render("│"))
	}
	b.WriteString("\n")
	b.WriteString(t.rule(s, widths, "├", "┼", "┤"))

	for _, row := range t.rows {
		b.WriteString(s.border.Render("│"))
		for i := 0; i < cols; i++ {
			var cell string
			if i < len(row) {
				cell = row[i]
			}
			if i == 0 {
				b.WriteString(s.label.Render(" " + runewidth.FillRight(cell, widths[i]) + " "))
			} else {
				b.WriteString(" " + runewidth.FillLeft(cell, widths[i]) + " ")
			}
			b.WriteString(s.border.Render("│"))
		}
		b.WriteString("\n")
	}
	b.WriteString(t.rule(s, widths, "╰", "┴", "╯"))
	return b.String()
}

func (t table) rule(s tableStyles, widths []int, left, mid, right string) string {
	parts := make([]string, len(widths))
	for i, w := range widths {
		parts[i] = strings.Repeat("─", w+2)
	}
	return s.border.Render(left+strings.Join(parts, mid)+right) + "\n"
}
