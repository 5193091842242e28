package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// RenderTable renders rows under headers. Styled output draws a rounded
// lipgloss table; plain output is tab-separated, one line per row, so it
// can be piped into cut or awk.
func RenderTable(headers []string, rows [][]string, styled bool) string {
	if !styled {
		return renderPlain(headers, rows)
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(BorderStyle).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return HeaderStyle
			}
			return CellStyle
		})
	return t.Render()
}

func renderPlain(headers []string, rows [][]string) string {
	var b strings.Builder
	if len(headers) > 0 {
		b.WriteString(strings.Join(headers, "\t"))
	}
	for _, row := range rows {
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(strings.Join(row, "\t"))
	}
	return b.String()
}
