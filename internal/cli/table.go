package cli

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var (
	tableHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(PrimaryColor).Padding(0, 1)
	tableCellStyle   = lipgloss.NewStyle().Padding(0, 1)
	tableBorderStyle = lipgloss.NewStyle().Foreground(SubtleColor)
)

// Table renders rows under headers with a rounded border. Columns listed in
// rightAlign (zero-based) are right aligned, for amounts.
func Table(headers []string, rows [][]string, rightAlign ...int) string {
	right := make(map[int]bool, len(rightAlign))
	for _, c := range rightAlign {
		right[c] = true
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(tableBorderStyle).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			style := tableCellStyle
			if row == table.HeaderRow {
				style = tableHeaderStyle
			}
			if right[col] {
				style = style.Align(lipgloss.Right)
			}
			return style
		})
	return t.Render()
}
