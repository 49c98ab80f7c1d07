package cli

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Theme is the color scheme for rendered tables.
type Theme struct {
	Primary lipgloss.Color
	Dim     lipgloss.Color
}

// DefaultTheme is bright green on dim gray.
var DefaultTheme = Theme{
	Primary: lipgloss.Color("#00ff9f"),
	Dim:     lipgloss.Color("#6e7681"),
}

// Styles are derived from a Theme.
type Styles struct {
	Header    lipgloss.Style
	Cell      lipgloss.Style
	Highlight lipgloss.Style
	Border    lipgloss.Style
}

// NewStyles creates styles from a theme.
func NewStyles(t Theme) Styles {
	return Styles{
		Header:    lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		Cell:      lipgloss.NewStyle(),
		Highlight: lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		Border:    lipgloss.NewStyle().Foreground(t.Dim),
	}
}

// Table is a simple column-aligned table.
type Table struct {
	Headers []string
	Rows    [][]string

	// Highlight marks rows rendered with Styles.Highlight.
	Highlight map[int]bool
}

// Append adds a row.
func (t *Table) Append(cells ...string) {
	t.Rows = append(t.Rows, cells)
}

// HighlightLast marks the most recently appended row.
func (t *Table) HighlightLast() {
	if t.Highlight == nil {
		t.Highlight = make(map[int]bool)
	}
	t.Highlight[len(t.Rows)-1] = true
}

// Records returns the rows as header-keyed maps, for structured output.
func (t *Table) Records() []map[string]string {
	out := make([]map[string]string, len(t.Rows))
	for i, row := range t.Rows {
		rec := make(map[string]string, len(t.Headers))
		for j, h := range t.Headers {
			if j < len(row) {
				rec[strings.ToLower(h)] = row[j]
			}
		}
		out[i] = rec
	}
	return out
}

// Render lays the table out with two spaces between columns.
func (t *Table) Render(s Styles) string {
	widths := make([]int, len(t.Headers))
	for i, h := range t.Headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range t.Rows {
		for i := range min(len(row), len(widths)) {
			widths[i] = max(widths[i], lipgloss.Width(row[i]))
		}
	}

	var sb strings.Builder
	line := func(cells []string, style lipgloss.Style) {
		for i := range widths {
			cell := ""
			if i < len(cells) {
				cell = cells[i]
			}
			if i > 0 {
				sb.WriteString("  ")
			}
			pad := strings.Repeat(" ", widths[i]-lipgloss.Width(cell))
			if i == len(widths)-1 {
				pad = ""
			}
			sb.WriteString(style.Render(cell) + pad)
		}
		sb.WriteString("\n")
	}

	line(t.Headers, s.Header)
	total := 0
	for _, w := range widths {
		total += w
	}
	total += 2 * max(len(widths)-1, 0)
	sb.WriteString(s.Border.Render(strings.Repeat("─", total)) + "\n")
	for i, row := range t.Rows {
		style := s.Cell
		if t.Highlight[i] {
			style = s.Highlight
		}
		line(row, style)
	}
	return sb.String()
}
