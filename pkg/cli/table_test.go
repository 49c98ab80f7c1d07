package cli

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
)

func TestTableRender(t *testing.T) {
	tbl := &Table{Headers: []string{"ID", "LABEL", "HEARD"}}
	tbl.Append("speaker:000001", "user", "1.2s")
	tbl.HighlightLast()
	tbl.Append("speaker:000002", "sound_source", "300ms")

	out := tbl.Render(NewStyles(DefaultTheme))
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d lines, want 4:\n%s", len(lines), out)
	}
	for i, want := range []string{"ID", "─", "speaker:000001", "sound_source"} {
		if !strings.Contains(lines[i], want) {
			t.Errorf("line %d = %q, want it to contain %q", i, lines[i], want)
		}
	}
	// Columns align on visible width.
	if lipgloss.Width(lines[0]) > lipgloss.Width(lines[3]) {
		t.Errorf("header wider than rows:\n%s", out)
	}
	if !tbl.Highlight[0] || tbl.Highlight[1] {
		t.Errorf("Highlight = %v", tbl.Highlight)
	}
}

func TestTableRecords(t *testing.T) {
	tbl := &Table{Headers: []string{"ID", "Name"}}
	tbl.Append("a", "alice")
	tbl.Append("b")
	recs := tbl.Records()
	if len(recs) != 2 || recs[0]["name"] != "alice" || recs[1]["id"] != "b" {
		t.Errorf("Records = %v", recs)
	}
	if _, ok := recs[1]["name"]; ok {
		t.Error("short rows should omit missing cells")
	}
}
