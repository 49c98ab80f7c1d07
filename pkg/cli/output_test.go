package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestOutput_JSON(t *testing.T) {
	var buf bytes.Buffer
	if err := Output(map[string]any{"focus": "speaker:000001", "particles": 10}, OutputOptions{
		Format: FormatJSON,
		Writer: &buf,
	}); err != nil {
		t.Fatalf("Output error: %v", err)
	}
	var result map[string]any
	if err := json.Unmarshal(buf.Bytes(), &result); err != nil {
		t.Fatalf("Invalid JSON output: %v", err)
	}
	if result["focus"] != "speaker:000001" {
		t.Errorf("focus = %v", result["focus"])
	}
}

func TestOutput_JSONL(t *testing.T) {
	var buf bytes.Buffer
	for i := range 3 {
		if err := Output(map[string]int{"frame": i}, OutputOptions{Format: FormatJSONL, Writer: &buf}); err != nil {
			t.Fatal(err)
		}
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 || lines[2] != `{"frame":2}` {
		t.Errorf("lines = %q", lines)
	}
}

func TestOutput_YAMLDefault(t *testing.T) {
	var buf bytes.Buffer
	if err := Output(map[string]string{"key": "value"}, OutputOptions{Writer: &buf}); err != nil {
		t.Fatalf("Output error: %v", err)
	}
	if !strings.Contains(buf.String(), "key: value") {
		t.Errorf("Default format should be YAML, got: %s", buf.String())
	}
}

func TestOutput_TableAsYAML(t *testing.T) {
	tbl := &Table{Headers: []string{"ID", "Label"}}
	tbl.Append("speaker:000001", "user")
	var buf bytes.Buffer
	if err := Output(tbl, OutputOptions{Format: FormatYAML, Writer: &buf}); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "id: speaker:000001") || !strings.Contains(out, "label: user") {
		t.Errorf("table records not encoded: %s", out)
	}
}

func TestOutput_Table(t *testing.T) {
	tbl := &Table{Headers: []string{"ID", "Label"}}
	tbl.Append("speaker:000001", "user")
	var buf bytes.Buffer
	if err := Output(tbl, OutputOptions{Format: FormatTable, Writer: &buf}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "speaker:000001") {
		t.Errorf("table output missing row: %s", buf.String())
	}
}

func TestOutput_UnsupportedFormat(t *testing.T) {
	var buf bytes.Buffer
	if err := Output("data", OutputOptions{Format: "xml", Writer: &buf}); err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestParseOutputFormat(t *testing.T) {
	for in, want := range map[string]OutputFormat{"": FormatYAML, "json": FormatJSON, "jsonl": FormatJSONL, "table": FormatTable} {
		got, err := ParseOutputFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseOutputFormat(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseOutputFormat("csv"); err == nil {
		t.Error("expected error for csv")
	}
}
