package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-yaml"
)

// OutputFormat is a result encoding.
type OutputFormat string

const (
	// FormatYAML is the default for terminals.
	FormatYAML OutputFormat = "yaml"
	// FormatJSON writes one indented JSON document.
	FormatJSON OutputFormat = "json"
	// FormatJSONL writes one compact JSON document per line.
	FormatJSONL OutputFormat = "jsonl"
	// FormatTable renders a Table; other values fall back to YAML.
	FormatTable OutputFormat = "table"
)

// ParseOutputFormat validates a --output flag value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(s); f {
	case FormatYAML, FormatJSON, FormatJSONL, FormatTable:
		return f, nil
	case "":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", s)
	}
}

// OutputOptions configures Output.
type OutputOptions struct {
	Format OutputFormat

	// Writer defaults to os.Stdout.
	Writer io.Writer

	// Styles are used for FormatTable. Nil uses DefaultTheme.
	Styles *Styles
}

// Output writes result in the configured format.
func Output(result any, opts OutputOptions) error {
	w := opts.Writer
	if w == nil {
		w = os.Stdout
	}

	switch opts.Format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	case FormatJSONL:
		return json.NewEncoder(w).Encode(result)
	case FormatTable:
		if t, ok := result.(*Table); ok {
			styles := opts.Styles
			if styles == nil {
				s := NewStyles(DefaultTheme)
				styles = &s
			}
			_, err := io.WriteString(w, t.Render(*styles))
			return err
		}
		return outputYAML(w, result)
	case FormatYAML, "":
		return outputYAML(w, result)
	default:
		return fmt.Errorf("unsupported output format: %s", opts.Format)
	}
}

func outputYAML(w io.Writer, result any) error {
	if t, ok := result.(*Table); ok {
		result = t.Records()
	}
	data, err := yaml.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}
	_, err = w.Write(data)
	return err
}

// PrintSuccess prints a success message to stderr.
func PrintSuccess(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "✓ "+format+"\n", args...)
}

// PrintError prints an error message to stderr.
func PrintError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}
