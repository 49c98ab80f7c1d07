// Package cli provides the terminal plumbing of the cocktail command:
// result output (YAML, JSON, tables), the ~/.cocktail directory layout and
// slog setup.
//
//	cli.Output(decision, cli.OutputOptions{Format: cli.FormatJSON})
//
//	t := cli.Table{Headers: []string{"ID", "LABEL"}}
//	t.Append("speaker:000001", "user")
//	fmt.Print(t.Render(cli.NewStyles(cli.DefaultTheme)))
package cli
