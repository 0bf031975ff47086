// Package cli provides output formatting and terminal styling shared by the
// mofa-bridge commands.
//
// Results are written as YAML (the default), JSON or an aligned table:
//
//	cli.Output(result, cli.OutputOptions{
//	    Format: cli.FormatJSON,
//	    File:   outputPath,
//	})
//
// Values implementing [Table] choose their own columns for the table
// format; anything else falls back to YAML.
package cli
