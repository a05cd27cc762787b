package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"mailfetch/internal/email"

	"gopkg.in/yaml.v3"
)

const (
	outputJSON  = "json"
	outputYAML  = "yaml"
	outputTable = "table"
)

func validateOutput(format string) error {
	switch format {
	case outputJSON, outputYAML, outputTable:
		return nil
	default:
		return fmt.Errorf("unknown output format %q (expected json, yaml or table)", format)
	}
}

func printRecords(out io.Writer, records []email.Record, format string) error {
	switch format {
	case outputJSON:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(records)
	case outputYAML:
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(records); err != nil {
			return err
		}
		return enc.Close()
	case outputTable:
		printTable(out, records)
		return nil
	default:
		return validateOutput(format)
	}
}

func printTable(out io.Writer, records []email.Record) {
	tw := tabwriter.NewWriter(out, 0, 2, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tREAD\tDATE\tFROM\tSUBJECT")
	for _, rec := range records {
		read := " "
		if rec.Read {
			read = "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", rec.ID, read, oneLine(rec.Date), oneLine(rec.From), oneLine(rec.Subject))
	}
	_ = tw.Flush()
}

// oneLine keeps tab and newline characters from breaking table columns.
func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
