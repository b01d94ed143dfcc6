package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"gopkg.in/yaml.v3"
)

const (
	outputTable = "table"
	outputJSON  = "json"
	outputYAML  = "yaml"
)

func validateOutput(format string) error {
	switch format {
	case outputTable, outputJSON, outputYAML:
		return nil
	default:
		return fmt.Errorf("unsupported output format %q (want table, json or yaml)", format)
	}
}

// printer renders command results in the selected format. Tables need an
// explicit header and rows; json and yaml encode the value itself.
type printer struct {
	format string
	out    io.Writer
}

func newPrinter(format string, out io.Writer) *printer {
	return &printer{format: format, out: out}
}

func (p *printer) print(value any, header table.Row, rows []table.Row) error {
	switch p.format {
	case outputJSON:
		enc := json.NewEncoder(p.out)
		enc.SetIndent("", "  ")
		return enc.Encode(value)
	case outputYAML:
		// Round-trip through JSON so yaml keys follow the json tags and raw
		// JSON fields render as documents instead of byte lists.
		generic, err := toGeneric(value)
		if err != nil {
			return err
		}
		enc := yaml.NewEncoder(p.out)
		enc.SetIndent(2)
		if err := enc.Encode(generic); err != nil {
			return fmt.Errorf("failed to encode yaml: %w", err)
		}
		return enc.Close()
	default:
		t := table.NewWriter()
		t.SetOutputMirror(p.out)
		t.AppendHeader(header)
		t.AppendRows(rows)
		t.Render()
		return nil
	}
}

func toGeneric(value any) (any, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("failed to encode value: %w", err)
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("failed to decode value: %w", err)
	}
	return generic, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return formatTime(*t)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
