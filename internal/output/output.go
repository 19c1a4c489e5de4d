// Package output renders CLI results as a table, JSON or YAML.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"gopkg.in/yaml.v3"
)

// Output formats.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

// Formats lists the supported formats.
var Formats = []string{FormatTable, FormatJSON, FormatYAML}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#666666"))
)

// CheckFormat fails for an unsupported format.
func CheckFormat(format string) error {
	for _, f := range Formats {
		if f == format {
			return nil
		}
	}
	return fmt.Errorf("unsupported output format %q (valid: %s)", format, strings.Join(Formats, ", "))
}

// Resources prints a list of resources. Each row holds the values of
// columns; JSON and YAML print a list of objects keyed by column.
func Resources(w io.Writer, format string, columns []string, rows [][]any) error {
	switch format {
	case FormatJSON, FormatYAML:
		items := make([]map[string]any, 0, len(rows))
		for _, row := range rows {
			item := make(map[string]any, len(columns))
			for i, c := range columns {
				if i < len(row) {
					item[c] = row[i]
				}
			}
			items = append(items, item)
		}
		return encode(w, format, items)
	case FormatTable:
		t := newTable(columns)
		for _, row := range rows {
			cells := make([]string, len(row))
			for i, v := range row {
				cells[i] = Value(v)
			}
			t.Row(cells...)
		}
		_, err := fmt.Fprintln(w, t.String())
		return err
	default:
		return CheckFormat(format)
	}
}

// Properties prints the properties of one resource, sorted by name.
func Properties(w io.Writer, format string, props map[string]any) error {
	switch format {
	case FormatJSON, FormatYAML:
		return encode(w, format, props)
	case FormatTable:
		names := make([]string, 0, len(props))
		for k := range props {
			names = append(names, k)
		}
		sort.Strings(names)
		t := newTable([]string{"Field Name", "Value"})
		for _, k := range names {
			t.Row(k, Value(props[k]))
		}
		_, err := fmt.Fprintln(w, t.String())
		return err
	default:
		return CheckFormat(format)
	}
}

func newTable(headers []string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
}

func encode(w io.Writer, format string, v any) error {
	if format == FormatYAML {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}

// Value formats a property value for a table cell. Lists print one item
// per line, nested objects as compact JSON, null as empty.
func Value(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		if x == float64(int64(x)) {
			return fmt.Sprintf("%d", int64(x))
		}
		return fmt.Sprint(x)
	case []any:
		parts := make([]string, 0, len(x))
		for _, e := range x {
			parts = append(parts, Value(e))
		}
		return strings.Join(parts, "\n")
	case map[string]any:
		data, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(data)
	default:
		return fmt.Sprint(x)
	}
}
