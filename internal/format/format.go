// Package format renders result rows for terminal output.
package format

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"fedquery/internal/domain"
)

// Style selects an output rendering.
type Style string

const (
	StyleTable    Style = "table"
	StyleMarkdown Style = "markdown"
	StyleCSV      Style = "csv"
	StyleJSON     Style = "json"
)

// ParseStyle validates a style name. Empty means table.
func ParseStyle(s string) (Style, error) {
	switch Style(s) {
	case "":
		return StyleTable, nil
	case StyleTable, StyleMarkdown, StyleCSV, StyleJSON:
		return Style(s), nil
	}
	return "", fmt.Errorf("unsupported output format %q: use table, markdown, csv or json", s)
}

// Render writes rows in the given style. Rows are maps, so the column
// order is the union of keys in lexical order; that keeps repeated runs
// byte-identical.
func Render(w io.Writer, rows []domain.Row, style Style) error {
	switch style {
	case StyleJSON:
		return renderJSON(w, rows)
	case StyleCSV:
		cols := Columns(rows)
		return renderCSV(w, cols, Cells(rows, cols))
	case StyleMarkdown:
		cols := Columns(rows)
		renderMarkdown(w, cols, Cells(rows, cols))
		return nil
	case StyleTable, "":
		cols := Columns(rows)
		Table(w, cols, Cells(rows, cols))
		return nil
	}
	return fmt.Errorf("unsupported style %q", style)
}

// Columns returns the union of keys across all rows, sorted.
func Columns(rows []domain.Row) []string {
	seen := make(map[string]bool)
	var cols []string
	for _, r := range rows {
		for k := range r {
			if !seen[k] {
				seen[k] = true
				cols = append(cols, k)
			}
		}
	}
	sort.Strings(cols)
	return cols
}

// Cells renders each row's values under the given columns.
func Cells(rows []domain.Row, cols []string) [][]string {
	out := make([][]string, len(rows))
	for i, r := range rows {
		cells := make([]string, len(cols))
		for j, c := range cols {
			cells[j] = formatValue(r[c])
		}
		out[i] = cells
	}
	return out
}

// Table writes an aligned table: uppercased headers, columns padded to
// their widest cell, two spaces between columns.
func Table(w io.Writer, columns []string, rows [][]string) {
	if len(columns) == 0 {
		return
	}

	widths := make([]int, len(columns))
	for i, c := range columns {
		widths[i] = len(c)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	header := make([]string, len(columns))
	for i, c := range columns {
		header[i] = strings.ToUpper(c)
	}
	writeRow(w, header, widths)
	for _, row := range rows {
		writeRow(w, row, widths)
	}
}

func writeRow(w io.Writer, cells []string, widths []int) {
	var b strings.Builder
	for i, cell := range cells {
		if i > 0 {
			b.WriteString("  ")
		}
		b.WriteString(cell)
		// Pad all but the last column so separators line up.
		if i < len(cells)-1 && i < len(widths) {
			b.WriteString(strings.Repeat(" ", widths[i]-len(cell)))
		}
	}
	b.WriteString("\n")
	_, _ = io.WriteString(w, b.String())
}

func renderMarkdown(w io.Writer, columns []string, rows [][]string) {
	if len(columns) == 0 {
		return
	}
	writeMarkdownRow(w, columns)
	sep := make([]string, len(columns))
	for i := range sep {
		sep[i] = "---"
	}
	writeMarkdownRow(w, sep)
	for _, row := range rows {
		writeMarkdownRow(w, row)
	}
}

func writeMarkdownRow(w io.Writer, cells []string) {
	escaped := make([]string, len(cells))
	for i, c := range cells {
		escaped[i] = strings.ReplaceAll(c, "|", `\|`)
	}
	fmt.Fprintf(w, "| %s |\n", strings.Join(escaped, " | "))
}

func renderCSV(w io.Writer, columns []string, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(columns); err != nil {
		return err
	}
	for _, row := range rows {
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func renderJSON(w io.Writer, rows []domain.Row) error {
	if rows == nil {
		rows = []domain.Row{}
	}
	return PrintJSON(w, rows)
}

// PrintJSON writes v as indented JSON followed by a newline.
func PrintJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// formatValue renders one cell. Numbers never use exponent notation so
// keys and metrics read the same as in the stores.
func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.UTC().Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", x)
	}
}
