package common

import (
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
)

// Table is a plain-text table whose columns are padded by display width,
// so titles with wide characters still line up.
type Table struct {
	headers []string
	rows    [][]string
}

// NewTable starts a table with the given column headers.
func NewTable(headers ...string) *Table {
	return &Table{headers: headers}
}

// Row appends one row. Missing cells render empty; extra cells are dropped.
func (t *Table) Row(cells ...string) {
	row := make([]string, len(t.headers))
	copy(row, cells)
	t.rows = append(t.rows, row)
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.rows)
}

// Write renders the header, a rule and every row.
func (t *Table) Write(w io.Writer) error {
	widths := make([]int, len(t.headers))
	for i, h := range t.headers {
		widths[i] = runewidth.StringWidth(h)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			widths[i] = max(widths[i], runewidth.StringWidth(cell))
		}
	}

	total := 0
	for _, wd := range widths {
		total += wd + 2
	}

	if _, err := fmt.Fprintln(w, t.line(t.headers, widths)); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w, strings.Repeat("-", max(total-2, 0))); err != nil {
		return err
	}
	for _, row := range t.rows {
		if _, err := fmt.Fprintln(w, t.line(row, widths)); err != nil {
			return err
		}
	}
	return nil
}

func (t *Table) line(cells []string, widths []int) string {
	var sb strings.Builder
	for i, cell := range cells {
		if i == len(cells)-1 {
			sb.WriteString(cell)
			break
		}
		sb.WriteString(runewidth.FillRight(cell, widths[i]))
		sb.WriteString("  ")
	}
	return sb.String()
}
