package ui

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Align selects the horizontal alignment of a table column.
type Align int

const (
	AlignLeft Align = iota
	AlignRight
	AlignCenter
)

// Column describes one table column.
type Column struct {
	Name  string
	Width int
	Align Align
}

// Table renders fixed-width columnar output for CLI commands. Cell
// values may carry ANSI styling; alignment is measured on the plain
// text so escape codes do not skew the layout.
type Table struct {
	columns   []Column
	rows      [][]string
	headerSep bool
	indent    string
}

// NewTable creates a table with the given columns.
func NewTable(columns ...Column) *Table {
	return &Table{
		columns:   columns,
		headerSep: true,
		indent:    "  ",
	}
}

// SetIndent overrides the two-space default line prefix.
func (t *Table) SetIndent(indent string) *Table {
	t.indent = indent
	return t
}

// SetHeaderSeparator toggles the rule between header and rows.
func (t *Table) SetHeaderSeparator(on bool) *Table {
	t.headerSep = on
	return t
}

// AddRow appends a row. Missing trailing cells are padded with empty
// strings; extra cells are dropped.
func (t *Table) AddRow(values ...string) *Table {
	row := make([]string, len(t.columns))
	copy(row, values)
	t.rows = append(t.rows, row)
	return t
}

// Render returns the formatted table, one newline per line.
func (t *Table) Render() string {
	if len(t.columns) == 0 {
		return ""
	}

	var b strings.Builder

	cells := make([]string, len(t.columns))
	for i, col := range t.columns {
		cells[i] = t.pad(Bold.Render(col.Name), col.Name, col.Width, col.Align)
	}
	b.WriteString(t.indent)
	b.WriteString(strings.Join(cells, "  "))
	b.WriteString("\n")

	if t.headerSep {
		segs := make([]string, len(t.columns))
		for i, col := range t.columns {
			segs[i] = strings.Repeat("─", col.Width)
		}
		b.WriteString(t.indent)
		b.WriteString(Dim.Render(strings.Join(segs, "  ")))
		b.WriteString("\n")
	}

	for _, row := range t.rows {
		for i, col := range t.columns {
			val := row[i]
			plain := stripAnsi(val)
			if utf8.RuneCountInString(plain) > col.Width && col.Width > 3 {
				val = string([]rune(plain)[:col.Width-3]) + "..."
				plain = val
			}
			cells[i] = t.pad(val, plain, col.Width, col.Align)
		}
		b.WriteString(t.indent)
		b.WriteString(strings.Join(cells, "  "))
		b.WriteString("\n")
	}

	return b.String()
}

// pad aligns styled text within width, measuring the plain variant so
// escape codes don't count. Text at or beyond width passes through.
func (t *Table) pad(styled, plain string, width int, align Align) string {
	gap := width - utf8.RuneCountInString(plain)
	if gap <= 0 {
		return styled
	}
	switch align {
	case AlignRight:
		return strings.Repeat(" ", gap) + styled
	case AlignCenter:
		left := gap / 2
		return strings.Repeat(" ", left) + styled + strings.Repeat(" ", gap-left)
	default:
		return styled + strings.Repeat(" ", gap)
	}
}

var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*m`)

// stripAnsi removes ANSI color and style escape codes.
func stripAnsi(s string) string {
	return ansiPattern.ReplaceAllString(s, "")
}
