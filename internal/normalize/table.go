// Package normalize turns raw scraped tables into typed records.
package normalize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// Table is a scraped HTML table: a header row and body rows of cell text.
type Table struct {
	Header []string
	Rows   [][]string
}

// NormalizeHeader removes every whitespace rune from a header cell, so
// "着 順" and "着順" name the same column.
func NormalizeHeader(h string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, h)
}

// Normalized returns a copy with whitespace-free headers and trimmed cells.
func (t Table) Normalized() Table {
	out := Table{Header: make([]string, len(t.Header)), Rows: make([][]string, len(t.Rows))}
	for i, h := range t.Header {
		out.Header[i] = NormalizeHeader(h)
	}
	for i, row := range t.Rows {
		cells := make([]string, len(row))
		for j, c := range row {
			cells[j] = strings.TrimSpace(c)
		}
		out.Rows[i] = cells
	}
	return out
}

// Col returns the index of the named column, or -1.
func (t Table) Col(name string) int {
	for i, h := range t.Header {
		if h == name {
			return i
		}
	}
	return -1
}

// checkShape verifies that every row has one cell per header and that the
// required columns exist.
func (t Table) checkShape(required ...string) error {
	for _, name := range required {
		if t.Col(name) < 0 {
			return fmt.Errorf("missing column %q", name)
		}
	}
	for i, row := range t.Rows {
		if len(row) != len(t.Header) {
			return fmt.Errorf("row %d has %d cells, header has %d", i, len(row), len(t.Header))
		}
	}
	return nil
}

// cell returns row[col] or "" when the column is absent.
func cell(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return row[col]
}

var (
	parenRe  = regexp.MustCompile(`\([^()]*\)`)
	digitsRe = regexp.MustCompile(`\d+`)
	nonDigit = regexp.MustCompile(`\D`)
)

// StripParens removes parenthesised groups such as the body weight delta in
// "480(+2)".
func StripParens(s string) string {
	return strings.TrimSpace(parenRe.ReplaceAllString(s, ""))
}

// PrefixHour gives a bare "M:SS.s" time an explicit zero hour. Times that
// already carry an hour, and empty cells, are returned unchanged.
func PrefixHour(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || strings.Count(s, ":") != 1 {
		return s
	}
	return "0:" + s
}

func intPtr(s string) *int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return nil
	}
	return &n
}

func floatPtr(s string) *float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return nil
	}
	return &f
}

func atoi(s string) int {
	n, _ := strconv.Atoi(strings.TrimSpace(s))
	return n
}

func atof(s string) float64 {
	f, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return f
}

// lastNumber returns the last run of digits in s.
func lastNumber(s string) (int, bool) {
	all := digitsRe.FindAllString(s, -1)
	if len(all) == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(all[len(all)-1])
	return n, err == nil
}
