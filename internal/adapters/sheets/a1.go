package sheets

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Cell is a one-based spreadsheet coordinate.
type Cell struct {
	Column int
	Row    int
}

// Range is a rectangle of cells on an optional sheet. Start and End are both
// inclusive, as in A1 notation.
type Range struct {
	Sheet string
	Start Cell
	End   Cell
}

var (
	cellPattern  = regexp.MustCompile(`^([A-Za-z]+)([0-9]+)$`)
	rangePattern = regexp.MustCompile(`^(?:'((?:[^']|'')*)'!|([A-Za-z0-9_]+)!)?([A-Za-z]+[0-9]+):([A-Za-z]+[0-9]+)$`)
)

// ColumnName converts a one-based column number to its base-26 letters
// (1 → A, 27 → AA). Non-positive numbers yield "".
func ColumnName(n int) string {
	var b []byte
	for n > 0 {
		n--
		b = append(b, byte('A'+n%26))
		n /= 26
	}
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
	return string(b)
}

// ColumnNumber converts column letters back to a one-based number.
func ColumnNumber(name string) (int, bool) {
	if name == "" {
		return 0, false
	}
	n := 0
	for _, r := range strings.ToUpper(name) {
		if r < 'A' || r > 'Z' {
			return 0, false
		}
		n = n*26 + int(r-'A'+1)
	}
	return n, true
}

// ParseCell parses a cell reference such as "C12".
func ParseCell(s string) (Cell, error) {
	m := cellPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return Cell{}, fmt.Errorf("%w: cell %q", ErrInvalidRange, s)
	}
	col, ok := ColumnNumber(m[1])
	if !ok {
		return Cell{}, fmt.Errorf("%w: column %q", ErrInvalidRange, m[1])
	}
	row, err := strconv.Atoi(m[2])
	if err != nil || row < 1 {
		return Cell{}, fmt.Errorf("%w: row %q", ErrInvalidRange, m[2])
	}
	return Cell{Column: col, Row: row}, nil
}

// String renders the cell in A1 notation.
func (c Cell) String() string {
	return ColumnName(c.Column) + strconv.Itoa(c.Row)
}

// ParseRange parses "'Sheet Name'!A1:J200", "Sheet1!A1:B2" or "A1:B2".
func ParseRange(s string) (Range, error) {
	m := rangePattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return Range{}, fmt.Errorf("%w: %q", ErrInvalidRange, s)
	}
	start, err := ParseCell(m[3])
	if err != nil {
		return Range{}, err
	}
	end, err := ParseCell(m[4])
	if err != nil {
		return Range{}, err
	}
	sheet := m[2]
	if m[1] != "" {
		sheet = strings.ReplaceAll(m[1], "''", "'")
	}
	return Range{Sheet: sheet, Start: start, End: end}, nil
}

// String renders the range in A1 notation. The sheet name is always quoted.
func (r Range) String() string {
	var b strings.Builder
	if r.Sheet != "" {
		b.WriteByte('\'')
		b.WriteString(strings.ReplaceAll(r.Sheet, "'", "''"))
		b.WriteString("'!")
	}
	b.WriteString(r.Start.String())
	b.WriteByte(':')
	b.WriteString(r.End.String())
	return b.String()
}

// Columns returns the half-open column span [from, to).
func (r Range) Columns() (from, to int) {
	return r.Start.Column, r.End.Column + 1
}

// Rows returns the half-open row span [from, to).
func (r Range) Rows() (from, to int) {
	return r.Start.Row, r.End.Row + 1
}

// Contains reports whether c lies inside the range.
func (r Range) Contains(c Cell) bool {
	cf, ct := r.Columns()
	rf, rt := r.Rows()
	return c.Column >= cf && c.Column < ct && c.Row >= rf && c.Row < rt
}

// SheetRange returns the range covering columns 1..columns and rows
// 1..rows of the named sheet.
func SheetRange(sheet string, columns, rows int) Range {
	return Range{Sheet: sheet, Start: Cell{Column: 1, Row: 1}, End: Cell{Column: columns, Row: rows}}
}
