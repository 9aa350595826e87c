// Package table extracts rows aligned to a declared header set from OCR
// output, either through a structured reformatting call or by parsing the
// first markdown table.
package table

import "errors"

// ErrMalformedResponse means the reformatting reply was not a JSON object
// with a "rows" array of objects.
var ErrMalformedResponse = errors.New("malformed reformatting response")

// Headers is the ordered column set for a run. Order defines CSV column order.
type Headers []string

// Row has exactly len(Headers) cells once it leaves the extractor.
type Row []string

// Table is the extraction result of one cycle: rows aligned to Headers.
type Table struct {
	Headers Headers
	Rows    []Row
}

// Len returns the number of data rows. A nil table has none.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Records returns the rows as plain string slices for CSV writers.
func (t *Table) Records() [][]string {
	if t == nil {
		return nil
	}
	out := make([][]string, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r
	}
	return out
}

// Normalize pads cells with empty strings or truncates them to width.
func Normalize(cells []string, width int) Row {
	row := make(Row, width)
	copy(row, cells)
	return row
}
