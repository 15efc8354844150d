package model

import "strings"

// Row is a single dataset row keyed by column name.
type Row map[string]string

// Dataset is an ordered table. Columns keeps the header order so exports
// reproduce the input layout.
type Dataset struct {
	Columns []string `json:"columns"`
	Rows    []Row    `json:"rows"`
}

// Len returns the number of rows.
func (d Dataset) Len() int {
	return len(d.Rows)
}

// HasColumn reports whether name is one of the dataset headers.
func (d Dataset) HasColumn(name string) bool {
	for _, c := range d.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// Value returns the trimmed value of column in row i and whether it is present and non-blank.
func (d Dataset) Value(i int, column string) (string, bool) {
	if i < 0 || i >= len(d.Rows) {
		return "", false
	}
	v, ok := d.Rows[i][column]
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

// Head returns a copy of the dataset limited to the first n rows.
func (d Dataset) Head(n int) Dataset {
	if n < 0 || n > len(d.Rows) {
		n = len(d.Rows)
	}
	out := Dataset{Columns: append([]string(nil), d.Columns...), Rows: make([]Row, n)}
	for i := 0; i < n; i++ {
		out.Rows[i] = d.Rows[i].Clone()
	}
	return out
}

// Clone returns a shallow copy of the row.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
