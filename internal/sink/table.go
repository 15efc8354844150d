package sink

import (
	"fmt"
	"strings"

	"go-enrich-pipeline/internal/model"
)

// normalizeTable turns raw records into a Dataset. The first non-blank record is
// the header; blank rows are dropped and ragged rows padded or cut to the header.
func normalizeTable(records [][]string) (model.Dataset, error) {
	var header []string
	var rows [][]string
	for _, rec := range records {
		if isBlank(rec) {
			continue
		}
		if header == nil {
			header = rec
			continue
		}
		rows = append(rows, rec)
	}
	if header == nil {
		return model.Dataset{}, fmt.Errorf("%w: %w: file is empty", ErrIO, ErrNoData)
	}

	columns := sanitizeHeaders(header)
	ds := model.Dataset{Columns: columns, Rows: make([]model.Row, 0, len(rows))}
	for _, rec := range rows {
		row := make(model.Row, len(columns))
		for i, col := range columns {
			if i < len(rec) {
				row[col] = rec[i]
			} else {
				row[col] = ""
			}
		}
		ds.Rows = append(ds.Rows, row)
	}
	return ds, nil
}

// sanitizeHeaders trims names, strips quotes and makes empty or repeated names
// unique.
func sanitizeHeaders(raw []string) []string {
	headers := make([]string, len(raw))
	taken := make(map[string]bool, len(raw))
	for i, value := range raw {
		name := strings.TrimSpace(strings.ReplaceAll(value, `"`, ""))
		if name == "" {
			name = fmt.Sprintf("column_%d", i+1)
		}
		base := name
		for n := 2; taken[name]; n++ {
			name = fmt.Sprintf("%s_%d", base, n)
		}
		taken[name] = true
		headers[i] = name
	}
	return headers
}

func isBlank(rec []string) bool {
	for _, cell := range rec {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// records flattens ds into a header row followed by data rows.
func records(ds model.Dataset) [][]string {
	out := make([][]string, 0, len(ds.Rows)+1)
	out = append(out, append([]string(nil), ds.Columns...))
	for _, row := range ds.Rows {
		rec := make([]string, len(ds.Columns))
		for i, col := range ds.Columns {
			rec[i] = row[col]
		}
		out = append(out, rec)
	}
	return out
}
