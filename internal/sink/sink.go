// Package sink loads and saves datasets: local CSV and XLSX files and Google
// Sheets.
package sink

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"go-enrich-pipeline/internal/model"
)

var (
	// ErrIO wraps every load and save failure.
	ErrIO = errors.New("sink I/O error")
	// ErrNoData is returned for sources with no header or no data rows.
	ErrNoData = errors.New("no data")
	// ErrUnsupportedFormat is returned for unknown file kinds.
	ErrUnsupportedFormat = errors.New("unsupported format")
)

// Kinds understood by Open.
const (
	KindCSV    = "csv"
	KindXLSX   = "xlsx"
	KindSheets = "sheets"
)

// Sink is a tabular data source and destination.
type Sink interface {
	Load(ctx context.Context) (model.Dataset, error)
	Save(ctx context.Context, ds model.Dataset) error
}

// Target names a sink. Kind may be left empty: it is inferred from SheetURL or
// the Path extension.
type Target struct {
	Kind      string
	Path      string
	SheetURL  string
	SheetName string
}

// Options carries settings shared by sinks.
type Options struct {
	CredentialsPath string // Google service account JSON
	SheetsEndpoint  string // overrides the Sheets API endpoint
}

// SheetsReady reports whether a sheets sink can be opened with o.
func (o Options) SheetsReady() bool {
	return o.CredentialsPath != "" || o.SheetsEndpoint != ""
}

// ResolveKind returns the sink kind for t.
func (t Target) ResolveKind() (string, error) {
	if t.Kind != "" {
		return strings.ToLower(t.Kind), nil
	}
	if t.SheetURL != "" {
		return KindSheets, nil
	}
	return KindFromName(t.Path)
}

// KindFromName infers csv or xlsx from a file name.
func KindFromName(name string) (string, error) {
	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".csv":
		return KindCSV, nil
	case ".xlsx":
		return KindXLSX, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

// Open returns the sink for t.
func Open(ctx context.Context, t Target, opts Options) (Sink, error) {
	kind, err := t.ResolveKind()
	if err != nil {
		return nil, err
	}
	switch kind {
	case KindCSV:
		return &CSV{Path: t.Path}, nil
	case KindXLSX:
		return &XLSX{Path: t.Path, Sheet: t.SheetName}, nil
	case KindSheets:
		return NewSheets(ctx, SheetsConfig{
			URL:             t.SheetURL,
			SheetName:       t.SheetName,
			CredentialsPath: opts.CredentialsPath,
			Endpoint:        opts.SheetsEndpoint,
		})
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, kind)
	}
}

// Decode parses an uploaded file. name selects the format.
func Decode(name string, r io.Reader) (model.Dataset, error) {
	kind, err := KindFromName(name)
	if err != nil {
		return model.Dataset{}, err
	}
	var records [][]string
	switch kind {
	case KindCSV:
		records, err = readCSV(r)
	default:
		records, err = readXLSX(r, "")
	}
	if err != nil {
		return model.Dataset{}, err
	}
	return normalizeTable(records)
}

// Encode writes ds in the given format (csv or xlsx).
func Encode(w io.Writer, format string, ds model.Dataset) error {
	switch strings.ToLower(format) {
	case KindCSV, "":
		return writeCSV(w, ds)
	case KindXLSX:
		return writeXLSX(w, ds, "")
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

func ioErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrIO, op, err)
}
