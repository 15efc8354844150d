package sink

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"go-enrich-pipeline/internal/model"
)

const defaultSheet = "Sheet1"

// XLSX is a local Excel workbook. Load reads Sheet, or the first sheet when
// Sheet is empty; Save writes Sheet (default Sheet1).
type XLSX struct {
	Path  string
	Sheet string
}

func (x *XLSX) Load(ctx context.Context) (model.Dataset, error) {
	f, err := os.Open(x.Path)
	if err != nil {
		return model.Dataset{}, ioErr("open xlsx", err)
	}
	defer f.Close()

	recs, err := readXLSX(f, x.Sheet)
	if err != nil {
		return model.Dataset{}, err
	}
	return normalizeTable(recs)
}

func (x *XLSX) Save(ctx context.Context, ds model.Dataset) error {
	if err := ctx.Err(); err != nil {
		return ioErr("save xlsx", err)
	}
	if dir := filepath.Dir(x.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return ioErr("create directory", err)
		}
	}
	f, err := os.Create(x.Path)
	if err != nil {
		return ioErr("create xlsx", err)
	}
	if err := writeXLSX(f, ds, x.Sheet); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return ioErr("close xlsx", err)
	}
	return nil
}

func readXLSX(r io.Reader, sheet string) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, ioErr("open xlsx", err)
	}
	defer func() { _ = f.Close() }()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, ioErr("read xlsx", ErrNoData)
		}
		sheet = sheets[0]
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, ioErr("read xlsx rows", err)
	}
	return rows, nil
}

func writeXLSX(w io.Writer, ds model.Dataset, sheet string) error {
	if sheet == "" {
		sheet = defaultSheet
	}
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if sheet != defaultSheet {
		if err := f.SetSheetName(defaultSheet, sheet); err != nil {
			return ioErr("name sheet", err)
		}
	}
	for i, rec := range records(ds) {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return ioErr("write xlsx", err)
		}
		values := make([]interface{}, len(rec))
		for j, v := range rec {
			values[j] = v
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return ioErr("write xlsx row", err)
		}
	}
	if _, err := f.WriteTo(w); err != nil {
		return ioErr("write xlsx", err)
	}
	return nil
}
