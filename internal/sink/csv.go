package sink

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"

	"go-enrich-pipeline/internal/model"
)

var byteOrderMark = []byte{0xEF, 0xBB, 0xBF}

// CSV is a local CSV file.
type CSV struct {
	Path string
}

func (c *CSV) Load(ctx context.Context) (model.Dataset, error) {
	f, err := os.Open(c.Path)
	if err != nil {
		return model.Dataset{}, ioErr("open csv", err)
	}
	defer f.Close()

	recs, err := readCSV(f)
	if err != nil {
		return model.Dataset{}, err
	}
	return normalizeTable(recs)
}

func (c *CSV) Save(ctx context.Context, ds model.Dataset) error {
	if err := ctx.Err(); err != nil {
		return ioErr("save csv", err)
	}
	if dir := filepath.Dir(c.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return ioErr("create directory", err)
		}
	}
	f, err := os.Create(c.Path)
	if err != nil {
		return ioErr("create csv", err)
	}
	if err := writeCSV(f, ds); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return ioErr("close csv", err)
	}
	return nil
}

func readCSV(r io.Reader) ([][]string, error) {
	br := bufio.NewReader(r)
	if prefix, err := br.Peek(len(byteOrderMark)); err == nil && bytes.Equal(prefix, byteOrderMark) {
		_, _ = br.Discard(len(byteOrderMark))
	}

	reader := csv.NewReader(br)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	recs, err := reader.ReadAll()
	if err != nil {
		return nil, ioErr("read csv", err)
	}
	return recs, nil
}

func writeCSV(w io.Writer, ds model.Dataset) error {
	writer := csv.NewWriter(w)
	if err := writer.WriteAll(records(ds)); err != nil {
		return ioErr("write csv", err)
	}
	return nil
}
