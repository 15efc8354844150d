package sink

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"go-enrich-pipeline/internal/model"
)

var (
	// ErrInvalidSheetURL is returned when no spreadsheet ID can be found.
	ErrInvalidSheetURL = errors.New("invalid Google Sheets URL")
	// ErrCredentialsRequired is returned when no service account file is configured.
	ErrCredentialsRequired = errors.New("google sheets credentials required")

	sheetIDPattern = regexp.MustCompile(`/spreadsheets/d/([a-zA-Z0-9-_]+)`)
	bareIDPattern  = regexp.MustCompile(`^[a-zA-Z0-9-_]{20,}$`)
)

// SpreadsheetID extracts the ID from a sheet URL. A bare ID is accepted as is.
func SpreadsheetID(sheetURL string) (string, error) {
	if m := sheetIDPattern.FindStringSubmatch(sheetURL); m != nil {
		return m[1], nil
	}
	if bareIDPattern.MatchString(sheetURL) {
		return sheetURL, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidSheetURL, sheetURL)
}

// SheetsConfig configures a Google Sheets sink.
type SheetsConfig struct {
	URL             string
	SheetName       string // first sheet when empty
	CredentialsPath string
	Endpoint        string // when set, requests go here unauthenticated
}

// Sheets reads and writes one sheet of a Google spreadsheet.
type Sheets struct {
	svc       *sheets.Service
	id        string
	sheetName string
}

// NewSheets authenticates with a service account and returns the sink.
func NewSheets(ctx context.Context, cfg SheetsConfig) (*Sheets, error) {
	id, err := SpreadsheetID(cfg.URL)
	if err != nil {
		return nil, err
	}

	var opts []option.ClientOption
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint), option.WithoutAuthentication())
	} else {
		if cfg.CredentialsPath == "" {
			return nil, fmt.Errorf("%w: set GOOGLE_SHEETS_CREDENTIALS_PATH or sheets.credentials_path", ErrCredentialsRequired)
		}
		raw, err := os.ReadFile(cfg.CredentialsPath)
		if err != nil {
			return nil, ioErr("read credentials", err)
		}
		jwt, err := google.JWTConfigFromJSON(raw, sheets.SpreadsheetsScope)
		if err != nil {
			return nil, ioErr("parse credentials", err)
		}
		opts = append(opts, option.WithHTTPClient(jwt.Client(ctx)))
	}

	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, ioErr("create sheets client", err)
	}
	return &Sheets{svc: svc, id: id, sheetName: cfg.SheetName}, nil
}

// SpreadsheetID returns the target spreadsheet ID.
func (s *Sheets) SpreadsheetID() string { return s.id }

func (s *Sheets) Load(ctx context.Context) (model.Dataset, error) {
	sheet, err := s.resolveSheet(ctx)
	if err != nil {
		return model.Dataset{}, err
	}
	resp, err := s.svc.Spreadsheets.Values.Get(s.id, sheet).Context(ctx).Do()
	if err != nil {
		return model.Dataset{}, ioErr("read sheet", err)
	}

	recs := make([][]string, 0, len(resp.Values))
	for _, row := range resp.Values {
		rec := make([]string, len(row))
		for i, v := range row {
			rec[i] = fmt.Sprint(v)
		}
		recs = append(recs, rec)
	}
	switch {
	case len(recs) == 0:
		return model.Dataset{}, fmt.Errorf("%w: %w: the sheet is empty", ErrIO, ErrNoData)
	case len(recs) == 1:
		return model.Dataset{}, fmt.Errorf("%w: %w: the sheet has headers but no data rows", ErrIO, ErrNoData)
	}
	return normalizeTable(recs)
}

// Save clears the sheet and writes ds from A1.
func (s *Sheets) Save(ctx context.Context, ds model.Dataset) error {
	sheet, err := s.resolveSheet(ctx)
	if err != nil {
		return err
	}
	if _, err := s.svc.Spreadsheets.Values.Clear(s.id, sheet, &sheets.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return ioErr("clear sheet", err)
	}

	recs := records(ds)
	values := make([][]interface{}, len(recs))
	for i, rec := range recs {
		row := make([]interface{}, len(rec))
		for j, v := range rec {
			row[j] = v
		}
		values[i] = row
	}
	_, err = s.svc.Spreadsheets.Values.Update(s.id, sheet+"!A1", &sheets.ValueRange{Values: values}).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return ioErr("write sheet", err)
	}
	return nil
}

func (s *Sheets) resolveSheet(ctx context.Context) (string, error) {
	if s.sheetName != "" {
		return s.sheetName, nil
	}
	doc, err := s.svc.Spreadsheets.Get(s.id).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return "", ioErr("read spreadsheet", err)
	}
	if len(doc.Sheets) == 0 || doc.Sheets[0].Properties == nil {
		return "", fmt.Errorf("%w: %w: spreadsheet has no sheets", ErrIO, ErrNoData)
	}
	s.sheetName = doc.Sheets[0].Properties.Title
	return s.sheetName, nil
}
