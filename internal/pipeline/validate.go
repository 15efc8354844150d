package pipeline

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go-enrich-pipeline/internal/batch"
	"go-enrich-pipeline/internal/model"
	"go-enrich-pipeline/internal/sink"
)

// ErrInvalidSpec wraps every job spec problem.
var ErrInvalidSpec = errors.New("invalid job spec")

// ValidateSpec checks a job spec before anything runs. When ds is non-nil the
// entity column must be one of its columns. Template errors also wrap
// batch.ErrInvalidTemplate.
func ValidateSpec(spec model.JobSpec, ds *model.Dataset) error {
	var errs []error

	if err := batch.ValidateTemplate(spec.QueryTemplate); err != nil {
		errs = append(errs, err)
	}
	if strings.TrimSpace(spec.EntityColumn) == "" {
		errs = append(errs, batch.ErrMissingEntityColumn)
	} else if ds != nil && !ds.HasColumn(spec.EntityColumn) {
		errs = append(errs, fmt.Errorf("entity column %q not in dataset columns %v", spec.EntityColumn, ds.Columns))
	}

	if ds == nil {
		if err := validateSource(spec.Source); err != nil {
			errs = append(errs, err)
		}
	}
	if spec.Export != nil && spec.Export.File != "" {
		if _, err := sink.KindFromName(spec.Export.File); err != nil {
			errs = append(errs, fmt.Errorf("export file: %w", err))
		}
	}

	if err := ValidateTransformations(spec.Transformations); err != nil {
		errs = append(errs, err)
	}

	c := spec.Concurrency
	if c.Workers < 0 {
		errs = append(errs, fmt.Errorf("concurrency.workers must be >= 0, got %d", c.Workers))
	}
	if c.MaxRetries != nil && *c.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("concurrency.max_retries must be >= 0, got %d", *c.MaxRetries))
	}
	for name, value := range map[string]string{"row_delay": c.RowDelay, "job_timeout": c.JobTimeout} {
		if value == "" {
			continue
		}
		if d, err := time.ParseDuration(value); err != nil || d < 0 {
			errs = append(errs, fmt.Errorf("concurrency.%s: invalid duration %q", name, value))
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidSpec, errors.Join(errs...))
}

// UsesSheets reports whether spec reads from or writes to a Google Sheet. The
// source only counts when no dataset was supplied.
func UsesSheets(spec model.JobSpec, ds *model.Dataset) bool {
	if spec.Export != nil && spec.Export.SheetURL != "" {
		return true
	}
	if ds != nil {
		return false
	}
	kind, err := sourceTarget(spec.Source).ResolveKind()
	return err == nil && kind == sink.KindSheets
}

// checkSinks rejects a job whose source or export needs Google Sheets access
// that opts cannot provide, before any row is searched.
func checkSinks(spec model.JobSpec, ds *model.Dataset, opts sink.Options) error {
	if UsesSheets(spec, ds) && !opts.SheetsReady() {
		return fmt.Errorf("%w: set GOOGLE_SHEETS_CREDENTIALS_PATH or sheets.credentials_path", sink.ErrCredentialsRequired)
	}
	return nil
}

func validateSource(src model.Source) error {
	target := sourceTarget(src)
	kind, err := target.ResolveKind()
	if err != nil {
		return fmt.Errorf("source: %w", err)
	}
	switch kind {
	case sink.KindSheets:
		if _, err := sink.SpreadsheetID(src.SheetURL); err != nil {
			return fmt.Errorf("source: %w", err)
		}
	case sink.KindCSV, sink.KindXLSX:
		if src.Path == "" {
			return errors.New("source: path is required")
		}
	default:
		return fmt.Errorf("source: %w: %q", sink.ErrUnsupportedFormat, kind)
	}
	return nil
}

func sourceTarget(src model.Source) sink.Target {
	return sink.Target{Kind: src.Type, Path: src.Path, SheetURL: src.SheetURL, SheetName: src.SheetName}
}
