package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"go-enrich-pipeline/internal/model"
	"go-enrich-pipeline/internal/sink"
	"go-enrich-pipeline/pkg/utils"
)

// Columns appended after the extracted fields.
const (
	ColumnStatus         = "status"
	ColumnError          = "error"
	ColumnRetries        = "retries"
	ColumnSearchTitles   = "search_titles"
	ColumnSearchURLs     = "search_urls"
	ColumnSearchSnippets = "search_snippets"
	ColumnQueryType      = "query_type"
)

// StatusNotProcessed marks rows a cancelled job never reached.
const StatusNotProcessed = "not_processed"

var trailerColumns = []string{
	ColumnStatus, ColumnError, ColumnRetries,
	ColumnSearchTitles, ColumnSearchURLs, ColumnSearchSnippets, ColumnQueryType,
}

// BuildOutput returns the enriched table: the original columns, one column per
// extracted field, then the status and search columns. Names that clash with an
// existing column get an "_enriched" suffix. ds is not modified.
func BuildOutput(ds model.Dataset, report *model.BatchReport, fields []string) model.Dataset {
	columns := append([]string(nil), ds.Columns...)
	taken := make(map[string]bool, len(columns))
	for _, c := range columns {
		taken[c] = true
	}
	claim := func(name string) string {
		for taken[name] {
			name += "_enriched"
		}
		taken[name] = true
		columns = append(columns, name)
		return name
	}

	fieldCols := make([]string, len(fields))
	for i, f := range fields {
		fieldCols[i] = claim(f)
	}
	trailer := make(map[string]string, len(trailerColumns))
	for _, c := range trailerColumns {
		trailer[c] = claim(c)
	}

	byRow := make(map[int]model.RowResult, report.Len())
	if report != nil {
		for _, r := range report.Results {
			byRow[r.Row] = r
		}
	}

	out := model.Dataset{Columns: columns, Rows: make([]model.Row, len(ds.Rows))}
	for i, src := range ds.Rows {
		row := src.Clone()
		for _, c := range fieldCols {
			row[c] = ""
		}
		for _, c := range trailer {
			row[c] = ""
		}

		res, ok := byRow[i]
		if !ok {
			row[trailer[ColumnStatus]] = StatusNotProcessed
			out.Rows[i] = row
			continue
		}
		row[trailer[ColumnStatus]] = string(res.Status)
		row[trailer[ColumnRetries]] = strconv.Itoa(res.Retries)
		row[trailer[ColumnQueryType]] = res.QueryType
		if res.Succeeded() {
			for j, f := range fields {
				row[fieldCols[j]] = res.Extracted[f]
			}
		} else {
			row[trailer[ColumnError]] = res.Message
		}

		titles := make([]string, 0, len(res.Hits))
		urls := make([]string, 0, len(res.Hits))
		snippets := make([]string, 0, len(res.Hits))
		for _, h := range res.Hits {
			titles = append(titles, h.Title)
			urls = append(urls, h.URL)
			snippets = append(snippets, h.Snippet)
		}
		row[trailer[ColumnSearchTitles]] = strings.Join(titles, ", ")
		row[trailer[ColumnSearchURLs]] = strings.Join(urls, ", ")
		row[trailer[ColumnSearchSnippets]] = strings.Join(snippets, ", ")
		out.Rows[i] = row
	}
	return out
}

// ExportManager writes a job's enriched table to its configured destinations.
type ExportManager struct {
	JobID       string
	Outputs     *utils.OutputManager
	SinkOptions sink.Options
	Logger      *zap.Logger
}

// Export writes out to every destination in spec. With no destination it
// writes a CSV under the job's output directory. Every attempt is returned,
// and the error joins all failures.
func (em *ExportManager) Export(ctx context.Context, spec *model.Export, out model.Dataset) ([]model.ExportResult, error) {
	logger := em.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var targets []sink.Target
	if spec != nil && spec.File != "" {
		targets = append(targets, sink.Target{Path: spec.File, SheetName: spec.SheetName})
	}
	if spec != nil && spec.SheetURL != "" {
		targets = append(targets, sink.Target{Kind: sink.KindSheets, SheetURL: spec.SheetURL, SheetName: spec.SheetName})
	}
	if len(targets) == 0 {
		path, err := em.Outputs.DefaultExportPath(em.JobID, sink.KindCSV, time.Now())
		if err != nil {
			return nil, fmt.Errorf("%w: %w", sink.ErrIO, err)
		}
		targets = append(targets, sink.Target{Path: path})
	}

	var results []model.ExportResult
	var errs []error
	for _, t := range targets {
		res, err := em.save(ctx, t, out)
		if err == nil {
			logger.Info("export: saved", zap.String("job_id", em.JobID), zap.String("type", res.Type),
				zap.String("path", res.Path), zap.Int("rows", res.RecordCount))
		} else {
			logger.Error("export: failed", zap.String("job_id", em.JobID), zap.String("path", res.Path),
				zap.String("error", res.Error))
			errs = append(errs, err)
		}
		results = append(results, res)
	}
	if len(errs) > 0 {
		return results, fmt.Errorf("%w: %w", sink.ErrIO, errors.Join(errs...))
	}
	return results, nil
}

func (em *ExportManager) save(ctx context.Context, t sink.Target, out model.Dataset) (model.ExportResult, error) {
	res := model.ExportResult{Path: t.Path, ExportedAt: time.Now()}
	if t.SheetURL != "" {
		res.Path = t.SheetURL
	}
	kind, err := t.ResolveKind()
	res.Type = kind
	if err == nil {
		var s sink.Sink
		if s, err = sink.Open(ctx, t, em.SinkOptions); err == nil {
			err = s.Save(ctx, out)
		}
	}
	if err != nil {
		res.Error = err.Error()
		return res, err
	}
	res.Success = true
	res.RecordCount = out.Len()
	return res, nil
}
