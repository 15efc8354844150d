package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-enrich-pipeline/internal/batch"
	"go-enrich-pipeline/internal/model"
	"go-enrich-pipeline/internal/sink"
)

func TestValidateSpec(t *testing.T) {
	ds := companies()
	negative := -1
	tests := []struct {
		name    string
		mutate  func(*model.JobSpec)
		ds      *model.Dataset
		wantErr string
	}{
		{name: "valid", ds: ds},
		{name: "missing marker", mutate: func(s *model.JobSpec) { s.QueryTemplate = "city" }, ds: ds, wantErr: "template"},
		{name: "two markers", mutate: func(s *model.JobSpec) { s.QueryTemplate = "{entity} {entity}" }, ds: ds, wantErr: "template"},
		{name: "no entity column", mutate: func(s *model.JobSpec) { s.EntityColumn = " " }, ds: ds, wantErr: "entity column"},
		{name: "unknown column", mutate: func(s *model.JobSpec) { s.EntityColumn = "name" }, ds: ds, wantErr: `"name"`},
		{name: "no source", ds: nil, wantErr: "source"},
		{name: "csv source", mutate: func(s *model.JobSpec) { s.Source = model.Source{Path: "in.csv"} }},
		{name: "sheet source", mutate: func(s *model.JobSpec) {
			s.Source = model.Source{SheetURL: "https://docs.google.com/spreadsheets/d/abcdefghijklmnopqrstuvwxyz/edit"}
		}},
		{name: "bad sheet url", mutate: func(s *model.JobSpec) { s.Source = model.Source{Type: "sheets", SheetURL: "nope"} }, wantErr: "Sheets URL"},
		{name: "bad export", mutate: func(s *model.JobSpec) { s.Export = &model.Export{File: "out.pdf"} }, ds: ds, wantErr: "export file"},
		{name: "bad delay", mutate: func(s *model.JobSpec) { s.Concurrency.RowDelay = "soon" }, ds: ds, wantErr: "row_delay"},
		{name: "negative retries", mutate: func(s *model.JobSpec) { s.Concurrency.MaxRetries = &negative }, ds: ds, wantErr: "max_retries"},
		{name: "bad transformation", mutate: func(s *model.JobSpec) { s.Transformations = []string{"reverse"} }, ds: ds, wantErr: "reverse"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := baseSpec("")
			if tt.mutate != nil {
				tt.mutate(&spec)
			}
			err := ValidateSpec(spec, tt.ds)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, ErrInvalidSpec)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestUsesSheets(t *testing.T) {
	const sheet = "https://docs.google.com/spreadsheets/d/abc123/edit"
	spec := baseSpec("out.csv")
	assert.False(t, UsesSheets(spec, companies()))

	spec.Source = model.Source{SheetURL: sheet}
	assert.True(t, UsesSheets(spec, nil))
	assert.False(t, UsesSheets(spec, companies()), "uploaded data replaces the source")

	spec.Source = model.Source{}
	spec.Export = &model.Export{SheetURL: sheet}
	assert.True(t, UsesSheets(spec, companies()))

	require.ErrorIs(t, checkSinks(spec, companies(), sink.Options{}), sink.ErrCredentialsRequired)
	assert.NoError(t, checkSinks(spec, companies(), sink.Options{CredentialsPath: "sa.json"}))
	assert.NoError(t, checkSinks(spec, companies(), sink.Options{SheetsEndpoint: "http://127.0.0.1:1"}))
}

func TestBuildOutput(t *testing.T) {
	ds := model.Dataset{
		Columns: []string{"name", "status"},
		Rows:    []model.Row{{"name": "Acme", "status": "lead"}, {"name": "Globex", "status": "client"}, {"name": "Initech", "status": ""}},
	}
	ok := model.Success(0, "Acme", map[string]string{"status": "Active", "ceo": batch.NotFound})
	ok.Retries = 1
	ok.QueryType = "Miscellaneous"
	ok.Hits = []model.SearchHit{{Title: "A", URL: "https://a.test", Snippet: "a"}, {Title: "B", URL: "https://b.test", Snippet: "b"}}
	failed := model.Failure(1, "Globex", model.ErrorSearchFailed, "search failed after 4 attempts")
	report := &model.BatchReport{Results: []model.RowResult{ok, failed}, Total: 3, Cancelled: true}

	out := BuildOutput(ds, report, []string{"status", "ceo"})

	assert.Equal(t, []string{"name", "status", "status_enriched", "ceo", "status_enriched_enriched", "error", "retries",
		"search_titles", "search_urls", "search_snippets", "query_type"}, out.Columns)
	assert.Equal(t, "lead", out.Rows[0]["status"])
	assert.Equal(t, "Active", out.Rows[0]["status_enriched"])
	assert.Equal(t, "success", out.Rows[0]["status_enriched_enriched"])
	assert.Equal(t, "1", out.Rows[0]["retries"])
	assert.Equal(t, "A, B", out.Rows[0]["search_titles"])
	assert.Equal(t, "https://a.test, https://b.test", out.Rows[0]["search_urls"])
	assert.Equal(t, "search failed after 4 attempts", out.Rows[1]["error"])
	assert.Equal(t, "", out.Rows[1]["ceo"])
	assert.Equal(t, StatusNotProcessed, out.Rows[2]["status_enriched_enriched"])

	assert.Equal(t, "lead", ds.Rows[0]["status"])
	assert.Len(t, ds.Rows[0], 2)
}

func TestTransformResult(t *testing.T) {
	res := model.Success(0, "Acme", map[string]string{
		"city":  "  new   york ",
		"email": "N/A",
		"ceo":   "unknown.",
	})
	got := TransformResult(res, []string{"title"})
	assert.Equal(t, map[string]string{"city": "New York", "email": batch.NotFound, "ceo": batch.NotFound}, got.Extracted)
	assert.Equal(t, "  new   york ", res.Extracted["city"])

	failed := model.Failure(1, "x", model.ErrorSearchFailed, "boom")
	assert.Equal(t, failed, TransformResult(failed, nil))
	assert.Equal(t, "ACME", applyTransformations("acme", []string{"uppercase"}))
	assert.Equal(t, "acme", applyTransformations("ACME", []string{"lowercase"}))
}

func TestMergeResults(t *testing.T) {
	report := &model.BatchReport{
		Total: 3,
		Results: []model.RowResult{
			model.Success(0, "a", nil),
			model.Failure(2, "c", model.ErrorExtractionFailed, "x"),
		},
	}
	retried := model.Success(2, "c", map[string]string{"f": "v"})
	retried.Retries = 1
	MergeResults(report, []model.RowResult{retried, model.Success(1, "b", nil)})

	require.Len(t, report.Results, 3)
	for i, r := range report.Results {
		assert.Equal(t, i, r.Row)
	}
	assert.Equal(t, 3, report.Succeeded)
	assert.Equal(t, 1, report.Retried)
	assert.False(t, report.Cancelled)
}

func TestSummarize(t *testing.T) {
	a := model.Success(0, "a", map[string]string{"email": "a@x.test", "phone": batch.NotFound})
	a.Attempts, a.QueryType = 2, "Contact Info"
	b := model.Success(1, "b", map[string]string{"email": batch.NotFound, "phone": batch.NotFound})
	b.Attempts, b.Retries, b.QueryType = 3, 1, "Contact Info"
	c := model.Failure(2, "", model.ErrorMissingEntity, "missing")

	s := Summarize([]model.RowResult{a, b, c}, []string{"phone", "email"})
	assert.Equal(t, 3, s.Rows)
	assert.Equal(t, 2, s.Succeeded)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, 1, s.Retried)
	assert.Equal(t, map[string]int{"missing_entity": 1}, s.ByReason)
	assert.Equal(t, map[string]int{"Contact Info": 2}, s.ByQueryType)
	assert.Equal(t, []FieldCoverage{
		{Field: "email", Found: 1, NotFound: 1, Rate: 0.5},
		{Field: "phone", Found: 0, NotFound: 2, Rate: 0},
	}, s.Fields)
	assert.InDelta(t, 5.0/3.0, s.AvgAttempts, 0.0001)
}

func TestTrackerSeverity(t *testing.T) {
	tr := NewTracker("job", 2, nil, nil)
	tr.Observe(0, model.Success(0, "a", nil))
	tr.Observe(1, model.Failure(1, "b", model.ErrorSearchFailed, "down"))
	tr.RecordError(StageExport, "io", "disk full", nil, 0)

	m := tr.Metrics()
	assert.Equal(t, 2, m.Processed)
	assert.InDelta(t, 100.0, m.Percent, 0.001)
	require.Len(t, m.Errors, 2)
	assert.Equal(t, StageSearch, m.Errors[0].Stage)
	assert.Equal(t, "high", m.Errors[0].Severity)
	assert.Equal(t, "critical", m.Errors[1].Severity)
}
