package pipeline

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"go-enrich-pipeline/internal/batch"
	"go-enrich-pipeline/internal/model"
	"go-enrich-pipeline/internal/provider"
	"go-enrich-pipeline/internal/sink"
	"go-enrich-pipeline/internal/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func noSleep(ctx context.Context, d time.Duration) error { return ctx.Err() }

func staticSearch() provider.SearchProvider {
	return provider.SearchFunc(func(ctx context.Context, query string) (provider.SearchResult, error) {
		return provider.SearchResult{Query: query, Hits: []model.SearchHit{
			{Title: "Result for " + query, URL: "https://example.test", Snippet: "snippet"},
		}}, nil
	})
}

func cityExtract() provider.ExtractionProvider {
	return provider.ExtractFunc(func(ctx context.Context, req provider.ExtractRequest) (map[string]string, error) {
		return map[string]string{"city": "  Springfield  "}, nil
	})
}

type harness struct {
	store   *store.Store
	manager *Manager
	dir     string
}

func newHarness(t *testing.T, search provider.SearchProvider, extract provider.ExtractionProvider) *harness {
	t.Helper()
	dir := t.TempDir()
	st, err := store.Open(filepath.Join(dir, "enrich.db"))
	require.NoError(t, err)

	m := NewManager(search, extract, st, Config{
		Retry:         model.RetryConfig{MaxRetries: 1, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond, Multiplier: 1},
		Workers:       1,
		OutputDir:     filepath.Join(dir, "output"),
		RunnerOptions: []batch.Option{batch.WithSleep(noSleep)},
	}, nil)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = m.Shutdown(ctx)
		_ = st.Close()
	})
	return &harness{store: st, manager: m, dir: dir}
}

func companies() *model.Dataset {
	return &model.Dataset{
		Columns: []string{"company"},
		Rows: []model.Row{
			{"company": "Acme"},
			{"company": ""},
			{"company": "Globex"},
		},
	}
}

func baseSpec(export string) model.JobSpec {
	spec := model.JobSpec{
		EntityColumn:  "company",
		QueryTemplate: "headquarters city of {entity}",
		Fields:        []string{"city"},
	}
	if export != "" {
		spec.Export = &model.Export{File: export}
	}
	return spec
}

func TestRunExportsEnrichedTable(t *testing.T) {
	h := newHarness(t, staticSearch(), cityExtract())
	out := filepath.Join(h.dir, "exports", "enriched.csv")

	res, err := h.manager.Run(context.Background(), baseSpec(out), companies())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Report.Succeeded)
	assert.Equal(t, 1, res.Report.Failed)
	require.Len(t, res.Exports, 1)
	assert.True(t, res.Exports[0].Success)

	saved, err := (&sink.CSV{Path: out}).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"company", "city", ColumnStatus, ColumnError, ColumnRetries,
		ColumnSearchTitles, ColumnSearchURLs, ColumnSearchSnippets, ColumnQueryType}, saved.Columns)
	assert.Equal(t, "Springfield", saved.Rows[0]["city"])
	assert.Equal(t, "success", saved.Rows[0][ColumnStatus])
	assert.Equal(t, "Miscellaneous", saved.Rows[0][ColumnQueryType])
	assert.Equal(t, "failure", saved.Rows[1][ColumnStatus])
	assert.Contains(t, saved.Rows[1][ColumnError], "no value")

	job, err := h.manager.Get(context.Background(), res.JobID)
	require.NoError(t, err)
	assert.Equal(t, model.JobCompleted, job.Status)
	assert.Equal(t, 3, job.Total)

	results, err := h.manager.Results(context.Background(), res.JobID)
	require.NoError(t, err)
	assert.Len(t, results, 3)

	errs, err := h.manager.Errors(context.Background(), res.JobID)
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, string(model.ErrorMissingEntity), errs[0].ErrorType)
}

func TestSheetsWithoutCredentialsFailsFast(t *testing.T) {
	const sheet = "https://docs.google.com/spreadsheets/d/abc123/edit"
	exportSpec := baseSpec("")
	exportSpec.Export = &model.Export{SheetURL: sheet}
	sourceSpec := baseSpec("")
	sourceSpec.Source = model.Source{SheetURL: sheet}

	tests := []struct {
		name string
		spec model.JobSpec
		ds   *model.Dataset
	}{
		{"sheet export", exportSpec, companies()},
		{"sheet source", sourceSpec, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int64
			search := provider.SearchFunc(func(ctx context.Context, query string) (provider.SearchResult, error) {
				calls.Add(1)
				return provider.SearchResult{Query: query}, nil
			})
			extract := provider.ExtractFunc(func(ctx context.Context, req provider.ExtractRequest) (map[string]string, error) {
				calls.Add(1)
				return nil, nil
			})
			h := newHarness(t, search, extract)

			_, err := h.manager.Run(context.Background(), tt.spec, tt.ds)
			require.ErrorIs(t, err, sink.ErrCredentialsRequired)
			_, err = h.manager.Submit(context.Background(), tt.spec, tt.ds)
			require.ErrorIs(t, err, sink.ErrCredentialsRequired)

			assert.Zero(t, calls.Load())
			jobs, err := h.manager.List(context.Background())
			require.NoError(t, err)
			assert.Empty(t, jobs)
		})
	}
}

func TestRunDefaultExportPath(t *testing.T) {
	h := newHarness(t, staticSearch(), cityExtract())

	res, err := h.manager.Run(context.Background(), baseSpec(""), companies())
	require.NoError(t, err)
	require.Len(t, res.Exports, 1)
	assert.True(t, strings.HasPrefix(res.Exports[0].Path, filepath.Join(h.dir, "output", res.JobID)))
	_, err = os.Stat(res.Exports[0].Path)
	assert.NoError(t, err)
}

func TestRunRejectsInvalidSpec(t *testing.T) {
	h := newHarness(t, staticSearch(), cityExtract())

	spec := baseSpec("")
	spec.QueryTemplate = "no marker"
	_, err := h.manager.Run(context.Background(), spec, companies())
	require.ErrorIs(t, err, ErrInvalidSpec)
	assert.ErrorIs(t, err, batch.ErrInvalidTemplate)

	jobs, err := h.manager.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, jobs)
}

func TestExportFailureKeepsReport(t *testing.T) {
	h := newHarness(t, staticSearch(), cityExtract())
	blocker := filepath.Join(h.dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	res, err := h.manager.Run(context.Background(), baseSpec(filepath.Join(blocker, "out.csv")), companies())
	require.ErrorIs(t, err, sink.ErrIO)
	require.NotNil(t, res)
	assert.Equal(t, 2, res.Report.Succeeded)

	job, err := h.manager.Get(context.Background(), res.JobID)
	require.NoError(t, err)
	assert.Equal(t, model.JobFailed, job.Status)

	var buf bytes.Buffer
	require.NoError(t, h.manager.Export(context.Background(), res.JobID, "csv", &buf))
	assert.Contains(t, buf.String(), "Springfield")
}

func TestLoadsSourceFile(t *testing.T) {
	h := newHarness(t, staticSearch(), cityExtract())
	src := filepath.Join(h.dir, "in.csv")
	require.NoError(t, os.WriteFile(src, []byte("company\nAcme\n"), 0o644))

	spec := baseSpec("")
	spec.Source = model.Source{Type: "csv", Path: src}
	res, err := h.manager.Run(context.Background(), spec, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Report.Succeeded)

	spec.EntityColumn = "name"
	_, err = h.manager.Run(context.Background(), spec, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `entity column "name"`)
}

func TestSubmitCancel(t *testing.T) {
	started := make(chan struct{})
	search := provider.SearchFunc(func(ctx context.Context, query string) (provider.SearchResult, error) {
		if strings.Contains(query, "Acme") {
			return provider.SearchResult{Query: query}, nil
		}
		close(started)
		<-ctx.Done()
		return provider.SearchResult{}, ctx.Err()
	})
	h := newHarness(t, search, cityExtract())

	ds := &model.Dataset{Columns: []string{"company"}, Rows: []model.Row{{"company": "Acme"}, {"company": "Globex"}, {"company": "Initech"}}}
	id, err := h.manager.Submit(context.Background(), baseSpec(""), ds)
	require.NoError(t, err)

	<-started
	require.NoError(t, h.manager.Cancel(context.Background(), id))
	require.NoError(t, h.manager.Wait(context.Background(), id))

	job, err := h.manager.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, model.JobCancelled, job.Status)
	assert.True(t, job.Cancelled)

	results, err := h.manager.Results(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Acme", results[0].Entity)

	out, err := h.manager.Output(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, StatusNotProcessed, out.Rows[2][ColumnStatus])

	assert.ErrorIs(t, h.manager.Cancel(context.Background(), id), ErrJobFinished)

	metrics, err := h.manager.Progress(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 1, metrics.Processed)
	assert.Equal(t, model.JobCancelled, metrics.Status)
}

func TestRetryFailed(t *testing.T) {
	var calls atomic.Int32
	extract := provider.ExtractFunc(func(ctx context.Context, req provider.ExtractRequest) (map[string]string, error) {
		if req.Entity == "Globex" && calls.Add(1) <= 2 {
			return nil, provider.NewTransient("fake", errors.New("overloaded"))
		}
		return map[string]string{"city": "Springfield"}, nil
	})
	h := newHarness(t, staticSearch(), extract)

	res, err := h.manager.Run(context.Background(), baseSpec(""), companies())
	require.NoError(t, err)
	require.Equal(t, 1, res.Report.Succeeded)
	assert.Equal(t, []int{2}, FailedRows(res.Report))

	n, err := h.manager.RetryFailed(context.Background(), res.JobID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.NoError(t, h.manager.Wait(context.Background(), res.JobID))

	job, err := h.manager.Get(context.Background(), res.JobID)
	require.NoError(t, err)
	assert.Equal(t, model.JobCompleted, job.Status)
	assert.Equal(t, 2, job.Succeeded)
	assert.Equal(t, 1, job.Failed)

	results, err := h.manager.Results(context.Background(), res.JobID)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.True(t, results[2].Succeeded())
	assert.Equal(t, model.ErrorMissingEntity, results[1].Reason)

	n, err = h.manager.RetryFailed(context.Background(), res.JobID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestForeignJobsComeFromStore(t *testing.T) {
	h := newHarness(t, staticSearch(), cityExtract())
	res, err := h.manager.Run(context.Background(), baseSpec(""), companies())
	require.NoError(t, err)

	other := NewManager(staticSearch(), cityExtract(), h.store, Config{OutputDir: h.dir}, nil)
	defer func() { _ = other.Shutdown(context.Background()) }()

	metrics, err := other.Progress(context.Background(), res.JobID)
	require.NoError(t, err)
	assert.Equal(t, 3, metrics.Processed)
	assert.InDelta(t, 100.0, metrics.Percent, 0.001)
	assert.NotNil(t, metrics.EndTime)

	_, err = other.Output(context.Background(), res.JobID)
	assert.ErrorIs(t, err, ErrResultsUnavailable)

	_, err = other.Progress(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrJobNotFound)

	summary, err := other.Summary(context.Background(), res.JobID)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Succeeded)
}

func TestDelete(t *testing.T) {
	h := newHarness(t, staticSearch(), cityExtract())
	res, err := h.manager.Run(context.Background(), baseSpec(""), companies())
	require.NoError(t, err)

	require.NoError(t, h.manager.Delete(context.Background(), res.JobID))
	_, err = h.manager.Get(context.Background(), res.JobID)
	assert.ErrorIs(t, err, store.ErrJobNotFound)
	_, err = os.Stat(filepath.Join(h.dir, "output", res.JobID))
	assert.True(t, os.IsNotExist(err))
}
