package api

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-enrich-pipeline/internal/api/handler"
	"go-enrich-pipeline/internal/batch"
	"go-enrich-pipeline/internal/model"
	"go-enrich-pipeline/internal/pipeline"
	"go-enrich-pipeline/internal/provider"
	"go-enrich-pipeline/internal/store"
	"go-enrich-pipeline/pkg/router"
	"go-enrich-pipeline/pkg/utils"
)

type server struct {
	http    http.Handler
	manager *pipeline.Manager
}

func newServer(t *testing.T) *server {
	t.Helper()
	dir := t.TempDir()
	st, err := store.Open(filepath.Join(dir, "enrich.db"))
	require.NoError(t, err)

	search := provider.SearchFunc(func(ctx context.Context, query string) (provider.SearchResult, error) {
		return provider.SearchResult{Query: query, Hits: []model.SearchHit{{Title: "t", URL: "https://x.test", Snippet: "s"}}}, nil
	})
	extract := provider.ExtractFunc(func(ctx context.Context, req provider.ExtractRequest) (map[string]string, error) {
		return map[string]string{"email": strings.ToLower(req.Entity) + "@example.test"}, nil
	})
	outputs := filepath.Join(dir, "output")
	m := pipeline.NewManager(search, extract, st, pipeline.Config{
		Retry:     model.RetryConfig{MaxRetries: 0},
		OutputDir: outputs,
		RunnerOptions: []batch.Option{batch.WithSleep(func(ctx context.Context, _ time.Duration) error {
			return ctx.Err()
		})},
	}, nil)
	t.Cleanup(func() {
		_ = m.Shutdown(context.Background())
		_ = st.Close()
	})

	r := router.New(nil)
	RegisterRoutes(r, &handler.JobHandler{Manager: m, Outputs: utils.NewOutputManager(outputs)})
	return &server{http: r.Handler(nil), manager: m}
}

func (s *server) do(t *testing.T, method, path string, body []byte, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	s.http.ServeHTTP(rec, req)
	return rec
}

func upload(t *testing.T, filename, content string, spec *model.JobSpec) ([]byte, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	if spec != nil {
		raw, err := json.Marshal(spec)
		require.NoError(t, err)
		require.NoError(t, mw.WriteField("spec", string(raw)))
	}
	require.NoError(t, mw.Close())
	return buf.Bytes(), mw.FormDataContentType()
}

func TestPreviewDataset(t *testing.T) {
	s := newServer(t)
	body, ct := upload(t, "people.csv", "name,company\nAda,Acme\nGrace,Globex\n", nil)

	rec := s.do(t, http.MethodPost, "/api/v1/datasets/preview", body, ct)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp handler.PreviewResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []string{"name", "company"}, resp.Columns)
	assert.Equal(t, 2, resp.Total)
	assert.Equal(t, "Grace", resp.Rows[1]["name"])

	body, ct = upload(t, "people.txt", "x", nil)
	rec = s.do(t, http.MethodPost, "/api/v1/datasets/preview", body, ct)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestJobLifecycle(t *testing.T) {
	s := newServer(t)
	spec := &model.JobSpec{EntityColumn: "name", QueryTemplate: "{entity} email address", Fields: []string{"email"}}
	body, ct := upload(t, "people.csv", "name\nAda\nGrace\n", spec)

	rec := s.do(t, http.MethodPost, "/api/v1/jobs", body, ct)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	var created handler.CreateJobResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, 2, created.Rows)
	assert.Equal(t, "/api/v1/jobs/"+created.JobID+"/progress", created.ProgressURL)

	require.NoError(t, s.manager.Wait(context.Background(), created.JobID))

	rec = s.do(t, http.MethodGet, "/api/v1/jobs/"+created.JobID, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var job model.JobRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
	assert.Equal(t, model.JobCompleted, job.Status)
	assert.Equal(t, 2, job.Succeeded)

	rec = s.do(t, http.MethodGet, "/api/v1/jobs/"+created.JobID+"/progress", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var metrics model.JobMetrics
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &metrics))
	assert.Equal(t, 2, metrics.Processed)

	rec = s.do(t, http.MethodGet, "/api/v1/jobs/"+created.JobID+"/summary", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var summary pipeline.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, map[string]int{"Contact Info": 2}, summary.ByQueryType)

	rec = s.do(t, http.MethodGet, "/api/v1/jobs/"+created.JobID+"/export", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	records, err := csv.NewReader(rec.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"name", "email"}, records[0][:2])
	assert.Equal(t, "ada@example.test", records[1][1])

	rec = s.do(t, http.MethodGet, "/api/v1/jobs/"+created.JobID+"/export?format=xlsx", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), ".xlsx")

	rec = s.do(t, http.MethodGet, "/api/v1/jobs/"+created.JobID+"/export?format=pdf", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/jobs/"+created.JobID+"/retry", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/jobs/"+created.JobID+"/cancel", nil, "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/jobs", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var jobs []model.JobRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &jobs))
	assert.Len(t, jobs, 1)

	rec = s.do(t, http.MethodDelete, "/api/v1/jobs/"+created.JobID, nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = s.do(t, http.MethodGet, "/api/v1/jobs/"+created.JobID, nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateJobRejectsBadSpec(t *testing.T) {
	s := newServer(t)

	spec := &model.JobSpec{EntityColumn: "missing", QueryTemplate: "{entity}"}
	body, ct := upload(t, "people.csv", "name\nAda\n", spec)
	rec := s.do(t, http.MethodPost, "/api/v1/jobs", body, ct)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "missing")

	raw, _ := json.Marshal(model.JobSpec{EntityColumn: "name", QueryTemplate: "no marker", Source: model.Source{Path: "in.csv"}})
	rec = s.do(t, http.MethodPost, "/api/v1/jobs", raw, "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/jobs", []byte("{"), "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUnknownJob(t *testing.T) {
	s := newServer(t)
	for _, path := range []string{"/api/v1/jobs/nope", "/api/v1/jobs/nope/progress", "/api/v1/jobs/nope/results",
		"/api/v1/jobs/nope/errors", "/api/v1/jobs/nope/summary", "/api/v1/jobs/nope/export"} {
		rec := s.do(t, http.MethodGet, path, nil, "")
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
	}
	rec := s.do(t, http.MethodPost, "/api/v1/jobs/nope/sheets", []byte(`{"sheet_url":"bad"}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSwaggerAndHealth(t *testing.T) {
	s := newServer(t)
	rec := s.do(t, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/swagger/doc.json", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/jobs/{id}/export")
}
