package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"go-enrich-pipeline/internal/batch"
	"go-enrich-pipeline/internal/model"
	"go-enrich-pipeline/internal/pipeline"
	"go-enrich-pipeline/internal/sink"
	"go-enrich-pipeline/internal/store"
	"go-enrich-pipeline/pkg/utils"
)

const (
	jobsPrefix  = "/api/v1/jobs/"
	previewRows = 5
)

// JobHandler serves the /api/v1 job endpoints.
type JobHandler struct {
	Manager        *pipeline.Manager
	Outputs        *utils.OutputManager
	MaxUploadBytes int64
	Logger         *zap.Logger
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// CreateJobResponse is returned when a job is accepted.
type CreateJobResponse struct {
	Message     string    `json:"message"`
	JobID       string    `json:"job_id"`
	Status      string    `json:"status"`
	Rows        int       `json:"rows,omitempty"`
	ProgressURL string    `json:"progress_url"`
	DownloadURL string    `json:"download_url"`
	CreatedAt   time.Time `json:"created_at"`
}

// PreviewResponse describes an uploaded dataset.
type PreviewResponse struct {
	FileName string      `json:"file_name"`
	Columns  []string    `json:"columns"`
	Rows     []model.Row `json:"rows"`
	Total    int         `json:"total"`
}

// SheetRequest names the Google Sheet a job's table is uploaded to.
type SheetRequest struct {
	SheetURL  string `json:"sheet_url"`
	SheetName string `json:"sheet_name,omitempty"`
}

// CreateJob creates a new enrichment job
// @Summary Create an enrichment job
// @Description Start a job from a JSON spec whose source names a file or sheet, or from a multipart upload with a "file" part and a "spec" JSON part.
// @Tags jobs
// @Accept json
// @Accept multipart/form-data
// @Produce json
// @Param job body model.JobSpec false "Job spec (JSON requests)"
// @Param file formData file false "CSV or XLSX dataset (multipart requests)"
// @Param spec formData string false "Job spec JSON (multipart requests)"
// @Success 202 {object} CreateJobResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /jobs [post]
func (h *JobHandler) CreateJob(w http.ResponseWriter, r *http.Request) {
	var (
		spec model.JobSpec
		ds   *model.Dataset
	)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		data, name, err := h.readUpload(w, r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		raw := r.FormValue("spec")
		if raw == "" {
			writeError(w, http.StatusBadRequest, "spec form field is required")
			return
		}
		if err := json.Unmarshal([]byte(raw), &spec); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid spec JSON: "+err.Error())
			return
		}
		if spec.Source.Type == "" {
			spec.Source = model.Source{Path: name}
		}
		ds = &data
	} else if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	jobID, err := h.Manager.Submit(r.Context(), spec, ds)
	if err != nil {
		h.fail(w, err)
		return
	}

	resp := CreateJobResponse{
		Message:     "Job created successfully",
		JobID:       jobID,
		Status:      model.JobPending,
		ProgressURL: jobsPrefix + jobID + "/progress",
		DownloadURL: h.Outputs.GetDownloadURL(jobID, sink.KindCSV),
		CreatedAt:   time.Now().UTC(),
	}
	if ds != nil {
		resp.Rows = ds.Len()
	}
	writeJSON(w, http.StatusAccepted, resp)
}

// PreviewDataset parses an uploaded file without starting a job
// @Summary Preview a dataset
// @Description Parse an uploaded CSV or XLSX file and return its headers and first rows, so the entity column can be chosen.
// @Tags datasets
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "CSV or XLSX dataset"
// @Success 200 {object} PreviewResponse
// @Failure 400 {object} ErrorResponse
// @Router /datasets/preview [post]
func (h *JobHandler) PreviewDataset(w http.ResponseWriter, r *http.Request) {
	ds, name, err := h.readUpload(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	head := ds.Head(previewRows)
	writeJSON(w, http.StatusOK, PreviewResponse{FileName: name, Columns: ds.Columns, Rows: head.Rows, Total: ds.Len()})
}

// ListJobs retrieves all jobs
// @Summary List jobs
// @Description Get every job with its current status, newest first
// @Tags jobs
// @Produce json
// @Success 200 {array} model.JobRecord
// @Failure 500 {object} ErrorResponse
// @Router /jobs [get]
func (h *JobHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.Manager.List(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}

// GetJob retrieves a specific job
// @Summary Get job
// @Description Retrieve a job's spec, status and counts
// @Tags jobs
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} model.JobRecord
// @Failure 404 {object} ErrorResponse
// @Router /jobs/{id} [get]
func (h *JobHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.Manager.Get(r.Context(), jobID(r))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// GetJobProgress retrieves live progress
// @Summary Get job progress
// @Description Live counts, rate and errors of a job
// @Tags jobs
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} model.JobMetrics
// @Failure 404 {object} ErrorResponse
// @Router /jobs/{id}/progress [get]
func (h *JobHandler) GetJobProgress(w http.ResponseWriter, r *http.Request) {
	metrics, err := h.Manager.Progress(r.Context(), jobID(r))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, metrics)
}

// GetJobResults retrieves row results
// @Summary Get job results
// @Description Row results recorded so far, in row order
// @Tags jobs
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} map[string]interface{} "Row results"
// @Failure 404 {object} ErrorResponse
// @Router /jobs/{id}/results [get]
func (h *JobHandler) GetJobResults(w http.ResponseWriter, r *http.Request) {
	id := jobID(r)
	results, err := h.Manager.Results(r.Context(), id)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"job_id":  id,
		"results": results,
		"count":   len(results),
	})
}

// GetJobErrors retrieves errors for a job
// @Summary Get job errors
// @Description Retrieve all errors recorded while the job ran
// @Tags jobs
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} map[string]interface{} "Job errors"
// @Failure 404 {object} ErrorResponse
// @Router /jobs/{id}/errors [get]
func (h *JobHandler) GetJobErrors(w http.ResponseWriter, r *http.Request) {
	id := jobID(r)
	errs, err := h.Manager.Errors(r.Context(), id)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"job_id": id,
		"errors": errs,
		"count":  len(errs),
	})
}

// GetJobSummary aggregates a job's results
// @Summary Get job summary
// @Description Failure reasons, query types and per-field coverage of a job
// @Tags jobs
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} pipeline.Summary
// @Failure 404 {object} ErrorResponse
// @Router /jobs/{id}/summary [get]
func (h *JobHandler) GetJobSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.Manager.Summary(r.Context(), jobID(r))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// ExportJob downloads the enriched table
// @Summary Download enriched table
// @Description Download a finished job's enriched table as CSV or XLSX
// @Tags jobs
// @Produce application/octet-stream
// @Param id path string true "Job ID"
// @Param format query string false "csv (default) or xlsx"
// @Success 200 {file} file "Enriched table"
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /jobs/{id}/export [get]
func (h *JobHandler) ExportJob(w http.ResponseWriter, r *http.Request) {
	id := jobID(r)
	format := strings.ToLower(r.URL.Query().Get("format"))
	if format == "" {
		format = sink.KindCSV
	}
	if format != sink.KindCSV && format != sink.KindXLSX {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unsupported format %q", format))
		return
	}

	// Encode into a buffer so failures can still be reported as JSON.
	var buf bytes.Buffer
	if err := h.Manager.Export(r.Context(), id, format, &buf); err != nil {
		h.fail(w, err)
		return
	}

	contentType := "text/csv"
	if format == sink.KindXLSX {
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"enriched_%s.%s\"", utils.ShortID(id), format))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		h.logger().Warn("export: write failed", zap.String("job_id", id), zap.Error(err))
	}
}

// UploadJobToSheet writes the enriched table to a Google Sheet
// @Summary Upload to Google Sheets
// @Description Write a finished job's enriched table to a Google Sheet, replacing its contents
// @Tags jobs
// @Accept json
// @Produce json
// @Param id path string true "Job ID"
// @Param sheet body SheetRequest true "Target sheet"
// @Success 200 {object} model.ExportResult
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Router /jobs/{id}/sheets [post]
func (h *JobHandler) UploadJobToSheet(w http.ResponseWriter, r *http.Request) {
	var req SheetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	if _, err := sink.SpreadsheetID(req.SheetURL); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := h.Manager.UploadToSheet(r.Context(), jobID(r), req.SheetURL, req.SheetName)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// CancelJob cancels a running job
// @Summary Cancel job
// @Description Stop a running job. Completed rows are kept and exported.
// @Tags jobs
// @Produce json
// @Param id path string true "Job ID"
// @Success 202 {object} map[string]interface{} "Cancellation requested"
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /jobs/{id}/cancel [post]
func (h *JobHandler) CancelJob(w http.ResponseWriter, r *http.Request) {
	id := jobID(r)
	if err := h.Manager.Cancel(r.Context(), id); err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"message": "Cancellation requested",
		"job_id":  id,
	})
}

// RetryJob re-runs a job's failed rows
// @Summary Retry failed rows
// @Description Re-run the search and extraction failures of a finished job, then re-export it
// @Tags jobs
// @Produce json
// @Param id path string true "Job ID"
// @Success 202 {object} map[string]interface{} "Retry started"
// @Success 200 {object} map[string]interface{} "Nothing to retry"
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /jobs/{id}/retry [post]
func (h *JobHandler) RetryJob(w http.ResponseWriter, r *http.Request) {
	id := jobID(r)
	n, err := h.Manager.RetryFailed(r.Context(), id)
	if err != nil {
		h.fail(w, err)
		return
	}
	if n == 0 {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"message": "No failed rows to retry",
			"job_id":  id,
			"rows":    0,
		})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"message": "Retry initiated",
		"job_id":  id,
		"rows":    n,
		"status":  model.JobRunning,
	})
}

// DeleteJob deletes a job and its artifacts
// @Summary Delete job
// @Description Cancel the job if needed and delete it with its results and output files
// @Tags jobs
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} map[string]interface{} "Job deleted"
// @Failure 404 {object} ErrorResponse
// @Router /jobs/{id} [delete]
func (h *JobHandler) DeleteJob(w http.ResponseWriter, r *http.Request) {
	id := jobID(r)
	if err := h.Manager.Delete(r.Context(), id); err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Job deleted successfully",
		"job_id":  id,
	})
}

// Health reports liveness
// @Summary Health check
// @Tags system
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// readUpload parses the multipart "file" part into a dataset.
func (h *JobHandler) readUpload(w http.ResponseWriter, r *http.Request) (model.Dataset, string, error) {
	limit := h.MaxUploadBytes
	if limit <= 0 {
		limit = 32 << 20
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		return model.Dataset{}, "", fmt.Errorf("invalid upload: %w", err)
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return model.Dataset{}, "", errors.New("file form field is required")
	}
	defer file.Close()

	ds, err := sink.Decode(header.Filename, file)
	if err != nil {
		return model.Dataset{}, "", err
	}
	return ds, header.Filename, nil
}

func (h *JobHandler) fail(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger().Error("request failed", zap.Error(err))
	}
	writeError(w, status, err.Error())
}

func (h *JobHandler) logger() *zap.Logger {
	if h.Logger == nil {
		return zap.NewNop()
	}
	return h.Logger
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrJobNotFound):
		return http.StatusNotFound
	case errors.Is(err, pipeline.ErrInvalidSpec),
		errors.Is(err, batch.ErrInvalidTemplate),
		errors.Is(err, batch.ErrMissingEntityColumn),
		errors.Is(err, sink.ErrUnsupportedFormat),
		errors.Is(err, sink.ErrInvalidSheetURL):
		return http.StatusBadRequest
	case errors.Is(err, pipeline.ErrJobRunning),
		errors.Is(err, pipeline.ErrJobFinished),
		errors.Is(err, pipeline.ErrResultsUnavailable):
		return http.StatusConflict
	case errors.Is(err, sink.ErrCredentialsRequired):
		return http.StatusServiceUnavailable
	case errors.Is(err, sink.ErrIO):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// jobID extracts {id} from /api/v1/jobs/{id}[/...].
func jobID(r *http.Request) string {
	rest := strings.TrimPrefix(r.URL.Path, jobsPrefix)
	if i := strings.Index(rest, "/"); i >= 0 {
		rest = rest[:i]
	}
	return rest
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
