package pipeline

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"go-enrich-pipeline/internal/model"
)

// Error stages recorded on a job.
const (
	StageLoad    = "load"
	StageSearch  = "search"
	StageExtract = "extract"
	StageExport  = "export"
)

// ErrorSink persists error details. *store.Store satisfies it.
type ErrorSink interface {
	SaveJobError(ctx context.Context, jobID string, detail model.ErrorDetail) error
}

// Tracker keeps the live metrics of one job.
type Tracker struct {
	mu      sync.RWMutex
	metrics model.JobMetrics
	errors  ErrorSink
	logger  *zap.Logger
}

// NewTracker starts tracking a job of total rows.
func NewTracker(jobID string, total int, errors ErrorSink, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{
		metrics: model.JobMetrics{
			JobID:     jobID,
			Status:    model.JobPending,
			Total:     total,
			StartTime: time.Now(),
			Errors:    []model.ErrorDetail{},
		},
		errors: errors,
		logger: logger,
	}
}

// SetTotal updates the row count once the dataset is loaded.
func (t *Tracker) SetTotal(total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.metrics.Total = total
}

// SetStatus records a status transition.
func (t *Tracker) SetStatus(status string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.metrics.Status = status
}

// Observe counts a finished row and records its failure, if any.
func (t *Tracker) Observe(row int, res model.RowResult) {
	t.mu.Lock()
	t.metrics.Processed++
	if res.Succeeded() {
		t.metrics.Succeeded++
	} else {
		t.metrics.Failed++
	}
	if res.Retries > 0 {
		t.metrics.Retried++
	}
	t.mu.Unlock()

	if !res.Succeeded() {
		r := row
		t.RecordError(stageFor(res.Reason), string(res.Reason), res.Message, &r, res.Retries)
	}
}

// RecordError keeps an error detail and persists it.
func (t *Tracker) RecordError(stage, errorType, message string, row *int, retries int) {
	detail := model.ErrorDetail{
		Timestamp:  time.Now(),
		Stage:      stage,
		Row:        row,
		ErrorType:  errorType,
		Message:    message,
		RetryCount: retries,
		Severity:   determineSeverity(errorType, stage),
	}

	t.mu.Lock()
	t.metrics.Errors = append(t.metrics.Errors, detail)
	jobID := t.metrics.JobID
	t.mu.Unlock()

	if t.errors != nil {
		if err := t.errors.SaveJobError(context.Background(), jobID, detail); err != nil {
			t.logger.Warn("tracker: failed to persist error", zap.String("job_id", jobID), zap.Error(err))
		}
	}
	if detail.Severity == "critical" {
		t.logger.Error("job error", zap.String("job_id", jobID), zap.String("stage", stage), zap.String("message", message))
	}
}

// Reset replaces the counters with a report's tally, used after failed rows
// are re-run.
func (t *Tracker) Reset(report *model.BatchReport) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.metrics.Processed = report.Len()
	t.metrics.Succeeded = report.Succeeded
	t.metrics.Failed = report.Failed
	t.metrics.Retried = report.Retried
	t.metrics.EndTime = nil
}

// Finish stamps the end time with a terminal status.
func (t *Tracker) Finish(status string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := time.Now()
	t.metrics.EndTime = &now
	t.metrics.Status = status
}

// Metrics returns a snapshot with the derived fields filled in.
func (t *Tracker) Metrics() model.JobMetrics {
	t.mu.RLock()
	defer t.mu.RUnlock()

	m := t.metrics
	m.Errors = append([]model.ErrorDetail(nil), t.metrics.Errors...)
	end := time.Now()
	if m.EndTime != nil {
		end = *m.EndTime
	}
	m.Duration = end.Sub(m.StartTime)
	if m.Duration > 0 {
		m.RowsPerSecond = float64(m.Processed) / m.Duration.Seconds()
	}
	if m.Total > 0 {
		m.Percent = float64(m.Processed) / float64(m.Total) * 100
	}
	return m
}

func stageFor(reason model.ErrorKind) string {
	switch reason {
	case model.ErrorExtractionFailed:
		return StageExtract
	case model.ErrorMissingEntity, model.ErrorInvalidTemplate:
		return StageLoad
	default:
		return StageSearch
	}
}

// determineSeverity ranks an error for the dashboard.
func determineSeverity(errorType, stage string) string {
	switch {
	case stage == StageExport || stage == StageLoad && errorType != string(model.ErrorMissingEntity):
		return "critical"
	case errorType == string(model.ErrorSearchFailed) || errorType == string(model.ErrorExtractionFailed):
		return "high"
	case errorType == string(model.ErrorMissingEntity):
		return "medium"
	default:
		return "low"
	}
}
