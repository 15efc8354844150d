// Package pipeline runs enrichment jobs: load the dataset, drive it through the
// batch runner, build the enriched table, export it and record the job.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"go-enrich-pipeline/internal/batch"
	"go-enrich-pipeline/internal/model"
	"go-enrich-pipeline/internal/provider"
	"go-enrich-pipeline/internal/sink"
	"go-enrich-pipeline/internal/store"
	"go-enrich-pipeline/pkg/utils"
)

var (
	// ErrJobRunning is returned for operations that need a finished job.
	ErrJobRunning = errors.New("job is still running")
	// ErrJobFinished is returned when cancelling a job that already ended.
	ErrJobFinished = errors.New("job already finished")
	// ErrResultsUnavailable is returned when a job's table is no longer in memory,
	// e.g. after a restart.
	ErrResultsUnavailable = errors.New("job results are not available in this process")
)

// Config holds the defaults a job spec may override.
type Config struct {
	Retry         model.RetryConfig
	Workers       int
	RowDelay      time.Duration
	OutputDir     string
	SinkOptions   sink.Options
	RunnerOptions []batch.Option // appended last; tests use batch.WithSleep
}

// Result is what a finished run produced.
type Result struct {
	JobID   string
	Report  *model.BatchReport
	Output  model.Dataset
	Exports []model.ExportResult
}

// Job is an in-process job.
type Job struct {
	ID      string
	Spec    model.JobSpec
	tracker *Tracker

	mu      sync.RWMutex
	cancel  context.CancelFunc
	done    chan struct{}
	dataset model.Dataset
	loaded  bool
	report  *model.BatchReport
	output  model.Dataset
	exports []model.ExportResult
}

func (j *Job) running() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	select {
	case <-j.done:
		return false
	default:
		return true
	}
}

func (j *Job) setCancel(cancel context.CancelFunc) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.cancel = cancel
}

func (j *Job) result() *Result {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return &Result{JobID: j.ID, Report: j.report, Output: j.output, Exports: j.exports}
}

// Manager owns the jobs of this process.
type Manager struct {
	search  provider.SearchProvider
	extract provider.ExtractionProvider
	store   *store.Store
	cfg     Config
	outputs *utils.OutputManager
	logger  *zap.Logger

	baseCtx context.Context
	stop    context.CancelFunc
	wg      sync.WaitGroup

	mu   sync.RWMutex
	jobs map[string]*Job
}

// NewManager creates a Manager. Jobs started with Submit run until done,
// cancelled, or Shutdown.
func NewManager(search provider.SearchProvider, extract provider.ExtractionProvider, st *store.Store, cfg Config, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	ctx, stop := context.WithCancel(context.Background())
	return &Manager{
		search:  search,
		extract: extract,
		store:   st,
		cfg:     cfg,
		outputs: utils.NewOutputManager(cfg.OutputDir),
		logger:  logger,
		baseCtx: ctx,
		stop:    stop,
		jobs:    make(map[string]*Job),
	}
}

// Submit validates spec, records the job and runs it in the background. ds is
// the uploaded dataset; when nil the job loads spec.Source itself.
func (m *Manager) Submit(ctx context.Context, spec model.JobSpec, ds *model.Dataset) (string, error) {
	job, err := m.register(ctx, spec, ds)
	if err != nil {
		return "", err
	}

	jobCtx, cancel := context.WithCancel(m.baseCtx)
	job.setCancel(cancel)
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer cancel()
		if _, err := m.execute(jobCtx, job, ds); err != nil {
			m.logger.Warn("job ended with error", zap.String("job_id", job.ID), zap.Error(err))
		}
	}()
	return job.ID, nil
}

// Run executes a job synchronously. A Result is returned whenever the batch
// ran, even when exporting failed.
func (m *Manager) Run(ctx context.Context, spec model.JobSpec, ds *model.Dataset) (*Result, error) {
	job, err := m.register(ctx, spec, ds)
	if err != nil {
		return nil, err
	}
	jobCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	job.setCancel(cancel)
	return m.execute(jobCtx, job, ds)
}

func (m *Manager) register(ctx context.Context, spec model.JobSpec, ds *model.Dataset) (*Job, error) {
	if err := ValidateSpec(spec, ds); err != nil {
		return nil, err
	}
	if err := checkSinks(spec, ds, m.cfg.SinkOptions); err != nil {
		return nil, err
	}
	id := uuid.NewString()
	if err := m.store.SaveJob(ctx, id, spec); err != nil {
		return nil, fmt.Errorf("failed to save job: %w", err)
	}

	total := 0
	if ds != nil {
		total = ds.Len()
	}
	job := &Job{
		ID:      id,
		Spec:    spec,
		tracker: NewTracker(id, total, m.store, m.logger),
		done:    make(chan struct{}),
	}
	m.mu.Lock()
	m.jobs[id] = job
	m.mu.Unlock()

	m.logger.Info("job submitted", zap.String("job_id", id), zap.Int("rows", total),
		zap.String("entity_column", spec.EntityColumn))
	return job, nil
}

func (m *Manager) execute(ctx context.Context, job *Job, ds *model.Dataset) (res *Result, err error) {
	logger := m.logger.With(zap.String("job_id", job.ID))
	start := time.Now()
	defer func() {
		job.mu.Lock()
		close(job.done)
		job.mu.Unlock()
		logger.Info("job finished", zap.Duration("duration", time.Since(start)), zap.Error(err))
	}()

	if timeout := utils.ParseDuration(job.Spec.Concurrency.JobTimeout, 0); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	m.setStatus(job, model.JobLoading, "")
	var dataset model.Dataset
	if ds != nil {
		dataset = *ds
	} else {
		dataset, err = LoadDataset(ctx, job.Spec.Source, m.cfg.SinkOptions, logger)
		if err == nil {
			err = ValidateSpec(job.Spec, &dataset)
		}
		if err != nil {
			job.tracker.RecordError(StageLoad, "io", err.Error(), nil, 0)
			m.fail(job, err)
			return nil, err
		}
	}
	job.tracker.SetTotal(dataset.Len())
	job.mu.Lock()
	job.dataset = dataset
	job.loaded = true
	job.mu.Unlock()

	m.setStatus(job, model.JobRunning, "")
	report, err := m.runBatch(ctx, job, dataset, nil)
	if err != nil {
		m.fail(job, err)
		return nil, err
	}
	return m.finish(ctx, job, report)
}

// runBatch runs rows (all rows when nil) of dataset. Results carry indices into
// dataset.
func (m *Manager) runBatch(ctx context.Context, job *Job, dataset model.Dataset, rows []int) (*model.BatchReport, error) {
	spec := job.Spec
	logger := m.logger.With(zap.String("job_id", job.ID))
	persistCtx := context.WithoutCancel(ctx)

	input := dataset
	if rows != nil {
		input = model.Dataset{Columns: dataset.Columns, Rows: make([]model.Row, len(rows))}
		for i, r := range rows {
			input.Rows[i] = dataset.Rows[r]
		}
	}
	original := func(i int) int {
		if rows != nil {
			return rows[i]
		}
		return i
	}

	onProgress := func(i int, res model.RowResult) {
		res.Row = original(i)
		res = TransformResult(res, spec.Transformations)
		job.tracker.Observe(res.Row, res)
		if err := m.store.SaveRowResults(persistCtx, job.ID, []model.RowResult{res}); err != nil {
			logger.Warn("failed to persist row result", zap.Int("row", res.Row), zap.Error(err))
		}
	}

	report, err := m.newRunner(spec, logger).Run(ctx, input, m.request(spec), onProgress)
	if err != nil {
		return nil, err
	}
	for i, r := range report.Results {
		r.Row = original(r.Row)
		report.Results[i] = TransformResult(r, spec.Transformations)
	}
	return report, nil
}

func (m *Manager) newRunner(spec model.JobSpec, logger *zap.Logger) *batch.Runner {
	workers := spec.Concurrency.Workers
	if workers <= 0 {
		workers = m.cfg.Workers
	}
	opts := []batch.Option{
		batch.WithPolicy(batch.PolicyFromConfig(m.cfg.Retry)),
		batch.WithWorkers(workers),
		batch.WithRowDelay(utils.ParseDuration(spec.Concurrency.RowDelay, m.cfg.RowDelay)),
		batch.WithLogger(logger),
	}
	opts = append(opts, m.cfg.RunnerOptions...)
	return batch.NewRunner(m.search, m.extract, opts...)
}

func (m *Manager) request(spec model.JobSpec) batch.Request {
	maxRetries := m.cfg.Retry.MaxRetries
	if spec.Concurrency.MaxRetries != nil {
		maxRetries = *spec.Concurrency.MaxRetries
	}
	return batch.Request{
		EntityColumn: spec.EntityColumn,
		Template:     spec.QueryTemplate,
		Fields:       spec.Fields,
		MaxRetries:   maxRetries,
	}
}

// finish records the report, exports the enriched table and sets the final
// status. Exports run even for cancelled jobs so completed rows are kept.
func (m *Manager) finish(ctx context.Context, job *Job, report *model.BatchReport) (*Result, error) {
	persistCtx := context.WithoutCancel(ctx)
	if err := m.store.UpdateJobCounts(persistCtx, job.ID, report); err != nil {
		m.logger.Warn("failed to record job counts", zap.String("job_id", job.ID), zap.Error(err))
	}

	job.mu.RLock()
	dataset := job.dataset
	job.mu.RUnlock()

	m.setStatus(job, model.JobExporting, "")
	output := BuildOutput(dataset, report, batch.Fields(job.Spec.Fields))
	em := &ExportManager{JobID: job.ID, Outputs: m.outputs, SinkOptions: m.cfg.SinkOptions, Logger: m.logger}
	exports, exportErr := em.Export(persistCtx, job.Spec.Export, output)
	for _, e := range exports {
		if err := m.store.SaveExport(persistCtx, job.ID, e); err != nil {
			m.logger.Warn("failed to record export", zap.String("job_id", job.ID), zap.Error(err))
		}
	}

	job.mu.Lock()
	job.report = report
	job.output = output
	job.exports = append(job.exports, exports...)
	job.mu.Unlock()

	switch {
	case exportErr != nil:
		job.tracker.RecordError(StageExport, "io", exportErr.Error(), nil, 0)
		m.fail(job, exportErr)
		return job.result(), exportErr
	case report.Cancelled:
		msg := "cancelled"
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			msg = "job timeout exceeded"
		}
		m.setStatus(job, model.JobCancelled, msg)
		job.tracker.Finish(model.JobCancelled)
	default:
		m.setStatus(job, model.JobCompleted, "")
		job.tracker.Finish(model.JobCompleted)
	}
	return job.result(), nil
}

func (m *Manager) setStatus(job *Job, status, message string) {
	job.tracker.SetStatus(status)
	if err := m.store.UpdateJobStatus(context.Background(), job.ID, status, message); err != nil {
		m.logger.Warn("failed to update job status", zap.String("job_id", job.ID), zap.String("status", status), zap.Error(err))
	}
}

func (m *Manager) fail(job *Job, err error) {
	m.setStatus(job, model.JobFailed, err.Error())
	job.tracker.Finish(model.JobFailed)
}

func (m *Manager) job(id string) (*Job, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	return job, ok
}

// Wait blocks until the job's current run ends or ctx is done.
func (m *Manager) Wait(ctx context.Context, id string) error {
	job, ok := m.job(id)
	if !ok {
		return fmt.Errorf("%w: %s", store.ErrJobNotFound, id)
	}
	job.mu.RLock()
	done := job.done
	job.mu.RUnlock()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Get returns the stored job.
func (m *Manager) Get(ctx context.Context, id string) (model.JobRecord, error) {
	return m.store.GetJob(ctx, id)
}

// List returns all stored jobs, newest first.
func (m *Manager) List(ctx context.Context) ([]model.JobRecord, error) {
	return m.store.ListJobs(ctx)
}

// Progress returns live metrics for jobs of this process and stored counts for
// older ones.
func (m *Manager) Progress(ctx context.Context, id string) (model.JobMetrics, error) {
	if job, ok := m.job(id); ok {
		return job.tracker.Metrics(), nil
	}
	rec, err := m.store.GetJob(ctx, id)
	if err != nil {
		return model.JobMetrics{}, err
	}
	errs, err := m.store.ListJobErrors(ctx, id)
	if err != nil {
		return model.JobMetrics{}, err
	}
	processed := rec.Succeeded + rec.Failed
	metrics := model.JobMetrics{
		JobID:     rec.ID,
		Status:    rec.Status,
		Total:     rec.Total,
		Processed: processed,
		Succeeded: rec.Succeeded,
		Failed:    rec.Failed,
		Retried:   rec.Retried,
		StartTime: rec.CreatedAt,
		Duration:  rec.UpdatedAt.Sub(rec.CreatedAt),
		Errors:    errs,
	}
	if rec.Total > 0 {
		metrics.Percent = float64(processed) / float64(rec.Total) * 100
	}
	if rec.Finished() {
		end := rec.UpdatedAt
		metrics.EndTime = &end
	}
	return metrics, nil
}

// Results returns the row results recorded so far, in row order.
func (m *Manager) Results(ctx context.Context, id string) ([]model.RowResult, error) {
	if _, err := m.store.GetJob(ctx, id); err != nil {
		return nil, err
	}
	return m.store.LoadRowResults(ctx, id)
}

// Errors returns the job's recorded errors.
func (m *Manager) Errors(ctx context.Context, id string) ([]model.ErrorDetail, error) {
	if _, err := m.store.GetJob(ctx, id); err != nil {
		return nil, err
	}
	return m.store.ListJobErrors(ctx, id)
}

// Cancel stops a running job. Completed rows are kept and exported.
func (m *Manager) Cancel(ctx context.Context, id string) error {
	job, ok := m.job(id)
	if !ok {
		if _, err := m.store.GetJob(ctx, id); err != nil {
			return err
		}
		return ErrJobFinished
	}
	if !job.running() {
		return ErrJobFinished
	}
	job.mu.RLock()
	cancel := job.cancel
	job.mu.RUnlock()
	if cancel != nil {
		cancel()
	}
	m.logger.Info("job cancel requested", zap.String("job_id", id))
	return nil
}

// Output returns the enriched table of a finished job of this process.
func (m *Manager) Output(ctx context.Context, id string) (model.Dataset, error) {
	job, ok := m.job(id)
	if !ok {
		if _, err := m.store.GetJob(ctx, id); err != nil {
			return model.Dataset{}, err
		}
		return model.Dataset{}, ErrResultsUnavailable
	}
	if job.running() {
		return model.Dataset{}, ErrJobRunning
	}
	job.mu.RLock()
	defer job.mu.RUnlock()
	if job.report == nil {
		return model.Dataset{}, ErrResultsUnavailable
	}
	return job.output, nil
}

// Export writes the enriched table to w as csv or xlsx.
func (m *Manager) Export(ctx context.Context, id, format string, w io.Writer) error {
	out, err := m.Output(ctx, id)
	if err != nil {
		return err
	}
	return sink.Encode(w, format, out)
}

// UploadToSheet writes the enriched table to a Google Sheet.
func (m *Manager) UploadToSheet(ctx context.Context, id, sheetURL, sheetName string) (model.ExportResult, error) {
	out, err := m.Output(ctx, id)
	if err != nil {
		return model.ExportResult{}, err
	}
	em := &ExportManager{JobID: id, Outputs: m.outputs, SinkOptions: m.cfg.SinkOptions, Logger: m.logger}
	results, err := em.Export(ctx, &model.Export{SheetURL: sheetURL, SheetName: sheetName}, out)
	for _, r := range results {
		if saveErr := m.store.SaveExport(ctx, id, r); saveErr != nil {
			m.logger.Warn("failed to record export", zap.String("job_id", id), zap.Error(saveErr))
		}
	}
	if len(results) == 0 {
		return model.ExportResult{}, err
	}
	return results[0], err
}

// Delete cancels the job if needed, then removes it and its output files.
func (m *Manager) Delete(ctx context.Context, id string) error {
	if job, ok := m.job(id); ok {
		if job.running() {
			_ = m.Cancel(ctx, id)
			if err := m.Wait(ctx, id); err != nil {
				return err
			}
		}
		m.mu.Lock()
		delete(m.jobs, id)
		m.mu.Unlock()
	}
	if err := m.store.DeleteJob(ctx, id); err != nil {
		return err
	}
	if err := m.outputs.RemoveJobOutput(id); err != nil {
		m.logger.Warn("failed to remove job output", zap.String("job_id", id), zap.Error(err))
	}
	return nil
}

// Shutdown cancels every running job and waits for them to record their
// state, or for ctx to expire.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.stop()
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
