package pipeline

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"go-enrich-pipeline/internal/model"
)

// retryable reports whether a failed row may succeed on a second run. Rows
// without an entity would fail the same way again.
func retryable(r model.RowResult) bool {
	if r.Succeeded() {
		return false
	}
	return r.Reason == model.ErrorSearchFailed || r.Reason == model.ErrorExtractionFailed
}

// FailedRows returns the indices of a report's retryable rows, in row order.
func FailedRows(report *model.BatchReport) []int {
	if report == nil {
		return nil
	}
	var rows []int
	for _, r := range report.Results {
		if retryable(r) {
			rows = append(rows, r.Row)
		}
	}
	sort.Ints(rows)
	return rows
}

// MergeResults replaces results in report by row index and re-tallies it.
// Rows not in report (a cancelled run) are inserted in order.
func MergeResults(report *model.BatchReport, updates []model.RowResult) {
	byRow := make(map[int]int, len(report.Results))
	for i, r := range report.Results {
		byRow[r.Row] = i
	}
	for _, u := range updates {
		if i, ok := byRow[u.Row]; ok {
			report.Results[i] = u
			continue
		}
		report.Results = append(report.Results, u)
		byRow[u.Row] = len(report.Results) - 1
	}
	sort.SliceStable(report.Results, func(a, b int) bool {
		return report.Results[a].Row < report.Results[b].Row
	})
	report.Cancelled = len(report.Results) < report.Total
	report.Tally()
}

// RetryFailed re-runs the search and extraction failures of a finished job in
// the background, then re-exports the table. It returns the number of rows
// scheduled; zero means there was nothing to retry.
func (m *Manager) RetryFailed(ctx context.Context, id string) (int, error) {
	job, ok := m.job(id)
	if !ok {
		if _, err := m.store.GetJob(ctx, id); err != nil {
			return 0, err
		}
		return 0, ErrResultsUnavailable
	}
	if job.running() {
		return 0, ErrJobRunning
	}

	job.mu.Lock()
	if !job.loaded || job.report == nil {
		job.mu.Unlock()
		return 0, ErrResultsUnavailable
	}
	rows := FailedRows(job.report)
	if len(rows) == 0 {
		job.mu.Unlock()
		return 0, nil
	}
	jobCtx, cancel := context.WithCancel(m.baseCtx)
	job.cancel = cancel
	job.done = make(chan struct{})
	dataset := job.dataset
	pending := &model.BatchReport{Total: job.report.Total}
	retrying := make(map[int]bool, len(rows))
	for _, r := range rows {
		retrying[r] = true
	}
	for _, r := range job.report.Results {
		if !retrying[r.Row] {
			pending.Results = append(pending.Results, r)
		}
	}
	job.mu.Unlock()

	pending.Tally()
	job.tracker.Reset(pending)

	m.logger.Info("retrying failed rows", zap.String("job_id", id), zap.Int("rows", len(rows)))
	m.setStatus(job, model.JobRunning, "")

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer cancel()
		if err := m.rerun(jobCtx, job, dataset, rows); err != nil {
			m.logger.Warn("retry ended with error", zap.String("job_id", id), zap.Error(err))
		}
	}()
	return len(rows), nil
}

func (m *Manager) rerun(ctx context.Context, job *Job, dataset model.Dataset, rows []int) (err error) {
	defer func() {
		job.mu.Lock()
		close(job.done)
		job.mu.Unlock()
	}()

	updates, err := m.runBatch(ctx, job, dataset, rows)
	if err != nil {
		m.fail(job, err)
		return err
	}

	job.mu.Lock()
	report := job.report
	merged := &model.BatchReport{
		Results:   append([]model.RowResult(nil), report.Results...),
		Total:     report.Total,
		StartedAt: report.StartedAt,
		EndedAt:   updates.EndedAt,
	}
	job.mu.Unlock()

	MergeResults(merged, updates.Results)
	// A retry cancelled part-way keeps the old failures for the rows it missed.
	job.tracker.Reset(merged)
	if _, err := m.finish(ctx, job, merged); err != nil {
		return fmt.Errorf("retry export: %w", err)
	}
	return nil
}
