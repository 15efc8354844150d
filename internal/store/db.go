// Package store keeps job history in sqlite: specs, status, per-row results,
// errors and exports. It never resumes a job.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"go-enrich-pipeline/internal/model"
)

// ErrJobNotFound is returned for unknown job IDs.
var ErrJobNotFound = errors.New("job not found")

const schema = `
CREATE TABLE IF NOT EXISTS jobs (
	id TEXT PRIMARY KEY,
	spec TEXT NOT NULL,
	status TEXT NOT NULL,
	total INTEGER NOT NULL DEFAULT 0,
	succeeded INTEGER NOT NULL DEFAULT 0,
	failed INTEGER NOT NULL DEFAULT 0,
	retried INTEGER NOT NULL DEFAULT 0,
	cancelled INTEGER NOT NULL DEFAULT 0,
	error TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
CREATE TABLE IF NOT EXISTS job_errors (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	job_id TEXT NOT NULL,
	row_index INTEGER,
	stage TEXT NOT NULL,
	error_type TEXT NOT NULL,
	message TEXT NOT NULL,
	retry_count INTEGER NOT NULL DEFAULT 0,
	severity TEXT NOT NULL,
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_job_errors_job ON job_errors(job_id);
CREATE TABLE IF NOT EXISTS row_results (
	job_id TEXT NOT NULL,
	row_index INTEGER NOT NULL,
	result TEXT NOT NULL,
	PRIMARY KEY (job_id, row_index)
);
CREATE TABLE IF NOT EXISTS job_exports (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	job_id TEXT NOT NULL,
	type TEXT NOT NULL,
	path TEXT NOT NULL,
	record_count INTEGER NOT NULL,
	success INTEGER NOT NULL,
	error TEXT NOT NULL DEFAULT '',
	exported_at DATETIME NOT NULL
);
`

// Store wraps the sqlite database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies the schema.
// Use ":memory:" for a throwaway store.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	// sqlite allows one writer; a single connection also keeps :memory: shared.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// SaveJob stores a new pending job.
func (s *Store) SaveJob(ctx context.Context, jobID string, spec model.JobSpec) error {
	specJSON, err := json.Marshal(spec)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO jobs (id, spec, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		jobID, string(specJSON), model.JobPending, now, now)
	return err
}

// UpdateJobStatus sets the status; a non-empty message is stored as the job error.
func (s *Store) UpdateJobStatus(ctx context.Context, jobID, status, message string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, error = CASE WHEN ? = '' THEN error ELSE ? END, updated_at = ? WHERE id = ?`,
		status, message, message, time.Now().UTC(), jobID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// UpdateJobCounts copies a report's summary onto the job.
func (s *Store) UpdateJobCounts(ctx context.Context, jobID string, report *model.BatchReport) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET total = ?, succeeded = ?, failed = ?, retried = ?, cancelled = ?, updated_at = ? WHERE id = ?`,
		report.Total, report.Succeeded, report.Failed, report.Retried, report.Cancelled, time.Now().UTC(), jobID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// ListJobs returns all jobs, newest first.
func (s *Store) ListJobs(ctx context.Context) ([]model.JobRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+jobColumns+` FROM jobs ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	jobs := []model.JobRecord{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// GetJob fetches one job.
func (s *Store) GetJob(ctx context.Context, jobID string) (model.JobRecord, error) {
	job, err := scanJob(s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, jobID))
	if errors.Is(err, sql.ErrNoRows) {
		return model.JobRecord{}, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	return job, err
}

// DeleteJob removes a job and everything recorded for it.
func (s *Store) DeleteJob(ctx context.Context, jobID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"job_errors", "row_results", "job_exports"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE job_id = ?`, jobID); err != nil {
			return err
		}
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, jobID)
	if err != nil {
		return err
	}
	if err := requireRow(res); err != nil {
		return fmt.Errorf("%w: %s", err, jobID)
	}
	return tx.Commit()
}

// SaveJobError records an error for a job.
func (s *Store) SaveJobError(ctx context.Context, jobID string, detail model.ErrorDetail) error {
	if detail.Timestamp.IsZero() {
		detail.Timestamp = time.Now()
	}
	var row sql.NullInt64
	if detail.Row != nil {
		row = sql.NullInt64{Int64: int64(*detail.Row), Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO job_errors (job_id, row_index, stage, error_type, message, retry_count, severity, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		jobID, row, detail.Stage, detail.ErrorType, detail.Message, detail.RetryCount, detail.Severity, detail.Timestamp.UTC())
	return err
}

// ListJobErrors returns a job's errors in the order they were recorded.
func (s *Store) ListJobErrors(ctx context.Context, jobID string) ([]model.ErrorDetail, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT row_index, stage, error_type, message, retry_count, severity, created_at
		 FROM job_errors WHERE job_id = ? ORDER BY id`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	details := []model.ErrorDetail{}
	for rows.Next() {
		var d model.ErrorDetail
		var row sql.NullInt64
		if err := rows.Scan(&row, &d.Stage, &d.ErrorType, &d.Message, &d.RetryCount, &d.Severity, &d.Timestamp); err != nil {
			return nil, err
		}
		if row.Valid {
			r := int(row.Int64)
			d.Row = &r
		}
		details = append(details, d)
	}
	return details, rows.Err()
}

// SaveRowResults upserts row results in one transaction.
func (s *Store) SaveRowResults(ctx context.Context, jobID string, results []model.RowResult) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO row_results (job_id, row_index, result) VALUES (?, ?, ?)
		 ON CONFLICT(job_id, row_index) DO UPDATE SET result = excluded.result`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range results {
		raw, err := json.Marshal(r)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, jobID, r.Row, string(raw)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// LoadRowResults returns a job's row results ordered by row index.
func (s *Store) LoadRowResults(ctx context.Context, jobID string) ([]model.RowResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT result FROM row_results WHERE job_id = ? ORDER BY row_index`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []model.RowResult{}
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var r model.RowResult
		if err := json.Unmarshal([]byte(raw), &r); err != nil {
			return nil, fmt.Errorf("corrupt row result: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// SaveExport records an export attempt.
func (s *Store) SaveExport(ctx context.Context, jobID string, e model.ExportResult) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO job_exports (job_id, type, path, record_count, success, error, exported_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		jobID, e.Type, e.Path, e.RecordCount, e.Success, e.Error, e.ExportedAt.UTC())
	return err
}

// ListExports returns a job's export attempts, oldest first.
func (s *Store) ListExports(ctx context.Context, jobID string) ([]model.ExportResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT type, path, record_count, success, error, exported_at FROM job_exports WHERE job_id = ? ORDER BY id`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	exports := []model.ExportResult{}
	for rows.Next() {
		var e model.ExportResult
		if err := rows.Scan(&e.Type, &e.Path, &e.RecordCount, &e.Success, &e.Error, &e.ExportedAt); err != nil {
			return nil, err
		}
		exports = append(exports, e)
	}
	return exports, rows.Err()
}

// MarkInterrupted fails jobs left running by a previous process. It returns the
// number of jobs updated.
func (s *Store) MarkInterrupted(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, error = ?, updated_at = ? WHERE status IN (?, ?, ?, ?)`,
		model.JobFailed, "interrupted by restart", time.Now().UTC(),
		model.JobPending, model.JobLoading, model.JobRunning, model.JobExporting)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const jobColumns = `id, spec, status, total, succeeded, failed, retried, cancelled, error, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner) (model.JobRecord, error) {
	var job model.JobRecord
	var specJSON string
	if err := row.Scan(&job.ID, &specJSON, &job.Status, &job.Total, &job.Succeeded, &job.Failed,
		&job.Retried, &job.Cancelled, &job.Error, &job.CreatedAt, &job.UpdatedAt); err != nil {
		return model.JobRecord{}, err
	}
	if err := json.Unmarshal([]byte(specJSON), &job.Spec); err != nil {
		return model.JobRecord{}, fmt.Errorf("corrupt job spec: %w", err)
	}
	return job, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrJobNotFound
	}
	return nil
}
