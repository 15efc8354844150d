package model

import "time"

// Source describes where a job's dataset comes from.
type Source struct {
	Type      string `json:"type" yaml:"type"`                                 // csv, xlsx, sheets
	Path      string `json:"path,omitempty" yaml:"path,omitempty"`             // local file for csv/xlsx
	SheetURL  string `json:"sheet_url,omitempty" yaml:"sheet_url,omitempty"`   // Google Sheets URL
	SheetName string `json:"sheet_name,omitempty" yaml:"sheet_name,omitempty"` // tab or range name
}

// Export defines where the enriched table is written.
type Export struct {
	File      string `json:"file,omitempty" yaml:"file,omitempty"`             // e.g. results.csv or results.xlsx
	SheetURL  string `json:"sheet_url,omitempty" yaml:"sheet_url,omitempty"`   // upload target
	SheetName string `json:"sheet_name,omitempty" yaml:"sheet_name,omitempty"` // defaults to Sheet1
}

// Concurrency holds the batch worker options.
type Concurrency struct {
	Workers    int    `json:"workers" yaml:"workers"`
	MaxRetries *int   `json:"max_retries,omitempty" yaml:"max_retries,omitempty"`
	RowDelay   string `json:"row_delay,omitempty" yaml:"row_delay,omitempty"` // e.g. "2s"
	JobTimeout string `json:"job_timeout,omitempty" yaml:"job_timeout,omitempty"`
}

// JobSpec is the payload of POST /api/v1/jobs and of CLI spec files.
type JobSpec struct {
	Source        Source      `json:"source" yaml:"source"`
	EntityColumn  string      `json:"entity_column" yaml:"entity_column"`
	QueryTemplate string      `json:"query_template" yaml:"query_template"`
	Fields        []string    `json:"fields" yaml:"fields"`
	Export        *Export     `json:"export,omitempty" yaml:"export,omitempty"`
	Concurrency   Concurrency `json:"concurrency" yaml:"concurrency"`

	// Transformations clean extracted values, e.g. ["lowercase"]. Whitespace
	// trimming and missing-value normalization always apply.
	Transformations []string `json:"transformations,omitempty" yaml:"transformations,omitempty"`
}

// Job status values stored in the jobs table.
const (
	JobPending   = "pending"
	JobLoading   = "loading"
	JobRunning   = "running"
	JobExporting = "exporting"
	JobCompleted = "completed"
	JobCancelled = "cancelled"
	JobFailed    = "failed"
)

// JobRecord is a job as stored in the jobs table.
type JobRecord struct {
	ID        string    `json:"id"`
	Spec      JobSpec   `json:"spec"`
	Status    string    `json:"status"`
	Total     int       `json:"total"`
	Succeeded int       `json:"succeeded"`
	Failed    int       `json:"failed"`
	Retried   int       `json:"retried"`
	Cancelled bool      `json:"cancelled"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Finished reports whether the job reached a terminal status.
func (j JobRecord) Finished() bool {
	switch j.Status {
	case JobCompleted, JobCancelled, JobFailed:
		return true
	}
	return false
}

// ExportResult records one write of the enriched table.
type ExportResult struct {
	Type        string    `json:"type"` // csv, xlsx, sheets
	Path        string    `json:"path"` // file path or sheet URL
	RecordCount int       `json:"record_count"`
	Success     bool      `json:"success"`
	Error       string    `json:"error,omitempty"`
	ExportedAt  time.Time `json:"exported_at"`
}
