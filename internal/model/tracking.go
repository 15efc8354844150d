package model

import "time"

// JobMetrics is the live view of a job the dashboard polls.
type JobMetrics struct {
	JobID         string        `json:"job_id"`
	Status        string        `json:"status"`
	Total         int           `json:"total"`
	Processed     int           `json:"processed"`
	Succeeded     int           `json:"succeeded"`
	Failed        int           `json:"failed"`
	Retried       int           `json:"retried"`
	Percent       float64       `json:"percent"`
	StartTime     time.Time     `json:"start_time"`
	EndTime       *time.Time    `json:"end_time,omitempty"`
	Duration      time.Duration `json:"duration"`
	RowsPerSecond float64       `json:"rows_per_second"`
	Errors        []ErrorDetail `json:"errors"`
}

// ErrorDetail is a single error with the context the dashboard renders.
type ErrorDetail struct {
	Timestamp  time.Time `json:"timestamp"`
	Stage      string    `json:"stage"` // load, search, extract, export
	Row        *int      `json:"row,omitempty"`
	ErrorType  string    `json:"error_type"`
	Message    string    `json:"message"`
	RetryCount int       `json:"retry_count"`
	Severity   string    `json:"severity"`
}
