package model

import "time"

// ErrorKind classifies why a row (or a whole batch) failed.
type ErrorKind string

const (
	ErrorMissingEntity    ErrorKind = "missing_entity"
	ErrorInvalidTemplate  ErrorKind = "invalid_template"
	ErrorSearchFailed     ErrorKind = "search_failed"
	ErrorExtractionFailed ErrorKind = "extraction_failed"
)

// RowStatus is the tag of a RowResult.
type RowStatus string

const (
	StatusSuccess RowStatus = "success"
	StatusFailure RowStatus = "failure"
)

// SearchHit is one cleaned search result.
type SearchHit struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
	Content string `json:"content,omitempty"` // readable page text, when fetched
}

// RowResult is the outcome recorded for one dataset row.
type RowResult struct {
	Row       int               `json:"row"`
	Entity    string            `json:"entity"`
	Status    RowStatus         `json:"status"`
	Extracted map[string]string `json:"extracted,omitempty"`
	Reason    ErrorKind         `json:"reason,omitempty"`
	Message   string            `json:"message,omitempty"`
	Attempts  int               `json:"attempts"`
	Retries   int               `json:"retries"`
	QueryType string            `json:"query_type,omitempty"`
	Hits      []SearchHit       `json:"hits,omitempty"`
}

// Succeeded reports whether the row carries extracted fields.
func (r RowResult) Succeeded() bool {
	return r.Status == StatusSuccess
}

// Success builds a successful row result.
func Success(row int, entity string, fields map[string]string) RowResult {
	return RowResult{Row: row, Entity: entity, Status: StatusSuccess, Extracted: fields}
}

// Failure builds a failed row result.
func Failure(row int, entity string, reason ErrorKind, message string) RowResult {
	return RowResult{Row: row, Entity: entity, Status: StatusFailure, Reason: reason, Message: message}
}

// BatchReport holds the ordered row results of one batch run.
//
// Results is aligned with the dataset rows. When the run was cancelled it holds
// only the rows that completed, still in row order, and Cancelled is set.
type BatchReport struct {
	Results   []RowResult `json:"results"`
	Total     int         `json:"total"`
	Succeeded int         `json:"succeeded"`
	Failed    int         `json:"failed"`
	Retried   int         `json:"retried"`
	Cancelled bool        `json:"cancelled"`
	StartedAt time.Time   `json:"started_at"`
	EndedAt   time.Time   `json:"ended_at"`
}

// Len returns the number of recorded results.
func (b *BatchReport) Len() int {
	if b == nil {
		return 0
	}
	return len(b.Results)
}

// Truncated reports whether fewer rows were recorded than the dataset held.
func (b *BatchReport) Truncated() bool {
	return b != nil && len(b.Results) < b.Total
}

// Failures returns the failed results in row order.
func (b *BatchReport) Failures() []RowResult {
	if b == nil {
		return nil
	}
	var out []RowResult
	for _, r := range b.Results {
		if !r.Succeeded() {
			out = append(out, r)
		}
	}
	return out
}

// Tally recomputes the summary counts from Results.
func (b *BatchReport) Tally() {
	b.Succeeded, b.Failed, b.Retried = 0, 0, 0
	for _, r := range b.Results {
		if r.Succeeded() {
			b.Succeeded++
		} else {
			b.Failed++
		}
		if r.Retries > 0 {
			b.Retried++
		}
	}
}
