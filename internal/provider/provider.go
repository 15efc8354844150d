// Package provider defines the narrow interfaces the batch runner uses to reach
// third-party search and extraction services, and the error classification
// that drives its retry decisions.
package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go-enrich-pipeline/internal/model"
)

// Kind classifies a provider failure for retry purposes.
type Kind int

const (
	// Transient failures (timeouts, rate limits, malformed responses) are retried.
	Transient Kind = iota
	// Permanent failures (bad credentials, rejected requests) fail the row at once.
	Permanent
)

func (k Kind) String() string {
	if k == Permanent {
		return "permanent"
	}
	return "transient"
}

// Error is the error type every provider returns.
type Error struct {
	Provider   string
	Kind       Kind
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s error (status %d): %v", e.Provider, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %s error: %v", e.Provider, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// NewTransient wraps err as a retryable failure.
func NewTransient(name string, err error) *Error {
	return &Error{Provider: name, Kind: Transient, Err: err}
}

// NewPermanent wraps err as a non-retryable failure.
func NewPermanent(name string, err error) *Error {
	return &Error{Provider: name, Kind: Permanent, Err: err}
}

// IsPermanent reports whether err should fail the row without another attempt.
// Only an *Error of Kind Permanent is; anything else, including a wrapped
// client timeout, is transient. Caller cancellation is checked on the context.
func IsPermanent(err error) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind == Permanent
	}
	return false
}

// FromStatus classifies an HTTP status code: 408, 429 and 5xx are transient.
func FromStatus(name string, status int, err error) *Error {
	kind := Permanent
	if status == http.StatusRequestTimeout || status == http.StatusTooManyRequests || status >= 500 {
		kind = Transient
	}
	return &Error{Provider: name, Kind: kind, StatusCode: status, Err: err}
}

// FromTransport classifies a transport-level error (no HTTP response). Timeouts,
// resets and DNS hiccups are all transient; the error is permanent only when
// ctx itself is done.
func FromTransport(ctx context.Context, name string, err error) *Error {
	if ctx.Err() != nil {
		return NewPermanent(name, err)
	}
	return NewTransient(name, err)
}

// SearchResult is what a search provider returns for one query.
type SearchResult struct {
	Query string            `json:"query"`
	Hits  []model.SearchHit `json:"hits"`
}

// ExtractRequest carries everything an extraction provider needs for one row.
type ExtractRequest struct {
	Entity    string
	Query     string
	QueryType string
	Fields    []string
	Result    SearchResult
}

// SearchProvider runs a web search for a concrete query.
type SearchProvider interface {
	Name() string
	Search(ctx context.Context, query string) (SearchResult, error)
}

// ExtractionProvider turns search results into field values.
type ExtractionProvider interface {
	Name() string
	Extract(ctx context.Context, req ExtractRequest) (map[string]string, error)
}

// SearchFunc adapts a function to SearchProvider.
type SearchFunc func(ctx context.Context, query string) (SearchResult, error)

func (f SearchFunc) Name() string { return "func" }

func (f SearchFunc) Search(ctx context.Context, query string) (SearchResult, error) {
	return f(ctx, query)
}

// ExtractFunc adapts a function to ExtractionProvider.
type ExtractFunc func(ctx context.Context, req ExtractRequest) (map[string]string, error)

func (f ExtractFunc) Name() string { return "func" }

func (f ExtractFunc) Extract(ctx context.Context, req ExtractRequest) (map[string]string, error) {
	return f(ctx, req)
}
