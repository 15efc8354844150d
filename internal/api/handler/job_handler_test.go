package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"go-enrich-pipeline/internal/pipeline"
	"go-enrich-pipeline/internal/sink"
	"go-enrich-pipeline/internal/store"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: abc", store.ErrJobNotFound), http.StatusNotFound},
		{fmt.Errorf("%w: bad", pipeline.ErrInvalidSpec), http.StatusBadRequest},
		{pipeline.ErrJobRunning, http.StatusConflict},
		{pipeline.ErrResultsUnavailable, http.StatusConflict},
		{fmt.Errorf("%w: %w", sink.ErrIO, sink.ErrCredentialsRequired), http.StatusServiceUnavailable},
		{fmt.Errorf("%w: quota", sink.ErrIO), http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}

func TestJobID(t *testing.T) {
	for path, want := range map[string]string{
		"/api/v1/jobs/abc":          "abc",
		"/api/v1/jobs/abc/progress": "abc",
		"/api/v1/jobs/":             "",
	} {
		assert.Equal(t, want, jobID(httptest.NewRequest(http.MethodGet, path, nil)), path)
	}
}
