package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"go-enrich-pipeline/internal/model"
)

func TestIsPermanent(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain error", errors.New("boom"), false},
		{"transient", NewTransient("x", errors.New("slow")), false},
		{"permanent", NewPermanent("x", errors.New("bad key")), true},
		{"wrapped permanent", fmt.Errorf("call: %w", NewPermanent("x", errors.New("bad key"))), true},
		{"bare cancel", context.Canceled, false},
		{"client timeout", NewTransient("x", fmt.Errorf("search: %w", context.DeadlineExceeded)), false},
		{"bare deadline", fmt.Errorf("search: %w", context.DeadlineExceeded), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsPermanent(tt.err))
		})
	}
}

func TestFromStatus(t *testing.T) {
	cause := errors.New("status")
	assert.Equal(t, Transient, FromStatus("x", http.StatusTooManyRequests, cause).Kind)
	assert.Equal(t, Transient, FromStatus("x", http.StatusBadGateway, cause).Kind)
	assert.Equal(t, Transient, FromStatus("x", http.StatusRequestTimeout, cause).Kind)
	assert.Equal(t, Permanent, FromStatus("x", http.StatusUnauthorized, cause).Kind)
	assert.Equal(t, Permanent, FromStatus("x", http.StatusBadRequest, cause).Kind)

	err := FromStatus("serpapi", http.StatusForbidden, cause)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "serpapi: permanent error (status 403)")
}

func TestFromTransport(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, Transient, FromTransport(ctx, "x", errors.New("connection reset")).Kind)
	assert.Equal(t, Transient, FromTransport(ctx, "x", fmt.Errorf("Client.Timeout: %w", context.DeadlineExceeded)).Kind)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.Equal(t, Permanent, FromTransport(cancelled, "x", context.Canceled).Kind)
}

func TestPreprocess(t *testing.T) {
	hits := []model.SearchHit{
		{Title: "  Acme ", URL: " https://acme.test\n", Snippet: "\tWidgets "},
		{Title: " ", URL: "", Snippet: "nothing to link"},
		{URL: "https://only-url.test"},
	}
	got := Preprocess(hits)
	assert.Equal(t, []model.SearchHit{
		{Title: "Acme", URL: "https://acme.test", Snippet: "Widgets"},
		{URL: "https://only-url.test"},
	}, got)
}

func TestClassifyQuery(t *testing.T) {
	tests := map[string]string{
		"What is the net worth of {entity}":         "Net Worth",
		"When was {entity} born":                     "Age",
		"Latest NEWS about {entity}":                 "News",
		"Where did {entity} go to school":            "Education",
		"Find the email for {entity}":                "Contact Info",
		"Instagram handle of {entity}":               "Social Media",
		"Tell me something about {entity}":           "Miscellaneous",
		"Does {entity} do charity work":              "Philanthropy",
		"What products does {entity} sell":           "Product Info",
		"Company history and background of {entity}": "Company Info",
	}
	for query, want := range tests {
		assert.Equal(t, want, ClassifyQuery(query), query)
	}
}
