package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-enrich-pipeline/internal/model"
	"go-enrich-pipeline/internal/provider"
)

func messageResponse(text string) map[string]any {
	return map[string]any{
		"id":            "msg_01",
		"type":          "message",
		"role":          "assistant",
		"model":         defaultModel,
		"stop_reason":   "end_turn",
		"stop_sequence": nil,
		"content":       []map[string]any{{"type": "text", "text": text}},
		"usage":         map[string]any{"input_tokens": 12, "output_tokens": 8},
	}
}

func newTestExtractor(t *testing.T, handler http.HandlerFunc) *Extractor {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	e, err := New(Config{APIKey: "test-key", BaseURL: srv.URL}, nil, nil)
	require.NoError(t, err)
	return e
}

func extractRequest() provider.ExtractRequest {
	return provider.ExtractRequest{
		Entity: "Acme",
		Query:  "Extract the email for Acme",
		Fields: []string{"email"},
		Result: provider.SearchResult{Hits: []model.SearchHit{{Title: "Acme", URL: "https://acme.test", Snippet: "hello@acme.test"}}},
	}
}

func TestNewRequiresAPIKey(t *testing.T) {
	_, err := New(Config{}, nil, nil)
	require.ErrorIs(t, err, ErrAPIKeyRequired)
}

func TestExtract(t *testing.T) {
	var body map[string]any
	e := newTestExtractor(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &body))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(messageResponse(`{"email": "hello@acme.test"}`))
	})

	got, err := e.Extract(context.Background(), extractRequest())
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"email": "hello@acme.test"}, got)
	assert.Equal(t, defaultModel, body["model"])
}

func TestExtractErrorClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   provider.Kind
	}{
		{"rate limited", http.StatusTooManyRequests, provider.Transient},
		{"overloaded", 529, provider.Transient},
		{"unauthorized", http.StatusUnauthorized, provider.Permanent},
		{"bad request", http.StatusBadRequest, provider.Permanent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestExtractor(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, `{"type":"error","error":{"type":"api_error","message":"nope"}}`)
			})
			_, err := e.Extract(context.Background(), extractRequest())
			require.Error(t, err)
			var pe *provider.Error
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, tt.want, pe.Kind)
			assert.Equal(t, tt.status, pe.StatusCode)
		})
	}
}

func TestExtractMalformedAnswerIsTransient(t *testing.T) {
	e := newTestExtractor(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(messageResponse("Data not found."))
	})
	_, err := e.Extract(context.Background(), extractRequest())
	require.Error(t, err)
	assert.False(t, provider.IsPermanent(err))
}
