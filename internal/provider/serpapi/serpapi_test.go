package serpapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-enrich-pipeline/internal/model"
	"go-enrich-pipeline/internal/provider"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := New(Config{APIKey: "secret", BaseURL: srv.URL}, nil)
	require.NoError(t, err)
	return c
}

func TestNewRequiresAPIKey(t *testing.T) {
	_, err := New(Config{}, nil)
	require.ErrorIs(t, err, ErrAPIKeyRequired)
}

func TestSearch(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "Acme headquarters", q.Get("q"))
		assert.Equal(t, "secret", q.Get("api_key"))
		assert.Equal(t, "10", q.Get("num"))
		assert.Equal(t, "en", q.Get("hl"))
		assert.Equal(t, "us", q.Get("gl"))
		assert.Equal(t, "1", q.Get("filter"))
		_, _ = io.WriteString(w, `{"organic_results":[
			{"title":"Acme Corp","link":"https://acme.test","snippet":"HQ in Springfield"},
			{"title":"Acme on Wiki","link":"https://wiki.test/acme","snippet":"Founded 1950"}
		]}`)
	})

	got, err := c.Search(context.Background(), "Acme headquarters")
	require.NoError(t, err)
	assert.Equal(t, "Acme headquarters", got.Query)
	assert.Equal(t, []model.SearchHit{
		{Title: "Acme Corp", URL: "https://acme.test", Snippet: "HQ in Springfield"},
		{Title: "Acme on Wiki", URL: "https://wiki.test/acme", Snippet: "Founded 1950"},
	}, got.Hits)
}

func TestSearchNoResults(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"error":"Google hasn't returned any results for this query."}`)
	})
	got, err := c.Search(context.Background(), "zzzz")
	require.NoError(t, err)
	assert.Empty(t, got.Hits)
}

func TestSearchErrorClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   provider.Kind
	}{
		{"rate limited", http.StatusTooManyRequests, provider.Transient},
		{"server error", http.StatusBadGateway, provider.Transient},
		{"bad key", http.StatusUnauthorized, provider.Permanent},
		{"forbidden", http.StatusForbidden, provider.Permanent},
		{"bad request", http.StatusBadRequest, provider.Permanent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, `{"error":"Invalid API key."}`)
			})
			_, err := c.Search(context.Background(), "Acme")
			var pe *provider.Error
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, tt.want, pe.Kind)
			assert.Equal(t, tt.status, pe.StatusCode)
		})
	}
}

func TestSearchMalformedBodyIsTransient(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `<html>oops</html>`)
	})
	_, err := c.Search(context.Background(), "Acme")
	require.Error(t, err)
	assert.False(t, provider.IsPermanent(err))
}

func TestSearchCancelledIsPermanent(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{}`)
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Search(ctx, "Acme")
	require.Error(t, err)
	assert.True(t, provider.IsPermanent(err))
}

func TestSearchClientTimeoutIsTransient(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })
	c, err := New(Config{APIKey: "secret", BaseURL: srv.URL, Timeout: 50 * time.Millisecond}, nil)
	require.NoError(t, err)

	_, err = c.Search(context.Background(), "Acme")
	require.ErrorIs(t, err, context.DeadlineExceeded)
	var pe *provider.Error
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, provider.Transient, pe.Kind)
	assert.False(t, provider.IsPermanent(err))
}
