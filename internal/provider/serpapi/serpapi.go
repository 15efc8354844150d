// Package serpapi searches Google through SerpAPI.
package serpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"go-enrich-pipeline/internal/model"
	"go-enrich-pipeline/internal/provider"
)

const (
	name           = "serpapi"
	defaultBaseURL = "https://serpapi.com/search.json"
	defaultResults = 10
	defaultTimeout = 30 * time.Second
)

// ErrAPIKeyRequired is returned when no API key is configured.
var ErrAPIKeyRequired = errors.New("serpapi API key required")

// Config holds the client settings.
type Config struct {
	APIKey   string
	BaseURL  string
	Results  int
	Language string
	Country  string
	Timeout  time.Duration
}

// Client implements provider.SearchProvider.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *zap.Logger
}

// New creates a Client.
func New(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: set SERPAPI_KEY or search.api_key", ErrAPIKeyRequired)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Results <= 0 {
		cfg.Results = defaultResults
	}
	if cfg.Language == "" {
		cfg.Language = "en"
	}
	if cfg.Country == "" {
		cfg.Country = "us"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}, logger: logger}, nil
}

func (c *Client) Name() string { return name }

type response struct {
	Error          string `json:"error"`
	OrganicResults []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"organic_results"`
}

// Search runs query against the Google engine.
func (c *Client) Search(ctx context.Context, query string) (provider.SearchResult, error) {
	params := url.Values{}
	params.Set("engine", "google")
	params.Set("q", query)
	params.Set("api_key", c.cfg.APIKey)
	params.Set("num", strconv.Itoa(c.cfg.Results))
	params.Set("hl", c.cfg.Language)
	params.Set("gl", c.cfg.Country)
	params.Set("filter", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return provider.SearchResult{}, provider.NewPermanent(name, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return provider.SearchResult{}, provider.FromTransport(ctx, name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return provider.SearchResult{}, provider.FromTransport(ctx, name, err)
	}

	var parsed response
	decodeErr := json.Unmarshal(body, &parsed)

	if resp.StatusCode != http.StatusOK {
		msg := parsed.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return provider.SearchResult{}, provider.FromStatus(name, resp.StatusCode, errors.New(msg))
	}
	if decodeErr != nil {
		return provider.SearchResult{}, provider.NewTransient(name, fmt.Errorf("decode response: %w", decodeErr))
	}
	if parsed.Error != "" {
		// SerpAPI reports "no results" as an error string with status 200.
		c.logger.Debug("serpapi: search returned no results", zap.String("query", query), zap.String("error", parsed.Error))
	}

	result := provider.SearchResult{Query: query, Hits: make([]model.SearchHit, 0, len(parsed.OrganicResults))}
	for _, r := range parsed.OrganicResults {
		result.Hits = append(result.Hits, model.SearchHit{Title: r.Title, URL: r.Link, Snippet: r.Snippet})
	}
	return result, nil
}
