// Package duckduckgo searches DuckDuckGo's HTML endpoint. It needs no API key.
package duckduckgo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"go-enrich-pipeline/internal/model"
	"go-enrich-pipeline/internal/provider"
)

const (
	name             = "duckduckgo"
	defaultBaseURL   = "https://html.duckduckgo.com/html/"
	defaultResults   = 10
	defaultTimeout   = 30 * time.Second
	defaultUserAgent = "Mozilla/5.0 (compatible; go-enrich-pipeline/1.0)"
)

// Config holds the client settings.
type Config struct {
	BaseURL   string
	Results   int
	Timeout   time.Duration
	UserAgent string
}

// Client implements provider.SearchProvider.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *zap.Logger
}

// New creates a Client.
func New(cfg Config, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Results <= 0 {
		cfg.Results = defaultResults
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}, logger: logger}
}

func (c *Client) Name() string { return name }

// Search fetches the results page for query and parses the organic results.
func (c *Client) Search(ctx context.Context, query string) (provider.SearchResult, error) {
	form := url.Values{"q": {query}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return provider.SearchResult{}, provider.NewPermanent(name, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return provider.SearchResult{}, provider.FromTransport(ctx, name, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusAccepted:
		// 202 is the anomaly page served when requests come too fast.
		return provider.SearchResult{}, &provider.Error{
			Provider: name, Kind: provider.Transient, StatusCode: resp.StatusCode,
			Err: errors.New("rate limited"),
		}
	case resp.StatusCode != http.StatusOK:
		return provider.SearchResult{}, provider.FromStatus(name, resp.StatusCode, errors.New(resp.Status))
	}

	hits, err := parseResults(io.LimitReader(resp.Body, 4<<20), c.cfg.Results)
	if err != nil {
		return provider.SearchResult{}, provider.NewTransient(name, err)
	}
	c.logger.Debug("duckduckgo: search done", zap.String("query", query), zap.Int("hits", len(hits)))
	return provider.SearchResult{Query: query, Hits: hits}, nil
}

func parseResults(r io.Reader, limit int) ([]model.SearchHit, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse results page: %w", err)
	}

	hits := []model.SearchHit{}
	doc.Find(".result").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if s.HasClass("result--ad") {
			return true
		}
		link := s.Find("a.result__a").First()
		href, _ := link.Attr("href")
		hit := model.SearchHit{
			Title:   strings.TrimSpace(link.Text()),
			URL:     unwrapRedirect(href),
			Snippet: strings.TrimSpace(s.Find(".result__snippet").First().Text()),
		}
		if hit.Title == "" && hit.URL == "" {
			return true
		}
		hits = append(hits, hit)
		return len(hits) < limit
	})
	return hits, nil
}

// unwrapRedirect turns //duckduckgo.com/l/?uddg=<target> links into the target URL.
func unwrapRedirect(href string) string {
	href = strings.TrimSpace(href)
	if !strings.Contains(href, "uddg=") {
		return href
	}
	parsed, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := parsed.Query().Get("uddg"); target != "" {
		return target
	}
	return href
}
