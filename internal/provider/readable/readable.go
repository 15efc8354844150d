// Package readable decorates a search provider with the main text of the
// top result pages.
package readable

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"go-enrich-pipeline/internal/provider"
)

const (
	defaultPages    = 3
	defaultTimeout  = 15 * time.Second
	defaultMaxChars = 4000
	fetchLimit      = 5
)

// Config controls page fetching.
type Config struct {
	Pages    int // top hits to fetch
	Timeout  time.Duration
	MaxChars int
}

// Search wraps another SearchProvider. Page fetch failures are logged and the
// hit keeps its snippet; they never fail the search.
type Search struct {
	next   provider.SearchProvider
	cfg    Config
	http   *http.Client
	logger *zap.Logger
}

// Wrap returns next decorated with page text enrichment.
func Wrap(next provider.SearchProvider, cfg Config, logger *zap.Logger) *Search {
	if cfg.Pages <= 0 {
		cfg.Pages = defaultPages
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = defaultMaxChars
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Search{next: next, cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}, logger: logger}
}

func (s *Search) Name() string { return s.next.Name() + "+readable" }

func (s *Search) Search(ctx context.Context, query string) (provider.SearchResult, error) {
	result, err := s.next.Search(ctx, query)
	if err != nil {
		return result, err
	}

	n := min(s.cfg.Pages, len(result.Hits))
	var g errgroup.Group
	g.SetLimit(fetchLimit)
	for i := 0; i < n; i++ {
		if result.Hits[i].URL == "" || result.Hits[i].Content != "" {
			continue
		}
		g.Go(func() error {
			text, fetchErr := s.fetch(ctx, result.Hits[i].URL)
			if fetchErr != nil {
				s.logger.Debug("readable: page skipped", zap.String("url", result.Hits[i].URL), zap.Error(fetchErr))
				return nil
			}
			result.Hits[i].Content = text
			return nil
		})
	}
	_ = g.Wait()
	return result, nil
}

func (s *Search) fetch(ctx context.Context, rawURL string) (string, error) {
	pageURL, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; go-enrich-pipeline/1.0)")
	resp, err := s.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}

	parser := readability.NewParser()
	article, err := parser.Parse(io.LimitReader(resp.Body, 4<<20), pageURL)
	if err != nil {
		return "", fmt.Errorf("readability: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(article.Content))
	if err != nil {
		return "", err
	}
	return clip(strings.Join(strings.Fields(doc.Text()), " "), s.cfg.MaxChars), nil
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
