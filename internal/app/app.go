// Package app assembles the job manager from configuration. The CLI and the
// API server share it.
package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"go-enrich-pipeline/internal/config"
	"go-enrich-pipeline/internal/pipeline"
	"go-enrich-pipeline/internal/provider"
	"go-enrich-pipeline/internal/provider/anthropic"
	"go-enrich-pipeline/internal/provider/duckduckgo"
	"go-enrich-pipeline/internal/provider/gemini"
	"go-enrich-pipeline/internal/provider/prompt"
	"go-enrich-pipeline/internal/provider/readable"
	"go-enrich-pipeline/internal/provider/serpapi"
	"go-enrich-pipeline/internal/sink"
	"go-enrich-pipeline/internal/store"
)

// App holds the long-lived services of a process.
type App struct {
	Config  *config.Config
	Store   *store.Store
	Manager *pipeline.Manager
	Logger  *zap.Logger
}

// New validates cfg for a command that runs jobs, opens the store and builds
// the providers and job manager.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if err := cfg.Validate(config.Needs{Search: true, Extract: true}); err != nil {
		return nil, err
	}
	search, err := NewSearch(cfg.Search, logger)
	if err != nil {
		return nil, err
	}
	extract, err := NewExtractor(ctx, cfg.Extract, logger)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return nil, err
	}
	if n, err := st.MarkInterrupted(ctx); err != nil {
		logger.Warn("failed to mark interrupted jobs", zap.Error(err))
	} else if n > 0 {
		logger.Info("marked interrupted jobs as failed", zap.Int64("jobs", n))
	}

	m := pipeline.NewManager(search, extract, st, ManagerConfig(cfg), logger)
	logger.Info("app ready",
		zap.String("search", search.Name()),
		zap.String("extract", extract.Name()),
		zap.String("store", cfg.Store.Path))
	return &App{Config: cfg, Store: st, Manager: m, Logger: logger}, nil
}

// ManagerConfig maps the batch and output settings onto the job manager.
func ManagerConfig(cfg *config.Config) pipeline.Config {
	return pipeline.Config{
		Retry:       cfg.Retry(),
		Workers:     cfg.Batch.Workers,
		RowDelay:    cfg.Batch.RowDelay,
		OutputDir:   cfg.Output.Dir,
		SinkOptions: sink.Options{CredentialsPath: cfg.Sheets.CredentialsPath},
	}
}

// NewSearch builds the configured search provider, wrapped with page text
// enrichment when search.fetch_pages is set.
func NewSearch(cfg config.SearchConfig, logger *zap.Logger) (provider.SearchProvider, error) {
	var search provider.SearchProvider
	switch cfg.Provider {
	case "serpapi":
		c, err := serpapi.New(serpapi.Config{APIKey: cfg.APIKey, Results: cfg.Results, Timeout: cfg.Timeout}, logger)
		if err != nil {
			return nil, err
		}
		search = c
	case "duckduckgo":
		search = duckduckgo.New(duckduckgo.Config{Results: cfg.Results, Timeout: cfg.Timeout}, logger)
	default:
		return nil, fmt.Errorf("unknown search provider %q", cfg.Provider)
	}
	if cfg.FetchPages > 0 {
		search = readable.Wrap(search, readable.Config{Pages: cfg.FetchPages, Timeout: cfg.Timeout}, logger)
	}
	return search, nil
}

// NewExtractor builds the configured extraction provider.
func NewExtractor(ctx context.Context, cfg config.ExtractConfig, logger *zap.Logger) (provider.ExtractionProvider, error) {
	prompts := &prompt.Builder{}
	if cfg.Language {
		prompts.Detector = prompt.NewLanguageDetector()
	}
	switch cfg.Provider {
	case "anthropic":
		e, err := anthropic.New(anthropic.Config{APIKey: cfg.APIKey, Model: cfg.Model, MaxTokens: cfg.MaxTokens}, prompts, logger)
		if err != nil {
			return nil, err
		}
		return e, nil
	case "gemini":
		e, err := gemini.New(ctx, gemini.Config{APIKey: cfg.APIKey, Model: cfg.Model}, prompts, logger)
		if err != nil {
			return nil, err
		}
		return e, nil
	default:
		return nil, fmt.Errorf("unknown extraction provider %q", cfg.Provider)
	}
}

// Close stops running jobs and closes the store.
func (a *App) Close(ctx context.Context) error {
	return errors.Join(a.Manager.Shutdown(ctx), a.Store.Close())
}
