// Package anthropic extracts fields from search results with Claude.
package anthropic

import (
	"context"
	"errors"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"go-enrich-pipeline/internal/provider"
	"go-enrich-pipeline/internal/provider/prompt"
)

const (
	name             = "anthropic"
	defaultModel     = "claude-3-5-haiku-20241022"
	defaultMaxTokens = 1024
)

// ErrAPIKeyRequired is returned when no API key is configured.
var ErrAPIKeyRequired = errors.New("anthropic API key required")

// Config holds the client settings.
type Config struct {
	APIKey    string
	Model     string
	MaxTokens int64
	BaseURL   string // for tests and proxies
}

// Extractor implements provider.ExtractionProvider.
type Extractor struct {
	client    anthropic.Client
	model     anthropic.Model
	maxTokens int64
	prompts   *prompt.Builder
	logger    *zap.Logger
}

// New creates an Extractor. The SDK's own retries are disabled: the batch
// runner owns the retry policy.
func New(cfg Config, prompts *prompt.Builder, logger *zap.Logger) (*Extractor, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: set ANTHROPIC_API_KEY or extract.api_key", ErrAPIKeyRequired)
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if prompts == nil {
		prompts = &prompt.Builder{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Extractor{
		client:    anthropic.NewClient(opts...),
		model:     anthropic.Model(cfg.Model),
		maxTokens: cfg.MaxTokens,
		prompts:   prompts,
		logger:    logger,
	}, nil
}

func (e *Extractor) Name() string { return name }

// Extract asks the model for a JSON object holding the requested fields.
func (e *Extractor) Extract(ctx context.Context, req provider.ExtractRequest) (map[string]string, error) {
	text, err := e.prompts.Render(req)
	if err != nil {
		return nil, provider.NewPermanent(name, err)
	}

	message, err := e.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     e.model,
		MaxTokens: e.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(text)),
		},
	})
	if err != nil {
		return nil, classify(ctx, err)
	}

	for _, block := range message.Content {
		if block.Type != "text" {
			continue
		}
		fields, parseErr := prompt.ParseFields(block.Text, req.Fields)
		if parseErr != nil {
			e.logger.Debug("anthropic: unparseable answer", zap.String("entity", req.Entity), zap.String("text", block.Text))
			return nil, provider.NewTransient(name, parseErr)
		}
		return fields, nil
	}
	return nil, provider.NewTransient(name, errors.New("unexpected response format: no text block"))
}

func classify(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return provider.NewPermanent(name, err)
	}
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return provider.FromStatus(name, apiErr.StatusCode, err)
	}
	return provider.FromTransport(ctx, name, err)
}
