// Package gemini extracts fields from search results with Google's Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"go-enrich-pipeline/internal/provider"
	"go-enrich-pipeline/internal/provider/prompt"
)

const (
	name         = "gemini"
	defaultModel = "gemini-2.0-flash"
)

// ErrAPIKeyRequired is returned when no API key is configured.
var ErrAPIKeyRequired = errors.New("gemini API key required")

// Config holds the client settings.
type Config struct {
	APIKey  string
	Model   string
	BaseURL string
}

// Extractor implements provider.ExtractionProvider.
type Extractor struct {
	client  *genai.Client
	model   string
	prompts *prompt.Builder
	logger  *zap.Logger
}

// New creates an Extractor.
func New(ctx context.Context, cfg Config, prompts *prompt.Builder, logger *zap.Logger) (*Extractor, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: set GEMINI_API_KEY or extract.api_key", ErrAPIKeyRequired)
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if prompts == nil {
		prompts = &prompt.Builder{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &Extractor{client: client, model: cfg.Model, prompts: prompts, logger: logger}, nil
}

func (e *Extractor) Name() string { return name }

// Extract asks the model for a JSON object holding the requested fields.
func (e *Extractor) Extract(ctx context.Context, req provider.ExtractRequest) (map[string]string, error) {
	text, err := e.prompts.Render(req)
	if err != nil {
		return nil, provider.NewPermanent(name, err)
	}

	resp, err := e.client.Models.GenerateContent(ctx, e.model, genai.Text(text), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return nil, classify(ctx, err)
	}

	answer := strings.TrimSpace(resp.Text())
	if answer == "" {
		return nil, provider.NewTransient(name, errors.New("empty response"))
	}
	fields, err := prompt.ParseFields(answer, req.Fields)
	if err != nil {
		e.logger.Debug("gemini: unparseable answer", zap.String("entity", req.Entity), zap.String("text", answer))
		return nil, provider.NewTransient(name, err)
	}
	return fields, nil
}

func classify(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return provider.NewPermanent(name, err)
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return provider.FromStatus(name, apiErr.Code, err)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return provider.FromStatus(name, apiErrPtr.Code, err)
	}
	return provider.FromTransport(ctx, name, err)
}
