// Package config loads the application settings from config.yaml and the
// environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"go-enrich-pipeline/internal/model"
)

// EnvPrefix prefixes every environment override, e.g. ENRICH_BATCH_WORKERS.
const EnvPrefix = "ENRICH"

// ErrMissingKey is returned by Validate for each required setting left empty.
var ErrMissingKey = errors.New("missing required configuration")

type Config struct {
	Search  SearchConfig  `mapstructure:"search"`
	Extract ExtractConfig `mapstructure:"extract"`
	Sheets  SheetsConfig  `mapstructure:"sheets"`
	Batch   BatchConfig   `mapstructure:"batch"`
	Server  ServerConfig  `mapstructure:"server"`
	Store   StoreConfig   `mapstructure:"store"`
	Output  OutputConfig  `mapstructure:"output"`
	Log     LogConfig     `mapstructure:"log"`
}

type SearchConfig struct {
	Provider   string        `mapstructure:"provider"` // serpapi | duckduckgo
	APIKey     string        `mapstructure:"api_key"`
	Results    int           `mapstructure:"results"`
	FetchPages int           `mapstructure:"fetch_pages"` // 0 disables page text enrichment
	Timeout    time.Duration `mapstructure:"timeout"`
}

type ExtractConfig struct {
	Provider  string `mapstructure:"provider"` // anthropic | gemini
	APIKey    string `mapstructure:"api_key"`
	Model     string `mapstructure:"model"`
	MaxTokens int64  `mapstructure:"max_tokens"`
	Language  bool   `mapstructure:"language_hint"`
}

type SheetsConfig struct {
	CredentialsPath string `mapstructure:"credentials_path"`
}

type BatchConfig struct {
	MaxRetries     int           `mapstructure:"max_retries"`
	Workers        int           `mapstructure:"workers"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"`
	Multiplier     float64       `mapstructure:"multiplier"`
	RowDelay       time.Duration `mapstructure:"row_delay"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxUploadMB     int64         `mapstructure:"max_upload_mb"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
}

type StoreConfig struct {
	Path string `mapstructure:"path"`
}

type OutputConfig struct {
	Dir string `mapstructure:"dir"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"` // json | console
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("search.provider", "serpapi")
	v.SetDefault("search.api_key", "")
	v.SetDefault("search.results", 10)
	v.SetDefault("search.fetch_pages", 0)
	v.SetDefault("search.timeout", 30*time.Second)

	v.SetDefault("extract.provider", "anthropic")
	v.SetDefault("extract.api_key", "")
	v.SetDefault("extract.model", "")
	v.SetDefault("extract.max_tokens", 1024)
	v.SetDefault("extract.language_hint", true)

	v.SetDefault("sheets.credentials_path", "")

	v.SetDefault("batch.max_retries", model.DefaultRetryConfig.MaxRetries)
	v.SetDefault("batch.workers", 1)
	v.SetDefault("batch.initial_backoff", model.DefaultRetryConfig.InitialBackoff)
	v.SetDefault("batch.max_backoff", model.DefaultRetryConfig.MaxBackoff)
	v.SetDefault("batch.multiplier", model.DefaultRetryConfig.Multiplier)
	v.SetDefault("batch.row_delay", 2*time.Second)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.max_upload_mb", 32)
	v.SetDefault("server.cors_origins", []string{"*"})

	v.SetDefault("store.path", "data/enrich.db")
	v.SetDefault("output.dir", "output")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 28)
}

// Load reads path (or ./config.yaml when path is empty and the file exists),
// then applies ENRICH_* overrides and the provider key variables.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	// Well-known provider variables, used when the ENRICH_ form is unset.
	_ = v.BindEnv("search.api_key", EnvPrefix+"_SEARCH_API_KEY", "SERPAPI_KEY")
	_ = v.BindEnv("sheets.credentials_path", EnvPrefix+"_SHEETS_CREDENTIALS_PATH", "GOOGLE_SHEETS_CREDENTIALS_PATH")
	_ = v.BindEnv("keys.anthropic", "ANTHROPIC_API_KEY")
	_ = v.BindEnv("keys.gemini", "GEMINI_API_KEY", "GOOGLE_API_KEY")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	cfg.Search.Provider = strings.ToLower(strings.TrimSpace(cfg.Search.Provider))
	cfg.Extract.Provider = strings.ToLower(strings.TrimSpace(cfg.Extract.Provider))
	if cfg.Extract.APIKey == "" {
		switch cfg.Extract.Provider {
		case "anthropic":
			cfg.Extract.APIKey = v.GetString("keys.anthropic")
		case "gemini":
			cfg.Extract.APIKey = v.GetString("keys.gemini")
		}
	}
	return &cfg, nil
}

// Needs names the external services a command is about to use.
type Needs struct {
	Search  bool
	Extract bool
	Sheets  bool
}

// Validate fails fast when a setting needed by the command is missing or
// out of range. All problems are reported together.
func (c *Config) Validate(needs Needs) error {
	var errs []error
	missing := func(key, env string) {
		errs = append(errs, fmt.Errorf("%w: %s (env %s)", ErrMissingKey, key, env))
	}

	if needs.Search {
		switch c.Search.Provider {
		case "serpapi":
			if c.Search.APIKey == "" {
				missing("search.api_key", "SERPAPI_KEY")
			}
		case "duckduckgo":
		default:
			errs = append(errs, fmt.Errorf("unknown search.provider %q", c.Search.Provider))
		}
	}
	if needs.Extract {
		switch c.Extract.Provider {
		case "anthropic":
			if c.Extract.APIKey == "" {
				missing("extract.api_key", "ANTHROPIC_API_KEY")
			}
		case "gemini":
			if c.Extract.APIKey == "" {
				missing("extract.api_key", "GEMINI_API_KEY")
			}
		default:
			errs = append(errs, fmt.Errorf("unknown extract.provider %q", c.Extract.Provider))
		}
	}
	if needs.Sheets && c.Sheets.CredentialsPath == "" {
		missing("sheets.credentials_path", "GOOGLE_SHEETS_CREDENTIALS_PATH")
	}

	if c.Batch.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("batch.max_retries must be >= 0, got %d", c.Batch.MaxRetries))
	}
	if c.Batch.Workers < 1 {
		errs = append(errs, fmt.Errorf("batch.workers must be >= 1, got %d", c.Batch.Workers))
	}
	if c.Batch.InitialBackoff < 0 || c.Batch.MaxBackoff < 0 || c.Batch.RowDelay < 0 {
		errs = append(errs, errors.New("batch durations must not be negative"))
	}
	return errors.Join(errs...)
}

// Retry returns the per-row retry settings.
func (c *Config) Retry() model.RetryConfig {
	return model.RetryConfig{
		MaxRetries:     c.Batch.MaxRetries,
		InitialBackoff: c.Batch.InitialBackoff,
		MaxBackoff:     c.Batch.MaxBackoff,
		Multiplier:     c.Batch.Multiplier,
	}
}
