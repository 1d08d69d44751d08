// Package config provides application configuration with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (DATABASE_URL, TOGETHER_API_KEY, ASKDOC_* overrides)
//  2. Config file (~/.askdoc/config.yaml or ./config.yaml)
//  3. Default values
//
// Two settings are required and have no defaults: the Postgres connection
// URL and the completion API credential. Their absence is a startup-fatal
// error surfaced as a typed sentinel, never a late failure mid-session.
//
// Security: the API credential is masked in MarshalJSON() and String().
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

var (
	// ErrMissingDatabaseURL indicates the Postgres connection URL is not set.
	ErrMissingDatabaseURL = errors.New("missing database URL")

	// ErrMissingAPIKey indicates the completion API credential is not set.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidDatabaseURL indicates the Postgres connection URL is malformed.
	ErrInvalidDatabaseURL = errors.New("invalid database URL")

	// ErrInvalidTemperature indicates the sampling temperature is out of range.
	ErrInvalidTemperature = errors.New("invalid temperature")

	// ErrInvalidMaxTokens indicates the output token cap is out of range.
	ErrInvalidMaxTokens = errors.New("invalid max tokens")

	// ErrInvalidChunking indicates chunk size/overlap settings are inconsistent.
	ErrInvalidChunking = errors.New("invalid chunking settings")

	// ErrInvalidRetrieval indicates retriever counts or weights are invalid.
	ErrInvalidRetrieval = errors.New("invalid retrieval settings")

	// ErrInvalidBudget indicates token-budget guard settings are invalid.
	ErrInvalidBudget = errors.New("invalid token budget settings")
)

// Defaults matching the hosted completion API this agent speaks to.
const (
	// DefaultBaseURL is the OpenAI-compatible API root (without trailing slash).
	DefaultBaseURL = "https://api.together.xyz/v1"

	// DefaultModel is the completion model identifier.
	DefaultModel = "mistralai/Mixtral-8x7B-Instruct-v0.1"

	// DefaultEmbedModel is the embedding model identifier. Its output
	// dimension must match vector.Dimension in the pgvector schema.
	DefaultEmbedModel = "togethercomputer/m2-bert-80M-8k-retrieval"
)

// Config stores application configuration.
// SECURITY: APIKey is explicitly masked in MarshalJSON().
type Config struct {
	// Required external settings
	DatabaseURL string `mapstructure:"database_url" json:"database_url"`
	APIKey      string `mapstructure:"api_key" json:"api_key"` // SENSITIVE: masked in MarshalJSON

	// Completion API
	BaseURL         string        `mapstructure:"base_url" json:"base_url"`
	Model           string        `mapstructure:"model" json:"model"`
	EmbedModel      string        `mapstructure:"embed_model" json:"embed_model"`
	Temperature     float32       `mapstructure:"temperature" json:"temperature"`
	MaxOutputTokens int           `mapstructure:"max_output_tokens" json:"max_output_tokens"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout" json:"request_timeout"` // 0 = no timeout

	// Document ingestion
	DocumentPath string `mapstructure:"document_path" json:"document_path"`
	ChunkSize    int    `mapstructure:"chunk_size" json:"chunk_size"`
	ChunkOverlap int    `mapstructure:"chunk_overlap" json:"chunk_overlap"`

	// Retrieval
	CorpusCollection string  `mapstructure:"corpus_collection" json:"corpus_collection"`
	CorpusK          int     `mapstructure:"corpus_k" json:"corpus_k"`
	SessionK         int     `mapstructure:"session_k" json:"session_k"`
	CorpusWeight     float64 `mapstructure:"corpus_weight" json:"corpus_weight"`
	SessionWeight    float64 `mapstructure:"session_weight" json:"session_weight"`

	// Conversation memory
	MemoryTokenLimit int `mapstructure:"memory_token_limit" json:"memory_token_limit"`

	// Token-budget guard. These are fixed approximations of retrieved
	// context, history and template overhead; they are deliberately NOT
	// derived from actual content, so the guard can under- or
	// over-estimate true prompt cost.
	MaxContextTokens int `mapstructure:"max_context_tokens" json:"max_context_tokens"`
	ContextBudget    int `mapstructure:"context_budget" json:"context_budget"`
	HistoryBudget    int `mapstructure:"history_budget" json:"history_budget"`
	TemplateBudget   int `mapstructure:"template_budget" json:"template_budget"`

	// Startup behavior
	InitialOverview bool   `mapstructure:"initial_overview" json:"initial_overview"`
	OverviewQuery   string `mapstructure:"overview_query" json:"overview_query"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > default values.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(filepath.Join(home, ".askdoc"))
	v.AddConfigPath(".")

	setDefaults(v)
	bindEnvVariables(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is not an error; defaults apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using defaults")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("base_url", DefaultBaseURL)
	v.SetDefault("model", DefaultModel)
	v.SetDefault("embed_model", DefaultEmbedModel)
	v.SetDefault("temperature", 0.7)
	v.SetDefault("max_output_tokens", 1024)
	v.SetDefault("request_timeout", time.Duration(0))

	v.SetDefault("document_path", "./report.md")
	v.SetDefault("chunk_size", 1200)
	v.SetDefault("chunk_overlap", 150)

	v.SetDefault("corpus_collection", "corpus_global")
	v.SetDefault("corpus_k", 3)
	v.SetDefault("session_k", 1)
	v.SetDefault("corpus_weight", 0.7)
	v.SetDefault("session_weight", 0.3)

	v.SetDefault("memory_token_limit", 3000)

	v.SetDefault("max_context_tokens", 32000)
	v.SetDefault("context_budget", 2000)
	v.SetDefault("history_budget", 1000)
	v.SetDefault("template_budget", 500)

	v.SetDefault("initial_overview", true)
	v.SetDefault("overview_query", "document purpose key findings methodology open questions")
}

// bindEnvVariables binds environment variables.
// The two secrets use their conventional unprefixed names; everything
// else is overridable through ASKDOC_-prefixed variables.
func bindEnvVariables(v *viper.Viper) {
	// Hardcoded keys cannot fail to bind; a failure here is a bug.
	mustBind := func(key string, envVars ...string) {
		if err := v.BindEnv(append([]string{key}, envVars...)...); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q: %v", key, err))
		}
	}

	mustBind("database_url", "DATABASE_URL")
	mustBind("api_key", "TOGETHER_API_KEY")

	v.SetEnvPrefix("ASKDOC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// maskedValue is the placeholder for masked sensitive data.
const maskedValue = "████████"

// maskSecret masks a secret for safe logging. Secrets of 8 chars or
// fewer are fully masked; longer ones show the first and last 2 chars.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// maskDatabaseURL masks the password component of a connection URL.
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	if _, hasPassword := u.User.Password(); hasPassword {
		u.User = url.UserPassword(u.User.Username(), maskedValue)
	}
	return u.String()
}

// MarshalJSON implements json.Marshaler with sensitive field masking.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.APIKey = maskSecret(a.APIKey)
	a.DatabaseURL = maskDatabaseURL(a.DatabaseURL)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
