// Package llm provides the HTTP client for the hosted completion and
// embedding API, response adaptation, and token estimation.
//
// The backend is an OpenAI-compatible API whose completion response
// shape is not fully specified; see response.go for the adaptation
// contract. All calls are synchronous and block until the network
// round-trip completes.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// Config contains all parameters for the Client.
type Config struct {
	BaseURL         string  // API root without trailing slash, e.g. "https://api.together.xyz/v1"
	APIKey          string  // Bearer credential
	Model           string  // Completion model identifier
	EmbedModel      string  // Embedding model identifier
	Temperature     float32 // Fixed sampling temperature
	MaxOutputTokens int     // Cap on generated tokens per call

	// Timeout bounds each HTTP request. Zero means no timeout: a hung
	// backend hangs the turn. This matches the documented behavior of
	// the system; operators can set a bound via configuration.
	Timeout time.Duration

	Limiter *rate.Limiter // Optional proactive rate limiting (nil = disabled)
	Logger  *slog.Logger  // nil = slog.Default()
}

// validate checks required client parameters.
func (cfg Config) validate() error {
	if cfg.BaseURL == "" {
		return errors.New("base URL is required")
	}
	if cfg.APIKey == "" {
		return errors.New("API key is required")
	}
	if cfg.Model == "" {
		return errors.New("model is required")
	}
	return nil
}

// Client calls the hosted completion and embedding endpoints.
// Safe for concurrent use.
type Client struct {
	baseURL     string
	apiKey      string
	model       string
	embedModel  string
	temperature float32
	maxTokens   int

	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// New creates a Client.
func New(cfg Config) (*Client, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	maxTokens := cfg.MaxOutputTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	return &Client{
		baseURL:     cfg.BaseURL,
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		embedModel:  cfg.EmbedModel,
		temperature: cfg.Temperature,
		maxTokens:   maxTokens,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		limiter:     cfg.Limiter,
		logger:      logger,
	}, nil
}

// completionRequest is the wire format for the completions endpoint.
type completionRequest struct {
	Model       string  `json:"model"`
	Prompt      string  `json:"prompt"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float32 `json:"temperature"`
}

// Complete posts a prompt to the completions endpoint and returns the
// raw response body. Callers normalize the body via ExtractText; the
// raw form is kept because the response shape varies by backend.
func (c *Client) Complete(ctx context.Context, prompt string) ([]byte, error) {
	body, err := json.Marshal(completionRequest{
		Model:       c.model,
		Prompt:      prompt,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding completion request: %w", err)
	}

	raw, err := c.post(ctx, c.baseURL+"/completions", body)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("completion call finished",
		"prompt_length", len(prompt),
		"response_bytes", len(raw))
	return raw, nil
}

// Generate posts a prompt and extracts the assistant text from the
// response per the adaptation contract in response.go.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	raw, err := c.Complete(ctx, prompt)
	if err != nil {
		return "", err
	}
	return ExtractText(raw)
}

// embeddingRequest is the wire format for the embeddings endpoint.
type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// embeddingResponse is the typed embeddings response. Unlike the
// completions endpoint, this shape is stable across backends.
type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

// Embed returns one embedding vector per input text, in input order.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(embeddingRequest{Model: c.embedModel, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("encoding embedding request: %w", err)
	}

	raw, err := c.post(ctx, c.baseURL+"/embeddings", body)
	if err != nil {
		return nil, err
	}

	var resp embeddingResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decoding embedding response: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: got %d, want %d", len(resp.Data), len(texts))
	}

	vectors := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, fmt.Errorf("embedding index %d out of range", d.Index)
		}
		vectors[d.Index] = d.Embedding
	}
	for i, v := range vectors {
		if len(v) == 0 {
			return nil, fmt.Errorf("empty embedding returned for input %d", i)
		}
	}

	return vectors, nil
}

// post sends an authenticated JSON POST and returns the response body.
func (c *Client) post(ctx context.Context, url string, body []byte) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling %s: %w", url, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, truncateForError(raw))
	}

	return raw, nil
}

// truncateForError bounds response bodies quoted in error messages.
func truncateForError(raw []byte) string {
	const max = 256
	if len(raw) > max {
		return string(raw[:max]) + "..."
	}
	return string(raw)
}
