package vector

import "time"

// Dimension is the embedding dimension of the documents table schema.
// The configured embedding model must output vectors of this size.
const Dimension = 768

// Document is one stored chunk of text with provenance metadata.
type Document struct {
	ID        string            // Unique within its collection
	Content   string            // Chunk text
	Metadata  map[string]string // Provenance (session id, source locator, origin tag)
	CreatedAt time.Time
}

// Result is a single search hit with its similarity score.
type Result struct {
	Document   Document
	Similarity float64 // Cosine similarity (1 = identical direction)
}

// SearchOption configures search behavior using functional options.
type SearchOption func(*searchConfig)

// searchConfig holds internal search configuration.
type searchConfig struct {
	topK    int
	timeout time.Duration
}

// WithTopK sets the maximum number of results. Default is 4.
func WithTopK(k int) SearchOption {
	return func(c *searchConfig) {
		if k > 0 {
			c.topK = k
		}
	}
}

// WithTimeout bounds a single search query. Default is 10 seconds.
func WithTimeout(d time.Duration) SearchOption {
	return func(c *searchConfig) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// buildSearchConfig applies options over defaults.
func buildSearchConfig(opts []SearchOption) *searchConfig {
	cfg := &searchConfig{
		topK:    4,
		timeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}
