// Package agent wires retrieval, memory and the language model into a
// single-session conversational loop over a document corpus.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/askdoc/askdoc/internal/llm"
	"github.com/askdoc/askdoc/internal/memory"
	"github.com/askdoc/askdoc/internal/retriever"
	"github.com/askdoc/askdoc/internal/splitter"
	"github.com/askdoc/askdoc/internal/vector"
)

const overviewPrompt = `Using only the context below, write a short overview of what the document is about. Two or three sentences.

Context:
%s

Overview:`

// Store is the vector-store capability the agent needs. vector.Store
// satisfies it.
type Store interface {
	EnsureCollection(ctx context.Context, name string) (uuid.UUID, error)
	AddDocuments(ctx context.Context, collection string, docs []vector.Document) error
	DropCollection(ctx context.Context, name string) error
	Search(ctx context.Context, collection, query string, opts ...vector.SearchOption) ([]vector.Result, error)
}

type conversationChain interface {
	Run(ctx context.Context, session uuid.UUID, input string) (*ChainResult, error)
}

// Config holds the dependencies and tuning for an Agent.
type Config struct {
	LLM    Generator
	Store  Store
	Logger *slog.Logger

	DocumentPath string

	CorpusCollection string
	CorpusK          int
	SessionK         int
	CorpusWeight     float64
	SessionWeight    float64

	ChunkSize    int
	ChunkOverlap int

	MemoryTokenLimit int

	// Token budget for the pre-flight guard on Chat.
	MaxContextTokens int
	ContextBudget    int
	HistoryBudget    int
	TemplateBudget   int
}

func (c *Config) validate() error {
	if c.LLM == nil {
		return errors.New("llm client is required")
	}
	if c.Store == nil {
		return errors.New("vector store is required")
	}
	if c.CorpusCollection == "" {
		return errors.New("corpus collection name is required")
	}
	if c.CorpusK <= 0 || c.SessionK <= 0 {
		return errors.New("retrieval k values must be positive")
	}
	if c.MaxContextTokens <= 0 {
		return errors.New("max context tokens must be positive")
	}
	return nil
}

// Agent owns one chat session: an ephemeral collection holding the
// uploaded document, the ensemble retriever spanning it and the corpus,
// and the session's conversation memory.
type Agent struct {
	cfg     Config
	session uuid.UUID
	tmpName string
	store   Store
	memory  *memory.Store
	chain   conversationChain
	retr    Retriever
	logger  *slog.Logger
}

// New creates an Agent, ensures both collections exist and ingests the
// configured document into the session collection.
func New(ctx context.Context, cfg Config) (*Agent, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid agent config: %w", err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	session := uuid.New()
	tmpName := "tmp_" + session.String()

	if _, err := cfg.Store.EnsureCollection(ctx, cfg.CorpusCollection); err != nil {
		return nil, fmt.Errorf("ensuring corpus collection: %w", err)
	}
	if _, err := cfg.Store.EnsureCollection(ctx, tmpName); err != nil {
		return nil, fmt.Errorf("ensuring session collection: %w", err)
	}

	a := &Agent{
		cfg:     cfg,
		session: session,
		tmpName: tmpName,
		store:   cfg.Store,
		logger:  logger,
	}

	if cfg.DocumentPath != "" {
		chunks, err := a.loadDocument(ctx, cfg.DocumentPath)
		if err != nil {
			return nil, err
		}
		logger.Info("document ingested",
			"path", cfg.DocumentPath,
			"chunks", chunks,
			"session", session)
	}

	a.retr = retriever.NewEnsemble(cfg.Store, []retriever.Source{
		{Collection: cfg.CorpusCollection, K: cfg.CorpusK, Weight: cfg.CorpusWeight},
		{Collection: tmpName, K: cfg.SessionK, Weight: cfg.SessionWeight},
	}, cfg.CorpusK+cfg.SessionK, logger)

	a.memory = memory.NewStore(func() *memory.Buffer {
		return memory.NewBuffer(cfg.LLM, cfg.MemoryTokenLimit, logger)
	})

	a.chain = &chain{
		llm:       cfg.LLM,
		retriever: a.retr,
		memory:    a.memory,
		logger:    logger,
	}

	return a, nil
}

// SessionID returns this agent's session identifier.
func (a *Agent) SessionID() uuid.UUID {
	return a.session
}

// Chat answers one user turn. Before any network call it estimates the
// prompt cost as the query's tokens plus the fixed context, history and
// template budgets; a query over the window fails with a *BudgetError.
// An empty query costs only the fixed budgets and passes.
func (a *Agent) Chat(ctx context.Context, query string) (string, error) {
	estimated := llm.EstimateTokens(query) + a.cfg.ContextBudget + a.cfg.HistoryBudget + a.cfg.TemplateBudget
	if estimated > a.cfg.MaxContextTokens {
		return "", &BudgetError{Estimated: estimated, Max: a.cfg.MaxContextTokens}
	}

	result, err := a.chain.Run(ctx, a.session, query)
	if err != nil {
		return "", err
	}
	return result.Answer, nil
}

// Overview retrieves context for the configured overview query and asks
// the model for a short description of the document, seeding the
// conversation memory with the exchange so follow-ups can refer to it.
func (a *Agent) Overview(ctx context.Context, overviewQuery string) (string, error) {
	results, err := a.retr.Retrieve(ctx, overviewQuery)
	if err != nil {
		return "", fmt.Errorf("retrieving overview context: %w", err)
	}

	overview, err := a.cfg.LLM.Generate(ctx, fmt.Sprintf(overviewPrompt, formatContext(results)))
	if err != nil {
		return "", fmt.Errorf("generating overview: %w", err)
	}
	overview = strings.TrimSpace(overview)

	buf := a.memory.Buffer(a.session)
	buf.Seed(memory.RoleHuman, overviewQuery)
	buf.Seed(memory.RoleAI, overview)

	return overview, nil
}

// Close drops the session collection and releases the session memory.
// Cleanup failures are logged, never returned: the database removal is
// best effort at the end of a session.
func (a *Agent) Close(ctx context.Context) {
	if err := a.store.DropCollection(ctx, a.tmpName); err != nil {
		a.logger.Warn("dropping session collection failed",
			"collection", a.tmpName,
			"error", err)
	}
	a.memory.Remove(a.session)
}

func (a *Agent) loadDocument(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("reading document: %w", err)
	}

	split := splitter.New(a.cfg.ChunkSize, a.cfg.ChunkOverlap, a.logger)
	chunks := split.Split(string(data))

	docs := make([]vector.Document, len(chunks))
	for i, chunk := range chunks {
		source := fmt.Sprintf("%s#%d", path, i)
		docs[i] = vector.Document{
			ID:      source,
			Content: chunk,
			Metadata: map[string]string{
				"session_id": a.session.String(),
				"source":     source,
				"type":       "user_upload",
			},
		}
	}

	if len(docs) > 0 {
		if err := a.store.AddDocuments(ctx, a.tmpName, docs); err != nil {
			return 0, fmt.Errorf("indexing document: %w", err)
		}
	}
	return len(docs), nil
}
