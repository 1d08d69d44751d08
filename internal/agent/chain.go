package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/askdoc/askdoc/internal/memory"
	"github.com/askdoc/askdoc/internal/vector"
)

const condensePrompt = `Given the conversation so far and a follow-up question, rephrase the follow-up into a standalone search query. Keep the query short and specific.

Conversation so far:
%s

Follow-up question:
%s

Search query:`

const answerPrompt = `You are an assistant answering questions using the retrieved context below. If the context does not contain the answer, say "I don't know". Do not make up an answer.

Context:
%s

Conversation so far:
%s

Question:
%s

Helpful answer:`

// ChainResult carries the answer together with the retrieved chunks it
// was generated from.
type ChainResult struct {
	Answer  string
	Context []vector.Result
}

// Retriever produces the ranked context for a search query.
// retriever.Ensemble satisfies it.
type Retriever interface {
	Retrieve(ctx context.Context, query string) ([]vector.Result, error)
}

// Generator produces text completions. llm.Client satisfies it.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// chain runs one conversational retrieval turn: rewrite the question
// against the history, retrieve context, synthesize an answer, record
// the exchange.
type chain struct {
	llm       Generator
	retriever Retriever
	memory    *memory.Store
	logger    *slog.Logger
}

func (c *chain) Run(ctx context.Context, session uuid.UUID, input string) (*ChainResult, error) {
	buf := c.memory.Buffer(session)
	history := buf.History()

	searchQuery := input
	if history != "" {
		rewritten, err := c.llm.Generate(ctx, fmt.Sprintf(condensePrompt, history, input))
		if err != nil {
			return nil, fmt.Errorf("condensing question: %w", err)
		}
		rewritten = strings.TrimSpace(rewritten)
		if rewritten != "" {
			searchQuery = rewritten
		}
		c.logger.Debug("question condensed",
			"original_length", len(input),
			"query_length", len(searchQuery))
	}

	results, err := c.retriever.Retrieve(ctx, searchQuery)
	if err != nil {
		return nil, fmt.Errorf("retrieving context: %w", err)
	}

	answer, err := c.llm.Generate(ctx, fmt.Sprintf(answerPrompt, formatContext(results), history, input))
	if err != nil {
		return nil, fmt.Errorf("generating answer: %w", err)
	}
	answer = strings.TrimSpace(answer)

	if err := buf.AppendExchange(ctx, input, answer); err != nil {
		// The answer is already produced; a failed summary only affects
		// later turns.
		c.logger.Warn("recording exchange failed", "error", err)
	}

	return &ChainResult{Answer: answer, Context: results}, nil
}

func formatContext(results []vector.Result) string {
	parts := make([]string, len(results))
	for i, r := range results {
		parts[i] = r.Document.Content
	}
	return strings.Join(parts, "\n\n")
}
