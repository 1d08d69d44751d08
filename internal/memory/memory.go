// Package memory keeps per-session conversation history under a token
// limit by folding the oldest turns into a rolling summary.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/askdoc/askdoc/internal/llm"
)

// Roles used for conversation turns.
const (
	RoleHuman = "Human"
	RoleAI    = "AI"
)

const summaryPrompt = `Progressively summarize the lines of conversation provided, adding onto the previous summary and returning a new summary.

Current summary:
%s

New lines of conversation:
%s

New summary:`

// Turn is a single message in the conversation.
type Turn struct {
	Role string
	Text string
}

func (t Turn) String() string {
	return t.Role + ": " + t.Text
}

// Summarizer produces the condensed summary text. llm.Client satisfies it.
type Summarizer interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Buffer holds the recent raw turns of one conversation plus a rolling
// summary of everything older. When the raw turns exceed tokenLimit the
// oldest are summarized away, so History stays bounded.
type Buffer struct {
	llm        Summarizer
	tokenLimit int
	logger     *slog.Logger

	summary string
	turns   []Turn
}

// NewBuffer creates an empty Buffer. tokenLimit bounds the estimated
// token count of the raw turns kept verbatim.
func NewBuffer(summarizer Summarizer, tokenLimit int, logger *slog.Logger) *Buffer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Buffer{
		llm:        summarizer,
		tokenLimit: tokenLimit,
		logger:     logger,
	}
}

// History renders the conversation so far: the rolling summary first,
// then the raw turns, one per line. Empty when nothing happened yet.
func (b *Buffer) History() string {
	var parts []string
	if b.summary != "" {
		parts = append(parts, b.summary)
	}
	for _, t := range b.turns {
		parts = append(parts, t.String())
	}
	return strings.Join(parts, "\n")
}

// Summary returns the rolling summary of turns no longer kept verbatim.
func (b *Buffer) Summary() string {
	return b.summary
}

// Len returns the number of raw turns currently kept.
func (b *Buffer) Len() int {
	return len(b.turns)
}

// Seed appends a turn without triggering summarization. Used to preload
// the buffer before the conversation starts.
func (b *Buffer) Seed(role, text string) {
	b.turns = append(b.turns, Turn{Role: role, Text: text})
}

// AppendExchange records one question and answer pair and then prunes
// the buffer back under the token limit. A summarization failure leaves
// the raw turns in place and is returned to the caller.
func (b *Buffer) AppendExchange(ctx context.Context, question, answer string) error {
	b.turns = append(b.turns,
		Turn{Role: RoleHuman, Text: question},
		Turn{Role: RoleAI, Text: answer},
	)
	return b.prune(ctx)
}

func (b *Buffer) prune(ctx context.Context) error {
	if b.tokensUsed() <= b.tokenLimit {
		return nil
	}

	var pruned []Turn
	for b.tokensUsed() > b.tokenLimit && len(b.turns) > 0 {
		pruned = append(pruned, b.turns[0])
		b.turns = b.turns[1:]
	}
	if len(pruned) == 0 {
		return nil
	}

	lines := make([]string, len(pruned))
	for i, t := range pruned {
		lines[i] = t.String()
	}

	prompt := fmt.Sprintf(summaryPrompt, b.summary, strings.Join(lines, "\n"))
	summary, err := b.llm.Generate(ctx, prompt)
	if err != nil {
		// Put the turns back so nothing is silently lost.
		b.turns = append(pruned, b.turns...)
		return fmt.Errorf("summarizing conversation: %w", err)
	}

	b.summary = strings.TrimSpace(summary)
	b.logger.Debug("conversation pruned",
		"summarized_turns", len(pruned),
		"remaining_turns", len(b.turns))
	return nil
}

func (b *Buffer) tokensUsed() int {
	total := 0
	for _, t := range b.turns {
		total += llm.EstimateTokens(t.String())
	}
	return total
}
