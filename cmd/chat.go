package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/askdoc/askdoc/db"
	"github.com/askdoc/askdoc/internal/agent"
	"github.com/askdoc/askdoc/internal/config"
	"github.com/askdoc/askdoc/internal/database"
	"github.com/askdoc/askdoc/internal/llm"
	"github.com/askdoc/askdoc/internal/log"
	"github.com/askdoc/askdoc/internal/ui"
	"github.com/askdoc/askdoc/internal/vector"
)

func runChat(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	// A missing .env is fine; the environment may carry everything.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := log.New(log.Config{})

	if err := db.Migrate(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	client, err := llm.New(llm.Config{
		BaseURL:         cfg.BaseURL,
		APIKey:          cfg.APIKey,
		Model:           cfg.Model,
		EmbedModel:      cfg.EmbedModel,
		Temperature:     cfg.Temperature,
		MaxOutputTokens: cfg.MaxOutputTokens,
		Timeout:         cfg.RequestTimeout,
		Limiter:         rate.NewLimiter(rate.Limit(2), 4),
		Logger:          logger,
	})
	if err != nil {
		return fmt.Errorf("creating llm client: %w", err)
	}

	store := vector.New(pool, client, logger)

	ag, err := agent.New(ctx, agent.Config{
		LLM:              client,
		Store:            store,
		Logger:           logger,
		DocumentPath:     cfg.DocumentPath,
		CorpusCollection: cfg.CorpusCollection,
		CorpusK:          cfg.CorpusK,
		SessionK:         cfg.SessionK,
		CorpusWeight:     cfg.CorpusWeight,
		SessionWeight:    cfg.SessionWeight,
		ChunkSize:        cfg.ChunkSize,
		ChunkOverlap:     cfg.ChunkOverlap,
		MemoryTokenLimit: cfg.MemoryTokenLimit,
		MaxContextTokens: cfg.MaxContextTokens,
		ContextBudget:    cfg.ContextBudget,
		HistoryBudget:    cfg.HistoryBudget,
		TemplateBudget:   cfg.TemplateBudget,
	})
	if err != nil {
		return fmt.Errorf("creating agent: %w", err)
	}
	defer ag.Close(ctx)

	console := ui.NewConsole(os.Stdin, os.Stdout)
	console.Printf("askdoc session %s\n", ag.SessionID())
	console.Println(`Type a question, or "exit" to quit.`)
	console.Println()

	if cfg.InitialOverview && cfg.DocumentPath != "" {
		overview, err := ag.Overview(ctx, cfg.OverviewQuery)
		if err != nil {
			logger.Warn("initial overview failed", "error", err)
		} else {
			console.Println(overview)
			console.Println()
		}
	}

	runLoop(ctx, console, ag.Chat)
	return nil
}

// runLoop drives the read-answer cycle until EOF or an exit command.
// Per-turn errors are printed and the loop continues.
func runLoop(ctx context.Context, io ui.IO, chat func(context.Context, string) (string, error)) {
	for {
		io.Print("> ")
		if !io.Scan() {
			io.Println()
			return
		}

		input := strings.TrimSpace(io.Text())
		if input == "" {
			continue
		}
		if isExitCommand(input) {
			io.Println("Goodbye!")
			return
		}

		answer, err := chat(ctx, input)
		if err != nil {
			var budgetErr *agent.BudgetError
			if errors.As(err, &budgetErr) {
				io.Printf("Question too large: %v\n", budgetErr)
			} else {
				io.Printf("Error: %v\n", err)
			}
			continue
		}
		io.Println(answer)
		io.Println()
	}
}

func isExitCommand(input string) bool {
	switch strings.ToLower(input) {
	case "exit", "quit", "q":
		return true
	}
	return false
}
