// Package cmd wires the CLI: configuration, database, language model
// and the interactive chat loop.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "askdoc",
	Short: "askdoc - chat with a document corpus from your terminal",
	Long: `askdoc answers questions about a reference corpus and an optionally
uploaded document. It retrieves relevant chunks from Postgres with
pgvector and asks a hosted language model to synthesize the answer.

Running askdoc with no arguments starts an interactive chat session.`,
	RunE:          runChat,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
