package cmd

import (
	"github.com/spf13/cobra"
)

// Version information (injected at build time via ldflags).
var (
	AppVersion = "development"
	GitCommit  = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Printf("askdoc %s (%s)\n", AppVersion, GitCommit)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
