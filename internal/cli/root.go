package cli

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "keepsake",
	Short: "Tiered, decaying memory for AI coding sessions",
	Long:  "Keepsake maintains a store of small memory atoms inferred from past sessions: they decay with disuse, strengthen with use, and graduate from short-term to long-term tiers. Relevant memories are injected at session start.",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(hookCmd)
	rootCmd.AddCommand(retrieveCmd)
	rootCmd.AddCommand(rememberCmd)
	rootCmd.AddCommand(maintainCmd)
	rootCmd.AddCommand(statusCmd)
}
