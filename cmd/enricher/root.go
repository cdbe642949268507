package main

import (
	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "enricher",
	Short: "Fill AI-generated metadata into repository documents",
	Long: "enricher summarizes, classifies, describes and entity-links Alfresco\n" +
		"documents through the GenAI service. Batch passes and the event listener\n" +
		"coordinate only through the metadata they write.",
	SilenceUsage: true,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
}

func init() {
	rootCmd.AddCommand(applyCmd)
	rootCmd.AddCommand(listenCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.Version = version
}
