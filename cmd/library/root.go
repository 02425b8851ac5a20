package main

import (
	"github.com/spf13/cobra"

	"github.com/abhishek-sinu/Vedic-ebook-library-sub000/internal/api"
	"github.com/abhishek-sinu/Vedic-ebook-library-sub000/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "library",
	Short: "Book library server with a tiered content cache",
	Long: `Library serves the text of PDF, EPUB, DOCX, TXT and HTML books page by page.

Extracted content is kept in three tiers:
  - hot:  full content in memory, bounded by entry count and memory
  - warm: metadata for recently used books
  - disk: one JSON blob per book, rebuilt into an index on startup

Pages and in-book search share the same page boundaries, so a search hit
on page N is on page N of the HTML reader.`,
	Version: version.GitRelease,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.library/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "library home directory (default: ~/.library)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)

	// Set output format before any command runs
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		api.SetOutputFormat(outputFormat)
	}

	rootCmd.AddCommand(versionCmd)
}
