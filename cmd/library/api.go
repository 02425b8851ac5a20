package main

import (
	"github.com/spf13/cobra"

	"github.com/abhishek-sinu/Vedic-ebook-library-sub000/internal/server/endpoints"
)

var serverURL string

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Commands that call the running server",
	Long: `API commands call the running library server via HTTP.

These commands require a running server (library serve).
Use --server to specify a custom server URL.

Examples:
  library api health                     # Check server health
  library api books add ./gita.pdf       # Register a book
  library api content <book-id> -p 3     # Read page 3 of a book
  library api search <book-id> dharma    # Search within a book
  library api cache stats                # Show cache tier statistics`,
}

// getServerURL returns the server URL at runtime (after flag parsing).
func getServerURL() string {
	return serverURL
}

func init() {
	// Persistent so all subcommands inherit it
	apiCmd.PersistentFlags().StringVar(
		&serverURL, "server", "http://localhost:8080", "Server URL",
	)

	apiCmd.AddCommand(endpoints.NewRegistry(endpoints.Config{}).Commands(getServerURL)...)
	rootCmd.AddCommand(apiCmd)
}
